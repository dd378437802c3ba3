package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. Users can start without
// creating a config file as long as OAuth credentials come from the
// environment.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	applyEnv(cfg, env)

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.Listen != nil {
		cfg.Server.Listen = *cli.Listen
	}

	// 5. Validate the merged result; env and CLI values bypass Load's check.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolve(cfg, cfgPath)
}

func applyEnv(cfg *Config, env EnvOverrides) {
	if env.Listen != "" {
		cfg.Server.Listen = env.Listen
	}

	if env.ClientID != "" {
		cfg.OAuth.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.OAuth.ClientSecret = env.ClientSecret
	}

	if env.RedirectURL != "" {
		cfg.OAuth.RedirectURL = env.RedirectURL
	}

	if env.CredentialsFile != "" {
		cfg.OAuth.CredentialsFile = env.CredentialsFile
	}

	if env.TokenPath != "" {
		cfg.Token.Path = env.TokenPath
	}
}

// resolve parses durations and fills in derived paths. Durations were already
// validated, so parse errors here are not expected.
func resolve(cfg *Config, cfgPath string) (*Resolved, error) {
	r := &Resolved{
		Config:     *cfg,
		ConfigPath: cfgPath,
		PIDPath:    DefaultPIDPath(),
	}

	r.OAuth.CredentialsFile = expandTilde(cfg.OAuth.CredentialsFile)
	r.Server.StaticDir = expandTilde(cfg.Server.StaticDir)

	r.TokenPath = expandTilde(cfg.Token.Path)
	if r.TokenPath == "" {
		r.TokenPath = DefaultTokenPath(cfg.Token.Backend)
	}

	if cfg.Token.Backend != TokenBackendMemory && r.TokenPath == "" {
		return nil, fmt.Errorf("config: cannot determine token path (no home directory); set token.path")
	}

	durations := []struct {
		value string
		dst   *time.Duration
	}{
		{cfg.Token.RefreshWindow, &r.RefreshWindow},
		{cfg.Catalog.CacheTTL, &r.CacheTTL},
		{cfg.Server.ShutdownTimeout, &r.ShutdownTimeout},
		{cfg.Network.ConnectTimeout, &r.ConnectTimeout},
		{cfg.Network.MetadataTimeout, &r.MetadataTimeout},
	}

	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("config: parsing duration %q: %w", d.value, err)
		}

		*d.dst = parsed
	}

	return r, nil
}
