// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for drivecast. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
// Every section is a TOML table; unset fields keep their defaults because the
// file is decoded on top of DefaultConfig().
type Config struct {
	Server  ServerConfig  `toml:"server"`
	OAuth   OAuthConfig   `toml:"oauth"`
	Token   TokenConfig   `toml:"token"`
	Catalog CatalogConfig `toml:"catalog"`
	Logging LoggingConfig `toml:"logging"`
	Network NetworkConfig `toml:"network"`
}

// ServerConfig controls the HTTP listener and its middleware.
type ServerConfig struct {
	Listen          string `toml:"listen"`
	StaticDir       string `toml:"static_dir"`
	RateLimit       int    `toml:"rate_limit"`
	RateBurst       int    `toml:"rate_burst"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// OAuthConfig holds the Google OAuth client registration. Secrets may also be
// supplied via environment variables or a downloaded client-secret JSON file.
type OAuthConfig struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURL     string `toml:"redirect_url"`
	CredentialsFile string `toml:"credentials_file"`
	RevokeURL       string `toml:"revoke_url"`
}

// TokenConfig selects where the single token record lives and how early it
// is refreshed before expiry.
type TokenConfig struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	RefreshWindow string `toml:"refresh_window"`
}

// CatalogConfig controls the video listing query and the metadata cache.
type CatalogConfig struct {
	PageSize  int    `toml:"page_size"`
	CacheTTL  string `toml:"cache_ttl"`
	CacheSize int    `toml:"cache_size"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls outbound HTTP client behavior. Streaming requests
// are never subject to metadata_timeout; they live as long as the inbound
// request does.
type NetworkConfig struct {
	ConnectTimeout  string `toml:"connect_timeout"`
	MetadataTimeout string `toml:"metadata_timeout"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Listen     *string // --listen flag
}

// Resolved is the effective configuration after the override chain has been
// applied, with durations parsed and paths expanded.
type Resolved struct {
	Config

	ConfigPath      string
	TokenPath       string
	PIDPath         string
	RefreshWindow   time.Duration
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
	ConnectTimeout  time.Duration
	MetadataTimeout time.Duration
}
