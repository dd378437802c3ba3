package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

const redacted = "<redacted>"

// RenderEffective writes the derived paths as comments, then the effective
// configuration as TOML. The client secret is redacted.
func RenderEffective(r *Resolved, w io.Writer) error {
	cfg := Redacted(&r.Config)

	fmt.Fprintf(w, "# config file: %s\n", r.ConfigPath)
	fmt.Fprintf(w, "# token path:  %s\n", displayPath(r.TokenPath))
	fmt.Fprintf(w, "# pid file:    %s\n\n", r.PIDPath)

	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// Redacted returns a copy of cfg safe to print.
func Redacted(cfg *Config) Config {
	out := *cfg
	if out.OAuth.ClientSecret != "" {
		out.OAuth.ClientSecret = redacted
	}

	return out
}

func displayPath(p string) string {
	if p == "" {
		return "(none)"
	}

	return p
}
