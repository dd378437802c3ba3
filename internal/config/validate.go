package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minPageSize         = 1
	maxPageSize         = 1000
	minCacheSize        = 1
	minRefreshWindow    = 10 * time.Second
	maxRefreshWindow    = 30 * time.Minute
	minShutdownTimeout  = 1 * time.Second
	minConnectTimeout   = 1 * time.Second
	minMetadataTimeout  = 1 * time.Second
	maxRateLimitPerSec  = 10_000
	minRateBurstEnabled = 1
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateOAuth(&cfg.OAuth)...)
	errs = append(errs, validateToken(&cfg.Token)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: must be host:port, got %q", s.Listen))
	}

	if s.RateLimit < 0 || s.RateLimit > maxRateLimitPerSec {
		errs = append(errs, fmt.Errorf("rate_limit: must be between 0 and %d, got %d",
			maxRateLimitPerSec, s.RateLimit))
	}

	if s.RateLimit > 0 && s.RateBurst < minRateBurstEnabled {
		errs = append(errs, fmt.Errorf("rate_burst: must be >= %d when rate_limit is set, got %d",
			minRateBurstEnabled, s.RateBurst))
	}

	errs = append(errs, validateDurationMin("shutdown_timeout", s.ShutdownTimeout, minShutdownTimeout)...)

	return errs
}

func validateOAuth(o *OAuthConfig) []error {
	var errs []error

	errs = append(errs, validateAbsURL("redirect_url", o.RedirectURL)...)

	if o.RevokeURL != "" {
		errs = append(errs, validateAbsURL("revoke_url", o.RevokeURL)...)
	}

	return errs
}

var validTokenBackends = map[string]bool{
	TokenBackendFile:   true,
	TokenBackendSQLite: true,
	TokenBackendMemory: true,
}

func validateToken(t *TokenConfig) []error {
	var errs []error

	if !validTokenBackends[t.Backend] {
		errs = append(errs, fmt.Errorf("backend: must be one of file, sqlite, memory; got %q", t.Backend))
	}

	d, err := time.ParseDuration(t.RefreshWindow)
	if err != nil {
		errs = append(errs, fmt.Errorf("refresh_window: invalid duration %q: %w", t.RefreshWindow, err))
	} else if d < minRefreshWindow || d > maxRefreshWindow {
		errs = append(errs, fmt.Errorf("refresh_window: must be between %s and %s, got %s",
			minRefreshWindow, maxRefreshWindow, d))
	}

	return errs
}

func validateCatalog(c *CatalogConfig) []error {
	var errs []error

	if c.PageSize < minPageSize || c.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, c.PageSize))
	}

	if c.CacheSize < minCacheSize {
		errs = append(errs, fmt.Errorf("cache_size: must be >= %d, got %d", minCacheSize, c.CacheSize))
	}

	// Zero TTL disables the cache.
	if d, err := time.ParseDuration(c.CacheTTL); err != nil {
		errs = append(errs, fmt.Errorf("cache_ttl: invalid duration %q: %w", c.CacheTTL, err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("cache_ttl: must not be negative, got %s", c.CacheTTL))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("metadata_timeout", n.MetadataTimeout, minMetadataTimeout)...)

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateAbsURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute URL, got %q", field, value)}
	}

	return nil
}
