package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and work for a local single-user install
// without any config file.
const (
	defaultListen          = "127.0.0.1:3000"
	defaultRateLimit       = 20
	defaultRateBurst       = 40
	defaultShutdownTimeout = "10s"
	defaultRedirectURL     = "http://localhost:3000/auth/callback"
	defaultRevokeURL       = "https://oauth2.googleapis.com/revoke"
	defaultTokenBackend    = TokenBackendFile
	defaultRefreshWindow   = "5m"
	defaultPageSize        = 100
	defaultCacheTTL        = "5m"
	defaultCacheSize       = 512
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultMetadataTimeout = "30s"
)

// Token store backends.
const (
	TokenBackendFile   = "file"
	TokenBackendSQLite = "sqlite"
	TokenBackendMemory = "memory"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          defaultListen,
			RateLimit:       defaultRateLimit,
			RateBurst:       defaultRateBurst,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		OAuth: OAuthConfig{
			RedirectURL: defaultRedirectURL,
			RevokeURL:   defaultRevokeURL,
		},
		Token: TokenConfig{
			Backend:       defaultTokenBackend,
			RefreshWindow: defaultRefreshWindow,
		},
		Catalog: CatalogConfig{
			PageSize:  defaultPageSize,
			CacheTTL:  defaultCacheTTL,
			CacheSize: defaultCacheSize,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout:  defaultConnectTimeout,
			MetadataTimeout: defaultMetadataTimeout,
		},
	}
}
