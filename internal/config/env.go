package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig          = "DRIVECAST_CONFIG"
	EnvListen          = "DRIVECAST_LISTEN"
	EnvClientID        = "DRIVECAST_CLIENT_ID"
	EnvClientSecret    = "DRIVECAST_CLIENT_SECRET"
	EnvRedirectURL     = "DRIVECAST_REDIRECT_URL"
	EnvCredentialsFile = "DRIVECAST_CREDENTIALS_FILE"
	EnvTokenPath       = "DRIVECAST_TOKEN_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath      string // DRIVECAST_CONFIG: override config file path
	Listen          string // DRIVECAST_LISTEN: listen address
	ClientID        string // DRIVECAST_CLIENT_ID
	ClientSecret    string // DRIVECAST_CLIENT_SECRET
	RedirectURL     string // DRIVECAST_REDIRECT_URL
	CredentialsFile string // DRIVECAST_CREDENTIALS_FILE: Google client-secret JSON
	TokenPath       string // DRIVECAST_TOKEN_PATH: token file or database path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:      os.Getenv(EnvConfig),
		Listen:          os.Getenv(EnvListen),
		ClientID:        os.Getenv(EnvClientID),
		ClientSecret:    os.Getenv(EnvClientSecret),
		RedirectURL:     os.Getenv(EnvRedirectURL),
		CredentialsFile: os.Getenv(EnvCredentialsFile),
		TokenPath:       os.Getenv(EnvTokenPath),
	}
}
