// Package credentials resolves the OAuth client registration (client id,
// client secret, redirect URL) from explicit configuration, the conventional
// Google environment variables, or a client-secret JSON file downloaded from
// the Google Cloud console.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
)

// Conventional Google variable names, honoured after DRIVECAST_* values.
const (
	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
)

// ErrMissing is returned when no source provides both a client id and secret.
var ErrMissing = errors.New("credentials: no OAuth client id/secret configured")

// Record is the OAuth client registration. Immutable once loaded and never
// persisted by drivecast.
type Record struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Source lists the places a Record may come from, in priority order:
// explicit values, then GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET, then File.
// A non-empty RedirectURL always wins over the one embedded in File.
type Source struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	File         string
}

// Load resolves a Record from src.
func Load(src Source) (Record, error) {
	return load(src, os.Getenv, os.ReadFile)
}

// load is Load with injectable environment and file access for tests.
func load(src Source, getenv func(string) string, readFile func(string) ([]byte, error)) (Record, error) {
	rec := Record{RedirectURL: src.RedirectURL}

	switch {
	case src.ClientID != "" && src.ClientSecret != "":
		rec.ClientID, rec.ClientSecret = src.ClientID, src.ClientSecret

	case getenv(EnvGoogleClientID) != "" && getenv(EnvGoogleClientSecret) != "":
		rec.ClientID, rec.ClientSecret = getenv(EnvGoogleClientID), getenv(EnvGoogleClientSecret)

	case src.File != "":
		fromFile, err := loadFile(src.File, readFile)
		if err != nil {
			return Record{}, err
		}

		rec.ClientID, rec.ClientSecret = fromFile.ClientID, fromFile.ClientSecret
		if rec.RedirectURL == "" {
			rec.RedirectURL = fromFile.RedirectURL
		}

	default:
		return Record{}, ErrMissing
	}

	if rec.RedirectURL == "" {
		return Record{}, fmt.Errorf("credentials: redirect URL not configured")
	}

	return rec, nil
}

// loadFile parses a Google client-secret JSON file ("web" or "installed").
func loadFile(path string, readFile func(string) ([]byte, error)) (Record, error) {
	data, err := readFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("credentials: reading %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(data)
	if err != nil {
		return Record{}, fmt.Errorf("credentials: parsing %s: %w", path, err)
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return Record{}, fmt.Errorf("credentials: %s has no client id/secret: %w", path, ErrMissing)
	}

	return Record{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
	}, nil
}
