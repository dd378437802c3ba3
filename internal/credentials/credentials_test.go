package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientSecretJSON = `{
	"web": {
		"client_id": "file-id.apps.googleusercontent.com",
		"client_secret": "file-secret",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["http://localhost:3000/auth/callback"]
	}
}`

func noEnv(string) string { return "" }

func noFile(string) ([]byte, error) { return nil, errors.New("no file access expected") }

func TestLoad_ExplicitValuesWin(t *testing.T) {
	env := func(k string) string {
		return map[string]string{
			EnvGoogleClientID:     "env-id",
			EnvGoogleClientSecret: "env-secret",
		}[k]
	}

	rec, err := load(Source{
		ClientID:     "cfg-id",
		ClientSecret: "cfg-secret",
		RedirectURL:  "http://localhost:3000/auth/callback",
		File:         "/ignored.json",
	}, env, noFile)
	require.NoError(t, err)
	assert.Equal(t, "cfg-id", rec.ClientID)
	assert.Equal(t, "cfg-secret", rec.ClientSecret)
}

func TestLoad_GoogleEnvFallback(t *testing.T) {
	env := func(k string) string {
		return map[string]string{
			EnvGoogleClientID:     "env-id",
			EnvGoogleClientSecret: "env-secret",
		}[k]
	}

	// An id without a secret does not count as explicit.
	rec, err := load(Source{ClientID: "half", RedirectURL: "http://localhost/cb"}, env, noFile)
	require.NoError(t, err)
	assert.Equal(t, "env-id", rec.ClientID)
	assert.Equal(t, "env-secret", rec.ClientSecret)
	assert.Equal(t, "http://localhost/cb", rec.RedirectURL)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientSecretJSON), 0o600))

	rec, err := load(Source{File: path}, noEnv, os.ReadFile)
	require.NoError(t, err)
	assert.Equal(t, "file-id.apps.googleusercontent.com", rec.ClientID)
	assert.Equal(t, "file-secret", rec.ClientSecret)
	assert.Equal(t, "http://localhost:3000/auth/callback", rec.RedirectURL)
}

func TestLoad_FileRedirectOverridden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientSecretJSON), 0o600))

	rec, err := load(Source{File: path, RedirectURL: "https://videos.example.com/auth/callback"}, noEnv, os.ReadFile)
	require.NoError(t, err)
	assert.Equal(t, "https://videos.example.com/auth/callback", rec.RedirectURL)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"neither":{}}`), 0o600))

	_, err := load(Source{File: path}, noEnv, os.ReadFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(Source{File: filepath.Join(t.TempDir(), "absent.json")}, noEnv, os.ReadFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_NothingConfigured(t *testing.T) {
	_, err := load(Source{RedirectURL: "http://localhost/cb"}, noEnv, noFile)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLoad_MissingRedirect(t *testing.T) {
	_, err := load(Source{ClientID: "id", ClientSecret: "secret"}, noEnv, noFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL")
}
