// Package tokenstore persists the single OAuth token record drivecast works
// with. A record is replaced wholesale on every save; there is no history and
// no per-user keying. This is a leaf package: it knows nothing about refresh
// policy, which lives in internal/session.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned by Load when no token record is stored.
var ErrNotFound = errors.New("tokenstore: no token stored")

// errNilToken guards Save against persisting a record that Load would reject.
var errNilToken = errors.New("tokenstore: refusing to save nil or empty token")

// Store persists exactly one token record.
type Store interface {
	// Load returns the stored token or ErrNotFound.
	Load(ctx context.Context) (*oauth2.Token, error)
	// Save atomically replaces the stored token.
	Save(ctx context.Context, tok *oauth2.Token) error
	// Delete removes the stored token. Deleting an absent token is not an error.
	Delete(ctx context.Context) error
}

// Backend names accepted by Open. They match the token.backend config values.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the Store for the named backend. The returned close function
// releases backend resources (the SQLite handle); it is a no-op otherwise.
func Open(ctx context.Context, backend, path string, logger *slog.Logger) (Store, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	noop := func() error { return nil }

	switch backend {
	case BackendFile, "":
		return NewFile(path), noop, nil
	case BackendSQLite:
		s, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	case BackendMemory:
		return NewMemory(), noop, nil
	default:
		return nil, nil, fmt.Errorf("tokenstore: unknown backend %q", backend)
	}
}

// validToken reports whether tok carries at least one usable credential.
func validToken(tok *oauth2.Token) bool {
	return tok != nil && (tok.AccessToken != "" || tok.RefreshToken != "")
}
