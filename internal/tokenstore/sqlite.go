package tokenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/oauth2"

	// Pure-Go SQLite driver (no CGO), registers as "sqlite".
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// The table holds at most one row (id = 1).
const (
	sqlLoadToken = `SELECT access_token, refresh_token, token_type, expiry
		FROM oauth_token WHERE id = 1` //nolint:gosec // G101: column names, not credentials

	sqlUpsertToken = `INSERT INTO oauth_token
		(id, access_token, refresh_token, token_type, expiry, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		 access_token = excluded.access_token,
		 refresh_token = excluded.refresh_token,
		 token_type = excluded.token_type,
		 expiry = excluded.expiry,
		 saved_at = excluded.saved_at`

	sqlDeleteToken = `DELETE FROM oauth_token WHERE id = 1`
)

// SQLite stores the token record in a single-row table.
type SQLite struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations. The database uses WAL mode with synchronous=FULL.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if mkErr := os.MkdirAll(filepath.Dir(path), DirPerms); mkErr != nil {
		return nil, fmt.Errorf("tokenstore: creating directory for %s: %w", path, mkErr)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, FilePerms); err != nil {
		db.Close()
		return nil, fmt.Errorf("tokenstore: setting permissions on %s: %w", path, err)
	}

	logger.Debug("sqlite token store ready", slog.String("path", path))

	return &SQLite{db: db, nowFunc: time.Now}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("tokenstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("tokenstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("tokenstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *SQLite) Load(ctx context.Context) (*oauth2.Token, error) {
	var (
		tok    oauth2.Token
		expiry int64
	)

	err := s.db.QueryRowContext(ctx, sqlLoadToken).
		Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("tokenstore: loading token: %w", err)
	}

	// Zero means "no expiry", mirroring oauth2.Token's zero Expiry.
	if expiry != 0 {
		tok.Expiry = time.Unix(0, expiry).UTC()
	}

	return &tok, nil
}

func (s *SQLite) Save(ctx context.Context, tok *oauth2.Token) error {
	if !validToken(tok) {
		return errNilToken
	}

	var expiry int64
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UnixNano()
	}

	_, err := s.db.ExecContext(ctx, sqlUpsertToken,
		tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry, s.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("tokenstore: saving token: %w", err)
	}

	return nil
}

func (s *SQLite) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteToken); err != nil {
		return fmt.Errorf("tokenstore: deleting token: %w", err)
	}

	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
