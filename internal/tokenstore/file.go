package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// fileFormat is the on-disk format for token files.
type fileFormat struct {
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"saved_at"`
}

// File stores the token as a JSON document at a fixed path.
type File struct {
	path string
}

// NewFile returns a file-backed Store at path. The file and its directory are
// created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the token file. Returns ErrNotFound if the file does not exist.
func (f *File) Load(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("tokenstore: reading %s: %w", f.path, err)
	}

	var tf fileFormat
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenstore: decoding %s: %w", f.path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("tokenstore: %s missing token field (re-login required)", f.path)
	}

	if !validToken(tf.Token) {
		return nil, fmt.Errorf("tokenstore: %s has empty credentials (re-login required)", f.path)
	}

	return tf.Token, nil
}

// Save writes the token file atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func (f *File) Save(_ context.Context, tok *oauth2.Token) error {
	if !validToken(tok) {
		return errNilToken
	}

	data, err := json.MarshalIndent(fileFormat{Token: tok, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(f.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}

	// Flush before rename so a power loss cannot leave a partial token file
	// at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("tokenstore: renaming: %w", err)
	}

	success = true

	return nil
}

// Delete removes the token file. Returns nil if it does not exist.
func (f *File) Delete(_ context.Context) error {
	err := os.Remove(f.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("tokenstore: removing %s: %w", f.path, err)
}
