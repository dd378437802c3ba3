package tokenstore

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// Memory keeps the token in process memory. Used for `token.backend = "memory"`
// (nothing survives a restart) and as a test double.
type Memory struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok == nil {
		return nil, ErrNotFound
	}

	cp := *m.tok

	return &cp, nil
}

func (m *Memory) Save(_ context.Context, tok *oauth2.Token) error {
	if !validToken(tok) {
		return errNilToken
	}

	cp := *tok

	m.mu.Lock()
	m.tok = &cp
	m.mu.Unlock()

	return nil
}

func (m *Memory) Delete(_ context.Context) error {
	m.mu.Lock()
	m.tok = nil
	m.mu.Unlock()

	return nil
}
