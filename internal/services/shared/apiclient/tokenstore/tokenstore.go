// Package tokenstore keeps the session token between front-end runs.
package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Kind selects where a token lives.
type Kind string

const (
	// KindLocal persists the token in a file under the user config dir.
	KindLocal Kind = "local"
	// KindSession keeps the token in memory for the process lifetime.
	KindSession Kind = "session"
)

// Store gets, sets and clears one token.
type Store struct {
	key  string
	kind Kind
	dir  string

	mu    sync.Mutex
	value string
	set   bool
}

// Option customizes a Store.
type Option func(*Store)

// Dir overrides the directory KindLocal tokens are written to.
func Dir(path string) Option {
	return func(s *Store) {
		s.dir = path
	}
}

// New returns a store for key. An unknown kind falls back to KindLocal.
func New(key string, kind Kind, opts ...Option) (*Store, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("invalid token key %q", key)
	}
	if kind != KindSession {
		kind = KindLocal
	}
	s := &Store{key: key, kind: kind}
	for _, opt := range opts {
		opt(s)
	}
	if s.kind == KindLocal && s.dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		s.dir = filepath.Join(base, "tapestry")
	}
	return s, nil
}

// Kind reports where the token lives.
func (s *Store) Kind() Kind {
	return s.kind
}

func (s *Store) path() string {
	return filepath.Join(s.dir, s.key)
}

// Get returns the stored token.
func (s *Store) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindSession {
		return s.value, s.set && s.value != ""
	}
	raw, err := os.ReadFile(s.path())
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	return token, token != ""
}

// Set stores token. An empty token clears the store.
func (s *Store) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindSession {
		s.value, s.set = token, true
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Clear removes the token.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindSession {
		s.value, s.set = "", false
		return nil
	}
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
