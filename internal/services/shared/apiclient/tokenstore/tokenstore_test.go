package tokenstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, err := New("tapestry_token", KindLocal, Dir(dir))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := first.Get(); ok {
		t.Fatal("expected empty store")
	}
	if err := first.Set("abc"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, err := New("tapestry_token", KindLocal, Dir(dir))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, ok := second.Get(); !ok || got != "abc" {
		t.Fatalf("expected persisted token, got %q %v", got, ok)
	}
	info, err := os.Stat(filepath.Join(dir, "tapestry_token"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	if err := second.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := first.Get(); ok {
		t.Fatal("expected token cleared")
	}
	if err := second.Clear(); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
}

func TestSessionStoreIsInMemory(t *testing.T) {
	dir := t.TempDir()
	s, err := New("tapestry_token", KindSession, Dir(dir))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Set("xyz"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, ok := s.Get(); !ok || got != "xyz" {
		t.Fatalf("expected xyz, got %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files for session store, got %d", len(entries))
	}
	if err := s.Set(""); err != nil {
		t.Fatalf("set empty: %v", err)
	}
	if _, ok := s.Get(); ok {
		t.Fatal("expected empty set to clear")
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	for _, key := range []string{"", "  ", "a/b"} {
		if _, err := New(key, KindSession); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
