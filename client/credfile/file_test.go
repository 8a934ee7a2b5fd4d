package credfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "credential.json")
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := st.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store: err = %v, want ErrNotFound", err)
	}

	if err := st.Save("tok-abc"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "tok-abc" {
		t.Fatalf("Load = %q, want tok-abc", got)
	}

	if err := st.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := st.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Clear: err = %v, want ErrNotFound", err)
	}

	// Clearing an absent entry is not an error.
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
}

func TestFileStore_CorruptEntryReadsAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := st.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load corrupt: err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_RejectsEmptyToken(t *testing.T) {
	st, err := NewFileStore(filepath.Join(t.TempDir(), "credential.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := st.Save("  "); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestMemStore_RoundTrip(t *testing.T) {
	st := NewMemStore()
	if _, err := st.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load: err = %v, want ErrNotFound", err)
	}
	if err := st.Save("t"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err := st.Load(); err != nil || got != "t" {
		t.Fatalf("Load = %q, %v", got, err)
	}
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := st.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Clear: err = %v, want ErrNotFound", err)
	}
}
