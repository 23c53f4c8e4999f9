package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocateHintExplicitPathWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fake := filepath.Join(dir, "my-chromium")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Locate(fake)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != fake {
		t.Fatalf("got %q, want %q", got, fake)
	}
}

func TestLocateHintMissingReturnsErrBrowserNotFound(t *testing.T) {
	t.Parallel()

	_, err := Locate(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != ErrBrowserNotFound {
		t.Fatalf("got %v, want ErrBrowserNotFound", err)
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "x")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !fileExists(file) {
		t.Fatal("expected fileExists to report true for a regular file")
	}
	if fileExists(dir) {
		t.Fatal("expected fileExists to report false for a directory")
	}
	if fileExists(filepath.Join(dir, "nope")) {
		t.Fatal("expected fileExists to report false for a missing path")
	}
}
