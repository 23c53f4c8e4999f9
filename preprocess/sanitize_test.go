package preprocess

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSanitizeRemovesScriptTag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	html := `<html><body><p>hi</p><script>alert(1)</script></body></html>`
	if err := os.WriteFile(src, []byte(html), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uri, changed, err := Sanitize("file://"+src, NewDefaultPolicy(), dir, logger)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if !changed {
		t.Fatal("expected sanitize to report a change")
	}
	out, err := os.ReadFile(filePath(uri))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Fatalf("expected <script> to be removed, got %q", out)
	}
	if !strings.Contains(string(out), "<p>hi</p>") {
		t.Fatalf("expected safe content preserved, got %q", out)
	}
}

func TestSanitizeNoOpOnCleanHTML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	if err := os.WriteFile(src, []byte(`<p>hi</p>`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uri, changed, err := Sanitize("file://"+src, NewDefaultPolicy(), dir, logger)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if changed {
		t.Fatal("expected no change for already-clean HTML")
	}
	if uri != "file://"+src {
		t.Fatalf("expected uri unchanged, got %q", uri)
	}
}
