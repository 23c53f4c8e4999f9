package preprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFitPageToContentInjectsStylesheetAndScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	if err := os.WriteFile(src, []byte(`<html><head></head><body><p>hi</p></body></html>`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	uri, changed, err := FitPageToContent("file://"+src, dir)
	if err != nil {
		t.Fatalf("FitPageToContent: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	data, err := os.ReadFile(filePath(uri))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "@page") {
		t.Fatalf("expected injected @page rule, got %q", data)
	}
	if !strings.Contains(string(data), "window.addEventListener('load'") {
		t.Fatalf("expected injected load handler, got %q", data)
	}
}

func TestFitPageToContentRejectsRemoteURI(t *testing.T) {
	t.Parallel()

	if _, _, err := FitPageToContent("https://example.test/page.html", t.TempDir()); err == nil {
		t.Fatal("expected an error for a remote uri")
	}
}
