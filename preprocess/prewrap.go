package preprocess

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultPreWrapExtensions are the local-file extensions pre-wrap applies
// to by default (spec §4.6).
var DefaultPreWrapExtensions = []string{".txt", ".log"}

const preWrapTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>pre{white-space:pre-wrap;word-wrap:break-word;font-family:monospace;}</style>
</head>
<body><pre>%s</pre></body>
</html>
`

// PreWrap wraps a local plain-text file's content in a minimal HTML
// document so it prints as monospaced fixed-width text, per spec §4.6.
// It applies only when uri is a file:// (or bare local path) URI whose
// extension is in extensions; otherwise it is a no-op returning uri
// unchanged. encodingHint, if non-empty, overrides encoding detection.
func PreWrap(uri, encodingHint string, extensions []string, tempDir string) (string, bool, error) {
	path := filePath(uri)
	if path == "" {
		return uri, false, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !containsFold(extensions, ext) {
		return uri, false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: pre-wrap read: %w", err)
	}
	text, err := decodeToUTF8(raw, encodingHint)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: pre-wrap decode: %w", err)
	}

	doc := fmt.Sprintf(preWrapTemplate, html.EscapeString(text))

	out := filepath.Join(tempDir, uuid.NewString()+".html")
	if err := os.WriteFile(out, []byte(doc), 0o600); err != nil {
		return uri, false, fmt.Errorf("preprocess: pre-wrap write: %w", err)
	}
	return "file://" + out, true, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// filePath extracts a local filesystem path from a file:// URI or a bare
// path; it returns "" for remote schemes.
func filePath(uri string) string {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return strings.TrimPrefix(uri, "file://")
	case strings.Contains(uri, "://"):
		return ""
	default:
		return uri
	}
}
