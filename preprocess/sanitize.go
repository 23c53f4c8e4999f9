package preprocess

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

// NewDefaultPolicy returns a reasonably permissive bluemonday policy:
// UGCPolicy plus inline <style> tags, which the fit-page-to-content pass
// needs to be able to inject later in the pipeline. The exact removal
// rules are an external collaborator per spec §1 ("the system only
// specifies where sanitization plugs in"); this is the default plugged
// into that seam.
func NewDefaultPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("style")
	p.AllowAttrs("type").OnElements("style")
	return p
}

// Sanitize runs policy over the HTML document at uri (must be a local
// file:// URI — callers run this after any remote fetch has already
// materialized a local copy). If any element was removed (a tag's count
// dropped), the rewritten document is written to a new temp file and its
// URI is returned with true; otherwise uri is returned unchanged.
// Removals of attributes alone are not detected, so a document that only
// loses attributes is returned unchanged.
func Sanitize(uri string, policy *bluemonday.Policy, tempDir string, logger *logrus.Logger) (string, bool, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	path := filePath(uri)
	if path == "" {
		return uri, false, fmt.Errorf("preprocess: sanitize requires a local file URI, got %q", uri)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: sanitize read: %w", err)
	}

	before, err := tagCounts(raw)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: sanitize parse: %w", err)
	}

	clean := policy.SanitizeBytes(raw)

	after, err := tagCounts(clean)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: sanitize reparse: %w", err)
	}

	changed := logRemovals(logger, before, after)
	if !changed {
		return uri, false, nil
	}

	out := filepath.Join(tempDir, uuid.NewString()+".html")
	if err := os.WriteFile(out, clean, 0o600); err != nil {
		return uri, false, fmt.Errorf("preprocess: sanitize write: %w", err)
	}
	return "file://" + out, true, nil
}

func tagCounts(doc []byte) (map[string]int, error) {
	d, err := goquery.NewDocumentFromReader(bytesReader(doc))
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	d.Find("*").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		counts[s.Nodes[0].Data]++
	})
	return counts, nil
}

// logRemovals logs each tag whose count dropped and reports whether any
// removal occurred at all (spec §4.6: "log each removal").
func logRemovals(logger *logrus.Logger, before, after map[string]int) bool {
	changed := false
	for tag, n := range before {
		if after[tag] < n {
			logger.WithFields(logrus.Fields{
				"tag":     tag,
				"removed": n - after[tag],
			}).Info("sanitize: removed element")
			changed = true
		}
	}
	return changed
}
