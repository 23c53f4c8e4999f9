package preprocess

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// fitPageBaseCSS removes body margin and pins an initial @page size; it
// is always injected so the follow-up script (fitPageScript) has a
// deterministic starting point to measure from.
const fitPageBaseCSS = `html,body{margin:0;padding:0;}
@page{margin:0;size:auto;}`

// fitPageScript computes the rendered <html> element's size on
// window.load and rewrites the @page rule so the PDF page exactly
// matches content bounds (spec §4.6).
const fitPageScript = `window.addEventListener('load', function() {
  var r = document.documentElement.getBoundingClientRect();
  var w = Math.ceil(r.width), h = Math.ceil(r.height);
  var sheet = document.createElement('style');
  sheet.textContent = '@page{size:' + w + 'px ' + h + 'px;margin:0;}';
  document.head.appendChild(sheet);
});`

// FitPageToContent injects the two stylesheets spec §4.6 describes into
// the document's <head>, returning the URI of a new temp file.
func FitPageToContent(uri, tempDir string) (string, bool, error) {
	path := filePath(uri)
	if path == "" {
		return uri, false, fmt.Errorf("preprocess: fit-page-to-content requires a local file URI, got %q", uri)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: fit-page read: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytesReader(raw))
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: fit-page parse: %w", err)
	}
	head := doc.Find("head")
	if head.Length() == 0 {
		head = doc.Find("html").PrependHtml("<head></head>").Find("head")
	}
	head.AppendHtml(fmt.Sprintf("<style>%s</style>", fitPageBaseCSS))
	head.AppendHtml(fmt.Sprintf("<script>%s</script>", fitPageScript))

	html, err := doc.Html()
	if err != nil {
		return uri, false, fmt.Errorf("preprocess: fit-page render: %w", err)
	}

	out := filepath.Join(tempDir, uuid.NewString()+".html")
	if err := os.WriteFile(out, []byte(html), 0o600); err != nil {
		return uri, false, fmt.Errorf("preprocess: fit-page write: %w", err)
	}
	return "file://" + out, true, nil
}
