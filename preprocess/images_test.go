package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsAllowedBaseURLAlwaysAllowed(t *testing.T) {
	t.Parallel()

	opts := ImageOptions{BaseURL: "https://example.test", Blacklist: []string{"https://example.test/*"}}
	if !isAllowed("https://example.test/logo.png", opts) {
		t.Fatal("expected the document's own base URL to always be allowed")
	}
}

func TestIsAllowedBlacklistBlocksOtherHosts(t *testing.T) {
	t.Parallel()

	opts := ImageOptions{Blacklist: []string{"https://ads.test/*"}}
	if isAllowed("https://ads.test/banner.png", opts) {
		t.Fatal("expected a blacklisted URL to be disallowed")
	}
	if !isAllowed("https://cdn.test/photo.png", opts) {
		t.Fatal("expected a non-matching URL to be allowed")
	}
}

type fakeFetcher struct{ data []byte }

func (f fakeFetcher) Fetch(url string, headers map[string]string) ([]byte, bool, error) {
	return f.data, false, nil
}

func TestValidateImagesRewritesSrc(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "page.html")
	html := `<html><body><img src="https://cdn.test/a.png"></body></html>`
	if err := os.WriteFile(src, []byte(html), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	uri, changed, err := ValidateImages("file://"+src, fakeFetcher{data: buf.Bytes()}, ImageOptions{BaseURL: "https://origin.test"}, dir)
	if err != nil {
		t.Fatalf("ValidateImages: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	out, err := os.ReadFile(filePath(uri))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(out), "https://cdn.test/a.png") {
		t.Fatalf("expected remote src to be rewritten, got %q", out)
	}
	if !strings.Contains(string(out), "file://") {
		t.Fatalf("expected a local file:// src, got %q", out)
	}
}

func TestDownscaleShrinksWideImage(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	resized, ok := downscale(buf.Bytes(), 100)
	if !ok {
		t.Fatal("expected downscale to apply")
	}
	decoded, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("image.Decode: %v", err)
	}
	if decoded.Bounds().Dx() != 100 {
		t.Fatalf("got width %d, want 100", decoded.Bounds().Dx())
	}
	if decoded.Bounds().Dy() != 50 {
		t.Fatalf("got height %d, want 50", decoded.Bounds().Dy())
	}
}

func TestDownscaleNoOpWhenAlreadyNarrow(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	if _, ok := downscale(buf.Bytes(), 100); ok {
		t.Fatal("expected no downscale for an already-narrow image")
	}
}
