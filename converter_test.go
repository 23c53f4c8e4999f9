package html2pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcast/html2pdf/browser"
	"github.com/pdfcast/html2pdf/convert"
)

func TestNewConverterRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PortRangeLow, cfg.PortRangeHigh = 9300, 9200
	cfg.DiskCacheDisabled = true
	if _, err := NewConverter(cfg); err == nil {
		t.Fatal("expected NewConverter to reject an invalid config")
	}
}

func TestNewConverterOpensDiskCacheByDefault(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DiskCacheDir = filepath.Join(t.TempDir(), "cache")
	conv, err := NewConverter(cfg)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	defer conv.Close()

	if conv.cache == nil {
		t.Fatal("expected a non-nil cache when DiskCacheDisabled is false")
	}
}

func TestSetAccumulatorsProduceIndependentConverters(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DiskCacheDisabled = true
	base, err := NewConverter(cfg)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	defer base.Close()

	withProxy := base.SetProxy("proxy.test:8080", "", "")
	withWindow := base.SetWindowSize(800, 600)

	if base.cfg.ProxyServer != "" {
		t.Fatal("expected the base converter to remain unmodified")
	}
	if withProxy.cfg.ProxyServer != "proxy.test:8080" {
		t.Fatalf("got %q", withProxy.cfg.ProxyServer)
	}
	if withWindow.cfg.WindowWidth != 800 || withWindow.cfg.WindowHeight != 600 {
		t.Fatalf("got %dx%d", withWindow.cfg.WindowWidth, withWindow.cfg.WindowHeight)
	}
}

func TestExtraFlagsTranslatesConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DiskCacheDisabled = true
	cfg.UserAgent = "html2pdf-test/1.0"
	cfg.ProxyServer = "proxy.test:3128"
	cfg.WindowWidth, cfg.WindowHeight = 1024, 768
	cfg.IgnoreCertificateErrors = true
	cfg.BasicAuthUser, cfg.BasicAuthPass = "alice", "secret"

	conv, err := NewConverter(cfg)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	defer conv.Close()

	flags := conv.extraFlags()
	joined := strings.Join(flags, " ")
	for _, want := range []string{
		"--user-agent=html2pdf-test/1.0",
		"--proxy-server=proxy.test:3128",
		"--window-size=1024,768",
		"--ignore-certificate-errors",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected flags to contain %q, got %q", want, joined)
		}
	}
}

func TestConvertEndToEndWithRealBrowser(t *testing.T) {
	if _, err := browser.Locate(""); err != nil {
		t.Skipf("no chromium binary available: %v", err)
	}

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "page.html")
	if err := os.WriteFile(htmlPath, []byte("<html><body><h1>hello</h1></body></html>"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := DefaultConfig()
	cfg.DiskCacheDisabled = true
	cfg.NoSandbox = true
	cfg.DisableGPU = true

	conv, err := NewConverter(cfg)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	defer conv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	in := convert.ConvertInput{URI: "file://" + htmlPath}
	ps := convert.DefaultPageSettings()
	wait := convert.WaitOptions{}

	if err := conv.Convert(ctx, in, ps, wait, &out); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty PDF output")
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected output to start with %%PDF, got %q", out.Bytes()[:minInt(10, out.Len())])
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
