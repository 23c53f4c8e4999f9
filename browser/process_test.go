package browser

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestScanForEndpointFindsAnnouncement(t *testing.T) {
	t.Parallel()

	r := strings.NewReader("[1234:5678:ERROR] blah\n" +
		"DevTools listening on ws://127.0.0.1:9222/devtools/browser/abcd-1234\n" +
		"more noise\n")
	ep, err := scanForEndpoint(r)
	if err != nil {
		t.Fatalf("scanForEndpoint: %v", err)
	}
	if ep != "ws://127.0.0.1:9222/devtools/browser/abcd-1234" {
		t.Fatalf("got %q", ep)
	}
}

func TestScanForEndpointExitsWithoutAnnouncement(t *testing.T) {
	t.Parallel()

	r := strings.NewReader("Chrome failed to start: something went wrong\n")
	if _, err := scanForEndpoint(r); err == nil {
		t.Fatal("expected an error when no announcement is present")
	}
}

func TestScanForEndpointEmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := scanForEndpoint(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected an error for empty stderr")
	}
}

// requireChromium skips the test unless a real Chromium/Chrome binary can
// be located, mirroring workerpool's gate: launching a real browser process
// needs an actual binary that may not exist in this sandbox.
func requireChromium(t *testing.T) string {
	t.Helper()
	path, err := Locate("")
	if err != nil {
		t.Skipf("no chromium binary available: %v", err)
	}
	return path
}

func TestStartAndCloseRealBrowser(t *testing.T) {
	execPath := requireChromium(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := Start(ctx, execPath, Options{NoSandbox: true, DisableGPU: true})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Endpoint() == "" {
		t.Fatal("expected a non-empty DevTools endpoint")
	}
	if _, err := os.Stat(p.UserDataDir()); err != nil {
		t.Fatalf("expected user data dir to exist: %v", err)
	}

	if err := p.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(p.UserDataDir()); !os.IsNotExist(err) {
		t.Fatalf("expected user data dir to be removed after clean close, err=%v", err)
	}
}
