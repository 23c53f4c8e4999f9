package devtools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPOrigin(t *testing.T) {
	t.Parallel()

	got, err := httpOrigin("ws://127.0.0.1:9222/devtools/browser/abcd")
	if err != nil {
		t.Fatalf("httpOrigin: %v", err)
	}
	if got != "http://127.0.0.1:9222" {
		t.Fatalf("got %q", got)
	}
}

func TestForceIPRewritesHostToLoopback(t *testing.T) {
	t.Parallel()

	got := ForceIP("ws://localhost:9222/devtools/page/abcd")
	if !strings.HasPrefix(got, "ws://127.0.0.1:9222/devtools/page/abcd") &&
		!strings.HasPrefix(got, "ws://[::1]:9222/devtools/page/abcd") {
		t.Fatalf("got %q", got)
	}
}

func TestForceIPLeavesMalformedURLAlone(t *testing.T) {
	t.Parallel()

	got := ForceIP("not-a-url")
	if got != "not-a-url" {
		t.Fatalf("got %q", got)
	}
}

func TestVersionFetchesJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Browser":"HeadlessChrome/120.0","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/browser/xyz"}`))
	}))
	defer srv.Close()

	wsEndpoint := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/devtools/browser/xyz"
	v, err := Version(context.Background(), wsEndpoint)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Browser != "HeadlessChrome/120.0" {
		t.Fatalf("got %q", v.Browser)
	}
}

func TestNewTargetFallsBackToGET(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/json/new") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"page-1","type":"page","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/page-1"}`))
	}))
	defer srv.Close()

	wsEndpoint := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/devtools/browser/xyz"
	target, err := NewTarget(context.Background(), wsEndpoint)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if target.ID != "page-1" {
		t.Fatalf("got %q", target.ID)
	}
}

func TestCloseTargetHitsExpectedPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wsEndpoint := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/devtools/browser/xyz"
	if err := CloseTarget(context.Background(), wsEndpoint, "page-1"); err != nil {
		t.Fatalf("CloseTarget: %v", err)
	}
	if gotPath != "/json/close/page-1" {
		t.Fatalf("got path %q", gotPath)
	}
}

func TestRequestJSONRejectsNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out VersionInfo
	if err := getJSON(context.Background(), srv.URL+"/json/version", &out); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
