package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TargetInfo describes a DevTools target (spec §3's Target): an opaque id
// and the websocket URL a Session dials to control it.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the response body of GET /json/version.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// httpOrigin turns a "ws://host:port/devtools/browser/<id>" endpoint (as
// announced on Chrome's stderr) into its "http://host:port" origin, which
// exposes the /json/* control endpoints spec §3 names.
func httpOrigin(wsEndpoint string) (string, error) {
	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return "", err
	}
	return "http://" + u.Host, nil
}

// Version fetches GET /json/version from the browser's DevTools HTTP
// origin.
func Version(ctx context.Context, wsEndpoint string) (*VersionInfo, error) {
	origin, err := httpOrigin(wsEndpoint)
	if err != nil {
		return nil, err
	}
	var v VersionInfo
	if err := getJSON(ctx, origin+"/json/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// NewTarget opens a new blank tab via PUT /json/new (retrying with GET
// if the PUT fails) and returns its
// TargetInfo, per spec §3's BrowserEndpoint contract.
func NewTarget(ctx context.Context, wsEndpoint string) (*TargetInfo, error) {
	origin, err := httpOrigin(wsEndpoint)
	if err != nil {
		return nil, err
	}
	var t TargetInfo
	if err := requestJSON(ctx, http.MethodPut, origin+"/json/new?about:blank", &t); err != nil {
		// Older Chrome versions only accept GET for /json/new.
		if err := requestJSON(ctx, http.MethodGet, origin+"/json/new?about:blank", &t); err != nil {
			return nil, err
		}
		return &t, nil
	}
	return &t, nil
}

// CloseTarget closes a tab via GET /json/close/<id>.
func CloseTarget(ctx context.Context, wsEndpoint, targetID string) error {
	origin, err := httpOrigin(wsEndpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/json/close/"+targetID, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func getJSON(ctx context.Context, u string, out interface{}) error {
	return requestJSON(ctx, http.MethodGet, u, out)
}

func requestJSON(ctx context.Context, method, u string, out interface{}) error {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("devtools: %s %s: status %d", method, u, resp.StatusCode)
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolParseError, err)
	}
	return nil
}

// ForceIP rewrites the host component of urlstr to a resolved IP address.
// Since Chrome 66+, DevTools clients must send the Host header as either
// an IP address or "localhost" (grounded in the teacher's conn.go
// ForceIP).
func ForceIP(urlstr string) string {
	i := strings.Index(urlstr, "://")
	if i == -1 {
		return urlstr
	}
	scheme := urlstr[:i+3]
	host, port, path := urlstr[len(scheme):], "", ""
	if j := strings.Index(host, "/"); j != -1 {
		host, path = host[:j], host[j:]
	}
	if j := strings.Index(host, ":"); j != -1 {
		host, port = host[:j], host[j:]
	}
	if addr, err := net.ResolveIPAddr("ip", host); err == nil {
		return scheme + addr.IP.String() + port + path
	}
	return urlstr
}
