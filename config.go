// Package html2pdf is C9 of the specification: the public converter API
// that wires together the browser locator/launcher, a DevTools session,
// the conversion state machine, the pre-processor, the HTTP fetch cache,
// and the worker pool behind a small, validated configuration surface.
package html2pdf

import (
	"fmt"
	"time"

	"github.com/pdfcast/html2pdf/convert"
)

// Config is the plain value object spec §4.9 describes: a fixed set of
// recognized options, validated once at NewConverter construction time.
// Unknown options have no representation here at all (they simply
// cannot be set), which is how this rewrite satisfies "unknown options
// are rejected at construction" without a map-of-strings config layer.
type Config struct {
	ChromiumLocation    string
	ChromiumUserProfile string
	PortRangeLow        int
	PortRangeHigh       int

	UserAgent string

	ProxyServer     string
	ProxyBypassList string
	ProxyPACURL     string
	BasicAuthUser   string
	BasicAuthPass   string

	WindowWidth  int
	WindowHeight int

	MultiThreading      bool
	MaxConcurrencyLevel int

	WaitForWindowStatus        string
	WaitForWindowStatusTimeout time.Duration
	Timeout                    time.Duration
	MediaLoadTimeout           time.Duration
	WebSocketTimeout           time.Duration
	WaitForNetworkIdle         bool
	ImageLoadTimeout           time.Duration

	PreWrapFileExtensions []string
	Encoding              string
	ImageResize           bool
	ImageRotate           bool
	SanitizeHTML          bool
	RunJavaScript         bool
	URLBlacklist          []string
	NetworkLogging        bool
	Snapshot              bool

	DiskCacheDisabled bool
	DiskCacheDir      string
	DiskCacheSize     int64

	NoSandbox              bool
	EnableChromiumLogging  bool
	DisableGPU             bool
	IgnoreCertificateErrors bool
	DisableCrashReporter   bool
}

// DefaultConfig returns a Config with every documented default applied
// (spec §6): Letter-equivalent geometry lives in convert.PageSettings,
// not here, so this only covers C9-level defaults.
func DefaultConfig() Config {
	return Config{
		PortRangeLow:          9222,
		PortRangeHigh:         9322,
		MaxConcurrencyLevel:   0, // resolved to NumCPU by workerpool
		Timeout:               30 * time.Second,
		WebSocketTimeout:      30 * time.Second,
		PreWrapFileExtensions: []string{".txt", ".log"},
		DiskCacheSize:         256 << 20,
	}
}

// Validate rejects a Config with contradictory or out-of-range values.
// Per spec §7, ConfigError is fatal only at construction, never during
// execution — this is the sole place that error kind originates.
func (c Config) Validate() error {
	if c.PortRangeLow < 0 || c.PortRangeHigh < 0 {
		return fmt.Errorf("%w: negative port range", convert.ErrConfig)
	}
	if c.PortRangeLow > 0 && c.PortRangeHigh > 0 && c.PortRangeLow > c.PortRangeHigh {
		return fmt.Errorf("%w: portrange low %d > high %d", convert.ErrConfig, c.PortRangeLow, c.PortRangeHigh)
	}
	if c.MaxConcurrencyLevel < 0 {
		return fmt.Errorf("%w: negative max-concurrency-level", convert.ErrConfig)
	}
	if c.Timeout < 0 || c.MediaLoadTimeout < 0 || c.WebSocketTimeout < 0 || c.ImageLoadTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", convert.ErrConfig)
	}
	if c.WindowWidth < 0 || c.WindowHeight < 0 {
		return fmt.Errorf("%w: negative window size", convert.ErrConfig)
	}
	if c.DiskCacheSize < 0 {
		return fmt.Errorf("%w: negative disk-cache-size", convert.ErrConfig)
	}
	return nil
}

// setProxy, setWindowSize, setCredentials and setURLBlacklist accumulate configuration applied to the
// next browser launch (spec §4.9). They return c so calls chain the
// way the teacher's functional-options constructors read.

func (c Config) setProxy(server, bypass, pac string) Config {
	c.ProxyServer, c.ProxyBypassList, c.ProxyPACURL = server, bypass, pac
	return c
}

func (c Config) setWindowSize(width, height int) Config {
	c.WindowWidth, c.WindowHeight = width, height
	return c
}

func (c Config) setCredentials(user, pass string) Config {
	c.BasicAuthUser, c.BasicAuthPass = user, pass
	return c
}

func (c Config) setURLBlacklist(patterns []string) Config {
	c.URLBlacklist = append([]string(nil), patterns...)
	return c
}
