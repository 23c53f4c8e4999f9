package html2pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcast/html2pdf/browser"
	"github.com/pdfcast/html2pdf/cache"
	"github.com/pdfcast/html2pdf/convert"
	"github.com/pdfcast/html2pdf/devtools"
	"github.com/pdfcast/html2pdf/preprocess"
	"github.com/pdfcast/html2pdf/workerpool"
	"github.com/sirupsen/logrus"
)

// Converter is the C9 entry point: one Converter owns a Config, an
// optional shared Cache, and launches its own browser processes per
// call (for convert) or per worker (for a pool built via
// ConvertBatch). Construction validates Config once; every later
// operation trusts it.
type Converter struct {
	cfg    Config
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewConverter validates cfg and, unless cfg.DiskCacheDisabled, opens
// its backing Cache. Per spec §7, a ConfigError here is the only place
// this package ever rejects options; nothing later re-validates them.
func NewConverter(cfg Config) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logrus.StandardLogger()

	c := &Converter{cfg: cfg, logger: logger}
	if !cfg.DiskCacheDisabled {
		dir := cfg.DiskCacheDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "html2pdf-cache")
		}
		ch, err := cache.New(cache.Options{
			Root:    dir,
			MaxSize: cfg.DiskCacheSize,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("html2pdf: open cache: %w", err)
		}
		c.cache = ch
	}
	return c, nil
}

// SetUserAgent, SetProxy, SetWindowSize, SetCredentials,
// SetURLBlacklist accumulate configuration applied to the converter's
// next browser launch (spec §4.9). Each returns a new Converter value
// sharing the same cache, so call sites chain: conv =
// conv.SetProxy(...).SetWindowSize(...).
func (c *Converter) SetUserAgent(ua string) *Converter {
	next := *c
	next.cfg.UserAgent = ua
	return &next
}

func (c *Converter) SetProxy(server, bypass, pac string) *Converter {
	next := *c
	next.cfg = c.cfg.setProxy(server, bypass, pac)
	return &next
}

func (c *Converter) SetWindowSize(width, height int) *Converter {
	next := *c
	next.cfg = c.cfg.setWindowSize(width, height)
	return &next
}

func (c *Converter) SetCredentials(user, pass string) *Converter {
	next := *c
	next.cfg = c.cfg.setCredentials(user, pass)
	return &next
}

func (c *Converter) SetURLBlacklist(patterns []string) *Converter {
	next := *c
	next.cfg = c.cfg.setURLBlacklist(patterns)
	return &next
}

// Close releases the converter's shared Cache, if any.
func (c *Converter) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Convert runs one synchronous-looking conversion (spec §4.9): launch
// a private browser, preprocess input per cfg, drive the state
// machine, and write the resulting PDF to output.
func (c *Converter) Convert(ctx context.Context, input convert.ConvertInput, ps convert.PageSettings, wait convert.WaitOptions, output io.Writer) error {
	if err := ps.Resolve(); err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "html2pdf-")
	if err != nil {
		return fmt.Errorf("html2pdf: temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	preparedURI, err := c.prepare(input.URI, input.Encoding, tempDir)
	if err != nil {
		return err
	}
	input.URI = preparedURI

	sess, proc, err := c.launchBrowser(ctx)
	if err != nil {
		return err
	}
	defer func() {
		sess.Close()
		proc.Close(nil)
	}()

	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	_, err = convert.Run(ctx, sess, input, ps, wait, timeout, c.cfg.URLBlacklist, c.cfg.NetworkLogging, c.cfg.BasicAuthUser, c.cfg.BasicAuthPass, output, io.Discard, c.logger)
	return err
}

// ConvertBatch runs a worker pool of items concurrently (spec §4.9's
// convertAsync, realized as a batch rather than a bare future since
// the pool already models cooperative cancellation end to end).
func (c *Converter) ConvertBatch(ctx context.Context, items []*workerpool.ConversionItem, ps convert.PageSettings, wait convert.WaitOptions) ([]*workerpool.ConversionItem, error) {
	if err := ps.Resolve(); err != nil {
		return nil, err
	}

	concurrency := c.cfg.MaxConcurrencyLevel
	if !c.cfg.MultiThreading {
		concurrency = 1
	}

	pool := workerpool.New(ctx, workerpool.Options{
		MaxConcurrency: concurrency,
		ExecPath:       c.cfg.ChromiumLocation,
		BrowserOpts:    c.browserOptions(),
		PortRangeLow:   c.cfg.PortRangeLow,
		PortRangeHigh:  c.cfg.PortRangeHigh,
		Logger:         c.logger,
		Convert: func(ctx context.Context, sess *devtools.Session, item *workerpool.ConversionItem) error {
			return c.convertItem(ctx, sess, item, ps, wait)
		},
	})

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if err := pool.Submit(item); err != nil {
			return nil, err
		}
	}
	pool.CloseQueue()
	return pool.Wait(), nil
}

func (c *Converter) convertItem(ctx context.Context, sess *devtools.Session, item *workerpool.ConversionItem, ps convert.PageSettings, wait convert.WaitOptions) error {
	tempDir, err := os.MkdirTemp("", "html2pdf-item-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	preparedURI, err := c.prepare(item.Input, "", tempDir)
	if err != nil {
		return err
	}

	f, err := os.Create(item.Output)
	if err != nil {
		return err
	}
	defer f.Close()

	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	in := convert.ConvertInput{URI: preparedURI}
	_, err = convert.Run(ctx, sess, in, ps, wait, timeout, c.cfg.URLBlacklist, c.cfg.NetworkLogging, c.cfg.BasicAuthUser, c.cfg.BasicAuthPass, f, io.Discard, c.logger)
	return err
}

// prepare runs the configured C6 passes, in the fixed order
// SPEC_FULL §6.6 establishes: pre-wrap, sanitize, fit-page-to-content,
// image-validate. Each pass's failure is logged and swallowed (spec
// §7 PreProcessorError: "skip the failing pass ... propagate the
// previous URI").
func (c *Converter) prepare(uri, encodingHint, tempDir string) (string, error) {
	current := uri

	if next, changed, err := preprocess.PreWrap(current, encodingHint, c.cfg.PreWrapFileExtensions, tempDir); err != nil {
		c.logger.WithError(err).Warn("html2pdf: pre-wrap pass failed, skipping")
	} else if changed {
		current = next
	}

	if c.cfg.SanitizeHTML {
		if next, changed, err := preprocess.Sanitize(current, preprocess.NewDefaultPolicy(), tempDir, c.logger); err != nil {
			c.logger.WithError(err).Warn("html2pdf: sanitize pass failed, skipping")
		} else if changed {
			current = next
		}
	}

	if next, changed, err := preprocess.FitPageToContent(current, tempDir); err != nil {
		// fit-page-to-content only applies to local files; a remote
		// input is expected to error here and is silently skipped.
	} else if changed {
		current = next
	}

	if c.cfg.ImageResize && c.cache != nil {
		opts := preprocess.ImageOptions{
			BaseURL:    uri,
			Blacklist:  c.cfg.URLBlacklist,
			MaxWidthPx: 0,
		}
		if next, changed, err := preprocess.ValidateImages(current, c.cache, opts, tempDir); err != nil {
			c.logger.WithError(err).Warn("html2pdf: image-validate pass failed, skipping")
		} else if changed {
			current = next
		}
	}

	return current, nil
}

func (c *Converter) launchBrowser(ctx context.Context) (*devtools.Session, *browser.Process, error) {
	execPath := c.cfg.ChromiumLocation
	if execPath == "" {
		path, err := browser.Locate("")
		if err != nil {
			return nil, nil, err
		}
		execPath = path
	}

	opts := c.browserOptions()
	if c.cfg.PortRangeLow > 0 {
		port, err := browser.AllocatePort(c.cfg.PortRangeLow, c.cfg.PortRangeHigh)
		if err != nil {
			return nil, nil, err
		}
		opts.Port = port
	}

	proc, err := browser.Start(ctx, execPath, opts)
	if err != nil {
		return nil, nil, err
	}
	target, err := devtools.NewTarget(ctx, proc.Endpoint())
	if err != nil {
		proc.Close(nil)
		return nil, nil, err
	}
	sess, err := devtools.Open(ctx, target.WebSocketDebuggerURL, devtools.WithLogger(c.logger))
	if err != nil {
		proc.Close(nil)
		return nil, nil, err
	}
	return sess, proc, nil
}

func (c *Converter) browserOptions() browser.Options {
	return browser.Options{
		DisableGPU: c.cfg.DisableGPU,
		NoSandbox:  c.cfg.NoSandbox,
		ExtraFlags: c.extraFlags(),
		Logger:     c.logger,
	}
}

// extraFlags translates the accumulated proxy/user-agent/window-size
// options into Chrome command-line flags, since browser.Process has no
// dedicated fields for them (those are C9-level concerns the teacher's
// launcher never had to express).
func (c *Converter) extraFlags() []string {
	var flags []string
	if c.cfg.UserAgent != "" {
		flags = append(flags, "--user-agent="+c.cfg.UserAgent)
	}
	if c.cfg.ProxyServer != "" {
		flags = append(flags, "--proxy-server="+c.cfg.ProxyServer)
	}
	if c.cfg.ProxyBypassList != "" {
		flags = append(flags, "--proxy-bypass-list="+c.cfg.ProxyBypassList)
	}
	if c.cfg.ProxyPACURL != "" {
		flags = append(flags, "--proxy-pac-url="+c.cfg.ProxyPACURL)
	}
	if c.cfg.WindowWidth > 0 && c.cfg.WindowHeight > 0 {
		flags = append(flags, fmt.Sprintf("--window-size=%d,%d", c.cfg.WindowWidth, c.cfg.WindowHeight))
	}
	if c.cfg.IgnoreCertificateErrors {
		flags = append(flags, "--ignore-certificate-errors")
	}
	if c.cfg.EnableChromiumLogging {
		flags = append(flags, "--enable-logging", "--v=1")
	}
	if c.cfg.DisableCrashReporter {
		flags = append(flags, "--disable-crash-reporter")
	}
	// BasicAuthUser/Pass are not Chrome CLI flags (Chromium has no
	// "--user"/"--password" switch); they take effect via
	// convert.EnableBasicAuth's Network.setExtraHTTPHeaders call instead.
	return flags
}
