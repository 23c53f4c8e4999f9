package browser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultStartupTimeout bounds how long Process.Start waits for the
// DevTools endpoint announcement before failing with
// ErrBrowserLaunchFailed.
const DefaultStartupTimeout = 30 * time.Second

// DefaultShutdownTimeout bounds the graceful-shutdown grace period before
// Process falls back to signal-based termination.
const DefaultShutdownTimeout = 5 * time.Second

// mandatoryFlags are appended to every launch regardless of user
// configuration, following Puppeteer/chromedp's defaults.
var mandatoryFlags = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-sync",
	"--disable-translate",
	"--disable-background-networking",
	"--disable-extensions",
	"--disable-default-apps",
	"--disable-client-side-phishing-detection",
	"--disable-hang-monitor",
	"--disable-prompt-on-repost",
	"--disable-backgrounding-occluded-windows",
	"--disable-renderer-backgrounding",
	"--metrics-recording-only",
	"--mute-audio",
	"--hide-scrollbars",
}

// Options configures a single browser launch.
type Options struct {
	// ExecPath overrides the located binary (see Locate). Optional.
	ExecPath string

	// Port is the preferred remote-debugging port; 0 lets Chrome pick one
	// and announce it on stderr.
	Port int

	// DisableGPU, NoSandbox mirror the eponymous Chrome flags. NoSandbox
	// defaults to true when running as root (os.Getuid() == 0), per
	// spec §4.3.
	DisableGPU bool
	NoSandbox  bool

	// ExtraFlags are appended verbatim after the mandatory set.
	ExtraFlags []string

	// StartupTimeout, ShutdownTimeout override the package defaults.
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration

	Logger *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// Process is a launched, monitored browser child process. It implements
// C3 of the spec: launch, stderr-scan for readiness, and graceful or
// forced shutdown.
type Process struct {
	cmd         *exec.Cmd
	userDataDir string
	endpoint    string // ws://host:port/devtools/browser/<id>

	closingGracefully chan struct{}
	closed            chan struct{}
	closeOnce         sync.Once

	opts Options
}

// Start launches the browser and blocks until its DevTools WebSocket
// endpoint has been announced on stderr, the process exits, or
// opts.StartupTimeout elapses (default DefaultStartupTimeout).
func Start(ctx context.Context, execPath string, opts Options) (*Process, error) {
	if opts.StartupTimeout == 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	userDataDir, err := os.MkdirTemp("", "html2pdf-profile-"+uuid.NewString())
	if err != nil {
		return nil, err
	}

	args := []string{"--headless=new", fmt.Sprintf("--remote-debugging-port=%d", opts.Port)}
	args = append(args, mandatoryFlags...)
	args = append(args, "--user-data-dir="+userDataDir)
	if opts.DisableGPU {
		args = append(args, "--disable-gpu")
	}
	if opts.NoSandbox || os.Getuid() == 0 {
		args = append(args, "--no-sandbox")
	}
	args = append(args, opts.ExtraFlags...)
	args = append(args, "about:blank")

	cmd := exec.CommandContext(ctx, execPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		os.RemoveAll(userDataDir)
		return nil, err
	}
	cmd.Stdout = io.Discard

	if err := cmd.Start(); err != nil {
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunchFailed, err)
	}

	p := &Process{
		cmd:               cmd,
		userDataDir:       userDataDir,
		closingGracefully: make(chan struct{}),
		closed:            make(chan struct{}),
		opts:              opts,
	}

	type result struct {
		endpoint string
		err      error
	}
	readyCh := make(chan result, 1)
	go func() {
		ep, err := scanForEndpoint(stderr)
		readyCh <- result{ep, err}
	}()

	select {
	case r := <-readyCh:
		if r.err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			os.RemoveAll(userDataDir)
			return nil, fmt.Errorf("%w: %v", ErrBrowserLaunchFailed, r.err)
		}
		p.endpoint = r.endpoint
	case <-time.After(opts.StartupTimeout):
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("%w: startup timeout after %s", ErrBrowserLaunchFailed, opts.StartupTimeout)
	case <-ctx.Done():
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(userDataDir)
		return nil, ctx.Err()
	}

	go func() {
		cmd.Wait()
		close(p.closed)
	}()

	return p, nil
}

// scanForEndpoint reads r looking for Chrome's
// "DevTools listening on ws://..." announcement.
func scanForEndpoint(r io.Reader) (string, error) {
	const prefix = "DevTools listening on "
	var accumulated bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		accumulated.WriteString(line)
		accumulated.WriteByte('\n')
		if idx := bytes.Index([]byte(line), []byte(prefix)); idx >= 0 {
			return line[idx+len(prefix):], nil
		}
	}
	return "", fmt.Errorf("chrome exited before announcing DevTools endpoint:\n%s", accumulated.String())
}

// Endpoint returns the ws:// URL of the browser-level DevTools target.
func (p *Process) Endpoint() string { return p.endpoint }

// UserDataDir returns the per-process profile directory.
func (p *Process) UserDataDir() string { return p.userDataDir }

// Done is closed when the child process has exited, whether cleanly or
// not. Callers use this to detect an unexpected exit (spec's "Closed
// event").
func (p *Process) Done() <-chan struct{} { return p.closed }

// Close requests graceful shutdown via closeFn (expected to send the
// DevTools Browser.close command), falling back to signal-based
// termination after opts.ShutdownTimeout. The user-data directory is
// removed once the process has exited, whether it closed gracefully or
// had to be killed.
func (p *Process) Close(closeFn func() error) error {
	var outerErr error
	p.closeOnce.Do(func() {
		close(p.closingGracefully)

		if closeFn != nil {
			_ = closeFn()
		}

		select {
		case <-p.closed:
		case <-time.After(p.opts.ShutdownTimeout):
			if p.cmd.Process != nil {
				p.cmd.Process.Kill()
			}
			<-p.closed
		}

		if err := os.RemoveAll(p.userDataDir); err != nil {
			outerErr = err
		}
	})
	return outerErr
}

// IsClosingGracefully reports whether Close has begun, used by callers
// that need to distinguish a requested shutdown from a crash (mirrors the
// teacher's closingGracefully channel in allocate.go).
func (p *Process) IsClosingGracefully() bool {
	select {
	case <-p.closingGracefully:
		return true
	default:
		return false
	}
}
