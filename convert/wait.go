package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/runtime"
	"github.com/pdfcast/html2pdf/devtools"
)

// WaitMode selects which of spec §4.5's wait conditions governs a
// conversion. Exactly one governs a given conversion; the global timeout
// passed to Run is an independent upper bound regardless of mode.
type WaitMode int

// WaitMode values. WaitDefault is the zero value and applies only when no
// other mode is selected; the others follow in priority order.
const (
	// WaitDefault succeeds on Page.loadEventFired for remote inputs and
	// on Page.lifecycleEvent{name=DOMContentLoaded} for file inputs.
	WaitDefault WaitMode = iota
	// WaitForWindowStatus polls Runtime.evaluate("window.status") at a
	// fixed cadence until it matches WindowStatusValue.
	WaitForWindowStatus
	// WaitForNetworkIdle succeeds on the first
	// Page.lifecycleEvent{name=networkIdle} after navigation.
	WaitForNetworkIdle
	// WaitMediaLoadTimeout waits at most MediaLoadTimeout past DOM
	// content loaded, then proceeds regardless.
	WaitMediaLoadTimeout
)

// windowStatusPollInterval is the cadence spec §4.5 mandates for the
// wait-for-window-status condition.
const windowStatusPollInterval = 10 * time.Millisecond

// WaitOptions configures which condition governs Await.
type WaitOptions struct {
	Mode WaitMode

	WindowStatusValue   string
	WindowStatusTimeout time.Duration

	MediaLoadTimeout time.Duration
}

// Await blocks until the configured wait condition is satisfied, ctx is
// cancelled, or the condition's own timeout elapses. isFileInput selects
// the WaitDefault behavior per spec §4.5.
func Await(ctx context.Context, sess *devtools.Session, opts WaitOptions, isFileInput bool) error {
	switch opts.Mode {
	case WaitForWindowStatus:
		return awaitWindowStatus(ctx, sess, opts.WindowStatusValue, opts.WindowStatusTimeout)
	case WaitForNetworkIdle:
		return awaitLifecycleEvent(ctx, sess, "networkIdle")
	case WaitMediaLoadTimeout:
		if err := awaitLifecycleEvent(ctx, sess, "DOMContentLoaded"); err != nil {
			return err
		}
		return awaitEventOrTimeout(ctx, sess, cdproto.MethodType("Page.loadEventFired"), opts.MediaLoadTimeout)
	default:
		if isFileInput {
			return awaitLifecycleEvent(ctx, sess, "DOMContentLoaded")
		}
		return awaitEvent(ctx, sess, cdproto.MethodType("Page.loadEventFired"))
	}
}

// awaitWindowStatus polls window.status at windowStatusPollInterval until
// it equals want or timeout elapses.
func awaitWindowStatus(ctx context.Context, sess *devtools.Session, want string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(windowStatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.Context().Done():
			return fmt.Errorf("%w while waiting for window.status", devtools.ErrConnectionClosed)
		case <-deadline:
			return ErrNavigationTimeout
		case <-ticker.C:
			params := &runtime.EvaluateParams{Expression: "window.status", ReturnByValue: true}
			raw, err := sess.Send(ctx, cdproto.MethodType("Runtime.evaluate"), params)
			if err != nil {
				continue
			}
			var res runtime.EvaluateReturns
			if err := json.Unmarshal(raw, &res); err != nil || res.Result == nil {
				continue
			}
			var status string
			if err := json.Unmarshal(res.Result.Value, &status); err != nil {
				continue
			}
			if status == want {
				return nil
			}
		}
	}
}

// awaitLifecycleEvent blocks until a Page.lifecycleEvent with the given
// name is observed.
func awaitLifecycleEvent(ctx context.Context, sess *devtools.Session, name string) error {
	type lifecycleEvent struct {
		Name string `json:"name"`
	}
	done := make(chan struct{}, 1)
	unsub := sess.Subscribe(cdproto.MethodType("Page.lifecycleEvent"), func(raw json.RawMessage) {
		var ev lifecycleEvent
		if json.Unmarshal(raw, &ev) == nil && ev.Name == name {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer unsub()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sess.Context().Done():
		return fmt.Errorf("%w while waiting for %s", devtools.ErrConnectionClosed, name)
	}
}

// awaitEvent blocks until any frame with the given method arrives.
func awaitEvent(ctx context.Context, sess *devtools.Session, method cdproto.MethodType) error {
	done := make(chan struct{}, 1)
	unsub := sess.Subscribe(method, func(json.RawMessage) {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer unsub()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sess.Context().Done():
		return fmt.Errorf("%w while waiting for %s", devtools.ErrConnectionClosed, method)
	}
}

// awaitEventOrTimeout is awaitEvent but proceeds regardless once timeout
// elapses, matching spec §4.5's media-load-timeout semantics ("then
// proceed regardless").
func awaitEventOrTimeout(ctx context.Context, sess *devtools.Session, method cdproto.MethodType, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	done := make(chan struct{}, 1)
	unsub := sess.Subscribe(method, func(json.RawMessage) {
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer unsub()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sess.Context().Done():
		return nil
	}
}
