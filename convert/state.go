package convert

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	cdpio "github.com/chromedp/cdproto/io"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/pdfcast/html2pdf/devtools"
	"github.com/sirupsen/logrus"
)

// ConvertInput is spec §3's ConvertInput: a URI plus an optional encoding
// hint and extra request headers. Immutable once built.
type ConvertInput struct {
	URI      string
	Encoding string
	Headers  map[string]string

	// Referrer and JavaScript supplement spec §3's data model
	// (SPEC_FULL §5): Referrer feeds Page.navigate's referrer parameter,
	// JavaScript is the optional user script run in the Scripted state.
	Referrer   string
	JavaScript string
}

// isFileInput reports whether in targets a local file, used to pick the
// WaitDefault behavior (spec §4.5).
func (in ConvertInput) isFileInput() bool {
	return strings.HasPrefix(in.URI, "file://") || !strings.Contains(in.URI, "://")
}

// state names the conversion state machine's nodes (spec §4.5's diagram),
// used only for logging/diagnostics — transitions are driven by plain
// sequential code, not a table, matching the teacher's style of encoding
// protocol sequences as straight-line Go rather than a generic FSM
// library.
type state int

const (
	stateInit state = iota
	stateDomainsEnabled
	stateNavigating
	stateLoaded
	stateScripted
	statePrinting
	stateDone
)

// Result is the outcome of a successful Run: the number of PDF bytes
// streamed, and whether an MHTML sibling was also captured.
type Result struct {
	PDFBytes   int64
	CapturedMHTML bool
}

// Run drives sess through one full conversion of in into pdfOut (and,
// when ps.MHTML is set, mhtmlOut) honoring wait and the overall timeout.
// urlBlacklist, when non-empty, blocks matching request URLs for the
// duration of the conversion (spec §4.6/§6; in.URI itself is always
// allowed). networkLogging, when true, forwards Network.* events to
// logger at debug level (SPEC_FULL §6.5). basicAuthUser, when non-empty,
// attaches a preemptive HTTP Basic Authorization header built from
// basicAuthUser/basicAuthPass to every request. A non-nil error is one
// of this package's Error values (possibly wrapped), a
// *devtools.ChromiumError, a devtools or context error passed through
// from the session, or a plain error from page-settings validation,
// page-range parsing or reply decoding; the caller's Session remains
// reusable unless the error wraps devtools.ErrConnectionClosed.
func Run(ctx context.Context, sess *devtools.Session, in ConvertInput, ps PageSettings, wait WaitOptions, timeout time.Duration, urlBlacklist []string, networkLogging bool, basicAuthUser, basicAuthPass string, pdfOut io.Writer, mhtmlOut io.Writer, logger *logrus.Logger) (Result, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st := stateInit
	logf := func(format string, args ...interface{}) {
		logger.WithField("state", st).Debugf(format, args...)
	}

	if err := ps.Resolve(); err != nil {
		return Result{}, err
	}
	pageRanges, err := parsePageRanges(ps.PageRanges, ps.IgnoreInvalidPageRanges)
	if err != nil {
		return Result{}, err
	}

	if _, err := sess.Send(cctx, cdproto.MethodType("Page.enable"), &page.EnableParams{}); err != nil {
		return Result{}, wrapTimeout(err)
	}
	// Page.enable alone does not turn on Page.lifecycleEvent frames; Await's
	// DOMContentLoaded/networkIdle/media-load-timeout wait modes all block
	// on them, so they must be explicitly switched on here.
	if _, err := sess.Send(cctx, cdproto.MethodType("Page.setLifecycleEventsEnabled"), &page.SetLifecycleEventsEnabledParams{Enabled: true}); err != nil {
		return Result{}, wrapTimeout(err)
	}
	st = stateDomainsEnabled
	logf("domains enabled")

	if len(urlBlacklist) > 0 {
		unblock, err := EnableURLBlocking(cctx, sess, NewURLBlacklist(urlBlacklist, in.URI))
		if err != nil {
			return Result{}, wrapTimeout(err)
		}
		defer unblock()
	}
	if networkLogging {
		unlog, err := EnableNetworkLogging(cctx, sess, logger)
		if err != nil {
			return Result{}, wrapTimeout(err)
		}
		defer unlog()
	}
	if basicAuthUser != "" {
		if err := EnableBasicAuth(cctx, sess, basicAuthUser, basicAuthPass); err != nil {
			return Result{}, wrapTimeout(err)
		}
	}

	navParams := &page.NavigateParams{URL: in.URI}
	if in.Referrer != "" {
		navParams.Referrer = in.Referrer
	}
	raw, err := sess.Send(cctx, cdproto.MethodType("Page.navigate"), navParams)
	if err != nil {
		return Result{}, wrapTimeout(err)
	}
	st = stateNavigating
	var navResult page.NavigateReturns
	if err := json.Unmarshal(raw, &navResult); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}
	if navResult.ErrorText != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrNavigationFailed, navResult.ErrorText)
	}

	if err := Await(cctx, sess, wait, in.isFileInput()); err != nil {
		if err == context.DeadlineExceeded {
			return Result{}, ErrNavigationTimeout
		}
		return Result{}, err
	}
	st = stateLoaded
	logf("load condition satisfied")

	if in.JavaScript != "" {
		evalRaw, err := sess.Send(cctx, cdproto.MethodType("Runtime.evaluate"), &runtime.EvaluateParams{
			Expression: in.JavaScript,
		})
		if err != nil {
			return Result{}, wrapTimeout(err)
		}
		var evalResult runtime.EvaluateReturns
		if err := json.Unmarshal(evalRaw, &evalResult); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrScriptFailed, err)
		}
		if evalResult.ExceptionDetails != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrScriptFailed, evalResult.ExceptionDetails.Text)
		}
	}
	st = stateScripted

	var result Result
	if ps.MHTML && mhtmlOut != nil {
		snapRaw, err := sess.Send(cctx, cdproto.MethodType("Page.captureSnapshot"), &page.CaptureSnapshotParams{
			Format: page.CaptureSnapshotFormatMhtml,
		})
		if err != nil {
			return Result{}, wrapTimeout(err)
		}
		var snap page.CaptureSnapshotReturns
		if err := json.Unmarshal(snapRaw, &snap); err != nil {
			return Result{}, fmt.Errorf("convert: mhtml decode: %w", err)
		}
		if _, err := io.WriteString(mhtmlOut, snap.Data); err != nil {
			return Result{}, fmt.Errorf("convert: mhtml write: %w", err)
		}
		result.CapturedMHTML = true
	}

	printParams := &page.PrintToPDFParams{
		Landscape:               ps.landscape(),
		DisplayHeaderFooter:     ps.DisplayHeaderFooter,
		PrintBackground:         ps.PrintBackground,
		Scale:                   ps.Scale,
		PaperWidth:              ps.PaperWidth,
		PaperHeight:             ps.PaperHeight,
		MarginTop:               ps.MarginTop,
		MarginBottom:            ps.MarginBottom,
		MarginLeft:              ps.MarginLeft,
		MarginRight:             ps.MarginRight,
		PageRanges:              pageRanges,
		HeaderTemplate:          ps.HeaderTemplate,
		FooterTemplate:          ps.FooterTemplate,
		PreferCSSPageSize:       ps.PreferCSSPageSize,
		TransferMode:            page.PrintToPDFTransferModeReturnAsStream,
		GenerateTaggedPDF:       ps.GenerateTaggedPDF,
		GenerateDocumentOutline: ps.GenerateOutline,
	}
	printRaw, err := sess.Send(cctx, cdproto.MethodType("Page.printToPDF"), printParams)
	if err != nil {
		return Result{}, wrapTimeout(err)
	}
	st = statePrinting
	var printResult page.PrintToPDFReturns
	if err := json.Unmarshal(printRaw, &printResult); err != nil {
		return Result{}, fmt.Errorf("convert: printToPDF decode: %w", err)
	}

	n, err := streamPDF(cctx, sess, printResult.Stream, pdfOut)
	if err != nil {
		return Result{}, err
	}
	result.PDFBytes = n
	st = stateDone
	logf("conversion complete, %d bytes", n)

	return result, nil
}

// streamPDF repeatedly issues IO.read(handle, size=64KiB) until eof=true,
// base64-decoding each chunk into out, then releases the stream with
// IO.close (spec §4.5).
func streamPDF(ctx context.Context, sess *devtools.Session, handle cdpio.StreamHandle, out io.Writer) (int64, error) {
	const chunkSize = 64 * 1024
	var total int64
	for {
		raw, err := sess.Send(ctx, cdproto.MethodType("IO.read"), &cdpio.ReadParams{
			Handle: handle,
			Size:   chunkSize,
		})
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrStreamReadFailed, err)
		}
		var chunk cdpio.ReadReturns
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return total, fmt.Errorf("%w: %v", ErrStreamReadFailed, err)
		}

		data := []byte(chunk.Data)
		if chunk.Base64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(chunk.Data)
			if err != nil {
				return total, fmt.Errorf("%w: %v", ErrStreamReadFailed, err)
			}
			data = decoded
		}
		if len(data) > 0 {
			n, err := out.Write(data)
			total += int64(n)
			if err != nil {
				return total, fmt.Errorf("%w: %v", ErrStreamReadFailed, err)
			}
		}
		if chunk.EOF {
			break
		}
	}

	if _, err := sess.Send(ctx, cdproto.MethodType("IO.close"), &cdpio.CloseParams{Handle: handle}); err != nil {
		// Non-fatal: the bytes are already written.
		return total, nil
	}
	return total, nil
}

func wrapTimeout(err error) error {
	if err == devtools.ErrTimeout || err == context.DeadlineExceeded {
		return ErrNavigationTimeout
	}
	return err
}
