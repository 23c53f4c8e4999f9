// Command html2pdf is a thin CLI adapter over the html2pdf package
// (C9): it parses the flag table in spec §6, builds a Config, and
// drives either a single conversion or a list-mode batch.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcast/html2pdf"
	"github.com/pdfcast/html2pdf/convert"
	"github.com/pdfcast/html2pdf/workerpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "html2pdf",
		Short:         "Render a URL or HTML file to PDF via headless Chromium",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "URL, file path, or list file (required)")
	flags.Bool("input-is-list", false, "treat --input as a line-delimited list (URL|outputPath per line)")
	flags.String("output", "", "destination PDF path, or results log path in list mode (required)")

	flags.Bool("landscape", false, "landscape orientation")
	flags.Bool("display-headerfooter", false, "render header/footer templates")
	flags.Bool("print-background", false, "print CSS backgrounds")
	flags.Bool("no-margins", false, "zero all margins")
	flags.Float64("scale", 1.0, "print scale factor")
	flags.Float64("paper-width", 8.5, "paper width in inches")
	flags.Float64("paper-height", 11, "paper height in inches")
	flags.Float64("margin-top", 0.4, "top margin in inches")
	flags.Float64("margin-bottom", 0.4, "bottom margin in inches")
	flags.Float64("margin-left", 0.4, "left margin in inches")
	flags.Float64("margin-right", 0.4, "right margin in inches")
	flags.String("paper-format", "", "named paper format (overrides width/height)")
	flags.String("window-size", "", "WxH browser window size")

	flags.String("pageranges", "", "page range selection, e.g. 1-3,5")
	flags.Bool("ignore-invalid-pageranges", false, "silently drop invalid page ranges instead of failing")

	flags.String("chromium-location", "", "path to the Chromium/Chrome binary")
	flags.String("chromium-userprofile", "", "user data directory (not applied: every launch uses a fresh temporary profile)")
	flags.String("portrange", "9222-9322", "DevTools port search space, N[-M]")

	flags.String("proxy-server", "", "proxy server")
	flags.String("proxy-bypass-list", "", "proxy bypass list")
	flags.String("proxy-pac-url", "", "proxy auto-config URL")
	flags.String("user", "", "HTTP basic auth user")
	flags.String("password", "", "HTTP basic auth password")

	flags.Bool("multi-threading", false, "enable the worker pool for list-mode input")
	flags.Int("max-concurrency-level", 0, "worker pool size (0 = NumCPU)")

	flags.String("wait-for-window-status", "", "poll window.status for this value before printing")
	flags.Duration("wait-for-window-status-timeout", 0, "timeout for --wait-for-window-status")
	flags.Duration("timeout", 30*time.Second, "overall conversion timeout")
	flags.Duration("media-load-timeout", 0, "additional wait after DOMContentLoaded for media")
	flags.Duration("web-socket-timeout", 30*time.Second, "per-command DevTools timeout (not applied: sessions use the 30s default)")
	flags.Bool("wait-for-network-idle", false, "wait for networkIdle before printing")
	flags.Duration("image-load-timeout", 0, "per-image fetch timeout (not applied)")

	flags.StringSlice("pre-wrap-file-extensions", []string{".txt", ".log"}, "extensions pre-wrapped as monospace HTML")
	flags.String("encoding", "", "override encoding detection (not applied: the encoding is always detected)")
	flags.Bool("image-resize", false, "fetch <img> sources through the cache and rewrite them to local files (images are not downscaled)")
	flags.Bool("image-rotate", false, "no effect: EXIF rotation is always applied to images rewritten by --image-resize")
	flags.Bool("sanitize-html", false, "run the HTML sanitizer pass")
	flags.Bool("run-javascript", false, "no effect: the CLI supplies no script to evaluate")
	flags.StringSlice("url-blacklist", nil, "glob patterns of image and request URLs to block")
	flags.Bool("enable-network-logging", false, "log Network.* DevTools events at debug level")
	flags.Bool("snapshot", false, "also capture an MHTML snapshot (the snapshot is not written to any file)")

	flags.Bool("disk-cache-disabled", false, "disable the C7 HTTP fetch cache")
	flags.String("disk-cache-directory", "", "C7 cache root (default: a temp directory)")
	flags.Int64("disk-cache-size", 256<<20, "C7 cache size threshold in bytes")

	flags.String("logfile", "", "log sink path, supports {PID},{DATE},{TIME}")

	flags.Bool("no-sandbox", false, "pass --no-sandbox to Chromium")
	flags.Bool("enable-chromium-logging", false, "forward Chromium's own logging")
	flags.Bool("disable-gpu", false, "pass --disable-gpu to Chromium")
	flags.Bool("ignore-certificate-errors", false, "pass --ignore-certificate-errors to Chromium")
	flags.Bool("disable-crash-reporter", false, "pass --disable-crash-reporter to Chromium")

	_ = v.BindPFlags(flags)
	return cmd
}

func runConvert(cmd *cobra.Command, v *viper.Viper) error {
	input := v.GetString("input")
	output := v.GetString("output")
	if input == "" || output == "" {
		return fmt.Errorf("html2pdf: --input and --output are required")
	}

	logger := newLogger(v.GetString("logfile"))

	cfg, err := buildConfig(v)
	if err != nil {
		return err
	}
	conv, err := html2pdf.NewConverter(cfg)
	if err != nil {
		return err
	}
	defer conv.Close()

	ps, err := buildPageSettings(v)
	if err != nil {
		return err
	}
	wait := buildWaitOptions(v)

	ctx := context.Background()

	if v.GetBool("input-is-list") {
		return runListMode(ctx, conv, input, output, ps, wait, logger)
	}
	return runSingle(ctx, conv, input, output, ps, wait)
}

func runSingle(ctx context.Context, conv *html2pdf.Converter, input, output string, ps convert.PageSettings, wait convert.WaitOptions) error {
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	in := convert.ConvertInput{URI: normalizeURI(input)}
	return conv.Convert(ctx, in, ps, wait, f)
}

func runListMode(ctx context.Context, conv *html2pdf.Converter, listPath, resultsLog string, ps convert.PageSettings, wait convert.WaitOptions, logger *logrus.Logger) error {
	lines, err := readLines(listPath)
	if err != nil {
		return err
	}

	items := make([]*workerpool.ConversionItem, 0, len(lines))
	for i, line := range lines {
		uri, out := parseListLine(line, i)
		items = append(items, &workerpool.ConversionItem{Input: normalizeURI(uri), Output: out})
	}

	results, err := conv.ConvertBatch(ctx, items, ps, wait)
	if err != nil {
		return err
	}

	logf, err := os.Create(resultsLog)
	if err != nil {
		return err
	}
	defer logf.Close()

	failed := false
	for _, item := range results {
		status := "OK"
		if item.Err != nil {
			status = item.Err.Error()
			failed = true
		}
		fmt.Fprintf(logf, "%s\t%s\t%s\n", item.Input, item.Output, status)
	}
	if failed {
		return fmt.Errorf("html2pdf: one or more list-mode conversions failed, see %s", resultsLog)
	}
	return nil
}

// parseListLine splits a "URL|outputPath" line (spec §6); a line with
// no '|' gets a generated outputPath based on its position.
func parseListLine(line string, index int) (uri, out string) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return line, fmt.Sprintf("output-%d.pdf", index)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func normalizeURI(in string) string {
	if strings.Contains(in, "://") {
		return in
	}
	return "file://" + in
}

func newLogger(logfile string) *logrus.Logger {
	logger := logrus.StandardLogger()
	if logfile == "" {
		return logger
	}
	path := expandLogfileWildcards(logfile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.WithError(err).Warn("html2pdf: could not open --logfile, logging to stderr")
		return logger
	}
	logger.SetOutput(f)
	return logger
}

func expandLogfileWildcards(path string) string {
	now := time.Now()
	r := strings.NewReplacer(
		"{PID}", strconv.Itoa(os.Getpid()),
		"{DATE}", now.Format("2006-01-02"),
		"{TIME}", now.Format("150405"),
	)
	return r.Replace(path)
}

func buildConfig(v *viper.Viper) (html2pdf.Config, error) {
	cfg := html2pdf.DefaultConfig()
	cfg.ChromiumLocation = v.GetString("chromium-location")
	cfg.ChromiumUserProfile = v.GetString("chromium-userprofile")
	cfg.ProxyServer = v.GetString("proxy-server")
	cfg.ProxyBypassList = v.GetString("proxy-bypass-list")
	cfg.ProxyPACURL = v.GetString("proxy-pac-url")
	cfg.BasicAuthUser = v.GetString("user")
	cfg.BasicAuthPass = v.GetString("password")
	cfg.MultiThreading = v.GetBool("multi-threading")
	cfg.MaxConcurrencyLevel = v.GetInt("max-concurrency-level")
	cfg.WaitForWindowStatus = v.GetString("wait-for-window-status")
	cfg.WaitForWindowStatusTimeout = v.GetDuration("wait-for-window-status-timeout")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.MediaLoadTimeout = v.GetDuration("media-load-timeout")
	cfg.WebSocketTimeout = v.GetDuration("web-socket-timeout")
	cfg.WaitForNetworkIdle = v.GetBool("wait-for-network-idle")
	cfg.ImageLoadTimeout = v.GetDuration("image-load-timeout")
	cfg.PreWrapFileExtensions = v.GetStringSlice("pre-wrap-file-extensions")
	cfg.Encoding = v.GetString("encoding")
	cfg.ImageResize = v.GetBool("image-resize")
	cfg.ImageRotate = v.GetBool("image-rotate")
	cfg.SanitizeHTML = v.GetBool("sanitize-html")
	cfg.RunJavaScript = v.GetBool("run-javascript")
	cfg.URLBlacklist = v.GetStringSlice("url-blacklist")
	cfg.NetworkLogging = v.GetBool("enable-network-logging")
	cfg.Snapshot = v.GetBool("snapshot")
	cfg.DiskCacheDisabled = v.GetBool("disk-cache-disabled")
	cfg.DiskCacheDir = v.GetString("disk-cache-directory")
	cfg.DiskCacheSize = v.GetInt64("disk-cache-size")
	cfg.NoSandbox = v.GetBool("no-sandbox")
	cfg.EnableChromiumLogging = v.GetBool("enable-chromium-logging")
	cfg.DisableGPU = v.GetBool("disable-gpu")
	cfg.IgnoreCertificateErrors = v.GetBool("ignore-certificate-errors")
	cfg.DisableCrashReporter = v.GetBool("disable-crash-reporter")

	low, high, err := parsePortRange(v.GetString("portrange"))
	if err != nil {
		return cfg, err
	}
	cfg.PortRangeLow, cfg.PortRangeHigh = low, high

	if ws := v.GetString("window-size"); ws != "" {
		w, h, err := parseWindowSize(ws)
		if err != nil {
			return cfg, err
		}
		cfg.WindowWidth, cfg.WindowHeight = w, h
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parsePortRange(s string) (low, high int, err error) {
	parts := strings.SplitN(s, "-", 2)
	low, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("html2pdf: invalid --portrange %q: %w", s, err)
	}
	if len(parts) == 1 {
		return low, low, nil
	}
	high, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("html2pdf: invalid --portrange %q: %w", s, err)
	}
	return low, high, nil
}

func parseWindowSize(s string) (w, h int, err error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("html2pdf: invalid --window-size %q, want WxH", s)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("html2pdf: invalid --window-size %q: %w", s, err)
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("html2pdf: invalid --window-size %q: %w", s, err)
	}
	return w, h, nil
}

func buildPageSettings(v *viper.Viper) (convert.PageSettings, error) {
	ps := convert.DefaultPageSettings()
	if v.GetBool("landscape") {
		ps.Orientation = convert.Landscape
	}
	ps.DisplayHeaderFooter = v.GetBool("display-headerfooter")
	ps.PrintBackground = v.GetBool("print-background")
	ps.Scale = v.GetFloat64("scale")
	ps.PaperWidth = v.GetFloat64("paper-width")
	ps.PaperHeight = v.GetFloat64("paper-height")

	if v.GetBool("no-margins") {
		ps.MarginTop, ps.MarginBottom, ps.MarginLeft, ps.MarginRight = 0, 0, 0, 0
	} else {
		ps.MarginTop = v.GetFloat64("margin-top")
		ps.MarginBottom = v.GetFloat64("margin-bottom")
		ps.MarginLeft = v.GetFloat64("margin-left")
		ps.MarginRight = v.GetFloat64("margin-right")
	}

	if format := v.GetString("paper-format"); format != "" {
		pf, err := parsePaperFormat(format)
		if err != nil {
			return ps, err
		}
		ps.PaperFormat = pf
	} else {
		ps.PaperFormat = convert.FormatCustom
	}

	ps.PageRanges = v.GetString("pageranges")
	ps.IgnoreInvalidPageRanges = v.GetBool("ignore-invalid-pageranges")
	ps.MHTML = v.GetBool("snapshot")

	return ps, nil
}

func parsePaperFormat(s string) (convert.PaperFormat, error) {
	switch strings.ToLower(s) {
	case "letter":
		return convert.FormatLetter, nil
	case "legal":
		return convert.FormatLegal, nil
	case "tabloid":
		return convert.FormatTabloid, nil
	case "ledger":
		return convert.FormatLedger, nil
	case "a0":
		return convert.FormatA0, nil
	case "a1":
		return convert.FormatA1, nil
	case "a2":
		return convert.FormatA2, nil
	case "a3":
		return convert.FormatA3, nil
	case "a4":
		return convert.FormatA4, nil
	case "a5":
		return convert.FormatA5, nil
	case "a6":
		return convert.FormatA6, nil
	case "fitpagetocontent", "fit-page-to-content":
		return convert.FormatFitPageToContent, nil
	default:
		return convert.FormatCustom, fmt.Errorf("html2pdf: unknown --paper-format %q", s)
	}
}

func buildWaitOptions(v *viper.Viper) convert.WaitOptions {
	var w convert.WaitOptions
	switch {
	case v.GetString("wait-for-window-status") != "":
		w.Mode = convert.WaitForWindowStatus
		w.WindowStatusValue = v.GetString("wait-for-window-status")
		w.WindowStatusTimeout = v.GetDuration("wait-for-window-status-timeout")
	case v.GetBool("wait-for-network-idle"):
		w.Mode = convert.WaitForNetworkIdle
	case v.GetDuration("media-load-timeout") > 0:
		w.Mode = convert.WaitMediaLoadTimeout
		w.MediaLoadTimeout = v.GetDuration("media-load-timeout")
	default:
		w.Mode = convert.WaitDefault
	}
	return w
}
