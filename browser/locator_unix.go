//go:build linux || freebsd || netbsd || openbsd

package browser

// defaultCandidatePaths are the well-known absolute install locations
// consulted after $PATH comes up empty. Split by build tag to mirror the
// teacher's runner/path_unix.go / path_darwin.go / path_windows.go layout.
func defaultCandidatePaths() []string {
	return []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		"/opt/google/chrome/chrome",
	}
}
