package browser

import (
	"os"
	"os/exec"
	"path/filepath"
)

// candidateNames are the executable file names probed, in order, on every
// platform. Platform-specific absolute paths are appended by
// defaultCandidatePaths (see locator_unix.go, locator_darwin.go,
// locator_windows.go).
var candidateNames = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
	"chrome",
	"chrome.exe",
}

// Locate finds a Chromium-family binary.
//
// If hint is non-empty, it is used verbatim (after resolving it via
// exec.LookPath, to avoid a repeated lookup on every launch) and no probing
// is performed: an explicit override bypasses the search entirely, per
// spec.
//
// Otherwise it probes, in order: the directory of the running executable,
// candidateNames via $PATH, and the platform's well-known installation
// paths. The first path that exists wins.
func Locate(hint string) (string, error) {
	if hint != "" {
		if found, err := exec.LookPath(hint); err == nil {
			return found, nil
		}
		if fileExists(hint) {
			return hint, nil
		}
		return "", ErrBrowserNotFound
	}

	if self, err := os.Executable(); err == nil {
		dir := filepath.Dir(self)
		for _, name := range candidateNames {
			p := filepath.Join(dir, name)
			if fileExists(p) {
				return p, nil
			}
		}
	}

	for _, name := range candidateNames {
		if found, err := exec.LookPath(name); err == nil {
			return found, nil
		}
	}

	for _, p := range defaultCandidatePaths() {
		if fileExists(p) {
			return p, nil
		}
	}

	return "", ErrBrowserNotFound
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
