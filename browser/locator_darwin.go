//go:build darwin

package browser

// defaultCandidatePaths are the well-known absolute install locations on
// macOS, including the .app bundle layouts spec §4.1 calls out explicitly.
func defaultCandidatePaths() []string {
	return []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	}
}
