//go:build windows

package browser

import (
	"os"
	"path/filepath"
)

// defaultCandidatePaths are the well-known absolute install locations on
// Windows, including the per-user AppData layout.
func defaultCandidatePaths() []string {
	return []string{
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
		filepath.Join(os.Getenv("LOCALAPPDATA"), `Google\Chrome\Application\chrome.exe`),
		filepath.Join(os.Getenv("USERPROFILE"), `AppData\Local\Google\Chrome\Application\chrome.exe`),
	}
}
