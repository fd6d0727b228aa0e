package utils

import "fmt"

// FormatDuration renders a duration in whole seconds as HH:MM:SS, the format
// playback devices expect in manifests and playlist files.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FileStem returns the filename without its terminal extension.
func FileStem(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
		if filename[i] == '/' {
			break
		}
	}
	return filename
}
