package session

import "fmt"

// FormatTime renders an elapsed duration in seconds for display.
//
// Under an hour the format is M:SS with unpadded minutes; at an hour and
// above it is H:MM:SS with unpadded hours. Hours are not wrapped at 24:
// this is a total elapsed duration, not a clock. Negative input is clamped
// to "0:00".
func FormatTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 3600 {
		return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
