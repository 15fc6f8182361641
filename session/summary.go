package session

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const PreviewLength = 85

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Preview returns the first n runes of text, with an ellipsis when cut.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "…"
}

// FormatDuration renders milliseconds as "42s" or "1m5s".
func FormatDuration(ms int64) string {
	secs := int64(math.Round(float64(ms) / 1000))
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

// FormatAge describes how long before now t was.
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
