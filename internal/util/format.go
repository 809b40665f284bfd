package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatCount renders an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatBytes renders a byte size for humans (e.g. "1.2 MB")
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatRate renders a per-second rate with one decimal
func FormatRate(perSecond float64) string {
	return humanize.FormatFloat("#,###.#", perSecond)
}

// FormatETA renders a remaining-time estimate rounded to the second.
// Negative or unknown estimates render as "--".
func FormatETA(d time.Duration) string {
	if d < 0 {
		return "--"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
