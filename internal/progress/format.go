// Package progress renders transfer progress for chat messages and rate
// limits how often it is sent.
package progress

import (
	"fmt"
	"strings"
	"time"
)

const (
	barCells   = 10
	cellFilled = "▪"
	cellEmpty  = "▫"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders size bytes with two decimals in the largest 1024-based
// unit that keeps the value under 1024 (TB is the ceiling).
func FormatSize(size float64) string {
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[unit])
}

// Percent returns current/total as a percentage clamped to [0, 100].
// A zero total yields 0.
func Percent(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(current) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Render builds the multi-line progress text for one phase:
//
//	Downloading: 12.50%
//	[▪▫▫▫▫▫▫▫▫▫]
//	1.00 MB of 8.00 MB
//	Speed: 512.00 KB/sec
//	ETA: 14s
//
// A zero total short-circuits to "<label>: 0.00%".
func Render(label string, current, total int64, elapsed time.Duration) string {
	if total <= 0 {
		return fmt.Sprintf("%s: 0.00%%", label)
	}

	percentage := Percent(current, total)
	filled := int(percentage / (100 / barCells))
	if filled > barCells {
		filled = barCells
	}
	bar := strings.Repeat(cellFilled, filled) + strings.Repeat(cellEmpty, barCells-filled)

	var speed float64
	if current > 0 && elapsed > 0 {
		speed = float64(current) / elapsed.Seconds()
	}

	eta := "N/A"
	if speed > 0 {
		remaining := float64(total-current) / speed
		if remaining < 0 {
			remaining = 0
		}
		eta = fmt.Sprintf("%ds", int(remaining))
	}

	return fmt.Sprintf("%s: %.2f%%\n[%s]\n%s of %s\nSpeed: %s/sec\nETA: %s",
		label, percentage, bar, FormatSize(float64(current)), FormatSize(float64(total)),
		FormatSize(speed), eta)
}
