package utils

import (
	"fmt"
	"time"
)

// WithinClockWindow reports whether t falls inside the [start, end] clock
// window, both given as "15:04" strings interpreted in t's location.
func WithinClockWindow(t time.Time, start, end string) (bool, error) {
	startMin, err := clockMinutes(start)
	if err != nil {
		return false, fmt.Errorf("parsing window start: %w", err)
	}
	endMin, err := clockMinutes(end)
	if err != nil {
		return false, fmt.Errorf("parsing window end: %w", err)
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= startMin && minutes <= endMin, nil
}

func clockMinutes(clock string) (int, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
