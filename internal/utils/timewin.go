package utils

import (
	"fmt"
	"time"
)

// ParseClock parses an HH:MM:SS wall-clock string.
func ParseClock(clock string) (h, m, s int, err error) {
	if _, err = fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, 0, 0, fmt.Errorf("invalid clock %q", clock)
	}
	return h, m, s, nil
}

// CombineDateClock anchors a wall-clock string on a calendar date in the
// given zone.
func CombineDateClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, s, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, s, 0, loc), nil
}

// EndOfDay is 23:59:59 of the date in the given zone. Access windows that
// would cross midnight clamp here.
func EndOfDay(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 0, loc)
}
