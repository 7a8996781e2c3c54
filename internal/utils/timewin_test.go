package utils

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	h, m, s, err := ParseClock("06:30:15")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if h != 6 || m != 30 || s != 15 {
		t.Errorf("got %d:%d:%d, want 6:30:15", h, m, s)
	}

	for _, bad := range []string{"", "25:00:00", "10:61:00", "10:00:75", "nonsense"} {
		if _, _, _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) accepted invalid input", bad)
		}
	}
}

func TestCombineDateClock(t *testing.T) {
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	got, err := CombineDateClock(date, "08:15:00", time.UTC)
	if err != nil {
		t.Fatalf("CombineDateClock: %v", err)
	}
	want := time.Date(2026, 8, 24, 8, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := CombineDateClock(date, "not-a-clock", time.UTC); err == nil {
		t.Error("invalid clock must error")
	}
}

func TestEndOfDay(t *testing.T) {
	date := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	got := EndOfDay(date, time.UTC)
	want := time.Date(2026, 8, 24, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
