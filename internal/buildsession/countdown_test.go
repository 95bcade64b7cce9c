package buildsession

import (
	"testing"
	"time"
)

func TestCountdownRemaining(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cd := NewCountdown(start, 120)

	tests := []struct {
		at   time.Time
		want int
	}{
		{start, 120},
		{start.Add(30 * time.Second), 90},
		{start.Add(119 * time.Second), 1},
		// A partial second still counts as usable time.
		{start.Add(119*time.Second + 500*time.Millisecond), 1},
		{start.Add(120 * time.Second), 0},
		{start.Add(10 * time.Minute), 0},
	}
	for _, tt := range tests {
		if got := cd.Remaining(tt.at); got != tt.want {
			t.Errorf("Remaining(+%v) = %d, want %d", tt.at.Sub(start), got, tt.want)
		}
	}
}

func TestCountdownDeadline(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cd := NewCountdown(start, 90)

	if want := start.Add(90 * time.Second); !cd.Deadline().Equal(want) {
		t.Errorf("Deadline() = %v, want %v", cd.Deadline(), want)
	}
}
