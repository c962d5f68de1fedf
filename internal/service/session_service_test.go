package service

import (
	"testing"
	"time"
)

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		durationMinutes int
		elapsed         time.Duration
		want            int
	}{
		{"just started", 10, 0, 600},
		{"halfway", 10, 5 * time.Minute, 300},
		{"one second left", 10, 9*time.Minute + 59*time.Second, 1},
		{"exactly expired", 10, 10 * time.Minute, 0},
		{"long past expiry clamps to zero", 10, time.Hour, 0},
		{"zero duration", 0, time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remainingSeconds(start, tt.durationMinutes, start.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("remainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
