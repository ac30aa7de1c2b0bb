package worker

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 0, min: 2 * time.Second, max: 2*time.Second + 250*time.Millisecond},
		{attempt: 1, min: 4 * time.Second, max: 4*time.Second + 250*time.Millisecond},
		{attempt: 3, min: 16 * time.Second, max: 16*time.Second + 250*time.Millisecond},
		// far past the cap
		{attempt: 20, min: 5 * time.Minute, max: 5*time.Minute + 250*time.Millisecond},
	}

	for _, tt := range tests {
		got := ExponentialBackoff(tt.attempt)

		if got < tt.min || got > tt.max {
			t.Fatalf("attempt %d: got %v, want within [%v, %v]", tt.attempt, got, tt.min, tt.max)
		}
	}
}
