package backoff

import (
	"math/rand"
	"testing"
	"time"
)

func TestDelayFixed(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		max      time.Duration
		attempts int
		want     time.Duration
	}{
		{"base 5 max 10", 5 * time.Second, 10 * time.Second, 0, 5 * time.Second},
		{"many attempts", 5 * time.Second, 10 * time.Second, 100, 5 * time.Second},
		{"base exceeds max", 20 * time.Second, 10 * time.Second, 0, 10 * time.Second},
		{"zero base defaults to 1ms", 0, 10 * time.Second, 0, time.Millisecond},
		{"zero max equals base", 5 * time.Second, 0, 0, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delay(Fixed, tt.base, tt.max, tt.attempts, rand.New(rand.NewSource(42)))
			if got != tt.want {
				t.Errorf("Delay(fixed) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDelayLinear(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{"zero attempts", 0, 5 * time.Second},
		{"one attempt", 1, 5 * time.Second},
		{"three attempts", 3, 15 * time.Second},
		{"capped at max", 10, 20 * time.Second},
		{"negative attempts treated as zero", -1, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delay(Linear, 5*time.Second, 20*time.Second, tt.attempts, nil)
			if got != tt.want {
				t.Errorf("Delay(linear) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDelayExponential(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{"zero attempts", 0, time.Second},
		{"one attempt", 1, 2 * time.Second},
		{"three attempts", 3, 8 * time.Second},
		{"capped at max", 10, 8 * time.Second},
		{"huge attempt does not overflow", 500, 8 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delay(Exponential, time.Second, 8*time.Second, tt.attempts, nil)
			if got != tt.want {
				t.Errorf("Delay(exponential) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDelayJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for attempt := 0; attempt < 8; attempt++ {
		full := Delay(ExpFullJitter, 100*time.Millisecond, 2*time.Second, attempt, rng)
		if full < 0 || full > 2*time.Second {
			t.Errorf("full jitter attempt %d = %s out of range", attempt, full)
		}
		equal := Delay(ExpEqualJitter, 100*time.Millisecond, 2*time.Second, attempt, rng)
		ceiling := Delay(Exponential, 100*time.Millisecond, 2*time.Second, attempt, rng)
		if equal < ceiling/2 || equal > ceiling {
			t.Errorf("equal jitter attempt %d = %s, want in [%s, %s]", attempt, equal, ceiling/2, ceiling)
		}
	}
}

func TestDelayUnknownPolicyIsFullJitter(t *testing.T) {
	got := Delay("unknown_policy", 5*time.Second, time.Minute, 2, rand.New(rand.NewSource(42)))
	if got < 0 || got > 20*time.Second {
		t.Errorf("Delay(unknown) = %s, want within [0, 20s]", got)
	}
}
