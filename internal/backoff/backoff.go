package backoff

import (
	"math"
	"math/rand"
	"time"
)

type Policy string

const (
	Fixed          Policy = "fixed"
	Linear         Policy = "linear"
	Exponential    Policy = "exponential"
	ExpEqualJitter Policy = "exp_equal_jitter"
	ExpFullJitter  Policy = "exp_full_jitter"
)

// Delay returns the wait before retry number attempt (0-based). base <= 0 means one millisecond and
// max <= 0 means base. Unknown policies behave like ExpFullJitter.
func Delay(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Millisecond
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	exp := func() time.Duration {
		f := float64(base) * math.Pow(2, float64(attempt))
		if f >= float64(max) {
			return max
		}
		return time.Duration(f)
	}
	switch policy {
	case Fixed:
		return min(base, max)
	case Linear:
		return min(base*time.Duration(maxInt(1, attempt)), max)
	case Exponential:
		return exp()
	case ExpEqualJitter:
		d := exp()
		half := d / 2
		return half + time.Duration(rng.Int63n(int64(d-half)+1))
	default:
		d := exp()
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
