package notify

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with 10% jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}
