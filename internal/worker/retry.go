package worker

import (
	"math"
	"time"
)

// RetryPolicy is the exponential backoff applied to failing export jobs.
// Zero values fall back to sane defaults so RetryPolicy{} is usable.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the backoff for a given attempt (1-based), clamped to
// MaxDelay when one is set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
