package monitor

import "time"

// Backoff yields exponential retry delays: min(base * 2^n, max) for the
// n-th consecutive failure. Not safe for concurrent use; the poll loop owns
// one per run.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	failures int
}

// Next records a failure and returns the delay to wait before retrying.
// The first call returns Base, then doubles per call, capped at Max.
func (b *Backoff) Next() time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = time.Minute
	}

	d := base
	for i := 0; i < b.failures; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	b.failures++
	if d > max {
		d = max
	}
	return d
}

// Reset clears the failure count after a successful attempt.
func (b *Backoff) Reset() { b.failures = 0 }

// Failures returns the number of consecutive failures recorded so far.
func (b *Backoff) Failures() int { return b.failures }
