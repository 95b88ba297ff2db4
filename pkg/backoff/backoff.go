package backoff

import "time"

// Backoff computes exponential retry delays capped at a configured maximum.
// Delivery retries use ForAttempt so the wait between attempts is a pure
// function of the attempt counter; Next/Reset cover callers that prefer to
// let the helper keep count.
type Backoff struct {
	base    time.Duration // delay before the second attempt
	max     time.Duration // cap applied to every computed delay
	attempt int           // counter used by Next
}

// New creates a backoff helper with base and max durations. A non-positive
// base falls back to one second; max is raised to base when smaller.
func New(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{
		base: base,
		max:  max,
	}
}

// ForAttempt returns the delay to sleep after the given attempt number has
// failed, starting at 1: attempt 1 waits base, attempt 2 waits 2*base,
// attempt 3 waits 4*base, doubling until the cap is reached.
func (b *Backoff) ForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.max {
			return b.max
		}
	}
	if delay > b.max {
		delay = b.max
	}
	return delay
}

// Next returns the delay for the current attempt and advances the internal
// counter, producing the same schedule as ForAttempt(1), ForAttempt(2), ...
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return b.ForAttempt(b.attempt)
}

// Reset sets the attempt counter back to zero so that the next call to Next
// returns the base delay again. Call it after a successful operation to
// restart the schedule.
func (b *Backoff) Reset() {
	b.attempt = 0
}
