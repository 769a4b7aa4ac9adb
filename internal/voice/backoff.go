package voice

import "time"

// Backoff yields exponentially growing delays capped at Max
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	attempts int
}

// NewBackoff creates a backoff starting at base and capped at max
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

// Next returns the delay for the next consecutive failure
func (b *Backoff) Next() time.Duration {
	delay := b.Base
	for i := 0; i < b.attempts && delay < b.Max; i++ {
		delay *= 2
	}
	if delay > b.Max {
		delay = b.Max
	}
	b.attempts++
	return delay
}

// Reset returns the backoff to its base delay
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts is the number of consecutive failures seen since the last reset
func (b *Backoff) Attempts() int {
	return b.attempts
}
