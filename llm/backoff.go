package llm

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter. Only the provider
// client backs off exponentially; the engine's step retry uses a fixed
// delay.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultBackoff returns the provider retry schedule: 1s initial, doubling,
// capped at 30s, with jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay returns the wait before the given attempt (attempt >= 1).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(max) {
		delay = float64(max)
	}
	if b.Jitter {
		// ±25% to spread simultaneous retries apart.
		delay += (rand.Float64()*2 - 1) * delay * 0.25
	}
	if delay < float64(initial) {
		delay = float64(initial)
	}
	return time.Duration(delay)
}
