package redpanda

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// AdaptivePoller spaces out fetch attempts while the broker keeps failing and
// snaps back once fetches succeed again.
type AdaptivePoller struct {
	mu                 sync.Mutex
	base               time.Duration
	min                time.Duration
	max                time.Duration
	factor             float64
	consecutiveFailure int
	jitter             func() float64
}

// NewAdaptivePoller returns a poller starting at base.
func NewAdaptivePoller(base time.Duration) *AdaptivePoller {
	if base <= 0 {
		base = time.Second
	}
	return &AdaptivePoller{
		base:   base,
		min:    250 * time.Millisecond,
		max:    10 * time.Second,
		factor: 1.5,
		jitter: rand.Float64,
	}
}

// NextInterval is the wait before the next fetch after a failed one.
func (ap *AdaptivePoller) NextInterval() time.Duration {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.consecutiveFailure == 0 {
		return ap.min
	}
	// circuit open: stop growing and poll at the ceiling
	if ap.consecutiveFailure >= 10 {
		return ap.max
	}
	d := float64(ap.base) * math.Pow(ap.factor, float64(ap.consecutiveFailure-1))
	d += d * 0.1 * (ap.jitter() - 0.5)
	if d > float64(ap.max) {
		d = float64(ap.max)
	}
	if d < float64(ap.min) {
		d = float64(ap.min)
	}
	return time.Duration(d)
}

// RecordSuccess resets the failure streak.
func (ap *AdaptivePoller) RecordSuccess() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.consecutiveFailure >= 10 {
		slog.Info("broker fetches recovered", slog.Int("after_failures", ap.consecutiveFailure))
	}
	ap.consecutiveFailure = 0
}

// RecordFailure extends the failure streak.
func (ap *AdaptivePoller) RecordFailure() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.consecutiveFailure++
	if ap.consecutiveFailure == 10 {
		slog.Warn("broker fetches failing, polling at ceiling", slog.Duration("interval", ap.max))
	}
}

// Healthy reports whether the last fetch succeeded.
func (ap *AdaptivePoller) Healthy() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.consecutiveFailure == 0
}
