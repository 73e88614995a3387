// Package concurrency implements the additive-increase/multiplicative-
// decrease limiter that C1 reports attempt outcomes to, and the Gate that
// bounds outbound fan-out by its current ceiling.
package concurrency

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Options configures a Limiter at construction.
type Options struct {
	Initial             float64
	Min                 float64
	Max                 float64
	IncreaseStep        float64
	DecreaseFactor      float64
	SuccessThreshold    int
	FailureCooldown     time.Duration
	Disabled            bool
}

// DefaultOptions returns the increase/decrease tuning the spec names,
// leaving Initial/Min/Max for the caller to set per fan-out stage.
func DefaultOptions() Options {
	return Options{
		IncreaseStep:     1,
		DecreaseFactor:   0.5,
		SuccessThreshold: 10,
		FailureCooldown:  5 * time.Second,
	}
}

// Limiter is one instance of the AIMD policy. A Limiter is created fresh
// per fan-out stage per request; it is never shared across requests.
type Limiter struct {
	mu sync.Mutex

	currentLimit     float64
	min              float64
	max              float64
	increaseStep     float64
	decreaseFactor   float64
	successThreshold int
	failureCooldown  time.Duration
	successStreak    int
	lastFailureTime  time.Time
	disabled         bool

	now func() time.Time
}

// New constructs a Limiter, validating 0 < min <= initial <= max.
func New(opts Options) (*Limiter, error) {
	if !(opts.Min > 0 && opts.Min <= opts.Initial && opts.Initial <= opts.Max) {
		return nil, fmt.Errorf("concurrency: invalid bounds min=%v initial=%v max=%v", opts.Min, opts.Initial, opts.Max)
	}
	return &Limiter{
		currentLimit:     opts.Initial,
		min:              opts.Min,
		max:              opts.Max,
		increaseStep:     opts.IncreaseStep,
		decreaseFactor:   opts.DecreaseFactor,
		successThreshold: opts.SuccessThreshold,
		failureCooldown:  opts.FailureCooldown,
		disabled:         opts.Disabled,
		now:              time.Now,
	}, nil
}

// Limit returns the current admission ceiling, floored to an integer.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(math.Floor(l.currentLimit))
}

// ReportSuccess records a successful attempt. It is a no-op while disabled
// (forced mode) and never grows the limit during the post-failure cooldown
// window.
func (l *Limiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled {
		return
	}

	now := l.now()
	if !l.lastFailureTime.IsZero() && now.Before(l.lastFailureTime.Add(l.failureCooldown)) {
		l.successStreak = 0
		return
	}

	l.successStreak++
	if l.successStreak >= l.successThreshold {
		l.currentLimit = math.Min(l.currentLimit+l.increaseStep, l.max)
		l.successStreak = 0
	}
}

// ReportFailure records a retryable failure, halving (by decreaseFactor)
// the limit and starting the cooldown window.
func (l *Limiter) ReportFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled {
		slog.Debug("concurrency limiter disabled, ignoring reported failure")
		return
	}

	l.successStreak = 0
	l.currentLimit = math.Max(l.currentLimit*l.decreaseFactor, l.min)
	l.lastFailureTime = l.now()
}

// Disabled reports whether the limiter is in forced mode.
func (l *Limiter) Disabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disabled
}
