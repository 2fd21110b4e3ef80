package policy

import (
	"fmt"
	"time"
)

// BreakerState is the circuit state for one toolset.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker is a per-toolset circuit breaker.
//
// Transitions:
//
//	closed    --[threshold consecutive failures]--> open
//	open      --[cooldown elapsed]-->                half_open (one probe allowed)
//	half_open --[probe success]-->                   closed
//	half_open --[probe failure]-->                   open (cooldown restarts)
//
// The caller supplies now on every time-dependent call; the breaker never
// reads the wall clock, which keeps it usable inside workflow code.
type Breaker struct {
	Limits Limits `json:"limits"`

	State        BreakerState `json:"state"`
	Failures     int          `json:"failures"`
	OpenedAt     time.Time    `json:"opened_at,omitempty"`
	ProbeInFlight bool        `json:"probe_in_flight,omitempty"`
}

// NewBreaker creates a closed breaker with the given limits (zero fields
// replaced by defaults).
func NewBreaker(limits Limits) *Breaker {
	return &Breaker{Limits: limits.withDefaults(), State: BreakerClosed}
}

// cooldown returns the configured open-state cooldown.
func (b *Breaker) cooldown() time.Duration {
	return time.Duration(b.Limits.BreakerCooldownSec) * time.Second
}

// Allow reports whether a call may proceed at the given time. When the
// cooldown of an open circuit has elapsed, the breaker moves to half-open
// and admits exactly one probe call.
func (b *Breaker) Allow(now time.Time) Verdict {
	switch b.State {
	case BreakerClosed:
		return allow()
	case BreakerOpen:
		if now.Sub(b.OpenedAt) < b.cooldown() {
			remaining := b.cooldown() - now.Sub(b.OpenedAt)
			return deny(fmt.Sprintf("circuit open; retry in %s", remaining.Round(time.Second)))
		}
		b.State = BreakerHalfOpen
		b.ProbeInFlight = true
		return allow()
	case BreakerHalfOpen:
		if b.ProbeInFlight {
			return deny("circuit half-open; probe already in flight")
		}
		b.ProbeInFlight = true
		return allow()
	default:
		return deny(fmt.Sprintf("unknown breaker state %q", b.State))
	}
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.State = BreakerClosed
	b.Failures = 0
	b.ProbeInFlight = false
}

// RecordFailure registers a failed call at the given time. In the closed
// state the circuit opens once the failure threshold is reached; a failed
// half-open probe reopens immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	switch b.State {
	case BreakerHalfOpen:
		b.State = BreakerOpen
		b.OpenedAt = now
		b.ProbeInFlight = false
	case BreakerClosed:
		b.Failures++
		if b.Failures >= b.Limits.BreakerFailureThreshold {
			b.State = BreakerOpen
			b.OpenedAt = now
		}
	case BreakerOpen:
		// Already open; nothing to record.
	}
}

// BreakerSet tracks one breaker per toolset name.
type BreakerSet struct {
	Limits   Limits              `json:"limits"`
	Breakers map[string]*Breaker `json:"breakers,omitempty"`
}

// NewBreakerSet creates an empty set using the given limits for new breakers.
func NewBreakerSet(limits Limits) *BreakerSet {
	return &BreakerSet{Limits: limits.withDefaults()}
}

// Get returns the breaker for the toolset, creating it on first use.
func (s *BreakerSet) Get(toolset string) *Breaker {
	if s.Breakers == nil {
		s.Breakers = make(map[string]*Breaker)
	}
	b, ok := s.Breakers[toolset]
	if !ok {
		b = NewBreaker(s.Limits)
		s.Breakers[toolset] = b
	}
	return b
}
