// Package policy implements the hard safety limits around the agentic loop:
// iteration and tool-call budgets, repeated-call detection, and a per-toolset
// circuit breaker. All state is JSON-serializable so it survives
// ContinueAsNew, and all time-dependent decisions take an explicit now
// parameter so the package stays deterministic inside workflows.
package policy

// Limits bounds a single agent session. Zero values are replaced by the
// defaults from DefaultLimits.
type Limits struct {
	// MaxIterations is the maximum number of LLM round-trips per turn.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MaxToolCallsPerTurn bounds the total tool invocations in one turn.
	MaxToolCallsPerTurn int `json:"max_tool_calls_per_turn" yaml:"max_tool_calls_per_turn"`

	// MaxRepeatedCalls is how many times the same tool may be invoked with
	// identical arguments before the call is refused.
	MaxRepeatedCalls int `json:"max_repeated_calls" yaml:"max_repeated_calls"`

	// BreakerFailureThreshold is the number of consecutive failures that
	// opens a toolset's circuit.
	BreakerFailureThreshold int `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`

	// BreakerCooldownSec is how long an open circuit stays open before a
	// probe call is allowed.
	BreakerCooldownSec int `json:"breaker_cooldown_sec" yaml:"breaker_cooldown_sec"`
}

// DefaultLimits returns the default session limits.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:           20,
		MaxToolCallsPerTurn:     50,
		MaxRepeatedCalls:        3,
		BreakerFailureThreshold: 3,
		BreakerCooldownSec:      60,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxIterations <= 0 {
		l.MaxIterations = d.MaxIterations
	}
	if l.MaxToolCallsPerTurn <= 0 {
		l.MaxToolCallsPerTurn = d.MaxToolCallsPerTurn
	}
	if l.MaxRepeatedCalls <= 0 {
		l.MaxRepeatedCalls = d.MaxRepeatedCalls
	}
	if l.BreakerFailureThreshold <= 0 {
		l.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if l.BreakerCooldownSec <= 0 {
		l.BreakerCooldownSec = d.BreakerCooldownSec
	}
	return l
}

// Verdict is the outcome of a policy check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Verdict           { return Verdict{Allowed: true} }
func deny(reason string) Verdict { return Verdict{Allowed: false, Reason: reason} }
