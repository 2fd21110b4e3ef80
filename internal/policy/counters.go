package policy

import "fmt"

// TurnCounters tracks per-turn budgets. A turn is one user request and all
// model/tool round-trips it triggers. Counters reset on ResetTurn.
type TurnCounters struct {
	Limits Limits `json:"limits"`

	Iterations int `json:"iterations"`
	ToolCalls  int `json:"tool_calls"`

	// Repeated-call detection: key of the last tool call (name + arguments)
	// and how many times in a row it was seen.
	LastCallKey string `json:"last_call_key,omitempty"`
	RepeatCount int    `json:"repeat_count,omitempty"`
}

// NewTurnCounters creates counters with the given limits (zero fields
// replaced by defaults).
func NewTurnCounters(limits Limits) *TurnCounters {
	return &TurnCounters{Limits: limits.withDefaults()}
}

// ResetTurn clears all per-turn state. Called when a new user request starts.
func (c *TurnCounters) ResetTurn() {
	c.Iterations = 0
	c.ToolCalls = 0
	c.LastCallKey = ""
	c.RepeatCount = 0
}

// CheckIteration records one LLM round-trip and reports whether the
// iteration budget still holds.
func (c *TurnCounters) CheckIteration() Verdict {
	c.Iterations++
	if c.Iterations > c.Limits.MaxIterations {
		return deny(fmt.Sprintf("iteration budget exhausted (%d)", c.Limits.MaxIterations))
	}
	return allow()
}

// CheckToolCall records a tool invocation and enforces both the per-turn
// budget and the repeated-identical-call limit. key must uniquely identify
// the call (tool name plus raw arguments).
func (c *TurnCounters) CheckToolCall(key string) Verdict {
	c.ToolCalls++
	if c.ToolCalls > c.Limits.MaxToolCallsPerTurn {
		return deny(fmt.Sprintf("tool call budget exhausted (%d per turn)", c.Limits.MaxToolCallsPerTurn))
	}

	if key == c.LastCallKey {
		c.RepeatCount++
	} else {
		c.LastCallKey = key
		c.RepeatCount = 1
	}
	if c.RepeatCount > c.Limits.MaxRepeatedCalls {
		return deny(fmt.Sprintf(
			"identical call repeated %d times; refusing further attempts", c.RepeatCount-1))
	}
	return allow()
}

// IterationsLeft reports the remaining LLM round-trips in this turn.
func (c *TurnCounters) IterationsLeft() int {
	left := c.Limits.MaxIterations - c.Iterations
	if left < 0 {
		return 0
	}
	return left
}
