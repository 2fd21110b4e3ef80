package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnCounters_IterationBudget(t *testing.T) {
	c := NewTurnCounters(Limits{MaxIterations: 3})

	for i := 0; i < 3; i++ {
		require.True(t, c.CheckIteration().Allowed, "iteration %d should be allowed", i)
	}

	v := c.CheckIteration()
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "iteration budget")
}

func TestTurnCounters_ToolCallBudget(t *testing.T) {
	c := NewTurnCounters(Limits{MaxToolCallsPerTurn: 2})

	assert.True(t, c.CheckToolCall("a").Allowed)
	assert.True(t, c.CheckToolCall("b").Allowed)

	v := c.CheckToolCall("c")
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "tool call budget")
}

func TestTurnCounters_RepeatedCallDetection(t *testing.T) {
	c := NewTurnCounters(Limits{MaxRepeatedCalls: 2})

	key := `browser_click{"selector":"#next"}`
	assert.True(t, c.CheckToolCall(key).Allowed)
	assert.True(t, c.CheckToolCall(key).Allowed)

	v := c.CheckToolCall(key)
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "repeated")

	// A different call resets the streak.
	assert.True(t, c.CheckToolCall("other{}").Allowed)
	assert.True(t, c.CheckToolCall(key).Allowed)
}

func TestTurnCounters_ResetTurn(t *testing.T) {
	c := NewTurnCounters(Limits{MaxIterations: 1, MaxToolCallsPerTurn: 1})

	require.True(t, c.CheckIteration().Allowed)
	require.False(t, c.CheckIteration().Allowed)

	c.ResetTurn()

	assert.True(t, c.CheckIteration().Allowed)
	assert.Equal(t, 0, c.ToolCalls)
	assert.Empty(t, c.LastCallKey)
}

func TestTurnCounters_DefaultsApplied(t *testing.T) {
	c := NewTurnCounters(Limits{})
	d := DefaultLimits()

	assert.Equal(t, d.MaxIterations, c.Limits.MaxIterations)
	assert.Equal(t, d.MaxToolCallsPerTurn, c.Limits.MaxToolCallsPerTurn)
	assert.Equal(t, d.MaxRepeatedCalls, c.Limits.MaxRepeatedCalls)
}

func TestTurnCounters_IterationsLeft(t *testing.T) {
	c := NewTurnCounters(Limits{MaxIterations: 2})
	assert.Equal(t, 2, c.IterationsLeft())

	c.CheckIteration()
	assert.Equal(t, 1, c.IterationsLeft())

	c.CheckIteration()
	c.CheckIteration()
	assert.Equal(t, 0, c.IterationsLeft())
}
