// tool_execution.go handles policy-guarded parallel tool dispatch: every
// model-requested call passes the budget counters and the toolset's circuit
// breaker before an activity is started, and every outcome feeds back into
// the breaker.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/models"
)

// defaultToolTimeout is the global fallback for tool activity timeouts.
const defaultToolTimeout = 60 * time.Second

// pendingCall is one model-requested tool call that passed all policy gates.
type pendingCall struct {
	index   int
	toolset string
	future  workflow.Future
}

// executeToolsGuarded runs the model's tool calls in parallel, gated by the
// per-turn counters and per-toolset breakers. Denied calls never reach an
// activity; their refusal is returned as a failed tool result so the model
// sees why and can adjust.
func executeToolsGuarded(ctx workflow.Context, state *SpecialistState, calls []models.ConversationItem) []activities.ToolCallOutput {
	logger := workflow.GetLogger(ctx)
	now := workflow.Now(ctx)

	specByName := make(map[string]models.ToolSpec, len(state.Tools))
	for _, spec := range state.Tools {
		specByName[spec.Name] = spec
	}

	results := make([]activities.ToolCallOutput, len(calls))
	var pending []pendingCall

	for i, fc := range calls {
		var args map[string]interface{}
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
				args = map[string]interface{}{"_raw": fc.Arguments}
			}
		}

		// Per-turn budget and repeated-call gate.
		if v := state.Counters.CheckToolCall(fc.Name + fc.Arguments); !v.Allowed {
			logger.Warn("Tool call denied by policy", "tool", fc.Name, "reason", v.Reason)
			results[i] = deniedOutput(fc.CallID, v.Reason)
			continue
		}

		ref, ok := state.Lookup[fc.Name]
		if !ok {
			results[i] = deniedOutput(fc.CallID, fmt.Sprintf("unknown tool: %s", fc.Name))
			continue
		}

		// Toolset circuit breaker gate.
		if v := state.Breakers.Get(ref.Toolset).Allow(now); !v.Allowed {
			logger.Warn("Tool call denied by circuit breaker",
				"tool", fc.Name, "toolset", ref.Toolset, "reason", v.Reason)
			results[i] = deniedOutput(fc.CallID, v.Reason)
			continue
		}

		logger.Info("Starting tool execution", "tool", fc.Name, "call_id", fc.CallID)

		actOpts := workflow.ActivityOptions{
			StartToCloseTimeout: resolveToolTimeout(specByName, fc.Name, args),
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    time.Minute,
				MaximumAttempts:    3,
			},
		}
		toolCtx := workflow.WithActivityOptions(ctx, actOpts)

		input := activities.ToolCallInput{
			SessionID: state.Input.SessionID,
			CallID:    fc.CallID,
			Toolset:   ref.Toolset,
			ToolName:  ref.ToolName,
			Arguments: args,
			Toolsets:  state.Input.Toolsets,
		}
		pending = append(pending, pendingCall{
			index:   i,
			toolset: ref.Toolset,
			future:  workflow.ExecuteActivity(toolCtx, "CallToolsetTool", input),
		})
		state.ToolCallsExecuted = append(state.ToolCallsExecuted, fc.Name)
	}

	// Wait for all dispatched calls, feeding outcomes into the breakers.
	// Activity errors become failed tool results so the model can see them.
	for _, p := range pending {
		fc := calls[p.index]
		breaker := state.Breakers.Get(p.toolset)

		var result activities.ToolCallOutput
		if err := p.future.Get(ctx, &result); err != nil {
			results[p.index] = toolActivityErrorToOutput(logger, fc.CallID, fc.Name, err)
			breaker.RecordFailure(workflow.Now(ctx))
			continue
		}

		results[p.index] = result
		if result.Success {
			breaker.RecordSuccess()
		} else {
			breaker.RecordFailure(workflow.Now(ctx))
		}
		logger.Info("Tool execution completed", "tool", fc.Name, "success", result.Success)
	}

	return results
}

// deniedOutput builds the failed tool result for a policy refusal.
func deniedOutput(callID, reason string) activities.ToolCallOutput {
	return activities.ToolCallOutput{
		CallID:  callID,
		Content: "call refused: " + reason,
		Success: false,
	}
}

// toolActivityErrorToOutput converts a tool activity error into a failed
// tool result. Classification uses the error types, never the message text.
func toolActivityErrorToOutput(logger log.Logger, callID, toolName string, err error) activities.ToolCallOutput {
	reason := "tool activity failed"

	var appErr *temporal.ApplicationError
	var timeoutErr *temporal.TimeoutError
	var canceledErr *temporal.CanceledError

	switch {
	case errors.As(err, &appErr):
		logger.Warn("Tool activity failed",
			"tool", toolName,
			"error_type", appErr.Type(),
			"non_retryable", appErr.NonRetryable())

		var details models.ToolErrorDetails
		if appErr.HasDetails() {
			_ = appErr.Details(&details)
			if details.Reason != "" {
				reason = details.Reason
			}
		}

	case errors.As(err, &timeoutErr):
		logger.Warn("Tool activity timed out",
			"tool", toolName,
			"timeout_type", timeoutErr.TimeoutType())
		reason = "tool execution timed out"

	case errors.As(err, &canceledErr):
		logger.Warn("Tool activity canceled", "tool", toolName)
		reason = "tool execution was canceled"

	default:
		logger.Error("Tool activity failed with unexpected error",
			"tool", toolName, "error", err)
	}

	return activities.ToolCallOutput{
		CallID:  callID,
		Content: reason,
		Success: false,
	}
}

// resolveToolTimeout determines the StartToCloseTimeout for a tool activity.
//
// Priority:
//  1. timeout_ms argument from the model (per-invocation override)
//  2. DefaultTimeoutMs from the tool's spec
//  3. defaultToolTimeout as a global fallback
func resolveToolTimeout(specByName map[string]models.ToolSpec, toolName string, args map[string]interface{}) time.Duration {
	if args != nil {
		if v, ok := args["timeout_ms"]; ok {
			if ms, ok := toInt64(v); ok && ms > 0 {
				return time.Duration(ms) * time.Millisecond
			}
		}
	}

	if spec, ok := specByName[toolName]; ok && spec.DefaultTimeoutMs > 0 {
		return time.Duration(spec.DefaultTimeoutMs) * time.Millisecond
	}

	return defaultToolTimeout
}

// toInt64 converts JSON numeric representations to int64.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
