package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/instructions"
	"github.com/qaforge/automesh/internal/models"
	"github.com/qaforge/automesh/internal/policy"
)

// trimmedOutputLen is the clamp applied to old tool outputs when the
// conversation approaches the context window.
const trimmedOutputLen = 512

// recentOutputsKept is how many trailing tool outputs stay intact when
// trimming.
const recentOutputsKept = 4

// SpecialistWorkflow runs one specialist agent on one subtask: connect the
// agent's toolsets, then loop model call / tool execution until the model
// finishes or a safety limit stops it.
func SpecialistWorkflow(ctx workflow.Context, input SpecialistInput) (SpecialistResult, error) {
	if input.SessionID == "" {
		input.SessionID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	state := &SpecialistState{
		Input:    input,
		Counters: policy.NewTurnCounters(input.Limits),
		Breakers: policy.NewBreakerSet(input.Limits),
	}
	state.initHistory()
	state.hist.Add(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: input.Request,
	})

	return runSpecialist(ctx, state)
}

// SpecialistWorkflowContinued resumes a specialist run after ContinueAsNew.
// The toolset connections in the worker-scoped store survive the rollover;
// only the workflow event history is reset.
func SpecialistWorkflowContinued(ctx workflow.Context, state SpecialistState) (SpecialistResult, error) {
	state.initHistory()
	return runSpecialist(ctx, &state)
}

func runSpecialist(ctx workflow.Context, state *SpecialistState) (SpecialistResult, error) {
	logger := workflow.GetLogger(ctx)
	def := state.Input.Definition

	if err := workflow.SetQueryHandler(ctx, QueryGetSpecialistStatus, func() (SpecialistStatus, error) {
		return specialistStatus(state), nil
	}); err != nil {
		return SpecialistResult{}, err
	}

	// Toolset connections are cleaned up on any exit except ContinueAsNew,
	// where the continued run reuses them.
	continuing := false
	defer func() {
		if continuing {
			return
		}
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		cleanupCtx := workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
		})
		if err := workflow.ExecuteActivity(cleanupCtx, "CleanupToolsets",
			activities.CleanupToolsetsInput{SessionID: state.Input.SessionID}).Get(dctx, nil); err != nil {
			logger.Warn("Toolset cleanup failed", "error", err)
		}
	}()

	if !state.Initialized {
		if err := initializeToolsets(ctx, state); err != nil {
			return SpecialistResult{}, err
		}
	}

	system := instructions.For(def)

	for {
		if v := state.Counters.CheckIteration(); !v.Allowed {
			logger.Warn("Specialist stopped by safety limit", "agent", def.Name, "reason", v.Reason)
			return limitResult(state, v.Reason), nil
		}

		llmOpts := workflow.ActivityOptions{
			StartToCloseTimeout: 2 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    30 * time.Second,
				MaximumAttempts:    3,
			},
		}
		llmCtx := workflow.WithActivityOptions(ctx, llmOpts)

		var output activities.LLMCallOutput
		err := workflow.ExecuteActivity(llmCtx, "ExecuteLLMCall", activities.LLMCallInput{
			History:     state.hist.Items(),
			ModelConfig: def.Model,
			Tools:       state.Tools,
			System:      system,
		}).Get(ctx, &output)

		if err != nil {
			switch kind := activities.ErrorKindFromFailure(err); kind {
			case models.ErrorKindContextOverflow:
				logger.Info("Context overflow, shedding old tool outputs", "agent", def.Name)
				if state.hist.TrimToolOutputs(trimmedOutputLen, recentOutputsKept) == 0 {
					return SpecialistResult{}, fmt.Errorf("context overflow with nothing left to trim: %w", err)
				}
				continuing = true
				state.syncHistoryItems()
				return SpecialistResult{}, workflow.NewContinueAsNewError(ctx, SpecialistWorkflowContinued, *state)

			case models.ErrorKindRateLimit:
				logger.Warn("Rate limited, backing off", "agent", def.Name)
				if sleepErr := workflow.Sleep(ctx, time.Minute); sleepErr != nil {
					return SpecialistResult{}, sleepErr
				}
				continue

			default:
				logger.Error("Model call failed", "agent", def.Name, "kind", kind.String(), "error", err)
				return SpecialistResult{}, err
			}
		}

		state.TotalTokens += output.TokenUsage.TotalTokens

		var calls []models.ConversationItem
		for _, item := range output.Items {
			state.hist.Add(item)
			if item.Type == models.ItemTypeFunctionCall {
				calls = append(calls, item)
			}
		}

		if len(calls) > 0 {
			results := executeToolsGuarded(ctx, state, calls)
			for _, res := range results {
				success := res.Success
				state.hist.Add(models.ConversationItem{
					Type:   models.ItemTypeFunctionCallOutput,
					CallID: res.CallID,
					Output: &models.FunctionCallOutputPayload{
						Content: res.Content,
						Success: &success,
					},
				})
			}
		}

		// Roll over before the conversation outgrows the model's context.
		if overflowing(state) {
			logger.Info("Approaching context window, continuing as new",
				"agent", def.Name, "estimated_tokens", state.hist.EstimateTokens())
			state.hist.TrimToolOutputs(trimmedOutputLen, recentOutputsKept)
			continuing = true
			state.syncHistoryItems()
			return SpecialistResult{}, workflow.NewContinueAsNewError(ctx, SpecialistWorkflowContinued, *state)
		}

		if len(calls) > 0 {
			continue
		}

		switch output.FinishReason {
		case models.FinishReasonLength:
			// The model ran out of output tokens mid-answer; let it continue.
			continue
		default:
			return SpecialistResult{
				Agent:             def.Name,
				Summary:           state.hist.LastAssistantMessage(),
				Iterations:        state.Counters.Iterations,
				TotalTokens:       state.TotalTokens,
				ToolCallsExecuted: state.ToolCallsExecuted,
			}, nil
		}
	}
}

// initializeToolsets connects the agent's configured toolsets and records the
// discovered tools in the state.
func initializeToolsets(ctx workflow.Context, state *SpecialistState) error {
	initOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	initCtx := workflow.WithActivityOptions(ctx, initOpts)

	var out activities.InitializeToolsetsOutput
	if err := workflow.ExecuteActivity(initCtx, "InitializeToolsets", activities.InitializeToolsetsInput{
		SessionID: state.Input.SessionID,
		Toolsets:  state.Input.Toolsets,
	}).Get(ctx, &out); err != nil {
		return fmt.Errorf("toolset initialization failed: %w", err)
	}

	if len(out.Failures) > 0 {
		logger := workflow.GetLogger(ctx)
		for name, reason := range out.Failures {
			logger.Warn("Toolset unavailable", "toolset", name, "reason", reason)
		}
	}

	state.Initialized = true
	state.Tools = out.Tools
	state.Lookup = out.Lookup
	state.Failures = out.Failures
	return nil
}

// limitResult builds the result returned when a safety limit stops the run.
func limitResult(state *SpecialistState, reason string) SpecialistResult {
	summary := state.hist.LastAssistantMessage()
	if summary == "" {
		summary = "stopped before producing a summary: " + reason
	}
	return SpecialistResult{
		Agent:             state.Input.Definition.Name,
		Summary:           summary,
		Iterations:        state.Counters.Iterations,
		TotalTokens:       state.TotalTokens,
		ToolCallsExecuted: state.ToolCallsExecuted,
		LimitReason:       reason,
	}
}

// specialistStatus snapshots the loop state for the status query.
func specialistStatus(state *SpecialistState) SpecialistStatus {
	health := make(map[string]string)
	if state.Breakers != nil {
		for name, b := range state.Breakers.Breakers {
			health[name] = string(b.State)
		}
	}
	return SpecialistStatus{
		Agent:          state.Input.Definition.Name,
		Iterations:     state.Counters.Iterations,
		IterationsLeft: state.Counters.IterationsLeft(),
		ToolCalls:      state.Counters.ToolCalls,
		TotalTokens:    state.TotalTokens,
		ToolsetHealth:  health,
	}
}

// overflowing reports whether the estimated conversation size is past the
// usable fraction of the model's context window.
func overflowing(state *SpecialistState) bool {
	window := state.Input.Definition.Model.ContextWindow
	if window <= 0 {
		return false
	}
	return float64(state.hist.EstimateTokens()) > contextUsageLimit*float64(window)
}
