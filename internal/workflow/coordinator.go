package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/instructions"
	"github.com/qaforge/automesh/internal/models"
	"github.com/qaforge/automesh/internal/policy"
)

// coordinatorKeepTurns is how many recent user turns survive a context trim.
const coordinatorKeepTurns = 2

// CoordinatorWorkflow is the long-lived session entry point. It registers
// the user_request update handler and idles between requests; actual work
// happens in the handler, which runs the coordinator model loop and spawns
// specialist child workflows for delegated subtasks.
func CoordinatorWorkflow(ctx workflow.Context, input CoordinatorInput) error {
	if input.CoordinatorID == "" {
		input.CoordinatorID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	state := &CoordinatorState{Input: input}
	state.initHistory()
	return runCoordinator(ctx, state)
}

// CoordinatorWorkflowContinued resumes a coordinator session after the idle
// rollover.
func CoordinatorWorkflowContinued(ctx workflow.Context, state CoordinatorState) error {
	state.initHistory()
	return runCoordinator(ctx, &state)
}

func runCoordinator(ctx workflow.Context, state *CoordinatorState) error {
	logger := workflow.GetLogger(ctx)

	reg, err := agent.NewRegistry(state.Input.Agents, state.Input.Pipelines)
	if err != nil {
		return temporal.NewApplicationError(
			fmt.Sprintf("invalid agent topology: %v", err), "InvalidTopology")
	}

	if err := workflow.SetQueryHandler(ctx, QueryGetDelegations, func() ([]DelegationEntry, error) {
		return state.Delegations, nil
	}); err != nil {
		return fmt.Errorf("failed to register %s query: %w", QueryGetDelegations, err)
	}

	if err := workflow.SetQueryHandler(ctx, QueryGetHistory, func() ([]models.ConversationItem, error) {
		return state.hist.Items(), nil
	}); err != nil {
		return fmt.Errorf("failed to register %s query: %w", QueryGetHistory, err)
	}

	// Requests are processed one at a time; a second update waits until the
	// previous handler releases the flag.
	busy := false

	if err := workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateUserRequest,
		func(ctx workflow.Context, req UserRequest) (UserRequestResponse, error) {
			if err := workflow.Await(ctx, func() bool { return !busy }); err != nil {
				return UserRequestResponse{}, err
			}
			busy = true
			defer func() { busy = false }()

			return handleUserRequest(ctx, state, reg, req)
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req UserRequest) error {
				if req.Text == "" {
					return fmt.Errorf("text must not be empty")
				}
				return nil
			},
		},
	); err != nil {
		return fmt.Errorf("failed to register %s update handler: %w", UpdateUserRequest, err)
	}

	// Idle loop: roll over via ContinueAsNew to keep event history bounded.
	for {
		ok, err := workflow.AwaitWithTimeout(ctx, IdleTimeout, func() bool {
			return false // no wake-up condition; rely solely on the timeout
		})
		if err != nil {
			return fmt.Errorf("coordinator await failed: %w", err)
		}
		if !ok {
			logger.Info("Coordinator idle timeout reached, continuing as new")
			_ = workflow.Await(ctx, func() bool {
				return workflow.AllHandlersFinished(ctx)
			})
			state.syncHistoryItems()
			return workflow.NewContinueAsNewError(ctx, CoordinatorWorkflowContinued, *state)
		}
	}
}

// handleUserRequest runs the coordinator model loop for one request. The
// model sees only the delegation tools; every call it makes spawns or fans
// out specialist child workflows.
func handleUserRequest(ctx workflow.Context, state *CoordinatorState, reg *agent.Registry, req UserRequest) (UserRequestResponse, error) {
	logger := workflow.GetLogger(ctx)
	def := reg.Coordinator()

	state.hist.Add(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: req.Text,
	})

	counters := policy.NewTurnCounters(state.Input.Limits)
	specs := delegationToolSpecs(reg)
	system := instructions.For(def)

	for {
		if v := counters.CheckIteration(); !v.Allowed {
			logger.Warn("Coordinator turn stopped by safety limit", "reason", v.Reason)
			return response(state, "Stopped: "+v.Reason), nil
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
			Tools:       specs,
			System:      system,
		}).Get(ctx, &output)

		if err != nil {
			switch kind := activities.ErrorKindFromFailure(err); kind {
			case models.ErrorKindContextOverflow:
				// Update handlers cannot ContinueAsNew, so shed old turns in
				// place and retry.
				dropped := state.hist.KeepLastTurns(coordinatorKeepTurns)
				if dropped == 0 && state.hist.TrimToolOutputs(trimmedOutputLen, recentOutputsKept) == 0 {
					return UserRequestResponse{}, fmt.Errorf("context overflow with nothing left to shed: %w", err)
				}
				logger.Info("Context overflow, shed old turns", "dropped", dropped)
				continue

			case models.ErrorKindRateLimit:
				logger.Warn("Rate limited, backing off")
				if sleepErr := workflow.Sleep(ctx, time.Minute); sleepErr != nil {
					return UserRequestResponse{}, sleepErr
				}
				continue

			default:
				logger.Error("Coordinator model call failed", "kind", kind.String(), "error", err)
				return UserRequestResponse{}, err
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

		if len(calls) == 0 {
			return response(state, state.hist.LastAssistantMessage()), nil
		}

		for _, fc := range calls {
			var out activities.ToolCallOutput
			if v := counters.CheckToolCall(fc.Name + fc.Arguments); !v.Allowed {
				out = deniedOutput(fc.CallID, v.Reason)
			} else if !isDelegationTool(fc.Name) {
				out = deniedOutput(fc.CallID, "the coordinator has no direct tools; delegate instead")
			} else {
				out = executeDelegation(ctx, state, reg, fc)
			}

			success := out.Success
			state.hist.Add(models.ConversationItem{
				Type:   models.ItemTypeFunctionCallOutput,
				CallID: out.CallID,
				Output: &models.FunctionCallOutputPayload{
					Content: out.Content,
					Success: &success,
				},
			})
		}
	}
}

// response snapshots the session state for the update caller.
func response(state *CoordinatorState, reply string) UserRequestResponse {
	delegations := make([]DelegationEntry, len(state.Delegations))
	copy(delegations, state.Delegations)
	return UserRequestResponse{
		Reply:       reply,
		Delegations: delegations,
		TotalTokens: state.TotalTokens,
	}
}
