// routing.go defines the coordinator's delegation tools. They look like
// ordinary tools to the model but are intercepted by the coordinator and
// executed as specialist child workflows instead of toolset calls.
package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.temporal.io/sdk/workflow"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
)

// Delegation tool names exposed to the coordinator model.
const (
	ToolDelegate         = "delegate"
	ToolDelegateParallel = "delegate_parallel"
	ToolRunPipeline      = "run_pipeline"
)

// isDelegationTool reports whether a tool call should be routed to a
// specialist instead of a toolset.
func isDelegationTool(name string) bool {
	switch name {
	case ToolDelegate, ToolDelegateParallel, ToolRunPipeline:
		return true
	}
	return false
}

// delegationToolSpecs builds the coordinator's tool specs from the registry,
// embedding the available specialist and pipeline names in the descriptions
// and schemas.
func delegationToolSpecs(reg *agent.Registry) []models.ToolSpec {
	var names []string
	var lines []string
	for _, d := range reg.Specialists() {
		names = append(names, d.Name)
		lines = append(lines, fmt.Sprintf("- %s: %s", d.Name, d.Description))
	}
	roster := strings.Join(lines, "\n")

	specs := []models.ToolSpec{
		{
			Name: ToolDelegate,
			Description: "Delegate a subtask to one specialist agent and wait for its result.\n" +
				"Available specialists:\n" + roster,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent": map[string]interface{}{
						"type":        "string",
						"enum":        names,
						"description": "Name of the specialist to run.",
					},
					"request": map[string]interface{}{
						"type":        "string",
						"description": "The subtask, phrased as a complete standalone instruction.",
					},
				},
				"required": []string{"agent", "request"},
			},
		},
		{
			Name: ToolDelegateParallel,
			Description: "Run the same request on several specialists concurrently and " +
				"collect all their results.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agents": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "enum": names},
						"description": "Names of the specialists to run concurrently.",
					},
					"request": map[string]interface{}{
						"type":        "string",
						"description": "The subtask every listed specialist should perform.",
					},
				},
				"required": []string{"agents", "request"},
			},
		},
	}

	if len(reg.Pipelines()) > 0 {
		pipeNames := make([]string, 0, len(reg.Pipelines()))
		for name := range reg.Pipelines() {
			pipeNames = append(pipeNames, name)
		}
		sort.Strings(pipeNames)

		var pipeLines []string
		for _, name := range pipeNames {
			p := reg.Pipelines()[name]
			pipeLines = append(pipeLines, fmt.Sprintf("- %s (%s): %s",
				name, p.Mode, strings.Join(p.Agents, " -> ")))
		}
		specs = append(specs, models.ToolSpec{
			Name: ToolRunPipeline,
			Description: "Run a predefined pipeline of specialists on a request.\n" +
				"Available pipelines:\n" + strings.Join(pipeLines, "\n"),
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pipeline": map[string]interface{}{
						"type":        "string",
						"enum":        pipeNames,
						"description": "Name of the pipeline to run.",
					},
					"request": map[string]interface{}{
						"type":        "string",
						"description": "The task the pipeline should carry out.",
					},
				},
				"required": []string{"pipeline", "request"},
			},
		})
	}

	return specs
}

// delegateArgs is the parsed payload of a delegation tool call.
type delegateArgs struct {
	Agent    string   `json:"agent,omitempty"`
	Agents   []string `json:"agents,omitempty"`
	Pipeline string   `json:"pipeline,omitempty"`
	Request  string   `json:"request"`
}

// executeDelegation routes one delegation tool call. The returned output is
// fed back to the coordinator model as the tool result.
func executeDelegation(ctx workflow.Context, state *CoordinatorState, reg *agent.Registry, fc models.ConversationItem) activities.ToolCallOutput {
	var args delegateArgs
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return deniedOutput(fc.CallID, fmt.Sprintf("invalid %s arguments: %v", fc.Name, err))
	}
	if args.Request == "" {
		return deniedOutput(fc.CallID, "request must not be empty")
	}

	switch fc.Name {
	case ToolDelegate:
		return delegateOne(ctx, state, reg, fc.CallID, args.Agent, args.Request)
	case ToolDelegateParallel:
		return delegateParallel(ctx, state, reg, fc.CallID, args.Agents, args.Request)
	case ToolRunPipeline:
		return runPipeline(ctx, state, reg, fc.CallID, args.Pipeline, args.Request)
	default:
		return deniedOutput(fc.CallID, "unknown delegation tool: "+fc.Name)
	}
}

func delegateOne(ctx workflow.Context, state *CoordinatorState, reg *agent.Registry, callID, agentName, request string) activities.ToolCallOutput {
	def, ok := reg.Specialist(agentName)
	if !ok {
		return deniedOutput(callID, "unknown specialist: "+agentName)
	}

	result, err := runSpecialistChild(ctx, state, def, request)
	if err != nil {
		return activities.ToolCallOutput{
			CallID:  callID,
			Content: fmt.Sprintf("specialist %s failed: %v", agentName, err),
			Success: false,
		}
	}
	return activities.ToolCallOutput{
		CallID:  callID,
		Content: renderResult(result),
		Success: result.LimitReason == "",
	}
}

func delegateParallel(ctx workflow.Context, state *CoordinatorState, reg *agent.Registry, callID string, agentNames []string, request string) activities.ToolCallOutput {
	if len(agentNames) == 0 {
		return deniedOutput(callID, "agents must not be empty")
	}

	type spawned struct {
		name   string
		future workflow.ChildWorkflowFuture
		entry  int
	}
	var children []spawned
	for _, name := range agentNames {
		def, ok := reg.Specialist(name)
		if !ok {
			return deniedOutput(callID, "unknown specialist: "+name)
		}
		future, entryIdx := startSpecialistChild(ctx, state, def, request)
		children = append(children, spawned{name: name, future: future, entry: entryIdx})
	}

	var sections []string
	allOK := true
	for _, c := range children {
		var result SpecialistResult
		if err := c.future.Get(ctx, &result); err != nil {
			state.finishDelegation(c.entry, DelegationFailed, err.Error())
			sections = append(sections, fmt.Sprintf("%s failed: %v", c.name, err))
			allOK = false
			continue
		}
		state.finishDelegation(c.entry, DelegationCompleted, result.Summary)
		state.TotalTokens += result.TotalTokens
		sections = append(sections, renderResult(result))
		if result.LimitReason != "" {
			allOK = false
		}
	}

	return activities.ToolCallOutput{
		CallID:  callID,
		Content: strings.Join(sections, "\n\n"),
		Success: allOK,
	}
}

func runPipeline(ctx workflow.Context, state *CoordinatorState, reg *agent.Registry, callID, pipelineName, request string) activities.ToolCallOutput {
	p, ok := reg.Pipeline(pipelineName)
	if !ok {
		return deniedOutput(callID, "unknown pipeline: "+pipelineName)
	}

	if p.Mode == agent.PipelineParallel {
		return delegateParallel(ctx, state, reg, callID, p.Agents, request)
	}

	// Sequential: each member sees the original request plus the previous
	// member's summary.
	var sections []string
	stepRequest := request
	for _, name := range p.Agents {
		def, _ := reg.Specialist(name)
		result, err := runSpecialistChild(ctx, state, def, stepRequest)
		if err != nil {
			sections = append(sections, fmt.Sprintf("%s failed: %v", name, err))
			return activities.ToolCallOutput{
				CallID:  callID,
				Content: strings.Join(sections, "\n\n"),
				Success: false,
			}
		}
		sections = append(sections, renderResult(result))
		if result.LimitReason != "" {
			return activities.ToolCallOutput{
				CallID:  callID,
				Content: strings.Join(sections, "\n\n"),
				Success: false,
			}
		}
		stepRequest = fmt.Sprintf("%s\n\nPrevious step (%s) reported:\n%s", request, name, result.Summary)
	}

	return activities.ToolCallOutput{
		CallID:  callID,
		Content: strings.Join(sections, "\n\n"),
		Success: true,
	}
}

// startSpecialistChild spawns a specialist child workflow and records a
// running delegation entry. Returns the future and the entry's index.
func startSpecialistChild(ctx workflow.Context, state *CoordinatorState, def agent.Definition, request string) (workflow.ChildWorkflowFuture, int) {
	state.DelegationCounter++
	delegationID := fmt.Sprintf("d-%d", state.DelegationCounter)
	childID := fmt.Sprintf("%s/%s-%d", state.Input.CoordinatorID, def.Name, state.DelegationCounter)

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: childID,
	})

	future := workflow.ExecuteChildWorkflow(childCtx, SpecialistWorkflow, SpecialistInput{
		Definition: def,
		Toolsets:   toolsetsFor(def, state.Input.Toolsets),
		Limits:     state.Input.Limits,
		Request:    request,
	})

	state.Delegations = append(state.Delegations, DelegationEntry{
		DelegationID: delegationID,
		Agent:        def.Name,
		Request:      request,
		WorkflowID:   childID,
		Status:       DelegationRunning,
		StartedAt:    workflow.Now(ctx),
	})
	return future, len(state.Delegations) - 1
}

// runSpecialistChild spawns a specialist child workflow and waits for it.
func runSpecialistChild(ctx workflow.Context, state *CoordinatorState, def agent.Definition, request string) (SpecialistResult, error) {
	future, entryIdx := startSpecialistChild(ctx, state, def, request)

	var result SpecialistResult
	if err := future.Get(ctx, &result); err != nil {
		state.finishDelegation(entryIdx, DelegationFailed, err.Error())
		return SpecialistResult{}, err
	}
	state.finishDelegation(entryIdx, DelegationCompleted, result.Summary)
	state.TotalTokens += result.TotalTokens
	return result, nil
}

// finishDelegation updates a delegation entry when its child completes.
func (s *CoordinatorState) finishDelegation(idx int, status DelegationStatus, summary string) {
	if idx < 0 || idx >= len(s.Delegations) {
		return
	}
	s.Delegations[idx].Status = status
	s.Delegations[idx].Summary = summary
}

// toolsetsFor narrows the session's toolset config to the ones the agent
// declares.
func toolsetsFor(def agent.Definition, all map[string]mcp.ToolsetConfig) map[string]mcp.ToolsetConfig {
	out := make(map[string]mcp.ToolsetConfig, len(def.Toolsets))
	for _, name := range def.Toolsets {
		if cfg, ok := all[name]; ok {
			out[name] = cfg
		}
	}
	return out
}

// renderResult formats a specialist result as a tool output for the
// coordinator model.
func renderResult(r SpecialistResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", r.Agent, r.Summary)
	if r.LimitReason != "" {
		fmt.Fprintf(&sb, "\n(stopped early: %s)", r.LimitReason)
	}
	if len(r.ToolCallsExecuted) > 0 {
		fmt.Fprintf(&sb, "\n(tools used: %s)", strings.Join(r.ToolCallsExecuted, ", "))
	}
	return sb.String()
}
