package activities

import (
	"context"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
)

// ToolRef routes a qualified tool name back to its toolset and original name.
type ToolRef struct {
	Toolset  string `json:"toolset"`
	ToolName string `json:"tool_name"`
}

// ToolsetActivities manages the per-session toolset connections.
type ToolsetActivities struct {
	store *mcp.Store
}

// NewToolsetActivities creates a ToolsetActivities instance backed by the
// worker-scoped store.
func NewToolsetActivities(store *mcp.Store) *ToolsetActivities {
	return &ToolsetActivities{store: store}
}

// InitializeToolsetsInput is the input for the InitializeToolsets activity.
type InitializeToolsetsInput struct {
	SessionID string                       `json:"session_id"`
	Toolsets  map[string]mcp.ToolsetConfig `json:"toolsets"`
}

// InitializeToolsetsOutput is the output from the InitializeToolsets activity.
type InitializeToolsetsOutput struct {
	// Tools lists the discovered tool specifications for the model.
	Tools []models.ToolSpec `json:"tools"`
	// Lookup maps qualified tool names to routing info.
	Lookup map[string]ToolRef `json:"lookup"`
	// Failures records toolsets that failed to start.
	Failures map[string]string `json:"failures,omitempty"`
}

// InitializeToolsets starts the session's toolset servers and discovers their
// tools. The workflow calls this once before its first turn; the resulting
// connections live in the worker-scoped store until cleanup.
func (a *ToolsetActivities) InitializeToolsets(ctx context.Context, input InitializeToolsetsInput) (InitializeToolsetsOutput, error) {
	mgr := a.store.GetOrCreate(input.SessionID)

	result, err := mgr.Initialize(ctx, input.Toolsets)
	if err != nil {
		return InitializeToolsetsOutput{}, fmt.Errorf("toolset initialization failed: %w", err)
	}

	var tools []models.ToolSpec
	lookup := make(map[string]ToolRef)

	for _, spec := range result.Specs {
		timeout := mcp.DefaultToolTimeout
		if cfg, ok := input.Toolsets[spec.Toolset]; ok {
			timeout = cfg.GetToolTimeout()
		}

		tools = append(tools, models.ToolSpec{
			Name:             spec.QualifiedName,
			Description:      spec.Description,
			InputSchema:      spec.InputSchema,
			ReadOnly:         spec.ReadOnly,
			DefaultTimeoutMs: timeout.Milliseconds(),
		})

		lookup[spec.QualifiedName] = ToolRef{
			Toolset:  spec.Toolset,
			ToolName: spec.ToolName,
		}
	}

	return InitializeToolsetsOutput{
		Tools:    tools,
		Lookup:   lookup,
		Failures: result.Failures,
	}, nil
}

// ToolCallInput is the input for the CallToolsetTool activity.
type ToolCallInput struct {
	SessionID string                 `json:"session_id"`
	CallID    string                 `json:"call_id"`
	Toolset   string                 `json:"toolset"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`

	// Toolsets carries the session's toolset config so the activity can
	// reconnect after a worker restart.
	Toolsets map[string]mcp.ToolsetConfig `json:"toolsets,omitempty"`
}

// ToolCallOutput is the output from the CallToolsetTool activity. Tool-level
// failures are reported through Success=false rather than an activity error
// so the model can see them and adjust.
type ToolCallOutput struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	Success bool   `json:"success"`
}

// CallToolsetTool dispatches one tool call to its toolset server. If the
// session's connections are gone (worker restart), it reconnects from the
// carried config before dispatching.
func (a *ToolsetActivities) CallToolsetTool(ctx context.Context, input ToolCallInput) (ToolCallOutput, error) {
	mgr := a.store.Get(input.SessionID)
	if mgr == nil {
		if len(input.Toolsets) == 0 {
			return ToolCallOutput{
				CallID:  input.CallID,
				Content: "toolset not connected and no config available for reconnection",
			}, nil
		}

		mgr = a.store.GetOrCreate(input.SessionID)
		if _, err := mgr.Initialize(ctx, input.Toolsets); err != nil {
			return ToolCallOutput{
				CallID:  input.CallID,
				Content: fmt.Sprintf("toolset failed to reconnect: %v", err),
			}, nil
		}
	}

	result, err := mgr.CallTool(ctx, input.Toolset, input.ToolName, input.Arguments)
	if err != nil {
		return ToolCallOutput{
			CallID:  input.CallID,
			Content: fmt.Sprintf("tool call failed: %v", err),
		}, nil
	}

	return ToolCallOutput{
		CallID:  input.CallID,
		Content: flattenContent(result),
		Success: !result.IsError,
	}, nil
}

// CleanupToolsetsInput is the input for the CleanupToolsets activity.
type CleanupToolsetsInput struct {
	SessionID string `json:"session_id"`
}

// CleanupToolsets closes all toolset connections for a session. Called when
// the owning workflow finishes.
func (a *ToolsetActivities) CleanupToolsets(ctx context.Context, input CleanupToolsetsInput) error {
	a.store.Remove(input.SessionID)
	return nil
}

// flattenContent renders an MCP tool result as text for the model.
func flattenContent(result *gomcp.CallToolResult) string {
	var sb strings.Builder
	for i, content := range result.Content {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch c := content.(type) {
		case *gomcp.TextContent:
			sb.WriteString(c.Text)
		case *gomcp.ImageContent:
			sb.WriteString("[image: ")
			sb.WriteString(c.MIMEType)
			sb.WriteString("]")
		default:
			sb.WriteString("[unsupported content type]")
		}
	}
	return sb.String()
}
