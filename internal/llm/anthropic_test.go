package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaforge/automesh/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestAnthropicBuildMessages_FoldsCallsIntoAssistant(t *testing.T) {
	c := &AnthropicClient{}

	history := []models.ConversationItem{
		{Type: models.ItemTypeUserMessage, Content: "check the login page"},
		{Type: models.ItemTypeAssistantMessage, Content: "Navigating first."},
		{Type: models.ItemTypeFunctionCall, CallID: "call-1", Name: "mcp__playwright__navigate", Arguments: `{"url":"https://example.com"}`},
		{Type: models.ItemTypeFunctionCall, CallID: "call-2", Name: "mcp__playwright__screenshot", Arguments: `{}`},
		{Type: models.ItemTypeFunctionCallOutput, CallID: "call-1", Output: &models.FunctionCallOutputPayload{Content: "ok", Success: boolPtr(true)}},
	}

	messages, err := c.buildMessages(history)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)

	// Assistant text and both calls fold into one assistant message.
	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)
	require.Len(t, messages[1].Content, 3)
	assert.Equal(t, "Navigating first.", messages[1].Content[0].OfText.Text)
	assert.Equal(t, "call-1", messages[1].Content[1].OfToolUse.ID)
	assert.Equal(t, "call-2", messages[1].Content[2].OfToolUse.ID)

	// Tool results ride in a user message.
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[2].Role)
	result := messages[2].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.Equal(t, "call-1", result.ToolUseID)
}

func TestAnthropicBuildMessages_FailedOutputMarkedAsError(t *testing.T) {
	c := &AnthropicClient{}

	history := []models.ConversationItem{
		{Type: models.ItemTypeFunctionCallOutput, CallID: "call-1", Output: &models.FunctionCallOutputPayload{Content: "timed out", Success: boolPtr(false)}},
	}

	messages, err := c.buildMessages(history)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	result := messages[0].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.True(t, result.IsError.Value)
}

func TestAnthropicBuildMessages_BadArguments(t *testing.T) {
	c := &AnthropicClient{}

	_, err := c.buildMessages([]models.ConversationItem{
		{Type: models.ItemTypeFunctionCall, CallID: "call-1", Name: "tool", Arguments: "{not json"},
	})
	require.Error(t, err)
}

func TestAnthropicBuildToolDefinitions(t *testing.T) {
	c := &AnthropicClient{}

	defs := c.buildToolDefinitions([]models.ToolSpec{{
		Name:        "mcp__filesystem__read_file",
		Description: "Read a file",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"path"},
		},
	}})

	require.Len(t, defs, 1)
	tool := defs[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "mcp__filesystem__read_file", tool.Name)
	assert.Equal(t, []string{"path"}, tool.InputSchema.Required)
}

func TestClassifyAnthropicError_ContextOverflow(t *testing.T) {
	err := classifyAnthropicError(assert.AnError)
	var activityErr *models.ActivityError
	require.ErrorAs(t, err, &activityErr)
	assert.Equal(t, models.ErrorKindTransient, activityErr.Kind, "unknown errors default to transient")
}
