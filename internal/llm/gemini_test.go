package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/qaforge/automesh/internal/models"
)

func TestToGeminiSchema(t *testing.T) {
	raw := map[string]interface{}{
		"type":        "object",
		"description": "click an element",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector",
			},
			"retries": map[string]interface{}{"type": "integer"},
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"mode": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"fast", "safe"},
			},
		},
		"required": []interface{}{"selector"},
	}

	s := toGeminiSchema(raw)
	require.NotNil(t, s)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, "click an element", s.Description)
	assert.Equal(t, []string{"selector"}, s.Required)

	require.Contains(t, s.Properties, "selector")
	assert.Equal(t, genai.TypeString, s.Properties["selector"].Type)
	assert.Equal(t, "CSS selector", s.Properties["selector"].Description)

	require.Contains(t, s.Properties, "tags")
	require.NotNil(t, s.Properties["tags"].Items)
	assert.Equal(t, genai.TypeString, s.Properties["tags"].Items.Type)

	assert.Equal(t, []string{"fast", "safe"}, s.Properties["mode"].Enum)
}

func TestToGeminiSchema_EmptyDefaultsToObject(t *testing.T) {
	s := toGeminiSchema(nil)
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
}

func TestBuildGeminiDeclarations(t *testing.T) {
	decls := buildGeminiDeclarations([]models.ToolSpec{
		{
			Name:        "mcp__playwright__browser_click",
			Description: "Click an element",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"selector": map[string]interface{}{"type": "string"},
				},
			},
		},
	})

	require.Len(t, decls, 1)
	assert.Equal(t, "mcp__playwright__browser_click", decls[0].Name)
	require.NotNil(t, decls[0].Parameters)
	assert.Contains(t, decls[0].Parameters.Properties, "selector")
}

func TestGeminiBuildContents(t *testing.T) {
	failed := false
	history := []models.ConversationItem{
		{Type: models.ItemTypeUserMessage, Content: "check the login page"},
		{Type: models.ItemTypeAssistantMessage, Content: "opening it now"},
		{
			Type:      models.ItemTypeFunctionCall,
			CallID:    "call-1",
			Name:      "mcp__playwright__browser_navigate",
			Arguments: `{"url":"https://example.com/login"}`,
		},
		{
			Type:   models.ItemTypeFunctionCallOutput,
			CallID: "call-1",
			Name:   "mcp__playwright__browser_navigate",
			Output: &models.FunctionCallOutputPayload{Content: "page loaded", Success: &[]bool{true}[0]},
		},
		{
			Type:   models.ItemTypeFunctionCallOutput,
			CallID: "call-2",
			Name:   "mcp__playwright__browser_click",
			Output: &models.FunctionCallOutputPayload{Content: "element not found", Success: &failed},
		},
	}

	c := NewGeminiClient()
	contents, err := c.buildContents(history)
	require.NoError(t, err)
	require.Len(t, contents, 5)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)

	fc := contents[2].Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "mcp__playwright__browser_navigate", fc.Name)
	assert.Equal(t, "https://example.com/login", fc.Args["url"])

	ok := contents[3].Parts[0].FunctionResponse
	require.NotNil(t, ok)
	assert.Equal(t, map[string]any{"output": "page loaded"}, ok.Response)

	failedResp := contents[4].Parts[0].FunctionResponse
	require.NotNil(t, failedResp)
	assert.Equal(t, map[string]any{"error": "element not found"}, failedResp.Response)
}

func TestGeminiBuildContents_BadArguments(t *testing.T) {
	c := NewGeminiClient()
	_, err := c.buildContents([]models.ConversationItem{
		{Type: models.ItemTypeFunctionCall, Name: "x", Arguments: "{not json"},
	})
	require.Error(t, err)
}

func TestGeminiParseResponse_TextAndFunctionCall(t *testing.T) {
	c := NewGeminiClient()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: "let me click that"},
					{FunctionCall: &genai.FunctionCall{
						Name: "mcp__playwright__browser_click",
						Args: map[string]any{"selector": "#submit"},
					}},
				},
			},
		}},
	}

	items, finishReason, err := c.parseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, models.FinishReasonToolCalls, finishReason)
	require.Len(t, items, 2)

	assert.Equal(t, models.ItemTypeAssistantMessage, items[0].Type)
	assert.Equal(t, models.ItemTypeFunctionCall, items[1].Type)
	assert.NotEmpty(t, items[1].CallID, "missing call IDs should be minted")
	assert.JSONEq(t, `{"selector":"#submit"}`, items[1].Arguments)
}

func TestGeminiParseResponse_NoCandidates(t *testing.T) {
	c := NewGeminiClient()
	_, _, err := c.parseResponse(&genai.GenerateContentResponse{})
	require.Error(t, err)
}

func TestClassifyGeminiError(t *testing.T) {
	var actErr *models.ActivityError

	err := classifyGeminiError(genai.APIError{Code: 429, Message: "quota"})
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, models.ErrorKindRateLimit, actErr.Kind)

	err = classifyGeminiError(genai.APIError{Code: 400, Message: "the input token count exceeds the maximum"})
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, models.ErrorKindContextOverflow, actErr.Kind)
}
