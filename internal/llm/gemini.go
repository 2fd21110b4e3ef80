package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/qaforge/automesh/internal/models"
)

// GeminiClient implements Client using the Gemini API.
type GeminiClient struct {
	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a Gemini client. The underlying SDK client is
// created lazily on first call so construction never fails.
func NewGeminiClient() *GeminiClient {
	return &GeminiClient{}
}

func (c *GeminiClient) getClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewFatalError(fmt.Sprintf("failed to create Gemini client: %v", err))
	}
	c.client = client
	return client, nil
}

// Call sends the conversation to Gemini and converts the reply to
// ConversationItems.
func (c *GeminiClient) Call(ctx context.Context, request Request) (Response, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return Response{}, err
	}

	contents, err := c.buildContents(request.History)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build contents: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if request.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.System}},
		}
	}
	if request.ModelConfig.Temperature > 0 {
		temp := float32(request.ModelConfig.Temperature)
		config.Temperature = &temp
	}
	if request.ModelConfig.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.ModelConfig.MaxTokens)
	}
	if len(request.Tools) > 0 {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: buildGeminiDeclarations(request.Tools),
		}}
	}

	result, err := client.Models.GenerateContent(ctx, request.ModelConfig.Model, contents, config)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}

	items, finishReason, err := c.parseResponse(result)
	if err != nil {
		return Response{}, err
	}

	usage := models.TokenUsage{}
	if result.UsageMetadata != nil {
		usage = models.TokenUsage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return Response{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage:   usage,
	}, nil
}

// buildContents converts conversation history to Gemini contents.
//
// Mapping: user messages and tool outputs take the "user" role; assistant
// messages and function calls take the "model" role. Tool outputs become
// FunctionResponse parts keyed by the original call name and ID.
func (c *GeminiClient) buildContents(history []models.ConversationItem) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))

	for _, item := range history {
		switch item.Type {
		case models.ItemTypeUserMessage:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: item.Content}},
			})

		case models.ItemTypeAssistantMessage:
			if item.Content == "" {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: item.Content}},
			})

		case models.ItemTypeFunctionCall:
			var args map[string]any
			if item.Arguments != "" {
				if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
					return nil, fmt.Errorf("failed to parse tool arguments for %s: %w", item.Name, err)
				}
			}
			contents = append(contents, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						ID:   item.CallID,
						Name: item.Name,
						Args: args,
					},
				}},
			})

		case models.ItemTypeFunctionCallOutput:
			response := map[string]any{}
			if item.Output != nil {
				if item.Output.Success != nil && !*item.Output.Success {
					response["error"] = item.Output.Content
				} else {
					response["output"] = item.Output.Content
				}
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       item.CallID,
						Name:     item.Name,
						Response: response,
					},
				}},
			})
		}
	}

	return contents, nil
}

// parseResponse converts a Gemini response to ConversationItems.
func (c *GeminiClient) parseResponse(result *genai.GenerateContentResponse) ([]models.ConversationItem, models.FinishReason, error) {
	if len(result.Candidates) == 0 {
		return nil, "", models.NewTransientError("no candidates in Gemini response")
	}
	candidate := result.Candidates[0]

	items := make([]models.ConversationItem, 0)
	hasFunctionCalls := false

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Thought:
				// Reasoning content is not fed back into the conversation.
			case part.Text != "":
				items = append(items, models.ConversationItem{
					Type:    models.ItemTypeAssistantMessage,
					Content: part.Text,
				})
			case part.FunctionCall != nil:
				hasFunctionCalls = true
				argsJSON, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					argsJSON = []byte("{}")
				}
				callID := part.FunctionCall.ID
				if callID == "" {
					// Gemini often omits call IDs; mint one so outputs can
					// be correlated back to the call.
					callID = "call-" + uuid.NewString()
				}
				items = append(items, models.ConversationItem{
					Type:      models.ItemTypeFunctionCall,
					CallID:    callID,
					Name:      part.FunctionCall.Name,
					Arguments: string(argsJSON),
				})
			}
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{
			Type: models.ItemTypeAssistantMessage,
		})
	}

	finishReason := models.FinishReasonStop
	switch {
	case hasFunctionCalls:
		finishReason = models.FinishReasonToolCalls
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		finishReason = models.FinishReasonLength
	}

	return items, finishReason, nil
}

// buildGeminiDeclarations converts tool specs to Gemini function declarations.
func buildGeminiDeclarations(specs []models.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toGeminiSchema(spec.InputSchema),
		})
	}
	return decls
}

// toGeminiSchema converts a raw JSON Schema object into the Gemini schema
// type. Gemini expects uppercase type enums ("OBJECT", "STRING"), so type
// strings are normalized.
func toGeminiSchema(raw map[string]interface{}) *genai.Schema {
	if len(raw) == 0 {
		return &genai.Schema{Type: genai.TypeObject}
	}

	s := &genai.Schema{}
	if t, ok := raw["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := raw["description"].(string); ok {
		s.Description = d
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if items, ok := raw["items"].(map[string]interface{}); ok {
		s.Items = toGeminiSchema(items)
	}
	if enum, ok := raw["enum"].([]interface{}); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	_, required := schemaProperties(raw)
	s.Required = required

	return s
}

// classifyGeminiError categorizes a Gemini API error using the HTTP status
// code when available, falling back to message heuristics.
func classifyGeminiError(err error) error {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "input token count") || strings.Contains(msg, "context length") ||
		strings.Contains(msg, "input is too long") {
		return models.NewContextOverflowError(err.Error())
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyByStatusCode(apiErr.Code, err)
	}

	if strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") {
		return models.NewRateLimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("Gemini API error: %v", err))
}
