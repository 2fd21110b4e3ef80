package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/qaforge/automesh/internal/models"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic client.
func NewAnthropicClient() *AnthropicClient {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: client}
}

// Call sends the conversation to Anthropic and converts the reply to
// ConversationItems.
func (c *AnthropicClient) Call(ctx context.Context, request Request) (Response, error) {
	messages, err := c.buildMessages(request.History)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.ModelConfig.Model),
		MaxTokens: int64(request.ModelConfig.MaxTokens),
		Messages:  messages,
	}

	// System prompt with caching. Caching keeps repeated agent instructions
	// cheap across the many calls of an agentic loop.
	if request.System != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: request.System,
			CacheControl: anthropic.CacheControlEphemeralParam{
				TTL: anthropic.CacheControlEphemeralTTLTTL5m,
			},
		}}
	}

	if request.ModelConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(request.ModelConfig.Temperature)
	}

	if len(request.Tools) > 0 {
		params.Tools = c.buildToolDefinitions(request.Tools)
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	items, finishReason := c.parseResponse(response)

	return Response{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.InputTokens + response.Usage.OutputTokens),
		},
	}, nil
}

// buildMessages converts conversation history to Anthropic messages.
//
// Anthropic's format differs from the others: tool calls are content blocks
// inside assistant messages, and tool results are content blocks inside user
// messages.
func (c *AnthropicClient) buildMessages(history []models.ConversationItem) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0)

	i := 0
	for i < len(history) {
		item := history[i]

		switch item.Type {
		case models.ItemTypeUserMessage:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfText: &anthropic.TextBlockParam{Text: item.Content},
				}},
			})
			i++

		case models.ItemTypeAssistantMessage, models.ItemTypeFunctionCall:
			// Fold the assistant text and any function calls that follow it
			// into one assistant message.
			content := make([]anthropic.ContentBlockParamUnion, 0)

			j := i
			if item.Type == models.ItemTypeAssistantMessage {
				if item.Content != "" {
					content = append(content, anthropic.ContentBlockParamUnion{
						OfText: &anthropic.TextBlockParam{Text: item.Content},
					})
				}
				j++
			}

			for j < len(history) && history[j].Type == models.ItemTypeFunctionCall {
				call := history[j]

				var input map[string]interface{}
				if call.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
						return nil, fmt.Errorf("failed to parse tool arguments for %s: %w", call.Name, err)
					}
				}

				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.CallID,
						Name:  call.Name,
						Input: input,
					},
				})
				j++
			}

			if len(content) > 0 {
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: content,
				})
			}
			i = j

		case models.ItemTypeFunctionCallOutput:
			isError := item.Output != nil && item.Output.Success != nil && !*item.Output.Success
			text := ""
			if item.Output != nil {
				text = item.Output.Content
			}

			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: item.CallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: text},
						}},
						IsError: anthropic.Bool(isError),
					},
				}},
			})
			i++

		default:
			i++
		}
	}

	return messages, nil
}

// buildToolDefinitions converts tool specs to Anthropic tool definitions.
func (c *AnthropicClient) buildToolDefinitions(specs []models.ToolSpec) []anthropic.ToolUnionParam {
	toolDefs := make([]anthropic.ToolUnionParam, 0, len(specs))

	for _, spec := range specs {
		properties, required := schemaProperties(spec.InputSchema)

		inputSchema := anthropic.ToolInputSchemaParam{Properties: properties}
		if len(required) > 0 {
			inputSchema.Required = required
		}

		toolDefs = append(toolDefs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: inputSchema,
			},
		})
	}

	return toolDefs
}

// parseResponse converts an Anthropic response to ConversationItems.
func (c *AnthropicClient) parseResponse(response *anthropic.Message) ([]models.ConversationItem, models.FinishReason) {
	items := make([]models.ConversationItem, 0)
	finishReason := models.FinishReasonStop

	for _, block := range response.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				items = append(items, models.ConversationItem{
					Type:    models.ItemTypeAssistantMessage,
					Content: textBlock.Text,
				})
			}

		case "tool_use":
			toolBlock := block.AsToolUse()
			finishReason = models.FinishReasonToolCalls

			argsJSON, err := json.Marshal(toolBlock.Input)
			if err != nil {
				argsJSON = []byte("{}")
			}

			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: string(argsJSON),
			})
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{
			Type: models.ItemTypeAssistantMessage,
		})
	}

	switch response.StopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		finishReason = models.FinishReasonStop
	case anthropic.StopReasonToolUse:
		finishReason = models.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		finishReason = models.FinishReasonLength
	}

	return items, finishReason
}

// classifyAnthropicError categorizes an Anthropic API error using the HTTP
// status code when available, falling back to message heuristics.
func classifyAnthropicError(err error) error {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "context_length") || strings.Contains(msg, "too many tokens") {
		return models.NewContextOverflowError(err.Error())
	}

	if apiErr, ok := err.(*anthropic.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") {
		return models.NewRateLimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("Anthropic API error: %v", err))
}
