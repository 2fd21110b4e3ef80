package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/qaforge/automesh/internal/models"
)

// OpenAIClient implements Client using the OpenAI Responses API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: client}
}

// Call sends the conversation to OpenAI's Responses API and converts the
// reply to ConversationItems.
func (c *OpenAIClient) Call(ctx context.Context, request Request) (Response, error) {
	input := c.buildInput(request.History)

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(request.ModelConfig.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam(input),
		},
	}

	if request.System != "" {
		params.Instructions = openai.String(request.System)
	}
	if request.ModelConfig.Temperature > 0 {
		params.Temperature = openai.Float(request.ModelConfig.Temperature)
	}
	if request.ModelConfig.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(request.ModelConfig.MaxTokens))
	}
	if len(request.Tools) > 0 {
		params.Tools = c.buildToolDefinitions(request.Tools)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}

	items, finishReason := c.parseOutput(resp)

	return Response{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildInput converts conversation history to Responses API input items.
func (c *OpenAIClient) buildInput(history []models.ConversationItem) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(history))

	for _, item := range history {
		switch item.Type {
		case models.ItemTypeUserMessage:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRoleUser,
					Content: responses.EasyInputMessageContentUnionParam{
						OfString: openai.String(item.Content),
					},
				},
			})

		case models.ItemTypeAssistantMessage:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfOutputMessage: &responses.ResponseOutputMessageParam{
					Content: []responses.ResponseOutputMessageContentUnionParam{{
						OfOutputText: &responses.ResponseOutputTextParam{
							Text:        item.Content,
							Annotations: []responses.ResponseOutputTextAnnotationUnionParam{},
						},
					}},
					Status: responses.ResponseOutputMessageStatusCompleted,
				},
			})

		case models.ItemTypeFunctionCall:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfFunctionCall: &responses.ResponseFunctionToolCallParam{
					CallID:    item.CallID,
					Name:      item.Name,
					Arguments: item.Arguments,
				},
			})

		case models.ItemTypeFunctionCallOutput:
			content := ""
			if item.Output != nil {
				content = item.Output.Content
			}
			items = append(items, responses.ResponseInputItemUnionParam{
				OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
					CallID: item.CallID,
					Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
						OfString: openai.String(content),
					},
				},
			})
		}
	}

	return items
}

// parseOutput converts Responses API output items to ConversationItems.
func (c *OpenAIClient) parseOutput(resp *responses.Response) ([]models.ConversationItem, models.FinishReason) {
	var items []models.ConversationItem
	hasFunctionCalls := false

	for _, outputItem := range resp.Output {
		switch outputItem.Type {
		case "message":
			var text string
			for _, content := range outputItem.Content {
				if content.Type == "output_text" {
					text += content.Text
				}
			}
			if text != "" {
				items = append(items, models.ConversationItem{
					Type:    models.ItemTypeAssistantMessage,
					Content: text,
				})
			}

		case "function_call":
			hasFunctionCalls = true
			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    outputItem.CallID,
				Name:      outputItem.Name,
				Arguments: outputItem.Arguments,
			})
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{
			Type: models.ItemTypeAssistantMessage,
		})
	}

	finishReason := models.FinishReasonStop
	if hasFunctionCalls {
		finishReason = models.FinishReasonToolCalls
	}

	return items, finishReason
}

// buildToolDefinitions converts tool specs to Responses API tool definitions.
func (c *OpenAIClient) buildToolDefinitions(specs []models.ToolSpec) []responses.ToolUnionParam {
	toolDefs := make([]responses.ToolUnionParam, 0, len(specs))

	for _, spec := range specs {
		properties, required := schemaProperties(spec.InputSchema)
		if required == nil {
			required = []string{}
		}

		toolDefs = append(toolDefs, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}

	return toolDefs
}

// classifyOpenAIError categorizes an OpenAI API error using the HTTP status
// code when available, falling back to message heuristics.
func classifyOpenAIError(err error) error {
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}

	if apiErr, ok := err.(*openai.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") {
		return models.NewRateLimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("OpenAI API error: %v", err))
}
