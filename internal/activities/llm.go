// Package activities contains the Temporal activity implementations: model
// calls and toolset management. Workflows never touch the network directly;
// everything nondeterministic lives here.
package activities

import (
	"context"
	"errors"

	"github.com/qaforge/automesh/internal/llm"
	"github.com/qaforge/automesh/internal/models"
)

// LLMCallInput is the input for the ExecuteLLMCall activity.
type LLMCallInput struct {
	History     []models.ConversationItem `json:"history"`
	ModelConfig models.ModelConfig        `json:"model_config"`
	Tools       []models.ToolSpec         `json:"tools,omitempty"`
	System      string                    `json:"system,omitempty"`
}

// LLMCallOutput is the output from the ExecuteLLMCall activity.
type LLMCallOutput struct {
	Items        []models.ConversationItem `json:"items"`
	FinishReason models.FinishReason       `json:"finish_reason"`
	TokenUsage   models.TokenUsage         `json:"token_usage"`
}

// LLMActivities holds the model provider client.
type LLMActivities struct {
	client llm.Client
}

// NewLLMActivities creates an LLMActivities instance.
func NewLLMActivities(client llm.Client) *LLMActivities {
	return &LLMActivities{client: client}
}

// ExecuteLLMCall performs one model round-trip. Provider errors are
// classified and wrapped so the workflow's retry policy sees the right
// retryability.
func (a *LLMActivities) ExecuteLLMCall(ctx context.Context, input LLMCallInput) (LLMCallOutput, error) {
	response, err := a.client.Call(ctx, llm.Request{
		History:     input.History,
		ModelConfig: input.ModelConfig,
		Tools:       input.Tools,
		System:      input.System,
	})
	if err != nil {
		var activityErr *models.ActivityError
		if errors.As(err, &activityErr) {
			return LLMCallOutput{}, WrapActivityError(activityErr)
		}
		return LLMCallOutput{}, err
	}

	return LLMCallOutput{
		Items:        response.Items,
		FinishReason: response.FinishReason,
		TokenUsage:   response.TokenUsage,
	}, nil
}
