// Package llm provides the model provider clients used by the LLM activity.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/qaforge/automesh/internal/models"
)

// Request is a single model call: the conversation so far, the tools the
// agent may use, and the merged system instruction.
type Request struct {
	History     []models.ConversationItem `json:"history"`
	ModelConfig models.ModelConfig        `json:"model_config"`
	Tools       []models.ToolSpec         `json:"tools,omitempty"`

	// System is the merged instruction for this agent.
	System string `json:"system,omitempty"`
}

// Response is the model's reply: assistant messages and/or function calls.
type Response struct {
	Items        []models.ConversationItem `json:"items"`
	FinishReason models.FinishReason       `json:"finish_reason"`
	TokenUsage   models.TokenUsage         `json:"token_usage"`
}

// Client is the interface implemented by each provider.
type Client interface {
	Call(ctx context.Context, request Request) (Response, error)
}

// classifyByStatusCode maps an HTTP status code to an ActivityError. Shared
// by all provider error classifiers.
//
//   - 429: rate limit, retryable with backoff
//   - 408, 409: transient, retryable
//   - other 4xx: fatal client error, non-retryable
//   - 5xx: transient server error, retryable
func classifyByStatusCode(statusCode int, err error) *models.ActivityError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return models.NewRateLimitError(fmt.Sprintf("rate limit (%d): %v", statusCode, err))
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusConflict:
		return models.NewTransientError(fmt.Sprintf("retryable error (%d): %v", statusCode, err))
	case statusCode >= 400 && statusCode < 500:
		return models.NewFatalError(fmt.Sprintf("client error (%d): %v", statusCode, err))
	case statusCode >= 500:
		return models.NewTransientError(fmt.Sprintf("server error (%d): %v", statusCode, err))
	default:
		return models.NewTransientError(fmt.Sprintf("unexpected status (%d): %v", statusCode, err))
	}
}

// schemaProperties splits a raw JSON Schema object into its properties map
// and required list, for providers that take them separately.
func schemaProperties(schema map[string]interface{}) (map[string]interface{}, []string) {
	properties := map[string]interface{}{}
	if p, ok := schema["properties"].(map[string]interface{}); ok {
		properties = p
	}

	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []interface{}:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}

	return properties, required
}
