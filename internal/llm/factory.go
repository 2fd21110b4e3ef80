package llm

import (
	"context"
	"fmt"
)

// MultiProviderClient implements Client by dispatching on the request's
// ModelConfig.Provider field. A single activity registration can then serve
// agents configured for different providers.
type MultiProviderClient struct {
	gemini    *GeminiClient
	anthropic *AnthropicClient
	openai    *OpenAIClient
}

// NewMultiProviderClient creates a client covering all supported providers.
func NewMultiProviderClient() *MultiProviderClient {
	return &MultiProviderClient{
		gemini:    NewGeminiClient(),
		anthropic: NewAnthropicClient(),
		openai:    NewOpenAIClient(),
	}
}

// Call dispatches to the provider named in the request. Gemini is the
// default when no provider is set.
func (c *MultiProviderClient) Call(ctx context.Context, request Request) (Response, error) {
	provider := request.ModelConfig.Provider
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		return c.gemini.Call(ctx, request)
	case "anthropic":
		return c.anthropic.Call(ctx, request)
	case "openai":
		return c.openai.Call(ctx, request)
	default:
		return Response{}, fmt.Errorf("unsupported LLM provider: %s (supported: gemini, anthropic, openai)", provider)
	}
}

// NewClient creates a single-provider client when the provider is known at
// init time. Prefer NewMultiProviderClient for worker registration.
func NewClient(provider string) (Client, error) {
	switch provider {
	case "gemini", "":
		return NewGeminiClient(), nil
	case "anthropic":
		return NewAnthropicClient(), nil
	case "openai":
		return NewOpenAIClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: gemini, anthropic, openai)", provider)
	}
}
