package models

// ModelConfig configures the LLM used by a single agent.
type ModelConfig struct {
	Provider      string  `json:"provider" yaml:"provider"` // "gemini", "anthropic", "openai"
	Model         string  `json:"model" yaml:"model"`
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ContextWindow int     `json:"context_window,omitempty" yaml:"context_window,omitempty"`
}

// DefaultModelConfig returns the default model configuration.
// Gemini Flash is the default provider and model.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "gemini",
		Model:         "gemini-2.5-flash",
		MaxTokens:     8192,
		ContextWindow: 1_000_000,
	}
}

// ToolSpec is a tool definition as presented to the model. Toolset discovery
// produces these from MCP tool listings; the workflow adds its own intercepted
// tool specs (delegation) on top.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// InputSchema is the raw JSON Schema for the tool's arguments.
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`

	// ReadOnly marks tools annotated as non-mutating by their server.
	ReadOnly bool `json:"read_only,omitempty"`

	// DefaultTimeoutMs bounds the tool activity's StartToCloseTimeout when
	// the model does not supply a timeout_ms argument.
	DefaultTimeoutMs int64 `json:"default_timeout_ms,omitempty"`
}
