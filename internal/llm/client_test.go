package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaforge/automesh/internal/models"
)

func TestClassifyByStatusCode(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		status int
		kind   models.ErrorKind
	}{
		{429, models.ErrorKindRateLimit},
		{408, models.ErrorKindTransient},
		{409, models.ErrorKindTransient},
		{400, models.ErrorKindFatal},
		{401, models.ErrorKindFatal},
		{404, models.ErrorKindFatal},
		{500, models.ErrorKindTransient},
		{503, models.ErrorKindTransient},
		{0, models.ErrorKindTransient},
	}

	for _, tt := range tests {
		err := classifyByStatusCode(tt.status, base)
		assert.Equal(t, tt.kind, err.Kind, "status %d", tt.status)
	}

	assert.False(t, classifyByStatusCode(400, base).Retryable)
	assert.True(t, classifyByStatusCode(500, base).Retryable)
}

func TestSchemaProperties(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":     map[string]interface{}{"type": "string"},
			"timeout": map[string]interface{}{"type": "integer"},
		},
		"required": []interface{}{"url"},
	}

	properties, required := schemaProperties(schema)
	assert.Len(t, properties, 2)
	assert.Equal(t, []string{"url"}, required)
}

func TestSchemaProperties_Empty(t *testing.T) {
	properties, required := schemaProperties(map[string]interface{}{})
	assert.Empty(t, properties)
	assert.Empty(t, required)
}

func TestMultiProviderClient_UnknownProvider(t *testing.T) {
	c := NewMultiProviderClient()

	_, err := c.Call(t.Context(), Request{
		ModelConfig: models.ModelConfig{Provider: "mistral"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	c, err = NewClient("anthropic")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	c, err = NewClient("openai")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient("mistral")
	require.Error(t, err)
}
