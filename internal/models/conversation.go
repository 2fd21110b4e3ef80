// Package models contains shared types passed between workflows, activities,
// and provider clients.
package models

// ConversationItemType discriminates the variants of ConversationItem.
type ConversationItemType string

const (
	ItemTypeUserMessage        ConversationItemType = "user_message"
	ItemTypeAssistantMessage   ConversationItemType = "assistant_message"
	ItemTypeFunctionCall       ConversationItemType = "function_call"
	ItemTypeFunctionCallOutput ConversationItemType = "function_call_output"
)

// FunctionCallOutputPayload is the result of a tool invocation as recorded
// in history and fed back to the model.
type FunctionCallOutputPayload struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// ConversationItem is a single entry in an agent's conversation history.
// Different fields are populated depending on Type:
//
//	UserMessage:        Content
//	AssistantMessage:   Content
//	FunctionCall:       CallID, Name, Arguments
//	FunctionCallOutput: CallID, Output
type ConversationItem struct {
	Type ConversationItemType `json:"type"`

	// Seq is a monotonically increasing sequence number assigned by history.
	Seq int `json:"seq"`

	Content string `json:"content,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // raw JSON string as produced by the model

	Output *FunctionCallOutputPayload `json:"output,omitempty"`
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// TokenUsage tracks token consumption for a single model call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CachedTokens     int `json:"cached_tokens"`
}
