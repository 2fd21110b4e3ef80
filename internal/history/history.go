// Package history stores an agent's conversation inside workflow state.
package history

import (
	"github.com/qaforge/automesh/internal/models"
)

// History is a conversation log with sequence numbers. It is plain workflow
// state: no locking, fully serializable, safe across ContinueAsNew.
type History struct {
	items []models.ConversationItem
}

// New creates an empty history.
func New() *History {
	return &History{items: make([]models.ConversationItem, 0)}
}

// Add appends an item, assigning it the next sequence number.
func (h *History) Add(item models.ConversationItem) {
	item.Seq = len(h.items)
	h.items = append(h.items, item)
}

// Items returns a copy of all items in order.
func (h *History) Items() []models.ConversationItem {
	out := make([]models.ConversationItem, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the number of items.
func (h *History) Len() int {
	return len(h.items)
}

// EstimateTokens estimates the total token count with a rough 4 characters
// per token heuristic. Used to decide when the context is close to overflow.
func (h *History) EstimateTokens() int {
	totalChars := 0
	for _, item := range h.items {
		totalChars += len(item.Content)
		totalChars += len(item.Name)
		totalChars += len(item.Arguments)
		if item.Output != nil {
			totalChars += len(item.Output.Content)
		}
	}
	return totalChars / 4
}

// ReplaceAll replaces the whole history and reassigns sequence numbers.
// Used when restoring state after ContinueAsNew.
func (h *History) ReplaceAll(items []models.ConversationItem) {
	h.items = make([]models.ConversationItem, len(items))
	copy(h.items, items)
	for i := range h.items {
		h.items[i].Seq = i
	}
}

// KeepLastTurns drops everything before the Nth-from-last user message and
// returns how many items were dropped. Used to shed old turns when the
// context grows too large.
func (h *History) KeepLastTurns(keepN int) int {
	if keepN <= 0 {
		return 0
	}

	userCount := 0
	cutIndex := 0
	for i := len(h.items) - 1; i >= 0; i-- {
		if h.items[i].Type == models.ItemTypeUserMessage {
			userCount++
			if userCount == keepN {
				cutIndex = i
				break
			}
		}
	}

	if cutIndex == 0 {
		return 0
	}

	dropped := cutIndex
	h.items = h.items[cutIndex:]
	for i := range h.items {
		h.items[i].Seq = i
	}
	return dropped
}

// TrimToolOutputs clamps recorded tool outputs to maxLen characters, leaving
// the most recent keepRecent outputs intact. Returns how many outputs were
// trimmed. Used to shrink a single-turn conversation that cannot shed whole
// turns.
func (h *History) TrimToolOutputs(maxLen, keepRecent int) int {
	if maxLen < 0 {
		maxLen = 0
	}

	outputIndexes := make([]int, 0, len(h.items))
	for i, item := range h.items {
		if item.Type == models.ItemTypeFunctionCallOutput && item.Output != nil {
			outputIndexes = append(outputIndexes, i)
		}
	}
	if keepRecent > 0 && keepRecent < len(outputIndexes) {
		outputIndexes = outputIndexes[:len(outputIndexes)-keepRecent]
	} else if keepRecent > 0 {
		return 0
	}

	trimmed := 0
	for _, i := range outputIndexes {
		out := h.items[i].Output
		if len(out.Content) <= maxLen {
			continue
		}
		out.Content = out.Content[:maxLen] + "\n[output truncated]"
		trimmed++
	}
	return trimmed
}

// TurnCount returns the number of user messages.
func (h *History) TurnCount() int {
	count := 0
	for _, item := range h.items {
		if item.Type == models.ItemTypeUserMessage {
			count++
		}
	}
	return count
}

// LastAssistantMessage returns the content of the most recent assistant
// message, or "" when there is none.
func (h *History) LastAssistantMessage() string {
	for i := len(h.items) - 1; i >= 0; i-- {
		if h.items[i].Type == models.ItemTypeAssistantMessage {
			return h.items[i].Content
		}
	}
	return ""
}
