// Package workflow contains the Temporal workflow definitions: the
// long-lived coordinator and the specialist agentic loop it delegates to.
//
// state.go holds the handler names and the serializable state passed through
// ContinueAsNew, separated from the workflow logic.
package workflow

import (
	"time"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/history"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
	"github.com/qaforge/automesh/internal/policy"
)

// Handler name constants for Temporal query and update handlers.
const (
	// UpdateUserRequest submits a new user request to the coordinator.
	UpdateUserRequest = "user_request"

	// QueryGetDelegations returns the coordinator's delegation log.
	QueryGetDelegations = "get_delegations"

	// QueryGetHistory returns the coordinator's conversation history.
	QueryGetHistory = "get_history"

	// QueryGetSpecialistStatus returns a specialist's loop status.
	QueryGetSpecialistStatus = "get_specialist_status"
)

// IdleTimeout is how long the coordinator waits without traffic before
// rolling over via ContinueAsNew to keep its event history bounded.
const IdleTimeout = 12 * time.Hour

// contextUsageLimit is the fraction of the model's context window at which
// the specialist sheds old turns and continues as new.
const contextUsageLimit = 0.8

// DelegationStatus is the lifecycle status of one delegated subtask.
type DelegationStatus string

const (
	DelegationRunning   DelegationStatus = "running"
	DelegationCompleted DelegationStatus = "completed"
	DelegationFailed    DelegationStatus = "failed"
)

// DelegationEntry records one specialist run started by the coordinator.
type DelegationEntry struct {
	DelegationID string           `json:"delegation_id"`
	Agent        string           `json:"agent"`
	Request      string           `json:"request"`
	WorkflowID   string           `json:"workflow_id"`
	Status       DelegationStatus `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	Summary      string           `json:"summary,omitempty"`
}

// CoordinatorInput starts a coordinator session.
type CoordinatorInput struct {
	// CoordinatorID is a stable identifier, used as a prefix for child
	// workflow IDs.
	CoordinatorID string `json:"coordinator_id"`

	// Agents and Pipelines define the topology.
	Agents    []agent.Definition `json:"agents"`
	Pipelines []agent.Pipeline   `json:"pipelines,omitempty"`

	// Toolsets maps toolset names to their server configuration.
	Toolsets map[string]mcp.ToolsetConfig `json:"toolsets"`

	// Limits are the session safety limits applied to every agent.
	Limits policy.Limits `json:"limits,omitempty"`
}

// UserRequest is the payload for the user_request update.
type UserRequest struct {
	Text string `json:"text"`
}

// UserRequestResponse is returned when the coordinator finishes a request.
type UserRequestResponse struct {
	Reply       string            `json:"reply"`
	Delegations []DelegationEntry `json:"delegations,omitempty"`
	TotalTokens int               `json:"total_tokens"`
}

// CoordinatorState is passed through ContinueAsNew.
type CoordinatorState struct {
	Input             CoordinatorInput          `json:"input"`
	HistoryItems      []models.ConversationItem `json:"history_items,omitempty"`
	Delegations       []DelegationEntry         `json:"delegations,omitempty"`
	DelegationCounter uint64                    `json:"delegation_counter"`
	TotalTokens       int                       `json:"total_tokens"`

	hist *history.History
}

// initHistory restores the runtime history from the serialized items.
func (s *CoordinatorState) initHistory() {
	s.hist = history.New()
	s.hist.ReplaceAll(s.HistoryItems)
}

// syncHistoryItems serializes the runtime history before ContinueAsNew.
func (s *CoordinatorState) syncHistoryItems() {
	s.HistoryItems = s.hist.Items()
}

// SpecialistInput starts a specialist run on one subtask.
type SpecialistInput struct {
	// SessionID keys the worker-side toolset connections. Defaults to the
	// workflow ID when empty.
	SessionID string `json:"session_id,omitempty"`

	Definition agent.Definition             `json:"definition"`
	Toolsets   map[string]mcp.ToolsetConfig `json:"toolsets,omitempty"`
	Limits     policy.Limits                `json:"limits,omitempty"`

	// Request is the subtask the specialist should carry out.
	Request string `json:"request"`
}

// SpecialistResult is returned when a specialist finishes its subtask.
type SpecialistResult struct {
	Agent             string   `json:"agent"`
	Summary           string   `json:"summary"`
	Iterations        int      `json:"iterations"`
	TotalTokens       int      `json:"total_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed,omitempty"`

	// LimitReason is set when the run was stopped by a safety limit rather
	// than the model finishing on its own.
	LimitReason string `json:"limit_reason,omitempty"`
}

// SpecialistStatus is the response from the get_specialist_status query.
type SpecialistStatus struct {
	Agent          string            `json:"agent"`
	Iterations     int               `json:"iterations"`
	IterationsLeft int               `json:"iterations_left"`
	ToolCalls      int               `json:"tool_calls"`
	TotalTokens    int               `json:"total_tokens"`
	ToolsetHealth  map[string]string `json:"toolset_health,omitempty"`
}

// SpecialistState is passed through ContinueAsNew when the context window
// fills up mid-run.
type SpecialistState struct {
	Input        SpecialistInput           `json:"input"`
	HistoryItems []models.ConversationItem `json:"history_items,omitempty"`

	Counters *policy.TurnCounters `json:"counters,omitempty"`
	Breakers *policy.BreakerSet   `json:"breakers,omitempty"`

	// Toolset discovery results, kept so a continued run does not have to
	// reinitialize.
	Initialized bool                          `json:"initialized"`
	Tools       []models.ToolSpec             `json:"tools,omitempty"`
	Lookup      map[string]activities.ToolRef `json:"lookup,omitempty"`
	Failures    map[string]string             `json:"failures,omitempty"`

	TotalTokens       int      `json:"total_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed,omitempty"`

	hist *history.History
}

func (s *SpecialistState) initHistory() {
	s.hist = history.New()
	s.hist.ReplaceAll(s.HistoryItems)
}

func (s *SpecialistState) syncHistoryItems() {
	s.HistoryItems = s.hist.Items()
}
