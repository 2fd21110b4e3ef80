package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
)

type CoordinatorWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func TestCoordinatorWorkflowSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorWorkflowTestSuite))
}

func (s *CoordinatorWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(ExecuteLLMCall)
	s.env.RegisterWorkflow(SpecialistWorkflow)
}

func (s *CoordinatorWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func coordinatorInput() CoordinatorInput {
	model := models.DefaultModelConfig()
	return CoordinatorInput{
		CoordinatorID: "session-1",
		Agents: []agent.Definition{
			{Name: "coordinator", Kind: agent.KindCoordinator, Model: model},
			{
				Name:        "web_agent",
				Kind:        agent.KindWeb,
				Description: "Browser automation",
				Model:       model,
				Toolsets:    []string{"playwright"},
			},
			{
				Name:        "test_exec_agent",
				Kind:        agent.KindTestExec,
				Description: "Test suite execution",
				Model:       model,
				Toolsets:    []string{"test_execution"},
			},
		},
		Pipelines: []agent.Pipeline{
			{Name: "check_then_test", Mode: agent.PipelineSequential, Agents: []string{"web_agent", "test_exec_agent"}},
		},
		Toolsets: map[string]mcp.ToolsetConfig{
			"playwright":     {Transport: mcp.TransportConfig{Command: "npx"}},
			"test_execution": {Transport: mcp.TransportConfig{Command: "node"}},
		},
	}
}

func delegateCall(callID, args string) activities.LLMCallOutput {
	return activities.LLMCallOutput{
		Items: []models.ConversationItem{{
			Type:      models.ItemTypeFunctionCall,
			CallID:    callID,
			Name:      ToolDelegate,
			Arguments: args,
		}},
		FinishReason: models.FinishReasonToolCalls,
		TokenUsage:   models.TokenUsage{TotalTokens: 40},
	}
}

// TestCoordinator_DelegatesAndReplies verifies the full round-trip: a
// user_request update triggers a delegation child workflow, the child's
// summary reaches the model, and the final reply reaches the caller.
func (s *CoordinatorWorkflowTestSuite) TestCoordinator_DelegatesAndReplies() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(delegateCall("call-1", `{"agent":"web_agent","request":"check the login page"}`), nil).Once()

	s.env.OnWorkflow(SpecialistWorkflow, mock.Anything, mock.Anything).
		Return(SpecialistResult{
			Agent:       "web_agent",
			Summary:     "Login page renders and the form submits.",
			Iterations:  3,
			TotalTokens: 500,
		}, nil).Once()

	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(stopResponse("The login page works.", 30), nil).Once()

	var reply UserRequestResponse
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserRequest, "req-1", &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { s.T().Errorf("update rejected: %v", err) },
			OnComplete: func(result interface{}, err error) {
				require.NoError(s.T(), err)
				resp, ok := result.(UserRequestResponse)
				require.True(s.T(), ok, "result should be UserRequestResponse")
				reply = resp
			},
		}, UserRequest{Text: "does the login page work?"})
	}, time.Second)

	s.env.ExecuteWorkflow(CoordinatorWorkflow, coordinatorInput())

	require.True(s.T(), s.env.IsWorkflowCompleted())
	assert.True(s.T(), workflow.IsContinueAsNewError(s.env.GetWorkflowError()),
		"idle timeout should roll the session over")

	assert.Equal(s.T(), "The login page works.", reply.Reply)
	require.Len(s.T(), reply.Delegations, 1)
	assert.Equal(s.T(), "web_agent", reply.Delegations[0].Agent)
	assert.Equal(s.T(), DelegationCompleted, reply.Delegations[0].Status)
	assert.Equal(s.T(), "session-1/web_agent-1", reply.Delegations[0].WorkflowID)
	assert.Equal(s.T(), 570, reply.TotalTokens)
}

// TestCoordinator_RejectsEmptyRequest verifies the update validator.
func (s *CoordinatorWorkflowTestSuite) TestCoordinator_RejectsEmptyRequest() {
	rejected := false
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserRequest, "req-1", &testsuite.TestUpdateCallback{
			OnAccept:   func() { s.T().Error("empty request must be rejected") },
			OnReject:   func(err error) { rejected = true },
			OnComplete: func(interface{}, error) {},
		}, UserRequest{Text: ""})
	}, time.Second)

	s.env.ExecuteWorkflow(CoordinatorWorkflow, coordinatorInput())

	require.True(s.T(), s.env.IsWorkflowCompleted())
	assert.True(s.T(), rejected)
}

// TestCoordinator_UnknownSpecialistBecomesToolFailure verifies a delegation
// to an undeclared agent is reported back to the model, not a workflow error.
func (s *CoordinatorWorkflowTestSuite) TestCoordinator_UnknownSpecialistBecomesToolFailure() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(delegateCall("call-1", `{"agent":"db_agent","request":"migrate"}`), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(stopResponse("There is no database specialist.", 20), nil).Once()

	var reply UserRequestResponse
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserRequest, "req-1", &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { s.T().Errorf("update rejected: %v", err) },
			OnComplete: func(result interface{}, err error) {
				require.NoError(s.T(), err)
				reply, _ = result.(UserRequestResponse)
			},
		}, UserRequest{Text: "migrate the database"})
	}, time.Second)

	s.env.ExecuteWorkflow(CoordinatorWorkflow, coordinatorInput())

	require.True(s.T(), s.env.IsWorkflowCompleted())
	assert.Equal(s.T(), "There is no database specialist.", reply.Reply)
	assert.Empty(s.T(), reply.Delegations, "nothing was spawned")
}

// TestCoordinator_InvalidTopologyFails verifies a config without a
// coordinator agent fails the workflow immediately.
func (s *CoordinatorWorkflowTestSuite) TestCoordinator_InvalidTopologyFails() {
	input := coordinatorInput()
	input.Agents = input.Agents[1:] // drop the coordinator

	s.env.ExecuteWorkflow(CoordinatorWorkflow, input)

	require.True(s.T(), s.env.IsWorkflowCompleted())
	require.Error(s.T(), s.env.GetWorkflowError())
}

// TestCoordinator_QueriesExposeState verifies get_history and get_delegations.
func (s *CoordinatorWorkflowTestSuite) TestCoordinator_QueriesExposeState() {
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(stopResponse("Hello, what should the team do?", 10), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserRequest, "req-1", &testsuite.TestUpdateCallback{
			OnAccept:   func() {},
			OnReject:   func(err error) { s.T().Errorf("update rejected: %v", err) },
			OnComplete: func(interface{}, error) {},
		}, UserRequest{Text: "hello"})
	}, time.Second)

	s.env.RegisterDelayedCallback(func() {
		value, err := s.env.QueryWorkflow(QueryGetHistory)
		require.NoError(s.T(), err)
		var items []models.ConversationItem
		require.NoError(s.T(), value.Get(&items))
		require.Len(s.T(), items, 2)
		assert.Equal(s.T(), models.ItemTypeUserMessage, items[0].Type)
		assert.Equal(s.T(), models.ItemTypeAssistantMessage, items[1].Type)

		value, err = s.env.QueryWorkflow(QueryGetDelegations)
		require.NoError(s.T(), err)
		var delegations []DelegationEntry
		require.NoError(s.T(), value.Get(&delegations))
		assert.Empty(s.T(), delegations)
	}, 2*time.Second)

	s.env.ExecuteWorkflow(CoordinatorWorkflow, coordinatorInput())
	require.True(s.T(), s.env.IsWorkflowCompleted())
}
