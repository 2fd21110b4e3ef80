package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
)

func testRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg, err := agent.NewRegistry(
		[]agent.Definition{
			{Name: "coordinator", Kind: agent.KindCoordinator},
			{Name: "web_agent", Kind: agent.KindWeb, Description: "Browser automation"},
			{Name: "mobile_agent", Kind: agent.KindMobile, Description: "Device automation"},
		},
		[]agent.Pipeline{
			{Name: "full_platform_check", Mode: agent.PipelineParallel, Agents: []string{"web_agent", "mobile_agent"}},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestIsDelegationTool(t *testing.T) {
	assert.True(t, isDelegationTool(ToolDelegate))
	assert.True(t, isDelegationTool(ToolDelegateParallel))
	assert.True(t, isDelegationTool(ToolRunPipeline))
	assert.False(t, isDelegationTool("mcp__playwright__navigate"))
}

func TestDelegationToolSpecs(t *testing.T) {
	specs := delegationToolSpecs(testRegistry(t))
	require.Len(t, specs, 3)

	byName := make(map[string]models.ToolSpec)
	for _, s := range specs {
		byName[s.Name] = s
	}

	delegate := byName[ToolDelegate]
	assert.Contains(t, delegate.Description, "web_agent: Browser automation")
	assert.Contains(t, delegate.Description, "mobile_agent: Device automation")

	props := delegate.InputSchema["properties"].(map[string]interface{})
	agentProp := props["agent"].(map[string]interface{})
	assert.Equal(t, []string{"web_agent", "mobile_agent"}, agentProp["enum"])

	pipeline := byName[ToolRunPipeline]
	assert.Contains(t, pipeline.Description, "full_platform_check (parallel): web_agent -> mobile_agent")
}

func TestDelegationToolSpecs_NoPipelines(t *testing.T) {
	reg, err := agent.NewRegistry([]agent.Definition{
		{Name: "coordinator", Kind: agent.KindCoordinator},
		{Name: "web_agent", Kind: agent.KindWeb},
	}, nil)
	require.NoError(t, err)

	specs := delegationToolSpecs(reg)
	require.Len(t, specs, 2, "run_pipeline is omitted when no pipelines exist")
	for _, s := range specs {
		assert.NotEqual(t, ToolRunPipeline, s.Name)
	}
}

func TestToolsetsFor(t *testing.T) {
	all := map[string]mcp.ToolsetConfig{
		"playwright": {Transport: mcp.TransportConfig{Command: "npx"}},
		"appium":     {Transport: mcp.TransportConfig{Command: "node"}},
		"filesystem": {Transport: mcp.TransportConfig{Command: "node"}},
	}
	def := agent.Definition{
		Name:     "web_agent",
		Toolsets: []string{"playwright", "missing"},
	}

	out := toolsetsFor(def, all)
	require.Len(t, out, 1)
	assert.Contains(t, out, "playwright")
}

func TestRenderResult(t *testing.T) {
	full := renderResult(SpecialistResult{
		Agent:             "web_agent",
		Summary:           "Checkout flow verified.",
		ToolCallsExecuted: []string{"mcp__playwright__navigate", "mcp__playwright__click"},
	})
	assert.Contains(t, full, "[web_agent] Checkout flow verified.")
	assert.Contains(t, full, "tools used: mcp__playwright__navigate, mcp__playwright__click")

	limited := renderResult(SpecialistResult{
		Agent:       "web_agent",
		Summary:     "partial",
		LimitReason: "iteration budget exhausted (20)",
	})
	assert.Contains(t, limited, "stopped early: iteration budget exhausted (20)")
}

func TestResolveToolTimeout(t *testing.T) {
	specs := map[string]models.ToolSpec{
		"mcp__playwright__navigate": {Name: "mcp__playwright__navigate", DefaultTimeoutMs: 30_000},
	}

	// Model-supplied override wins.
	got := resolveToolTimeout(specs, "mcp__playwright__navigate",
		map[string]interface{}{"timeout_ms": float64(5000)})
	assert.Equal(t, 5*time.Second, got)

	// Spec default applies without an override.
	got = resolveToolTimeout(specs, "mcp__playwright__navigate", nil)
	assert.Equal(t, 30*time.Second, got)

	// Unknown tools fall back to the global default.
	got = resolveToolTimeout(specs, "mcp__playwright__other", map[string]interface{}{})
	assert.Equal(t, defaultToolTimeout, got)

	// Garbage overrides are ignored.
	got = resolveToolTimeout(specs, "mcp__playwright__navigate",
		map[string]interface{}{"timeout_ms": "soon"})
	assert.Equal(t, 30*time.Second, got)
}

func TestToInt64(t *testing.T) {
	v, ok := toInt64(float64(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = toInt64(7)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok = toInt64("42")
	assert.False(t, ok)
}
