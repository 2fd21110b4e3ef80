package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaforge/automesh/internal/agent"
)

func TestDefault_TopologyIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	reg, err := cfg.Registry()
	require.NoError(t, err)

	assert.Equal(t, "coordinator", reg.Coordinator().Name)
	assert.Len(t, reg.Specialists(), 6)
	assert.Len(t, cfg.Toolsets, 7)

	// Every specialist toolset resolves to a configured server.
	for _, d := range reg.Specialists() {
		require.NotEmpty(t, d.Toolsets, "specialist %s has no toolsets", d.Name)
		for _, ts := range d.Toolsets {
			_, ok := cfg.Toolsets[ts]
			assert.True(t, ok, "toolset %s for %s not configured", ts, d.Name)
		}
	}
}

func TestDefault_BrowserToolsetUsesNpx(t *testing.T) {
	cfg := Default()

	pw := cfg.Toolsets["playwright"]
	assert.Equal(t, "npx", pw.Transport.Command)
	assert.Contains(t, pw.Transport.Args, "@playwright/mcp@latest")
	assert.True(t, pw.Transport.IsStdio())
}

func TestNodeBin_EnvOverride(t *testing.T) {
	t.Setenv(EnvNodeBin, "/opt/node22/bin/node")
	assert.Equal(t, "/opt/node22/bin/node", NodeBin())
}

func TestServersDir_EnvOverride(t *testing.T) {
	t.Setenv(EnvServersDir, "/srv/mcp")

	cfg := Default()
	fs := cfg.Toolsets["filesystem"]
	require.Len(t, fs.Transport.Args, 1)
	assert.Equal(t, filepath.Join("/srv/mcp", "mcp-filesystem-server.js"), fs.Transport.Args[0])
}

func TestLoad_RoundTrip(t *testing.T) {
	yml := `
task_queue: qa-tests
model:
  provider: gemini
  model: gemini-2.5-flash
limits:
  max_iterations: 5
agents:
  - name: coordinator
    kind: coordinator
  - name: web_agent
    kind: web
    toolsets: [playwright]
pipelines:
  - name: web_only
    mode: sequential
    agents: [web_agent]
toolsets:
  playwright:
    transport:
      command: npx
      args: ["-y", "@playwright/mcp@latest"]
    tool_timeout_sec: 120
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qa-tests", cfg.TaskQueue)
	assert.Equal(t, 5, cfg.Limits.MaxIterations)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	web, ok := reg.Specialist("web_agent")
	require.True(t, ok)
	assert.Equal(t, agent.KindWeb, web.Kind)

	pw := cfg.Toolsets["playwright"]
	require.NotNil(t, pw.ToolTimeoutSec)
	assert.Equal(t, 120, *pw.ToolTimeoutSec)
}

func TestLoad_RejectsUnknownToolsetReference(t *testing.T) {
	yml := `
agents:
  - name: coordinator
    kind: coordinator
  - name: web_agent
    kind: web
    toolsets: [missing]
toolsets: {}
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown toolset")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
