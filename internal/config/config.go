// Package config loads the deployment configuration: agent definitions,
// pipelines, toolset server commands, and session limits. Configuration comes
// from a YAML file, with a built-in default topology when no file is given.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/qaforge/automesh/internal/agent"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/models"
	"github.com/qaforge/automesh/internal/policy"
)

// Environment variables consulted when building the default topology.
const (
	// EnvNodeBin overrides the node binary used to launch the local toolset
	// servers. When unset, node is resolved from PATH.
	EnvNodeBin = "AUTOMESH_NODE_BIN"

	// EnvServersDir points at the directory containing the local MCP server
	// scripts (mcp-filesystem-server.js and friends).
	EnvServersDir = "AUTOMESH_SERVERS_DIR"
)

// DefaultTaskQueue is the Temporal task queue workers and clients share.
const DefaultTaskQueue = "automesh"

// Config is the full deployment configuration.
type Config struct {
	// TaskQueue is the Temporal task queue name.
	TaskQueue string `yaml:"task_queue,omitempty"`

	// Model is the default model configuration for agents that do not set
	// their own.
	Model models.ModelConfig `yaml:"model,omitempty"`

	// Limits are the session safety limits.
	Limits policy.Limits `yaml:"limits,omitempty"`

	// Agents lists the coordinator and specialists.
	Agents []agent.Definition `yaml:"agents"`

	// Pipelines lists named specialist chains.
	Pipelines []agent.Pipeline `yaml:"pipelines,omitempty"`

	// Toolsets maps toolset name to its MCP server configuration.
	Toolsets map[string]mcp.ToolsetConfig `yaml:"toolsets"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the topology and toolset references.
func (c *Config) Validate() error {
	reg, err := agent.NewRegistry(c.Agents, c.Pipelines)
	if err != nil {
		return err
	}
	for _, d := range reg.Specialists() {
		for _, ts := range d.Toolsets {
			if _, ok := c.Toolsets[ts]; !ok {
				return fmt.Errorf("agent %s references unknown toolset %q", d.Name, ts)
			}
		}
	}
	return nil
}

// Registry builds the validated agent registry from the config.
func (c *Config) Registry() (*agent.Registry, error) {
	return agent.NewRegistry(c.Agents, c.Pipelines)
}

func (c *Config) applyDefaults() {
	if c.TaskQueue == "" {
		c.TaskQueue = DefaultTaskQueue
	}
	if c.Model.Provider == "" {
		c.Model = models.DefaultModelConfig()
	}
}

// NodeBin resolves the node binary for the local toolset servers. The
// explicit override wins; otherwise node is looked up on PATH.
func NodeBin() string {
	if bin := os.Getenv(EnvNodeBin); bin != "" {
		return bin
	}
	if path, err := exec.LookPath("node"); err == nil {
		return path
	}
	return "node"
}

// ServersDir returns the directory holding the local MCP server scripts.
func ServersDir() string {
	if dir := os.Getenv(EnvServersDir); dir != "" {
		return dir
	}
	return "./mcp-servers"
}

// nodeServer builds a stdio toolset config that runs a local node script.
func nodeServer(script string) mcp.ToolsetConfig {
	return mcp.ToolsetConfig{
		Transport: mcp.TransportConfig{
			Command: NodeBin(),
			Args:    []string{filepath.Join(ServersDir(), script)},
		},
	}
}

// Default returns the built-in topology: a coordinator plus six specialists,
// each bound to the toolset servers it needs. The browser toolset runs the
// published Playwright MCP server via npx; the rest are local node scripts.
func Default() *Config {
	model := models.DefaultModelConfig()

	return &Config{
		TaskQueue: DefaultTaskQueue,
		Model:     model,
		Limits:    policy.DefaultLimits(),
		Agents: []agent.Definition{
			{
				Name:        "coordinator",
				Kind:        agent.KindCoordinator,
				Description: "Routes user requests to the right specialist",
				Model:       model,
			},
			{
				Name:        "web_agent",
				Kind:        agent.KindWeb,
				Description: "Browser automation and web testing",
				Model:       model,
				Toolsets:    []string{"playwright"},
			},
			{
				Name:        "mobile_agent",
				Kind:        agent.KindMobile,
				Description: "Mobile device automation via Appium",
				Model:       model,
				Toolsets:    []string{"appium"},
			},
			{
				Name:        "code_agent",
				Kind:        agent.KindCode,
				Description: "Code analysis and modification",
				Model:       model,
				Toolsets:    []string{"code_analysis", "code_modification"},
			},
			{
				Name:        "file_agent",
				Kind:        agent.KindFile,
				Description: "Filesystem operations",
				Model:       model,
				Toolsets:    []string{"filesystem"},
			},
			{
				Name:        "test_exec_agent",
				Kind:        agent.KindTestExec,
				Description: "Test suite execution and reporting",
				Model:       model,
				Toolsets:    []string{"test_execution"},
			},
			{
				Name:        "advanced_agent",
				Kind:        agent.KindAdvanced,
				Description: "Extended utilities for tasks no other specialist covers",
				Model:       model,
				Toolsets:    []string{"advanced"},
			},
		},
		Pipelines: []agent.Pipeline{
			{
				Name:   "modify_then_test",
				Mode:   agent.PipelineSequential,
				Agents: []string{"code_agent", "test_exec_agent"},
			},
			{
				Name:   "full_platform_check",
				Mode:   agent.PipelineParallel,
				Agents: []string{"web_agent", "mobile_agent"},
			},
		},
		Toolsets: map[string]mcp.ToolsetConfig{
			"playwright": {
				Transport: mcp.TransportConfig{
					Command: "npx",
					Args:    []string{"-y", "@playwright/mcp@latest"},
				},
			},
			"filesystem":        nodeServer("mcp-filesystem-server.js"),
			"appium":            nodeServer("mcp-appium-server-new.js"),
			"test_execution":    nodeServer("mcp-test-execution-server.js"),
			"code_analysis":     nodeServer("mcp-code-analysis-server.js"),
			"code_modification": nodeServer("mcp-code-modification-server.js"),
			"advanced":          nodeServer("mcp-advanced-server.js"),
		},
	}
}
