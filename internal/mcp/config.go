// Package mcp manages MCP (Model Context Protocol) client connections to the
// external toolset servers the agents use: launching stdio subprocesses or
// dialing streamable HTTP endpoints, discovering tools, and dispatching calls.
package mcp

import "time"

// DefaultStartupTimeout bounds toolset startup and the initial tool listing.
const DefaultStartupTimeout = 10 * time.Second

// DefaultToolTimeout bounds individual tool calls.
const DefaultToolTimeout = 60 * time.Second

// ToolsetConfig configures one MCP toolset server connection.
type ToolsetConfig struct {
	// Transport configuration (stdio subprocess or streamable HTTP).
	Transport TransportConfig `json:"transport" yaml:"transport"`

	// Whether this toolset is enabled. Default: true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Whether this toolset is required. If true, a startup failure aborts
	// session initialization instead of being recorded and skipped.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Timeout for server startup and initial tool listing.
	// Default: DefaultStartupTimeout.
	StartupTimeoutSec *int `json:"startup_timeout_sec,omitempty" yaml:"startup_timeout_sec,omitempty"`

	// Timeout for individual tool calls. Default: DefaultToolTimeout.
	ToolTimeoutSec *int `json:"tool_timeout_sec,omitempty" yaml:"tool_timeout_sec,omitempty"`

	// Explicit allow-list of tool names. If set, only these tools are exposed.
	EnabledTools []string `json:"enabled_tools,omitempty" yaml:"enabled_tools,omitempty"`

	// Explicit deny-list of tool names. These tools are never exposed.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// IsEnabled reports whether this toolset is enabled (default: true).
func (c *ToolsetConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetStartupTimeout returns the startup timeout, defaulting when unset.
func (c *ToolsetConfig) GetStartupTimeout() time.Duration {
	if c.StartupTimeoutSec != nil {
		return time.Duration(*c.StartupTimeoutSec) * time.Second
	}
	return DefaultStartupTimeout
}

// GetToolTimeout returns the tool call timeout, defaulting when unset.
func (c *ToolsetConfig) GetToolTimeout() time.Duration {
	if c.ToolTimeoutSec != nil {
		return time.Duration(*c.ToolTimeoutSec) * time.Second
	}
	return DefaultToolTimeout
}

// TransportConfig specifies how to reach a toolset server. Command and URL
// are mutually exclusive.
type TransportConfig struct {
	// Stdio transport: spawn a subprocess and speak MCP over its pipes.
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// Streamable HTTP transport: connect to an already-running endpoint.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsStdio reports whether this transport spawns a subprocess.
func (t *TransportConfig) IsStdio() bool {
	return t.Command != ""
}

// IsHTTP reports whether this transport dials an HTTP endpoint.
func (t *TransportConfig) IsHTTP() bool {
	return t.URL != ""
}

// ToolFilter controls which tools a toolset exposes. A tool passes when the
// allow-list is absent or contains it, and the deny-list does not.
type ToolFilter struct {
	Enabled  map[string]bool // allow-list (nil = allow all)
	Disabled map[string]bool // deny-list
}

// NewToolFilter builds a ToolFilter from the config's tool lists.
func NewToolFilter(enabledTools, disabledTools []string) ToolFilter {
	var enabled map[string]bool
	if len(enabledTools) > 0 {
		enabled = make(map[string]bool, len(enabledTools))
		for _, t := range enabledTools {
			enabled[t] = true
		}
	}

	disabled := make(map[string]bool, len(disabledTools))
	for _, t := range disabledTools {
		disabled[t] = true
	}

	return ToolFilter{Enabled: enabled, Disabled: disabled}
}

// Allows reports whether the given tool name passes the filter.
func (f *ToolFilter) Allows(toolName string) bool {
	if f.Enabled != nil && !f.Enabled[toolName] {
		return false
	}
	return !f.Disabled[toolName]
}
