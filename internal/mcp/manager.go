package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolSpec is the toolset-agnostic description of one exposed tool, passed to
// the workflow layer so it can advertise tools to the model without depending
// on the MCP SDK.
type ToolSpec struct {
	QualifiedName string                 `json:"qualified_name"` // mcp__toolset__tool
	Toolset       string                 `json:"toolset"`
	ToolName      string                 `json:"tool_name"`
	Description   string                 `json:"description"`
	InputSchema   map[string]interface{} `json:"input_schema,omitempty"`
	ReadOnly      bool                   `json:"read_only,omitempty"`
}

// InitResult is the outcome of bringing up all toolsets for a session.
type InitResult struct {
	// Tools maps qualified name to metadata for every discovered tool.
	Tools map[string]ToolInfo
	// Specs lists tool specifications ready for the workflow layer.
	Specs []ToolSpec
	// Failures records toolsets that failed to start (name to error message).
	Failures map[string]string
}

// managedClient pairs a live MCP session with the config it was built from.
type managedClient struct {
	session *gomcp.ClientSession
	config  ToolsetConfig
}

// ConnectionManager owns the MCP client sessions for one agent session: one
// connection per configured toolset, plus the qualified tool catalog.
type ConnectionManager struct {
	mu      sync.Mutex
	clients map[string]*managedClient // toolset name to live session
	tools   map[string]ToolInfo       // qualified name to tool metadata
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*managedClient),
		tools:   make(map[string]ToolInfo),
	}
}

// Initialize starts all enabled toolsets in parallel, discovers their tools,
// applies filtering and name qualification, and returns the merged catalog.
// A required toolset that fails aborts initialization; optional failures are
// recorded in the result and skipped.
func (m *ConnectionManager) Initialize(ctx context.Context, toolsets map[string]ToolsetConfig) (*InitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type startResult struct {
		name    string
		tools   []ToolInfo
		err     error
		session *gomcp.ClientSession
		config  ToolsetConfig
	}

	type enabledToolset struct {
		name   string
		config ToolsetConfig
	}
	var enabled []enabledToolset
	for name, cfg := range toolsets {
		if cfg.IsEnabled() {
			enabled = append(enabled, enabledToolset{name, cfg})
		}
	}

	if len(enabled) == 0 {
		return &InitResult{Tools: m.tools, Failures: map[string]string{}}, nil
	}

	results := make([]startResult, len(enabled))
	var wg sync.WaitGroup
	for i, ts := range enabled {
		wg.Add(1)
		go func(idx int, name string, cfg ToolsetConfig) {
			defer wg.Done()
			result := startResult{name: name, config: cfg}

			session, err := m.connect(ctx, name, cfg)
			if err != nil {
				result.err = err
				results[idx] = result
				return
			}
			result.session = session

			listCtx, cancel := context.WithTimeout(ctx, cfg.GetStartupTimeout())
			defer cancel()

			toolsResult, err := session.ListTools(listCtx, nil)
			if err != nil {
				result.err = fmt.Errorf("failed to list tools for %s: %w", name, err)
				_ = session.Close()
				results[idx] = result
				return
			}

			filter := NewToolFilter(cfg.EnabledTools, cfg.DisabledTools)
			var infos []ToolInfo
			for _, t := range toolsResult.Tools {
				if filter.Allows(t.Name) {
					infos = append(infos, ToolInfo{
						Toolset:  name,
						ToolName: t.Name,
						Tool:     t,
					})
				}
			}

			result.tools = infos
			results[idx] = result
		}(i, ts.name, ts.config)
	}
	wg.Wait()

	failures := make(map[string]string)
	var allTools []ToolInfo
	for _, r := range results {
		if r.err != nil {
			failures[r.name] = r.err.Error()
			log.Printf("mcp: toolset %s failed: %v", r.name, r.err)
			continue
		}
		m.clients[r.name] = &managedClient{
			session: r.session,
			config:  r.config,
		}
		allTools = append(allTools, r.tools...)
	}

	for name, cfg := range toolsets {
		if cfg.Required {
			if errMsg, failed := failures[name]; failed {
				return nil, fmt.Errorf("required toolset %s failed to initialize: %s", name, errMsg)
			}
		}
	}

	m.tools = QualifyTools(allTools)

	return &InitResult{
		Tools:    m.tools,
		Specs:    extractSpecs(m.tools),
		Failures: failures,
	}, nil
}

// connect brings up one MCP client session for the given toolset.
func (m *ConnectionManager) connect(ctx context.Context, name string, cfg ToolsetConfig) (*gomcp.ClientSession, error) {
	transport := cfg.Transport

	client := gomcp.NewClient(&gomcp.Implementation{
		Name:    "automesh",
		Version: "1.0.0",
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.GetStartupTimeout())
	defer cancel()

	if transport.IsStdio() {
		cmd := exec.CommandContext(connectCtx, transport.Command, transport.Args...)
		if transport.Cwd != "" {
			cmd.Dir = transport.Cwd
		}
		if len(transport.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range transport.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}

		session, err := client.Connect(connectCtx, &gomcp.CommandTransport{Command: cmd}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to toolset %s (stdio): %w", name, err)
		}
		return session, nil
	}

	if transport.IsHTTP() {
		session, err := client.Connect(connectCtx, &gomcp.StreamableClientTransport{Endpoint: transport.URL}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to toolset %s (HTTP): %w", name, err)
		}
		return session, nil
	}

	return nil, fmt.Errorf("toolset %s has neither command nor URL configured", name)
}

// CallTool dispatches a tool call to the toolset that owns it, bounded by the
// toolset's per-call timeout.
func (m *ConnectionManager) CallTool(ctx context.Context, toolset, toolName string, args map[string]interface{}) (*gomcp.CallToolResult, error) {
	m.mu.Lock()
	mc, ok := m.clients[toolset]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("toolset %q not connected", toolset)
	}

	callCtx, cancel := context.WithTimeout(ctx, mc.config.GetToolTimeout())
	defer cancel()

	result, err := mc.session.CallTool(callCtx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s/%s failed: %w", toolset, toolName, err)
	}

	return result, nil
}

// GetToolInfo returns the metadata for a qualified tool name.
func (m *ConnectionManager) GetToolInfo(qualifiedName string) (ToolInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.tools[qualifiedName]
	return info, ok
}

// GetToolInfoByRef looks up a tool by toolset and original tool name.
func (m *ConnectionManager) GetToolInfoByRef(toolset, toolName string) (ToolInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.tools {
		if info.Toolset == toolset && info.ToolName == toolName {
			return info, true
		}
	}
	return ToolInfo{}, false
}

// extractSpecs converts the qualified tool map into ToolSpec entries.
func extractSpecs(tools map[string]ToolInfo) []ToolSpec {
	specs := make([]ToolSpec, 0, len(tools))
	for qualifiedName, info := range tools {
		spec := ToolSpec{
			QualifiedName: qualifiedName,
			Toolset:       info.Toolset,
			ToolName:      info.ToolName,
		}

		if tool, ok := info.Tool.(*gomcp.Tool); ok {
			spec.Description = tool.Description
			if tool.Annotations != nil && tool.Annotations.ReadOnlyHint {
				spec.ReadOnly = true
			}
			if schema, ok := tool.InputSchema.(map[string]interface{}); ok {
				spec.InputSchema = schema
			}
		}

		specs = append(specs, spec)
	}
	return specs
}

// SetToolInfo adds or updates a catalog entry. Used by tests to inject tool
// metadata without running full initialization.
func (m *ConnectionManager) SetToolInfo(qualifiedName string, info ToolInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[qualifiedName] = info
}

// InjectSession adds a pre-connected session to the manager. Used by tests
// with in-memory transports.
func (m *ConnectionManager) InjectSession(toolset string, session *gomcp.ClientSession, config ToolsetConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[toolset] = &managedClient{
		session: session,
		config:  config,
	}
}

// Close shuts down every connected session and clears the catalog.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, mc := range m.clients {
		if err := mc.session.Close(); err != nil {
			log.Printf("mcp: error closing session for %s: %v", name, err)
		}
	}
	m.clients = make(map[string]*managedClient)
	m.tools = make(map[string]ToolInfo)
}
