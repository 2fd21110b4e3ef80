package mcp

import (
	"crypto/sha1"
	"fmt"
	"log"
)

const (
	// ToolNameDelimiter separates the prefix, toolset name, and tool name.
	ToolNameDelimiter = "__"

	// ToolNamePrefix marks a qualified name as an MCP tool.
	ToolNamePrefix = "mcp"

	// MaxToolNameLength caps qualified names. Provider APIs require tool
	// names matching ^[a-zA-Z0-9_-]+$ of at most 64 characters.
	MaxToolNameLength = 64
)

// ToolInfo holds metadata about a single discovered tool, including the
// toolset and original tool names needed to dispatch a call.
type ToolInfo struct {
	Toolset  string
	ToolName string
	// Tool holds the raw MCP tool definition (schema, description, annotations).
	Tool interface{}
}

// SanitizeName replaces characters outside [a-zA-Z0-9_-] with underscores.
// Returns "_" for an empty input.
func SanitizeName(name string) string {
	sanitized := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			sanitized = append(sanitized, c)
		} else {
			sanitized = append(sanitized, '_')
		}
	}
	if len(sanitized) == 0 {
		return "_"
	}
	return string(sanitized)
}

func sha1Hex(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// QualifyToolName builds the exposed name mcp__<toolset>__<tool>, sanitized.
// Names over MaxToolNameLength are truncated and given a SHA1 suffix so they
// stay unique.
func QualifyToolName(toolset, toolName string) string {
	raw := ToolNamePrefix + ToolNameDelimiter + toolset + ToolNameDelimiter + toolName
	qualified := SanitizeName(raw)

	if len(qualified) > MaxToolNameLength {
		hash := sha1Hex(raw)
		prefixLen := MaxToolNameLength - len(hash)
		qualified = qualified[:prefixLen] + hash
	}

	return qualified
}

// QualifyTools qualifies and deduplicates a list of discovered tools,
// returning a map from qualified name to ToolInfo. Duplicate raw names and
// post-sanitization collisions are skipped with a warning.
func QualifyTools(tools []ToolInfo) map[string]ToolInfo {
	usedNames := make(map[string]bool)
	seenRawNames := make(map[string]bool)
	qualified := make(map[string]ToolInfo)

	for _, tool := range tools {
		rawName := ToolNamePrefix + ToolNameDelimiter + tool.Toolset + ToolNameDelimiter + tool.ToolName

		if seenRawNames[rawName] {
			log.Printf("mcp: skipping duplicated tool %s", rawName)
			continue
		}
		seenRawNames[rawName] = true

		name := SanitizeName(rawName)
		if len(name) > MaxToolNameLength {
			hash := sha1Hex(rawName)
			prefixLen := MaxToolNameLength - len(hash)
			name = name[:prefixLen] + hash
		}

		if usedNames[name] {
			log.Printf("mcp: skipping duplicated tool %s", name)
			continue
		}

		usedNames[name] = true
		qualified[name] = tool
	}

	return qualified
}

// FilterTools applies a ToolFilter to a list of discovered tools.
func FilterTools(tools []ToolInfo, filter ToolFilter) []ToolInfo {
	filtered := make([]ToolInfo, 0, len(tools))
	for _, tool := range tools {
		if filter.Allows(tool.ToolName) {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}
