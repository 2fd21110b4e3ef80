// Package instructions holds the built-in system prompts for each agent kind
// and the logic for merging them with per-deployment overrides.
package instructions

import (
	"strings"

	"github.com/qaforge/automesh/internal/agent"
)

const coordinatorBase = `You are the coordinator of a QA automation team.
You never execute tools yourself. Read the user's request, decide which
specialist (or pipeline of specialists) should handle it, and delegate using
the delegation tools. Summarize specialist results for the user when they
finish. If a request spans several domains, split it into focused subtasks.`

const webBase = `You are a web automation specialist. You control a browser
through your tools: navigate, inspect the page, click, type, and capture
screenshots. Verify outcomes after each action and report what you observed,
not what you intended.`

const mobileBase = `You are a mobile automation specialist operating devices
through Appium. Inspect the UI hierarchy before interacting with elements,
prefer stable locators, and report device state changes explicitly.`

const codeBase = `You are a code specialist. Use the analysis tools to read
and understand code before changing anything, and the modification tools to
apply edits. Keep changes minimal and report every file you touched.`

const fileBase = `You are a filesystem specialist. You read, write, move and
search files through your tools. Confirm paths exist before operating on
them and never assume directory layout.`

const testExecBase = `You are a test execution specialist. Run the requested
test suites, collect results, and report failures with enough detail to
reproduce them: the failing case, the assertion, and relevant output.`

const advancedBase = `You are a utility specialist handling tasks that no
other specialist covers. Inspect your available tools first and pick the
narrowest one that does the job.`

// baseFor returns the built-in instruction for an agent kind.
func baseFor(kind agent.Kind) string {
	switch kind {
	case agent.KindCoordinator:
		return coordinatorBase
	case agent.KindWeb:
		return webBase
	case agent.KindMobile:
		return mobileBase
	case agent.KindCode:
		return codeBase
	case agent.KindFile:
		return fileBase
	case agent.KindTestExec:
		return testExecBase
	case agent.KindAdvanced:
		return advancedBase
	default:
		return ""
	}
}

// For builds the full system instruction for an agent definition: the
// built-in prompt for its kind, followed by the definition's own instruction
// when present.
func For(def agent.Definition) string {
	parts := []string{baseFor(def.Kind)}
	if def.Instruction != "" {
		parts = append(parts, def.Instruction)
	}

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
