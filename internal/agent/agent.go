// Package agent defines the agent topology: the coordinator, the specialist
// definitions it can delegate to, and the pipelines that chain specialists.
package agent

import (
	"fmt"

	"github.com/qaforge/automesh/internal/models"
)

// Kind identifies the role of an agent within the topology.
type Kind string

const (
	KindCoordinator Kind = "coordinator"
	KindWeb         Kind = "web"
	KindMobile      Kind = "mobile"
	KindCode        Kind = "code"
	KindFile        Kind = "file"
	KindTestExec    Kind = "test_exec"
	KindAdvanced    Kind = "advanced"
)

// Valid reports whether k is a known agent kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCoordinator, KindWeb, KindMobile, KindCode, KindFile, KindTestExec, KindAdvanced:
		return true
	}
	return false
}

// Definition describes one agent: its model, its instruction, and the
// toolsets it is allowed to use. Toolset names refer to entries in the
// session's toolset configuration.
type Definition struct {
	Name        string             `json:"name" yaml:"name"`
	Kind        Kind               `json:"kind" yaml:"kind"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Model       models.ModelConfig `json:"model" yaml:"model"`
	Instruction string             `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Toolsets    []string           `json:"toolsets,omitempty" yaml:"toolsets,omitempty"`
}

// PipelineMode controls how a pipeline runs its member agents.
type PipelineMode string

const (
	// PipelineSequential runs members in order, feeding each agent's summary
	// to the next.
	PipelineSequential PipelineMode = "sequential"
	// PipelineParallel runs all members concurrently on the same request.
	PipelineParallel PipelineMode = "parallel"
)

// Pipeline names an ordered group of specialists run as one delegation.
type Pipeline struct {
	Name   string       `json:"name" yaml:"name"`
	Mode   PipelineMode `json:"mode" yaml:"mode"`
	Agents []string     `json:"agents" yaml:"agents"`
}

// Registry holds the validated topology for a deployment.
type Registry struct {
	coordinator Definition
	specialists map[string]Definition
	pipelines   map[string]Pipeline
	order       []string // specialist names in declaration order
}

// NewRegistry validates the definitions and pipelines and builds a registry.
// Exactly one coordinator is required; names must be unique; pipelines may
// only reference declared specialists.
func NewRegistry(defs []Definition, pipelines []Pipeline) (*Registry, error) {
	r := &Registry{
		specialists: make(map[string]Definition),
		pipelines:   make(map[string]Pipeline),
	}

	coordinatorSeen := false
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("agent definition with empty name")
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("agent %s: unknown kind %q", d.Name, d.Kind)
		}
		if d.Kind == KindCoordinator {
			if coordinatorSeen {
				return nil, fmt.Errorf("multiple coordinator agents (%s and %s)", r.coordinator.Name, d.Name)
			}
			coordinatorSeen = true
			r.coordinator = d
			continue
		}
		if _, dup := r.specialists[d.Name]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", d.Name)
		}
		r.specialists[d.Name] = d
		r.order = append(r.order, d.Name)
	}

	if !coordinatorSeen {
		return nil, fmt.Errorf("no coordinator agent defined")
	}
	if r.coordinator.Name != "" {
		if _, clash := r.specialists[r.coordinator.Name]; clash {
			return nil, fmt.Errorf("duplicate agent name %q", r.coordinator.Name)
		}
	}

	for _, p := range pipelines {
		if p.Name == "" {
			return nil, fmt.Errorf("pipeline with empty name")
		}
		if p.Mode != PipelineSequential && p.Mode != PipelineParallel {
			return nil, fmt.Errorf("pipeline %s: unknown mode %q", p.Name, p.Mode)
		}
		if len(p.Agents) == 0 {
			return nil, fmt.Errorf("pipeline %s has no agents", p.Name)
		}
		for _, name := range p.Agents {
			if _, ok := r.specialists[name]; !ok {
				return nil, fmt.Errorf("pipeline %s references unknown agent %q", p.Name, name)
			}
		}
		if _, dup := r.pipelines[p.Name]; dup {
			return nil, fmt.Errorf("duplicate pipeline name %q", p.Name)
		}
		r.pipelines[p.Name] = p
	}

	return r, nil
}

// Coordinator returns the coordinator definition.
func (r *Registry) Coordinator() Definition {
	return r.coordinator
}

// Specialist returns the named specialist definition.
func (r *Registry) Specialist(name string) (Definition, bool) {
	d, ok := r.specialists[name]
	return d, ok
}

// Specialists returns all specialist definitions in declaration order.
func (r *Registry) Specialists() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specialists[name])
	}
	return out
}

// Pipeline returns the named pipeline.
func (r *Registry) Pipeline(name string) (Pipeline, bool) {
	p, ok := r.pipelines[name]
	return p, ok
}

// Pipelines returns all pipelines keyed by name.
func (r *Registry) Pipelines() map[string]Pipeline {
	return r.pipelines
}
