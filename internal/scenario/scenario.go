// Package scenario defines simulation workloads: the architecture to run,
// its sizing, capability overrides and a synthetic task description.
// Scenarios are written as YAML files or posted as JSON to the simulator.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentsim/internal/domain"
	"agentsim/internal/selector"
)

// ArchitectureAuto asks the run service to pick the architecture with the
// selector; it requires the Selector descriptor block.
const ArchitectureAuto = "auto"

// Workload kinds.
const (
	KindValue    = "value"
	KindCallable = "callable"
	KindSequence = "sequence"
)

type Scenario struct {
	Name         string              `yaml:"name" json:"name"`
	Architecture string              `yaml:"architecture" json:"architecture"`
	Agents       int                 `yaml:"agents" json:"agents"`
	TeamSize     int                 `yaml:"team_size" json:"team_size"`
	Capabilities domain.Capabilities `yaml:"capabilities" json:"capabilities,omitempty"`
	Task         Workload            `yaml:"task" json:"task"`
	Selector     *Descriptors        `yaml:"selector" json:"selector,omitempty"`
}

// Workload describes the synthetic task. KindValue is an opaque value
// returned verbatim; KindCallable is one work unit; KindSequence is Units
// ordered work units. Units listed in Fail return an error when executed.
type Workload struct {
	Kind  string `yaml:"kind" json:"kind"`
	Value string `yaml:"value" json:"value,omitempty"`
	Units int    `yaml:"units" json:"units,omitempty"`
	Fail  []int  `yaml:"fail" json:"fail,omitempty"`
}

// Descriptors pairs the selector inputs for architecture "auto".
type Descriptors struct {
	Task  selector.TaskCharacteristics `yaml:"task" json:"task"`
	Agent selector.AgentCapabilities   `yaml:"agent" json:"agent"`
}

// Load reads and validates a scenario YAML file.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario file %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates scenario YAML.
func Parse(raw []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	sc = sc.withDefaults()
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (s Scenario) withDefaults() Scenario {
	if s.Architecture == "" {
		s.Architecture = string(domain.ArchitectureSingle)
	}
	if s.Agents <= 0 {
		s.Agents = 3
	}
	if s.TeamSize <= 0 {
		s.TeamSize = 1
	}
	if s.Task.Kind == "" {
		s.Task.Kind = KindCallable
	}
	if s.Task.Kind == KindSequence && s.Task.Units <= 0 {
		s.Task.Units = s.Agents
	}
	return s
}

func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}

	if s.Architecture != ArchitectureAuto {
		known := false
		for _, arch := range domain.Architectures {
			if s.Architecture == string(arch) {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("scenario %s: unknown architecture %q", s.Name, s.Architecture)
		}
	} else if s.Selector == nil {
		return fmt.Errorf("scenario %s: architecture %q requires a selector block", s.Name, ArchitectureAuto)
	}

	switch s.Task.Kind {
	case KindValue, KindCallable:
	case KindSequence:
		if s.Task.Units < 1 {
			return fmt.Errorf("scenario %s: sequence workload needs units >= 1", s.Name)
		}
		for _, idx := range s.Task.Fail {
			if idx < 0 || idx >= s.Task.Units {
				return fmt.Errorf("scenario %s: fail index %d out of range [0,%d)", s.Name, idx, s.Task.Units)
			}
		}
	default:
		return fmt.Errorf("scenario %s: unknown task kind %q", s.Name, s.Task.Kind)
	}

	return nil
}

// BuildTask materializes the workload into a task form accepted by the
// architectures.
func (s Scenario) BuildTask() any {
	switch s.Task.Kind {
	case KindValue:
		return s.Task.Value
	case KindSequence:
		failing := make(map[int]bool, len(s.Task.Fail))
		for _, idx := range s.Task.Fail {
			failing[idx] = true
		}
		seq := make([]any, s.Task.Units)
		for i := range seq {
			seq[i] = workUnit(i, failing[i])
		}
		return seq
	default:
		failing := len(s.Task.Fail) > 0
		return workUnit(0, failing)
	}
}

func workUnit(index int, fail bool) domain.TaskFunc {
	return func(env map[string]any) (any, error) {
		if fail {
			return nil, fmt.Errorf("unit %d failed", index)
		}
		return fmt.Sprintf("unit-%d", index), nil
	}
}
