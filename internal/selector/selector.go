// Package selector scores the five architecture variants against a task and
// agent descriptor pair using weighted heuristics with a capability
// saturation correction. Scoring is deterministic and performs no I/O.
package selector

import (
	"fmt"
	"math"

	"agentsim/internal/domain"
)

// TaskCharacteristics describes a task's shape; every field is in [0,1].
type TaskCharacteristics struct {
	Parallelizable float64 `json:"parallelizable" yaml:"parallelizable"`
	Dynamic        float64 `json:"dynamic" yaml:"dynamic"`
	Sequential     float64 `json:"sequential" yaml:"sequential"`
	ToolIntensive  float64 `json:"tool_intensive" yaml:"tool_intensive"`
	Complexity     float64 `json:"complexity" yaml:"complexity"`
}

// AgentCapabilities describes the agent/model executing the task.
type AgentCapabilities struct {
	BaselineAccuracy float64 `json:"baseline_accuracy" yaml:"baseline_accuracy"`
	TokenBudget      int     `json:"token_budget" yaml:"token_budget"`
	ModelCapability  float64 `json:"model_capability" yaml:"model_capability"`
}

// Saturation and task-shape constants from the empirical scaling study.
const (
	saturationThreshold = 0.45
	saturationBeta      = -0.408

	lowBudget        = 1000
	toolBudgetLimit  = 5000
	budgetPenalty    = -0.2
	sequentialLimit  = 0.6
	decentralizedSeq = -0.4
)

type modifiers struct {
	base            float64
	sequentialBonus float64
	simpleBonus     float64
	parallelBonus   float64
	amplification   float64
	overheadPenalty float64
	dynamicBonus    float64
	coordCost       float64
	complexBonus    float64
	balancedBonus   float64
}

var architectureModifiers = map[domain.Architecture]modifiers{
	domain.ArchitectureSingle: {
		base:            1.0,
		sequentialBonus: 0.3,
		simpleBonus:     0.2,
	},
	domain.ArchitectureIndependent: {
		base:          0.7,
		amplification: -0.172,
		parallelBonus: 0.4,
	},
	domain.ArchitectureCentralized: {
		base:            0.9,
		amplification:   -0.044,
		parallelBonus:   0.809,
		overheadPenalty: -0.2,
	},
	domain.ArchitectureDecentralized: {
		base:         0.85,
		dynamicBonus: 0.092,
		coordCost:    -0.15,
	},
	domain.ArchitectureHybrid: {
		base:          0.88,
		complexBonus:  0.3,
		balancedBonus: 0.15,
	},
}

func score(arch domain.Architecture, task TaskCharacteristics, caps AgentCapabilities) float64 {
	mods := architectureModifiers[arch]
	s := mods.base

	if caps.BaselineAccuracy > saturationThreshold && arch != domain.ArchitectureSingle {
		s += saturationBeta * (caps.BaselineAccuracy - saturationThreshold)
	}

	switch arch {
	case domain.ArchitectureSingle:
		s += mods.sequentialBonus * task.Sequential
		if task.Complexity < 0.5 {
			s += mods.simpleBonus
		}
	case domain.ArchitectureIndependent:
		s += mods.parallelBonus * task.Parallelizable
		s += mods.amplification * (1.0 - caps.BaselineAccuracy)
	case domain.ArchitectureCentralized:
		s += mods.parallelBonus * task.Parallelizable
		s += mods.overheadPenalty * task.ToolIntensive
		s += mods.amplification
	case domain.ArchitectureDecentralized:
		s += mods.dynamicBonus * task.Dynamic
		s += mods.coordCost * (1.0 - task.Parallelizable)
		if task.Sequential > sequentialLimit {
			s += decentralizedSeq
		}
	case domain.ArchitectureHybrid:
		s += mods.complexBonus * task.Complexity
		balance := 1.0 - stdDev(task.Parallelizable, task.Dynamic, task.Sequential)
		s += mods.balancedBonus * balance
	}

	if caps.TokenBudget < lowBudget && arch != domain.ArchitectureSingle {
		s += budgetPenalty
	}

	s *= 0.8 + 0.4*caps.ModelCapability
	return s
}

// PredictAllScores exposes the raw score of every architecture. Scores are
// relative, not probabilities; they may be negative.
func PredictAllScores(task TaskCharacteristics, caps AgentCapabilities) map[domain.Architecture]float64 {
	scores := make(map[domain.Architecture]float64, len(domain.Architectures))
	for _, arch := range domain.Architectures {
		scores[arch] = score(arch, task, caps)
	}
	return scores
}

// SelectArchitecture returns the argmax of PredictAllScores. Ties resolve to
// the earlier entry of domain.Architectures, so identical inputs always
// yield the same name.
func SelectArchitecture(task TaskCharacteristics, caps AgentCapabilities) domain.Architecture {
	best := domain.Architectures[0]
	bestScore := math.Inf(-1)
	for _, arch := range domain.Architectures {
		if s := score(arch, task, caps); s > bestScore {
			best = arch
			bestScore = s
		}
	}
	return best
}

// Explanation is the outcome of ExplainSelection: the winner, the full score
// table, the rules that fired, and the input descriptors echoed back.
type Explanation struct {
	Selected  domain.Architecture             `json:"selected_architecture"`
	Scores    map[domain.Architecture]float64 `json:"scores"`
	Reasoning []string                        `json:"reasoning"`
	Task      TaskCharacteristics             `json:"task_characteristics"`
	Agent     AgentCapabilities               `json:"agent_capabilities"`
}

// ExplainSelection renders the selection with the specific heuristics that
// fired for these descriptors.
func ExplainSelection(task TaskCharacteristics, caps AgentCapabilities) Explanation {
	var reasoning []string

	if caps.BaselineAccuracy > saturationThreshold {
		reasoning = append(reasoning, fmt.Sprintf(
			"single-agent baseline accuracy (%.0f%%) exceeds the saturation threshold (%.0f%%); added coordination has diminishing returns",
			caps.BaselineAccuracy*100, saturationThreshold*100))
	}
	if task.Parallelizable > 0.7 {
		reasoning = append(reasoning,
			"task is highly parallelizable; centralized coordination can improve outcomes by up to 80.9%")
	}
	if task.Dynamic > 0.7 {
		reasoning = append(reasoning,
			"task requires dynamic adaptation; decentralized coordination adds robustness (9.2% improvement)")
	}
	if task.Sequential > sequentialLimit {
		reasoning = append(reasoning,
			"task requires sequential reasoning; multi-agent coordination degrades performance by 39-70%")
	}
	if task.ToolIntensive > 0.7 && caps.TokenBudget < toolBudgetLimit {
		reasoning = append(reasoning,
			"task is tool-intensive under a limited token budget; coordination overhead hurts")
	}

	return Explanation{
		Selected:  SelectArchitecture(task, caps),
		Scores:    PredictAllScores(task, caps),
		Reasoning: reasoning,
		Task:      task,
		Agent:     caps,
	}
}

// stdDev is the population standard deviation.
func stdDev(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
