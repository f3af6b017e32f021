// Package metrics converts recorded execution counters into the four
// normalized coordination scores: efficiency, overhead, error amplification
// and redundancy. All functions are pure; they read already-recorded scalars,
// never live agent state.
package metrics

import (
	"fmt"

	"agentsim/internal/domain"
)

// AmplificationCap is returned when the single-agent baseline error rate is
// zero but the multi-agent system still errs.
const AmplificationCap = 20.0

// minNormalizedTokens keeps Efficiency finite for tiny token counts.
const minNormalizedTokens = 0.01

// Efficiency is task progress per unit of computation, normalized to a
// single-agent token baseline. Zero tokens means zero efficiency.
func Efficiency(progress float64, tokensUsed, baselineTokens int) float64 {
	if tokensUsed == 0 {
		return 0
	}
	if baselineTokens <= 0 {
		baselineTokens = domain.DefaultTokensPerTask
	}
	normalized := float64(tokensUsed) / float64(baselineTokens)
	if normalized < minNormalizedTokens {
		normalized = minNormalizedTokens
	}
	return progress / normalized
}

// Overhead is the share of total tokens spent on coordination rather than
// task work. The caller is responsible for agentTokens+coordinationTokens
// summing to totalTokens; the function does not enforce it.
func Overhead(totalTokens, agentTokens, coordinationTokens int) float64 {
	_ = agentTokens
	if totalTokens == 0 {
		return 0
	}
	return float64(coordinationTokens) / float64(totalTokens)
}

// ErrorAmplification is the ratio of the multi-agent error rate to the
// single-agent baseline. A zero baseline yields AmplificationCap when the
// multi-agent system errs at all, 1.0 otherwise.
func ErrorAmplification(singleRate, multiRate float64) float64 {
	if singleRate == 0 {
		if multiRate > 0 {
			return AmplificationCap
		}
		return 1.0
	}
	return multiRate / singleRate
}

// Redundancy is the duplicated share of agent actions: 1 - unique/total.
// Requires uniqueActions <= totalActions; zero total actions means zero
// redundancy.
func Redundancy(uniqueActions, totalActions int) float64 {
	if totalActions == 0 {
		return 0
	}
	r := 1.0 - float64(uniqueActions)/float64(totalActions)
	if r < 0 {
		return 0
	}
	return r
}

// Input bundles the recorded scalars needed to compute every metric at once.
type Input struct {
	TaskProgress       float64
	TotalTokens        int
	AgentTokens        int
	CoordinationTokens int
	SingleErrorRate    float64
	MultiErrorRate     float64
	UniqueActions      int
	TotalActions       int
	BaselineTokens     int
}

// ComputeAll packages the four metrics for one counter snapshot. It adds no
// logic of its own.
func ComputeAll(in Input) domain.CoordinationMetrics {
	return domain.CoordinationMetrics{
		Efficiency:         Efficiency(in.TaskProgress, in.TotalTokens, in.BaselineTokens),
		Overhead:           Overhead(in.TotalTokens, in.AgentTokens, in.CoordinationTokens),
		ErrorAmplification: ErrorAmplification(in.SingleErrorRate, in.MultiErrorRate),
		Redundancy:         Redundancy(in.UniqueActions, in.TotalActions),
	}
}

// Baseline carries the single-agent reference values for FromResults.
type Baseline struct {
	ErrorRate      float64
	BaselineTokens int
}

// FromResults derives a metric set from a batch of task results, treating
// each result as one action. Progress is the successful share, coordination
// tokens are read from the per-result coordination_overhead metadata, and
// redundancy compares distinct outputs against the batch size.
func FromResults(results []domain.TaskResult, baseline Baseline) domain.CoordinationMetrics {
	if baseline.BaselineTokens <= 0 {
		baseline.BaselineTokens = domain.DefaultTokensPerTask
	}

	total := len(results)
	totalTokens := 0
	coordination := 0
	succeeded := 0
	outputs := make(map[string]bool)
	for _, r := range results {
		totalTokens += r.TokensUsed
		if v, ok := r.Metadata["coordination_overhead"]; ok {
			switch n := v.(type) {
			case int:
				coordination += n
			case float64:
				coordination += int(n)
			}
		}
		if r.Success {
			succeeded++
			outputs[fmt.Sprint(r.Output)] = true
		}
	}

	progress := 0.0
	multiRate := 0.0
	if total > 0 {
		progress = float64(succeeded) / float64(total)
		multiRate = float64(total-succeeded) / float64(total)
	}

	return ComputeAll(Input{
		TaskProgress:       progress,
		TotalTokens:        totalTokens,
		AgentTokens:        totalTokens - coordination,
		CoordinationTokens: coordination,
		SingleErrorRate:    baseline.ErrorRate,
		MultiErrorRate:     multiRate,
		UniqueActions:      len(outputs),
		TotalActions:       total,
		BaselineTokens:     baseline.BaselineTokens,
	})
}
