package agent

import (
	"context"
	"fmt"
	"strings"

	"agentsim/internal/domain"
)

// IndependentMultiAgent fans an identical copy of the task out to num_agents
// peer workers with no communication channel between them. The first
// successful result by completion order wins; every worker's cost is charged
// even when its result is discarded.
//
// Completion order is decided by the Go scheduler, so the winning output is
// not reproducible across runs unless num_agents is 1.
type IndependentMultiAgent struct {
	trk       tracker
	caps      domain.Capabilities
	numAgents int
	workers   []*SingleAgent
}

func NewIndependentMultiAgent(agentID string, numAgents int, caps domain.Capabilities) (*IndependentMultiAgent, error) {
	if agentID == "" {
		agentID = "independent_system"
	}
	if numAgents < 1 {
		return nil, fmt.Errorf("independent: num_agents must be >= 1, got %d", numAgents)
	}

	workers := make([]*SingleAgent, numAgents)
	for i := range workers {
		workers[i] = NewSingleAgent(fmt.Sprintf("%s_agent_%d", agentID, i), caps)
	}

	return &IndependentMultiAgent{
		trk:       tracker{id: agentID},
		caps:      caps,
		numAgents: numAgents,
		workers:   workers,
	}, nil
}

func (a *IndependentMultiAgent) ID() string {
	return a.trk.id
}

func (a *IndependentMultiAgent) ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult {
	results := make(chan domain.TaskResult, a.numAgents)
	for _, w := range a.workers {
		go func(w *SingleAgent) {
			results <- w.ExecuteTask(ctx, task, env)
		}(w)
	}

	var (
		first      *domain.TaskResult
		totalCost  int
		succeeded  int
		failed     int
		errSummary []string
	)
	for i := 0; i < a.numAgents; i++ {
		res := <-results
		totalCost += res.TokensUsed
		if res.Success {
			succeeded++
			if first == nil {
				r := res
				first = &r
			}
		} else {
			failed++
			errSummary = append(errSummary, res.Error)
		}
	}

	a.trk.addTokens(totalCost)

	md := baseMetadata(domain.ArchitectureIndependent, a.trk.id)
	md["num_agents"] = a.numAgents
	md["successful_agents"] = succeeded
	md["failed_agents"] = failed

	if first == nil {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: totalCost,
			Error:      fmt.Sprintf("all agents failed: %s", strings.Join(errSummary, "; ")),
			Metadata:   md,
		}
	}

	a.trk.taskDone()
	return domain.TaskResult{
		Success:    true,
		Output:     first.Output,
		TokensUsed: totalCost,
		Metadata:   md,
	}
}

func (a *IndependentMultiAgent) Metrics() domain.AgentMetrics {
	m := a.trk.snapshot()
	total := 0
	for _, w := range a.workers {
		wm := w.Metrics()
		total += wm.TokensUsed
		m.Agents = append(m.Agents, wm)
	}
	m.TotalAgentTokens = total
	return m
}

func (a *IndependentMultiAgent) ResetMetrics() {
	a.trk.reset()
	for _, w := range a.workers {
		w.ResetMetrics()
	}
}
