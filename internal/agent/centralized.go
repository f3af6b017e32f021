package agent

import (
	"context"
	"fmt"

	"agentsim/internal/domain"
)

// SuccessPolicy decides when a centralized run counts as successful.
type SuccessPolicy string

const (
	SuccessAny      SuccessPolicy = "any"
	SuccessMajority SuccessPolicy = "majority"
	SuccessAll      SuccessPolicy = "all"
)

// CentralizedMultiAgent is one implicit coordinator over num_agents workers.
// A sequence task is partitioned round-robin (worker i receives positions
// i, i+n, i+2n, ...); a scalar task goes to worker 0 whole. Execution is
// strictly sequential and the coordinator charges
// coordination_tokens_per_task for every dispatched assignment.
//
// The instance keeps globalState across calls (latest output per worker),
// cleared only by ResetMetrics. Single writer: concurrent reentrant calls on
// the same instance are not supported.
type CentralizedMultiAgent struct {
	trk       tracker
	caps      domain.Capabilities
	numAgents int
	workers   []*SingleAgent
	policy    SuccessPolicy

	globalState   map[string]any
	coordOverhead int
}

func NewCentralizedMultiAgent(agentID string, numAgents int, caps domain.Capabilities) (*CentralizedMultiAgent, error) {
	if agentID == "" {
		agentID = "centralized_system"
	}
	if numAgents < 1 {
		return nil, fmt.Errorf("centralized: num_agents must be >= 1, got %d", numAgents)
	}

	workers := make([]*SingleAgent, numAgents)
	for i := range workers {
		workers[i] = NewSingleAgent(fmt.Sprintf("%s_worker_%d", agentID, i), caps)
	}

	return &CentralizedMultiAgent{
		trk:         tracker{id: agentID},
		caps:        caps,
		numAgents:   numAgents,
		workers:     workers,
		policy:      SuccessAny,
		globalState: make(map[string]any),
	}, nil
}

// SetSuccessPolicy replaces the default "any" aggregation policy.
func (a *CentralizedMultiAgent) SetSuccessPolicy(p SuccessPolicy) error {
	switch p {
	case SuccessAny, SuccessMajority, SuccessAll:
		a.policy = p
		return nil
	default:
		return fmt.Errorf("centralized: unknown success policy %q", p)
	}
}

func (a *CentralizedMultiAgent) ID() string {
	return a.trk.id
}

func (a *CentralizedMultiAgent) ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult {
	coordCost := a.caps.Get(domain.CapCoordinationTokensPerTask, domain.DefaultCoordinationTokensPerTask)

	var subTasks []any
	if seq, ok := task.([]any); ok {
		subTasks = seq
	} else {
		subTasks = []any{task}
	}

	results := make([]domain.TaskResult, 0, len(subTasks))
	callCoord := 0
	for i, sub := range subTasks {
		worker := a.workers[i%a.numAgents]

		enriched := make(map[string]any, len(env)+1)
		for k, v := range env {
			enriched[k] = v
		}
		enriched["global_state"] = a.globalState

		res := worker.ExecuteTask(ctx, sub, enriched)
		results = append(results, res)
		callCoord += coordCost

		if res.Success {
			a.globalState["result_"+worker.ID()] = res.Output
		}
	}
	a.coordOverhead += callCoord

	return a.aggregate(results, callCoord)
}

func (a *CentralizedMultiAgent) aggregate(results []domain.TaskResult, callCoord int) domain.TaskResult {
	total := callCoord
	succeeded := 0
	outputs := make([]any, 0, len(results))
	for _, res := range results {
		total += res.TokensUsed
		if res.Success {
			succeeded++
			outputs = append(outputs, res.Output)
		}
	}
	a.trk.addTokens(total)

	md := baseMetadata(domain.ArchitectureCentralized, a.trk.id)
	md["num_agents"] = a.numAgents
	md["successful_subtasks"] = succeeded
	md["failed_subtasks"] = len(results) - succeeded
	md["coordination_overhead"] = callCoord

	if !a.policyMet(succeeded, len(results)) {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: total,
			Error:      fmt.Sprintf("success policy %q not met: %d/%d subtasks succeeded", a.policy, succeeded, len(results)),
			Metadata:   md,
		}
	}

	var output any
	if len(outputs) == 1 {
		output = outputs[0]
	} else {
		output = outputs
	}

	a.trk.taskDone()
	return domain.TaskResult{
		Success:    true,
		Output:     output,
		TokensUsed: total,
		Metadata:   md,
	}
}

func (a *CentralizedMultiAgent) policyMet(succeeded, total int) bool {
	if total == 0 {
		return false
	}
	switch a.policy {
	case SuccessAll:
		return succeeded == total
	case SuccessMajority:
		return succeeded*2 > total
	default:
		return succeeded > 0
	}
}

func (a *CentralizedMultiAgent) Metrics() domain.AgentMetrics {
	m := a.trk.snapshot()
	total := 0
	for _, w := range a.workers {
		wm := w.Metrics()
		total += wm.TokensUsed
		m.Agents = append(m.Agents, wm)
	}
	m.TotalAgentTokens = total
	m.CoordinationOverhead = a.coordOverhead
	return m
}

func (a *CentralizedMultiAgent) ResetMetrics() {
	a.trk.reset()
	a.coordOverhead = 0
	a.globalState = make(map[string]any)
	for _, w := range a.workers {
		w.ResetMetrics()
	}
}
