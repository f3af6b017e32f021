package agent

import (
	"context"
	"fmt"
	"sync"

	"agentsim/internal/domain"
)

// HybridMultiAgent layers centralized strategic oversight over decentralized
// tactical teams. num_agents workers are grouped into num_agents/team_size
// teams; num_agents must divide evenly, a remainder is rejected at
// construction. A sequence task is distributed one sub-task per team,
// round-robin over teams; a scalar task goes to team 0 whole. Teams execute
// in parallel, each running the decentralized round protocol internally with
// team_comm_tokens charged per intra-team message. The coordination layer
// charges strategy_tokens and aggregation_tokens once per call.
//
// Like the centralized variant, the instance keeps globalState across calls
// and is not safe for concurrent reentrant use.
type HybridMultiAgent struct {
	trk       tracker
	caps      domain.Capabilities
	numAgents int
	teamSize  int
	numTeams  int
	teams     []*DecentralizedMultiAgent

	globalState   map[string]any
	coordOverhead int
}

func NewHybridMultiAgent(agentID string, numAgents, teamSize int, caps domain.Capabilities) (*HybridMultiAgent, error) {
	if agentID == "" {
		agentID = "hybrid_system"
	}
	if numAgents < 1 {
		return nil, fmt.Errorf("hybrid: num_agents must be >= 1, got %d", numAgents)
	}
	if teamSize < 1 {
		return nil, fmt.Errorf("hybrid: team_size must be >= 1, got %d", teamSize)
	}
	if numAgents%teamSize != 0 {
		return nil, fmt.Errorf("hybrid: num_agents (%d) must be divisible by team_size (%d)", numAgents, teamSize)
	}

	teamCaps := caps.Clone()
	teamCaps[domain.CapCommTokensPerMessage] = caps.Get(domain.CapTeamCommTokens, domain.DefaultTeamCommTokens)

	numTeams := numAgents / teamSize
	teams := make([]*DecentralizedMultiAgent, numTeams)
	for i := range teams {
		team, err := NewDecentralizedMultiAgent(fmt.Sprintf("%s_team_%d", agentID, i), teamSize, teamCaps)
		if err != nil {
			return nil, err
		}
		teams[i] = team
	}

	return &HybridMultiAgent{
		trk:         tracker{id: agentID},
		caps:        caps,
		numAgents:   numAgents,
		teamSize:    teamSize,
		numTeams:    numTeams,
		teams:       teams,
		globalState: make(map[string]any),
	}, nil
}

func (a *HybridMultiAgent) ID() string {
	return a.trk.id
}

func (a *HybridMultiAgent) ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult {
	strategyCost := a.caps.Get(domain.CapStrategyTokens, domain.DefaultStrategyTokens)
	aggCost := a.caps.Get(domain.CapAggregationTokens, domain.DefaultAggregationTokens)
	callCoord := strategyCost + aggCost
	a.coordOverhead += callCoord

	teamTasks := a.decompose(task)

	teamEnv := make(map[string]any, len(env)+1)
	for k, v := range env {
		teamEnv[k] = v
	}
	teamEnv["global_state"] = a.globalState

	results := make([]domain.TaskResult, a.numTeams)
	var wg sync.WaitGroup
	for i, team := range a.teams {
		if teamTasks[i] == nil {
			md := baseMetadata(domain.ArchitectureHybrid, a.trk.id)
			md["team_index"] = i
			md["status"] = "idle"
			results[i] = domain.TaskResult{Success: true, Metadata: md}
			continue
		}
		wg.Add(1)
		go func(i int, team *DecentralizedMultiAgent) {
			defer wg.Done()
			results[i] = team.ExecuteTask(ctx, teamTasks[i], teamEnv)
		}(i, team)
	}
	wg.Wait()

	for i, res := range results {
		if res.Success && res.Output != nil {
			a.globalState[fmt.Sprintf("team_%d_result", i)] = res.Output
		}
	}

	return a.aggregate(results, callCoord)
}

// decompose maps the task onto teams: position p of a sequence goes to team
// p % numTeams; a scalar task goes to team 0. A nil entry marks an idle team.
func (a *HybridMultiAgent) decompose(task any) []any {
	teamTasks := make([]any, a.numTeams)

	seq, ok := task.([]any)
	if !ok {
		teamTasks[0] = task
		return teamTasks
	}

	parts := make([][]any, a.numTeams)
	for p, sub := range seq {
		t := p % a.numTeams
		parts[t] = append(parts[t], sub)
	}
	for t, part := range parts {
		switch len(part) {
		case 0:
			// idle team
		case 1:
			teamTasks[t] = part[0]
		default:
			teamTasks[t] = part
		}
	}
	return teamTasks
}

func (a *HybridMultiAgent) aggregate(results []domain.TaskResult, callCoord int) domain.TaskResult {
	total := callCoord
	succeeded := 0
	failedTeams := 0
	outputs := make([]any, 0, len(results))
	for _, res := range results {
		total += res.TokensUsed
		if !res.Success {
			failedTeams++
			continue
		}
		if res.Output != nil {
			succeeded++
			outputs = append(outputs, res.Output)
		}
	}
	a.trk.addTokens(total)

	md := baseMetadata(domain.ArchitectureHybrid, a.trk.id)
	md["num_teams"] = a.numTeams
	md["team_size"] = a.teamSize
	md["successful_teams"] = succeeded
	md["failed_teams"] = failedTeams
	md["coordination_overhead"] = callCoord

	if succeeded == 0 {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: total,
			Error:      "all teams failed",
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

func (a *HybridMultiAgent) Metrics() domain.AgentMetrics {
	m := a.trk.snapshot()
	total := 0
	for i, team := range a.teams {
		tm := team.Metrics()
		total += tm.TotalAgentTokens
		m.Teams = append(m.Teams, domain.TeamMetrics{
			TeamIndex: i,
			Agents:    tm.Agents,
		})
	}
	m.TotalAgentTokens = total
	m.CoordinationOverhead = a.coordOverhead
	return m
}

func (a *HybridMultiAgent) ResetMetrics() {
	a.trk.reset()
	a.coordOverhead = 0
	a.globalState = make(map[string]any)
	for _, team := range a.teams {
		team.ResetMetrics()
	}
}
