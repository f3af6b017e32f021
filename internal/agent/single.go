package agent

import (
	"context"

	"agentsim/internal/domain"
)

// SingleAgent executes the task form directly with no sub-agents. Cost is
// the tokens_per_task capability and is charged once per call regardless of
// success or failure.
type SingleAgent struct {
	trk  tracker
	caps domain.Capabilities
}

func NewSingleAgent(agentID string, caps domain.Capabilities) *SingleAgent {
	if agentID == "" {
		agentID = "single_agent"
	}
	return &SingleAgent{
		trk:  tracker{id: agentID},
		caps: caps,
	}
}

func (a *SingleAgent) ID() string {
	return a.trk.id
}

func (a *SingleAgent) ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult {
	cost := a.caps.Get(domain.CapTokensPerTask, domain.DefaultTokensPerTask)
	a.trk.addTokens(cost)

	if err := ctx.Err(); err != nil {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: cost,
			Error:      err.Error(),
			Metadata:   baseMetadata(domain.ArchitectureSingle, a.trk.id),
		}
	}

	out, err := runTask(task, env)
	if err != nil {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: cost,
			Error:      err.Error(),
			Metadata:   baseMetadata(domain.ArchitectureSingle, a.trk.id),
		}
	}

	a.trk.taskDone()
	return domain.TaskResult{
		Success:    true,
		Output:     out,
		TokensUsed: cost,
		Metadata:   baseMetadata(domain.ArchitectureSingle, a.trk.id),
	}
}

func (a *SingleAgent) Metrics() domain.AgentMetrics {
	return a.trk.snapshot()
}

func (a *SingleAgent) ResetMetrics() {
	a.trk.reset()
}

// receive records an inbound peer message; used by the coordinating system
// when draining the broadcast bus on the agent's behalf.
func (a *SingleAgent) receive(msg domain.Message) {
	a.trk.recordReceived(msg)
}

// sent records an outbound broadcast and charges its cost to this agent.
func (a *SingleAgent) sent(msg domain.Message, cost int) {
	a.trk.recordSent(msg)
	a.trk.addTokens(cost)
}
