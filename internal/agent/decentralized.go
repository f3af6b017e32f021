package agent

import (
	"context"
	"fmt"
	"strings"

	"agentsim/internal/domain"
	"agentsim/internal/messaging/inproc"
)

// DecentralizedMultiAgent runs num_agents peers across coordination_rounds
// synchronized rounds. Each round every peer executes its view of the task
// in index order, then broadcasts its successful output to all peers over
// the in-process bus; broadcast cost is charged to the sender. Peers drain
// their inbox at the start of their next execution, so a round's sends are
// fully visible before the following round.
//
// Consensus is the most recent successful result, resolved by round index
// and then peer index, never by wall-clock arrival; execution is therefore
// deterministic for a deterministic task.
type DecentralizedMultiAgent struct {
	trk       tracker
	caps      domain.Capabilities
	numAgents int
	peers     []*SingleAgent
	bus       *inproc.Bus

	commOverhead      int
	messagesExchanged int
	shared            []domain.Message
}

func NewDecentralizedMultiAgent(agentID string, numAgents int, caps domain.Capabilities) (*DecentralizedMultiAgent, error) {
	if agentID == "" {
		agentID = "decentralized_system"
	}
	if numAgents < 1 {
		return nil, fmt.Errorf("decentralized: num_agents must be >= 1, got %d", numAgents)
	}

	bus := inproc.New(historyLimit)
	peers := make([]*SingleAgent, numAgents)
	for i := range peers {
		peers[i] = NewSingleAgent(fmt.Sprintf("%s_peer_%d", agentID, i), caps)
		bus.Register(peers[i].ID())
	}

	return &DecentralizedMultiAgent{
		trk:       tracker{id: agentID},
		caps:      caps,
		numAgents: numAgents,
		peers:     peers,
		bus:       bus,
	}, nil
}

func (a *DecentralizedMultiAgent) ID() string {
	return a.trk.id
}

func (a *DecentralizedMultiAgent) ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult {
	rounds := a.caps.Get(domain.CapCoordinationRounds, domain.DefaultCoordinationRounds)
	if rounds < 1 {
		rounds = 1
	}
	commCost := a.caps.Get(domain.CapCommTokensPerMessage, domain.DefaultCommTokensPerMessage)

	var (
		latest    *domain.TaskResult
		taskCost  int
		callComm  int
		callMsgs  int
		succeeded int
		failed    int
		errs      []string
	)

	for round := 0; round < rounds; round++ {
		for _, peer := range a.peers {
			inbox := a.bus.Drain(peer.ID())
			for _, msg := range inbox {
				peer.receive(msg)
			}

			peerEnv := make(map[string]any, len(env)+2)
			for k, v := range env {
				peerEnv[k] = v
			}
			peerEnv["round"] = round
			peerEnv["peer_messages"] = inbox

			res := peer.ExecuteTask(ctx, task, peerEnv)
			taskCost += res.TokensUsed
			if !res.Success {
				failed++
				errs = append(errs, res.Error)
				continue
			}

			succeeded++
			r := res
			latest = &r

			msg := domain.Message{
				SenderID: peer.ID(),
				Content:  res.Output,
				Type:     "task_result",
				Metadata: map[string]any{"round": round},
			}
			delivered, err := a.bus.Broadcast(msg)
			if err != nil && delivered == 0 {
				continue
			}
			sendCost := commCost * delivered
			peer.sent(msg, sendCost)
			callComm += sendCost
			callMsgs++
			a.recordShared(msg)
		}
	}

	a.commOverhead += callComm
	a.messagesExchanged += callMsgs

	total := taskCost + callComm
	a.trk.addTokens(total)

	md := baseMetadata(domain.ArchitectureDecentralized, a.trk.id)
	md["num_agents"] = a.numAgents
	md["rounds"] = rounds
	md["successful_results"] = succeeded
	md["failed_results"] = failed
	md["messages_exchanged"] = callMsgs
	md["communication_overhead"] = callComm

	if latest == nil {
		a.trk.taskFailed()
		return domain.TaskResult{
			Success:    false,
			TokensUsed: total,
			Error:      fmt.Sprintf("no agent reached consensus: %s", strings.Join(dedupe(errs), "; ")),
			Metadata:   md,
		}
	}

	a.trk.taskDone()
	return domain.TaskResult{
		Success:    true,
		Output:     latest.Output,
		TokensUsed: total,
		Metadata:   md,
	}
}

func (a *DecentralizedMultiAgent) recordShared(msg domain.Message) {
	if len(a.shared) >= historyLimit {
		a.shared = a.shared[1:]
	}
	a.shared = append(a.shared, msg)
}

func (a *DecentralizedMultiAgent) Metrics() domain.AgentMetrics {
	m := a.trk.snapshot()
	total := 0
	for _, p := range a.peers {
		pm := p.Metrics()
		total += pm.TokensUsed
		m.Agents = append(m.Agents, pm)
	}
	m.TotalAgentTokens = total
	m.CoordinationOverhead = a.commOverhead
	m.MessagesExchanged = a.messagesExchanged
	return m
}

func (a *DecentralizedMultiAgent) ResetMetrics() {
	a.trk.reset()
	a.commOverhead = 0
	a.messagesExchanged = 0
	a.shared = nil
	for _, p := range a.peers {
		a.bus.Drain(p.ID())
		p.ResetMetrics()
	}
}

func dedupe(errs []string) []string {
	seen := make(map[string]bool, len(errs))
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
