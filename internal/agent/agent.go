package agent

import (
	"context"
	"fmt"

	"agentsim/internal/domain"
)

// historyLimit bounds the per-agent message history retained for metrics.
const historyLimit = 256

// Agent is the capability contract shared by every architecture variant.
// ExecuteTask never returns a Go error: task-level failures are reported
// through TaskResult, and only invalid construction-time configuration is
// surfaced as an error (by the New* constructors).
type Agent interface {
	ID() string
	ExecuteTask(ctx context.Context, task any, env map[string]any) domain.TaskResult
	Metrics() domain.AgentMetrics
	ResetMetrics()
}

// runTask invokes one task form with the execution environment. Accepted
// forms: domain.TaskFunc, func(map[string]any) (any, error),
// func() (any, error); anything else is returned verbatim. A panic inside a
// callable is converted into an error.
func runTask(task any, env map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if env == nil {
		env = map[string]any{}
	}

	switch fn := task.(type) {
	case domain.TaskFunc:
		return fn(env)
	case func(map[string]any) (any, error):
		return fn(env)
	case func() (any, error):
		return fn()
	default:
		return task, nil
	}
}

// tracker owns the running counters of one agent. Counters are mutated only
// by the owning agent during ExecuteTask and zeroed by ResetMetrics.
type tracker struct {
	id               string
	tokensUsed       int
	tasksCompleted   int
	errorsCount      int
	messagesSent     int
	messagesReceived int
	history          []domain.Message
}

func (t *tracker) addTokens(n int) {
	t.tokensUsed += n
}

func (t *tracker) taskDone() {
	t.tasksCompleted++
}

func (t *tracker) taskFailed() {
	t.errorsCount++
}

func (t *tracker) recordSent(msg domain.Message) {
	t.messagesSent++
	t.appendHistory(msg)
}

func (t *tracker) recordReceived(msg domain.Message) {
	t.messagesReceived++
	t.appendHistory(msg)
}

func (t *tracker) appendHistory(msg domain.Message) {
	if len(t.history) >= historyLimit {
		t.history = t.history[1:]
	}
	t.history = append(t.history, msg)
}

func (t *tracker) snapshot() domain.AgentMetrics {
	return domain.AgentMetrics{
		AgentID:          t.id,
		TokensUsed:       t.tokensUsed,
		TasksCompleted:   t.tasksCompleted,
		ErrorsCount:      t.errorsCount,
		MessagesSent:     t.messagesSent,
		MessagesReceived: t.messagesReceived,
	}
}

func (t *tracker) reset() {
	t.tokensUsed = 0
	t.tasksCompleted = 0
	t.errorsCount = 0
	t.messagesSent = 0
	t.messagesReceived = 0
	t.history = nil
}

func baseMetadata(arch domain.Architecture, agentID string) map[string]any {
	return map[string]any{
		"architecture": string(arch),
		"agent_id":     agentID,
	}
}
