package domain

import (
	"time"
)

// Architecture names a coordination topology known to the simulator.
type Architecture string

const (
	ArchitectureSingle        Architecture = "single"
	ArchitectureIndependent   Architecture = "independent"
	ArchitectureCentralized   Architecture = "centralized"
	ArchitectureDecentralized Architecture = "decentralized"
	ArchitectureHybrid        Architecture = "hybrid"
)

// Architectures is the canonical ordering used for iteration and tie-breaks.
var Architectures = []Architecture{
	ArchitectureSingle,
	ArchitectureIndependent,
	ArchitectureCentralized,
	ArchitectureDecentralized,
	ArchitectureHybrid,
}

// TaskFunc is the callable task form. It receives the execution environment
// and returns the task output; a non-nil error marks the unit as failed.
type TaskFunc func(env map[string]any) (any, error)

// TaskResult is the outcome of one ExecuteTask call. It is constructed once
// and never mutated afterwards.
type TaskResult struct {
	Success    bool           `json:"success"`
	Output     any            `json:"output"`
	TokensUsed int            `json:"tokens_used"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Message is a broadcast payload exchanged between peers inside a single
// ExecuteTask invocation of the decentralized and hybrid variants.
type Message struct {
	SenderID string         `json:"sender_id"`
	Content  any            `json:"content"`
	Type     string         `json:"message_type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recognized capability keys.
const (
	CapTokensPerTask             = "tokens_per_task"
	CapCoordinationTokensPerTask = "coordination_tokens_per_task"
	CapCommTokensPerMessage      = "communication_tokens_per_message"
	CapCoordinationRounds        = "coordination_rounds"
	CapStrategyTokens            = "strategy_tokens"
	CapAggregationTokens         = "aggregation_tokens"
	CapTeamCommTokens            = "team_comm_tokens"
)

// Fallback values for absent capability keys.
const (
	DefaultTokensPerTask             = 100
	DefaultCoordinationTokensPerTask = 10
	DefaultCommTokensPerMessage      = 5
	DefaultCoordinationRounds        = 2
	DefaultStrategyTokens            = 20
	DefaultAggregationTokens         = 15
	DefaultTeamCommTokens            = 3
)

// Capabilities holds the named numeric knobs of an agent. Unrecognized keys
// are ignored by the architectures; missing keys fall back to defaults.
type Capabilities map[string]int

// Get returns the value for key, or def when the key is absent.
func (c Capabilities) Get(key string, def int) int {
	if c == nil {
		return def
	}
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// Clone returns a copy so per-team overrides never leak back into the
// caller's map.
func (c Capabilities) Clone() Capabilities {
	out := make(Capabilities, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// AgentMetrics is a snapshot of an agent's counters. The six leading fields
// are present for every agent; the trailing ones only on system-level
// snapshots of the multi-agent variants.
type AgentMetrics struct {
	AgentID          string `json:"agent_id"`
	TokensUsed       int    `json:"tokens_used"`
	TasksCompleted   int    `json:"tasks_completed"`
	ErrorsCount      int    `json:"errors_count"`
	MessagesSent     int    `json:"messages_sent"`
	MessagesReceived int    `json:"messages_received"`

	Agents               []AgentMetrics `json:"agents,omitempty"`
	Teams                []TeamMetrics  `json:"teams,omitempty"`
	TotalAgentTokens     int            `json:"total_agent_tokens,omitempty"`
	CoordinationOverhead int            `json:"coordination_overhead,omitempty"`
	MessagesExchanged    int            `json:"messages_exchanged,omitempty"`
}

// TeamMetrics groups the member snapshots of one hybrid team.
type TeamMetrics struct {
	TeamIndex int            `json:"team_index"`
	Agents    []AgentMetrics `json:"agents"`
}

// CoordinationMetrics carries the four normalized coordination scores
// computed from a snapshot of recorded counters.
type CoordinationMetrics struct {
	Efficiency         float64 `json:"efficiency"`
	Overhead           float64 `json:"overhead"`
	ErrorAmplification float64 `json:"error_amplification"`
	Redundancy         float64 `json:"redundancy"`
}

// Run is a persisted simulation run: one architecture executing one scenario
// workload, with its recorded counters and derived coordination metrics.
type Run struct {
	ID           string               `json:"id"`
	Scenario     string               `json:"scenario"`
	Architecture Architecture         `json:"architecture"`
	NumAgents    int                  `json:"num_agents"`
	Success      bool                 `json:"success"`
	Output       string               `json:"output,omitempty"`
	Error        string               `json:"error,omitempty"`
	TokensUsed   int                  `json:"tokens_used"`
	DurationMS   int64                `json:"duration_ms"`
	Agents       []AgentMetrics       `json:"agents,omitempty"`
	Metrics      *CoordinationMetrics `json:"metrics,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Selection is a persisted selector decision with the rules that fired.
type Selection struct {
	ID        string             `json:"id"`
	Selected  Architecture       `json:"selected"`
	Scores    map[string]float64 `json:"scores"`
	Reasoning []string           `json:"reasoning"`
	CreatedAt time.Time          `json:"created_at"`
}
