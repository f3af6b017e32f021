package agent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"agentsim/internal/domain"
)

func hybridCaps() domain.Capabilities {
	return domain.Capabilities{
		domain.CapTokensPerTask:      100,
		domain.CapCoordinationRounds: 1,
		domain.CapTeamCommTokens:     3,
		domain.CapStrategyTokens:     20,
		domain.CapAggregationTokens:  15,
	}
}

func TestHybridRejectsInvalidShape(t *testing.T) {
	if _, err := NewHybridMultiAgent("h", 5, 2, nil); err == nil {
		t.Fatal("expected error for 5 agents with team_size 2")
	}
	if _, err := NewHybridMultiAgent("h", 4, 0, nil); err == nil {
		t.Fatal("expected error for team_size 0")
	}
	if _, err := NewHybridMultiAgent("h", 0, 1, nil); err == nil {
		t.Fatal("expected error for num_agents 0")
	}
}

func TestHybridSequenceDistribution(t *testing.T) {
	sys, err := NewHybridMultiAgent("hyb", 4, 2, hybridCaps())
	if err != nil {
		t.Fatalf("build system: %v", err)
	}

	task := []any{"a", "b", "c", "d"}
	res := sys.ExecuteTask(context.Background(), task, nil)
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}

	// Positions 0,2 go to team 0 and 1,3 to team 1; each team returns its
	// assigned slice verbatim, ordered by team index.
	want := []any{[]any{"a", "c"}, []any{"b", "d"}}
	if !reflect.DeepEqual(res.Output, want) {
		t.Fatalf("expected outputs %v, got %v", want, res.Output)
	}

	// Per team: 2 peer executions at 100 plus 2 single-recipient broadcasts
	// at 3; strategy and aggregation are charged once for the call.
	if res.TokensUsed != 2*(2*100+2*3)+20+15 {
		t.Fatalf("expected 447 tokens, got %d", res.TokensUsed)
	}
	if res.Metadata["coordination_overhead"] != 35 {
		t.Fatalf("expected 35 coordination tokens, got %v", res.Metadata["coordination_overhead"])
	}
	if res.Metadata["successful_teams"] != 2 || res.Metadata["num_teams"] != 2 {
		t.Fatalf("unexpected team metadata %v", res.Metadata)
	}

	m := sys.Metrics()
	if len(m.Teams) != 2 {
		t.Fatalf("expected 2 team metric blocks, got %d", len(m.Teams))
	}
	if m.TotalAgentTokens != 412 {
		t.Fatalf("expected teams to carry 412 tokens, got %d", m.TotalAgentTokens)
	}
	if m.CoordinationOverhead != 35 {
		t.Fatalf("expected 35 coordination tokens in metrics, got %d", m.CoordinationOverhead)
	}
	for i, tm := range m.Teams {
		if len(tm.Agents) != 2 {
			t.Fatalf("team %d: expected 2 peers, got %d", i, len(tm.Agents))
		}
	}
}

func TestHybridScalarTaskIdlesOtherTeams(t *testing.T) {
	sys, err := NewHybridMultiAgent("hyb", 4, 2, hybridCaps())
	if err != nil {
		t.Fatalf("build system: %v", err)
	}

	res := sys.ExecuteTask(context.Background(), "solo", nil)
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	// Only team 0 executes; its single output is unwrapped.
	if res.Output != "solo" {
		t.Fatalf("expected unwrapped output, got %v", res.Output)
	}
	if res.TokensUsed != 2*100+2*3+20+15 {
		t.Fatalf("expected 241 tokens, got %d", res.TokensUsed)
	}
	if res.Metadata["successful_teams"] != 1 {
		t.Fatalf("idle teams must not count as successful, got %v", res.Metadata["successful_teams"])
	}

	m := sys.Metrics()
	for _, pm := range m.Teams[1].Agents {
		if pm.TokensUsed != 0 {
			t.Fatalf("idle team peer spent tokens: %+v", pm)
		}
	}
}

func TestHybridGlobalStateAcrossCalls(t *testing.T) {
	sys, err := NewHybridMultiAgent("hyb", 2, 2, hybridCaps())
	if err != nil {
		t.Fatalf("build system: %v", err)
	}

	if res := sys.ExecuteTask(context.Background(), "first", nil); !res.Success {
		t.Fatalf("first call failed: %q", res.Error)
	}

	var seen map[string]any
	probe := domain.TaskFunc(func(env map[string]any) (any, error) {
		state, _ := env["global_state"].(map[string]any)
		seen = state
		return "second", nil
	})
	if res := sys.ExecuteTask(context.Background(), probe, nil); !res.Success {
		t.Fatalf("second call failed: %q", res.Error)
	}
	if seen == nil || seen["team_0_result"] != "first" {
		t.Fatalf("expected first call's output in global state, got %v", seen)
	}

	sys.ResetMetrics()
	seen = nil
	if res := sys.ExecuteTask(context.Background(), probe, nil); !res.Success {
		t.Fatalf("post-reset call failed: %q", res.Error)
	}
	if len(seen) != 0 {
		t.Fatalf("reset must clear global state, got %v", seen)
	}
}

func TestHybridAllTeamsFail(t *testing.T) {
	sys, err := NewHybridMultiAgent("hyb", 2, 1, hybridCaps())
	if err != nil {
		t.Fatalf("build system: %v", err)
	}

	task := []any{
		domain.TaskFunc(func(map[string]any) (any, error) { return nil, errors.New("x") }),
		domain.TaskFunc(func(map[string]any) (any, error) { return nil, errors.New("y") }),
	}
	res := sys.ExecuteTask(context.Background(), task, nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "all teams failed" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	// Coordination is still charged on a failed call.
	if res.TokensUsed != 2*100+20+15 {
		t.Fatalf("expected 235 tokens, got %d", res.TokensUsed)
	}
	if m := sys.Metrics(); m.ErrorsCount != 1 {
		t.Fatalf("expected one system error, got %+v", m)
	}
}
