package selector

import (
	"math"
	"reflect"
	"testing"

	"agentsim/internal/domain"
)

func TestSelectParallelResearchTask(t *testing.T) {
	task := TaskCharacteristics{
		Parallelizable: 0.8,
		Dynamic:        0.2,
		Sequential:     0.1,
		ToolIntensive:  0.5,
		Complexity:     0.6,
	}
	caps := AgentCapabilities{
		BaselineAccuracy: 0.35,
		TokenBudget:      5000,
		ModelCapability:  0.8,
	}

	if got := SelectArchitecture(task, caps); got != domain.ArchitectureCentralized {
		t.Fatalf("expected centralized, got %s", got)
	}

	scores := PredictAllScores(task, caps)
	if len(scores) != len(domain.Architectures) {
		t.Fatalf("expected %d scores, got %d", len(domain.Architectures), len(scores))
	}
	// base 0.9 + 0.809*0.8 - 0.2*0.5 - 0.044, scaled by 0.8 + 0.4*0.8.
	if got := scores[domain.ArchitectureCentralized]; math.Abs(got-1.571584) > 1e-6 {
		t.Fatalf("unexpected centralized score %g", got)
	}
	if got := scores[domain.ArchitectureSingle]; math.Abs(got-1.1536) > 1e-6 {
		t.Fatalf("unexpected single score %g", got)
	}
}

func TestSelectSequentialTaskKeepsSingleAgent(t *testing.T) {
	task := TaskCharacteristics{
		Parallelizable: 0.1,
		Dynamic:        0.2,
		Sequential:     0.9,
		Complexity:     0.3,
	}
	caps := AgentCapabilities{
		BaselineAccuracy: 0.5,
		TokenBudget:      10000,
		ModelCapability:  0.5,
	}

	if got := SelectArchitecture(task, caps); got != domain.ArchitectureSingle {
		t.Fatalf("expected single, got %s", got)
	}

	scores := PredictAllScores(task, caps)
	if scores[domain.ArchitectureDecentralized] >= scores[domain.ArchitectureSingle] {
		t.Fatal("deep sequential chains must penalize decentralized coordination")
	}
}

func TestSaturationPenaltySparesSingleAgent(t *testing.T) {
	task := TaskCharacteristics{Parallelizable: 0.8, Complexity: 0.6}
	low := AgentCapabilities{BaselineAccuracy: 0.45, TokenBudget: 5000, ModelCapability: 0.5}
	high := low
	high.BaselineAccuracy = 0.85

	lowScores := PredictAllScores(task, low)
	highScores := PredictAllScores(task, high)

	if lowScores[domain.ArchitectureSingle] != highScores[domain.ArchitectureSingle] {
		t.Fatal("baseline accuracy must not change the single-agent score")
	}
	for _, arch := range domain.Architectures[1:] {
		if arch == domain.ArchitectureIndependent {
			// Independent also reads accuracy through its amplification term.
			continue
		}
		if highScores[arch] >= lowScores[arch] {
			t.Fatalf("%s: expected saturation penalty above threshold, got %g >= %g",
				arch, highScores[arch], lowScores[arch])
		}
	}
}

func TestLowBudgetPenalizesMultiAgent(t *testing.T) {
	task := TaskCharacteristics{Parallelizable: 0.6, Complexity: 0.6}
	rich := AgentCapabilities{BaselineAccuracy: 0.3, TokenBudget: 5000, ModelCapability: 0.5}
	poor := rich
	poor.TokenBudget = 500

	richScores := PredictAllScores(task, rich)
	poorScores := PredictAllScores(task, poor)

	if poorScores[domain.ArchitectureSingle] != richScores[domain.ArchitectureSingle] {
		t.Fatal("token budget must not change the single-agent score")
	}
	for _, arch := range domain.Architectures[1:] {
		diff := richScores[arch] - poorScores[arch]
		if math.Abs(diff-0.2) > 1e-9 {
			t.Fatalf("%s: expected 0.2 raw budget penalty, got diff %g", arch, diff)
		}
	}
}

func TestSelectionIsDeterministic(t *testing.T) {
	task := TaskCharacteristics{Parallelizable: 0.5, Dynamic: 0.5, Sequential: 0.5, Complexity: 0.5}
	caps := AgentCapabilities{BaselineAccuracy: 0.4, TokenBudget: 2000, ModelCapability: 0.6}

	first := SelectArchitecture(task, caps)
	firstScores := PredictAllScores(task, caps)
	for i := 0; i < 10; i++ {
		if got := SelectArchitecture(task, caps); got != first {
			t.Fatalf("selection changed: %s vs %s", got, first)
		}
		if got := PredictAllScores(task, caps); !reflect.DeepEqual(got, firstScores) {
			t.Fatalf("scores changed: %v vs %v", got, firstScores)
		}
	}
}

func TestExplainSelection(t *testing.T) {
	task := TaskCharacteristics{
		Parallelizable: 0.8,
		Dynamic:        0.2,
		Sequential:     0.1,
		ToolIntensive:  0.5,
		Complexity:     0.6,
	}
	caps := AgentCapabilities{
		BaselineAccuracy: 0.35,
		TokenBudget:      5000,
		ModelCapability:  0.8,
	}

	exp := ExplainSelection(task, caps)
	if exp.Selected != domain.ArchitectureCentralized {
		t.Fatalf("expected centralized, got %s", exp.Selected)
	}
	if len(exp.Scores) != len(domain.Architectures) {
		t.Fatalf("expected a full score table, got %v", exp.Scores)
	}
	// Only the parallelizability rule fires for these descriptors.
	if len(exp.Reasoning) != 1 {
		t.Fatalf("expected one reasoning line, got %v", exp.Reasoning)
	}
	if exp.Task != task || exp.Agent != caps {
		t.Fatal("explanation must echo the input descriptors")
	}
}

func TestExplainSelectionSaturationRule(t *testing.T) {
	task := TaskCharacteristics{Sequential: 0.9}
	caps := AgentCapabilities{BaselineAccuracy: 0.8, TokenBudget: 10000, ModelCapability: 0.5}

	exp := ExplainSelection(task, caps)
	if len(exp.Reasoning) != 2 {
		t.Fatalf("expected saturation and sequential rules to fire, got %v", exp.Reasoning)
	}
}

func TestStdDev(t *testing.T) {
	if got := stdDev(1, 1, 1); got != 0 {
		t.Fatalf("expected 0 for constant values, got %g", got)
	}
	if got := stdDev(); got != 0 {
		t.Fatalf("expected 0 for empty input, got %g", got)
	}
	if got := stdDev(0, 1); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %g", got)
	}
}
