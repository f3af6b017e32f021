package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentsim/internal/domain"
)

func TestParseAppliesDefaults(t *testing.T) {
	sc, err := Parse([]byte("name: smoke\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Architecture != string(domain.ArchitectureSingle) {
		t.Fatalf("expected single architecture default, got %q", sc.Architecture)
	}
	if sc.Agents != 3 || sc.TeamSize != 1 {
		t.Fatalf("unexpected sizing defaults: %d/%d", sc.Agents, sc.TeamSize)
	}
	if sc.Task.Kind != KindCallable {
		t.Fatalf("expected callable task default, got %q", sc.Task.Kind)
	}
}

func TestParseFullScenario(t *testing.T) {
	raw := []byte(`
name: research
architecture: centralized
agents: 4
team_size: 2
capabilities:
  tokens_per_task: 50
task:
  kind: sequence
  units: 8
  fail: [2, 5]
`)
	sc, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Architecture != string(domain.ArchitectureCentralized) || sc.Agents != 4 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if got := sc.Capabilities.Get(domain.CapTokensPerTask, 0); got != 50 {
		t.Fatalf("expected capability override 50, got %d", got)
	}
	if sc.Task.Units != 8 || len(sc.Task.Fail) != 2 {
		t.Fatalf("unexpected workload %+v", sc.Task)
	}
}

func TestParseSequenceUnitsDefaultToAgents(t *testing.T) {
	raw := []byte("name: seq\nagents: 5\ntask:\n  kind: sequence\n")
	sc, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Task.Units != 5 {
		t.Fatalf("expected units to default to agents, got %d", sc.Task.Units)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"missing name", "architecture: single\n", "name is required"},
		{"unknown architecture", "name: x\narchitecture: quorum\n", "unknown architecture"},
		{"auto without selector", "name: x\narchitecture: auto\n", "requires a selector block"},
		{"unknown kind", "name: x\ntask:\n  kind: batch\n", "unknown task kind"},
		{"fail out of range", "name: x\ntask:\n  kind: sequence\n  units: 3\n  fail: [3]\n", "out of range"},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.raw))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseAutoWithSelector(t *testing.T) {
	raw := []byte(`
name: auto-pick
architecture: auto
selector:
  task:
    parallelizable: 0.8
    complexity: 0.6
  agent:
    baseline_accuracy: 0.35
    token_budget: 5000
    model_capability: 0.8
`)
	sc, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Selector == nil || sc.Selector.Task.Parallelizable != 0.8 || sc.Selector.Agent.TokenBudget != 5000 {
		t.Fatalf("unexpected selector block %+v", sc.Selector)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte("name: from-file\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Name != "from-file" {
		t.Fatalf("unexpected scenario %+v", sc)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildTaskForms(t *testing.T) {
	value := Scenario{Name: "v", Task: Workload{Kind: KindValue, Value: "opaque"}}
	if got := value.BuildTask(); got != "opaque" {
		t.Fatalf("expected verbatim value, got %v", got)
	}

	callable := Scenario{Name: "c", Task: Workload{Kind: KindCallable}}
	fn, ok := callable.BuildTask().(domain.TaskFunc)
	if !ok {
		t.Fatalf("expected a task func, got %T", callable.BuildTask())
	}
	out, err := fn(nil)
	if err != nil || out != "unit-0" {
		t.Fatalf("unexpected unit result %v, %v", out, err)
	}

	failing := Scenario{Name: "f", Task: Workload{Kind: KindCallable, Fail: []int{0}}}
	fn = failing.BuildTask().(domain.TaskFunc)
	if _, err := fn(nil); err == nil {
		t.Fatal("expected failing unit to error")
	}

	seq := Scenario{Name: "s", Task: Workload{Kind: KindSequence, Units: 3, Fail: []int{1}}}
	units, ok := seq.BuildTask().([]any)
	if !ok || len(units) != 3 {
		t.Fatalf("expected 3 units, got %v", seq.BuildTask())
	}
	for i, u := range units {
		out, err := u.(domain.TaskFunc)(nil)
		if i == 1 {
			if err == nil {
				t.Fatal("expected unit 1 to fail")
			}
			continue
		}
		if err != nil || out == nil {
			t.Fatalf("unit %d: unexpected result %v, %v", i, out, err)
		}
	}
}
