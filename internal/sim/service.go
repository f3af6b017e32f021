// Package sim executes scenarios: it builds the requested architecture,
// runs the workload, derives coordination metrics from the recorded
// counters and persists the run.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agentsim/internal/agent"
	"agentsim/internal/domain"
	"agentsim/internal/metrics"
	"agentsim/internal/scenario"
	"agentsim/internal/selector"
)

type Store interface {
	SaveRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, runID string) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	SaveSelection(ctx context.Context, sel domain.Selection) error
	ListSelections(ctx context.Context, limit int) ([]domain.Selection, error)
}

type Config struct {
	DefaultCapabilities domain.Capabilities
	BaselineErrorRate   float64
	RunHistoryLimit     int
}

func (c Config) withDefaults() Config {
	if c.BaselineErrorRate <= 0 {
		c.BaselineErrorRate = 0.1
	}
	if c.RunHistoryLimit <= 0 {
		c.RunHistoryLimit = 100
	}
	return c
}

type Service struct {
	store  Store
	cfg    Config
	logger *log.Logger
}

func New(store Store, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// RunScenario executes one scenario and persists the resulting run. The
// returned error covers configuration and storage problems only; task-level
// failure is reported inside the run record.
func (s *Service) RunScenario(ctx context.Context, sc scenario.Scenario) (domain.Run, error) {
	arch := domain.Architecture(sc.Architecture)
	if sc.Architecture == scenario.ArchitectureAuto {
		arch = selector.SelectArchitecture(sc.Selector.Task, sc.Selector.Agent)
		s.logger.Printf("scenario %s: selector chose %s", sc.Name, arch)
	}

	caps := s.mergedCapabilities(sc.Capabilities)
	system, err := agent.New(arch, "", sc.Agents, sc.TeamSize, caps)
	if err != nil {
		return domain.Run{}, fmt.Errorf("build %s system: %w", arch, err)
	}

	started := time.Now()
	res := system.ExecuteTask(ctx, sc.BuildTask(), map[string]any{"scenario": sc.Name})
	elapsed := time.Since(started)

	snapshot := system.Metrics()
	derived := s.deriveMetrics(sc, res, snapshot)

	run := domain.Run{
		ID:           uuid.NewString(),
		Scenario:     sc.Name,
		Architecture: arch,
		NumAgents:    sc.Agents,
		Success:      res.Success,
		Output:       encodeOutput(res.Output),
		Error:        res.Error,
		TokensUsed:   res.TokensUsed,
		DurationMS:   elapsed.Milliseconds(),
		Agents:       flattenAgents(snapshot),
		Metrics:      &derived,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.SaveRun(ctx, run); err != nil {
		return domain.Run{}, fmt.Errorf("persist run: %w", err)
	}

	s.logger.Printf("run %s: scenario=%s architecture=%s success=%t tokens=%d duration=%s",
		run.ID, run.Scenario, run.Architecture, run.Success, run.TokensUsed, elapsed)
	return run, nil
}

// Select scores the descriptor pair, persists the decision and returns it.
func (s *Service) Select(ctx context.Context, task selector.TaskCharacteristics, caps selector.AgentCapabilities) (domain.Selection, selector.Explanation, error) {
	expl := selector.ExplainSelection(task, caps)

	scores := make(map[string]float64, len(expl.Scores))
	for arch, v := range expl.Scores {
		scores[string(arch)] = v
	}
	sel := domain.Selection{
		ID:        uuid.NewString(),
		Selected:  expl.Selected,
		Scores:    scores,
		Reasoning: expl.Reasoning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveSelection(ctx, sel); err != nil {
		return domain.Selection{}, selector.Explanation{}, fmt.Errorf("persist selection: %w", err)
	}

	s.logger.Printf("selection %s: %s (%d rules fired)", sel.ID, sel.Selected, len(sel.Reasoning))
	return sel, expl, nil
}

func (s *Service) Runs(ctx context.Context) ([]domain.Run, error) {
	return s.store.ListRuns(ctx, s.cfg.RunHistoryLimit)
}

func (s *Service) Run(ctx context.Context, runID string) (domain.Run, error) {
	return s.store.GetRun(ctx, runID)
}

func (s *Service) Selections(ctx context.Context) ([]domain.Selection, error) {
	return s.store.ListSelections(ctx, s.cfg.RunHistoryLimit)
}

func (s *Service) mergedCapabilities(overrides domain.Capabilities) domain.Capabilities {
	caps := s.cfg.DefaultCapabilities.Clone()
	for k, v := range overrides {
		caps[k] = v
	}
	return caps
}

// deriveMetrics converts the run's counter snapshot into the four
// coordination scores. Actions are leaf executions; unique actions are the
// distinct work units of the scenario, capped by the action count.
func (s *Service) deriveMetrics(sc scenario.Scenario, res domain.TaskResult, snapshot domain.AgentMetrics) domain.CoordinationMetrics {
	leafTasks, leafErrors := countLeaf(snapshot)
	totalActions := leafTasks + leafErrors

	uniqueActions := 1
	if sc.Task.Kind == scenario.KindSequence {
		uniqueActions = sc.Task.Units
	}
	if uniqueActions > totalActions {
		uniqueActions = totalActions
	}

	progress := 0.0
	multiRate := 0.0
	if totalActions > 0 {
		progress = float64(leafTasks) / float64(totalActions)
		multiRate = float64(leafErrors) / float64(totalActions)
	}

	baseline := s.cfg.DefaultCapabilities.Get(domain.CapTokensPerTask, domain.DefaultTokensPerTask)
	return metrics.ComputeAll(metrics.Input{
		TaskProgress:       progress,
		TotalTokens:        res.TokensUsed,
		AgentTokens:        res.TokensUsed - snapshot.CoordinationOverhead,
		CoordinationTokens: snapshot.CoordinationOverhead,
		SingleErrorRate:    s.cfg.BaselineErrorRate,
		MultiErrorRate:     multiRate,
		UniqueActions:      uniqueActions,
		TotalActions:       totalActions,
		BaselineTokens:     baseline,
	})
}

// countLeaf sums completed tasks and errors over every leaf agent in a
// system snapshot; for a single agent the snapshot itself is the leaf.
func countLeaf(m domain.AgentMetrics) (tasks, errors int) {
	if len(m.Agents) == 0 && len(m.Teams) == 0 {
		return m.TasksCompleted, m.ErrorsCount
	}
	for _, am := range m.Agents {
		t, e := countLeaf(am)
		tasks += t
		errors += e
	}
	for _, team := range m.Teams {
		for _, am := range team.Agents {
			t, e := countLeaf(am)
			tasks += t
			errors += e
		}
	}
	return tasks, errors
}

// flattenAgents lists every leaf agent snapshot of a system in a stable
// order for persistence.
func flattenAgents(m domain.AgentMetrics) []domain.AgentMetrics {
	if len(m.Agents) == 0 && len(m.Teams) == 0 {
		leaf := m
		leaf.Agents = nil
		leaf.Teams = nil
		return []domain.AgentMetrics{leaf}
	}

	var out []domain.AgentMetrics
	for _, am := range m.Agents {
		out = append(out, flattenAgents(am)...)
	}
	for _, team := range m.Teams {
		for _, am := range team.Agents {
			out = append(out, flattenAgents(am)...)
		}
	}
	return out
}

func encodeOutput(output any) string {
	if output == nil {
		return ""
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprint(output)
	}
	return string(raw)
}
