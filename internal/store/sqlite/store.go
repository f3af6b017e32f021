package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agentsim/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	architecture TEXT NOT NULL,
	num_agents INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	output TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	tokens_used INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	agents TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id TEXT PRIMARY KEY,
	efficiency REAL NOT NULL DEFAULT 0,
	overhead REAL NOT NULL DEFAULT 0,
	error_amplification REAL NOT NULL DEFAULT 0,
	redundancy REAL NOT NULL DEFAULT 0,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS selections (
	id TEXT PRIMARY KEY,
	selected TEXT NOT NULL,
	scores TEXT NOT NULL DEFAULT '{}',
	reasoning TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_selections_created ON selections(created_at);
`

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run domain.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	agentsJSON, err := json.Marshal(run.Agents)
	if err != nil {
		return fmt.Errorf("marshal run agents: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs(
			id, scenario, architecture, num_agents, success, output, error,
			tokens_used, duration_ms, agents, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, string(run.Architecture), run.NumAgents, boolToInt(run.Success),
		run.Output, run.Error, run.TokensUsed, run.DurationMS, string(agentsJSON),
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if run.Metrics != nil {
		_, err = s.db.ExecContext(
			ctx,
			`INSERT INTO run_metrics(run_id, efficiency, overhead, error_amplification, redundancy)
			VALUES(?, ?, ?, ?, ?)`,
			run.ID, run.Metrics.Efficiency, run.Metrics.Overhead,
			run.Metrics.ErrorAmplification, run.Metrics.Redundancy,
		)
		if err != nil {
			return fmt.Errorf("save run metrics: %w", err)
		}
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT r.id, r.scenario, r.architecture, r.num_agents, r.success, r.output, r.error,
			r.tokens_used, r.duration_ms, r.agents, r.created_at,
			m.efficiency, m.overhead, m.error_amplification, m.redundancy
		FROM runs r
		LEFT JOIN run_metrics m ON m.run_id = r.id
		WHERE r.id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT r.id, r.scenario, r.architecture, r.num_agents, r.success, r.output, r.error,
			r.tokens_used, r.duration_ms, r.agents, r.created_at,
			m.efficiency, m.overhead, m.error_amplification, m.redundancy
		FROM runs r
		LEFT JOIN run_metrics m ON m.run_id = r.id
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

func (s *Store) SaveSelection(ctx context.Context, sel domain.Selection) error {
	if sel.CreatedAt.IsZero() {
		sel.CreatedAt = time.Now().UTC()
	}

	scoresJSON, err := json.Marshal(sel.Scores)
	if err != nil {
		return fmt.Errorf("marshal selection scores: %w", err)
	}
	reasoningJSON, err := json.Marshal(sel.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal selection reasoning: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO selections(id, selected, scores, reasoning, created_at)
		VALUES(?, ?, ?, ?, ?)`,
		sel.ID, string(sel.Selected), string(scoresJSON), string(reasoningJSON), sel.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

func (s *Store) ListSelections(ctx context.Context, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, selected, scores, reasoning, created_at
		FROM selections ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Selection, 0)
	for rows.Next() {
		var sel domain.Selection
		var selected, scores, reasoning string
		var created int64
		if err := rows.Scan(&sel.ID, &selected, &scores, &reasoning, &created); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		sel.Selected = domain.Architecture(selected)
		if err := json.Unmarshal([]byte(scores), &sel.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal selection scores: %w", err)
		}
		if err := json.Unmarshal([]byte(reasoning), &sel.Reasoning); err != nil {
			return nil, fmt.Errorf("unmarshal selection reasoning: %w", err)
		}
		sel.CreatedAt = time.Unix(created, 0).UTC()
		result = append(result, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var architecture, agents string
	var success int
	var created int64
	var efficiency, overhead, amplification, redundancy sql.NullFloat64
	if err := row.Scan(
		&run.ID, &run.Scenario, &architecture, &run.NumAgents, &success, &run.Output, &run.Error,
		&run.TokensUsed, &run.DurationMS, &agents, &created,
		&efficiency, &overhead, &amplification, &redundancy,
	); err != nil {
		return domain.Run{}, err
	}
	run.Architecture = domain.Architecture(architecture)
	run.Success = success != 0
	run.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(agents), &run.Agents); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal run agents: %w", err)
	}
	if efficiency.Valid {
		run.Metrics = &domain.CoordinationMetrics{
			Efficiency:         efficiency.Float64,
			Overhead:           overhead.Float64,
			ErrorAmplification: amplification.Float64,
			Redundancy:         redundancy.Float64,
		}
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
