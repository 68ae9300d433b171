package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agentsched/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario_name TEXT NOT NULL,
	task_count INTEGER NOT NULL,
	agent_count INTEGER NOT NULL,
	baseline_makespan INTEGER NOT NULL,
	optimized_makespan INTEGER NOT NULL,
	generations INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	task_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	UNIQUE(run_id, stage, task_id),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_run_assignments_lookup ON run_assignments(run_id, stage, start_time);
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

// SaveRun persists a run record together with the baseline and optimized
// schedules in one transaction.
func (s *Store) SaveRun(ctx context.Context, run domain.ScheduleRun, baseline, optimized domain.Schedule) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO runs(
			id, scenario_name, task_count, agent_count,
			baseline_makespan, optimized_makespan, generations, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScenarioName, run.TaskCount, run.AgentCount,
		run.BaselineMakespan, run.OptimizedMakespan, run.Generations, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stages := []struct {
		stage    domain.Stage
		schedule domain.Schedule
	}{
		{domain.StageBaseline, baseline},
		{domain.StageOptimized, optimized},
	}
	for _, st := range stages {
		for _, a := range st.schedule.Assignments {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO run_assignments(run_id, stage, task_id, agent_id, start_time, end_time)
				VALUES(?, ?, ?, ?, ?, ?)`,
				run.ID, string(st.stage), a.TaskID, a.AgentID, a.Start, a.End,
			)
			if err != nil {
				return fmt.Errorf("insert %s assignment for task %s: %w", st.stage, a.TaskID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.ScheduleRun, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, scenario_name, task_count, agent_count,
			baseline_makespan, optimized_makespan, generations, created_at
		FROM runs WHERE id = ?`,
		runID,
	)
	var r domain.ScheduleRun
	var created int64
	if err := row.Scan(
		&r.ID, &r.ScenarioName, &r.TaskCount, &r.AgentCount,
		&r.BaselineMakespan, &r.OptimizedMakespan, &r.Generations, &created,
	); err != nil {
		return domain.ScheduleRun{}, fmt.Errorf("get run: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]domain.ScheduleRun, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, scenario_name, task_count, agent_count,
			baseline_makespan, optimized_makespan, generations, created_at
		FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ScheduleRun, 0)
	for rows.Next() {
		var r domain.ScheduleRun
		var created int64
		if err := rows.Scan(
			&r.ID, &r.ScenarioName, &r.TaskCount, &r.AgentCount,
			&r.BaselineMakespan, &r.OptimizedMakespan, &r.Generations, &created,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

// GetSchedule rebuilds one stage's schedule for a run.
func (s *Store) GetSchedule(ctx context.Context, runID string, stage domain.Stage) (domain.Schedule, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, agent_id, start_time, end_time
		FROM run_assignments
		WHERE run_id = ? AND stage = ?
		ORDER BY start_time ASC, task_id ASC`,
		runID, string(stage),
	)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("list run assignments: %w", err)
	}
	defer rows.Close()

	sched := domain.NewSchedule()
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.TaskID, &a.AgentID, &a.Start, &a.End); err != nil {
			return domain.Schedule{}, fmt.Errorf("scan run assignment: %w", err)
		}
		sched.Assignments[a.TaskID] = a
	}
	if err := rows.Err(); err != nil {
		return domain.Schedule{}, fmt.Errorf("iterate run assignments: %w", err)
	}
	return sched, nil
}
