package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agentsched/internal/domain"
	"agentsched/internal/messaging/inproc"
	"agentsched/internal/optimizer"
	"agentsched/internal/scenario"
	"agentsched/internal/solver"
	sqlitestore "agentsched/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	bus := inproc.New(1024)
	events := bus.Register("test")

	svc := New(store, bus, Config{
		Optimizer: optimizer.Config{PopulationSize: 20, Generations: 30, Seed: 42},
	}, nil)

	sc := scenario.Default()
	result, err := svc.Run(ctx, "default", sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	bus.Unregister("test")

	if err := result.Baseline.Validate(sc); err != nil {
		t.Fatalf("baseline invalid: %v", err)
	}
	if err := result.Optimized.Validate(sc); err != nil {
		t.Fatalf("optimized invalid: %v", err)
	}
	if result.Run.OptimizedMakespan > result.Run.BaselineMakespan {
		t.Fatalf("optimized makespan %d worse than baseline %d",
			result.Run.OptimizedMakespan, result.Run.BaselineMakespan)
	}
	if result.Comparison.Baseline.Makespan != result.Run.BaselineMakespan {
		t.Fatalf("comparison baseline %d, run says %d",
			result.Comparison.Baseline.Makespan, result.Run.BaselineMakespan)
	}

	persisted, err := store.GetRun(ctx, result.Run.ID)
	if err != nil {
		t.Fatalf("get persisted run: %v", err)
	}
	if persisted.TaskCount != len(sc.Tasks) || persisted.AgentCount != len(sc.Agents) {
		t.Fatalf("persisted run shape: %+v", persisted)
	}

	stored, err := store.GetSchedule(ctx, result.Run.ID, domain.StageOptimized)
	if err != nil {
		t.Fatalf("get persisted schedule: %v", err)
	}
	if len(stored.Assignments) != len(sc.Tasks) {
		t.Fatalf("persisted %d assignments, want %d", len(stored.Assignments), len(sc.Tasks))
	}
	if err := stored.Validate(sc); err != nil {
		t.Fatalf("persisted schedule invalid: %v", err)
	}

	var sawBaseline bool
	for ev := range events {
		if ev.RunID != result.Run.ID {
			t.Fatalf("event for unexpected run: %+v", ev)
		}
		if ev.Stage == domain.StageBaseline {
			sawBaseline = true
		}
	}
	if !sawBaseline {
		t.Fatalf("no baseline progress event published")
	}
}

func TestRunWithoutStoreOrBus(t *testing.T) {
	svc := New(nil, nil, Config{
		Optimizer: optimizer.Config{PopulationSize: 10, Generations: 10, Seed: 7},
	}, nil)

	sc := scenario.Default()
	result, err := svc.Run(context.Background(), "default", sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := result.Optimized.Validate(sc); err != nil {
		t.Fatalf("optimized invalid: %v", err)
	}
}

func TestRunRejectsInvalidScenario(t *testing.T) {
	svc := New(nil, nil, Config{}, nil)
	sc := domain.Scenario{
		Tasks: []domain.Task{
			{ID: "T1", Duration: 1, Dependencies: []string{"T2"}},
			{ID: "T2", Duration: 1, Dependencies: []string{"T1"}},
		},
		Agents: []domain.Agent{{ID: "A1"}},
	}
	_, err := svc.Run(context.Background(), "cyclic", sc)
	if !errors.Is(err, scenario.ErrInvalidScenario) {
		t.Fatalf("expected ErrInvalidScenario, got: %v", err)
	}
}

func TestRunReportsInfeasible(t *testing.T) {
	svc := New(nil, nil, Config{}, nil)
	sc := domain.Scenario{
		Tasks:  []domain.Task{{ID: "T1", Duration: 1, Skills: []string{"C"}}},
		Agents: []domain.Agent{{ID: "A1", Skills: []string{"A"}}},
	}
	_, err := svc.Run(context.Background(), "uncovered", sc)
	if !errors.Is(err, solver.ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got: %v", err)
	}
}
