package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agentsched/internal/domain"
	"agentsched/internal/optimizer"
	"agentsched/internal/report"
	"agentsched/internal/scenario"
	"agentsched/internal/solver"
)

type Store interface {
	SaveRun(ctx context.Context, run domain.ScheduleRun, baseline, optimized domain.Schedule) error
}

type Bus interface {
	Publish(ev domain.ProgressEvent) error
}

type Config struct {
	Optimizer optimizer.Config
}

// Service runs the full pipeline for one scenario: validate, find a feasible
// baseline with the CSP solver, improve it with the genetic optimizer,
// derive comparison metrics, and persist the run. Store and Bus may be nil
// for in-memory runs.
type Service struct {
	store  Store
	bus    Bus
	cfg    Config
	logger *log.Logger
}

func New(store Store, bus Bus, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:  store,
		bus:    bus,
		cfg:    cfg,
		logger: logger,
	}
}

// RunResult carries everything the caller and the visualizer need: the run
// record, both schedules, and the comparison metrics.
type RunResult struct {
	Run        domain.ScheduleRun
	Baseline   domain.Schedule
	Optimized  domain.Schedule
	Comparison report.Comparison
}

// Run executes one scheduling run. Invalid scenarios and infeasible ones
// surface as errors wrapping scenario.ErrInvalidScenario and
// solver.ErrInfeasible respectively.
func (s *Service) Run(ctx context.Context, name string, sc domain.Scenario) (RunResult, error) {
	if err := scenario.Validate(sc); err != nil {
		return RunResult{}, err
	}

	runID := uuid.NewString()

	csp, err := solver.New(sc)
	if err != nil {
		return RunResult{}, err
	}
	baseline, err := csp.Solve()
	if err != nil {
		return RunResult{}, fmt.Errorf("solve scenario %s: %w", name, err)
	}
	s.logger.Printf("run %s: baseline makespan %d", runID, baseline.Makespan())
	s.publish(runID, domain.StageBaseline, baseline.Makespan())

	ga, err := optimizer.New(sc, s.cfg.Optimizer, s.bus, s.logger)
	if err != nil {
		return RunResult{}, err
	}
	opt, err := ga.Optimize(ctx, runID, baseline)
	if err != nil {
		return RunResult{}, fmt.Errorf("optimize scenario %s: %w", name, err)
	}
	s.logger.Printf("run %s: optimized makespan %d after %d generations", runID, opt.Makespan, opt.Generations)

	result := RunResult{
		Run: domain.ScheduleRun{
			ID:                runID,
			ScenarioName:      name,
			TaskCount:         len(sc.Tasks),
			AgentCount:        len(sc.Agents),
			BaselineMakespan:  baseline.Makespan(),
			OptimizedMakespan: opt.Makespan,
			Generations:       opt.Generations,
			CreatedAt:         time.Now().UTC(),
		},
		Baseline:  baseline,
		Optimized: opt.Schedule,
		Comparison: report.Compare(
			report.Compute(sc, baseline),
			report.Compute(sc, opt.Schedule),
		),
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, result.Run, result.Baseline, result.Optimized); err != nil {
			return RunResult{}, fmt.Errorf("persist run %s: %w", runID, err)
		}
	}
	return result, nil
}

func (s *Service) publish(runID string, stage domain.Stage, makespan int) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(domain.ProgressEvent{
		RunID:        runID,
		Stage:        stage,
		BestMakespan: makespan,
		Improved:     true,
		CreatedAt:    time.Now().UTC(),
	})
}
