package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"agentsched/internal/config"
	"agentsched/internal/domain"
	"agentsched/internal/messaging/inproc"
	"agentsched/internal/optimizer"
	"agentsched/internal/report"
	"agentsched/internal/scenario"
	"agentsched/internal/scheduler"
	"agentsched/internal/solver"
	sqlitestore "agentsched/internal/store/sqlite"
)

const defaultScenarioPath = "scenarios/default_scenario.json"

func main() {
	configPath := flag.String("config", "", "path to config.toml (optional)")
	scenarioPath := flag.String("scenario", "", "path to scenario JSON (default: scenarios/default_scenario.json)")
	dbPathFlag := flag.String("db", "", "sqlite database path override")
	population := flag.Int("population", 0, "population size override")
	generations := flag.Int("generations", 0, "generation count override")
	seed := flag.Int64("seed", 0, "random seed override (0 = time-based)")
	workers := flag.Int("workers", 0, "fitness evaluation workers override")
	flag.Parse()

	var cfg config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	scenarioFile := firstNonEmpty(*scenarioPath, cfg.ScenarioPath, defaultScenarioPath)
	dbPath := firstNonEmpty(*dbPathFlag, cfg.DBPath, "data/agentsched.db")
	dbPath = filepath.Clean(dbPath)

	if scenarioFile == defaultScenarioPath {
		if _, err := os.Stat(scenarioFile); os.IsNotExist(err) {
			if err := scenario.WriteDefault(scenarioFile); err != nil {
				log.Fatalf("write default scenario: %v", err)
			}
			log.Printf("default scenario written to %s", scenarioFile)
		}
	}

	sc, err := scenario.Load(scenarioFile)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}
	printScenario(sc)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("create db directory: %v", err)
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	bus := inproc.New(256)
	events := bus.Register("cli")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Stage == domain.StageOptimized && ev.Improved {
				log.Printf("generation %d: best makespan %d", ev.Generation, ev.BestMakespan)
			}
		}
	}()

	svc := scheduler.New(store, bus, scheduler.Config{
		Optimizer: optimizer.Config{
			PopulationSize: intOrDefault(*population, cfg.Optimizer.PopulationSize),
			Generations:    intOrDefault(*generations, cfg.Optimizer.Generations),
			MutationRate:   cfg.Optimizer.MutationRate,
			EliteCount:     cfg.Optimizer.EliteCount,
			TournamentSize: cfg.Optimizer.TournamentSize,
			StallLimit:     cfg.Optimizer.StallLimit,
			Workers:        intOrDefault(*workers, cfg.Optimizer.Workers),
			Seed:           int64OrDefault(*seed, cfg.Optimizer.Seed),
		},
	}, log.Default())

	name := filepath.Base(scenarioFile)
	result, err := svc.Run(ctx, name, sc)
	bus.Unregister("cli")
	wg.Wait()
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrInfeasible):
			log.Fatalf("no feasible schedule exists for %s: %v", name, err)
		case errors.Is(err, scenario.ErrInvalidScenario):
			log.Fatalf("scenario %s is invalid: %v", name, err)
		default:
			log.Fatalf("run failed: %v", err)
		}
	}

	printResult(result)
	log.Printf("run %s persisted to %s", result.Run.ID, dbPath)
}

func printScenario(sc domain.Scenario) {
	fmt.Printf("scenario: %d tasks, %d agents\n", len(sc.Tasks), len(sc.Agents))
	for _, t := range sc.Tasks {
		fmt.Printf("  %s: duration=%d deps=%v skills=%v\n", t.ID, t.Duration, t.Dependencies, t.Skills)
	}
	for _, a := range sc.Agents {
		fmt.Printf("  %s: skills=%v\n", a.ID, a.Skills)
	}
}

func printResult(result scheduler.RunResult) {
	fmt.Printf("\n--- baseline schedule (CSP) ---\n%s", report.Format(result.Baseline))
	fmt.Printf("\n--- optimized schedule (GA) ---\n%s", report.Format(result.Optimized))

	c := result.Comparison
	fmt.Printf("\nbaseline makespan:  %d\n", c.Baseline.Makespan)
	fmt.Printf("optimized makespan: %d\n", c.Optimized.Makespan)
	fmt.Printf("improvement: %d time units (%.1f%%)\n", c.Improvement, c.ImprovementPct)

	fmt.Println("\nagent utilization (optimized):")
	for _, am := range c.Optimized.Agents {
		fmt.Printf("  %s: tasks=%d busy=%d idle=%d utilization=%.0f%%\n",
			am.AgentID, am.TaskCount, am.BusyTime, am.IdleTime, am.Utilization*100)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func int64OrDefault(value, fallback int64) int64 {
	if value != 0 {
		return value
	}
	return fallback
}
