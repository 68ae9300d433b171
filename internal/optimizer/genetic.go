package optimizer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"agentsched/internal/domain"
	"agentsched/internal/scenario"
)

// Bus publishes optimizer progress events. Satisfied by messaging/inproc.
type Bus interface {
	Publish(ev domain.ProgressEvent) error
}

type Config struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	EliteCount     int
	TournamentSize int
	StallLimit     int
	Workers        int
	Seed           int64
}

func (c Config) withDefaults() Config {
	if c.PopulationSize <= 0 {
		c.PopulationSize = 30
	}
	if c.Generations <= 0 {
		c.Generations = 50
	}
	if c.MutationRate <= 0 {
		c.MutationRate = 0.1
	}
	if c.EliteCount <= 0 {
		c.EliteCount = c.PopulationSize / 10
	}
	if c.EliteCount < 1 {
		c.EliteCount = 1
	}
	if c.EliteCount >= c.PopulationSize {
		c.EliteCount = c.PopulationSize - 1
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = 3
	}
	if c.StallLimit <= 0 {
		c.StallLimit = 15
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Result is the outcome of one optimization run.
type Result struct {
	Schedule    domain.Schedule
	Makespan    int
	Generations int
}

// Optimizer evolves a population of schedule encodings toward lower
// makespan. Every individual it breeds is repaired into a valid schedule by
// construction, the best individual ever observed is tracked outside the
// population, and the returned schedule is never worse than the seed.
type Optimizer struct {
	sc         domain.Scenario
	order      []string
	index      map[string]int
	tasks      map[string]domain.Task
	dependents map[string][]string
	capable    map[string][]string
	cfg        Config
	rng        *rand.Rand
	bus        Bus
	logger     *log.Logger
}

func New(sc domain.Scenario, cfg Config, bus Bus, logger *log.Logger) (*Optimizer, error) {
	order, err := scenario.TopoOrder(sc)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.withDefaults()

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	dependents := make(map[string][]string, len(order))
	capable := make(map[string][]string, len(order))
	for _, t := range sc.Tasks {
		for _, dep := range t.Dependencies {
			dependents[dep] = append(dependents[dep], t.ID)
		}
		for _, a := range sc.Agents {
			if a.CanPerform(t) {
				capable[t.ID] = append(capable[t.ID], a.ID)
			}
		}
	}

	return &Optimizer{
		sc:         sc,
		order:      order,
		index:      index,
		tasks:      sc.TaskByID(),
		dependents: dependents,
		capable:    capable,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		bus:        bus,
		logger:     logger,
	}, nil
}

// Optimize runs the genetic search starting from a feasible seed schedule.
// It stops after the configured generation budget, earlier when the best
// makespan stalls for StallLimit consecutive generations, or when ctx is
// canceled. The returned schedule has makespan <= the seed's.
func (o *Optimizer) Optimize(ctx context.Context, runID string, seed domain.Schedule) (Result, error) {
	if err := seed.Validate(o.sc); err != nil {
		return Result{}, fmt.Errorf("seed schedule is not valid: %w", err)
	}

	best := seed.Clone()
	bestMakespan := seed.Makespan()

	pop := o.initialPopulation(seed)
	stall := 0
	generations := 0

	for gen := 0; gen < o.cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			return Result{Schedule: best, Makespan: bestMakespan, Generations: generations}, nil
		default:
		}

		o.evaluate(pop)
		sort.SliceStable(pop, func(i, j int) bool { return pop[i].makespan < pop[j].makespan })
		generations = gen + 1

		improved := false
		if pop[0].valid && pop[0].makespan < bestMakespan {
			best = pop[0].schedule.Clone()
			bestMakespan = pop[0].makespan
			improved = true
			o.logger.Printf("generation %d: best makespan %d", gen, bestMakespan)
		}
		if !pop[0].valid {
			// Should not happen with elitism; keep the last known best.
			o.logger.Printf("generation %d: no decodable individual, keeping best makespan %d", gen, bestMakespan)
		}

		if o.bus != nil {
			_ = o.bus.Publish(domain.ProgressEvent{
				RunID:        runID,
				Stage:        domain.StageOptimized,
				Generation:   gen,
				BestMakespan: bestMakespan,
				Improved:     improved,
				CreatedAt:    time.Now().UTC(),
			})
		}

		if improved {
			stall = 0
		} else {
			stall++
			if stall >= o.cfg.StallLimit {
				break
			}
		}

		pop = o.breed(pop)
	}

	return Result{Schedule: best, Makespan: bestMakespan, Generations: generations}, nil
}

// initialPopulation holds the seed's own encoding plus perturbed copies,
// each perturbation a randomized skill-respecting agent reassignment so
// every initial individual decodes validly on its own.
func (o *Optimizer) initialPopulation(seed domain.Schedule) []*individual {
	seedInd := &individual{
		agents:   make([]string, len(o.order)),
		priority: make([]float64, len(o.order)),
	}
	for i, id := range o.order {
		seedInd.agents[i] = seed.Assignments[id].AgentID
		seedInd.priority[i] = float64(len(o.order) - i)
	}

	pop := make([]*individual, 0, o.cfg.PopulationSize)
	pop = append(pop, seedInd)
	for len(pop) < o.cfg.PopulationSize {
		ind := seedInd.clone()
		for i, id := range o.order {
			if o.rng.Float64() < 0.3 {
				ind.agents[i] = o.randomCapableAgent(id)
			}
			ind.priority[i] = o.rng.Float64()
		}
		pop = append(pop, ind)
	}
	return pop
}

// evaluate decodes and scores unevaluated individuals on a fixed worker
// pool. Each worker owns disjoint individuals and shares only the read-only
// scenario, so no synchronization beyond the final barrier is needed. Once
// scored, an individual is never mutated again; breeding works on clones.
func (o *Optimizer) evaluate(pop []*individual) {
	jobs := make(chan *individual)
	var wg sync.WaitGroup

	workers := o.cfg.Workers
	if workers > len(pop) {
		workers = len(pop)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range jobs {
				o.decode(ind)
			}
		}()
	}

	for _, ind := range pop {
		if !ind.evaluated {
			jobs <- ind
		}
	}
	close(jobs)
	wg.Wait()
}

// breed produces the next generation: elites carried over unmutated, the
// rest offspring of tournament-selected parents.
func (o *Optimizer) breed(pop []*individual) []*individual {
	next := make([]*individual, 0, o.cfg.PopulationSize)
	for i := 0; i < o.cfg.EliteCount && i < len(pop); i++ {
		next = append(next, pop[i].clone())
	}
	for len(next) < o.cfg.PopulationSize {
		p1 := o.tournament(pop)
		p2 := o.tournament(pop)
		child := o.crossover(p1, p2)
		if o.rng.Float64() < o.cfg.MutationRate {
			o.mutate(child)
		}
		next = append(next, child)
	}
	return next
}

// tournament picks the lowest-makespan individual among TournamentSize
// random draws; equal fitness resolves to the earliest draw.
func (o *Optimizer) tournament(pop []*individual) *individual {
	best := pop[o.rng.Intn(len(pop))]
	for i := 1; i < o.cfg.TournamentSize; i++ {
		cand := pop[o.rng.Intn(len(pop))]
		if cand.makespan < best.makespan {
			best = cand
		}
	}
	return best
}

// crossover combines two parents gene-wise: each task takes its
// (agent, priority) pair from either parent with equal probability. Timing
// consistency is restored by the decode step when the child is evaluated.
func (o *Optimizer) crossover(p1, p2 *individual) *individual {
	child := &individual{
		agents:   make([]string, len(o.order)),
		priority: make([]float64, len(o.order)),
	}
	for i := range o.order {
		src := p1
		if o.rng.Float64() < 0.5 {
			src = p2
		}
		child.agents[i] = src.agents[i]
		child.priority[i] = src.priority[i]
	}
	return child
}

// mutate either reassigns a random task to a different capable agent or
// swaps the execution order of two tasks on the same agent (by exchanging
// their priority keys). Neither operation can break skill coverage, and the
// decode step re-derives all start times, so closure under mutation holds.
func (o *Optimizer) mutate(ind *individual) {
	if o.rng.Float64() < 0.5 && o.reassign(ind) {
		return
	}
	if o.swapOnSameAgent(ind) {
		return
	}
	o.reassign(ind)
}

func (o *Optimizer) reassign(ind *individual) bool {
	idx := o.rng.Intn(len(o.order))
	candidates := o.capable[o.order[idx]]
	if len(candidates) < 2 {
		return false
	}
	current := ind.agents[idx]
	pick := candidates[o.rng.Intn(len(candidates))]
	for pick == current {
		pick = candidates[o.rng.Intn(len(candidates))]
	}
	ind.agents[idx] = pick
	return true
}

func (o *Optimizer) swapOnSameAgent(ind *individual) bool {
	byAgent := make(map[string][]int)
	for i, agentID := range ind.agents {
		byAgent[agentID] = append(byAgent[agentID], i)
	}
	var pools [][]int
	for _, idxs := range byAgent {
		if len(idxs) >= 2 {
			pools = append(pools, idxs)
		}
	}
	if len(pools) == 0 {
		return false
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i][0] < pools[j][0] })
	pool := pools[o.rng.Intn(len(pools))]
	i := pool[o.rng.Intn(len(pool))]
	j := pool[o.rng.Intn(len(pool))]
	for j == i {
		j = pool[o.rng.Intn(len(pool))]
	}
	ind.priority[i], ind.priority[j] = ind.priority[j], ind.priority[i]
	return true
}

func (o *Optimizer) randomCapableAgent(taskID string) string {
	candidates := o.capable[taskID]
	return candidates[o.rng.Intn(len(candidates))]
}
