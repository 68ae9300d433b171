package optimizer

import (
	"math"

	"agentsched/internal/domain"
	"agentsched/internal/solver"
)

// individual encodes one candidate schedule as a per-task gene pair: the
// agent chosen for the task and a priority key that decides ordering among
// simultaneously ready tasks. Both slices are aligned with the optimizer's
// topological task order. The encoding can always be decoded back into a
// temporally consistent schedule, so crossover and mutation only ever swap
// genes; the decode step is the repair.
type individual struct {
	agents   []string
	priority []float64

	schedule  domain.Schedule
	makespan  int
	valid     bool
	evaluated bool
}

func (ind *individual) clone() *individual {
	out := &individual{
		agents:    append([]string(nil), ind.agents...),
		priority:  append([]float64(nil), ind.priority...),
		makespan:  ind.makespan,
		valid:     ind.valid,
		evaluated: ind.evaluated,
	}
	if ind.evaluated && ind.valid {
		out.schedule = ind.schedule.Clone()
	}
	return out
}

// decode rebuilds a schedule from the genes by list scheduling: among ready
// tasks (all dependencies placed) the highest-priority one is placed next,
// at the earliest time that fits on its agent's timeline. Dependency order,
// skill coverage and non-overlap hold by construction; an individual whose
// gene names an incapable or unknown agent is given a dominated fitness so
// selection pressure eliminates it instead of crashing the generation.
func (o *Optimizer) decode(ind *individual) {
	agents := o.sc.AgentByID()
	timelines := make(map[string]*solver.Timeline, len(o.sc.Agents))
	ends := make(map[string]int, len(o.order))

	pending := make(map[string]int, len(o.order))
	for _, id := range o.order {
		pending[id] = len(o.tasks[id].Dependencies)
	}
	var ready []int
	for i, id := range o.order {
		if pending[id] == 0 {
			ready = append(ready, i)
		}
	}

	sched := domain.NewSchedule()
	for placed := 0; placed < len(o.order); placed++ {
		best := 0
		for i := 1; i < len(ready); i++ {
			if ind.priority[ready[i]] > ind.priority[ready[best]] {
				best = i
			}
		}
		idx := ready[best]
		ready = append(ready[:best], ready[best+1:]...)

		t := o.tasks[o.order[idx]]
		agent, ok := agents[ind.agents[idx]]
		if !ok || !agent.CanPerform(t) {
			ind.schedule = domain.Schedule{}
			ind.makespan = math.MaxInt
			ind.valid = false
			ind.evaluated = true
			return
		}

		readyAt := 0
		for _, depID := range t.Dependencies {
			if end := ends[depID]; end > readyAt {
				readyAt = end
			}
		}

		tl, okTL := timelines[agent.ID]
		if !okTL {
			tl = &solver.Timeline{}
			timelines[agent.ID] = tl
		}
		start := tl.EarliestFit(readyAt, t.Duration)
		tl.Insert(solver.Interval{Start: start, End: start + t.Duration})

		ends[t.ID] = start + t.Duration
		sched.Assignments[t.ID] = domain.Assignment{
			TaskID:  t.ID,
			AgentID: agent.ID,
			Start:   start,
			End:     start + t.Duration,
		}

		for _, nextID := range o.dependents[t.ID] {
			pending[nextID]--
			if pending[nextID] == 0 {
				ready = append(ready, o.index[nextID])
			}
		}
	}

	ind.schedule = sched
	ind.makespan = sched.Makespan()
	ind.valid = true
	ind.evaluated = true
}
