package solver

import (
	"errors"
	"fmt"

	"agentsched/internal/domain"
	"agentsched/internal/scenario"
)

// ErrInfeasible reports that no valid assignment exists for the scenario.
// It is an expected outcome, distinct from malformed input.
var ErrInfeasible = errors.New("no feasible schedule exists")

// Solver produces one valid schedule for a scenario by depth-first
// backtracking over a deterministic topological task order. Given identical
// input it returns the identical schedule on every run; there is no
// randomness in this stage.
type Solver struct {
	sc    domain.Scenario
	order []string
	tasks map[string]domain.Task
}

// New builds a solver for the scenario. Dependency cycles are rejected here,
// before any search runs.
func New(sc domain.Scenario) (*Solver, error) {
	order, err := scenario.TopoOrder(sc)
	if err != nil {
		return nil, err
	}
	return &Solver{
		sc:    sc,
		order: order,
		tasks: sc.TaskByID(),
	}, nil
}

// Order returns the deterministic topological task order the solver uses.
func (s *Solver) Order() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

type searchState struct {
	assignments map[string]domain.Assignment
	timelines   map[string]*Timeline
}

func (st *searchState) timeline(agentID string) *Timeline {
	tl, ok := st.timelines[agentID]
	if !ok {
		tl = &Timeline{}
		st.timelines[agentID] = tl
	}
	return tl
}

// Solve returns one valid schedule or ErrInfeasible. A task whose required
// skills no agent covers is reported immediately, without exhausting the
// search space.
func (s *Solver) Solve() (domain.Schedule, error) {
	for _, t := range s.sc.Tasks {
		if len(s.capableAgents(t)) == 0 {
			return domain.Schedule{}, fmt.Errorf("no agent covers skills of task %s: %w", t.ID, ErrInfeasible)
		}
	}

	st := &searchState{
		assignments: make(map[string]domain.Assignment, len(s.order)),
		timelines:   make(map[string]*Timeline, len(s.sc.Agents)),
	}
	if !s.backtrack(st, 0) {
		return domain.Schedule{}, ErrInfeasible
	}

	sched := domain.NewSchedule()
	for id, a := range st.assignments {
		sched.Assignments[id] = a
	}
	return sched, nil
}

// backtrack assigns tasks in topological order, trying capable agents in
// scenario order at their earliest-fit start time. Every assignment made on
// a failed branch is undone before the next candidate is tried.
func (s *Solver) backtrack(st *searchState, idx int) bool {
	if idx == len(s.order) {
		return true
	}

	t := s.tasks[s.order[idx]]
	ready := 0
	for _, depID := range t.Dependencies {
		if dep := st.assignments[depID]; dep.End > ready {
			ready = dep.End
		}
	}

	for _, agent := range s.capableAgents(t) {
		tl := st.timeline(agent.ID)
		start := tl.EarliestFit(ready, t.Duration)
		iv := Interval{Start: start, End: start + t.Duration}

		tl.Insert(iv)
		st.assignments[t.ID] = domain.Assignment{
			TaskID:  t.ID,
			AgentID: agent.ID,
			Start:   iv.Start,
			End:     iv.End,
		}

		if s.backtrack(st, idx+1) {
			return true
		}

		delete(st.assignments, t.ID)
		tl.Remove(iv)
	}
	return false
}

func (s *Solver) capableAgents(t domain.Task) []domain.Agent {
	var out []domain.Agent
	for _, a := range s.sc.Agents {
		if a.CanPerform(t) {
			out = append(out, a)
		}
	}
	return out
}
