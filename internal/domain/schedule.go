package domain

import (
	"fmt"
	"sort"
)

// Validate checks a schedule against a scenario. A valid schedule assigns
// every task exactly once to a skill-capable agent, starts no task before
// time zero or before its dependencies finish, and never double-books an
// agent. The first violation found is returned as a descriptive error.
func (s Schedule) Validate(sc Scenario) error {
	agents := sc.AgentByID()
	tasks := sc.TaskByID()

	for _, t := range sc.Tasks {
		a, ok := s.Assignments[t.ID]
		if !ok {
			return fmt.Errorf("task %s has no assignment", t.ID)
		}
		if a.Start < 0 {
			return fmt.Errorf("task %s starts at %d, before time zero", t.ID, a.Start)
		}
		if a.End != a.Start+t.Duration {
			return fmt.Errorf("task %s spans [%d,%d), want duration %d", t.ID, a.Start, a.End, t.Duration)
		}
		agent, ok := agents[a.AgentID]
		if !ok {
			return fmt.Errorf("task %s assigned to unknown agent %s", t.ID, a.AgentID)
		}
		if !agent.CanPerform(t) {
			return fmt.Errorf("agent %s lacks skills for task %s", agent.ID, t.ID)
		}
		for _, depID := range t.Dependencies {
			dep, ok := s.Assignments[depID]
			if !ok {
				return fmt.Errorf("dependency %s of task %s has no assignment", depID, t.ID)
			}
			if dep.End > a.Start {
				return fmt.Errorf("task %s starts at %d before dependency %s finishes at %d", t.ID, a.Start, depID, dep.End)
			}
		}
	}

	for id := range s.Assignments {
		if _, ok := tasks[id]; !ok {
			return fmt.Errorf("assignment references unknown task %s", id)
		}
	}

	// Non-overlap per agent over closed-open intervals.
	byAgent := make(map[string][]Assignment)
	for _, a := range s.Assignments {
		byAgent[a.AgentID] = append(byAgent[a.AgentID], a)
	}
	for agentID, list := range byAgent {
		sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		for i := 1; i < len(list); i++ {
			if list[i-1].End > list[i].Start {
				return fmt.Errorf("agent %s double-booked: %s [%d,%d) overlaps %s [%d,%d)",
					agentID,
					list[i-1].TaskID, list[i-1].Start, list[i-1].End,
					list[i].TaskID, list[i].Start, list[i].End)
			}
		}
	}

	return nil
}
