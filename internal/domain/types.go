package domain

import (
	"time"
)

// Stage identifies which phase of a scheduling run produced a schedule.
type Stage string

const (
	StageBaseline  Stage = "csp"
	StageOptimized Stage = "ga"
)

type Task struct {
	ID           string   `json:"id"`
	Duration     int      `json:"duration"`
	Dependencies []string `json:"dependencies,omitempty"`
	Skills       []string `json:"skills,omitempty"`
}

type Agent struct {
	ID     string   `json:"id"`
	Skills []string `json:"skills,omitempty"`
}

// CanPerform reports whether the agent's skill set covers every skill the
// task requires.
func (a Agent) CanPerform(t Task) bool {
	for _, required := range t.Skills {
		found := false
		for _, s := range a.Skills {
			if s == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Scenario is the immutable input to a scheduling run. Tasks and agents are
// never mutated after load; schedules reference them by identifier only.
type Scenario struct {
	Tasks  []Task  `json:"tasks"`
	Agents []Agent `json:"agents"`
}

func (sc Scenario) TaskByID() map[string]Task {
	m := make(map[string]Task, len(sc.Tasks))
	for _, t := range sc.Tasks {
		m[t.ID] = t
	}
	return m
}

func (sc Scenario) AgentByID() map[string]Agent {
	m := make(map[string]Agent, len(sc.Agents))
	for _, a := range sc.Agents {
		m[a.ID] = a
	}
	return m
}

type Assignment struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Schedule maps every task identifier to its assignment. A schedule is owned
// by whichever component currently holds it; producers hand over fresh copies
// and never mutate a schedule they have already returned.
type Schedule struct {
	Assignments map[string]Assignment `json:"assignments"`
}

func NewSchedule() Schedule {
	return Schedule{Assignments: make(map[string]Assignment)}
}

func (s Schedule) Clone() Schedule {
	out := Schedule{Assignments: make(map[string]Assignment, len(s.Assignments))}
	for id, a := range s.Assignments {
		out.Assignments[id] = a
	}
	return out
}

// Makespan is the end time of the last-finishing task, 0 for an empty schedule.
func (s Schedule) Makespan() int {
	max := 0
	for _, a := range s.Assignments {
		if a.End > max {
			max = a.End
		}
	}
	return max
}

// ScheduleRun is the persisted record of one solve+optimize run.
type ScheduleRun struct {
	ID                string    `json:"id"`
	ScenarioName      string    `json:"scenario_name"`
	TaskCount         int       `json:"task_count"`
	AgentCount        int       `json:"agent_count"`
	BaselineMakespan  int       `json:"baseline_makespan"`
	OptimizedMakespan int       `json:"optimized_makespan"`
	Generations       int       `json:"generations"`
	CreatedAt         time.Time `json:"created_at"`
}

// ProgressEvent is published on the in-process bus while a run advances.
type ProgressEvent struct {
	RunID        string    `json:"run_id"`
	Stage        Stage     `json:"stage"`
	Generation   int       `json:"generation"`
	BestMakespan int       `json:"best_makespan"`
	Improved     bool      `json:"improved"`
	CreatedAt    time.Time `json:"created_at"`
}
