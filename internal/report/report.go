package report

import (
	"fmt"
	"sort"
	"strings"

	"agentsched/internal/domain"
)

// AgentMetrics describes one agent's load within a schedule.
type AgentMetrics struct {
	AgentID     string  `json:"agent_id"`
	TaskCount   int     `json:"task_count"`
	BusyTime    int     `json:"busy_time"`
	IdleTime    int     `json:"idle_time"`
	Utilization float64 `json:"utilization"`
}

// Metrics are derived values for a single schedule. Computing them never
// mutates the schedule.
type Metrics struct {
	Makespan int            `json:"makespan"`
	Agents   []AgentMetrics `json:"agents"`
}

// Comparison relates a baseline schedule to an optimized one.
type Comparison struct {
	Baseline       Metrics `json:"baseline"`
	Optimized      Metrics `json:"optimized"`
	Improvement    int     `json:"improvement"`
	ImprovementPct float64 `json:"improvement_pct"`
}

// Compute derives makespan and per-agent utilization for a schedule. Agents
// without assignments are included with zero busy time so utilization
// reports cover the whole roster. Agents are ordered as in the scenario.
func Compute(sc domain.Scenario, s domain.Schedule) Metrics {
	busy := make(map[string]int, len(sc.Agents))
	count := make(map[string]int, len(sc.Agents))
	for _, a := range s.Assignments {
		busy[a.AgentID] += a.End - a.Start
		count[a.AgentID]++
	}

	makespan := s.Makespan()
	m := Metrics{Makespan: makespan}
	for _, agent := range sc.Agents {
		am := AgentMetrics{
			AgentID:   agent.ID,
			TaskCount: count[agent.ID],
			BusyTime:  busy[agent.ID],
		}
		if makespan > 0 {
			am.IdleTime = makespan - am.BusyTime
			am.Utilization = float64(am.BusyTime) / float64(makespan)
		}
		m.Agents = append(m.Agents, am)
	}
	return m
}

// Compare relates two schedules of the same scenario by their metrics.
func Compare(baseline, optimized Metrics) Comparison {
	c := Comparison{
		Baseline:    baseline,
		Optimized:   optimized,
		Improvement: baseline.Makespan - optimized.Makespan,
	}
	if baseline.Makespan > 0 {
		c.ImprovementPct = float64(c.Improvement) / float64(baseline.Makespan) * 100
	}
	return c
}

// Format renders a schedule as one line per task ordered by start time, the
// shape the CLI prints after each stage.
func Format(s domain.Schedule) string {
	assignments := make([]domain.Assignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].Start != assignments[j].Start {
			return assignments[i].Start < assignments[j].Start
		}
		return assignments[i].TaskID < assignments[j].TaskID
	})

	var b strings.Builder
	for _, a := range assignments {
		fmt.Fprintf(&b, "%s: agent=%s start=%d end=%d\n", a.TaskID, a.AgentID, a.Start, a.End)
	}
	return b.String()
}
