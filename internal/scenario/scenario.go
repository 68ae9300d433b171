package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"agentsched/internal/domain"
)

// ErrInvalidScenario marks malformed or self-contradictory scenario input:
// duplicate identifiers, unknown dependency references, non-positive
// durations, dependency cycles. Such input is rejected before solving,
// never silently repaired.
var ErrInvalidScenario = errors.New("invalid scenario")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
}

// Load reads and validates a scenario JSON file.
func Load(path string) (domain.Scenario, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("read scenario file %s: %w", path, err)
	}
	return Parse(bytes)
}

// Parse decodes scenario JSON and validates it.
func Parse(data []byte) (domain.Scenario, error) {
	var sc domain.Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return domain.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := Validate(sc); err != nil {
		return domain.Scenario{}, err
	}
	return sc, nil
}

// Validate rejects structurally broken scenarios: duplicate task or agent
// identifiers, zero or negative durations, dependency references to unknown
// tasks, self-references and dependency cycles. Skill coverage is not
// checked here; a task no agent can perform is an infeasibility the solver
// reports, not malformed input.
func Validate(sc domain.Scenario) error {
	if len(sc.Tasks) == 0 {
		return invalidf("scenario has no tasks")
	}
	if len(sc.Agents) == 0 {
		return invalidf("scenario has no agents")
	}

	seenTasks := make(map[string]bool, len(sc.Tasks))
	for _, t := range sc.Tasks {
		if t.ID == "" {
			return invalidf("task with empty identifier")
		}
		if seenTasks[t.ID] {
			return invalidf("duplicate task identifier %s", t.ID)
		}
		seenTasks[t.ID] = true
		if t.Duration <= 0 {
			return invalidf("task %s has non-positive duration %d", t.ID, t.Duration)
		}
	}

	seenAgents := make(map[string]bool, len(sc.Agents))
	for _, a := range sc.Agents {
		if a.ID == "" {
			return invalidf("agent with empty identifier")
		}
		if seenAgents[a.ID] {
			return invalidf("duplicate agent identifier %s", a.ID)
		}
		seenAgents[a.ID] = true
	}

	for _, t := range sc.Tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return invalidf("task %s depends on itself", t.ID)
			}
			if !seenTasks[dep] {
				return invalidf("task %s depends on unknown task %s", t.ID, dep)
			}
		}
	}

	if _, err := TopoOrder(sc); err != nil {
		return err
	}
	return nil
}

// TopoOrder returns a deterministic topological ordering of task identifiers
// using Kahn's algorithm. Among ready tasks the smallest identifier goes
// first, so identical input always yields the identical order. A dependency
// cycle is reported as ErrInvalidScenario with one cycle path as witness.
func TopoOrder(sc domain.Scenario) ([]string, error) {
	indeg := make(map[string]int, len(sc.Tasks))
	dependents := make(map[string][]string, len(sc.Tasks))
	for _, t := range sc.Tasks {
		indeg[t.ID] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var ready []string
	for _, t := range sc.Tasks {
		if indeg[t.ID] == 0 {
			ready = append(ready, t.ID)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(sc.Tasks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indeg[next]--
			if indeg[next] == 0 {
				i := sort.SearchStrings(ready, next)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = next
			}
		}
	}

	if len(order) != len(sc.Tasks) {
		return nil, invalidf("dependency cycle: %s", strings.Join(findCycle(sc), " -> "))
	}
	return order, nil
}

// findCycle extracts one cycle path as a stable witness for error reporting.
func findCycle(sc domain.Scenario) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	tasks := sc.TaskByID()
	color := make(map[string]int, len(sc.Tasks))
	parent := make(map[string]string, len(sc.Tasks))

	var cycle []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		deps := append([]string(nil), tasks[id].Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := tasks[dep]; !ok {
				continue
			}
			switch color[dep] {
			case white:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case gray:
				cycle = append(cycle, dep)
				for cur := id; cur != "" && cur != dep; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, dep)
				return true
			}
		}
		color[id] = black
		return false
	}

	ids := make([]string, 0, len(sc.Tasks))
	for _, t := range sc.Tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white && dfs(id) {
			break
		}
	}
	return cycle
}
