package scenario

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"agentsched/internal/domain"
)

func TestParseValidScenario(t *testing.T) {
	data := []byte(`{
		"tasks": [
			{"id": "T1", "duration": 3, "skills": ["A"]},
			{"id": "T2", "duration": 2, "dependencies": ["T1"], "skills": ["B"]}
		],
		"agents": [
			{"id": "A1", "skills": ["A", "B"]}
		]
	}`)
	sc, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sc.Tasks) != 2 || len(sc.Agents) != 1 {
		t.Fatalf("unexpected scenario shape: %d tasks, %d agents", len(sc.Tasks), len(sc.Agents))
	}
}

func TestValidateRejections(t *testing.T) {
	agents := []domain.Agent{{ID: "A1", Skills: []string{"A"}}}

	cases := []struct {
		name string
		sc   domain.Scenario
		want string
	}{
		{
			name: "duplicate task id",
			sc: domain.Scenario{
				Tasks: []domain.Task{
					{ID: "T1", Duration: 1},
					{ID: "T1", Duration: 2},
				},
				Agents: agents,
			},
			want: "duplicate task identifier",
		},
		{
			name: "duplicate agent id",
			sc: domain.Scenario{
				Tasks:  []domain.Task{{ID: "T1", Duration: 1}},
				Agents: []domain.Agent{{ID: "A1"}, {ID: "A1"}},
			},
			want: "duplicate agent identifier",
		},
		{
			name: "zero duration",
			sc: domain.Scenario{
				Tasks:  []domain.Task{{ID: "T1", Duration: 0}},
				Agents: agents,
			},
			want: "non-positive duration",
		},
		{
			name: "unknown dependency",
			sc: domain.Scenario{
				Tasks:  []domain.Task{{ID: "T1", Duration: 1, Dependencies: []string{"T9"}}},
				Agents: agents,
			},
			want: "unknown task",
		},
		{
			name: "self dependency",
			sc: domain.Scenario{
				Tasks:  []domain.Task{{ID: "T1", Duration: 1, Dependencies: []string{"T1"}}},
				Agents: agents,
			},
			want: "depends on itself",
		},
		{
			name: "dependency cycle",
			sc: domain.Scenario{
				Tasks: []domain.Task{
					{ID: "T1", Duration: 1, Dependencies: []string{"T2"}},
					{ID: "T2", Duration: 1, Dependencies: []string{"T1"}},
				},
				Agents: agents,
			},
			want: "dependency cycle",
		},
		{
			name: "no tasks",
			sc:   domain.Scenario{Agents: agents},
			want: "no tasks",
		},
		{
			name: "no agents",
			sc:   domain.Scenario{Tasks: []domain.Task{{ID: "T1", Duration: 1}}},
			want: "no agents",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.sc)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("expected ErrInvalidScenario, got: %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestUncoveredSkillIsNotInvalidInput(t *testing.T) {
	// Coverage gaps are the solver's infeasibility outcome, not malformed input.
	sc := domain.Scenario{
		Tasks:  []domain.Task{{ID: "T1", Duration: 1, Skills: []string{"C"}}},
		Agents: []domain.Agent{{ID: "A1", Skills: []string{"A"}}},
	}
	if err := Validate(sc); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTopoOrderIsDeterministicAndConsistent(t *testing.T) {
	sc := Default()

	first, err := TopoOrder(sc)
	if err != nil {
		t.Fatalf("topo order: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := TopoOrder(sc)
		if err != nil {
			t.Fatalf("topo order: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("topo order not deterministic: %v vs %v", first, again)
		}
	}

	position := make(map[string]int, len(first))
	for i, id := range first {
		position[id] = i
	}
	for _, task := range sc.Tasks {
		for _, dep := range task.Dependencies {
			if position[dep] >= position[task.ID] {
				t.Fatalf("dependency %s ordered after %s", dep, task.ID)
			}
		}
	}
}

func TestTopoOrderCycleWitness(t *testing.T) {
	sc := domain.Scenario{
		Tasks: []domain.Task{
			{ID: "T1", Duration: 1, Dependencies: []string{"T2"}},
			{ID: "T2", Duration: 1, Dependencies: []string{"T3"}},
			{ID: "T3", Duration: 1, Dependencies: []string{"T1"}},
		},
		Agents: []domain.Agent{{ID: "A1"}},
	}
	_, err := TopoOrder(sc)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "->") {
		t.Fatalf("expected a cycle path witness, got: %v", err)
	}
}

func TestDefaultScenarioIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default scenario must validate: %v", err)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios", "default.json")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sc.Tasks) != 10 || len(sc.Agents) != 4 {
		t.Fatalf("unexpected default scenario: %d tasks, %d agents", len(sc.Tasks), len(sc.Agents))
	}
}
