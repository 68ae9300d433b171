package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agentsched/internal/domain"
)

// Default returns the built-in demo scenario: ten interdependent tasks over
// three skills and four agents with partial skill overlap.
func Default() domain.Scenario {
	return domain.Scenario{
		Tasks: []domain.Task{
			{ID: "T1", Duration: 3, Skills: []string{"skill_A"}},
			{ID: "T2", Duration: 2, Skills: []string{"skill_B"}},
			{ID: "T3", Duration: 4, Dependencies: []string{"T1"}, Skills: []string{"skill_A"}},
			{ID: "T4", Duration: 1, Dependencies: []string{"T2"}, Skills: []string{"skill_C"}},
			{ID: "T5", Duration: 3, Dependencies: []string{"T1", "T2"}, Skills: []string{"skill_B"}},
			{ID: "T6", Duration: 2, Dependencies: []string{"T3", "T4"}, Skills: []string{"skill_A"}},
			{ID: "T7", Duration: 1, Dependencies: []string{"T5"}, Skills: []string{"skill_C"}},
			{ID: "T8", Duration: 2, Dependencies: []string{"T6", "T7"}, Skills: []string{"skill_B"}},
			{ID: "T9", Duration: 2, Dependencies: []string{"T3"}, Skills: []string{"skill_C"}},
			{ID: "T10", Duration: 1, Dependencies: []string{"T8", "T9"}, Skills: []string{"skill_A"}},
		},
		Agents: []domain.Agent{
			{ID: "A1", Skills: []string{"skill_A", "skill_B"}},
			{ID: "A2", Skills: []string{"skill_B", "skill_C"}},
			{ID: "A3", Skills: []string{"skill_A", "skill_C"}},
			{ID: "A4", Skills: []string{"skill_A", "skill_B", "skill_C"}},
		},
	}
}

// WriteDefault writes the demo scenario to path, creating parent directories.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scenario directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode default scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default scenario: %w", err)
	}
	return nil
}
