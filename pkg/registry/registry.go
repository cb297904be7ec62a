// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "dominion-workers/internal/common/errors"
	"dominion-workers/internal/common/validation"
	"dominion-workers/internal/dominion/prompt"
	taskagent "dominion-workers/internal/workers/intelligence/task-agent"
)

const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusVerified  = "verified"
)

var validStatuses = map[string]bool{
	StatusPlanned:   true,
	"in-progress":   true,
	StatusCompleted: true,
	StatusVerified:  true,
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// SaveRegistry writes reg as indented JSON, creating the parent directory.
func SaveRegistry(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// ActivityID maps a task category to its registry id, e.g. legal-draft -> dominion.legal.draft.
func ActivityID(category prompt.Category) string {
	return "dominion." + strings.Replace(string(category), "-", ".", 1)
}

// Generate builds one activity per task category from the category schemas.
func Generate(version string, timeout time.Duration) *ActivityRegistry {
	reg := &ActivityRegistry{
		Version:     version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Activities:  make([]Activity, 0, len(prompt.Categories())),
	}

	for _, c := range prompt.Categories() {
		s, _ := prompt.Lookup(c)
		reg.Activities = append(reg.Activities, Activity{
			ID:                   ActivityID(c),
			DisplayName:          s.DisplayName,
			Description:          s.Description,
			Category:             "intelligence",
			Version:              version,
			TaskType:             string(c),
			ImplementationStatus: StatusCompleted,
			InputSchema:          taskagent.InputSchema(s).ToMap(),
			OutputSchema:         validation.TaskOutputSchema().ToMap(),
			ErrorCodes: []string{
				string(apperrors.ErrCodeInvalidTaskInput),
				string(apperrors.ErrCodeCompletionFailed),
				string(apperrors.ErrCodeRateLimited),
			},
			Timeout:   timeout.String(),
			Retries:   0,
			Workflows: []string{},
			Tags:      append([]string{"dominion", "llm"}, strings.Split(string(c), "-")...),
		})
	}
	return reg
}

// Validate checks structural rules and that every task category has exactly one activity.
func Validate(reg *ActivityRegistry) error {
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if err := validation.ValidateActivityNaming(activity.ID); err != nil {
			return fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if !validStatuses[activity.ImplementationStatus] {
			return fmt.Errorf("activity %s has unknown implementation status %q", activity.ID, activity.ImplementationStatus)
		}
		if _, err := time.ParseDuration(activity.Timeout); err != nil {
			return fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
		}
		if err := checkSchema(activity.InputSchema); err != nil {
			return fmt.Errorf("activity %s has invalid input schema: %w", activity.ID, err)
		}
		if err := checkSchema(activity.OutputSchema); err != nil {
			return fmt.Errorf("activity %s has invalid output schema: %w", activity.ID, err)
		}

		category, err := prompt.ParseCategory(activity.TaskType)
		if err != nil {
			return fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		if want := ActivityID(category); activity.ID != want {
			return fmt.Errorf("activity %s should be named %s for task type %s", activity.ID, want, activity.TaskType)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true
	}

	for _, c := range prompt.Categories() {
		if !taskTypes[string(c)] {
			return fmt.Errorf("no activity registered for task type %s", c)
		}
	}
	return nil
}

// checkSchema parses a registry schema the way workers load theirs and compiles it.
func checkSchema(raw map[string]interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("schema is empty")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	schema, err := validation.GetSchemaFromJSON(string(data))
	if err != nil {
		return err
	}
	_, err = validation.Compile(schema)
	return err
}
