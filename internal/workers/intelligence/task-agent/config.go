// internal/workers/intelligence/task-agent/config.go
package taskagent

import (
	"time"

	"dominion-workers/internal/common/config"
	"dominion-workers/internal/common/validation"
	"dominion-workers/internal/dominion/prompt"
)

type Config struct {
	// Timeout bounds one job, including the completion call.
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 65 * time.Second
	}
	return &Config{Timeout: timeout}
}

// TaskTypes lists the Zeebe job types served here, one per task category.
func TaskTypes() []string {
	categories := prompt.Categories()
	types := make([]string, 0, len(categories))
	for _, c := range categories {
		types = append(types, string(c))
	}
	return types
}

// InputSchema is the JSON schema job variables must satisfy for s.
func InputSchema(s prompt.Schema) validation.JSONSchema {
	fields := make([]validation.StringField, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = validation.StringField{Name: f.Name, Description: f.Description, Examples: f.Hints}
	}
	return validation.TaskInputSchema(fields)
}
