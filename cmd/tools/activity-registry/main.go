// cmd/tools/activity-registry/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"dominion-workers/internal/common/config"
	"dominion-workers/pkg/registry"
)

const defaultPath = "configs/activity-registry.json"

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Generate command flags
	genPath := generateCmd.String("path", defaultPath, "Path to registry file")
	version := generateCmd.String("version", "1.0.0", "Registry version")
	timeoutMS := generateCmd.Int("timeout", config.GetWorkerConfig(&config.Config{}, "").Timeout, "Job timeout in milliseconds")

	// Update command flags
	updPath := updateCmd.String("path", defaultPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update (e.g., dominion.legal.draft)")
	field := updateCmd.String("field", "", "Field to update (status, version, description, timeout)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	valPath := validateCmd.String("path", defaultPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		_ = generateCmd.Parse(os.Args[2:])
		reg := registry.Generate(*version, config.GetDuration(*timeoutMS))
		if err := registry.SaveRegistry(reg, *genPath); err != nil {
			fmt.Printf("Error generating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d activities to %s\n", len(reg.Activities), *genPath)

	case "update":
		_ = updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updPath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*valPath)
		if err != nil {
			fmt.Printf("Failed to load registry: %v\n", err)
			os.Exit(1)
		}
		if err := registry.Validate(reg); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "help":
		fallthrough
	default:
		help()
	}
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := registry.Validate(reg); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveRegistry(reg, path)
}

func help() {
	fmt.Print(`
Usage: activity-registry <command> [flags]

Commands:
  generate  Write one activity per task category from the prompt schemas
  update    Update an existing activity's field
  validate  Validate the registry file
  help      Show this help message

Examples:
  activity-registry generate -path configs/activity-registry.json
  activity-registry update -id dominion.esg.audit -field status -value verified
  activity-registry validate -path configs/activity-registry.json

Use 'activity-registry <command> -h' for more information about a command.

`)
}
