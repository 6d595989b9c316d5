// Package schema validates task and group definition files against
// embedded JSON schemas and runs the semantic checks a schema cannot
// express (cross-references, regex and cron syntax).
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/robfig/cron/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/taskmon/internal/model"
)

// Validator handles JSON schema validation of definition files.
type Validator struct {
	tasksSchema  *jsonschema.Schema
	groupsSchema *jsonschema.Schema
}

// NewValidator compiles the embedded definition schemas.
func NewValidator() (*Validator, error) {
	tasksSchema, err := jsonschema.CompileString("tasks.schema.json", tasksSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tasks schema: %w", err)
	}
	groupsSchema, err := jsonschema.CompileString("groups.schema.json", groupsSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile groups schema: %w", err)
	}
	return &Validator{tasksSchema: tasksSchema, groupsSchema: groupsSchema}, nil
}

// ValidateTaskFile validates one task definition file on disk.
func (v *Validator) ValidateTaskFile(path string) error {
	return validateFile(path, v.tasksSchema)
}

// ValidateGroupFile validates one group definition file on disk.
func (v *Validator) ValidateGroupFile(path string) error {
	return validateFile(path, v.groupsSchema)
}

func validateFile(path string, schema *jsonschema.Schema) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Round-trip through JSON so the document matches what the schema
	// compiler expects (string keys, json.Number-free plain values).
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert %s for validation: %w", path, err)
	}
	var jsonDoc interface{}
	if err := json.Unmarshal(jsonData, &jsonDoc); err != nil {
		return fmt.Errorf("failed to convert %s for validation: %w", path, err)
	}

	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// CheckCatalog runs the semantic checks over a loaded catalog and
// returns one message per problem found.
func CheckCatalog(catalog *model.Catalog) []string {
	var problems []string

	seen := make(map[string]bool)
	for _, task := range catalog.Tasks {
		if seen[task.Name] {
			problems = append(problems, fmt.Sprintf("duplicate task name %q", task.Name))
		}
		seen[task.Name] = true

		if task.Command == "" {
			problems = append(problems, fmt.Sprintf("task %q has no command", task.Name))
		}
		if task.LogLimit != nil && task.LogLimit.Type != model.LimitCount && task.LogLimit.Type != model.LimitAge {
			problems = append(problems, fmt.Sprintf("task %q has unknown log_limit type %q", task.Name, task.LogLimit.Type))
		}
		for _, rule := range task.Alerts {
			if rule.Pattern == "" {
				continue
			}
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				problems = append(problems, fmt.Sprintf("task %q has invalid alert pattern %q: %v", task.Name, rule.Pattern, err))
			}
			switch rule.Severity {
			case "", model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
			default:
				problems = append(problems, fmt.Sprintf("task %q has unknown alert severity %q", task.Name, rule.Severity))
			}
		}
	}

	seenGroups := make(map[string]bool)
	for _, group := range catalog.Groups {
		if seenGroups[group.Name] {
			problems = append(problems, fmt.Sprintf("duplicate group name %q", group.Name))
		}
		seenGroups[group.Name] = true

		for _, member := range group.Tasks {
			if !seen[member] {
				problems = append(problems, fmt.Sprintf("group %q references unknown task %q", group.Name, member))
			}
		}
		switch group.Execution {
		case "", model.ExecutionSerial, model.ExecutionParallel:
		default:
			problems = append(problems, fmt.Sprintf("group %q has unknown execution mode %q", group.Name, group.Execution))
		}
		if group.Schedule != "" {
			if _, err := cron.ParseStandard(group.Schedule); err != nil {
				problems = append(problems, fmt.Sprintf("group %q has invalid schedule %q: %v", group.Name, group.Schedule, err))
			}
		}
	}

	return problems
}
