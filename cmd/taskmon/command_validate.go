package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourceplane/taskmon/internal/loader"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate task and group definition files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateDefinitions()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateDefinitions() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	v, err := schema.NewValidator()
	if err != nil {
		return err
	}

	var problems []string

	taskDirs := []string{a.settings.ResolvePath(a.settings.GetString("paths.tasks_file"))}
	groupDirs := []string{a.settings.ResolvePath(a.settings.GetString("paths.groups_file"))}
	if a.settings.GetBool("include_catalog") {
		taskDirs = append(taskDirs, a.settings.ResolvePath(a.settings.GetString("paths.catalog_tasks_file")))
		groupDirs = append(groupDirs, a.settings.ResolvePath(a.settings.GetString("paths.catalog_groups_file")))
	}

	for _, dir := range taskDirs {
		for _, path := range yamlFiles(dir) {
			if err := v.ValidateTaskFile(path); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}
	for _, dir := range groupDirs {
		for _, path := range yamlFiles(dir) {
			if err := v.ValidateGroupFile(path); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}

	catalog, err := loader.Load(a.settings, a.logger)
	if err != nil {
		return err
	}
	problems = append(problems, schema.CheckCatalog(catalog)...)

	if len(problems) > 0 {
		for _, problem := range problems {
			fmt.Printf("✗ %s\n", problem)
		}
		return model.NewValidationError("%d validation problem(s) found", len(problems))
	}

	fmt.Printf("✓ %d tasks and %d groups are valid\n", len(catalog.Tasks), len(catalog.Groups))
	return nil
}

func yamlFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths
}
