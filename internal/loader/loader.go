// Package loader builds the in-memory task and group catalog from
// directories of declarative YAML definition files.
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
)

type taskFile struct {
	Tasks []*model.Task `yaml:"tasks"`
}

type groupFile struct {
	Groups []*model.Group `yaml:"groups"`
}

// Load reads every task and group definition from the configured user
// directories, plus the catalog directories when include_catalog is
// set. Each definition's source file is recorded so runtime state can
// be sharded per file. Malformed files are warned about and skipped;
// a missing directory is not an error.
func Load(settings *config.Settings, logger *zap.Logger) (*model.Catalog, error) {
	catalog := &model.Catalog{
		TaskSources:  make(map[string]string),
		GroupSources: make(map[string]string),
	}

	taskDirs := []string{settings.ResolvePath(settings.GetString("paths.tasks_file"))}
	groupDirs := []string{settings.ResolvePath(settings.GetString("paths.groups_file"))}
	if settings.GetBool("include_catalog") {
		taskDirs = append(taskDirs, settings.ResolvePath(settings.GetString("paths.catalog_tasks_file")))
		groupDirs = append(groupDirs, settings.ResolvePath(settings.GetString("paths.catalog_groups_file")))
	}

	for _, dir := range taskDirs {
		loadTasks(dir, catalog, logger)
	}
	for _, dir := range groupDirs {
		loadGroups(dir, catalog, logger)
	}

	return catalog, nil
}

func loadTasks(dir string, catalog *model.Catalog, logger *zap.Logger) {
	for _, path := range definitionFiles(dir) {
		var file taskFile
		if !readDefinition(path, &file, logger) {
			continue
		}
		for _, task := range file.Tasks {
			if task == nil || task.Name == "" {
				continue
			}
			catalog.TaskSources[task.Name] = path
			catalog.Tasks = append(catalog.Tasks, task)
		}
	}
}

func loadGroups(dir string, catalog *model.Catalog, logger *zap.Logger) {
	for _, path := range definitionFiles(dir) {
		var file groupFile
		if !readDefinition(path, &file, logger) {
			continue
		}
		for _, group := range file.Groups {
			if group == nil || group.Name == "" {
				continue
			}
			catalog.GroupSources[group.Name] = path
			catalog.Groups = append(catalog.Groups, group)
		}
	}
}

// definitionFiles lists the YAML definition files in a directory in
// deterministic name order, skipping dotfiles. A missing directory
// yields no files.
func definitionFiles(dir string) []string {
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
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths
}

func readDefinition(path string, out interface{}, logger *zap.Logger) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read definition file", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		logger.Warn("failed to parse definition file", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}
