package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
)

func writeDefinition(t *testing.T, home, rel, content string) string {
	t.Helper()
	path := filepath.Join(home, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSettings(t *testing.T) (*config.Settings, string) {
	t.Helper()
	home := t.TempDir()
	settings, err := config.Load(home)
	require.NoError(t, err)
	return settings, home
}

func TestLoadTasksAndGroups(t *testing.T) {
	settings, home := testSettings(t)
	taskPath := writeDefinition(t, home, "tasks/nightly.yaml", `
tasks:
  - name: backup
    command: ./backup.sh
    timeout: 120
  - name: cleanup
    command: rm -rf /tmp/scratch
`)
	groupPath := writeDefinition(t, home, "groups/all.yaml", `
groups:
  - name: nightly
    tasks: [backup, cleanup]
    execution: parallel
    stop_on_error: false
`)

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, catalog.Tasks, 2)
	require.Len(t, catalog.Groups, 1)

	backup := catalog.Task("backup")
	require.NotNil(t, backup)
	require.Equal(t, "./backup.sh", backup.Command)
	require.NotNil(t, backup.Timeout)
	require.Equal(t, 120, *backup.Timeout)

	nightly := catalog.Group("nightly")
	require.NotNil(t, nightly)
	require.Equal(t, model.ExecutionParallel, nightly.Mode())
	require.Equal(t, []string{"backup", "cleanup"}, nightly.Tasks)

	require.Equal(t, taskPath, catalog.TaskSources["backup"])
	require.Equal(t, groupPath, catalog.GroupSources["nightly"])
}

func TestLoadMergesMultipleFiles(t *testing.T) {
	settings, home := testSettings(t)
	writeDefinition(t, home, "tasks/a.yaml", "tasks:\n  - name: one\n    command: true\n")
	writeDefinition(t, home, "tasks/b.yml", "tasks:\n  - name: two\n    command: true\n")

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, catalog.TaskNames())
}

func TestLoadIncludesCatalogDirectories(t *testing.T) {
	settings, home := testSettings(t)
	writeDefinition(t, home, "config/catalog/tasks/builtin.yaml", "tasks:\n  - name: builtin\n    command: true\n")

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, catalog.Task("builtin"))

	settings.Set("include_catalog", false)
	catalog, err = Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Nil(t, catalog.Task("builtin"))
}

func TestLoadSkipsDotfilesAndNonYAML(t *testing.T) {
	settings, home := testSettings(t)
	writeDefinition(t, home, "tasks/.hidden.yaml", "tasks:\n  - name: hidden\n    command: true\n")
	writeDefinition(t, home, "tasks/readme.txt", "not yaml")
	writeDefinition(t, home, "tasks/real.yaml", "tasks:\n  - name: real\n    command: true\n")

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"real"}, catalog.TaskNames())
}

func TestLoadSkipsMalformedFile(t *testing.T) {
	settings, home := testSettings(t)
	writeDefinition(t, home, "tasks/broken.yaml", "tasks: [name: {{unbalanced\n")
	writeDefinition(t, home, "tasks/good.yaml", "tasks:\n  - name: good\n    command: true\n")

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, catalog.TaskNames())
}

func TestLoadMissingDirectories(t *testing.T) {
	settings, _ := testSettings(t)
	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Empty(t, catalog.Tasks)
	require.Empty(t, catalog.Groups)
}

func TestLoadSkipsNamelessEntries(t *testing.T) {
	settings, home := testSettings(t)
	writeDefinition(t, home, "tasks/mixed.yaml", `
tasks:
  - command: true
  - name: named
    command: true
`)

	catalog, err := Load(settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, []string{"named"}, catalog.TaskNames())
}
