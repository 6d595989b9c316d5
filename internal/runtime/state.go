// Package runtime persists last-run bookkeeping across CLI invocations.
// State is sharded on disk by the task or group's source definition
// file, so editing one definition file never rewrites unrelated shards.
package runtime

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
)

const shardPrefix = "runtime_"

// TaskState is the durable record for one task.
type TaskState struct {
	LastRun    string `yaml:"last_run"`
	LastStatus string `yaml:"last_status"`
}

// GroupState is the durable record for one group.
type GroupState struct {
	LastRun              string  `yaml:"last_run"`
	LastStatus           string  `yaml:"last_status"`
	ExecutionTimeSeconds float64 `yaml:"execution_time_seconds"`
	ExecutionCount       int     `yaml:"execution_count"`
	TasksTotal           int     `yaml:"tasks_total"`
	TasksSuccessful      int     `yaml:"tasks_successful"`
	SuccessRate          float64 `yaml:"success_rate"`
}

// State is the merged view of every shard on disk.
type State struct {
	Tasks  map[string]TaskState
	Groups map[string]GroupState
}

type taskShard struct {
	Tasks map[string]TaskState `yaml:"tasks"`
}

type groupShard struct {
	Groups map[string]GroupState `yaml:"groups"`
}

// Store reads and writes runtime-state shards.
//
// Shards are read-modify-written without locking: a given shard is
// expected to have at most one concurrent writer (one task belongs to
// exactly one source file). Concurrent group runs touching the same
// source file can silently lose an update; the atomic rename below only
// prevents torn files, not lost updates.
type Store struct {
	settings *config.Settings
	log      *zap.Logger
}

// New creates a runtime state store rooted at the config home.
func New(settings *config.Settings, logger *zap.Logger) *Store {
	return &Store{settings: settings, log: logger}
}

// Load reads every shard under the runtime directories and merges their
// maps. Last writer per key wins, which cannot occur under correct
// sharding by source file. Corrupt shards are skipped with a warning.
func (s *Store) Load() (*State, error) {
	state := &State{
		Tasks:  make(map[string]TaskState),
		Groups: make(map[string]GroupState),
	}

	for _, path := range s.shardFiles("tasks") {
		var shard taskShard
		if !s.readShard(path, &shard) {
			continue
		}
		for name, ts := range shard.Tasks {
			state.Tasks[name] = ts
		}
	}
	for _, path := range s.shardFiles("groups") {
		var shard groupShard
		if !s.readShard(path, &shard) {
			continue
		}
		for name, gs := range shard.Groups {
			state.Groups[name] = gs
		}
	}
	return state, nil
}

func (s *Store) shardFiles(kind string) []string {
	dir := s.settings.RuntimeDir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, shardPrefix) {
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

func (s *Store) readShard(path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("failed to read runtime shard", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		s.log.Warn("malformed runtime shard skipped", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

// shardPath derives the shard filename from the source definition
// file's base name.
func (s *Store) shardPath(kind, sourceFile string) string {
	base := filepath.Base(sourceFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(s.settings.RuntimeDir(kind), shardPrefix+base+".yaml")
}

// SaveTaskState upserts one task's record into the shard derived from
// its source definition file. An absent or corrupt shard is treated as
// empty.
func (s *Store) SaveTaskState(name, sourceFile, lastRun, lastStatus string) error {
	path := s.shardPath("tasks", sourceFile)

	shard := taskShard{Tasks: make(map[string]TaskState)}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &shard); err != nil || shard.Tasks == nil {
			shard = taskShard{Tasks: make(map[string]TaskState)}
		}
	}
	shard.Tasks[name] = TaskState{LastRun: lastRun, LastStatus: lastStatus}

	return s.writeShard(path, sourceFile, shard)
}

// SaveGroupState upserts one group's record, incrementing the persisted
// execution count and recomputing the success rate from the supplied
// totals.
func (s *Store) SaveGroupState(name, sourceFile, lastRun, lastStatus string, executionTime float64, tasksTotal, tasksSuccessful int) error {
	path := s.shardPath("groups", sourceFile)

	shard := groupShard{Groups: make(map[string]GroupState)}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &shard); err != nil || shard.Groups == nil {
			shard = groupShard{Groups: make(map[string]GroupState)}
		}
	}

	prev := shard.Groups[name]
	shard.Groups[name] = GroupState{
		LastRun:              lastRun,
		LastStatus:           lastStatus,
		ExecutionTimeSeconds: executionTime,
		ExecutionCount:       prev.ExecutionCount + 1,
		TasksTotal:           tasksTotal,
		TasksSuccessful:      tasksSuccessful,
		SuccessRate:          SuccessRate(tasksSuccessful, tasksTotal),
	}

	return s.writeShard(path, sourceFile, shard)
}

// SuccessRate returns successful/total as a percentage rounded to one
// decimal, and 0 when total is zero.
func SuccessRate(successful, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return math.Round(float64(successful)/float64(total)*1000) / 10
}

// writeShard writes the shard to a temp file and atomically renames it
// into place, so readers never observe a torn shard.
func (s *Store) writeShard(path, sourceFile string, doc interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode runtime shard: %w", err)
	}
	header := fmt.Sprintf("# Runtime state for %s - auto-generated, do not edit manually\n", filepath.Base(sourceFile))

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp shard: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(header + string(body)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write runtime shard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write runtime shard: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace runtime shard: %w", err)
	}
	return nil
}

// MergeCatalog overlays durable state onto the in-memory catalog. This
// is the only place stale in-memory defaults are reconciled with
// durable truth; call it before any read-only listing.
func MergeCatalog(catalog *model.Catalog, state *State) {
	for _, task := range catalog.Tasks {
		if ts, ok := state.Tasks[task.Name]; ok {
			task.LastRun = ts.LastRun
			task.LastStatus = ts.LastStatus
			if task.LastStatus == "" {
				task.LastStatus = model.StatusNoLogs
			}
		} else {
			task.LastRun = ""
			task.LastStatus = model.StatusNoLogs
		}
	}
}
