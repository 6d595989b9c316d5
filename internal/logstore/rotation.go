package logstore

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/model"
)

// lockFileName is the advisory rotation lock inside a task's log
// directory. The lock spans separate CLI process invocations.
const lockFileName = ".rotate.lock"

// Rotate applies the task's log retention policy, falling back to the
// global default. Rotation is best-effort: it never fails the run that
// triggered it, and when a concurrent run of the same task already
// holds the rotation lock this invocation skips rather than blocking.
func (s *Store) Rotate(task *model.Task) {
	dir := s.TaskDir(task.Name)
	if _, err := os.Stat(dir); err != nil {
		return
	}

	limit := s.settings.DefaultLogLimit()
	if task.LogLimit != nil {
		limit = *task.LogLimit
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		s.log.Warn("log rotation lock failed, skipping", zap.String("task", task.Name), zap.Error(err))
		return
	}
	if !locked {
		s.log.Debug("log rotation already in progress, skipping", zap.String("task", task.Name))
		return
	}
	defer lock.Unlock()

	files, found := s.History(task.Name)
	if !found {
		return
	}

	switch limit.Type {
	case model.LimitCount:
		s.rotateByCount(files, limit.Value)
	case model.LimitAge:
		s.rotateByAge(files, limit.Value)
	default:
		s.log.Warn("unknown log_limit type, skipping rotation",
			zap.String("task", task.Name), zap.String("type", limit.Type))
	}
}

// rotateByCount keeps the maxCount most recently modified files.
func (s *Store) rotateByCount(files []LogFileInfo, maxCount int) {
	if maxCount < 0 || len(files) <= maxCount {
		return
	}

	// History is newest-first; delete from the oldest end.
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	for _, f := range files[:len(files)-maxCount] {
		if err := os.Remove(f.Path); err != nil {
			s.log.Warn("failed to delete rotated log", zap.String("path", f.Path), zap.Error(err))
		}
	}
}

// rotateByAge deletes files older than maxAgeDays.
func (s *Store) rotateByAge(files []LogFileInfo, maxAgeDays int) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			if err := os.Remove(f.Path); err != nil {
				s.log.Warn("failed to delete rotated log", zap.String("path", f.Path), zap.Error(err))
			}
		}
	}
}
