package logstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

// LogEntry is one classified execution log discovered by a scan.
type LogEntry struct {
	Task       string
	Path       string
	Timestamp  time.Time
	Status     string // success, failed, or unknown when no return code was recorded
	ReturnCode int
}

// FilterOptions narrows a log scan. Zero values mean "no filter".
type FilterOptions struct {
	Task   string
	Status string
	Since  time.Time
	Until  time.Time // inclusive
	Limit  int
}

// AllLogFiles scans every task's log directory and classifies each log
// file. Timestamps come from the filename, falling back to modification
// time when the name doesn't parse; status comes from the stored return
// code when present.
func (s *Store) AllLogFiles() ([]LogEntry, error) {
	root := s.settings.LogDir()
	taskDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	layout := s.settings.TimestampLayout()
	var entries []LogEntry
	for _, taskDir := range taskDirs {
		if !taskDir.IsDir() {
			continue
		}
		task := taskDir.Name()
		files, err := os.ReadDir(filepath.Join(root, task))
		if err != nil {
			s.log.Warn("failed to scan task log directory", zap.String("task", task), zap.Error(err))
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
				continue
			}
			path := filepath.Join(root, task, file.Name())
			entries = append(entries, s.classify(task, path, file, layout))
		}
	}
	return entries, nil
}

func (s *Store) classify(task, path string, file os.DirEntry, layout string) LogEntry {
	entry := LogEntry{Task: task, Path: path, Status: "unknown"}

	ts, err := timestamp.Parse(file.Name(), layout)
	if err != nil {
		if info, ierr := file.Info(); ierr == nil {
			ts = info.ModTime()
		}
	}
	entry.Timestamp = ts

	content, err := s.ReadLog(path)
	if err != nil {
		s.log.Warn("failed to read log during scan", zap.String("path", path), zap.Error(err))
		return entry
	}
	if code, ok := ParseReturnCode(content); ok {
		entry.ReturnCode = code
		if code == 0 {
			entry.Status = model.StatusSuccess
		} else {
			entry.Status = model.StatusFailed
		}
	}
	return entry
}

// Filter scans all logs and applies task, status and time-window
// filters, returning results newest-first capped at opts.Limit.
func (s *Store) Filter(opts FilterOptions) ([]LogEntry, error) {
	entries, err := s.AllLogFiles()
	if err != nil {
		return nil, err
	}

	filtered := entries[:0]
	for _, e := range entries {
		if opts.Task != "" && e.Task != opts.Task {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if !opts.Since.IsZero() && e.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && e.Timestamp.After(opts.Until) {
			continue
		}
		filtered = append(filtered, e)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}
