// Package logstore owns the on-disk log directory: one subdirectory per
// task, one timestamped file per execution, plus rotation, history and
// filtering over the whole tree.
package logstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/config"
)

// TruncationMarker replaces the middle of oversized captured output.
const TruncationMarker = "\n... [output truncated] ...\n"

// logFilePerm keeps execution logs owner-only; they may contain secrets
// from command output.
const (
	logFilePerm = 0o600
	logDirPerm  = 0o700
)

// Store manages execution log files for all tasks.
type Store struct {
	settings *config.Settings
	log      *zap.Logger
}

// New creates a log store backed by the configured log directory.
func New(settings *config.Settings, logger *zap.Logger) *Store {
	return &Store{settings: settings, log: logger}
}

// TaskDir returns the log directory for a task.
func (s *Store) TaskDir(task string) string {
	return filepath.Join(s.settings.LogDir(), task)
}

// EnsureTaskDir creates the task's log directory if needed.
func (s *Store) EnsureTaskDir(task string) error {
	if err := os.MkdirAll(s.TaskDir(task), logDirPerm); err != nil {
		return fmt.Errorf("failed to create log directory for %s: %w", task, err)
	}
	return nil
}

// LogPath returns the log file path for a task and timestamp string.
func (s *Store) LogPath(task, timestamp string) string {
	return filepath.Join(s.TaskDir(task), timestamp+".log")
}

// WriteExecutionLog serializes one execution's artifact: the invoked
// command, its return code and the captured output streams, each
// section independently toggleable by policy. Output exceeding the
// configured size budget is truncated from the middle so both the start
// and the tail remain inspectable. The file is owner-readable only.
func (s *Store) WriteExecutionLog(path, command string, returnCode int, stdout, stderr string) error {
	var b strings.Builder

	if s.settings.GetBool("logging.include_command") {
		fmt.Fprintf(&b, "Command: %s\n", command)
	}
	if s.settings.GetBool("logging.include_return_code") {
		fmt.Fprintf(&b, "Return code: %d\n", returnCode)
	}

	captureStdout := s.settings.GetBool("execution.capture_stdout")
	captureStderr := s.settings.GetBool("execution.capture_stderr")

	maxSize := s.settings.GetInt("logging.max_log_size")
	if maxSize > 0 {
		budget := maxSize - b.Len()
		sections := 0
		if captureStdout {
			sections++
		}
		if captureStderr {
			sections++
		}
		if sections > 0 {
			perSection := budget / sections
			stdout = truncateMiddle(stdout, perSection)
			stderr = truncateMiddle(stderr, perSection)
		}
	}

	if captureStdout {
		b.WriteString("STDOUT:\n" + stdout + "\n")
	}
	if captureStderr {
		b.WriteString("STDERR:\n" + stderr + "\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), logFilePerm); err != nil {
		return fmt.Errorf("failed to write log %s: %w", path, err)
	}
	// WriteFile only applies the mode on create; tighten pre-existing files too.
	if err := os.Chmod(path, logFilePerm); err != nil {
		return fmt.Errorf("failed to restrict log permissions on %s: %w", path, err)
	}
	return nil
}

// truncateMiddle bounds s to max bytes by keeping a roughly equal
// prefix and suffix around a literal marker.
func truncateMiddle(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	keep := max - len(TruncationMarker)
	if keep <= 0 {
		return TruncationMarker
	}
	head := keep / 2
	tail := keep - head
	return s[:head] + TruncationMarker + s[len(s)-tail:]
}

// ParseReturnCode scans log content for the return code section.
func ParseReturnCode(content string) (int, bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, found := strings.CutPrefix(line, "Return code: "); found {
			code, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, false
			}
			return code, true
		}
	}
	return 0, false
}

// LogFileInfo describes one log file in a task's history.
type LogFileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}

// LatestLog returns the newest log file for a task. The boolean is
// false when the task has no logs yet.
func (s *Store) LatestLog(task string) (string, bool) {
	history, found := s.History(task)
	if !found {
		return "", false
	}
	return history[0].Path, true
}

// History lists a task's log files newest-first. The boolean is false
// when the task has no logs yet.
func (s *Store) History(task string) ([]LogFileInfo, bool) {
	dir := s.TaskDir(task)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false
	}

	var files []LogFileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	if len(files) == 0 {
		return nil, false
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, true
}

// ReadLog returns a log file's content.
func (s *Store) ReadLog(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read log %s: %w", path, err)
	}
	return string(data), nil
}

// ClearTask deletes all log files for one task, keeping the directory.
// It returns false when the task has no log directory.
func (s *Store) ClearTask(task string) (bool, error) {
	dir := s.TaskDir(task)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return true, fmt.Errorf("failed to clear logs for %s: %w", task, err)
		}
	}
	return true, nil
}

// ClearAll deletes every task's log files, keeping the directory tree.
// It returns false when no log directory exists.
func (s *Store) ClearAll() (bool, error) {
	root := s.settings.LogDir()
	if _, err := os.Stat(root); err != nil {
		return false, nil
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Remove(path)
	})
	if err != nil {
		return true, fmt.Errorf("failed to clear logs: %w", err)
	}
	return true, nil
}
