// Package alert inspects captured task output for operator-defined
// patterns and keeps an append-only JSON Lines journal per task.
package alert

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

const journalName = "alerts.jsonl"

// Triggered materializes one AlertRule match. It always carries the
// task name and timestamp, and once journaled is never mutated.
type Triggered struct {
	Pattern       string `json:"pattern"`
	Message       string `json:"message"`
	Severity      string `json:"severity"`
	Timestamp     string `json:"timestamp"`
	TaskName      string `json:"task_name"`
	Title         string `json:"title,omitempty"`
	Notify        *bool  `json:"notify,omitempty"`
	OnFailureOnly *bool  `json:"on_failure_only,omitempty"`
}

// Summary aggregates journal contents across all tasks.
type Summary struct {
	Total      int
	BySeverity map[string]int
	ByTask     map[string]int
}

// Engine evaluates alert rules and manages per-task alert journals.
type Engine struct {
	settings *config.Settings
	log      *zap.Logger
}

// New creates an alert engine rooted at the configured log directory.
func New(settings *config.Settings, logger *zap.Logger) *Engine {
	return &Engine{settings: settings, log: logger}
}

func (e *Engine) alertsDir(task string) string {
	return filepath.Join(e.settings.LogDir(), task, "alerts")
}

func (e *Engine) journalPath(task string) string {
	return filepath.Join(e.alertsDir(task), journalName)
}

// CheckPatterns tests each of the task's alert rules against the
// combined output. Each matching rule produces exactly one Triggered
// regardless of how many times the pattern recurs; rule order is
// preserved. Rules without a pattern are skipped, as are rules whose
// pattern fails to compile.
func (e *Engine) CheckPatterns(taskName string, task *model.Task, output string) []Triggered {
	var triggered []Triggered
	now := timestamp.Format(time.Now(), e.settings.TimestampLayout())

	for _, rule := range task.Alerts {
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			e.log.Warn("invalid alert pattern skipped",
				zap.String("task", taskName), zap.String("pattern", rule.Pattern), zap.Error(err))
			continue
		}
		if !re.MatchString(output) {
			continue
		}

		message := rule.Message
		if message == "" {
			message = rule.Pattern
		}
		severity := rule.Severity
		if severity == "" {
			severity = model.SeverityInfo
		}
		triggered = append(triggered, Triggered{
			Pattern:       rule.Pattern,
			Message:       message,
			Severity:      severity,
			Timestamp:     now,
			TaskName:      taskName,
			Title:         rule.Title,
			Notify:        rule.Notify,
			OnFailureOnly: rule.OnFailureOnly,
		})
	}
	return triggered
}

// Save appends one alert record to the task's journal.
func (e *Engine) Save(taskName string, a Triggered) error {
	if err := os.MkdirAll(e.alertsDir(taskName), 0o700); err != nil {
		return fmt.Errorf("failed to create alerts directory for %s: %w", taskName, err)
	}

	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	f, err := os.OpenFile(e.journalPath(taskName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open alert journal for %s: %w", taskName, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append alert for %s: %w", taskName, err)
	}
	return nil
}

// Load reads alerts newest-first, optionally filtered by task, severity
// and age in days. Unparsable journal lines are skipped. Zero values
// mean "no filter".
func (e *Engine) Load(taskName, severity string, maxDays int) ([]Triggered, error) {
	var tasks []string
	if taskName != "" {
		tasks = []string{taskName}
	} else {
		root := e.settings.LogDir()
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				tasks = append(tasks, entry.Name())
			}
		}
	}

	var cutoff time.Time
	if maxDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -maxDays)
	}
	layout := e.settings.TimestampLayout()

	var alerts []Triggered
	for _, task := range tasks {
		for _, a := range e.readJournal(task) {
			if severity != "" && a.Severity != severity {
				continue
			}
			if !cutoff.IsZero() {
				ts, err := timestamp.Parse(a.Timestamp, layout)
				if err != nil || ts.Before(cutoff) {
					continue
				}
			}
			alerts = append(alerts, a)
		}
	}

	// Formatted timestamps sort lexicographically in time order.
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp > alerts[j].Timestamp
	})
	return alerts, nil
}

func (e *Engine) readJournal(task string) []Triggered {
	f, err := os.Open(e.journalPath(task))
	if err != nil {
		return nil
	}
	defer f.Close()

	var alerts []Triggered
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var a Triggered
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			e.log.Warn("skipping malformed alert journal line",
				zap.String("task", task), zap.Error(err))
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// Prune rewrites a task's journal keeping only entries that pass the
// retention policy. perSeverity day limits override maxDays for
// matching severities; the day caps apply first, then maxEntries trims
// the remainder to the most recent N.
func (e *Engine) Prune(taskName string, maxDays, maxEntries int, perSeverity map[string]int) error {
	path := e.journalPath(taskName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	alerts := e.readJournal(taskName)
	layout := e.settings.TimestampLayout()
	now := time.Now()

	var kept []Triggered
	for _, a := range alerts {
		days := maxDays
		if override, ok := perSeverity[a.Severity]; ok {
			days = override
		}
		if days > 0 {
			ts, err := timestamp.Parse(a.Timestamp, layout)
			// Entries with unreadable timestamps are retained.
			if err == nil && ts.Before(now.AddDate(0, 0, -days)) {
				continue
			}
		}
		kept = append(kept, a)
	}

	if maxEntries > 0 && len(kept) > maxEntries {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].Timestamp > kept[j].Timestamp
		})
		kept = kept[:maxEntries]
	}

	var b strings.Builder
	for _, a := range kept {
		line, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode alert while pruning: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to rewrite alert journal for %s: %w", taskName, err)
	}
	return nil
}

// GetSummary aggregates total, per-severity and per-task counts across
// every task's journal.
func (e *Engine) GetSummary() (Summary, error) {
	alerts, err := e.Load("", "", 0)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Total:      len(alerts),
		BySeverity: make(map[string]int),
		ByTask:     make(map[string]int),
	}
	for _, a := range alerts {
		severity := a.Severity
		if severity == "" {
			severity = model.SeverityInfo
		}
		task := a.TaskName
		if task == "" {
			task = "unknown"
		}
		summary.BySeverity[severity]++
		summary.ByTask[task]++
	}
	return summary, nil
}

// ShouldNotify resolves the notification policy for one triggered
// alert, most specific first: the rule's notify override, then its
// on_failure_only override, then the global alert-notification
// settings. A false result still leaves the alert journaled and echoed
// to the console.
func (e *Engine) ShouldNotify(a Triggered, taskFailed bool) bool {
	if a.Notify != nil && !*a.Notify {
		return false
	}
	if a.Notify == nil && !e.settings.GetBool("alerts.notifications.enabled") {
		return false
	}

	onFailureOnly := e.settings.GetBool("alerts.notifications.on_failure_only")
	if a.OnFailureOnly != nil {
		onFailureOnly = *a.OnFailureOnly
	}
	if onFailureOnly && !taskFailed {
		return false
	}
	return true
}
