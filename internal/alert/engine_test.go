package alert

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return New(settings, zaptest.NewLogger(t))
}

func boolPtr(v bool) *bool { return &v }

func TestCheckPatternsNoMatch(t *testing.T) {
	e := newTestEngine(t)
	task := &model.Task{Alerts: []model.AlertRule{{Pattern: "ERROR"}}}
	require.Empty(t, e.CheckPatterns("backup", task, "all good here"))
}

func TestCheckPatternsOnePerRuleDespiteRepeats(t *testing.T) {
	e := newTestEngine(t)
	task := &model.Task{Alerts: []model.AlertRule{
		{Pattern: "ERROR", Message: "errors seen", Severity: model.SeverityCritical},
		{Pattern: `disk \d+% full`, Severity: model.SeverityWarning},
		{Pattern: "never matches"},
	}}
	out := "ERROR one\nERROR two\ndisk 93% full\nERROR three\n"

	got := e.CheckPatterns("backup", task, out)
	require.Len(t, got, 2)
	require.Equal(t, "errors seen", got[0].Message)
	require.Equal(t, model.SeverityCritical, got[0].Severity)
	require.Equal(t, `disk \d+% full`, got[1].Pattern)
	require.Equal(t, model.SeverityWarning, got[1].Severity)
	require.Equal(t, "backup", got[1].TaskName)
}

func TestCheckPatternsDefaults(t *testing.T) {
	e := newTestEngine(t)
	task := &model.Task{Alerts: []model.AlertRule{{Pattern: "WARN"}}}

	got := e.CheckPatterns("backup", task, "WARN something")
	require.Len(t, got, 1)
	require.Equal(t, "WARN", got[0].Message)
	require.Equal(t, model.SeverityInfo, got[0].Severity)
	require.NotEmpty(t, got[0].Timestamp)
}

func TestCheckPatternsSkipsBadRegex(t *testing.T) {
	e := newTestEngine(t)
	task := &model.Task{Alerts: []model.AlertRule{
		{Pattern: "(unclosed"},
		{Pattern: "fine"},
	}}

	got := e.CheckPatterns("backup", task, "fine output")
	require.Len(t, got, 1)
	require.Equal(t, "fine", got[0].Pattern)
}

func TestSaveAndLoadFilters(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	recent := timestamp.Format(time.Now(), layout)
	stale := timestamp.Format(time.Now().AddDate(0, 0, -30), layout)

	require.NoError(t, e.Save("backup", Triggered{Pattern: "a", Severity: model.SeverityCritical, Timestamp: recent, TaskName: "backup"}))
	require.NoError(t, e.Save("backup", Triggered{Pattern: "b", Severity: model.SeverityWarning, Timestamp: stale, TaskName: "backup"}))
	require.NoError(t, e.Save("deploy", Triggered{Pattern: "c", Severity: model.SeverityWarning, Timestamp: recent, TaskName: "deploy"}))

	all, err := e.Load("", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	byTask, err := e.Load("backup", "", 0)
	require.NoError(t, err)
	require.Len(t, byTask, 2)

	bySeverity, err := e.Load("", model.SeverityWarning, 0)
	require.NoError(t, err)
	require.Len(t, bySeverity, 2)

	fresh, err := e.Load("", "", 7)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	for _, a := range fresh {
		require.Equal(t, recent, a.Timestamp)
	}
}

func TestLoadNewestFirst(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	older := timestamp.Format(time.Now().Add(-time.Hour), layout)
	newer := timestamp.Format(time.Now(), layout)

	require.NoError(t, e.Save("backup", Triggered{Pattern: "old", Timestamp: older, TaskName: "backup"}))
	require.NoError(t, e.Save("backup", Triggered{Pattern: "new", Timestamp: newer, TaskName: "backup"}))

	got, err := e.Load("backup", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "new", got[0].Pattern)
}

func TestPrunePerSeverityThenCount(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	now := time.Now()

	// Critical kept for 10 days, everything else for 2.
	entries := []Triggered{
		{Pattern: "crit-old", Severity: model.SeverityCritical, Timestamp: timestamp.Format(now.AddDate(0, 0, -5), layout), TaskName: "backup"},
		{Pattern: "info-old", Severity: model.SeverityInfo, Timestamp: timestamp.Format(now.AddDate(0, 0, -5), layout), TaskName: "backup"},
		{Pattern: "info-new", Severity: model.SeverityInfo, Timestamp: timestamp.Format(now, layout), TaskName: "backup"},
	}
	for _, a := range entries {
		require.NoError(t, e.Save("backup", a))
	}

	require.NoError(t, e.Prune("backup", 2, 0, map[string]int{model.SeverityCritical: 10}))

	got, err := e.Load("backup", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	patterns := []string{got[0].Pattern, got[1].Pattern}
	require.Contains(t, patterns, "crit-old")
	require.Contains(t, patterns, "info-new")
}

func TestPruneMaxEntriesKeepsMostRecent(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	now := time.Now()

	for i := 0; i < 5; i++ {
		ts := timestamp.Format(now.Add(time.Duration(i)*time.Minute), layout)
		require.NoError(t, e.Save("backup", Triggered{Pattern: "p", Timestamp: ts, TaskName: "backup"}))
	}

	require.NoError(t, e.Prune("backup", 0, 2, nil))

	got, err := e.Load("backup", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, timestamp.Format(now.Add(4*time.Minute), layout), got[0].Timestamp)
}

func TestPruneMissingJournalIsNoop(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Prune("never-alerted", 1, 1, nil))
}

func TestGetSummary(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	now := timestamp.Format(time.Now(), layout)

	require.NoError(t, e.Save("backup", Triggered{Pattern: "a", Severity: model.SeverityCritical, Timestamp: now, TaskName: "backup"}))
	require.NoError(t, e.Save("backup", Triggered{Pattern: "b", Severity: model.SeverityWarning, Timestamp: now, TaskName: "backup"}))
	require.NoError(t, e.Save("deploy", Triggered{Pattern: "c", Severity: model.SeverityWarning, Timestamp: now, TaskName: "deploy"}))

	summary, err := e.GetSummary()
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.BySeverity[model.SeverityWarning])
	require.Equal(t, 1, summary.BySeverity[model.SeverityCritical])
	require.Equal(t, 2, summary.ByTask["backup"])
	require.Equal(t, 1, summary.ByTask["deploy"])
}

func TestShouldNotifyResolutionOrder(t *testing.T) {
	e := newTestEngine(t)
	e.settings.Set("alerts.notifications.enabled", true)
	e.settings.Set("alerts.notifications.on_failure_only", false)

	// Rule-level notify: false wins over everything.
	require.False(t, e.ShouldNotify(Triggered{Notify: boolPtr(false)}, true))

	// Explicit notify: true bypasses the global enabled switch.
	e.settings.Set("alerts.notifications.enabled", false)
	require.True(t, e.ShouldNotify(Triggered{Notify: boolPtr(true)}, false))

	// Without a rule override the global switch gates delivery.
	require.False(t, e.ShouldNotify(Triggered{}, true))
	e.settings.Set("alerts.notifications.enabled", true)
	require.True(t, e.ShouldNotify(Triggered{}, true))

	// Rule-level on_failure_only overrides the global flag.
	require.False(t, e.ShouldNotify(Triggered{OnFailureOnly: boolPtr(true)}, false))
	require.True(t, e.ShouldNotify(Triggered{OnFailureOnly: boolPtr(true)}, true))

	e.settings.Set("alerts.notifications.on_failure_only", true)
	require.False(t, e.ShouldNotify(Triggered{}, false))
	require.True(t, e.ShouldNotify(Triggered{OnFailureOnly: boolPtr(false)}, false))
}

func TestLoadSkipsMalformedJournalLines(t *testing.T) {
	e := newTestEngine(t)
	layout := e.settings.TimestampLayout()
	require.NoError(t, e.Save("backup", Triggered{Pattern: "good", Timestamp: timestamp.Format(time.Now(), layout), TaskName: "backup"}))

	f, err := os.OpenFile(e.journalPath("backup"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := e.Load("backup", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "good", got[0].Pattern)
}
