package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
)

func TestValidateScheduleMissing(t *testing.T) {
	err := ValidateSchedule(&model.Group{Name: "nightly"})
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	require.Equal(t, model.KindExport, kind)
}

func TestValidateScheduleUnparsable(t *testing.T) {
	err := ValidateSchedule(&model.Group{Name: "nightly", Schedule: "whenever"})
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	require.Equal(t, model.KindExport, kind)
}

func TestValidateScheduleAccepts(t *testing.T) {
	require.NoError(t, ValidateSchedule(&model.Group{Name: "nightly", Schedule: "0 2 * * *"}))
}

func TestSystemdServiceUnit(t *testing.T) {
	group := &model.Group{Name: "nightly", Description: "Nightly maintenance", Schedule: "0 2 * * *"}
	unit := SystemdService(group, "/usr/local/bin/taskmon", "/home/op/.config/taskmon")

	require.Contains(t, unit, "Description=taskmon - Nightly maintenance")
	require.Contains(t, unit, "Type=oneshot")
	require.Contains(t, unit, "Environment=TASKMON_HOME=/home/op/.config/taskmon")
	require.Contains(t, unit, "ExecStart=/usr/local/bin/taskmon run-group nightly")
}

func TestSystemdTimerExactTranslation(t *testing.T) {
	group := &model.Group{Name: "nightly", Schedule: "30 2 * * *"}
	unit := SystemdTimer(group)

	require.Contains(t, unit, "OnCalendar=*-*-* 02:30:00")
	require.Contains(t, unit, "# Cron schedule: 30 2 * * *")
	require.NotContains(t, unit, "Translated approximately")
}

func TestSystemdTimerApproximateTranslation(t *testing.T) {
	group := &model.Group{Name: "weekly", Schedule: "0 3 * * 1"}
	unit := SystemdTimer(group)

	require.Contains(t, unit, "# Cron schedule: 0 3 * * 1")
	require.Contains(t, unit, "Translated approximately")
}

func TestCronToOnCalendar(t *testing.T) {
	cases := []struct {
		schedule string
		want     string
		exact    bool
	}{
		{"* * * * *", "*-*-* *:*:00", true},
		{"*/15 * * * *", "*-*-* *:0/15:00", true},
		{"5 * * * *", "*-*-* *:05:00", true},
		{"30 2 * * *", "*-*-* 02:30:00", true},
		{"0 3 1 * *", "*-*-* *:00:00", false},
		{"bogus", "*-*-* *:00:00", false},
	}
	for _, tc := range cases {
		got, exact := cronToOnCalendar(tc.schedule)
		require.Equal(t, tc.want, got, tc.schedule)
		require.Equal(t, tc.exact, exact, tc.schedule)
	}
}

func TestCronLine(t *testing.T) {
	group := &model.Group{Name: "nightly", Schedule: "0 2 * * *"}
	line := CronLine(group, "/usr/local/bin/taskmon", "/home/op/.config/taskmon")
	require.Equal(t, "0 2 * * * TASKMON_HOME=/home/op/.config/taskmon /usr/local/bin/taskmon run-group nightly\n", line)
}

func TestWriteSystemd(t *testing.T) {
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)
	group := &model.Group{Name: "nightly", Schedule: "0 2 * * *"}

	paths, err := WriteSystemd(settings, group, "/usr/local/bin/taskmon")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, filepath.Join(settings.Home(), "export", "nightly", "taskmon-nightly.service"), paths[0])
	require.Equal(t, filepath.Join(settings.Home(), "export", "nightly", "taskmon-nightly.timer"), paths[1])

	for _, path := range paths {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}
}

func TestWriteSystemdRejectsUnscheduledGroup(t *testing.T) {
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)

	_, err = WriteSystemd(settings, &model.Group{Name: "adhoc"}, "/usr/local/bin/taskmon")
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	require.Equal(t, model.KindExport, kind)
}

func TestWriteCron(t *testing.T) {
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)
	group := &model.Group{Name: "nightly", Schedule: "0 2 * * *"}

	path, err := WriteCron(settings, group, "/usr/local/bin/taskmon")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(settings.Home(), "export", "nightly", "taskmon-nightly.cron"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "run-group nightly")
}
