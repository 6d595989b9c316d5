// Package export generates external scheduler units (systemd timers and
// crontab entries) for scheduled groups. Recurring execution is
// delegated entirely to the OS scheduler; taskmon never interprets
// schedules at run time.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/model"
)

// ValidateSchedule checks that a group can be exported: it must carry a
// parseable cron schedule.
func ValidateSchedule(group *model.Group) error {
	if group.Schedule == "" {
		return model.NewExportError("group %q has no schedule defined; add a 'schedule' field with a cron expression", group.Name)
	}
	if _, err := cron.ParseStandard(group.Schedule); err != nil {
		return model.NewExportError("group %q has invalid schedule %q: %v", group.Name, group.Schedule, err)
	}
	return nil
}

// SystemdService renders the oneshot service unit that runs the group.
func SystemdService(group *model.Group, execPath, home string) string {
	description := group.Description
	if description == "" {
		description = group.Name
	}
	return fmt.Sprintf(`[Unit]
Description=taskmon - %s
After=network.target

[Service]
Type=oneshot
Environment=%s=%s
ExecStart=%s run-group %s
StandardOutput=journal
StandardError=journal

[Install]
WantedBy=multi-user.target
`, description, config.HomeEnv, home, execPath, group.Name)
}

// SystemdTimer renders the timer unit. The cron schedule is translated
// to an OnCalendar expression where the mapping is direct; expressions
// the translator can't express fall back to hourly with the original
// schedule kept in a comment for manual editing.
func SystemdTimer(group *model.Group) string {
	onCalendar, exact := cronToOnCalendar(group.Schedule)
	note := ""
	if !exact {
		note = "# Translated approximately; edit OnCalendar to match the cron schedule above.\n"
	}
	return fmt.Sprintf(`[Unit]
Description=Timer for taskmon - %s
Requires=taskmon-%s.service

[Timer]
# Cron schedule: %s
OnCalendar=%s
%sPersistent=true

[Install]
WantedBy=timers.target
`, group.Name, group.Name, group.Schedule, onCalendar, note)
}

// CronLine renders one crontab entry for the group.
func CronLine(group *model.Group, execPath, home string) string {
	return fmt.Sprintf("%s %s=%s %s run-group %s\n",
		group.Schedule, config.HomeEnv, home, execPath, group.Name)
}

// cronToOnCalendar translates the common cron shapes into systemd
// OnCalendar syntax. The second return reports whether the translation
// is exact.
func cronToOnCalendar(schedule string) (string, bool) {
	fields := strings.Fields(schedule)
	if len(fields) != 5 {
		return "*-*-* *:00:00", false
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	// Only day-of-month/month/day-of-week wildcards translate directly.
	if dom != "*" || month != "*" || dow != "*" {
		return "*-*-* *:00:00", false
	}

	m, mOK := atoi(minute)
	h, hOK := atoi(hour)
	switch {
	case minute == "*" && hour == "*":
		return "*-*-* *:*:00", true
	case strings.HasPrefix(minute, "*/") && hour == "*":
		return fmt.Sprintf("*-*-* *:0/%s:00", strings.TrimPrefix(minute, "*/")), true
	case mOK && hour == "*":
		return fmt.Sprintf("*-*-* *:%02d:00", m), true
	case mOK && hOK:
		return fmt.Sprintf("*-*-* %02d:%02d:00", h, m), true
	default:
		return "*-*-* *:00:00", false
	}
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// WriteSystemd writes the service and timer units under the export
// directory for the group, returning the written paths.
func WriteSystemd(settings *config.Settings, group *model.Group, execPath string) ([]string, error) {
	if err := ValidateSchedule(group); err != nil {
		return nil, err
	}

	dir := settings.ResolvePath(filepath.Join("export", group.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewExportError("failed to create export directory: %v", err)
	}

	servicePath := filepath.Join(dir, fmt.Sprintf("taskmon-%s.service", group.Name))
	timerPath := filepath.Join(dir, fmt.Sprintf("taskmon-%s.timer", group.Name))

	if err := os.WriteFile(servicePath, []byte(SystemdService(group, execPath, settings.Home())), 0o644); err != nil {
		return nil, model.NewExportError("failed to write %s: %v", servicePath, err)
	}
	if err := os.WriteFile(timerPath, []byte(SystemdTimer(group)), 0o644); err != nil {
		return nil, model.NewExportError("failed to write %s: %v", timerPath, err)
	}
	return []string{servicePath, timerPath}, nil
}

// WriteCron writes a crontab snippet for the group, returning the path.
func WriteCron(settings *config.Settings, group *model.Group, execPath string) (string, error) {
	if err := ValidateSchedule(group); err != nil {
		return "", err
	}

	dir := settings.ResolvePath(filepath.Join("export", group.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", model.NewExportError("failed to create export directory: %v", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("taskmon-%s.cron", group.Name))
	if err := os.WriteFile(path, []byte(CronLine(group, execPath, settings.Home())), 0o644); err != nil {
		return "", model.NewExportError("failed to write %s: %v", path, err)
	}
	return path, nil
}
