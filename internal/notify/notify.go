// Package notify delivers best-effort desktop notifications on macOS
// (osascript) and Linux (notify-send), degrading to a no-op elsewhere.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/config"
)

// Urgency levels understood by notify-send; macOS ignores them.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

const sendTimeout = 5 * time.Second

// Notifier is the notification capability consumed by the executor.
// Delivery is best-effort: implementations report success with a bool
// and never return an error.
type Notifier interface {
	Notify(title, message string, urgency Urgency) bool
}

// Desktop sends native desktop notifications for the current platform.
type Desktop struct {
	log *zap.Logger
}

// NewDesktop creates a platform desktop notifier.
func NewDesktop(logger *zap.Logger) *Desktop {
	return &Desktop{log: logger}
}

// Notify sends one notification, returning false when the platform has
// no supported notification mechanism or delivery fails.
func (d *Desktop) Notify(title, message string, urgency Urgency) bool {
	switch runtime.GOOS {
	case "darwin":
		return d.sendMacOS(title, message)
	case "linux":
		return d.sendLinux(title, message, urgency)
	default:
		d.log.Warn("notifications not supported on this platform", zap.String("os", runtime.GOOS))
		return false
	}
}

func (d *Desktop) sendMacOS(title, message string) bool {
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, "osascript", "-e", script).Run(); err != nil {
		d.log.Warn("osascript notification failed", zap.Error(err))
		return false
	}
	return true
}

func (d *Desktop) sendLinux(title, message string, urgency Urgency) bool {
	if _, err := exec.LookPath("notify-send"); err != nil {
		d.log.Warn("notify-send not found; install libnotify-bin or a notification daemon")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, "notify-send", "-u", string(urgency), title, message).Run(); err != nil {
		d.log.Warn("notify-send failed", zap.Error(err))
		return false
	}
	return true
}

// FormatSummary renders a batch result for a notification body. Failed
// names are included only when there are few enough to stay readable.
func FormatSummary(total, passed, failed int, context string, failedNames []string) string {
	if failed == 0 {
		return fmt.Sprintf("All %s ran successfully (%d/%d)", context, total, total)
	}

	message := fmt.Sprintf("Ran %d %s: %d passed, %d failed", total, context, passed, failed)
	if len(failedNames) > 0 && len(failedNames) <= 3 {
		message += "\nFailed: " + strings.Join(failedNames, ", ")
	}
	return message
}

// ExecutionResult sends the single group-level notification for a batch
// run, honoring the group_notifications settings (with the legacy
// notifications.* keys as fallback). Returns false when policy
// suppressed the notification or delivery failed.
func ExecutionResult(settings *config.Settings, n Notifier, total, passed, failed int, context string, failedNames []string) bool {
	enabled := settings.GetBoolOr("group_notifications.enabled", "notifications.enabled")
	onFailureOnly := settings.GetBoolOr("group_notifications.on_failure_only", "notifications.on_failure_only")
	showFailedNames := settings.GetBoolOr("group_notifications.show_failed_names", "notifications.show_failed_names")

	if !enabled {
		return false
	}
	if onFailureOnly && failed == 0 {
		return false
	}

	urgency := UrgencyNormal
	title := "taskmon - Success"
	if failed > 0 {
		urgency = UrgencyCritical
		title = "taskmon - Failures Detected"
	}

	names := failedNames
	if !showFailedNames {
		names = nil
	}
	return n.Notify(title, FormatSummary(total, passed, failed, context, names), urgency)
}
