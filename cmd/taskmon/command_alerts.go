package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	alertsTask     string
	alertsSeverity string
	alertsDays     int
	alertsSummary  bool

	pruneMaxDays    int
	pruneMaxEntries int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show triggered alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsSummary {
			return showAlertSummary()
		}
		return listAlerts()
	},
}

var pruneAlertsCmd = &cobra.Command{
	Use:   "prune-alerts <task>",
	Short: "Apply the alert retention policy to a task's journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pruneAlerts(args[0])
	},
}

func registerAlertCommands(root *cobra.Command) {
	root.AddCommand(alertsCmd)
	root.AddCommand(pruneAlertsCmd)

	alertsCmd.Flags().StringVar(&alertsTask, "task", "", "only alerts for this task")
	alertsCmd.Flags().StringVar(&alertsSeverity, "severity", "", "only alerts with this severity (info, warning, critical)")
	alertsCmd.Flags().IntVar(&alertsDays, "days", 0, "only alerts from the last N days")
	alertsCmd.Flags().BoolVar(&alertsSummary, "summary", false, "show aggregate counts instead of individual alerts")

	pruneAlertsCmd.Flags().IntVar(&pruneMaxDays, "max-days", 0, "keep alerts from the last N days (default: alerts.retention.max_days)")
	pruneAlertsCmd.Flags().IntVar(&pruneMaxEntries, "max-entries", 0, "keep at most N alerts (default: alerts.retention.max_entries)")
}

func listAlerts() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	alerts, err := a.alerts.Load(alertsTask, alertsSeverity, alertsDays)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts found")
		return nil
	}
	for _, alert := range alerts {
		fmt.Printf("%s  [%s]  %s: %s\n", alert.Timestamp, alert.Severity, alert.TaskName, alert.Message)
	}
	return nil
}

func showAlertSummary() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	summary, err := a.alerts.GetSummary()
	if err != nil {
		return err
	}

	fmt.Printf("Total alerts: %d\n", summary.Total)
	if summary.Total == 0 {
		return nil
	}

	fmt.Println("By severity:")
	for _, severity := range sortedKeys(summary.BySeverity) {
		fmt.Printf("  %s: %d\n", severity, summary.BySeverity[severity])
	}
	fmt.Println("By task:")
	for _, task := range sortedKeys(summary.ByTask) {
		fmt.Printf("  %s: %d\n", task, summary.ByTask[task])
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pruneAlerts(task string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	maxDays := pruneMaxDays
	if maxDays == 0 {
		maxDays = a.settings.GetInt("alerts.retention.max_days")
	}
	maxEntries := pruneMaxEntries
	if maxEntries == 0 {
		maxEntries = a.settings.GetInt("alerts.retention.max_entries")
	}

	// Optional per-severity day overrides, e.g.
	// alerts.retention.per_severity.critical: 90
	perSeverity := make(map[string]int)
	if raw, ok := a.settings.Get("alerts.retention.per_severity").(map[string]interface{}); ok {
		for severity, v := range raw {
			if days, ok := v.(int); ok {
				perSeverity[severity] = days
			}
		}
	}

	if err := a.alerts.Prune(task, maxDays, maxEntries, perSeverity); err != nil {
		return err
	}
	fmt.Printf("Pruned alerts for %s (keeping %d days, max %d entries)\n", task, maxDays, maxEntries)
	return nil
}
