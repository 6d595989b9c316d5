package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourceplane/taskmon/internal/logstore"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

var (
	logsHistory  bool
	filterTask   string
	filterStatus string
	filterSince  string
	filterUntil  string
	filterLimit  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <task>",
	Short: "Show the latest log for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showLogs(args[0])
	},
}

var filterLogsCmd = &cobra.Command{
	Use:   "filter-logs",
	Short: "Search execution logs across all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return filterLogs()
	},
}

var clearLogsCmd = &cobra.Command{
	Use:   "clear-logs <task>",
	Short: "Delete all logs for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clearLogs(args[0])
	},
}

var clearAllLogsCmd = &cobra.Command{
	Use:   "clear-all-logs",
	Short: "Delete all logs for all tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return clearAllLogs()
	},
}

func registerLogCommands(root *cobra.Command) {
	root.AddCommand(logsCmd)
	root.AddCommand(filterLogsCmd)
	root.AddCommand(clearLogsCmd)
	root.AddCommand(clearAllLogsCmd)

	logsCmd.Flags().BoolVar(&logsHistory, "history", false, "list all log files instead of showing the latest")

	filterLogsCmd.Flags().StringVar(&filterTask, "task", "", "only logs for this task")
	filterLogsCmd.Flags().StringVar(&filterStatus, "status", "", "only logs with this status (success or failed)")
	filterLogsCmd.Flags().StringVar(&filterSince, "since", "", "only logs at or after this date (YYYY-MM-DD)")
	filterLogsCmd.Flags().StringVar(&filterUntil, "until", "", "only logs at or before this date (YYYY-MM-DD)")
	filterLogsCmd.Flags().IntVar(&filterLimit, "limit", 20, "maximum number of results")
}

func showLogs(task string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if logsHistory {
		history, found := a.logs.History(task)
		if !found {
			fmt.Println("No logs found")
			return nil
		}
		for _, file := range history {
			fmt.Printf("%s  %s\n", file.ModTime.Format(time.DateTime), file.Name)
		}
		return nil
	}

	path, found := a.logs.LatestLog(task)
	if !found {
		fmt.Println("No logs found")
		return nil
	}
	content, err := a.logs.ReadLog(path)
	if err != nil {
		return err
	}
	fmt.Printf("=== %s ===\n%s", path, content)
	return nil
}

func filterLogs() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	opts := logstore.FilterOptions{
		Task:   filterTask,
		Status: filterStatus,
		Limit:  filterLimit,
	}
	if filterSince != "" {
		since, err := parseDay(filterSince, a.settings.TimestampLayout())
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", filterSince, err)
		}
		opts.Since = since
	}
	if filterUntil != "" {
		until, err := parseDay(filterUntil, a.settings.TimestampLayout())
		if err != nil {
			return fmt.Errorf("invalid --until value %q: %w", filterUntil, err)
		}
		// Make the bound inclusive of the whole day.
		opts.Until = until.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	entries, err := a.logs.Filter(opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No matching logs")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%s  %-8s  %s  (exit %d)\n",
			entry.Timestamp.Format(time.DateTime), entry.Status, entry.Path, entry.ReturnCode)
	}
	return nil
}

// parseDay accepts a plain date or a full log timestamp.
func parseDay(value, layout string) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, value, time.Local); err == nil {
		return t, nil
	}
	return timestamp.Parse(value, layout)
}

func clearLogs(task string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	found, err := a.logs.ClearTask(task)
	if err != nil {
		return err
	}
	if found {
		fmt.Printf("Cleared logs for %s\n", task)
	} else {
		fmt.Printf("No logs found for %s\n", task)
	}
	return nil
}

func clearAllLogs() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	found, err := a.logs.ClearAll()
	if err != nil {
		return err
	}
	if found {
		fmt.Println("Cleared all logs")
	} else {
		fmt.Println("No logs directory found")
	}
	return nil
}
