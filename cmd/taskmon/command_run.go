package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourceplane/taskmon/internal/executor"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

var (
	runGroupSerial   bool
	runGroupParallel bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(args[0])
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every task in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAll()
	},
}

var runGroupCmd = &cobra.Command{
	Use:   "run-group <group>",
	Short: "Run a group of tasks",
	Long:  "Run every task in a group, serially in list order or in a bounded parallel pool depending on the group's execution mode.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroup(args[0])
	},
}

func registerRunCommands(root *cobra.Command) {
	root.AddCommand(runCmd)
	root.AddCommand(runAllCmd)
	root.AddCommand(runGroupCmd)

	runGroupCmd.Flags().BoolVar(&runGroupSerial, "serial", false, "force serial execution regardless of the group's mode")
	runGroupCmd.Flags().BoolVar(&runGroupParallel, "parallel", false, "force parallel execution regardless of the group's mode")
}

func runTask(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	ok, err := a.executor().RunTask(name, catalog)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %q failed", name)
	}
	return nil
}

func runAll() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	names := catalog.TaskNames()
	if len(names) == 0 {
		fmt.Println("No tasks defined")
		return nil
	}

	result := a.executor().RunGroupSerial(names, catalog, false)
	fmt.Printf("\nRan %d tasks: %d succeeded, %d failed\n", result.Total, result.Successful, result.Failed())
	if result.Failed() > 0 {
		return fmt.Errorf("%d of %d tasks failed", result.Failed(), result.Total)
	}
	return nil
}

func runGroup(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	group := catalog.Group(name)
	if group == nil {
		return model.NewGroupNotFound(name)
	}
	for _, member := range group.Tasks {
		if catalog.Task(member) == nil {
			return model.NewConfigurationError("group %q references unknown task %q", name, member)
		}
	}

	mode := group.Mode()
	if runGroupSerial {
		mode = model.ExecutionSerial
	}
	if runGroupParallel {
		mode = model.ExecutionParallel
	}

	fmt.Printf("Running group %s (%s)...\n", name, mode)

	exec := a.executor()
	var result executor.GroupResult
	if mode == model.ExecutionParallel {
		result = exec.RunGroupParallel(group.Tasks, catalog)
	} else {
		result = exec.RunGroupSerial(group.Tasks, catalog, group.StopOnError)
	}

	status := groupStatus(result)
	fmt.Printf("\nGroup %s %s: %d/%d tasks succeeded in %.1fs\n",
		name, status, result.Successful, result.Total, result.Duration.Seconds())

	if source := catalog.GroupSources[name]; source != "" {
		lastRun := timestamp.Format(time.Now(), a.settings.TimestampLayout())
		if err := a.state.SaveGroupState(name, source, lastRun, status,
			result.Duration.Seconds(), result.Total, result.Successful); err != nil {
			return err
		}
	}

	if result.Failed() > 0 {
		return fmt.Errorf("group %q: %d of %d tasks failed", name, result.Failed(), result.Total)
	}
	return nil
}

// groupStatus classifies an aggregate: success when everything passed,
// failed when nothing did, partial otherwise.
func groupStatus(result executor.GroupResult) string {
	switch {
	case result.Failed() == 0:
		return model.StatusSuccess
	case result.Successful == 0:
		return model.StatusFailed
	default:
		return "partial"
	}
}
