package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/taskmon/internal/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks and their last run status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTasks()
	},
}

var listGroupsCmd = &cobra.Command{
	Use:   "list-groups",
	Short: "List all groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listGroups()
	},
}

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List groups with a schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSchedules()
	},
}

func registerListCommands(root *cobra.Command) {
	root.AddCommand(listCmd)
	root.AddCommand(listGroupsCmd)
	root.AddCommand(schedulesCmd)
}

func listTasks() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	if len(catalog.Tasks) == 0 {
		fmt.Println("No tasks defined")
		return nil
	}
	for _, task := range catalog.Tasks {
		status := task.LastStatus
		if status == "" {
			status = model.StatusNoLogs
		}
		if task.LastRun != "" {
			fmt.Printf("%s: %s (%s) - %s\n", task.Name, status, task.LastRun, task.Description)
		} else {
			fmt.Printf("%s: %s - %s\n", task.Name, status, task.Description)
		}
	}
	return nil
}

func listGroups() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	if len(catalog.Groups) == 0 {
		fmt.Println("No groups defined")
		return nil
	}
	for _, group := range catalog.Groups {
		fmt.Printf("%s (%s, %d tasks)", group.Name, group.Mode(), len(group.Tasks))
		if group.Description != "" {
			fmt.Printf(" - %s", group.Description)
		}
		fmt.Println()
		for _, member := range group.Tasks {
			fmt.Printf("  - %s\n", member)
		}
	}
	return nil
}

func listSchedules() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	catalog, err := a.catalog()
	if err != nil {
		return err
	}

	found := false
	for _, group := range catalog.Groups {
		if group.Schedule == "" {
			continue
		}
		found = true
		fmt.Printf("%s: %s\n", group.Name, group.Schedule)
	}
	if !found {
		fmt.Println("No scheduled groups")
	}
	return nil
}
