package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sourceplane/taskmon/internal/export"
	"github.com/sourceplane/taskmon/internal/model"
)

var exportSystemdCmd = &cobra.Command{
	Use:   "export-systemd <group>",
	Short: "Generate systemd service and timer units for a scheduled group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportSystemd(args[0])
	},
}

var exportCronCmd = &cobra.Command{
	Use:   "export-cron <group>",
	Short: "Generate a crontab entry for a scheduled group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportCron(args[0])
	},
}

func registerExportCommands(root *cobra.Command) {
	root.AddCommand(exportSystemdCmd)
	root.AddCommand(exportCronCmd)
}

func resolveExportGroup(a *app, name string) (*model.Group, error) {
	catalog, err := a.catalog()
	if err != nil {
		return nil, err
	}
	group := catalog.Group(name)
	if group == nil {
		return nil, model.NewGroupNotFound(name)
	}
	return group, nil
}

func exportSystemd(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	group, err := resolveExportGroup(a, name)
	if err != nil {
		return err
	}
	execPath, err := os.Executable()
	if err != nil {
		return model.NewExportError("failed to resolve executable path: %v", err)
	}

	files, err := export.WriteSystemd(a.settings, group, execPath)
	if err != nil {
		return err
	}
	fmt.Println("✓ Generated systemd units:")
	for _, file := range files {
		fmt.Printf("  %s\n", file)
	}
	fmt.Printf("Install with:\n  sudo cp %s/* /etc/systemd/system/\n  sudo systemctl enable --now taskmon-%s.timer\n",
		a.settings.ResolvePath("export/"+name), name)
	return nil
}

func exportCron(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	group, err := resolveExportGroup(a, name)
	if err != nil {
		return err
	}
	execPath, err := os.Executable()
	if err != nil {
		return model.NewExportError("failed to resolve executable path: %v", err)
	}

	path, err := export.WriteCron(a.settings, group, execPath)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Generated crontab entry: %s\n", path)
	fmt.Printf("Install with:\n  crontab -l | cat - %s | crontab -\n", path)
	return nil
}
