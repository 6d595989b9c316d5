package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings, defaults included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting by dot-notation key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getConfig(args[0])
	},
}

func registerConfigCommand(root *cobra.Command) {
	root.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
}

func showConfig() error {
	a, err := newApp()
	if err != nil {
		return err
	}

	fmt.Printf("# config home: %s\n", a.settings.Home())
	out, err := yaml.Marshal(a.settings.All())
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func getConfig(key string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	value := a.settings.Get(key)
	if value == nil {
		return fmt.Errorf("setting %q not found", key)
	}
	fmt.Printf("%v\n", value)
	return nil
}
