package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/alert"
	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/executor"
	"github.com/sourceplane/taskmon/internal/loader"
	"github.com/sourceplane/taskmon/internal/logstore"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/notify"
	"github.com/sourceplane/taskmon/internal/runtime"
)

var (
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "taskmon",
	Short:         "Task execution control and monitoring",
	Long:          "taskmon executes declaratively defined shell tasks, captures and rotates their logs, watches output for alert conditions and remembers when everything last ran.",
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "config home directory (default: $TASKMON_HOME or ~/.config/taskmon)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug diagnostics")

	registerRunCommands(rootCmd)
	registerListCommands(rootCmd)
	registerLogCommands(rootCmd)
	registerAlertCommands(rootCmd)
	registerConfigCommand(rootCmd)
	registerExportCommands(rootCmd)
	registerValidateCommand(rootCmd)
}

// app holds the per-invocation wiring: one Settings value object and
// one instance of each component, all sharing the same logger.
type app struct {
	settings *config.Settings
	logger   *zap.Logger
	logs     *logstore.Store
	state    *runtime.Store
	alerts   *alert.Engine
}

func newApp() (*app, error) {
	logger := newLogger()
	settings, err := config.Load(homeDir)
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		logger:   logger,
		logs:     logstore.New(settings, logger),
		state:    runtime.New(settings, logger),
		alerts:   alert.New(settings, logger),
	}, nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (a *app) executor() *executor.Executor {
	return executor.New(a.settings, a.logs, a.state, a.alerts, notify.NewDesktop(a.logger), a.logger, os.Stdout)
}

// catalog loads the definitions and overlays durable runtime state so
// listings reflect the last recorded run.
func (a *app) catalog() (*model.Catalog, error) {
	catalog, err := loader.Load(a.settings, a.logger)
	if err != nil {
		return nil, err
	}
	state, err := a.state.Load()
	if err != nil {
		return nil, err
	}
	runtime.MergeCatalog(catalog, state)
	return catalog, nil
}
