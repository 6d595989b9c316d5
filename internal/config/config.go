package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sourceplane/taskmon/internal/model"
)

// ConfigFile is the settings file path relative to the config home.
const ConfigFile = "config/taskmon.yaml"

// HomeEnv overrides the config home directory when set.
const HomeEnv = "TASKMON_HOME"

// Settings is the per-invocation configuration value object. It is
// constructed once in main and passed into every component; there is no
// ambient global lookup.
type Settings struct {
	home string
	v    *viper.Viper
}

// Load resolves the config home and reads the global settings file if
// one exists. homeOverride takes priority over every other location and
// is primarily used by tests and the --home flag.
func Load(homeOverride string) (*Settings, error) {
	home := resolveHome(homeOverride)

	v := viper.New()
	setDefaults(v)

	cfgPath := filepath.Join(home, filepath.FromSlash(ConfigFile))
	if _, err := os.Stat(cfgPath); err == nil {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, model.NewConfigurationError("failed to read %s: %v", cfgPath, err)
		}
	}

	return &Settings{home: home, v: v}, nil
}

// resolveHome finds the taskmon configuration directory.
// Priority order: explicit override, TASKMON_HOME, XDG_CONFIG_HOME,
// ~/.config/taskmon (if it holds a config), the current directory (if a
// local config exists), then ~/.config/taskmon as the final fallback.
func resolveHome(override string) string {
	if override != "" {
		return expandHome(override)
	}

	if env := os.Getenv(HomeEnv); env != "" {
		return expandHome(env)
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(expandHome(xdg), "taskmon")
	}

	userConfig := expandHome("~/.config/taskmon")
	if hasConfig(userConfig) {
		return userConfig
	}

	if cwd, err := os.Getwd(); err == nil && hasConfig(cwd) {
		return cwd
	}

	return userConfig
}

func hasConfig(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ConfigFile)))
	return err == nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.log_dir", "logs")
	v.SetDefault("paths.tasks_file", "tasks")
	v.SetDefault("paths.groups_file", "groups")
	v.SetDefault("paths.catalog_tasks_file", "config/catalog/tasks")
	v.SetDefault("paths.catalog_groups_file", "config/catalog/groups")
	v.SetDefault("include_catalog", true)

	v.SetDefault("execution.default_timeout", 300)
	v.SetDefault("execution.min_timeout", 1)
	v.SetDefault("execution.max_parallel_workers", 5)
	v.SetDefault("execution.capture_stdout", true)
	v.SetDefault("execution.capture_stderr", true)

	v.SetDefault("logging.include_command", true)
	v.SetDefault("logging.include_return_code", true)
	v.SetDefault("logging.timestamp_format", "20060102_150405.000000")
	v.SetDefault("logging.max_log_size", 10*1024*1024)

	v.SetDefault("default_log_limit.type", model.LimitCount)
	v.SetDefault("default_log_limit.value", 10)

	v.SetDefault("alerts.notifications.enabled", true)
	v.SetDefault("alerts.notifications.on_failure_only", false)
	v.SetDefault("alerts.retention.max_days", 30)
	v.SetDefault("alerts.retention.max_entries", 1000)

	v.SetDefault("group_notifications.enabled", true)
	v.SetDefault("group_notifications.on_failure_only", true)
	v.SetDefault("group_notifications.show_failed_names", true)
}

// Home returns the resolved config home directory.
func (s *Settings) Home() string {
	return s.home
}

// ResolvePath resolves a configured path against the config home unless
// it is already absolute. A leading ~ is expanded.
func (s *Settings) ResolvePath(path string) string {
	path = expandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.home, path)
}

// Get returns the raw value for a dot-notation key, or nil when unset.
func (s *Settings) Get(key string) interface{} {
	return s.v.Get(key)
}

// GetString returns the string value for a dot-notation key.
func (s *Settings) GetString(key string) string {
	return s.v.GetString(key)
}

// GetInt returns the integer value for a dot-notation key.
func (s *Settings) GetInt(key string) int {
	return s.v.GetInt(key)
}

// GetBool returns the boolean value for a dot-notation key.
func (s *Settings) GetBool(key string) bool {
	return s.v.GetBool(key)
}

// GetBoolOr returns the boolean at key, falling back to a legacy key
// when the primary one is not set in the config file.
func (s *Settings) GetBoolOr(key, fallback string) bool {
	if s.v.InConfig(key) {
		return s.v.GetBool(key)
	}
	if s.v.InConfig(fallback) {
		return s.v.GetBool(fallback)
	}
	return s.v.GetBool(key)
}

// Set overrides a single value for this invocation. Used by tests and
// command-line policy flags; never written back to disk.
func (s *Settings) Set(key string, value interface{}) {
	s.v.Set(key, value)
}

// All returns the effective settings map, defaults included.
func (s *Settings) All() map[string]interface{} {
	return s.v.AllSettings()
}

// LogDir returns the resolved root log directory.
func (s *Settings) LogDir() string {
	return s.ResolvePath(s.GetString("paths.log_dir"))
}

// RuntimeDir returns the resolved runtime-state directory for the given
// kind ("tasks" or "groups").
func (s *Settings) RuntimeDir(kind string) string {
	return s.ResolvePath(filepath.Join("runtime", kind))
}

// TimestampLayout returns the Go layout used for log filenames and all
// persisted timestamps. Lexicographic order of formatted values must
// match chronological order.
func (s *Settings) TimestampLayout() string {
	return s.GetString("logging.timestamp_format")
}

// DefaultLogLimit returns the global log retention policy applied to
// tasks without their own log_limit.
func (s *Settings) DefaultLogLimit() model.LogLimit {
	return model.LogLimit{
		Type:  s.GetString("default_log_limit.type"),
		Value: s.GetInt("default_log_limit.value"),
	}
}

// MaxParallelWorkers returns the configured parallel pool width.
func (s *Settings) MaxParallelWorkers() int {
	return s.GetInt("execution.max_parallel_workers")
}

func (s *Settings) String() string {
	return fmt.Sprintf("Settings(home=%s)", s.home)
}
