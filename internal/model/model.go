package model

// Task status values persisted in runtime state and shown in listings.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusNoLogs  = "no logs"
)

// Execution modes for groups.
const (
	ExecutionSerial   = "serial"
	ExecutionParallel = "parallel"
)

// Alert severities, least to most urgent.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Log retention policy types.
const (
	LimitCount = "count"
	LimitAge   = "age"
)

// Task is a named shell command with execution policy and optional
// alert rules. Definitions are authored in YAML; LastRun and LastStatus
// are runtime-derived and overwritten after every run.
type Task struct {
	Name        string      `yaml:"name"`
	Command     string      `yaml:"command"`
	Description string      `yaml:"description,omitempty"`
	Timeout     *int        `yaml:"timeout,omitempty"` // seconds, overrides execution.default_timeout
	LogLimit    *LogLimit   `yaml:"log_limit,omitempty"`
	Alerts      []AlertRule `yaml:"alerts,omitempty"`

	LastRun    string `yaml:"last_run,omitempty"`
	LastStatus string `yaml:"last_status,omitempty"`
}

// LogLimit is a per-task log retention policy.
type LogLimit struct {
	Type  string `yaml:"type"` // count or age
	Value int    `yaml:"value"`
}

// Group is an ordered batch of tasks executed together.
type Group struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tasks       []string `yaml:"tasks"`
	Execution   string   `yaml:"execution,omitempty"` // serial (default) or parallel
	StopOnError bool     `yaml:"stop_on_error,omitempty"`
	Schedule    string   `yaml:"schedule,omitempty"` // cron expression, interpreted only by exporters
}

// Mode returns the group's execution mode, defaulting to serial.
func (g *Group) Mode() string {
	if g.Execution == ExecutionParallel {
		return ExecutionParallel
	}
	return ExecutionSerial
}

// AlertRule is a pattern-based trigger evaluated against a task's
// captured output after each run. Notify and OnFailureOnly, when set,
// shadow the global notification policy.
type AlertRule struct {
	Pattern       string `yaml:"pattern"`
	Message       string `yaml:"message,omitempty"`
	Severity      string `yaml:"severity,omitempty"`
	Title         string `yaml:"title,omitempty"`
	Notify        *bool  `yaml:"notify,omitempty"`
	OnFailureOnly *bool  `yaml:"on_failure_only,omitempty"`
}

// Catalog is the in-memory task and group registry produced by the
// loader. TaskSources and GroupSources map names to the definition file
// they came from, used to pick the runtime-state shard to update.
type Catalog struct {
	Tasks  []*Task
	Groups []*Group

	TaskSources  map[string]string
	GroupSources map[string]string
}

// Task looks up a task by name, returning nil when absent.
func (c *Catalog) Task(name string) *Task {
	for _, t := range c.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Group looks up a group by name, returning nil when absent.
func (c *Catalog) Group(name string) *Group {
	for _, g := range c.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// TaskNames returns the names of all tasks in catalog order.
func (c *Catalog) TaskNames() []string {
	names := make([]string, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		names = append(names, t.Name)
	}
	return names
}
