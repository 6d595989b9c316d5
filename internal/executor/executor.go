// Package executor runs tasks as child processes and composes them into
// serial or bounded-parallel group runs.
//
// Commands are executed through the shell to support pipes, redirection
// and complex one-liners, with the full permissions of the invoking
// user. Definition files must be trusted.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/taskmon/internal/alert"
	"github.com/sourceplane/taskmon/internal/config"
	"github.com/sourceplane/taskmon/internal/logstore"
	"github.com/sourceplane/taskmon/internal/model"
	"github.com/sourceplane/taskmon/internal/notify"
	"github.com/sourceplane/taskmon/internal/runtime"
	"github.com/sourceplane/taskmon/internal/timestamp"
)

// Executor orchestrates single task runs and group runs. All
// collaborators are injected; there is no shared global state.
type Executor struct {
	settings *config.Settings
	logs     *logstore.Store
	state    *runtime.Store
	alerts   *alert.Engine
	notifier notify.Notifier
	log      *zap.Logger
	out      io.Writer
}

// New wires an executor from its collaborators. out receives
// operator-facing progress lines.
func New(settings *config.Settings, logs *logstore.Store, state *runtime.Store, alerts *alert.Engine, notifier notify.Notifier, logger *zap.Logger, out io.Writer) *Executor {
	return &Executor{
		settings: settings,
		logs:     logs,
		state:    state,
		alerts:   alerts,
		notifier: notifier,
		log:      logger,
		out:      out,
	}
}

// GroupResult aggregates one group run for the caller.
type GroupResult struct {
	Total       int
	Successful  int
	FailedNames []string
	Duration    time.Duration
}

// Failed returns the number of failed tasks.
func (r GroupResult) Failed() int {
	return len(r.FailedNames)
}

// RunTask executes one task: invoke the command via the shell, capture
// output, write the execution log, evaluate alert rules, rotate logs,
// persist runtime state and update the in-memory task. It returns true
// iff the command exited zero. A non-zero exit is a normal failed run,
// not an error; errors are reserved for lookup failures, timeouts and
// invocation faults.
func (e *Executor) RunTask(name string, catalog *model.Catalog) (bool, error) {
	task := catalog.Task(name)
	if task == nil {
		return false, model.NewTaskNotFound(name)
	}

	if err := e.logs.EnsureTaskDir(name); err != nil {
		return false, model.NewExecutionError(name, err)
	}

	layout := e.settings.TimestampLayout()
	ts := timestamp.Format(time.Now(), layout)
	logPath := e.logs.LogPath(name, ts)

	limit := e.resolveTimeout(task)
	stdout, stderr, returnCode, err := e.invoke(task.Command, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, model.NewTimeout(name, limit)
		}
		return false, model.NewExecutionError(name, err)
	}

	if err := e.logs.WriteExecutionLog(logPath, task.Command, returnCode, stdout, stderr); err != nil {
		return false, model.NewExecutionError(name, err)
	}

	failed := returnCode != 0
	combined := stdout + "\n" + stderr
	for _, a := range e.alerts.CheckPatterns(name, task, combined) {
		if err := e.alerts.Save(name, a); err != nil {
			e.log.Warn("failed to journal alert", zap.String("task", name), zap.Error(err))
		}
		if e.alerts.ShouldNotify(a, failed) {
			title := a.Title
			if title == "" {
				title = "Alert: " + name
			}
			urgency := notify.UrgencyNormal
			if a.Severity == model.SeverityCritical {
				urgency = notify.UrgencyCritical
			}
			e.notifier.Notify(title, a.Message, urgency)
		}
		fmt.Fprintf(e.out, "  [%s] %s\n", strings.ToUpper(a.Severity), a.Message)
	}

	e.logs.Rotate(task)

	status := model.StatusSuccess
	if failed {
		status = model.StatusFailed
	}
	fmt.Fprintf(e.out, "Task %s %s. Log: %s\n", name, status, logPath)

	if source := catalog.TaskSources[name]; source != "" {
		if err := e.state.SaveTaskState(name, source, ts, status); err != nil {
			return false, model.NewExecutionError(name, err)
		}
	}

	task.LastRun = ts
	task.LastStatus = status

	return !failed, nil
}

// invoke runs the command under sh -c, capturing both streams. A limit
// of zero means no deadline.
func (e *Executor) invoke(command string, limit time.Duration) (stdout, stderr string, returnCode int, err error) {
	ctx := context.Background()
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, 0, context.DeadlineExceeded
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// ExitCode is -1 when the process was killed by a signal;
			// that sentinel is recorded in the log as-is.
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		return stdout, stderr, 0, runErr
	}
	return stdout, stderr, 0, nil
}

// resolveTimeout applies the task override over the configured default.
// Zero disables the deadline entirely; any other value below the
// enforced floor is clamped up with a warning, so a misconfigured tiny
// timeout can't kill every run instantly.
func (e *Executor) resolveTimeout(task *model.Task) time.Duration {
	seconds := e.settings.GetInt("execution.default_timeout")
	if task.Timeout != nil {
		seconds = *task.Timeout
	}
	if seconds == 0 {
		return 0
	}

	min := e.settings.GetInt("execution.min_timeout")
	if min < 1 {
		min = 1
	}
	if seconds < min {
		fmt.Fprintf(e.out, "Warning: timeout %ds is below minimum %ds, using minimum\n", seconds, min)
		seconds = min
	}
	return time.Duration(seconds) * time.Second
}

// RunGroupSerial executes tasks strictly in list order. With
// stopOnError, the first failure halts the run and later tasks are
// never attempted; otherwise every task is attempted. Per-task errors
// are converted to failures and never propagate. Exactly one
// group-level notification summarizes the batch.
func (e *Executor) RunGroupSerial(names []string, catalog *model.Catalog, stopOnError bool) GroupResult {
	start := time.Now()
	result := GroupResult{Total: len(names)}

	for _, name := range names {
		fmt.Fprintf(e.out, "Running %s...\n", name)
		ok, err := e.RunTask(name, catalog)
		if err != nil {
			fmt.Fprintf(e.out, "Error: %v\n", err)
		}
		if ok {
			result.Successful++
			continue
		}
		result.FailedNames = append(result.FailedNames, name)
		if stopOnError {
			fmt.Fprintf(e.out, "Task %s failed. Stopping group execution (stop_on_error=true)\n", name)
			break
		}
	}

	result.Duration = time.Since(start)
	notify.ExecutionResult(e.settings, e.notifier,
		result.Total, result.Successful, result.Failed(), "tasks", result.FailedNames)
	return result
}

// RunGroupParallel submits every task to a bounded worker pool and
// collects results as workers complete. There is no cross-task ordering
// guarantee; tasks must be independent. The aggregate and single
// notification match the serial path.
func (e *Executor) RunGroupParallel(names []string, catalog *model.Catalog) GroupResult {
	start := time.Now()

	workers := e.settings.MaxParallelWorkers()
	if workers < 1 {
		workers = 1
	}

	type taskOutcome struct {
		name    string
		success bool
	}

	sem := make(chan struct{}, workers)
	outcomes := make(chan taskOutcome, len(names))
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fmt.Fprintf(e.out, "Running %s...\n", name)
			ok, err := e.RunTask(name, catalog)
			if err != nil {
				fmt.Fprintf(e.out, "Error: %v\n", err)
			}
			outcomes <- taskOutcome{name: name, success: ok}
		}(name)
	}
	wg.Wait()
	close(outcomes)

	result := GroupResult{Total: len(names)}
	for outcome := range outcomes {
		if outcome.success {
			result.Successful++
		} else {
			result.FailedNames = append(result.FailedNames, outcome.name)
		}
	}
	result.Duration = time.Since(start)

	fmt.Fprintf(e.out, "\nParallel execution summary:\n")
	fmt.Fprintf(e.out, "  Completed: %d/%d\n", result.Total, len(names))
	fmt.Fprintf(e.out, "  Successful: %d/%d\n", result.Successful, result.Total)
	if result.Failed() > 0 {
		fmt.Fprintf(e.out, "  Failed: %s\n", strings.Join(result.FailedNames, ", "))
	}

	notify.ExecutionResult(e.settings, e.notifier,
		result.Total, result.Successful, result.Failed(), "tasks", result.FailedNames)
	return result
}
