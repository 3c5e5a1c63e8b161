package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tyemirov/taskgraph/internal/results"
	"github.com/tyemirov/taskgraph/internal/valuestack"
)

const (
	runnerDependencyMissingTemplateConstant = "task runner requires %s"
	targetFailedErrorTemplateConstant       = "%s: %w"
)

var errTargetMissing = errors.New("target name cannot be empty")

// Options configures a Runner.
type Options struct {
	// Errors receives the summary line after multi-target runs. Nil disables it.
	Errors io.Writer
	// ContinueOnError runs the remaining targets after a failure and joins every failure.
	ContinueOnError bool
	// MaxExportLength bounds the results reported as exports. Zero selects the cache default.
	MaxExportLength int
	Clock           func() time.Time
}

// TargetOutcome is the result of running one target.
type TargetOutcome struct {
	Target   string
	Value    any
	Cached   bool
	Duration time.Duration
	Error    error
}

// Outcome aggregates a run.
type Outcome struct {
	Targets  []TargetOutcome
	Exports  []results.NamedResult
	Duration time.Duration
	Summary  string
}

// Executor runs targets against known values.
type Executor interface {
	Run(ctx context.Context, targets []string, values map[string]any) (Outcome, error)
}

// Runner resolves and runs targets in order against one value stack. Results of earlier targets are
// visible to later ones.
type Runner struct {
	dependencies DependenciesResult
	stack        *valuestack.Stack
	options      Options
}

// NewRunner builds a runner over assembled dependencies.
func NewRunner(dependencies DependenciesResult, options Options) (*Runner, error) {
	switch {
	case dependencies.Registry == nil:
		return nil, fmt.Errorf(runnerDependencyMissingTemplateConstant, "a registry")
	case dependencies.Resolver == nil:
		return nil, fmt.Errorf(runnerDependencyMissingTemplateConstant, "a resolver")
	case dependencies.Engine == nil:
		return nil, fmt.Errorf(runnerDependencyMissingTemplateConstant, "an engine")
	case dependencies.Cache == nil:
		return nil, fmt.Errorf(runnerDependencyMissingTemplateConstant, "a result cache")
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	return &Runner{
		dependencies: dependencies,
		stack:        valuestack.NewStack(dependencies.Registry),
		options:      options,
	}, nil
}

// Stack exposes the value stack shared by every run.
func (runner *Runner) Stack() *valuestack.Stack {
	return runner.stack
}

// LoadEnvironment records NAME=VALUE pairs whose names the registry knows.
func (runner *Runner) LoadEnvironment(environment []string) {
	runner.stack.LoadEnvironment(environment)
}

// Assign records a command line value. When name is a task with a default input the value is
// assigned to that input instead, and the task name is returned so the caller can run it.
func (runner *Runner) Assign(name string, value any) (string, error) {
	valueName, nameError := valuestack.NewValueName(name)
	if nameError != nil {
		return "", nameError
	}
	if task, found := runner.dependencies.Registry.Get(valueName); found && len(task.DefaultInput()) > 0 {
		runner.stack.SetCommandLineValue(task.DefaultInput(), value)
		return task.Name(), nil
	}
	runner.stack.SetCommandLineValue(valueName, value)
	return "", nil
}

// Run assigns values as command line values, then resolves and runs every target in order.
// Without ContinueOnError the first failure stops the run.
func (runner *Runner) Run(ctx context.Context, targets []string, values map[string]any) (Outcome, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		valueName, nameError := valuestack.NewValueName(name)
		if nameError != nil {
			return Outcome{}, nameError
		}
		runner.stack.SetCommandLineValue(valueName, values[name])
	}

	startTime := runner.options.Clock()
	outcome := Outcome{Targets: make([]TargetOutcome, 0, len(targets))}
	var failures []error
	for _, target := range targets {
		targetOutcome := runner.RunTarget(ctx, target)
		outcome.Targets = append(outcome.Targets, targetOutcome)
		if targetOutcome.Error == nil {
			continue
		}
		failures = append(failures, targetOutcome.Error)
		if !runner.options.ContinueOnError || ctx.Err() != nil {
			break
		}
	}
	outcome.Duration = runner.options.Clock().Sub(startTime)
	outcome.Exports = runner.dependencies.Cache.LatestResults(runner.options.MaxExportLength)
	outcome.Summary = RenderSummaryLine(outcome)
	runner.printSummary(outcome.Summary)

	return outcome, errors.Join(failures...)
}

// RunTarget resolves target against the current stack values and runs the plan. A successful
// result is recorded on the stack under the target name.
func (runner *Runner) RunTarget(ctx context.Context, target string) TargetOutcome {
	trimmedTarget := strings.TrimSpace(target)
	targetOutcome := TargetOutcome{Target: trimmedTarget}
	if len(trimmedTarget) == 0 {
		targetOutcome.Error = errTargetMissing
		return targetOutcome
	}

	startTime := runner.options.Clock()
	plan, resolveError := runner.dependencies.Resolver.Resolve(trimmedTarget, runner.stack.BindingValues())
	if resolveError != nil {
		targetOutcome.Error = fmt.Errorf(targetFailedErrorTemplateConstant, trimmedTarget, resolveError)
		return targetOutcome
	}
	taskOutcome, runError := runner.dependencies.Engine.Run(ctx, plan)
	targetOutcome.Duration = runner.options.Clock().Sub(startTime)
	if runError != nil {
		targetOutcome.Error = fmt.Errorf(targetFailedErrorTemplateConstant, trimmedTarget, runError)
		return targetOutcome
	}
	targetOutcome.Value = taskOutcome.Value
	targetOutcome.Cached = taskOutcome.Cached
	runner.stack.SetResult(trimmedTarget, taskOutcome.Value)
	return targetOutcome
}

func (runner *Runner) printSummary(summary string) {
	if runner.options.Errors == nil || len(strings.TrimSpace(summary)) == 0 {
		return
	}
	fmt.Fprintln(runner.options.Errors, summary)
}
