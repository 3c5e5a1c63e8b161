package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taskgraph/internal/utils"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
	"github.com/tyemirov/taskgraph/pkg/taskrunner"
)

const (
	runCommandUseConstant              = "run TARGET... [NAME=VALUE...]"
	runCommandShortDescriptionConstant = "Resolve and run tasks"
	runCommandLongDescriptionConstant  = "run processes its arguments in order: NAME=VALUE assigns a value (or, when NAME is a task with a default input, assigns that input and runs the task) and any other argument runs the named task. Each result is printed as JSON, followed by export lines for the latest short results."
	runCommandExampleConstant          = "taskgraph run greeting person=world\n  taskgraph run wait=2 current_directory --var host=example.com"
	keepGoingFlagNameConstant          = "keep-going"
	keepGoingFlagUsageConstant         = "Run the remaining targets after a failure"
	resultIndentConstant               = "  "
	resultEncodeErrorTemplateConstant  = "unable to encode result of %s: %w"
)

var errTargetsRequired = errors.New("at least one target or NAME=VALUE argument is required")

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	Providers
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:     runCommandUseConstant,
		Short:   runCommandShortDescriptionConstant,
		Long:    runCommandLongDescriptionConstant,
		Example: runCommandExampleConstant,
		RunE:    builder.run,
	}
	flagutils.BindValueFlags(command)
	command.Flags().Bool(keepGoingFlagNameConstant, false, keepGoingFlagUsageConstant)
	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errTargetsRequired
	}

	keepGoing, keepGoingError := command.Flags().GetBool(keepGoingFlagNameConstant)
	if keepGoingError != nil {
		return keepGoingError
	}

	session, sessionError := builder.openSession(command, taskrunner.Options{ContinueOnError: keepGoing})
	if sessionError != nil {
		return sessionError
	}
	values, valuesError := resolveValues(command)
	if valuesError != nil {
		return valuesError
	}
	applyValues(session.runner.Stack(), values)

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	executionContext, stopSignals := signal.NotifyContext(parentContext, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	if session.configuration.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		executionContext, cancelTimeout = context.WithTimeout(executionContext, session.configuration.Timeout)
		defer cancelTimeout()
	}

	outputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	errorWriter := utils.NewFlushingWriter(command.ErrOrStderr())
	logger := resolveLogger(builder.LoggerProvider)
	defer logMetricsSummary(logger, session.gatherer)

	startTime := time.Now()
	outcome := taskrunner.Outcome{}
	var failures []error
	for _, argument := range arguments {
		target := argument
		if name, value, isAssignment := splitAssignment(argument); isAssignment {
			queuedTask, assignError := session.runner.Assign(name, value)
			if assignError != nil {
				return assignError
			}
			if len(queuedTask) == 0 {
				continue
			}
			target = queuedTask
		}

		targetOutcome := session.runner.RunTarget(executionContext, target)
		outcome.Targets = append(outcome.Targets, targetOutcome)
		if targetOutcome.Error != nil {
			failures = append(failures, targetOutcome.Error)
			if !keepGoing || executionContext.Err() != nil {
				break
			}
			continue
		}
		if writeError := writeResult(outputWriter, targetOutcome); writeError != nil {
			return writeError
		}
	}
	outcome.Duration = time.Since(startTime)

	if summary := taskrunner.RenderSummaryLine(outcome); len(summary) > 0 {
		fmt.Fprintln(errorWriter, summary)
	}
	for _, result := range session.dependencies.Cache.LatestResults(session.configuration.MaxExportLength) {
		fmt.Fprintln(outputWriter, taskrunner.RenderExportLine(result))
	}
	return errors.Join(failures...)
}

func writeResult(writer io.Writer, targetOutcome taskrunner.TargetOutcome) error {
	encoded, encodeError := json.MarshalIndent(targetOutcome.Value, "", resultIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(resultEncodeErrorTemplateConstant, targetOutcome.Target, encodeError)
	}
	_, writeError := fmt.Fprintln(writer, string(encoded))
	return writeError
}
