package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/metrics"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandLineMissingMessageConstant         = "shell command line not provided"
	commandStartMessageConstant               = "command execution starting"
	commandSuccessMessageConstant             = "command execution completed"
	commandFailureMessageConstant             = "command returned non-zero status"
	commandRunnerErrorMessageConstant         = "command execution error"
	commandCanceledMessageConstant            = "command execution canceled"
	commandFieldNameConstant                  = "command"
	processIDFieldNameConstant                = "pid"
	workingDirectoryFieldNameConstant         = "working_directory"
	exitCodeFieldNameConstant                 = "exit_code"
	durationFieldNameConstant                 = "duration"
	standardErrorFieldNameConstant            = "stderr"
	failureDetailLineLimitConstant            = 3
	failureDetailSeparatorConstant            = " | "
)

// ShellExecutor runs command lines through a CommandRunner and logs their lifecycle.
type ShellExecutor struct {
	commandRunner        CommandRunner
	logger               *zap.Logger
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	metrics              *metrics.Metrics
	echo                 *ConsoleEcho
}

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the command runner dependency was missing.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
	// ErrCommandLineMissing indicates an empty command line.
	ErrCommandLineMissing = errors.New(commandLineMissingMessageConstant)
)

// CommandFailedError reports a command line that exited with a non-zero code. Records holds every
// line of the script that ran, the failing one last.
type CommandFailedError struct {
	Command ShellCommand
	Record  ExecutionRecord
	Records []ExecutionRecord
}

const commandFailureErrorMessageTemplateConstant = "command %q exited with code %d"

// Error describes the failure with the first lines of its diagnostic output.
func (commandError CommandFailedError) Error() string {
	baseMessage := fmt.Sprintf(commandFailureErrorMessageTemplateConstant, commandError.Command.Line, commandError.Record.ExitCode)

	detail := strings.TrimSpace(commandError.Record.StandardError())
	if len(detail) == 0 {
		detail = strings.TrimSpace(commandError.Record.StandardOutput())
	}
	if len(detail) == 0 {
		return baseMessage
	}
	lines := strings.Split(detail, "\n")
	if len(lines) > failureDetailLineLimitConstant {
		lines = lines[:failureDetailLineLimitConstant]
	}
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) == 0 {
		return baseMessage
	}
	return fmt.Sprintf("%s: %s", baseMessage, strings.Join(normalized, failureDetailSeparatorConstant))
}

// CommandExecutionError wraps failures to start or wait for a command.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

const commandExecutionErrorMessageTemplateConstant = "command %q execution failed: %v"

// Error describes the underlying runner failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorMessageTemplateConstant, executionError.Command.Line, executionError.Cause)
}

// Unwrap exposes the underlying error.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// CommandCanceledError reports a command killed because its context ended.
type CommandCanceledError struct {
	Command ShellCommand
	Record  ExecutionRecord
	Cause   error
}

const commandCanceledErrorMessageTemplateConstant = "command %q canceled: %v"

// Error describes the cancellation.
func (canceledError CommandCanceledError) Error() string {
	return fmt.Sprintf(commandCanceledErrorMessageTemplateConstant, canceledError.Command.Line, canceledError.Cause)
}

// Unwrap exposes the context error.
func (canceledError CommandCanceledError) Unwrap() error {
	return canceledError.Cause
}

// NewShellExecutor builds an executor for the provided runner and logger.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		commandRunner:        commandRunner,
		logger:               logger,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
	}, nil
}

// WithMetrics returns a copy of the executor that counts command outcomes.
func (executor *ShellExecutor) WithMetrics(commandMetrics *metrics.Metrics) *ShellExecutor {
	clone := *executor
	clone.metrics = commandMetrics
	return &clone
}

// WithOutputEcho returns a copy of the executor that prints every command line and its output to
// writer while it runs.
func (executor *ShellExecutor) WithOutputEcho(writer io.Writer) *ShellExecutor {
	clone := *executor
	clone.echo = NewConsoleEcho(writer)
	return &clone
}

// Execute runs one command line. Non-zero exits become CommandFailedError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionRecord, error) {
	command.Line = strings.TrimSpace(command.Line)
	if len(command.Line) == 0 {
		return ExecutionRecord{}, ErrCommandLineMissing
	}

	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildStartedMessage(command))
	} else {
		executor.logger.Info(commandStartMessageConstant,
			zap.String(commandFieldNameConstant, command.Line),
			zap.String(workingDirectoryFieldNameConstant, command.WorkingDirectory),
		)
	}

	if executor.echo != nil {
		command.Observer = CombineObservers(command.Observer, executor.echo)
	}
	record, runnerError := executor.commandRunner.Run(executionContext, command)
	if runnerError != nil {
		executor.metrics.ObserveCommand(false)
		if errors.Is(runnerError, context.Canceled) || errors.Is(runnerError, context.DeadlineExceeded) {
			if executor.humanReadableLogging {
				executor.logger.Warn(executor.messageFormatter.BuildCanceledMessage(command))
			} else {
				executor.logger.Warn(commandCanceledMessageConstant,
					zap.String(commandFieldNameConstant, command.Line),
					zap.Int(processIDFieldNameConstant, record.ProcessID),
				)
			}
			return record, CommandCanceledError{Command: command, Record: record, Cause: runnerError}
		}
		if executor.humanReadableLogging {
			executor.logger.Error(executor.messageFormatter.BuildExecutionFailureMessage(command, runnerError))
		} else {
			executor.logger.Error(commandRunnerErrorMessageConstant,
				zap.String(commandFieldNameConstant, command.Line),
				zap.Error(runnerError),
			)
		}
		return record, CommandExecutionError{Command: command, Cause: runnerError}
	}

	if record.ExitCode != 0 {
		executor.metrics.ObserveCommand(false)
		if executor.humanReadableLogging {
			executor.logger.Warn(executor.messageFormatter.BuildFailureMessage(command, record))
		} else {
			executor.logger.Warn(commandFailureMessageConstant,
				zap.String(commandFieldNameConstant, command.Line),
				zap.Int(processIDFieldNameConstant, record.ProcessID),
				zap.Int(exitCodeFieldNameConstant, record.ExitCode),
				zap.String(standardErrorFieldNameConstant, record.StandardError()),
			)
		}
		return record, CommandFailedError{Command: command, Record: record}
	}

	executor.metrics.ObserveCommand(true)
	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildSuccessMessage(command, record))
	} else {
		executor.logger.Info(commandSuccessMessageConstant,
			zap.String(commandFieldNameConstant, command.Line),
			zap.Int(processIDFieldNameConstant, record.ProcessID),
			zap.Int(exitCodeFieldNameConstant, record.ExitCode),
			zap.Duration(durationFieldNameConstant, record.EndTime.Sub(record.StartTime)),
		)
	}
	return record, nil
}
