package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant            = "Running %s"
	startedInDirectoryMessageTemplateConstant = "Running %s (in %s)"
	succeededMessageTemplateConstant          = "Finished %s (pid %d)"
	failedMessageTemplateConstant             = "Failed %s (exit code %d)"
	failedWithDetailMessageTemplateConstant   = "Failed %s (exit code %d: %s)"
	executionFailedMessageTemplateConstant    = "Unable to run %s: %v"
	canceledMessageTemplateConstant           = "Canceled %s"
)

// CommandMessageFormatter renders human-readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	if len(command.WorkingDirectory) > 0 {
		return fmt.Sprintf(startedInDirectoryMessageTemplateConstant, command.Line, command.WorkingDirectory)
	}
	return fmt.Sprintf(startedMessageTemplateConstant, command.Line)
}

// BuildSuccessMessage describes a command that exited with zero.
func (CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, record ExecutionRecord) string {
	return fmt.Sprintf(succeededMessageTemplateConstant, command.Line, record.ProcessID)
}

// BuildFailureMessage describes a non-zero exit with the first line of diagnostic output.
func (CommandMessageFormatter) BuildFailureMessage(command ShellCommand, record ExecutionRecord) string {
	detail := firstLine(record.StandardError())
	if len(detail) == 0 {
		detail = firstLine(record.StandardOutput())
	}
	if len(detail) == 0 {
		return fmt.Sprintf(failedMessageTemplateConstant, command.Line, record.ExitCode)
	}
	return fmt.Sprintf(failedWithDetailMessageTemplateConstant, command.Line, record.ExitCode, detail)
}

// BuildExecutionFailureMessage describes a command that could not be run.
func (CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return fmt.Sprintf(executionFailedMessageTemplateConstant, command.Line, failure)
}

// BuildCanceledMessage describes a command killed by cancellation.
func (CommandMessageFormatter) BuildCanceledMessage(command ShellCommand) string {
	return fmt.Sprintf(canceledMessageTemplateConstant, command.Line)
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}
