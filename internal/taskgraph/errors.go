package taskgraph

import (
	"errors"
	"fmt"
)

const (
	taskNameMissingMessageConstant         = "task name not provided"
	taskNilMessageConstant                 = "task not provided"
	inputNameMissingMessageConstant        = "task input name cannot be empty"
	missingInputErrorTemplateConstant      = "task %q requires input %q but no value or task provides it"
	notFoundErrorTemplateConstant          = "%q is not a registered task"
	duplicateInputErrorTemplateConstant    = "task %q declares input %q more than once"
	overlappingInputErrorTemplateConstant  = "task %q declares input %q as both mandatory and optional"
	undeclaredDefaultInputTemplateConstant = "task %q default input %q is not a declared input"
	invalidInputNameErrorTemplateConstant  = "task %q input %q must match %s"
	invocationFailedErrorTemplateConstant  = "task %q failed: %v"
)

var (
	// ErrTaskNameMissing indicates a task definition without a name.
	ErrTaskNameMissing = errors.New(taskNameMissingMessageConstant)
	// ErrTaskNotProvided indicates a nil task was passed to the registry.
	ErrTaskNotProvided = errors.New(taskNilMessageConstant)
	// ErrInputNameMissing indicates an empty input name in a task definition.
	ErrInputNameMissing = errors.New(inputNameMissingMessageConstant)
)

// MissingInputError reports an input that could not be bound to a literal or a task.
type MissingInputError struct {
	TaskName  string
	InputName string
}

// Error describes the missing input.
func (missingError MissingInputError) Error() string {
	return fmt.Sprintf(missingInputErrorTemplateConstant, missingError.TaskName, missingError.InputName)
}

// NotFoundError reports a name that is not a registered task. Callers may treat the name as a literal.
type NotFoundError struct {
	Name string
}

// Error describes the unknown name.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Name)
}

// DefinitionError reports an invalid task declaration.
type DefinitionError struct {
	TaskName string
	message  string
}

// Error describes the invalid declaration.
func (definitionError DefinitionError) Error() string {
	return definitionError.message
}

func newDefinitionError(taskName string, template string, arguments ...any) DefinitionError {
	return DefinitionError{TaskName: taskName, message: fmt.Sprintf(template, arguments...)}
}

// InvocationError wraps a failure returned by a task's invokable.
type InvocationError struct {
	TaskName string
	Cause    error
}

// Error describes the failed invocation.
func (invocationError InvocationError) Error() string {
	return fmt.Sprintf(invocationFailedErrorTemplateConstant, invocationError.TaskName, invocationError.Cause)
}

// Unwrap exposes the underlying error.
func (invocationError InvocationError) Unwrap() error {
	return invocationError.Cause
}
