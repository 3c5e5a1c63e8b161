package utils

import (
	"context"
	"strings"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	executionFlagsContextKeyConstant        = commandContextKey("executionFlags")
	moduleDirectoriesContextKeyConstant     = commandContextKey("moduleDirectories")
)

type commandContextKey string

// ExecutionFlags captures run modifiers derived from CLI flags.
type ExecutionFlags struct {
	Concurrency            int
	ConcurrencySet         bool
	TranscriptDirectory    string
	TranscriptDirectorySet bool
}

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return context.WithValue(ensureContext(parentContext), configurationFilePathContextKeyConstant, configurationFilePath)
}

// WithExecutionFlags attaches execution flag values.
func (accessor CommandContextAccessor) WithExecutionFlags(parentContext context.Context, flags ExecutionFlags) context.Context {
	return context.WithValue(ensureContext(parentContext), executionFlagsContextKeyConstant, flags)
}

// WithModuleDirectories attaches the directories task definitions are loaded from. Blank entries are
// dropped; nothing is attached when no directory remains.
func (accessor CommandContextAccessor) WithModuleDirectories(parentContext context.Context, directories []string) context.Context {
	parentContext = ensureContext(parentContext)
	normalized := make([]string, 0, len(directories))
	for _, directory := range directories {
		if trimmed := strings.TrimSpace(directory); len(trimmed) > 0 {
			normalized = append(normalized, trimmed)
		}
	}
	if len(normalized) == 0 {
		return parentContext
	}
	return context.WithValue(parentContext, moduleDirectoriesContextKeyConstant, normalized)
}

// ConfigurationFilePath extracts the configuration file path.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	return contextValue[string](executionContext, configurationFilePathContextKeyConstant)
}

// ExecutionFlags extracts execution flag values.
func (accessor CommandContextAccessor) ExecutionFlags(executionContext context.Context) (ExecutionFlags, bool) {
	return contextValue[ExecutionFlags](executionContext, executionFlagsContextKeyConstant)
}

// ModuleDirectories extracts the task definition directories.
func (accessor CommandContextAccessor) ModuleDirectories(executionContext context.Context) ([]string, bool) {
	directories, available := contextValue[[]string](executionContext, moduleDirectoriesContextKeyConstant)
	if !available {
		return nil, false
	}
	return append([]string(nil), directories...), true
}

func ensureContext(parentContext context.Context) context.Context {
	if parentContext == nil {
		return context.Background()
	}
	return parentContext
}

func contextValue[Value any](executionContext context.Context, key commandContextKey) (Value, bool) {
	var zero Value
	if executionContext == nil {
		return zero, false
	}
	value, available := executionContext.Value(key).(Value)
	if !available {
		return zero, false
	}
	return value, true
}
