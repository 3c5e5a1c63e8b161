package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	// ModuleDirectoryFlagName exposes the shared task definition directory flag name.
	ModuleDirectoryFlagName = "modules"
	// ModuleDirectoryFlagUsage describes the task definition directory flag purpose.
	ModuleDirectoryFlagUsage = "Directories containing task definition files (repeatable; replaces configured directories)"
	// ConcurrencyFlagName exposes the shared concurrency flag name.
	ConcurrencyFlagName = "jobs"
	// ConcurrencyFlagShorthand provides the shorthand for the concurrency flag.
	ConcurrencyFlagShorthand = "j"
	// ConcurrencyFlagUsage describes the concurrency flag purpose.
	ConcurrencyFlagUsage = "Maximum number of sibling invocations run at once"
	// TranscriptDirectoryFlagName exposes the shared transcript directory flag name.
	TranscriptDirectoryFlagName = "log-directory"
	// TranscriptDirectoryFlagUsage describes the transcript directory flag purpose.
	TranscriptDirectoryFlagUsage = "Directory receiving one transcript file per shell task run (empty disables transcripts)"
	// VariableFlagName exposes the value assignment flag name.
	VariableFlagName = "var"
	// VariableFlagUsage describes the value assignment flag purpose.
	VariableFlagUsage = "Value assignment NAME=VALUE (repeatable)"
	// VariableFileFlagName exposes the value file flag name.
	VariableFileFlagName = "var-file"
	// VariableFileFlagUsage describes the value file flag purpose.
	VariableFileFlagUsage = "YAML or JSON file of NAME: VALUE assignments (repeatable)"

	choiceUsageTemplate = "%s (one of: %s; default %s)"
)

// ModuleDirectoryFlagDefinition captures configuration for task definition directory flags.
type ModuleDirectoryFlagDefinition struct {
	Name       string
	Usage      string
	Enabled    bool
	Persistent bool
}

// ModuleDirectoryFlagValues stores task definition directory flag values.
type ModuleDirectoryFlagValues struct {
	Directories []string
}

// BindModuleDirectoryFlags attaches the task definition directory flag to the provided command.
func BindModuleDirectoryFlags(command *cobra.Command, defaults ModuleDirectoryFlagValues, definition ModuleDirectoryFlagDefinition) *ModuleDirectoryFlagValues {
	values := ModuleDirectoryFlagValues{Directories: append([]string{}, defaults.Directories...)}
	if command == nil || !definition.Enabled {
		return &values
	}
	flagName := definition.Name
	if len(flagName) == 0 {
		flagName = ModuleDirectoryFlagName
	}
	flagUsage := definition.Usage
	if len(flagUsage) == 0 {
		flagUsage = ModuleDirectoryFlagUsage
	}

	targetSet := command.PersistentFlags()
	if !definition.Persistent {
		targetSet = command.Flags()
	}
	if targetSet.Lookup(flagName) == nil {
		targetSet.StringSliceVar(&values.Directories, flagName, values.Directories, flagUsage)
	}
	return &values
}

// ValueFlagValues stores the value assignment flags of a command.
type ValueFlagValues struct {
	Assignments []string
	Files       []string
}

// BindValueFlags attaches --var and --var-file to the provided command.
func BindValueFlags(command *cobra.Command) *ValueFlagValues {
	values := ValueFlagValues{}
	if command == nil {
		return &values
	}
	flagSet := command.Flags()
	flagSet.StringArrayVar(&values.Assignments, VariableFlagName, nil, VariableFlagUsage)
	flagSet.StringArrayVar(&values.Files, VariableFileFlagName, nil, VariableFileFlagUsage)
	return &values
}

// FormatChoiceUsage renders usage text listing the accepted values of a flag.
func FormatChoiceUsage(defaultValue string, choices []string, usage string) string {
	return fmt.Sprintf(choiceUsageTemplate, strings.TrimSpace(usage), strings.Join(choices, ", "), defaultValue)
}
