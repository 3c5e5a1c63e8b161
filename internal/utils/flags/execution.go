// Package flags provides helpers for binding standardized execution flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	Concurrency         int
	TranscriptDirectory string
}

// ExecutionFlagDefinition captures a single flag's configuration.
type ExecutionFlagDefinition struct {
	Name      string
	Usage     string
	Shorthand string
	Enabled   bool
}

// ExecutionFlagDefinitions groups execution flag definitions.
type ExecutionFlagDefinitions struct {
	Concurrency         ExecutionFlagDefinition
	TranscriptDirectory ExecutionFlagDefinition
}

// DefaultExecutionFlagDefinitions enables every execution flag with its shared name.
func DefaultExecutionFlagDefinitions() ExecutionFlagDefinitions {
	return ExecutionFlagDefinitions{
		Concurrency: ExecutionFlagDefinition{
			Name:      ConcurrencyFlagName,
			Usage:     ConcurrencyFlagUsage,
			Shorthand: ConcurrencyFlagShorthand,
			Enabled:   true,
		},
		TranscriptDirectory: ExecutionFlagDefinition{
			Name:    TranscriptDirectoryFlagName,
			Usage:   TranscriptDirectoryFlagUsage,
			Enabled: true,
		},
	}
}

// BindExecutionFlags attaches standardized execution flags to the provided command using persistent scope.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults, definitions ExecutionFlagDefinitions) {
	if command == nil {
		return
	}

	persistentFlagSet := command.PersistentFlags()
	if definitions.Concurrency.Enabled && len(definitions.Concurrency.Name) > 0 && persistentFlagSet.Lookup(definitions.Concurrency.Name) == nil {
		persistentFlagSet.IntP(definitions.Concurrency.Name, definitions.Concurrency.Shorthand, defaults.Concurrency, definitions.Concurrency.Usage)
	}
	if definitions.TranscriptDirectory.Enabled && len(definitions.TranscriptDirectory.Name) > 0 && persistentFlagSet.Lookup(definitions.TranscriptDirectory.Name) == nil {
		persistentFlagSet.StringP(definitions.TranscriptDirectory.Name, definitions.TranscriptDirectory.Shorthand, defaults.TranscriptDirectory, definitions.TranscriptDirectory.Usage)
	}
}
