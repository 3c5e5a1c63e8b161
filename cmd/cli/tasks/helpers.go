package tasks

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/modules"
	"github.com/tyemirov/taskgraph/internal/utils"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
	rootutils "github.com/tyemirov/taskgraph/internal/utils/roots"
	"github.com/tyemirov/taskgraph/pkg/taskrunner"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Providers groups the collaborators every task command needs.
type Providers struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	EnvironmentProvider          func() []string
	LocateExecutable             modules.ExecutableLocator
}

type commandSession struct {
	configuration CommandConfiguration
	dependencies  taskrunner.DependenciesResult
	runner        *taskrunner.Runner
	gatherer      prometheus.Gatherer
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}

// resolveConfiguration layers module directory and execution flags over the configured values.
func (providers Providers) resolveConfiguration(command *cobra.Command) (CommandConfiguration, error) {
	configuration := DefaultCommandConfiguration()
	if providers.ConfigurationProvider != nil {
		configuration = providers.ConfigurationProvider()
	}
	configuration = configuration.Sanitize()

	contextAccessor := utils.NewCommandContextAccessor()
	if command != nil {
		if directories, available := contextAccessor.ModuleDirectories(command.Context()); available {
			configuration.ModuleDirectories = directories
		} else {
			directories, resolveError := rootutils.Resolve(command, configuration.ModuleDirectories)
			if resolveError != nil {
				return CommandConfiguration{}, resolveError
			}
			configuration.ModuleDirectories = directories
		}
	}

	if executionFlags, available := flagutils.ResolveExecutionFlags(command); available {
		if executionFlags.ConcurrencySet {
			configuration.Concurrency = executionFlags.Concurrency
		}
		if executionFlags.TranscriptDirectorySet {
			configuration.TranscriptDirectory = executionFlags.TranscriptDirectory
		}
	}
	return configuration.Sanitize(), nil
}

func (providers Providers) environment() []string {
	if providers.EnvironmentProvider == nil {
		return os.Environ()
	}
	return providers.EnvironmentProvider()
}

// openSession loads task definitions and builds a runner whose value stack holds the environment.
func (providers Providers) openSession(command *cobra.Command, runnerOptions taskrunner.Options) (*commandSession, error) {
	configuration, configurationError := providers.resolveConfiguration(command)
	if configurationError != nil {
		return nil, configurationError
	}

	metricsRegistry := prometheus.NewRegistry()
	dependencies, dependencyError := taskrunner.BuildDependencies(taskrunner.DependenciesConfig{
		LoggerProvider:               providers.LoggerProvider,
		HumanReadableLoggingProvider: providers.HumanReadableLoggingProvider,
		MetricsRegisterer:            metricsRegistry,
		LocateExecutable:             providers.LocateExecutable,
		ModuleDirectories:            configuration.ModuleDirectories,
		RegisterBuiltins:             configuration.RegisterBuiltins,
		Concurrency:                  configuration.Concurrency,
		CacheMaxEntries:              configuration.CacheMaxEntries,
		TranscriptDirectory:          configuration.TranscriptDirectory,
		OutputEcho:                   command.ErrOrStderr(),
	})
	if dependencyError != nil {
		return nil, dependencyError
	}

	runnerOptions.MaxExportLength = configuration.MaxExportLength
	runner, runnerError := taskrunner.NewRunner(dependencies, runnerOptions)
	if runnerError != nil {
		return nil, runnerError
	}
	runner.LoadEnvironment(providers.environment())

	return &commandSession{
		configuration: configuration,
		dependencies:  dependencies,
		runner:        runner,
		gatherer:      metricsRegistry,
	}, nil
}
