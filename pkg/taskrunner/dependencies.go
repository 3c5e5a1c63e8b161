package taskrunner

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/engine"
	"github.com/tyemirov/taskgraph/internal/execshell"
	"github.com/tyemirov/taskgraph/internal/metrics"
	"github.com/tyemirov/taskgraph/internal/modules"
	"github.com/tyemirov/taskgraph/internal/results"
	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

// DependenciesConfig captures the settings and providers required to build a task runner.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	Registry                     *taskgraph.Registry
	CommandRunner                execshell.CommandRunner
	MetricsRegisterer            prometheus.Registerer
	LocateExecutable             modules.ExecutableLocator
	ModuleDirectories            []string
	RegisterBuiltins             bool
	Concurrency                  int
	CacheMaxEntries              int
	TranscriptDirectory          string
	// OutputEcho receives command lines and their output while they run. It is used only with
	// human-readable logging.
	OutputEcho                   io.Writer
}

// DependenciesResult exposes the assembled collaborators.
type DependenciesResult struct {
	Logger               *zap.Logger
	HumanReadableLogging bool
	Registry             *taskgraph.Registry
	Cache                *results.Cache
	Resolver             *engine.Resolver
	Engine               *engine.Engine
	Executor             *execshell.ShellExecutor
	Loader               *modules.Loader
	Metrics              *metrics.Metrics
	LoadSummary          modules.LoadSummary
}

// BuildDependencies wires the engine stack and loads every configured module directory.
func BuildDependencies(config DependenciesConfig) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)
	humanReadable := false
	if config.HumanReadableLoggingProvider != nil {
		humanReadable = config.HumanReadableLoggingProvider()
	}

	registerer := config.MetricsRegisterer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	engineMetrics, metricsError := metrics.New(registerer)
	if metricsError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.metrics: %w", metricsError)
	}

	commandRunner := config.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewStreamingCommandRunner()
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
	if executorError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.shell_executor: %w", executorError)
	}
	shellExecutor = shellExecutor.WithMetrics(engineMetrics)
	if humanReadable && config.OutputEcho != nil {
		shellExecutor = shellExecutor.WithOutputEcho(config.OutputEcho)
	}

	registry := config.Registry
	if registry == nil {
		registry = taskgraph.NewRegistry()
	}
	if config.RegisterBuiltins {
		if builtinError := modules.RegisterBuiltins(registry); builtinError != nil {
			return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.builtins: %w", builtinError)
		}
	}

	loader, loaderError := modules.NewLoader(registry, modules.LoaderOptions{
		Executor:             shellExecutor,
		Transcripts:          execshell.NewTranscriptWriter(config.TranscriptDirectory),
		Logger:               logger,
		HumanReadableLogging: humanReadable,
		LocateExecutable:     config.LocateExecutable,
	})
	if loaderError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.loader: %w", loaderError)
	}
	loadSummary, loadError := loader.LoadDirectories(config.ModuleDirectories)
	if loadError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.modules: %w", loadError)
	}

	cache, cacheError := results.NewCache(results.Options{MaxEntries: config.CacheMaxEntries})
	if cacheError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.cache: %w", cacheError)
	}
	resolver, resolverError := engine.NewResolver(registry)
	if resolverError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.resolver: %w", resolverError)
	}
	taskEngine, engineError := engine.NewEngine(cache, engine.Options{
		Logger:               logger,
		Metrics:              engineMetrics,
		Concurrency:          config.Concurrency,
		HumanReadableLogging: humanReadable,
	})
	if engineError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.engine: %w", engineError)
	}

	return DependenciesResult{
		Logger:               logger,
		HumanReadableLogging: humanReadable,
		Registry:             registry,
		Cache:                cache,
		Resolver:             resolver,
		Engine:               taskEngine,
		Executor:             shellExecutor,
		Loader:               loader,
		Metrics:              engineMetrics,
		LoadSummary:          loadSummary,
	}, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
