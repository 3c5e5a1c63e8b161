package cli

import (
	"time"

	"github.com/tyemirov/taskgraph/cmd/cli/tasks"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common  ApplicationCommonConfiguration  `mapstructure:"common"`
	Modules ApplicationModulesConfiguration `mapstructure:"modules"`
	Engine  ApplicationEngineConfiguration  `mapstructure:"engine"`
	Cache   ApplicationCacheConfiguration   `mapstructure:"cache"`
	Results ApplicationResultsConfiguration `mapstructure:"results"`
}

// ApplicationCommonConfiguration stores logging configuration.
type ApplicationCommonConfiguration struct {
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	LogDirectory string `mapstructure:"log_directory"`
}

// ApplicationModulesConfiguration lists where task definitions come from.
type ApplicationModulesConfiguration struct {
	Directories []string `mapstructure:"directories"`
	Builtin     bool     `mapstructure:"builtin"`
}

// ApplicationEngineConfiguration tunes plan execution.
type ApplicationEngineConfiguration struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ApplicationCacheConfiguration bounds the result cache.
type ApplicationCacheConfiguration struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// ApplicationResultsConfiguration controls how results are reported.
type ApplicationResultsConfiguration struct {
	MaxExportLength int `mapstructure:"max_export_length"`
}

type configurationInitializationPlan struct {
	DirectoryPath       string
	FilePath            string
	ModuleDirectoryPath string
}

func (application *Application) tasksCommandConfiguration() tasks.CommandConfiguration {
	configuration := application.configuration
	return tasks.CommandConfiguration{
		ModuleDirectories:   append([]string(nil), configuration.Modules.Directories...),
		RegisterBuiltins:    configuration.Modules.Builtin,
		Concurrency:         configuration.Engine.Concurrency,
		CacheMaxEntries:     configuration.Cache.MaxEntries,
		MaxExportLength:     configuration.Results.MaxExportLength,
		TranscriptDirectory: configuration.Common.LogDirectory,
		Timeout:             configuration.Engine.Timeout,
	}.Sanitize()
}
