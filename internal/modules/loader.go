package modules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/execshell"
	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	loaderRegistryMissingMessageConstant = "module loader requires a task registry"
	readDefinitionsErrorTemplateConstant = "failed to read task definitions %s: %w"
	readDirectoryErrorTemplateConstant   = "failed to read module directory %s: %w"
	loadFileErrorTemplateConstant        = "%s: %w"
	registerTaskErrorTemplateConstant    = "failed to register task %q: %w"
	scriptTaskErrorTemplateConstant      = "failed to build command for task %q: %w"

	executableMissingMessageConstant       = "task skipped: executable missing from PATH"
	executableMissingHumanTemplateConstant = "Not registering task %s: executable %s missing from PATH"
	directoryMissingMessageConstant        = "module directory not found"
	taskRegisteredMessageConstant          = "task registered"
	taskFieldNameConstant                  = "task"
	moduleFieldNameConstant                = "module"
	executableFieldNameConstant            = "executable"
	directoryFieldNameConstant             = "directory"

	yamlExtensionConstant = ".yaml"
	ymlExtensionConstant  = ".yml"
	jsonExtensionConstant = ".json"
)

// ErrRegistryMissing indicates a loader built without a registry.
var ErrRegistryMissing = errors.New(loaderRegistryMissingMessageConstant)

// ExecutableLocator resolves an executable name to a path.
type ExecutableLocator func(name string) (string, error)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Executor             *execshell.ShellExecutor
	Transcripts          *execshell.TranscriptWriter
	Logger               *zap.Logger
	HumanReadableLogging bool
	LocateExecutable     ExecutableLocator
}

// LoadSummary lists what a load registered and what it skipped.
type LoadSummary struct {
	Registered []string
	Skipped    []string
}

func (summary *LoadSummary) merge(other LoadSummary) {
	summary.Registered = append(summary.Registered, other.Registered...)
	summary.Skipped = append(summary.Skipped, other.Skipped...)
}

// Loader turns task definition files into registered tasks.
type Loader struct {
	registry             *taskgraph.Registry
	executor             *execshell.ShellExecutor
	transcripts          *execshell.TranscriptWriter
	logger               *zap.Logger
	humanReadableLogging bool
	locateExecutable     ExecutableLocator
}

// NewLoader builds a loader registering into registry. Definitions that run commands need options.Executor.
func NewLoader(registry *taskgraph.Registry, options LoaderOptions) (*Loader, error) {
	if registry == nil {
		return nil, ErrRegistryMissing
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locateExecutable := options.LocateExecutable
	if locateExecutable == nil {
		locateExecutable = exec.LookPath
	}
	return &Loader{
		registry:             registry,
		executor:             options.Executor,
		transcripts:          options.Transcripts,
		logger:               logger,
		humanReadableLogging: options.HumanReadableLogging,
		locateExecutable:     locateExecutable,
	}, nil
}

// LoadDirectories loads every definition file found directly inside the directories, in name order.
// Directories that do not exist are skipped.
func (loader *Loader) LoadDirectories(directories []string) (LoadSummary, error) {
	var summary LoadSummary
	for _, directory := range directories {
		trimmedDirectory := strings.TrimSpace(directory)
		if len(trimmedDirectory) == 0 {
			continue
		}
		entries, readError := os.ReadDir(trimmedDirectory)
		if readError != nil {
			if errors.Is(readError, fs.ErrNotExist) {
				loader.logger.Debug(directoryMissingMessageConstant, zap.String(directoryFieldNameConstant, trimmedDirectory))
				continue
			}
			return summary, fmt.Errorf(readDirectoryErrorTemplateConstant, trimmedDirectory, readError)
		}

		fileNames := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !isDefinitionFile(entry.Name()) {
				continue
			}
			fileNames = append(fileNames, entry.Name())
		}
		sort.Strings(fileNames)

		for _, fileName := range fileNames {
			fileSummary, loadError := loader.LoadFile(filepath.Join(trimmedDirectory, fileName))
			summary.merge(fileSummary)
			if loadError != nil {
				return summary, loadError
			}
		}
	}
	return summary, nil
}

// LoadFile loads one definition file. Tasks that name no module belong to the module named after the file.
func (loader *Loader) LoadFile(path string) (LoadSummary, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return LoadSummary{}, fmt.Errorf(readDefinitionsErrorTemplateConstant, path, readError)
	}
	baseName := filepath.Base(path)
	definitions, parseError := ParseDefinitions(content, strings.TrimSuffix(baseName, filepath.Ext(baseName)))
	if parseError != nil {
		return LoadSummary{}, fmt.Errorf(loadFileErrorTemplateConstant, path, parseError)
	}
	summary, registerError := loader.LoadDefinitions(definitions)
	if registerError != nil {
		return summary, fmt.Errorf(loadFileErrorTemplateConstant, path, registerError)
	}
	return summary, nil
}

// LoadDefinitions registers the definitions in order. Definitions whose executable cannot be found
// are skipped with a warning.
func (loader *Loader) LoadDefinitions(definitions []TaskDefinition) (LoadSummary, error) {
	var summary LoadSummary
	for _, definition := range definitions {
		task, registered, buildError := loader.buildTask(definition)
		if buildError != nil {
			return summary, buildError
		}
		if !registered {
			summary.Skipped = append(summary.Skipped, definition.Name)
			continue
		}
		if registerError := loader.registry.Register(task); registerError != nil {
			return summary, fmt.Errorf(registerTaskErrorTemplateConstant, definition.Name, registerError)
		}
		loader.logger.Debug(taskRegisteredMessageConstant,
			zap.String(taskFieldNameConstant, task.Name()),
			zap.String(moduleFieldNameConstant, task.Module()),
		)
		summary.Registered = append(summary.Registered, task.Name())
	}
	return summary, nil
}

func (loader *Loader) buildTask(definition TaskDefinition) (*taskgraph.Task, bool, error) {
	text, fragments, templateError := definition.CommandTemplate()
	if templateError != nil {
		return nil, false, templateError
	}
	rules, rulesError := definition.PostprocessRules()
	if rulesError != nil {
		return nil, false, rulesError
	}

	taskDefinition := taskgraph.Definition{
		Name:            definition.Name,
		Module:          definition.Module,
		MandatoryInputs: definition.Inputs,
		OptionalInputs:  definition.OptionalInputNames(),
		DefaultInput:    definition.DefaultInputName(),
		ProvidedValues:  definition.Values,
	}

	template := execshell.Template{Text: text, Fragments: fragments}
	executable := strings.TrimSpace(definition.Executable)
	if len(executable) == 0 && template.IsEmpty() {
		task, taskError := taskgraph.NewTask(taskDefinition)
		return task, taskError == nil, taskError
	}

	if len(executable) > 0 {
		located, locateError := loader.locateExecutable(executable)
		if locateError != nil {
			loader.warnMissingExecutable(definition, executable)
			return nil, false, nil
		}
		executable = located
	}

	declaredInputs := append(append([]string(nil), definition.Inputs...), definition.OptionalInputNames()...)
	script, scriptError := execshell.NewScript(execshell.ScriptDefinition{
		TaskName:             definition.Name,
		Module:               definition.Module,
		Executable:           executable,
		Template:             template,
		DeclaredInputs:       declaredInputs,
		Postprocess:          rules,
		WorkingDirectory:     definition.WorkingDirectory,
		EnvironmentVariables: definition.EnvironmentVariables,
	}, loader.executor, loader.transcripts)
	if scriptError != nil {
		return nil, false, fmt.Errorf(scriptTaskErrorTemplateConstant, definition.Name, scriptError)
	}
	taskDefinition.Invokable = script

	task, taskError := taskgraph.NewTask(taskDefinition)
	return task, taskError == nil, taskError
}

func (loader *Loader) warnMissingExecutable(definition TaskDefinition, executable string) {
	if loader.humanReadableLogging {
		loader.logger.Warn(fmt.Sprintf(executableMissingHumanTemplateConstant, definition.Name, executable))
		return
	}
	loader.logger.Warn(executableMissingMessageConstant,
		zap.String(taskFieldNameConstant, definition.Name),
		zap.String(moduleFieldNameConstant, definition.Module),
		zap.String(executableFieldNameConstant, executable),
	)
}

func isDefinitionFile(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case yamlExtensionConstant, ymlExtensionConstant, jsonExtensionConstant:
		return true
	default:
		return false
	}
}
