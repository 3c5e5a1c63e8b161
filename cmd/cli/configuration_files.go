package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	configurationInitializationFlagNameConstant                      = "init"
	configurationInitializationFlagUsageConstant                     = "Write the embedded default configuration to LOCAL (./config.yaml) or user ($HOME/.taskgraph/config.yaml, also creating $HOME/.taskgraph/modules)."
	configurationInitializationDefaultScopeConstant                  = "local"
	configurationInitializationForceFlagNameConstant                 = "force"
	configurationInitializationForceFlagUsageConstant                = "Overwrite an existing configuration file when initializing."
	configurationInitializationScopeLocalConstant                    = "local"
	configurationInitializationScopeUserConstant                     = "user"
	configurationInitializationUnsupportedScopeTemplateConstant      = "unsupported initialization scope %q"
	configurationInitializationWorkingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	configurationInitializationWorkingDirectoryEmptyErrorConstant    = "working directory is empty"
	configurationInitializationHomeDirectoryErrorTemplateConstant    = "unable to determine user home directory: %w"
	configurationInitializationHomeDirectoryEmptyErrorConstant       = "user home directory is empty"
	configurationInitializationContentUnavailableErrorConstant       = "embedded configuration content is unavailable"
	configurationInitializationDirectoryErrorTemplateConstant        = "unable to ensure directory %s: %w"
	configurationInitializationExistingFileTemplateConstant          = "configuration file already exists at %s (use --force to overwrite)"
	configurationInitializationExistingDirectoryTemplateConstant     = "configuration path %s is a directory"
	configurationInitializationDirectoryConflictTemplateConstant     = "path %s exists and is not a directory"
	configurationInitializationWriteErrorTemplateConstant            = "unable to write configuration file %s: %w"
	configurationInitializationSuccessMessageConstant                = "configuration file created"
	configurationInitializationModuleDirectoryFieldConstant          = "module_directory"
	userModuleDirectoryNameConstant                                  = "modules"
	configurationDirectoryPermissionConstant                         = 0o755
	configurationFilePermissionConstant                              = 0o600
	defaultConfigurationSearchPathConstant                           = "."
	userConfigurationDirectoryNameConstant                           = ".taskgraph"
	configurationSearchPathEnvironmentVariableConstant               = "TASKGRAPH_CONFIG_SEARCH_PATH"
	xdgConfigHomeEnvironmentVariableConstant                         = "XDG_CONFIG_HOME"
)

type initializationScope struct {
	baseDirectory        func() (string, error)
	errorTemplate        string
	emptyDirectoryReason string
	userScoped           bool
}

var initializationScopes = map[string]initializationScope{
	configurationInitializationScopeLocalConstant: {
		baseDirectory:        os.Getwd,
		errorTemplate:        configurationInitializationWorkingDirectoryErrorTemplateConstant,
		emptyDirectoryReason: configurationInitializationWorkingDirectoryEmptyErrorConstant,
	},
	configurationInitializationScopeUserConstant: {
		baseDirectory:        os.UserHomeDir,
		errorTemplate:        configurationInitializationHomeDirectoryErrorTemplateConstant,
		emptyDirectoryReason: configurationInitializationHomeDirectoryEmptyErrorConstant,
		userScoped:           true,
	},
}

// resolveConfigurationSearchPaths lists the directories viper scans for config.yaml. A non-empty
// TASKGRAPH_CONFIG_SEARCH_PATH replaces the list entirely.
func (application *Application) resolveConfigurationSearchPaths() []string {
	if overridePaths := splitSearchPathOverride(os.Getenv(configurationSearchPathEnvironmentVariableConstant)); len(overridePaths) > 0 {
		return overridePaths
	}

	baseDirectories := []string{os.Getenv(xdgConfigHomeEnvironmentVariableConstant)}
	if userConfigurationDirectory, userConfigurationError := os.UserConfigDir(); userConfigurationError == nil {
		baseDirectories = append(baseDirectories, userConfigurationDirectory)
	}
	if homeDirectory, homeDirectoryError := os.UserHomeDir(); homeDirectoryError == nil {
		baseDirectories = append(baseDirectories, homeDirectory)
	}

	searchPaths := []string{defaultConfigurationSearchPathConstant}
	for _, baseDirectory := range baseDirectories {
		trimmedBaseDirectory := strings.TrimSpace(baseDirectory)
		if len(trimmedBaseDirectory) == 0 {
			continue
		}
		candidate := filepath.Join(trimmedBaseDirectory, userConfigurationDirectoryNameConstant)
		if !slices.Contains(searchPaths, candidate) {
			searchPaths = append(searchPaths, candidate)
		}
	}
	return searchPaths
}

func splitSearchPathOverride(rawValue string) []string {
	segments := strings.Split(rawValue, string(os.PathListSeparator))
	paths := make([]string, 0, len(segments))
	for _, segment := range segments {
		if trimmed := strings.TrimSpace(segment); len(trimmed) > 0 {
			paths = append(paths, trimmed)
		}
	}
	return paths
}

// normalizeInitializationScopeArguments rewrites a bare --init, or one given an empty value, to
// --init=local so cobra does not consume the following argument as the scope.
func normalizeInitializationScopeArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	flagPrefix := "--" + configurationInitializationFlagNameConstant
	defaultAssignment := flagPrefix + "=" + configurationInitializationDefaultScopeConstant

	normalizedArguments := make([]string, 0, len(arguments))
	for index, argument := range arguments {
		assignedValue, isAssignment := strings.CutPrefix(argument, flagPrefix+"=")
		switch {
		case isAssignment && len(strings.TrimSpace(assignedValue)) == 0:
			normalizedArguments = append(normalizedArguments, defaultAssignment)
		case argument == flagPrefix && !scopeArgumentFollows(arguments, index):
			normalizedArguments = append(normalizedArguments, defaultAssignment)
		default:
			normalizedArguments = append(normalizedArguments, argument)
		}
	}
	return normalizedArguments
}

func scopeArgumentFollows(arguments []string, index int) bool {
	nextIndex := index + 1
	return nextIndex < len(arguments) && !strings.HasPrefix(arguments[nextIndex], "-")
}

func (application *Application) configurationInitializationRequested(command *cobra.Command) bool {
	return application.persistentFlagChanged(command, configurationInitializationFlagNameConstant)
}

// handleConfigurationInitialization writes the embedded defaults when --init was given and reports
// whether it did.
func (application *Application) handleConfigurationInitialization(command *cobra.Command) (bool, error) {
	if !application.configurationInitializationRequested(command) {
		return false, nil
	}

	initializationPlan, planError := application.resolveConfigurationInitializationPlan(application.configurationInitializationScope)
	if planError != nil {
		return true, planError
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if writeError := application.writeConfigurationFile(initializationPlan, configurationContent); writeError != nil {
		return true, writeError
	}

	application.logger.Info(
		configurationInitializationSuccessMessageConstant,
		zap.String(configurationFileFieldConstant, initializationPlan.FilePath),
		zap.String(configurationInitializationModuleDirectoryFieldConstant, initializationPlan.ModuleDirectoryPath),
	)
	return true, nil
}

func (application *Application) resolveConfigurationInitializationPlan(rawScope string) (configurationInitializationPlan, error) {
	scopeName := strings.ToLower(strings.TrimSpace(rawScope))
	if len(scopeName) == 0 {
		scopeName = configurationInitializationDefaultScopeConstant
	}
	scope, known := initializationScopes[scopeName]
	if !known {
		return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationUnsupportedScopeTemplateConstant, strings.TrimSpace(rawScope))
	}

	baseDirectory, baseDirectoryError := scope.baseDirectory()
	if baseDirectoryError != nil {
		return configurationInitializationPlan{}, fmt.Errorf(scope.errorTemplate, baseDirectoryError)
	}
	baseDirectory = strings.TrimSpace(baseDirectory)
	if len(baseDirectory) == 0 {
		return configurationInitializationPlan{}, fmt.Errorf(scope.errorTemplate, errors.New(scope.emptyDirectoryReason))
	}

	if !scope.userScoped {
		return configurationInitializationPlan{
			DirectoryPath: baseDirectory,
			FilePath:      filepath.Join(baseDirectory, configurationFileNameConstant),
		}, nil
	}

	configurationDirectory := filepath.Join(baseDirectory, userConfigurationDirectoryNameConstant)
	return configurationInitializationPlan{
		DirectoryPath:       configurationDirectory,
		FilePath:            filepath.Join(configurationDirectory, configurationFileNameConstant),
		ModuleDirectoryPath: filepath.Join(configurationDirectory, userModuleDirectoryNameConstant),
	}, nil
}

func (application *Application) writeConfigurationFile(initializationPlan configurationInitializationPlan, configurationContent []byte) error {
	if len(configurationContent) == 0 {
		return errors.New(configurationInitializationContentUnavailableErrorConstant)
	}
	if ensureError := ensureDirectory(initializationPlan.DirectoryPath); ensureError != nil {
		return ensureError
	}
	if existingError := application.checkExistingConfiguration(initializationPlan.FilePath); existingError != nil {
		return existingError
	}
	if writeError := os.WriteFile(initializationPlan.FilePath, configurationContent, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, initializationPlan.FilePath, writeError)
	}
	if len(initializationPlan.ModuleDirectoryPath) == 0 {
		return nil
	}
	return ensureDirectory(initializationPlan.ModuleDirectoryPath)
}

func (application *Application) checkExistingConfiguration(filePath string) error {
	fileInfo, statError := os.Stat(filePath)
	switch {
	case errors.Is(statError, os.ErrNotExist):
		return nil
	case statError != nil:
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, filePath, statError)
	case fileInfo.IsDir():
		return fmt.Errorf(configurationInitializationExistingDirectoryTemplateConstant, filePath)
	case application.configurationInitializationForced:
		return nil
	default:
		return fmt.Errorf(configurationInitializationExistingFileTemplateConstant, filePath)
	}
}

func ensureDirectory(directoryPath string) error {
	trimmedPath := strings.TrimSpace(directoryPath)
	if len(trimmedPath) == 0 {
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, directoryPath, errors.New(configurationInitializationWorkingDirectoryEmptyErrorConstant))
	}

	directoryInfo, statError := os.Stat(trimmedPath)
	switch {
	case statError == nil && directoryInfo.IsDir():
		return nil
	case statError == nil:
		return fmt.Errorf(configurationInitializationDirectoryConflictTemplateConstant, trimmedPath)
	case !errors.Is(statError, os.ErrNotExist):
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, trimmedPath, statError)
	}
	if createError := os.MkdirAll(trimmedPath, configurationDirectoryPermissionConstant); createError != nil {
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, trimmedPath, createError)
	}
	return nil
}
