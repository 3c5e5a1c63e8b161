package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/cmd/cli/tasks"
)

const (
	internalTestDefinitionsConstant = `
module: greetings
tasks:
  - name: greeting
    inputs: [person]
    command: echo hello {person}
    postprocess:
      message: "^(hello .*)$"
`
	internalTestConfigurationTemplateConstant = `
common:
  log_level: error
  log_format: structured
modules:
  directories:
    - %s
  builtin: false
engine:
  concurrency: 3
  timeout: 30s
cache:
  max_entries: 16
results:
  max_export_length: 20
`
)

func prepareApplication(t *testing.T) (*Application, string) {
	t.Helper()
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, t.TempDir())

	moduleDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(moduleDirectory, "greetings.yaml"), []byte(internalTestDefinitionsConstant), 0o600))

	configurationPath := filepath.Join(t.TempDir(), "config.yaml")
	configurationContent := fmt.Sprintf(internalTestConfigurationTemplateConstant, moduleDirectory)
	require.NoError(t, os.WriteFile(configurationPath, []byte(configurationContent), 0o600))

	return NewApplication(), configurationPath
}

func executeApplication(application *Application, arguments ...string) (string, error) {
	outputBuffer := &bytes.Buffer{}
	application.rootCommand.SetOut(outputBuffer)
	application.rootCommand.SetErr(&bytes.Buffer{})
	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.Execute()
	return outputBuffer.String(), executionError
}

func TestApplicationConfigurationMapsToTaskCommands(t *testing.T) {
	application, configurationPath := prepareApplication(t)
	application.configurationFilePath = configurationPath
	require.NoError(t, application.InitializeForCommand("run"))

	configuration := application.tasksCommandConfiguration()
	require.Len(t, configuration.ModuleDirectories, 1)
	require.False(t, configuration.RegisterBuiltins)
	require.Equal(t, 3, configuration.Concurrency)
	require.Equal(t, 16, configuration.CacheMaxEntries)
	require.Equal(t, 20, configuration.MaxExportLength)
	require.Equal(t, 30*time.Second, configuration.Timeout)
}

func TestApplicationEmbeddedDefaults(t *testing.T) {
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, t.TempDir())
	application := NewApplication()
	require.NoError(t, application.InitializeForCommand("run"))

	configuration := application.tasksCommandConfiguration()
	defaults := tasks.DefaultCommandConfiguration()
	require.True(t, configuration.RegisterBuiltins)
	require.Equal(t, defaults.Concurrency, configuration.Concurrency)
	require.Equal(t, defaults.MaxExportLength, configuration.MaxExportLength)
	require.Zero(t, configuration.Timeout)
	require.Empty(t, application.ConfigFileUsed())
}

func TestApplicationRunsTargetsWithConfiguredExportLength(t *testing.T) {
	application, configurationPath := prepareApplication(t)

	output, executionError := executeApplication(application, "--config", configurationPath, "run", "person=world", "greeting")
	require.NoError(t, executionError)
	require.Contains(t, output, `"message": "hello world"`)
	require.NotContains(t, output, "export greeting=")
}

func TestApplicationModuleFlagReplacesConfiguredDirectories(t *testing.T) {
	application, configurationPath := prepareApplication(t)
	emptyDirectory := t.TempDir()

	output, executionError := executeApplication(application, "--config", configurationPath, "--modules", emptyDirectory, "tasks")
	require.NoError(t, executionError)
	require.Equal(t, "no tasks registered\n", output)
	require.Equal(t, []string{emptyDirectory}, application.configuration.Modules.Directories)
}

func TestApplicationCommandHierarchy(t *testing.T) {
	application := NewApplication()
	expectedCommands := []string{"run", "tasks", "plan", "version"}
	for _, commandName := range expectedCommands {
		command, _, findError := application.rootCommand.Find([]string{commandName})
		require.NoError(t, findError)
		require.Equal(t, commandName, command.Name())
	}

	listCommand, _, findError := application.rootCommand.Find([]string{"ls"})
	require.NoError(t, findError)
	require.Equal(t, "tasks", listCommand.Name())

	for _, flagName := range []string{"config", "log-level", "log-format", "init", "force", "modules", "jobs", "log-directory", "version"} {
		require.NotNil(t, application.rootCommand.PersistentFlags().Lookup(flagName), flagName)
	}
}

func TestApplicationVersionCommand(t *testing.T) {
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, t.TempDir())
	application := NewApplication()
	application.versionResolver = func() string { return "v9.9.9" }

	output, executionError := executeApplication(application, "version")
	require.NoError(t, executionError)
	require.Equal(t, "taskgraph version: v9.9.9\n", output)
}

func TestApplicationVersionFlagExits(t *testing.T) {
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, t.TempDir())
	application := NewApplication()
	application.versionResolver = func() string { return "v1.0.0" }
	exitCodes := []int{}
	application.exitFunction = func(code int) { exitCodes = append(exitCodes, code) }

	output, executionError := executeApplication(application, "--version")
	require.NoError(t, executionError)
	require.Contains(t, output, "taskgraph version: v1.0.0")
	require.Equal(t, []int{0}, exitCodes)
}

func TestApplicationRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, t.TempDir())
	application := NewApplication()

	_, executionError := executeApplication(application, "--log-level", "verbose", "tasks")
	require.Error(t, executionError)
	require.Contains(t, executionError.Error(), "unable to create logger")
}

func TestNormalizeInitializationScopeArguments(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "bare_flag_defaults_to_local",
			arguments: []string{"--init"},
			expected:  []string{"--init=local"},
		},
		{
			name:      "bare_flag_followed_by_flag",
			arguments: []string{"--init", "--force"},
			expected:  []string{"--init=local", "--force"},
		},
		{
			name:      "empty_assignment_defaults_to_local",
			arguments: []string{"--init="},
			expected:  []string{"--init=local"},
		},
		{
			name:      "explicit_scope_preserved",
			arguments: []string{"--init", "user"},
			expected:  []string{"--init", "user"},
		},
		{
			name:      "unrelated_arguments",
			arguments: []string{"run", "greeting"},
			expected:  []string{"run", "greeting"},
		},
		{
			name:     "no_arguments",
			expected: nil,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subtest *testing.T) {
			require.Equal(subtest, testCase.expected, normalizeInitializationScopeArguments(testCase.arguments))
		})
	}
}

func TestResolveConfigurationInitializationPlanRejectsUnknownScope(t *testing.T) {
	application := NewApplication()
	_, planError := application.resolveConfigurationInitializationPlan("global")
	require.EqualError(t, planError, `unsupported initialization scope "global"`)
}

func TestResolveConfigurationInitializationPlanUserScopeIncludesModules(t *testing.T) {
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)

	application := NewApplication()
	initializationPlan, planError := application.resolveConfigurationInitializationPlan(" USER ")
	require.NoError(t, planError)
	require.Equal(t, filepath.Join(homeDirectory, ".taskgraph"), initializationPlan.DirectoryPath)
	require.Equal(t, filepath.Join(homeDirectory, ".taskgraph", "config.yaml"), initializationPlan.FilePath)
	require.Equal(t, filepath.Join(homeDirectory, ".taskgraph", "modules"), initializationPlan.ModuleDirectoryPath)
}

func TestSplitSearchPathOverride(t *testing.T) {
	separator := string(os.PathListSeparator)
	require.Equal(t, []string{"/a", "/b"}, splitSearchPathOverride(" /a "+separator+separator+"/b"))
	require.Empty(t, splitSearchPathOverride(separator))
}
