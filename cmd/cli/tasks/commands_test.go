package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/internal/execshell"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
)

const testDefinitionsConstant = `
module: greetings
tasks:
  - name: greeting
    inputs: [person]
    command: echo hello {person}
    postprocess:
      message: "^(hello .*)$"
  - name: shout
    inputs: [word]
    default_input: word
    command: echo {word}!
    postprocess:
      shouted: "^(.*!)$"
  - name: fail
    command: exit 3
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type commandResult struct {
	output string
	errors string
	err    error
}

func newTestProviders(t *testing.T, registerBuiltins bool, environment ...string) Providers {
	t.Helper()
	moduleDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(moduleDirectory, "greetings.yaml"), []byte(testDefinitionsConstant), 0o600))
	return Providers{
		ConfigurationProvider: func() CommandConfiguration {
			configuration := DefaultCommandConfiguration()
			configuration.ModuleDirectories = []string{moduleDirectory}
			configuration.RegisterBuiltins = registerBuiltins
			return configuration
		},
		EnvironmentProvider: func() []string { return environment },
	}
}

func executeCommand(t *testing.T, command *cobra.Command, arguments ...string) commandResult {
	t.Helper()
	outputBuffer := &bytes.Buffer{}
	errorBuffer := &bytes.Buffer{}
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.SetOut(outputBuffer)
	command.SetErr(errorBuffer)
	command.SetArgs(arguments)
	command.SetContext(context.Background())
	executionError := command.Execute()
	return commandResult{output: outputBuffer.String(), errors: errorBuffer.String(), err: executionError}
}

func buildRunCommand(t *testing.T, providers Providers) *cobra.Command {
	t.Helper()
	builder := RunCommandBuilder{Providers: providers}
	command, buildError := builder.Build()
	require.NoError(t, buildError)
	return command
}

func TestRunCommandScenarios(t *testing.T) {
	valueFile := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(valueFile, []byte("person: filed\n"), 0o600))

	testCases := []struct {
		name             string
		environment      []string
		arguments        []string
		expectedOutput   []string
		unexpectedOutput []string
	}{
		{
			name:           "assignment_then_target",
			arguments:      []string{"person=world", "greeting"},
			expectedOutput: []string{`"message": "hello world"`, `export greeting="{"message":"hello world"}"`},
		},
		{
			name:           "default_input_assignment_runs_task",
			arguments:      []string{"shout=hey"},
			expectedOutput: []string{`"shouted": "hey!"`},
		},
		{
			name:           "environment_value",
			environment:    []string{"person=env", "UNRELATED=1"},
			arguments:      []string{"greeting"},
			expectedOutput: []string{`"message": "hello env"`},
		},
		{
			name:             "value_flags_override_value_files",
			arguments:        []string{"greeting", "--var-file", valueFile, "--var", "person=flag"},
			expectedOutput:   []string{`"message": "hello flag"`},
			unexpectedOutput: []string{"filed"},
		},
		{
			name:           "value_file",
			arguments:      []string{"greeting", "--var-file", valueFile},
			expectedOutput: []string{`"message": "hello filed"`},
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			command := buildRunCommand(t, newTestProviders(t, false, testCase.environment...))
			result := executeCommand(t, command, testCase.arguments...)
			require.NoError(t, result.err)
			for _, expected := range testCase.expectedOutput {
				require.Contains(t, result.output, expected)
			}
			for _, unexpected := range testCase.unexpectedOutput {
				require.NotContains(t, result.output, unexpected)
			}
		})
	}
}

func TestRunCommandFailures(t *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectedSummary string
		expectedOutput  string
	}{
		{
			name:      "stops_at_first_failure",
			arguments: []string{"fail", "person=world", "greeting"},
		},
		{
			name:            "keep_going_runs_remaining_targets",
			arguments:       []string{"fail", "person=world", "greeting", "--keep-going"},
			expectedSummary: "Summary: total.targets=2 succeeded=1 cached=0 failed=1",
			expectedOutput:  `"message": "hello world"`,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			command := buildRunCommand(t, newTestProviders(t, false))
			result := executeCommand(t, command, testCase.arguments...)

			var failedError execshell.CommandFailedError
			require.True(t, errors.As(result.err, &failedError))
			require.Equal(t, 3, failedError.Record.ExitCode)
			if len(testCase.expectedSummary) == 0 {
				require.NotContains(t, result.output, "hello world")
				require.Empty(t, result.errors)
				return
			}
			require.Contains(t, result.errors, testCase.expectedSummary)
			require.Contains(t, result.output, testCase.expectedOutput)
		})
	}
}

func TestRunCommandEchoesCommandOutputInHumanReadableMode(t *testing.T) {
	providers := newTestProviders(t, false)
	providers.HumanReadableLoggingProvider = func() bool { return true }
	command := buildRunCommand(t, providers)

	result := executeCommand(t, command, "person=world", "greeting")
	require.NoError(t, result.err)
	require.Regexp(t, `(?m)^\d{2}:\d{2}:\d{2}\.\d{6} echo hello world$`, result.errors)
	require.Regexp(t, `(?m)^\d{2}:\d{2}:\d{2}\.\d{6} hello world$`, result.errors)
	require.Regexp(t, `(?m)^\d{2}:\d{2}:\d{2}\.\d{6} exit code 0$`, result.errors)
}

func TestRunCommandRequiresArguments(t *testing.T) {
	command := buildRunCommand(t, newTestProviders(t, false))
	result := executeCommand(t, command)
	require.ErrorIs(t, result.err, errTargetsRequired)
}

func TestRunCommandRejectsInvalidValueNames(t *testing.T) {
	command := buildRunCommand(t, newTestProviders(t, false))
	result := executeCommand(t, command, "greeting", "--var", "bad name=1")
	require.Error(t, result.err)
}

func TestListCommandShowsInputStates(t *testing.T) {
	builder := ListCommandBuilder{Providers: newTestProviders(t, true)}
	command, buildError := builder.Build()
	require.NoError(t, buildError)

	result := executeCommand(t, command, "--var", "person=world")
	require.NoError(t, result.err)
	require.Contains(t, result.output, "greeting [greetings]\n  person = world\n")
	require.Contains(t, result.output, "shout [greetings]\n  word (missing)\n")
	require.Contains(t, result.output, "random_ascii [text]\n  [size]\n")
	require.Contains(t, result.output, "search_pattern [regexp]")
}

func TestListCommandWithoutTasks(t *testing.T) {
	builder := ListCommandBuilder{Providers: Providers{
		ConfigurationProvider: func() CommandConfiguration { return CommandConfiguration{} },
	}}
	command, buildError := builder.Build()
	require.NoError(t, buildError)

	result := executeCommand(t, command, "--all")
	require.NoError(t, result.err)
	require.Equal(t, "no tasks registered\n", result.output)
}

func TestPlanCommandPrintsTreeAndStages(t *testing.T) {
	builder := PlanCommandBuilder{Providers: newTestProviders(t, false)}
	command, buildError := builder.Build()
	require.NoError(t, buildError)

	result := executeCommand(t, command, "greeting", "person=world")
	require.NoError(t, result.err)
	require.Equal(t, "plan greeting\ngreeting\n  person=world\nstages\n  1: greeting\n", result.output)

	missing := executeCommand(t, command, "shout")
	require.Error(t, missing.err)
	require.Contains(t, missing.err.Error(), "word")
}

func TestResolveConfigurationAppliesFlags(t *testing.T) {
	command := &cobra.Command{Use: "configuration-test"}
	flagutils.BindModuleDirectoryFlags(command, flagutils.ModuleDirectoryFlagValues{}, flagutils.ModuleDirectoryFlagDefinition{Enabled: true, Persistent: true})
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{Concurrency: 1}, flagutils.DefaultExecutionFlagDefinitions())
	require.NoError(t, command.ParseFlags([]string{"--modules", "/opt/tasks", "--jobs", "4", "--log-directory", " logs "}))

	providers := Providers{ConfigurationProvider: func() CommandConfiguration {
		return CommandConfiguration{ModuleDirectories: []string{"/configured"}, Concurrency: 2, MaxExportLength: 10}
	}}
	configuration, resolveError := providers.resolveConfiguration(command)
	require.NoError(t, resolveError)
	require.Equal(t, []string{"/opt/tasks"}, configuration.ModuleDirectories)
	require.Equal(t, 4, configuration.Concurrency)
	require.Equal(t, "logs", configuration.TranscriptDirectory)
	require.Equal(t, 10, configuration.MaxExportLength)
}
