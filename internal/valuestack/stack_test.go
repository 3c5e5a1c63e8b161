package valuestack_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
	"github.com/tyemirov/taskgraph/internal/valuestack"
)

const testStackSubtestNameTemplateConstant = "%d_%s"

func newTestRegistry(testInstance *testing.T) *taskgraph.Registry {
	testInstance.Helper()
	registry := taskgraph.NewRegistry()
	for _, definition := range []taskgraph.Definition{
		{Name: "checkout", MandatoryInputs: []string{"repository"}},
		{Name: "build", MandatoryInputs: []string{"checkout"}, OptionalInputs: []string{"flags"}},
		{Name: "unrelated", MandatoryInputs: []string{"other"}},
	} {
		task, creationError := taskgraph.NewTask(definition)
		require.NoError(testInstance, creationError)
		require.NoError(testInstance, registry.Register(task))
	}
	return registry
}

func TestStackPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name           string
		environment    []string
		results        map[string]any
		commandLine    map[string]any
		expectedValue  any
		expectedSource valuestack.Source
	}{
		{
			name:           "environment_only",
			environment:    []string{"repository=from-environment"},
			expectedValue:  "from-environment",
			expectedSource: valuestack.SourceEnvironment,
		},
		{
			name:           "result_overrides_environment",
			environment:    []string{"repository=from-environment"},
			results:        map[string]any{"repository": "from-result"},
			expectedValue:  "from-result",
			expectedSource: valuestack.SourceResult,
		},
		{
			name:           "command_line_overrides_result",
			environment:    []string{"repository=from-environment"},
			results:        map[string]any{"repository": "from-result"},
			commandLine:    map[string]any{"repository": "from-command-line"},
			expectedValue:  "from-command-line",
			expectedSource: valuestack.SourceCommandLine,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testStackSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			stack := valuestack.NewStack(newTestRegistry(testInstance))
			stack.LoadEnvironment(testCase.environment)
			for name, value := range testCase.results {
				stack.SetResult(name, value)
			}
			for name, value := range testCase.commandLine {
				stack.SetCommandLineValue(name, value)
			}

			value, source, found := stack.Value("repository")
			require.True(testInstance, found)
			require.Equal(testInstance, testCase.expectedValue, value)
			require.Equal(testInstance, testCase.expectedSource, source)
			require.Equal(testInstance, testCase.expectedValue, stack.Values()["repository"])
		})
	}
}

func TestStackLoadEnvironmentKeepsKnownNames(testInstance *testing.T) {
	stack := valuestack.NewStack(newTestRegistry(testInstance))
	stack.LoadEnvironment([]string{"PATH=/usr/bin", "flags=-v", "checkout=main=branch", "malformed"})

	require.Equal(testInstance, map[string]any{"flags": "-v", "checkout": "main=branch"}, stack.Layer(valuestack.SourceEnvironment))
}

func TestStackCommandLineValueInvalidatesDependentResults(testInstance *testing.T) {
	stack := valuestack.NewStack(newTestRegistry(testInstance))
	stack.SetResult("checkout", "/tmp/checkout")
	stack.SetResult("build", "binary")
	stack.SetResult("unrelated", "kept")

	stack.SetCommandLineValue("repository", "other-repository")

	require.Equal(testInstance, map[string]any{"unrelated": "kept"}, stack.Layer(valuestack.SourceResult))
	require.Equal(testInstance, map[string]any{"repository": "other-repository"}, stack.Layer(valuestack.SourceCommandLine))

	stack.Reset()
	require.Empty(testInstance, stack.Values())
}

func TestNewValueName(testInstance *testing.T) {
	name, nameError := valuestack.NewValueName("  mail.host ")
	require.NoError(testInstance, nameError)
	require.Equal(testInstance, "mail.host", name)

	_, nameError = valuestack.NewValueName(" ")
	require.Error(testInstance, nameError)
	_, nameError = valuestack.NewValueName("bad name")
	require.Error(testInstance, nameError)
	require.Equal(testInstance, "command line", valuestack.SourceCommandLine.String())
}

func TestStackBindingValuesSettlesResults(testInstance *testing.T) {
	stack := valuestack.NewStack(newTestRegistry(testInstance))
	stack.LoadEnvironment([]string{"repository=from-environment"})
	stack.SetResult("repository", "from-result")
	stack.SetResult("branch", "main")
	stack.SetCommandLineValue("branch", "feature")

	bindingValues := stack.BindingValues()
	require.Equal(testInstance, taskgraph.Settled{Value: "from-result"}, bindingValues["repository"])
	require.Equal(testInstance, "feature", bindingValues["branch"])
	require.Equal(testInstance, "from-result", stack.Values()["repository"])
}
