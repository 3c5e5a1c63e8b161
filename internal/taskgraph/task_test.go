package taskgraph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	testTaskSubtestNameTemplateConstant = "%d_%s"
	testGreetingTaskNameConstant        = "greeting"
	testNameInputConstant               = "name"
	testPunctuationInputConstant        = "punctuation"
)

func greetingInvokable(callCount *int) taskgraph.InvokableFunc {
	return func(_ context.Context, arguments taskgraph.Arguments) (any, error) {
		*callCount++
		name, _ := arguments.Text(testNameInputConstant)
		punctuation, present := arguments.Text(testPunctuationInputConstant)
		if !present {
			punctuation = "."
		}
		return fmt.Sprintf("hello %s%s", name, punctuation), nil
	}
}

func TestNewTaskValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		definition    taskgraph.Definition
		expectedError error
		expectedType  any
	}{
		{
			name:          "missing_name",
			definition:    taskgraph.Definition{Name: "  "},
			expectedError: taskgraph.ErrTaskNameMissing,
		},
		{
			name:          "empty_input",
			definition:    taskgraph.Definition{Name: "task", MandatoryInputs: []string{""}},
			expectedError: taskgraph.ErrInputNameMissing,
		},
		{
			name:         "overlapping_inputs",
			definition:   taskgraph.Definition{Name: "task", MandatoryInputs: []string{"a"}, OptionalInputs: []string{"a"}},
			expectedType: taskgraph.DefinitionError{},
		},
		{
			name:         "duplicate_mandatory_input",
			definition:   taskgraph.Definition{Name: "task", MandatoryInputs: []string{"a", "a"}},
			expectedType: taskgraph.DefinitionError{},
		},
		{
			name:         "invalid_input_name",
			definition:   taskgraph.Definition{Name: "task", MandatoryInputs: []string{"a b"}},
			expectedType: taskgraph.DefinitionError{},
		},
		{
			name:         "undeclared_default_input",
			definition:   taskgraph.Definition{Name: "task", MandatoryInputs: []string{"a"}, DefaultInput: "b"},
			expectedType: taskgraph.DefinitionError{},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testTaskSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			task, creationError := taskgraph.NewTask(testCase.definition)
			require.Error(testInstance, creationError)
			require.Nil(testInstance, task)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, creationError, testCase.expectedError)
			}
			if testCase.expectedType != nil {
				require.IsType(testInstance, testCase.expectedType, creationError)
			}
		})
	}
}

func TestTaskRunBindsDeclaredInputs(testInstance *testing.T) {
	testCases := []struct {
		name            string
		values          map[string]any
		expectedValue   any
		expectedSkipped bool
		expectedMissing []string
		expectedCalls   int
	}{
		{
			name:          "complete_optional_inputs",
			values:        map[string]any{testNameInputConstant: "world", testPunctuationInputConstant: "!"},
			expectedValue: "hello world!",
			expectedCalls: 1,
		},
		{
			name:          "no_optional_inputs",
			values:        map[string]any{testNameInputConstant: "world"},
			expectedValue: "hello world.",
			expectedCalls: 1,
		},
		{
			name:          "extra_values_ignored",
			values:        map[string]any{testNameInputConstant: "world", "unrelated": "value"},
			expectedValue: "hello world.",
			expectedCalls: 1,
		},
		{
			name:            "missing_mandatory_input_skips",
			values:          map[string]any{testPunctuationInputConstant: "?"},
			expectedSkipped: true,
			expectedMissing: []string{testNameInputConstant},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testTaskSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			callCount := 0
			task, creationError := taskgraph.NewTask(taskgraph.Definition{
				Name:            testGreetingTaskNameConstant,
				MandatoryInputs: []string{testNameInputConstant},
				OptionalInputs:  []string{testPunctuationInputConstant},
				Invokable:       greetingInvokable(&callCount),
			})
			require.NoError(testInstance, creationError)

			outcome, runError := task.Run(context.Background(), testCase.values)
			require.NoError(testInstance, runError)
			require.Equal(testInstance, testCase.expectedSkipped, outcome.Skipped)
			require.Equal(testInstance, testCase.expectedMissing, outcome.MissingInputs)
			require.Equal(testInstance, testCase.expectedValue, outcome.Value)
			require.Equal(testInstance, testCase.expectedCalls, callCount)
		})
	}
}

func TestTaskRunOmitsAbsentOptionalInputs(testInstance *testing.T) {
	var received taskgraph.Arguments
	task, creationError := taskgraph.NewTask(taskgraph.Definition{
		Name:           "optional_only",
		OptionalInputs: []string{"first", "second"},
		Invokable: taskgraph.InvokableFunc(func(_ context.Context, arguments taskgraph.Arguments) (any, error) {
			received = arguments
			return len(arguments), nil
		}),
	})
	require.NoError(testInstance, creationError)

	outcome, runError := task.Run(context.Background(), map[string]any{"second": ""})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, outcome.Value)
	require.False(testInstance, received.Has("first"))
	require.True(testInstance, received.Has("second"))
}

func TestAliasTaskForwardsValue(testInstance *testing.T) {
	aliasTask, creationError := taskgraph.NewTask(taskgraph.Definition{
		Name:            "branch_alias",
		MandatoryInputs: []string{"branch"},
	})
	require.NoError(testInstance, creationError)
	require.True(testInstance, aliasTask.IsAlias())

	forwarded := map[string]string{"nested": "value"}
	outcome, runError := aliasTask.Run(context.Background(), map[string]any{"branch": forwarded})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, forwarded, outcome.Value)
}

func TestTaskRunWrapsInvocationFailure(testInstance *testing.T) {
	failure := errors.New("boom")
	task, creationError := taskgraph.NewTask(taskgraph.Definition{
		Name: "failing",
		Invokable: taskgraph.InvokableFunc(func(context.Context, taskgraph.Arguments) (any, error) {
			return nil, failure
		}),
	})
	require.NoError(testInstance, creationError)

	_, runError := task.Run(context.Background(), nil)
	require.ErrorIs(testInstance, runError, failure)

	var invocationError taskgraph.InvocationError
	require.ErrorAs(testInstance, runError, &invocationError)
	require.Equal(testInstance, "failing", invocationError.TaskName)
}

func TestTemplateTasksMaterializeProvidedValues(testInstance *testing.T) {
	task, creationError := taskgraph.NewTask(taskgraph.Definition{
		Name:            "deploy",
		Module:          "ops",
		MandatoryInputs: []string{"target"},
		ProvidedValues: map[string]string{
			"target": "{host}:{port}",
			"mode":   "fast",
		},
	})
	require.NoError(testInstance, creationError)

	templateTasks := task.TemplateTasks()
	require.Len(testInstance, templateTasks, 1)

	templateTask := templateTasks[0]
	require.Equal(testInstance, "{host}:{port}", templateTask.Name())
	require.Equal(testInstance, []string{"host", "port"}, templateTask.MandatoryInputs())
	require.Equal(testInstance, "ops", templateTask.Module())
	require.True(testInstance, templateTask.Synthetic())

	outcome, runError := templateTask.Run(context.Background(), map[string]any{"host": "example", "port": 8080})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "example:8080", outcome.Value)
}
