package taskgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

func mustTask(testInstance *testing.T, definition taskgraph.Definition) *taskgraph.Task {
	testInstance.Helper()
	task, creationError := taskgraph.NewTask(definition)
	require.NoError(testInstance, creationError)
	return task
}

func TestRegistryRegisterAndGet(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()

	_, found := registry.Get("branch")
	require.False(testInstance, found)

	require.ErrorIs(testInstance, registry.Register(nil), taskgraph.ErrTaskNotProvided)

	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "branch",
		Module:          "git",
		MandatoryInputs: []string{"repository_path"},
	})))
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "push",
		Module:          "git",
		MandatoryInputs: []string{"repository_path", "branch"},
		OptionalInputs:  []string{"remote"},
	})))

	task, found := registry.Get("push")
	require.True(testInstance, found)
	require.Equal(testInstance, []string{"repository_path", "branch", "remote"}, task.Inputs())

	require.Equal(testInstance, []string{"branch", "push"}, registry.TasksConsuming("repository_path"))
	require.Equal(testInstance, []string{"push"}, registry.TasksConsuming("remote"))
	require.Equal(testInstance, []string{"branch", "push"}, registry.TasksInModule("git"))
	require.Equal(testInstance, []string{"git"}, registry.Modules())
	require.True(testInstance, registry.IsValueName("remote"))
	require.True(testInstance, registry.IsValueName("push"))
	require.False(testInstance, registry.IsValueName("unknown"))

	finalTasks := registry.FinalTasks()
	require.Len(testInstance, finalTasks, 1)
	require.Equal(testInstance, "push", finalTasks[0].Name())

	require.Equal(testInstance, []string{"branch", "push"}, registry.DependentsOf("repository_path"))
	require.Equal(testInstance, []string{"push"}, registry.DependentsOf("branch"))
}

func TestRegistryReplaceUpdatesIndices(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "report",
		MandatoryInputs: []string{"old_input"},
	})))
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "report",
		MandatoryInputs: []string{"new_input"},
	})))

	require.Empty(testInstance, registry.TasksConsuming("old_input"))
	require.Equal(testInstance, []string{"report"}, registry.TasksConsuming("new_input"))
	require.Equal(testInstance, 1, registry.Len())
}

func TestRegistryRegistersTemplateTasks(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "connect",
		MandatoryInputs: []string{"address"},
		ProvidedValues:  map[string]string{"address": "{host}:{port}"},
	})))

	templateTask, found := registry.Get("{host}:{port}")
	require.True(testInstance, found)
	require.True(testInstance, templateTask.Synthetic())
	require.Len(testInstance, registry.Tasks(), 1)
	require.Equal(testInstance, 2, registry.Len())
}

func TestRegistryReplaceDropsOrphanedTemplateTasks(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "connect",
		MandatoryInputs: []string{"address"},
		ProvidedValues:  map[string]string{"address": "{host}:{port}"},
	})))
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "healthcheck",
		MandatoryInputs: []string{"url"},
		ProvidedValues:  map[string]string{"url": "https://{domain}"},
	})))
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "mirror",
		MandatoryInputs: []string{"url"},
		ProvidedValues:  map[string]string{"url": "https://{domain}"},
	})))
	require.True(testInstance, registry.IsValueName("port"))
	require.Equal(testInstance, 5, registry.Len())

	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "connect",
		MandatoryInputs: []string{"socket"},
	})))
	require.False(testInstance, registry.IsTask("{host}:{port}"))
	require.False(testInstance, registry.IsValueName("port"))
	require.Empty(testInstance, registry.TasksConsuming("host"))
	require.Equal(testInstance, 4, registry.Len())

	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{
		Name:            "healthcheck",
		MandatoryInputs: []string{"url"},
	})))
	require.True(testInstance, registry.IsTask("https://{domain}"))
	require.Equal(testInstance, []string{"https://{domain}"}, registry.TasksConsuming("domain"))
}

func TestRegistryReset(testInstance *testing.T) {
	registry := taskgraph.NewRegistry()
	require.NoError(testInstance, registry.Register(mustTask(testInstance, taskgraph.Definition{Name: "task"})))
	registry.Reset()
	require.Zero(testInstance, registry.Len())
	require.False(testInstance, registry.IsTask("task"))
}
