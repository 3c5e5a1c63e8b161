package flags_test

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/taskgraph/internal/utils"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
)

func newExecutionCommand() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "root"}
	flagutils.BindExecutionFlags(root, flagutils.ExecutionDefaults{Concurrency: 1}, flagutils.DefaultExecutionFlagDefinitions())
	child := &cobra.Command{Use: "child"}
	root.AddCommand(child)
	return root, child
}

func TestCollectExecutionFlagsReadsInheritedValues(testInstance *testing.T) {
	root, child := newExecutionCommand()
	require.NoError(testInstance, root.PersistentFlags().Parse([]string{"-j", "4", "--log-directory", " logs "}))

	executionFlags := flagutils.CollectExecutionFlags(child)
	require.Equal(testInstance, utils.ExecutionFlags{
		Concurrency:            4,
		ConcurrencySet:         true,
		TranscriptDirectory:    "logs",
		TranscriptDirectorySet: true,
	}, executionFlags)
}

func TestResolveExecutionFlagsPrefersContext(testInstance *testing.T) {
	_, child := newExecutionCommand()
	stored := utils.ExecutionFlags{Concurrency: 8, ConcurrencySet: true}
	child.SetContext(utils.NewCommandContextAccessor().WithExecutionFlags(context.Background(), stored))

	resolved, available := flagutils.ResolveExecutionFlags(child)
	require.True(testInstance, available)
	require.Equal(testInstance, stored, resolved)
}

func TestResolveExecutionFlagsWithoutOverrides(testInstance *testing.T) {
	_, child := newExecutionCommand()
	child.SetContext(context.Background())

	resolved, available := flagutils.ResolveExecutionFlags(child)
	require.False(testInstance, available)
	require.Equal(testInstance, 1, resolved.Concurrency)
}

func TestFlagLookupsReportUndefinedFlags(testInstance *testing.T) {
	command := &cobra.Command{Use: "bare"}
	_, _, intError := flagutils.IntFlag(command, "missing")
	require.ErrorIs(testInstance, intError, flagutils.ErrFlagNotDefined)
	_, _, stringError := flagutils.StringFlag(command, "missing")
	require.ErrorIs(testInstance, stringError, flagutils.ErrFlagNotDefined)
	_, _, sliceError := flagutils.StringSliceFlag(nil, "missing")
	require.ErrorIs(testInstance, sliceError, flagutils.ErrFlagNotDefined)
}

func TestBindValueFlagsCollectsRepeatedValues(testInstance *testing.T) {
	command := &cobra.Command{Use: "run"}
	values := flagutils.BindValueFlags(command)
	require.NoError(testInstance, command.ParseFlags([]string{"--var", "a=1", "--var", "b=x,y", "--var-file", "values.yaml"}))

	require.Equal(testInstance, []string{"a=1", "b=x,y"}, values.Assignments)
	require.Equal(testInstance, []string{"values.yaml"}, values.Files)
}

func TestFormatChoiceUsage(testInstance *testing.T) {
	usage := flagutils.FormatChoiceUsage("local", []string{"local", "user"}, " Write defaults ")
	require.Equal(testInstance, "Write defaults (one of: local, user; default local)", usage)
}
