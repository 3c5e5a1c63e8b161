package tasks

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
	"github.com/tyemirov/taskgraph/internal/utils"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
	"github.com/tyemirov/taskgraph/internal/valuestack"
	"github.com/tyemirov/taskgraph/pkg/taskrunner"
)

const (
	listCommandUseConstant              = "tasks"
	listCommandAliasConstant            = "ls"
	listCommandShortDescriptionConstant = "List registered tasks and the state of their inputs"
	listCommandLongDescriptionConstant  = "tasks lists the tasks no other task consumes (or every task with --all). Inputs with a known value are shown in green, inputs another task computes in cyan, missing mandatory inputs in red and unset optional inputs in gray."
	allFlagNameConstant                 = "all"
	allFlagUsageConstant                = "List every registered task, including those consumed by other tasks"
	listValueDisplayLimitConstant       = 40
	listTruncationSuffixConstant        = "..."
	listTaskHeaderTemplateConstant      = "%s\n"
	listModuleHeaderTemplateConstant    = "%s [%s]\n"
	listInputLineTemplateConstant       = "  %s\n"
	listKnownInputTemplateConstant      = "%s = %s"
	listComputedInputTemplateConstant   = "%s <- task"
	listMissingInputTemplateConstant    = "%s (missing)"
	listOptionalInputTemplateConstant   = "[%s]"
	listNoTasksMessageConstant          = "no tasks registered"
)

var (
	boldText  = color.New(color.Bold).SprintFunc()
	greenText = color.New(color.FgGreen).SprintFunc()
	cyanText  = color.New(color.FgCyan).SprintFunc()
	redText   = color.New(color.FgRed).SprintFunc()
	grayText  = color.New(color.FgHiBlack).SprintFunc()
)

// ListCommandBuilder assembles the tasks listing command.
type ListCommandBuilder struct {
	Providers
}

// Build constructs the tasks listing command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:     listCommandUseConstant,
		Aliases: []string{listCommandAliasConstant},
		Short:   listCommandShortDescriptionConstant,
		Long:    listCommandLongDescriptionConstant,
		Args:    cobra.NoArgs,
		RunE:    builder.run,
	}
	flagutils.BindValueFlags(command)
	command.Flags().Bool(allFlagNameConstant, false, allFlagUsageConstant)
	return command, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, _ []string) error {
	listAll, listAllError := command.Flags().GetBool(allFlagNameConstant)
	if listAllError != nil {
		return listAllError
	}

	session, sessionError := builder.openSession(command, taskrunner.Options{})
	if sessionError != nil {
		return sessionError
	}
	values, valuesError := resolveValues(command)
	if valuesError != nil {
		return valuesError
	}
	applyValues(session.runner.Stack(), values)

	registry := session.dependencies.Registry
	listedTasks := registry.FinalTasks()
	if listAll {
		listedTasks = registry.Tasks()
	}

	outputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	if len(listedTasks) == 0 {
		_, writeError := fmt.Fprintln(outputWriter, listNoTasksMessageConstant)
		return writeError
	}
	for _, task := range listedTasks {
		if writeError := writeTaskListing(outputWriter, registry, session.runner.Stack(), task); writeError != nil {
			return writeError
		}
	}
	return nil
}

func writeTaskListing(writer io.Writer, registry *taskgraph.Registry, stack *valuestack.Stack, task *taskgraph.Task) error {
	var headerError error
	if len(task.Module()) > 0 {
		_, headerError = fmt.Fprintf(writer, listModuleHeaderTemplateConstant, boldText(task.Name()), task.Module())
	} else {
		_, headerError = fmt.Fprintf(writer, listTaskHeaderTemplateConstant, boldText(task.Name()))
	}
	if headerError != nil {
		return headerError
	}

	for _, inputName := range task.Inputs() {
		if _, writeError := fmt.Fprintf(writer, listInputLineTemplateConstant, describeInput(registry, stack, task, inputName)); writeError != nil {
			return writeError
		}
	}
	return nil
}

func describeInput(registry *taskgraph.Registry, stack *valuestack.Stack, task *taskgraph.Task, inputName string) string {
	if value, _, known := stack.Value(inputName); known {
		return greenText(fmt.Sprintf(listKnownInputTemplateConstant, inputName, truncateDisplayValue(taskgraph.FormatValue(value))))
	}
	if registry.IsTask(inputName) {
		return cyanText(fmt.Sprintf(listComputedInputTemplateConstant, inputName))
	}
	if task.IsMandatory(inputName) {
		return redText(fmt.Sprintf(listMissingInputTemplateConstant, inputName))
	}
	return grayText(fmt.Sprintf(listOptionalInputTemplateConstant, inputName))
}

func truncateDisplayValue(value string) string {
	runes := []rune(value)
	if len(runes) <= listValueDisplayLimitConstant {
		return value
	}
	return string(runes[:listValueDisplayLimitConstant]) + listTruncationSuffixConstant
}
