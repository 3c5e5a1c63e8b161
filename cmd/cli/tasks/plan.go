package tasks

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taskgraph/internal/engine"
	"github.com/tyemirov/taskgraph/internal/utils"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
	"github.com/tyemirov/taskgraph/pkg/taskrunner"
)

const (
	planCommandUseConstant              = "plan TARGET... [NAME=VALUE...]"
	planCommandShortDescriptionConstant = "Show how targets would be resolved without running them"
	planCommandLongDescriptionConstant  = "plan resolves each target against the known values and prints the invocation tree followed by the stages whose invocations may run in parallel."
	planHeaderTemplateConstant          = "plan %s\n"
	planStagesHeaderConstant            = "stages"
	planStageLineTemplateConstant       = "  %d: %s\n"
	planStageSeparatorConstant          = ", "
)

var errPlanTargetRequired = errors.New("plan requires a target")

// PlanCommandBuilder assembles the plan command.
type PlanCommandBuilder struct {
	Providers
}

// Build constructs the plan command.
func (builder *PlanCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   planCommandUseConstant,
		Short: planCommandShortDescriptionConstant,
		Long:  planCommandLongDescriptionConstant,
		RunE:  builder.run,
	}
	flagutils.BindValueFlags(command)
	return command, nil
}

func (builder *PlanCommandBuilder) run(command *cobra.Command, arguments []string) error {
	session, sessionError := builder.openSession(command, taskrunner.Options{})
	if sessionError != nil {
		return sessionError
	}
	values, valuesError := resolveValues(command)
	if valuesError != nil {
		return valuesError
	}
	applyValues(session.runner.Stack(), values)

	targets := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		name, value, isAssignment := splitAssignment(argument)
		if !isAssignment {
			targets = append(targets, argument)
			continue
		}
		queuedTask, assignError := session.runner.Assign(name, value)
		if assignError != nil {
			return assignError
		}
		if len(queuedTask) > 0 {
			targets = append(targets, queuedTask)
		}
	}
	if len(targets) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errPlanTargetRequired
	}

	outputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	for _, target := range targets {
		plan, resolveError := session.dependencies.Resolver.Resolve(target, session.runner.Stack().BindingValues())
		if resolveError != nil {
			return fmt.Errorf("%s: %w", target, resolveError)
		}
		if writeError := writePlan(outputWriter, plan); writeError != nil {
			return writeError
		}
	}
	return nil
}

func writePlan(writer io.Writer, plan engine.Plan) error {
	stages, stagesError := engine.Stages(plan)
	if stagesError != nil {
		return stagesError
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, planHeaderTemplateConstant, plan.Target())
	builder.WriteString(plan.Describe())
	builder.WriteString(planStagesHeaderConstant + "\n")
	for stageIndex, stage := range stages {
		taskNames := make([]string, 0, len(stage.Nodes))
		for _, node := range stage.Nodes {
			taskNames = append(taskNames, plan.Nodes[node].Task.Name())
		}
		fmt.Fprintf(&builder, planStageLineTemplateConstant, stageIndex+1, strings.Join(taskNames, planStageSeparatorConstant))
	}
	_, writeError := io.WriteString(writer, builder.String())
	return writeError
}
