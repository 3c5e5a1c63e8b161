package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/cmd/cli/tasks"
)

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	providers := tasks.Providers{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.tasksCommandConfiguration,
	}

	runBuilder := tasks.RunCommandBuilder{Providers: providers}
	if runCommand, runBuildError := runBuilder.Build(); runBuildError == nil {
		cobraCommand.AddCommand(runCommand)
	}

	listBuilder := tasks.ListCommandBuilder{Providers: providers}
	if listCommand, listBuildError := listBuilder.Build(); listBuildError == nil {
		cobraCommand.AddCommand(listCommand)
	}

	planBuilder := tasks.PlanCommandBuilder{Providers: providers}
	if planCommand, planBuildError := planBuilder.Build(); planBuildError == nil {
		cobraCommand.AddCommand(planCommand)
	}
}
