package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck/core/cmd/taskdeck/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskdeck",
		Short: "TaskDeck local task manager",
		Long:  `TaskDeck is a local single-user task manager: a persistent task collection with subtasks, due dates, image attachments, and a filtered, sorted view served over a localhost HTTP shell.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
