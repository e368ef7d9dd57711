package main

import (
	"os"

	"github.com/digitalcollections/fcrepo-migrate/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(cmd.NewExportCommand())
	rootCmd.AddCommand(cmd.NewLoadCommand())
	rootCmd.AddCommand(cmd.NewStripAuditsCommand())
	rootCmd.AddCommand(cmd.NewRemoveOrphansCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
