package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/digitalcollections/fcrepo-migrate/internal/build"
)

// NewVersionCommand returns the command to get the fcrepo-migrate version
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the fcrepo-migrate version",
		Long:  "Return the fcrepo-migrate version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(_ *cobra.Command, _ []string) error {
	log.Printf("fcrepo-migrate version %s commit id %s", build.Version, build.Commit)
	return nil
}
