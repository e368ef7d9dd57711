// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags,
// environment variables prefixed with FCREPO_MIGRATE, or config.yaml (in that
// order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("FCREPO_MIGRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/fcrepo-migrate", "$HOME/.fcrepo-migrate", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "fcrepo-migrate",
		Short: "Convert a Fedora repository export into ordered Bulkrax import batches",
		Long: `fcrepo-migrate reads an N-Triples snapshot of a Fedora repository graph and
assembles ordered, size-bounded import batches: one CSV manifest plus the
attached binaries per batch, zipped for Bulkrax ingest.`,
	}
}
