package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func bind(cmd *cobra.Command) {
	cmd.PreRun(cmd, nil)
}

func TestExportCommandFlagDefaults(t *testing.T) {
	viper.Reset()
	cmd := NewExportCommand()
	bind(cmd)

	require.Equal(t, 50, viper.GetInt(batchSizeFlag))
	require.Equal(t, "output", viper.GetString(outputDirFlag))
	require.Equal(t, []string{"Image"}, viper.GetStringSlice(modelsFlag))
	require.Equal(t, "public", viper.GetString(publicGroupFlag))
	require.Equal(t, "registered", viper.GetString(registeredGroupFlag))
	require.Equal(t, "text", viper.GetString(logFormatFlag))
	require.Contains(t, viper.GetStringSlice(pipeDelimitedFlag), "parents")
}

func TestExportCommandFlagsOverride(t *testing.T) {
	viper.Reset()
	cmd := NewExportCommand()
	require.NoError(t, cmd.Flags().Set(batchSizeFlag, "7"))
	require.NoError(t, cmd.Flags().Set(adminSetFlag, "admin_set/default"))
	bind(cmd)

	require.Equal(t, 7, viper.GetInt(batchSizeFlag))
	require.Equal(t, "admin_set/default", viper.GetString(adminSetFlag))
}

func TestExportCommandEnvCascade(t *testing.T) {
	viper.Reset()
	t.Setenv("FCREPO_MIGRATE_BATCH_SIZE", "9")
	t.Setenv("FCREPO_MIGRATE_LOG_LEVEL", "debug")

	_ = NewRootCommand()
	cmd := NewExportCommand()
	bind(cmd)

	require.Equal(t, 9, viper.GetInt(batchSizeFlag))
	require.Equal(t, "debug", viper.GetString(logLevelFlag))
}

func TestExportRequiresPaths(t *testing.T) {
	viper.Reset()
	cmd := NewExportCommand()
	bind(cmd)

	err := runExport(cmd, nil)
	require.ErrorContains(t, err, "required")
}

func TestSubcommandsRegistered(t *testing.T) {
	viper.Reset()
	root := NewRootCommand()
	root.AddCommand(NewExportCommand())
	root.AddCommand(NewLoadCommand())
	root.AddCommand(NewStripAuditsCommand())
	root.AddCommand(NewRemoveOrphansCommand())
	root.AddCommand(NewVersionCommand())

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(t, names, []string{"export", "load", "strip-audits", "remove-orphans", "version"})
}
