package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/cmd/util"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage/memory"
)

// NewStripAuditsCommand returns the command that removes containment audit
// links from a snapshot. Fedora records every created node, including audit
// and version bookkeeping, as an ldp:contains link; only containment under
// the root node matters downstream.
func NewStripAuditsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip-audits",
		Short: "Remove non-root ldp:contains links from a snapshot",
		Long: `The strip-audits command rewrites a snapshot, dropping every ldp:contains
triple whose subject is not the configured containment root. All other
triples pass through untouched.`,
		RunE: runStripAudits,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()

			util.MustBindPFlag(graphPathFlag, flags.Lookup(graphPathFlag))
			util.MustBindPFlag(snapshotFlag, flags.Lookup(snapshotFlag))
			util.MustBindPFlag(rootNodeFlag, flags.Lookup(rootNodeFlag))
			util.MustBindPFlag(logFormatFlag, flags.Lookup(logFormatFlag))
			util.MustBindPFlag(logLevelFlag, flags.Lookup(logLevelFlag))
		},
	}

	flags := cmd.Flags()

	flags.String(graphPathFlag, "", "(required) path of the snapshot to strip")
	flags.String(snapshotFlag, "", "path the stripped snapshot is written to (defaults to rewriting in place)")
	flags.String(rootNodeFlag, memory.DefaultRootNode, "containment root whose ldp:contains links are kept")
	flags.String(logFormatFlag, "text", "the log format to output logs in ('text' or 'json')")
	flags.String(logLevelFlag, "info", "the log level to use")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runStripAudits(_ *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	in := viper.GetString(graphPathFlag)
	if in == "" {
		return fmt.Errorf("%s is required", graphPathFlag)
	}
	out := viper.GetString(snapshotFlag)
	if out == "" {
		out = in
	}
	rootNode := viper.GetString(rootNodeFlag)

	src, err := memory.NewFromFile(in)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", in, err)
	}

	kept := memory.New()
	dropped := 0
	for _, t := range src.Triples() {
		if t.Predicate == rdf.LDPContains && t.Subject != rootNode {
			dropped++
			continue
		}
		kept.Add(t)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", out, err)
	}
	defer f.Close()
	if _, err := kept.WriteTo(f); err != nil {
		return fmt.Errorf("write snapshot %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("flush snapshot %s: %w", out, err)
	}

	log.Info("audit links stripped",
		zap.String("path", out),
		zap.Int("dropped", dropped),
		zap.Int("kept", kept.Len()))
	return nil
}
