package cmd

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/cmd/util"
	"github.com/digitalcollections/fcrepo-migrate/internal/assembler"
	"github.com/digitalcollections/fcrepo-migrate/internal/copier"
	"github.com/digitalcollections/fcrepo-migrate/internal/index"
	"github.com/digitalcollections/fcrepo-migrate/internal/metrics"
	"github.com/digitalcollections/fcrepo-migrate/internal/packager"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
	"github.com/digitalcollections/fcrepo-migrate/pkg/mapping"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage/memory"
)

const (
	graphPathFlag       = "graph-path"
	mappingPathFlag     = "mapping-path"
	outputDirFlag       = "output-dir"
	binaryRootFlag      = "binary-root"
	modelsFlag          = "models"
	adminSetFlag        = "admin-set"
	batchSizeFlag       = "batch-size"
	pipeDelimitedFlag   = "pipe-delimited"
	publicGroupFlag     = "public-group"
	registeredGroupFlag = "registered-group"
	copyWorkersFlag     = "copy-workers"
	rootNodeFlag        = "root-node"
	logFormatFlag       = "log-format"
	logLevelFlag        = "log-level"
)

// NewExportCommand returns the command that assembles import batches from a
// graph snapshot.
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Assemble ordered import batches from a graph snapshot",
		Long: `The export command reads an N-Triples snapshot, resolves permissions,
embargoes and nesting, and writes size-bounded batches of CSV rows plus
their copied binaries, each zipped for import.`,
		RunE: runExport,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()

			util.MustBindPFlag(graphPathFlag, flags.Lookup(graphPathFlag))
			util.MustBindPFlag(mappingPathFlag, flags.Lookup(mappingPathFlag))
			util.MustBindPFlag(outputDirFlag, flags.Lookup(outputDirFlag))
			util.MustBindPFlag(binaryRootFlag, flags.Lookup(binaryRootFlag))
			util.MustBindPFlag(modelsFlag, flags.Lookup(modelsFlag))
			util.MustBindPFlag(adminSetFlag, flags.Lookup(adminSetFlag))
			util.MustBindPFlag(batchSizeFlag, flags.Lookup(batchSizeFlag))
			util.MustBindPFlag(pipeDelimitedFlag, flags.Lookup(pipeDelimitedFlag))
			util.MustBindPFlag(publicGroupFlag, flags.Lookup(publicGroupFlag))
			util.MustBindPFlag(registeredGroupFlag, flags.Lookup(registeredGroupFlag))
			util.MustBindPFlag(copyWorkersFlag, flags.Lookup(copyWorkersFlag))
			util.MustBindPFlag(rootNodeFlag, flags.Lookup(rootNodeFlag))
			util.MustBindPFlag(logFormatFlag, flags.Lookup(logFormatFlag))
			util.MustBindPFlag(logLevelFlag, flags.Lookup(logLevelFlag))
		},
	}

	flags := cmd.Flags()

	flags.String(graphPathFlag, "", "(required) path of the N-Triples snapshot to export from")
	flags.String(mappingPathFlag, "", "(required) path of the predicate-to-field mapping CSV")
	flags.String(outputDirFlag, "output", "directory the batch directories are written under")
	flags.String(binaryRootFlag, "", "(required) root directory holding the exported repository binaries")
	flags.StringSlice(modelsFlag, []string{"Image"}, "work model names to export")
	flags.String(adminSetFlag, "", "restrict works to this administrative set id")
	flags.Int(batchSizeFlag, assembler.DefaultBatchSize, "maximum row count of a regular batch")
	flags.StringSlice(pipeDelimitedFlag, []string{"creator", "keyword", "subject", "parents"}, "fields whose multiple values join with '|' instead of '; '")
	flags.String(publicGroupFlag, index.DefaultPublicGroup, "agent group fragment granting open visibility")
	flags.String(registeredGroupFlag, index.DefaultRegisteredGroup, "agent group fragment granting restricted visibility")
	flags.Int(copyWorkersFlag, 0, "maximum concurrent copy sub-groups (defaults to GOMAXPROCS)")
	flags.String(rootNodeFlag, memory.DefaultRootNode, "containment root whose memberships are ignored for nesting")
	flags.String(logFormatFlag, "text", "the log format to output logs in ('text' or 'json')")
	flags.String(logLevelFlag, "info", "the log level to use")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runExport(_ *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(viper.GetString(logFormatFlag), viper.GetString(logLevelFlag))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()
	runLog := log.With(zap.String("run_id", ulid.Make().String()))

	graphPath := viper.GetString(graphPathFlag)
	mappingPath := viper.GetString(mappingPathFlag)
	binaryRoot := viper.GetString(binaryRootFlag)
	if graphPath == "" || mappingPath == "" || binaryRoot == "" {
		return fmt.Errorf("%s, %s and %s are required", graphPathFlag, mappingPathFlag, binaryRootFlag)
	}

	store, err := memory.NewFromFile(graphPath, memory.WithRootNode(viper.GetString(rootNodeFlag)))
	if err != nil {
		return fmt.Errorf("load graph snapshot %s: %w", graphPath, err)
	}
	runLog.Info("graph snapshot loaded", zap.String("path", graphPath), zap.Int("triples", store.Len()))

	fieldMapping, err := mapping.Load(mappingPath)
	if err != nil {
		return fmt.Errorf("load field mapping %s: %w", mappingPath, err)
	}

	ctx, stop := cmdContext()
	defer stop()

	permTuples, err := store.GroupPermissions(ctx)
	if err != nil {
		return fmt.Errorf("build permissions index: %w", err)
	}
	embargoTuples, err := store.Embargoes(ctx)
	if err != nil {
		return fmt.Errorf("build embargo index: %w", err)
	}
	nestingTuples, err := store.ParentChildren(ctx)
	if err != nil {
		return fmt.Errorf("build nesting index: %w", err)
	}
	runLog.Info("relationship indices built",
		zap.Int("permissions", len(permTuples)),
		zap.Int("embargoes", len(embargoTuples)),
		zap.Int("nestings", len(nestingTuples)))

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	a := assembler.New(assembler.Params{
		Store:         store,
		Permissions:   index.BuildPermissions(permTuples, viper.GetString(publicGroupFlag), viper.GetString(registeredGroupFlag)),
		Embargoes:     index.BuildEmbargoes(embargoTuples, nil),
		Nesting:       index.BuildParentChildren(nestingTuples),
		FieldMapping:  fieldMapping,
		Copier:        copier.New(binaryRoot, viper.GetInt(copyWorkersFlag), runLog, met),
		Logger:        runLog,
		Metrics:       met,
		OutputDir:     viper.GetString(outputDirFlag),
		BatchSize:     viper.GetInt(batchSizeFlag),
		Models:        viper.GetStringSlice(modelsFlag),
		AdminSet:      viper.GetString(adminSetFlag),
		PipeDelimited: viper.GetStringSlice(pipeDelimitedFlag),
	})

	pack := packager.New(runLog)
	summary, err := a.Run(ctx, func(b *assembler.Batch) error {
		_, err := pack.Package(b)
		return err
	})
	if err != nil {
		return err
	}

	runLog.Info("export complete",
		zap.Int("batches", summary.Batches),
		zap.Int("collections", summary.Collections),
		zap.Int("works", summary.Works),
		zap.Int("filesets", summary.FileSets))
	return nil
}
