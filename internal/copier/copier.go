// Package copier copies attachment binaries into batch directories with
// bounded concurrency. Failures are isolated to fixed-size sub-groups of
// files: one bad copy drops its whole sub-group from the result, never the
// run.
package copier

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/internal/concurrency"
	"github.com/digitalcollections/fcrepo-migrate/internal/metrics"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
)

// subgroupSize is the number of files submitted to one pool task. A copy
// failure discards at most this many files.
const subgroupSize = 10

// binarySuffix is the on-disk suffix of repository binaries.
const binarySuffix = ".binary"

// FileRef names one binary to copy and the display filename to copy it as.
type FileRef struct {
	SourcePath string
	Filename   string
}

// Copier is safe for reuse across batches; it holds no per-batch state.
type Copier struct {
	root       string
	maxWorkers int
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// New returns a Copier resolving binaries under root. A non-positive
// maxWorkers defaults to the host's available parallelism.
func New(root string, maxWorkers int, log logger.Logger, met *metrics.Metrics) *Copier {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	if met == nil {
		met = metrics.NewNoop()
	}
	return &Copier{root: root, maxWorkers: maxWorkers, logger: log, metrics: met}
}

// ResolvePath derives the on-disk binary location from a stored file URI:
// the URI path under the binary root, with the repository suffix appended.
func (c *Copier) ResolvePath(fileURI string) (string, error) {
	u, err := url.Parse(fileURI)
	if err != nil {
		return "", fmt.Errorf("parse file uri %q: %w", fileURI, err)
	}
	return filepath.Join(c.root, filepath.FromSlash(u.Path)) + binarySuffix, nil
}

// subgroupResult carries either the copied paths or the structured failure
// of one sub-group.
type subgroupResult struct {
	paths []string
	err   error
}

// Copy copies every referenced binary into destDir, renamed to its display
// filename. It blocks until all sub-groups complete and returns the copied
// paths. Sub-groups that fail are logged with the batch context and dropped;
// Copy never fails the run.
func (c *Copier) Copy(ctx context.Context, destDir string, refs []FileRef, batchIndex int) []string {
	if len(refs) == 0 {
		return nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.logger.Error("create batch files directory",
			zap.Int("batch", batchIndex),
			zap.String("dir", destDir),
			zap.Error(err))
		c.metrics.CopySubgroupFailures.Inc()
		return nil
	}

	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.Filename]; dup {
			c.logger.Warn("duplicate display filename in batch, later copy overwrites",
				zap.Int("batch", batchIndex),
				zap.String("filename", ref.Filename))
		}
		seen[ref.Filename] = struct{}{}
	}

	groups := partition(refs, subgroupSize)
	results := make([]subgroupResult, len(groups))

	p := concurrency.NewPool(ctx, c.maxWorkers)
	for i, group := range groups {
		p.Go(func(ctx context.Context) error {
			paths, err := copyGroup(ctx, destDir, group)
			results[i] = subgroupResult{paths: paths, err: err}
			return nil
		})
	}
	_ = p.Wait()

	var copied []string
	for i, res := range results {
		if res.err != nil {
			c.logger.Error("file copy sub-group failed, dropping its files",
				zap.Int("batch", batchIndex),
				zap.Int("subgroup", i),
				zap.Int("files", len(groups[i])),
				zap.Error(res.err))
			c.metrics.CopySubgroupFailures.Inc()
			continue
		}
		copied = append(copied, res.paths...)
		c.metrics.FilesCopied.Add(float64(len(res.paths)))
	}
	return copied
}

// copyGroup copies one sub-group sequentially. The first failure discards
// the sub-group's partial successes.
func copyGroup(ctx context.Context, destDir string, refs []FileRef) ([]string, error) {
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(destDir, ref.Filename)
		if err := copyFile(ref.SourcePath, dst); err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func partition(refs []FileRef, size int) [][]FileRef {
	var groups [][]FileRef
	for size < len(refs) {
		groups = append(groups, refs[:size])
		refs = refs[size:]
	}
	return append(groups, refs)
}
