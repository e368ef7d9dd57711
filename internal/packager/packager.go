// Package packager turns assembled batches into import-ready zip archives:
// one CSV manifest plus the copied binaries under files/.
package packager

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/internal/assembler"
	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
)

type Packager struct {
	logger logger.Logger
}

func New(log logger.Logger) *Packager {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Packager{logger: log}
}

// Package writes batch N as <dir>/import_N.zip and returns the archive path.
// The CSV header is the union of every row's columns, identifier first; rows
// keep their assembly order. Any failure here is fatal to the run.
func (p *Packager) Package(batch *assembler.Batch) (string, error) {
	if err := os.MkdirAll(batch.Dir, 0o755); err != nil {
		return "", fmt.Errorf("batch %d: create batch directory: %w", batch.Index, err)
	}

	zipPath := filepath.Join(batch.Dir, fmt.Sprintf("import_%d.zip", batch.Index))
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("batch %d: create archive: %w", batch.Index, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := p.writeManifest(zw, batch); err != nil {
		return "", err
	}
	if err := p.writeFiles(zw, batch); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("batch %d: finalize archive: %w", batch.Index, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("batch %d: flush archive: %w", batch.Index, err)
	}

	p.logger.Info("batch packaged",
		zap.Int("batch", batch.Index),
		zap.Int("rows", len(batch.Rows)),
		zap.Int("files", len(batch.Copied)),
		zap.String("archive", zipPath))
	return zipPath, nil
}

func (p *Packager) writeManifest(zw *zip.Writer, batch *assembler.Batch) error {
	entry, err := zw.Create(fmt.Sprintf("import_%d.csv", batch.Index))
	if err != nil {
		return fmt.Errorf("batch %d: create manifest entry: %w", batch.Index, err)
	}

	header := Header(batch.Rows)
	w := csv.NewWriter(entry)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("batch %d: write manifest header: %w", batch.Index, err)
	}
	record := make([]string, len(header))
	for _, row := range batch.Rows {
		for i, col := range header {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("batch %d: write manifest row: %w", batch.Index, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("batch %d: flush manifest: %w", batch.Index, err)
	}
	return nil
}

func (p *Packager) writeFiles(zw *zip.Writer, batch *assembler.Batch) error {
	// Colliding display filenames reach us as repeated paths; the archive
	// gets one entry per name.
	seen := make(map[string]struct{}, len(batch.Copied))
	for _, src := range batch.Copied {
		name := filepath.Base(src)
		if _, dup := seen[name]; dup {
			p.logger.Warn("duplicate filename in batch, archiving once",
				zap.Int("batch", batch.Index),
				zap.String("filename", name))
			continue
		}
		seen[name] = struct{}{}
		if err := p.addFile(zw, batch.Index, src); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packager) addFile(zw *zip.Writer, batchIndex int, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("batch %d: open copied binary: %w", batchIndex, err)
	}
	defer in.Close()

	entry, err := zw.Create(path.Join("files", filepath.Base(src)))
	if err != nil {
		return fmt.Errorf("batch %d: create file entry: %w", batchIndex, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("batch %d: archive %s: %w", batchIndex, filepath.Base(src), err)
	}
	return nil
}

// Header computes the manifest column order for a set of rows: the identifier
// column leads, every other observed column follows sorted.
func Header(rows []resource.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			seen[col] = struct{}{}
		}
	}
	delete(seen, resource.IdentifierColumn)

	rest := make([]string, 0, len(seen))
	for col := range seen {
		rest = append(rest, col)
	}
	sort.Strings(rest)
	return append([]string{resource.IdentifierColumn}, rest...)
}
