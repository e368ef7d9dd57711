// Package assembler merges the resource and attachment streams into
// size-bounded import batches, applying the relationship indices and
// enforcing parent-before-child emission ordering.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/digitalcollections/fcrepo-migrate/internal/copier"
	"github.com/digitalcollections/fcrepo-migrate/internal/index"
	"github.com/digitalcollections/fcrepo-migrate/internal/metrics"
	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
	"github.com/digitalcollections/fcrepo-migrate/pkg/logger"
	"github.com/digitalcollections/fcrepo-migrate/pkg/mapping"
	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// DefaultBatchSize bounds a regular batch's row count.
const DefaultBatchSize = 50

// Batch is one import-ready unit: formatted rows plus the binaries copied
// for them. The final batch of a run may exceed the configured size; it is
// the deferred-work flush.
type Batch struct {
	Index  int
	Dir    string
	Rows   []resource.Row
	Copied []string
}

// Summary counts what a run emitted.
type Summary struct {
	Collections int
	Works       int
	FileSets    int
	Batches     int
}

// Params carries the assembler's collaborators. Indices must be fully built
// before assembly starts; they are shared read-only across the run.
type Params struct {
	Store         storage.GraphStore
	Permissions   *index.PermissionsIndex
	Embargoes     *index.EmbargoIndex
	Nesting       *index.ParentChildIndex
	FieldMapping  *mapping.FieldMapping
	Copier        *copier.Copier
	Logger        logger.Logger
	Metrics       *metrics.Metrics
	OutputDir     string
	BatchSize     int
	Models        []string
	AdminSet      string
	PipeDelimited []string
}

// Assembler is the single-threaded batch state machine. Only file copying
// inside a closing batch runs concurrently; batch N+1 is not assembled until
// the consumer of batch N returns.
type Assembler struct {
	p Params
}

func New(p Params) *Assembler {
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.Logger == nil {
		p.Logger = logger.NewNoopLogger()
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NewNoop()
	}
	return &Assembler{p: p}
}

// run-scoped state, owned by the assembling goroutine exclusively.
type runState struct {
	emittedCollections map[string]struct{}
	emittedWorks       map[string]struct{}

	deferredWorks    []*resource.Resource
	deferredFileSets []resource.Row
	deferredRefs     []copier.FileRef

	rows  []resource.Row
	refs  []copier.FileRef
	index int

	batchCounts map[resource.Kind]int
	summary     Summary
}

// Run pulls both streams to exhaustion, invoking emit once per completed
// batch. Deferred works and their attachments are flushed as exactly one
// final batch after every regular batch has been emitted.
func (a *Assembler) Run(ctx context.Context, emit func(*Batch) error) (Summary, error) {
	st := &runState{
		emittedCollections: make(map[string]struct{}),
		emittedWorks:       make(map[string]struct{}),
		batchCounts:        make(map[resource.Kind]int),
	}

	collections, err := a.p.Store.Collections(ctx)
	if err != nil {
		return st.summary, fmt.Errorf("query collections: %w", err)
	}
	defer collections.Stop()

	works, err := a.p.Store.Works(ctx, a.p.Models, a.p.AdminSet)
	if err != nil {
		return st.summary, fmt.Errorf("query works: %w", err)
	}
	defer works.Stop()

	attachments, err := a.p.Store.Attachments(ctx)
	if err != nil {
		return st.summary, fmt.Errorf("query attachments: %w", err)
	}
	defer attachments.Stop()

	next := &lookahead{iter: attachments}
	if err := next.advance(ctx); err != nil {
		return st.summary, err
	}

	// Collections in full, then works; both streams are ID-ordered.
	if err := a.drainResources(ctx, st, collections, resource.KindCollection, next, emit); err != nil {
		return st.summary, err
	}
	if err := a.drainResources(ctx, st, works, resource.KindWork, next, emit); err != nil {
		return st.summary, err
	}

	// Attachments sorting after the last in-scope work are ownerless too.
	for next.ok {
		a.warnStranded(next.att)
		if err := next.advance(ctx); err != nil {
			return st.summary, err
		}
	}

	// Leftover rows below the threshold still form a regular batch, and it
	// must precede the deferred flush.
	if len(st.rows) > 0 {
		if err := a.closeBatch(ctx, st, emit); err != nil {
			return st.summary, err
		}
	}

	if err := a.flushDeferred(ctx, st, emit); err != nil {
		return st.summary, err
	}
	return st.summary, nil
}

func (a *Assembler) drainResources(
	ctx context.Context,
	st *runState,
	iter storage.RecordIterator,
	kind resource.Kind,
	next *lookahead,
	emit func(*Batch) error,
) error {
	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrIteratorDone) {
				return nil
			}
			return fmt.Errorf("read %s stream: %w", kind, err)
		}
		if err := a.handleResource(ctx, st, rec, kind, next, emit); err != nil {
			return err
		}
	}
}

func (a *Assembler) handleResource(
	ctx context.Context,
	st *runState,
	rec storage.ResourceRecord,
	kind resource.Kind,
	next *lookahead,
	emit func(*Batch) error,
) error {
	r := resource.Make(rec, kind, a.p.FieldMapping)

	// Permission resolution must precede embargo resolution: an active
	// embargo overrides whatever permissions computed.
	a.applyIndices(r, true)

	deferred := a.shouldDefer(st, r)
	if deferred {
		st.deferredWorks = append(st.deferredWorks, r)
	} else {
		if kind == resource.KindCollection {
			st.emittedCollections[r.ID] = struct{}{}
		} else {
			st.emittedWorks[r.ID] = struct{}{}
		}
		if err := a.appendRow(ctx, st, r, emit); err != nil {
			return err
		}
	}

	// The attachment stream is unscoped: model and admin-set filters apply
	// to works only. Heads owned by a filtered-out work would otherwise
	// block every attachment behind them.
	if kind == resource.KindWork {
		if err := a.skipStranded(ctx, next, rec.ID); err != nil {
			return err
		}
	}

	// Prefix-take the attachments owned by this resource; the attachment
	// stream shares the resource stream's ID order.
	for next.ok && next.att.ParentID == rec.ID {
		if err := a.handleAttachment(ctx, st, next.att, deferred, emit); err != nil {
			return err
		}
		if err := next.advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

// skipStranded discards attachment heads owned by works the scope filters
// excluded, so the prefix-take below can reach this resource's attachments.
func (a *Assembler) skipStranded(ctx context.Context, next *lookahead, resourceID string) error {
	for next.ok && next.att.ParentID < resourceID {
		a.warnStranded(next.att)
		if err := next.advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) warnStranded(att storage.AttachmentRecord) {
	a.p.Logger.Warn("attachment owner not in export scope, fileset skipped",
		zap.String("fileset", rdf.URIToID(att.ID)),
		zap.String("owner", rdf.URIToID(att.ParentID)))
}

// shouldDefer reports whether the resource must wait for the final batch.
// Collections are never deferred. A work defers when any declared parent has
// not been emitted as a collection yet: its parent is another work, and
// import order must put the parent in a strictly earlier batch.
func (a *Assembler) shouldDefer(st *runState, r *resource.Resource) bool {
	if r.Kind == resource.KindCollection || len(r.Parents) == 0 {
		return false
	}
	for _, parent := range r.Parents {
		if _, ok := st.emittedCollections[parent]; !ok {
			return true
		}
	}
	return false
}

func (a *Assembler) handleAttachment(
	ctx context.Context,
	st *runState,
	att storage.AttachmentRecord,
	deferred bool,
	emit func(*Batch) error,
) error {
	fs := resource.NewFileSet(att)
	// The parent/child index does not apply to attachments.
	a.applyIndices(fs, false)

	row, err := fs.FormatRow(a.p.PipeDelimited)
	if err != nil {
		return fmt.Errorf("batch %d: format fileset row: %w", st.index, err)
	}

	var ref *copier.FileRef
	src, err := a.p.Copier.ResolvePath(att.FileURI)
	if err != nil {
		// The row is still imported; only the binary is lost.
		a.p.Logger.Warn("unresolvable binary location, row kept without file",
			zap.String("fileset", rdf.URIToID(att.ID)),
			zap.Error(err))
	} else {
		ref = &copier.FileRef{SourcePath: src, Filename: att.Filename}
	}

	if deferred {
		st.deferredFileSets = append(st.deferredFileSets, row)
		if ref != nil {
			st.deferredRefs = append(st.deferredRefs, *ref)
		}
		return nil
	}

	if ref != nil {
		st.refs = append(st.refs, *ref)
	}
	st.rows = append(st.rows, row)
	st.batchCounts[resource.KindFileSet]++
	st.summary.FileSets++
	if len(st.rows) >= a.p.BatchSize {
		return a.closeBatch(ctx, st, emit)
	}
	return nil
}

func (a *Assembler) applyIndices(r *resource.Resource, withNesting bool) {
	a.p.Permissions.Apply(r)
	a.p.Embargoes.Apply(r)
	if withNesting {
		a.p.Nesting.Apply(r)
	}
}

func (a *Assembler) appendRow(ctx context.Context, st *runState, r *resource.Resource, emit func(*Batch) error) error {
	row, err := r.FormatRow(a.p.PipeDelimited)
	if err != nil {
		return fmt.Errorf("batch %d: format %s row: %w", st.index, r.Kind, err)
	}
	st.rows = append(st.rows, row)
	st.batchCounts[r.Kind]++
	switch r.Kind {
	case resource.KindCollection:
		st.summary.Collections++
	case resource.KindWork:
		st.summary.Works++
	}
	if len(st.rows) >= a.p.BatchSize {
		return a.closeBatch(ctx, st, emit)
	}
	return nil
}

// closeBatch copies the enqueued binaries, hands the batch to the consumer,
// and resets the per-batch state. The copier is invoked synchronously; no
// cross-batch concurrency exists.
func (a *Assembler) closeBatch(ctx context.Context, st *runState, emit func(*Batch) error) error {
	dir := filepath.Join(a.p.OutputDir, fmt.Sprintf("batch_%d", st.index))
	copied := a.p.Copier.Copy(ctx, filepath.Join(dir, "files"), st.refs, st.index)

	batch := &Batch{
		Index:  st.index,
		Dir:    dir,
		Rows:   st.rows,
		Copied: copied,
	}
	a.logBatch(st, batch)
	if err := emit(batch); err != nil {
		return fmt.Errorf("batch %d: %w", st.index, err)
	}

	st.rows = nil
	st.refs = nil
	st.batchCounts = make(map[resource.Kind]int)
	st.index++
	st.summary.Batches++
	return nil
}

// flushDeferred emits every deferred work followed by every deferred
// attachment as one final batch, guaranteeing that all possible ancestors
// are already committed. Declared parents that were never emitted anywhere
// are surfaced as warnings; the rows are still emitted.
func (a *Assembler) flushDeferred(ctx context.Context, st *runState, emit func(*Batch) error) error {
	if len(st.deferredWorks) == 0 && len(st.deferredFileSets) == 0 {
		return nil
	}

	deferredIDs := make(map[string]struct{}, len(st.deferredWorks))
	for _, w := range st.deferredWorks {
		deferredIDs[w.ID] = struct{}{}
	}

	for _, w := range st.deferredWorks {
		for _, parent := range w.Parents {
			if _, ok := st.emittedCollections[parent]; ok {
				continue
			}
			if _, ok := st.emittedWorks[parent]; ok {
				continue
			}
			if _, ok := deferredIDs[parent]; ok {
				continue
			}
			a.p.Logger.Warn("deferred work references a parent that was never emitted",
				zap.String("work", rdf.URIToID(w.ID)),
				zap.String("parent", rdf.URIToID(parent)))
		}

		row, err := w.FormatRow(a.p.PipeDelimited)
		if err != nil {
			return fmt.Errorf("final batch %d: format deferred row: %w", st.index, err)
		}
		st.rows = append(st.rows, row)
		st.batchCounts[resource.KindWork]++
		st.summary.Works++
	}

	st.rows = append(st.rows, st.deferredFileSets...)
	st.batchCounts[resource.KindFileSet] += len(st.deferredFileSets)
	st.summary.FileSets += len(st.deferredFileSets)
	st.refs = append(st.refs, st.deferredRefs...)

	return a.closeBatch(ctx, st, emit)
}

func (a *Assembler) logBatch(st *runState, b *Batch) {
	a.p.Logger.Info("batch assembled",
		zap.Int("batch", b.Index),
		zap.Int("rows", len(b.Rows)),
		zap.Int("collections", st.batchCounts[resource.KindCollection]),
		zap.Int("works", st.batchCounts[resource.KindWork]),
		zap.Int("filesets", st.batchCounts[resource.KindFileSet]),
		zap.Int("files_copied", len(b.Copied)))

	for kind, n := range st.batchCounts {
		a.p.Metrics.ResourcesEmitted.WithLabelValues(string(kind)).Add(float64(n))
	}
	a.p.Metrics.BatchesPackaged.Inc()
}

// lookahead keeps the attachment stream's head visible for prefix-taking.
type lookahead struct {
	iter storage.AttachmentIterator
	att  storage.AttachmentRecord
	ok   bool
}

func (l *lookahead) advance(ctx context.Context) error {
	att, err := l.iter.Next(ctx)
	if err != nil {
		l.ok = false
		if errors.Is(err, storage.ErrIteratorDone) {
			return nil
		}
		return fmt.Errorf("read attachment stream: %w", err)
	}
	l.att = att
	l.ok = true
	return nil
}
