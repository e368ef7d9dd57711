// Package storage defines the read contracts the export pipeline has with a
// repository graph store: ordered iterators over resources and attachments,
// and one-shot queries for the relationship tuple sets.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
)

// ErrIteratorDone is returned by Iterator.Next when no items remain.
var ErrIteratorDone = errors.New("iterator done")

// Iterator iterates over items of type T. It is closed by explicitly calling
// Stop() or by calling Next() until it returns ErrIteratorDone.
type Iterator[T any] interface {
	// Next returns the next available item. If the context is cancelled it
	// returns ErrIteratorDone.
	Next(ctx context.Context) (T, error)
	// Stop terminates iteration over the underlying iterator.
	Stop()
}

// ResourceRecord is one resource's grouped triples, keyed by the resource URI.
// AdminSet carries the owning administrative set, when one is declared; it is
// captured for scoping only and never emitted.
type ResourceRecord struct {
	ID       string
	Triples  []rdf.Triple
	AdminSet string
}

// AttachmentRecord is one file attachment, keyed by the URI of the work that
// owns it. FileURI locates the binary inside the repository tree.
type AttachmentRecord struct {
	ParentID string
	ID       string
	Filename string
	FileURI  string
}

// RecordIterator iterates resources in ascending ID order.
type RecordIterator = Iterator[ResourceRecord]

// AttachmentIterator iterates attachments grouped by owning resource, in
// ascending owner-ID order.
type AttachmentIterator = Iterator[AttachmentRecord]

// PermissionTuple grants a group access to a resource.
type PermissionTuple struct {
	Group    string
	Resource string
}

// EmbargoTuple is a time-bound access restriction on a resource.
type EmbargoTuple struct {
	Resource    string
	During      string
	After       string
	ReleaseDate time.Time
}

// ParentChildTuple records work-under-work nesting that is declared on the
// parent rather than the child.
type ParentChildTuple struct {
	Parent string
	Child  string
}

// GraphStore is the read-only, pre-loaded repository graph. All iterators are
// already ordered by resource identifier; the pipeline consumes the given
// order and never re-sorts.
type GraphStore interface {
	// Collections returns every resource whose model is Collection.
	Collections(ctx context.Context) (RecordIterator, error)

	// Works returns every resource matching one of the configured work
	// models, optionally scoped to a single administrative set ID.
	Works(ctx context.Context, models []string, adminSet string) (RecordIterator, error)

	// Attachments returns every file attachment, grouped by owning work.
	Attachments(ctx context.Context) (AttachmentIterator, error)

	// GroupPermissions returns all group access tuples.
	GroupPermissions(ctx context.Context) ([]PermissionTuple, error)

	// Embargoes returns all embargo tuples.
	Embargoes(ctx context.Context) ([]EmbargoTuple, error)

	// ParentChildren returns all work nesting tuples.
	ParentChildren(ctx context.Context) ([]ParentChildTuple, error)
}

type staticIterator[T any] struct {
	items []T
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var val T
	select {
	case <-ctx.Done():
		return val, ErrIteratorDone
	default:
		if len(s.items) == 0 {
			return val, ErrIteratorDone
		}

		next, rest := s.items[0], s.items[1:]
		s.items = rest

		return next, nil
	}
}

func (s *staticIterator[T]) Stop() {}

// NewStaticIterator returns an Iterator that yields the provided slice in
// order.
func NewStaticIterator[T any](items []T) Iterator[T] {
	return &staticIterator[T]{items: items}
}
