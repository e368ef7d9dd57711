package index

import (
	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// ParentChildIndex maps child resource IDs to the ancestors declared on the
// parent side of the membership relation. It captures work-under-work
// nesting that the membership predicate on the child does not.
type ParentChildIndex struct {
	parents map[string][]string
}

// BuildParentChildren builds the index from raw nesting tuples.
func BuildParentChildren(tuples []storage.ParentChildTuple) *ParentChildIndex {
	parents := make(map[string][]string)
	for _, t := range tuples {
		parents[t.Child] = append(parents[t.Child], t.Parent)
	}
	return &ParentChildIndex{parents: parents}
}

// Apply unions any indexed ancestors into the resource's parent set.
func (p *ParentChildIndex) Apply(r *resource.Resource) *resource.Resource {
	if ancestors, ok := p.parents[r.ID]; ok {
		r.AddParents(ancestors...)
	}
	return r
}
