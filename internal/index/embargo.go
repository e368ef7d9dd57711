package index

import (
	"time"

	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// EmbargoIndex maps resource IDs to at most one embargo record. A second
// embargo tuple for the same resource overwrites the first at build time.
type EmbargoIndex struct {
	records map[string]storage.EmbargoTuple
	now     func() time.Time
}

// BuildEmbargoes builds the index from raw embargo tuples. A nil clock
// defaults to wall-clock time.
func BuildEmbargoes(tuples []storage.EmbargoTuple, now func() time.Time) *EmbargoIndex {
	if now == nil {
		now = time.Now
	}

	records := make(map[string]storage.EmbargoTuple, len(tuples))
	for _, t := range tuples {
		records[t.Resource] = t
	}
	return &EmbargoIndex{records: records, now: now}
}

// Apply overlays an active embargo onto the resource and forces embargo
// visibility; an active embargo overrides whatever permissions resolved.
// An expired embargo sets only the configured post-release visibility,
// without attaching embargo fields.
func (e *EmbargoIndex) Apply(r *resource.Resource) *resource.Resource {
	record, ok := e.records[r.ID]
	if !ok {
		return r
	}

	if !record.ReleaseDate.Before(e.now()) {
		r.Visibility = resource.VisibilityEmbargo
		r.Embargo = &resource.Embargo{
			During:      record.During,
			After:       record.After,
			ReleaseDate: record.ReleaseDate,
		}
		return r
	}

	r.Visibility = resource.Visibility(record.After)
	return r
}
