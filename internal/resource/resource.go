// Package resource models the importable entities pulled from the graph
// store: collections, works and filesets, with their visibility state and
// the formatting contract for import rows.
package resource

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/digitalcollections/fcrepo-migrate/pkg/mapping"
	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// Kind discriminates the closed set of resource kinds.
type Kind string

const (
	KindCollection Kind = "collection"
	KindWork       Kind = "work"
	KindFileSet    Kind = "fileset"
)

// Visibility is the resolved access level of a resource.
type Visibility string

const (
	VisibilityOpen       Visibility = "open"
	VisibilityRestricted Visibility = "restricted"
	VisibilityPrivate    Visibility = "private"
	VisibilityEmbargo    Visibility = "embargo"
)

// IdentifierColumn is the primary identifier column of every import row.
const IdentifierColumn = "bulkrax_identifier"

// Embargo is the overlay attached to a resource while its embargo is active.
type Embargo struct {
	During      string
	After       string
	ReleaseDate time.Time
}

// Resource is a single importable entity. ID is assigned once at
// construction and never changes; Parents may grow but never shrinks.
// Filename and FileURI are populated for filesets only.
type Resource struct {
	ID         string
	Kind       Kind
	Fields     map[string][]string
	Parents    []string
	AdminSet   string
	Visibility Visibility
	Embargo    *Embargo
	Filename   string
	FileURI    string
}

// Row is one formatted import row.
type Row map[string]string

// Make builds a Resource of the given kind from one record's grouped
// triples. Mapped predicates populate Fields; the membership predicate (or
// any predicate mapped to "parents") grows Parents; unmapped predicates are
// dropped. The administrative set is captured separately and never emitted.
func Make(rec storage.ResourceRecord, kind Kind, m *mapping.FieldMapping) *Resource {
	r := &Resource{
		ID:         rec.ID,
		Kind:       kind,
		Fields:     make(map[string][]string),
		AdminSet:   rec.AdminSet,
		Visibility: VisibilityOpen,
	}

	for _, t := range rec.Triples {
		field, ok := m.Lookup(t.Predicate)
		if !ok {
			continue
		}
		if field.Name == "parents" {
			r.AddParents(t.Object)
			continue
		}
		if field.Multi {
			r.Fields[field.Name] = append(r.Fields[field.Name], t.Object)
		} else {
			r.Fields[field.Name] = []string{t.Object}
		}
	}

	return r
}

// NewFileSet builds a fileset resource from an attachment record. Filesets
// carry no general field mapping; their attributes are fixed by the
// attachment query.
func NewFileSet(att storage.AttachmentRecord) *Resource {
	return &Resource{
		ID:         att.ID,
		Kind:       KindFileSet,
		Parents:    []string{att.ParentID},
		Visibility: VisibilityOpen,
		Filename:   att.Filename,
		FileURI:    att.FileURI,
	}
}

// AddParents unions ancestor references into Parents, preserving insertion
// order.
func (r *Resource) AddParents(parents ...string) {
	for _, p := range parents {
		if !slices.Contains(r.Parents, p) {
			r.Parents = append(r.Parents, p)
		}
	}
}

// FormatRow formats the resource as an import row. Multi-valued fields on
// the pipe-delimited allow-list join with "|", everything else with "; ".
// Identifier and parent references are reduced to their bare trailing
// components. A resource without an identifier is a construction invariant
// violation.
func (r *Resource) FormatRow(pipeDelimited []string) (Row, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("resource of kind %s has no identifier", r.Kind)
	}

	join := func(field string, values []string) string {
		if slices.Contains(pipeDelimited, field) {
			return strings.Join(values, "|")
		}
		return strings.Join(values, "; ")
	}

	row := Row{
		IdentifierColumn: rdf.URIToID(r.ID),
		"visibility":     string(r.Visibility),
	}

	if r.Kind != KindFileSet {
		row["id"] = rdf.URIToID(r.ID)
	}

	for field, values := range r.Fields {
		row[field] = join(field, values)
	}

	if len(r.Parents) > 0 {
		row["parents"] = join("parents", rdf.URIsToIDs(r.Parents))
	}

	if r.Kind == KindFileSet {
		row["file"] = r.Filename
		row["title"] = r.Filename
	}

	if r.Embargo != nil {
		row["visibility_during_embargo"] = r.Embargo.During
		row["visibility_after_embargo"] = r.Embargo.After
		row["embargo_release_date"] = r.Embargo.ReleaseDate.Format("2006-01-02")
	}

	return row, nil
}
