// Package memory implements storage.GraphStore over an embedded triple set
// loaded from an N-Triples snapshot. The store is append-only while a
// snapshot is being assembled and read-only for the duration of an export.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

// DefaultRootNode is the containment root of a standard repository export.
// Children of the root are top-level resources, not nested works.
const DefaultRootNode = "http://localhost:8984/rest/prod"

type Store struct {
	mu sync.RWMutex

	triples     []rdf.Triple
	bySubject   map[string][]rdf.Triple
	byPredicate map[string][]rdf.Triple

	rootNode string
}

var _ storage.GraphStore = (*Store)(nil)

type Option func(*Store)

// WithRootNode overrides the containment root used to distinguish top-level
// resources from nested works.
func WithRootNode(uri string) Option {
	return func(s *Store) {
		s.rootNode = uri
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		bySubject:   make(map[string][]rdf.Triple),
		byPredicate: make(map[string][]rdf.Triple),
		rootNode:    DefaultRootNode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromFile loads an N-Triples snapshot. An unreadable or malformed
// snapshot is a configuration error and aborts the run.
func NewFromFile(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile parses an N-Triples file and adds every statement to the store.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph snapshot %q: %w", path, err)
	}
	defer f.Close()

	triples, err := parseNTriples(f)
	if err != nil {
		return fmt.Errorf("parse graph snapshot %q: %w", path, err)
	}
	for _, t := range triples {
		s.Add(t)
	}
	return nil
}

// Add appends a statement to the store.
func (s *Store) Add(t rdf.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triples = append(s.triples, t)
	s.bySubject[t.Subject] = append(s.bySubject[t.Subject], t)
	s.byPredicate[t.Predicate] = append(s.byPredicate[t.Predicate], t)
}

// Len returns the number of statements in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// Triples returns a copy of every statement, sorted by subject, predicate,
// object. The sort makes snapshot serialization deterministic.
func (s *Store) Triples() []rdf.Triple {
	s.mu.RLock()
	out := make([]rdf.Triple, len(s.triples))
	copy(out, s.triples)
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Object < b.Object
	})
	return out
}

// objectOf returns the object of the first (subject, predicate, ?) statement.
func (s *Store) objectOf(subject, predicate string) (string, bool) {
	for _, t := range s.bySubject[subject] {
		if t.Predicate == predicate {
			return t.Object, true
		}
	}
	return "", false
}

// objectsOf returns every object of (subject, predicate, ?) statements.
func (s *Store) objectsOf(subject, predicate string) []string {
	var out []string
	for _, t := range s.bySubject[subject] {
		if t.Predicate == predicate {
			out = append(out, t.Object)
		}
	}
	return out
}

func (s *Store) hasType(subject, typeIRI string) bool {
	for _, t := range s.bySubject[subject] {
		if t.Predicate == rdf.RDFType && t.Object == typeIRI {
			return true
		}
	}
	return false
}

// resourcesWithModel builds one ResourceRecord per subject carrying any of
// the given hasModel literals, sorted by subject URI.
func (s *Store) resourcesWithModel(models map[string]struct{}) []storage.ResourceRecord {
	subjects := make(map[string]struct{})
	for _, t := range s.byPredicate[rdf.HasModel] {
		if _, ok := models[t.Object]; ok {
			subjects[t.Subject] = struct{}{}
		}
	}

	records := make([]storage.ResourceRecord, 0, len(subjects))
	for subject := range subjects {
		rec := storage.ResourceRecord{ID: subject}
		rec.Triples = append(rec.Triples, s.bySubject[subject]...)
		if adminSet, ok := s.objectOf(subject, rdf.IsPartOf); ok {
			rec.AdminSet = rdf.URIToID(adminSet)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Collections implements storage.GraphStore.
func (s *Store) Collections(ctx context.Context) (storage.RecordIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.resourcesWithModel(map[string]struct{}{rdf.ModelCollection: {}})
	return storage.NewStaticIterator(records), nil
}

// Works implements storage.GraphStore.
func (s *Store) Works(ctx context.Context, models []string, adminSet string) (storage.RecordIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(models))
	for _, m := range models {
		wanted[m] = struct{}{}
	}

	records := s.resourcesWithModel(wanted)
	if adminSet != "" {
		scoped := records[:0]
		for _, rec := range records {
			if rec.AdminSet == adminSet {
				scoped = append(scoped, rec)
			}
		}
		records = scoped
	}
	return storage.NewStaticIterator(records), nil
}

// Attachments implements storage.GraphStore. An attachment is a FileSet
// member of a work that has a download filename and an original-file binary.
func (s *Store) Attachments(ctx context.Context) (storage.AttachmentIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []storage.AttachmentRecord
	for _, member := range s.byPredicate[rdf.HasMember] {
		fileSet := member.Object
		if !s.hasType(fileSet, rdf.TypeFileSet) {
			continue
		}
		filename, ok := s.objectOf(fileSet, rdf.DownloadFilename)
		if !ok {
			continue
		}
		for _, fileURI := range s.objectsOf(fileSet, rdf.HasFile) {
			if !s.hasType(fileURI, rdf.TypeOriginalFile) {
				continue
			}
			records = append(records, storage.AttachmentRecord{
				ParentID: member.Subject,
				ID:       fileSet,
				Filename: filename,
				FileURI:  fileURI,
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].ParentID != records[j].ParentID {
			return records[i].ParentID < records[j].ParentID
		}
		return records[i].ID < records[j].ID
	})
	return storage.NewStaticIterator(records), nil
}

// GroupPermissions implements storage.GraphStore. Only group agents are
// returned; user-level grants do not affect import visibility.
func (s *Store) GroupPermissions(ctx context.Context) ([]storage.PermissionTuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tuples []storage.PermissionTuple
	for _, t := range s.byPredicate[rdf.HasModel] {
		if t.Object != rdf.ModelPermission {
			continue
		}
		agent, ok := s.objectOf(t.Subject, rdf.ACLAgent)
		if !ok || !rdf.IsGroupAgent(agent) {
			continue
		}
		resource, ok := s.objectOf(t.Subject, rdf.ACLAccessTo)
		if !ok {
			continue
		}
		tuples = append(tuples, storage.PermissionTuple{Group: agent, Resource: resource})
	}

	sort.Slice(tuples, func(i, j int) bool {
		if tuples[i].Resource != tuples[j].Resource {
			return tuples[i].Resource < tuples[j].Resource
		}
		return tuples[i].Group < tuples[j].Group
	})
	return tuples, nil
}

// Embargoes implements storage.GraphStore.
func (s *Store) Embargoes(ctx context.Context) ([]storage.EmbargoTuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Embargo records hang off the resource via hasEmbargo; index them first.
	embargoToResource := make(map[string]string)
	for _, t := range s.byPredicate[rdf.HasEmbargo] {
		embargoToResource[t.Object] = t.Subject
	}

	var tuples []storage.EmbargoTuple
	for _, t := range s.byPredicate[rdf.HasModel] {
		if t.Object != rdf.ModelEmbargo {
			continue
		}
		resource, ok := embargoToResource[t.Subject]
		if !ok {
			continue
		}
		release, ok := s.objectOf(t.Subject, rdf.EmbargoReleaseDate)
		if !ok {
			continue
		}
		releaseDate, err := parseDate(release)
		if err != nil {
			return nil, fmt.Errorf("embargo on %s: %w", resource, err)
		}
		during, _ := s.objectOf(t.Subject, rdf.VisibilityDuringEmbargo)
		after, _ := s.objectOf(t.Subject, rdf.VisibilityAfterEmbargo)
		tuples = append(tuples, storage.EmbargoTuple{
			Resource:    resource,
			During:      during,
			After:       after,
			ReleaseDate: releaseDate,
		})
	}

	sort.Slice(tuples, func(i, j int) bool { return tuples[i].Resource < tuples[j].Resource })
	return tuples, nil
}

// ParentChildren implements storage.GraphStore. Membership of the containment
// root does not count as nesting.
func (s *Store) ParentChildren(ctx context.Context) ([]storage.ParentChildTuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tuples []storage.ParentChildTuple
	for _, t := range s.byPredicate[rdf.HasMember] {
		if t.Subject == s.rootNode {
			continue
		}
		if !s.hasType(t.Object, rdf.TypeWork) {
			continue
		}
		tuples = append(tuples, storage.ParentChildTuple{Parent: t.Subject, Child: t.Object})
	}

	sort.Slice(tuples, func(i, j int) bool {
		if tuples[i].Child != tuples[j].Child {
			return tuples[i].Child < tuples[j].Child
		}
		return tuples[i].Parent < tuples[j].Parent
	})
	return tuples, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable release date %q", s)
}
