package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

const root = "http://localhost:8984/rest/prod"

func uri(id string) string {
	return root + "/" + id
}

// fixtureStore models two collections, two works (one nested under the
// other), a fileset with a binary, a group permission, and an embargo.
func fixtureStore() *Store {
	s := New()

	add := func(subj, pred, obj string) {
		s.Add(rdf.Triple{Subject: subj, Predicate: pred, Object: obj})
	}

	add(uri("coll1"), rdf.HasModel, rdf.ModelCollection)
	add(uri("coll1"), "http://purl.org/dc/terms/title", "Collection One")
	add(uri("coll2"), rdf.HasModel, rdf.ModelCollection)
	add(uri("coll2"), "http://purl.org/dc/terms/title", "Collection Two")

	add(uri("work1"), rdf.HasModel, "GenericWork")
	add(uri("work1"), rdf.RDFType, rdf.TypeWork)
	add(uri("work1"), "http://purl.org/dc/terms/title", "Work One")
	add(uri("work1"), rdf.MemberOf, uri("coll1"))
	add(uri("work1"), rdf.IsPartOf, uri("admin_set/default"))

	add(uri("work2"), rdf.HasModel, "GenericWork")
	add(uri("work2"), rdf.RDFType, rdf.TypeWork)
	add(uri("work2"), "http://purl.org/dc/terms/title", "Work Two")

	// work2 is nested under work1, declared on the parent side.
	add(uri("work1"), rdf.HasMember, uri("work2"))
	// Containment from the root must not count as nesting.
	add(root, rdf.HasMember, uri("work1"))

	// fileset under work1 with an original-file binary.
	add(uri("work1"), rdf.HasMember, uri("fs1"))
	add(uri("fs1"), rdf.RDFType, rdf.TypeFileSet)
	add(uri("fs1"), rdf.DownloadFilename, "TestWordDoc.doc")
	add(uri("fs1"), rdf.HasFile, uri("fs1/files/970d6269"))
	add(uri("fs1/files/970d6269"), rdf.RDFType, rdf.TypeOriginalFile)

	// Group permission opening work1 to the public.
	add(uri("perm1"), rdf.HasModel, rdf.ModelPermission)
	add(uri("perm1"), rdf.ACLAgent, "http://projecthydra.org/ns/auth/group#public")
	add(uri("perm1"), rdf.ACLAccessTo, uri("work1"))
	// User-level grants are ignored.
	add(uri("perm2"), rdf.HasModel, rdf.ModelPermission)
	add(uri("perm2"), rdf.ACLAgent, "mailto:someone@example.org")
	add(uri("perm2"), rdf.ACLAccessTo, uri("work1"))

	// Embargo on work2.
	add(uri("emb1"), rdf.HasModel, rdf.ModelEmbargo)
	add(uri("emb1"), rdf.EmbargoReleaseDate, "2031-06-30T00:00:00")
	add(uri("emb1"), rdf.VisibilityDuringEmbargo, "restricted")
	add(uri("emb1"), rdf.VisibilityAfterEmbargo, "open")
	add(uri("work2"), rdf.HasEmbargo, uri("emb1"))

	return s
}

func drainRecords(t *testing.T, iter storage.RecordIterator) []storage.ResourceRecord {
	t.Helper()
	defer iter.Stop()

	var out []storage.ResourceRecord
	for {
		rec, err := iter.Next(context.Background())
		if err != nil {
			require.True(t, errors.Is(err, storage.ErrIteratorDone))
			return out
		}
		out = append(out, rec)
	}
}

func TestCollections(t *testing.T) {
	s := fixtureStore()

	iter, err := s.Collections(context.Background())
	require.NoError(t, err)

	records := drainRecords(t, iter)
	require.Len(t, records, 2)
	require.Equal(t, uri("coll1"), records[0].ID)
	require.Equal(t, uri("coll2"), records[1].ID)
}

func TestWorks(t *testing.T) {
	s := fixtureStore()

	iter, err := s.Works(context.Background(), []string{"GenericWork"}, "")
	require.NoError(t, err)

	records := drainRecords(t, iter)
	require.Len(t, records, 2)
	require.Equal(t, uri("work1"), records[0].ID)
	require.Equal(t, "default", records[0].AdminSet)
	require.Equal(t, uri("work2"), records[1].ID)
}

func TestWorksScopedToAdminSet(t *testing.T) {
	s := fixtureStore()

	iter, err := s.Works(context.Background(), []string{"GenericWork"}, "default")
	require.NoError(t, err)

	records := drainRecords(t, iter)
	require.Len(t, records, 1)
	require.Equal(t, uri("work1"), records[0].ID)
}

func TestAttachments(t *testing.T) {
	s := fixtureStore()

	iter, err := s.Attachments(context.Background())
	require.NoError(t, err)
	defer iter.Stop()

	att, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.AttachmentRecord{
		ParentID: uri("work1"),
		ID:       uri("fs1"),
		Filename: "TestWordDoc.doc",
		FileURI:  uri("fs1/files/970d6269"),
	}, att)

	_, err = iter.Next(context.Background())
	require.ErrorIs(t, err, storage.ErrIteratorDone)
}

func TestGroupPermissions(t *testing.T) {
	s := fixtureStore()

	tuples, err := s.GroupPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []storage.PermissionTuple{
		{Group: "http://projecthydra.org/ns/auth/group#public", Resource: uri("work1")},
	}, tuples)
}

func TestEmbargoes(t *testing.T) {
	s := fixtureStore()

	tuples, err := s.Embargoes(context.Background())
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	require.Equal(t, uri("work2"), tuples[0].Resource)
	require.Equal(t, "restricted", tuples[0].During)
	require.Equal(t, "open", tuples[0].After)
	require.True(t, tuples[0].ReleaseDate.Equal(time.Date(2031, 6, 30, 0, 0, 0, 0, time.UTC)))
}

func TestParentChildren(t *testing.T) {
	s := fixtureStore()

	tuples, err := s.ParentChildren(context.Background())
	require.NoError(t, err)
	require.Equal(t, []storage.ParentChildTuple{
		{Parent: uri("work1"), Child: uri("work2")},
	}, tuples)
}

func TestParseNTriples(t *testing.T) {
	input := `
# snapshot fragment
<http://example.org/a> <http://purl.org/dc/terms/title> "Hello \"World\"" .
<http://example.org/a> <http://example.org/p> <http://example.org/b> .
<http://example.org/a> <http://purl.org/dc/terms/language> "en"@en .
<http://example.org/a> <http://example.org/count> "3"^^<http://www.w3.org/2001/XMLSchema#integer> .
`
	triples, err := parseNTriples(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []rdf.Triple{
		{Subject: "http://example.org/a", Predicate: "http://purl.org/dc/terms/title", Object: `Hello "World"`},
		{Subject: "http://example.org/a", Predicate: "http://example.org/p", Object: "http://example.org/b"},
		{Subject: "http://example.org/a", Predicate: "http://purl.org/dc/terms/language", Object: "en"},
		{Subject: "http://example.org/a", Predicate: "http://example.org/count", Object: "3"},
	}, triples)
}

func TestParseNTriplesRejectsGarbage(t *testing.T) {
	_, err := parseNTriples(strings.NewReader("not a triple\n"))
	require.Error(t, err)
}

func TestWriteToRoundTrip(t *testing.T) {
	s := New()
	s.Add(rdf.Triple{Subject: "http://example.org/b", Predicate: "http://example.org/p", Object: "literal value"})
	s.Add(rdf.Triple{Subject: "http://example.org/a", Predicate: "http://example.org/p", Object: "http://example.org/b"})

	var sb strings.Builder
	_, err := s.WriteTo(&sb)
	require.NoError(t, err)

	// Serialization is sorted by subject.
	require.Equal(t,
		"<http://example.org/a> <http://example.org/p> <http://example.org/b> .\n"+
			"<http://example.org/b> <http://example.org/p> \"literal value\" .\n",
		sb.String())

	reloaded, err := parseNTriples(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
}
