package resource

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalcollections/fcrepo-migrate/pkg/mapping"
	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
	"github.com/digitalcollections/fcrepo-migrate/pkg/storage"
)

func testMapping(t *testing.T) *mapping.FieldMapping {
	t.Helper()
	m, err := mapping.Parse(strings.NewReader(`predicate,bulkrax_field,multi
http://purl.org/dc/terms/title,title,false
http://schema.org/keywords,keyword,true
`))
	require.NoError(t, err)
	return m
}

func workRecord() storage.ResourceRecord {
	id := "http://localhost:8984/rest/prod/6t/05/3f/96/6t053f96k"
	return storage.ResourceRecord{
		ID:       id,
		AdminSet: "default",
		Triples: []rdf.Triple{
			{Subject: id, Predicate: "http://purl.org/dc/terms/title", Object: "A Work"},
			{Subject: id, Predicate: "http://schema.org/keywords", Object: "alpha"},
			{Subject: id, Predicate: "http://schema.org/keywords", Object: "beta"},
			{Subject: id, Predicate: rdf.MemberOf, Object: "http://localhost:8984/rest/prod/j6/73/13/76/j67313767"},
			{Subject: id, Predicate: "http://example.org/unmapped", Object: "dropped"},
		},
	}
}

func TestMake(t *testing.T) {
	r := Make(workRecord(), KindWork, testMapping(t))

	require.Equal(t, "http://localhost:8984/rest/prod/6t/05/3f/96/6t053f96k", r.ID)
	require.Equal(t, KindWork, r.Kind)
	require.Equal(t, VisibilityOpen, r.Visibility)
	require.Equal(t, "default", r.AdminSet)
	require.Equal(t, []string{"A Work"}, r.Fields["title"])
	require.Equal(t, []string{"alpha", "beta"}, r.Fields["keyword"])
	require.Equal(t, []string{"http://localhost:8984/rest/prod/j6/73/13/76/j67313767"}, r.Parents)
	require.NotContains(t, r.Fields, "http://example.org/unmapped")
}

func TestAddParentsNeverShrinks(t *testing.T) {
	r := Make(workRecord(), KindWork, testMapping(t))
	require.Len(t, r.Parents, 1)

	r.AddParents("http://localhost:8984/rest/prod/pa/re/nt/01/parent01")
	r.AddParents("http://localhost:8984/rest/prod/j6/73/13/76/j67313767") // duplicate
	require.Equal(t, []string{
		"http://localhost:8984/rest/prod/j6/73/13/76/j67313767",
		"http://localhost:8984/rest/prod/pa/re/nt/01/parent01",
	}, r.Parents)
}

func TestFormatRow(t *testing.T) {
	r := Make(workRecord(), KindWork, testMapping(t))

	row, err := r.FormatRow([]string{"keyword"})
	require.NoError(t, err)

	require.Equal(t, "6t053f96k", row[IdentifierColumn])
	require.Equal(t, "6t053f96k", row["id"])
	require.Equal(t, "open", row["visibility"])
	require.Equal(t, "A Work", row["title"])
	require.Equal(t, "alpha|beta", row["keyword"])
	require.Equal(t, "j67313767", row["parents"])
	require.NotContains(t, row, "http://example.org/unmapped")
}

func TestFormatRowMultipleParentsSemicolonJoin(t *testing.T) {
	r := Make(workRecord(), KindWork, testMapping(t))
	r.AddParents("http://localhost:8984/rest/prod/pa/re/nt/01/parent01")

	row, err := r.FormatRow(nil)
	require.NoError(t, err)
	require.Equal(t, "j67313767; parent01", row["parents"])
}

func TestFormatRowMissingIdentifier(t *testing.T) {
	r := &Resource{Kind: KindWork}

	_, err := r.FormatRow(nil)
	require.ErrorContains(t, err, "no identifier")
}

func TestFormatRowEmptyFieldsStillEmits(t *testing.T) {
	r := Make(storage.ResourceRecord{ID: "http://localhost:8984/rest/prod/xx/xx1"}, KindCollection, testMapping(t))

	row, err := r.FormatRow(nil)
	require.NoError(t, err)
	require.Equal(t, "xx1", row[IdentifierColumn])
	require.Equal(t, "open", row["visibility"])
}

func TestFileSetRow(t *testing.T) {
	fs := NewFileSet(storage.AttachmentRecord{
		ParentID: "http://localhost:8984/rest/prod/6t/05/3f/96/6t053f96k",
		ID:       "http://localhost:8984/rest/prod/0r/96/73/72/0r967372b",
		Filename: "TestWordDoc.doc",
		FileURI:  "http://localhost:8984/rest/prod/0r/96/73/72/0r967372b/files/970d6269",
	})

	row, err := fs.FormatRow(nil)
	require.NoError(t, err)

	require.Equal(t, "0r967372b", row[IdentifierColumn])
	require.NotContains(t, row, "id")
	require.Equal(t, "TestWordDoc.doc", row["file"])
	require.Equal(t, "TestWordDoc.doc", row["title"])
	require.Equal(t, "6t053f96k", row["parents"])
}

func TestFormatRowEmbargoOverlay(t *testing.T) {
	r := Make(workRecord(), KindWork, testMapping(t))
	r.Visibility = VisibilityEmbargo
	r.Embargo = &Embargo{
		During:      "restricted",
		After:       "open",
		ReleaseDate: time.Date(2031, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	row, err := r.FormatRow(nil)
	require.NoError(t, err)
	require.Equal(t, "embargo", row["visibility"])
	require.Equal(t, "restricted", row["visibility_during_embargo"])
	require.Equal(t, "open", row["visibility_after_embargo"])
	require.Equal(t, "2031-06-30", row["embargo_release_date"])
}
