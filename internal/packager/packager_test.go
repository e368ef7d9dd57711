package packager

import (
	"archive/zip"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digitalcollections/fcrepo-migrate/internal/assembler"
	"github.com/digitalcollections/fcrepo-migrate/internal/resource"
)

func TestHeader(t *testing.T) {
	rows := []resource.Row{
		{resource.IdentifierColumn: "w1", "title": "One", "creator": "A"},
		{resource.IdentifierColumn: "fs1", "file": "a.tif", "title": "a.tif"},
	}
	require.Equal(t,
		[]string{resource.IdentifierColumn, "creator", "file", "title"},
		Header(rows))
}

func TestHeaderEmpty(t *testing.T) {
	require.Equal(t, []string{resource.IdentifierColumn}, Header(nil))
}

func TestPackage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch_3")
	filesDir := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesDir, 0o755))
	binary := filepath.Join(filesDir, "page1.tif")
	require.NoError(t, os.WriteFile(binary, []byte("tiff-bytes"), 0o644))

	batch := &assembler.Batch{
		Index: 3,
		Dir:   dir,
		Rows: []resource.Row{
			{resource.IdentifierColumn: "w1", "id": "w1", "title": "Work One", "visibility": "open"},
			{resource.IdentifierColumn: "fs1", "title": "page1.tif", "file": "page1.tif", "visibility": "open"},
		},
		Copied: []string{binary},
	}

	zipPath, err := New(nil).Package(batch)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "import_3.zip"), zipPath)

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = f
	}
	require.Contains(t, names, "import_3.csv")
	require.Contains(t, names, "files/page1.tif")

	rc, err := names["import_3.csv"].Open()
	require.NoError(t, err)
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	require.Equal(t,
		[]string{resource.IdentifierColumn, "file", "id", "title", "visibility"},
		records[0])
	require.Equal(t, []string{"w1", "", "w1", "Work One", "open"}, records[1])
	require.Equal(t, []string{"fs1", "page1.tif", "", "page1.tif", "open"}, records[2])
}

func TestPackageDeduplicatesFilenames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch_1")
	filesDir := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesDir, 0o755))
	binary := filepath.Join(filesDir, "page.tif")
	require.NoError(t, os.WriteFile(binary, []byte("x"), 0o644))

	batch := &assembler.Batch{
		Index:  1,
		Dir:    dir,
		Rows:   []resource.Row{{resource.IdentifierColumn: "fs1"}},
		Copied: []string{binary, binary},
	}

	zipPath, err := New(nil).Package(batch)
	require.NoError(t, err)

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	count := 0
	for _, f := range zr.File {
		if f.Name == "files/page.tif" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestPackageMissingBinaryFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch_0")
	batch := &assembler.Batch{
		Index:  0,
		Dir:    dir,
		Rows:   []resource.Row{{resource.IdentifierColumn: "w1", "id": "w1"}},
		Copied: []string{filepath.Join(dir, "files", "gone.tif")},
	}

	_, err := New(nil).Package(batch)
	require.ErrorContains(t, err, "batch 0")
}
