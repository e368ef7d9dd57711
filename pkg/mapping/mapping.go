// Package mapping loads the predicate-to-import-field configuration that
// drives resource construction.
package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
)

// Field is the import-side target of a mapped predicate.
type Field struct {
	Name  string
	Multi bool
}

// FieldMapping maps graph predicates to import fields. It is loaded once
// before index construction and is read-only afterwards.
type FieldMapping struct {
	fields map[string]Field
}

// Load reads a mapping CSV with the header columns "predicate",
// "bulkrax_field" and "multi". Unless the CSV overrides the membership
// predicate, a synthetic multi-valued entry mapping it to "parents" is added.
func Load(path string) (*FieldMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field mapping %q: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse field mapping %q: %w", path, err)
	}
	return m, nil
}

// Parse reads mapping CSV content. See Load.
func Parse(r io.Reader) (*FieldMapping, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"predicate", "bulkrax_field"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	fields := make(map[string]Field)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		predicate := strings.TrimSpace(record[col["predicate"]])
		if predicate == "" {
			continue
		}
		field := Field{Name: strings.TrimSpace(record[col["bulkrax_field"]])}
		if i, ok := col["multi"]; ok && i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				multi, err := strconv.ParseBool(v)
				if err != nil {
					return nil, fmt.Errorf("predicate %q: bad multi flag %q", predicate, v)
				}
				field.Multi = multi
			}
		}
		fields[predicate] = field
	}

	if _, ok := fields[rdf.MemberOf]; !ok {
		fields[rdf.MemberOf] = Field{Name: "parents", Multi: true}
	}

	return &FieldMapping{fields: fields}, nil
}

// Lookup returns the import field a predicate maps to.
func (m *FieldMapping) Lookup(predicate string) (Field, bool) {
	f, ok := m.fields[predicate]
	return f, ok
}

// Len returns the number of mapped predicates.
func (m *FieldMapping) Len() int {
	return len(m.fields)
}
