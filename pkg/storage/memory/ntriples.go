package memory

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/digitalcollections/fcrepo-migrate/pkg/rdf"
)

// parseNTriples reads line-oriented N-Triples statements. Literal objects are
// reduced to their textual value; language tags and datatype annotations are
// dropped, matching how the export queries consume them.
func parseNTriples(r io.Reader) ([]rdf.Triple, error) {
	var triples []rdf.Triple

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseStatement(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		triples = append(triples, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return triples, nil
}

func parseStatement(line string) (rdf.Triple, error) {
	var t rdf.Triple

	subject, rest, err := parseIRI(line)
	if err != nil {
		return t, fmt.Errorf("subject: %w", err)
	}
	predicate, rest, err := parseIRI(rest)
	if err != nil {
		return t, fmt.Errorf("predicate: %w", err)
	}
	object, rest, err := parseObject(rest)
	if err != nil {
		return t, fmt.Errorf("object: %w", err)
	}
	if rest = strings.TrimSpace(rest); rest != "." {
		return t, fmt.Errorf("missing statement terminator in %q", line)
	}

	t.Subject = subject
	t.Predicate = predicate
	t.Object = object
	return t, nil
}

func parseIRI(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", "", fmt.Errorf("expected IRI, got %q", s)
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated IRI in %q", s)
	}
	return s[1:end], s[end+1:], nil
}

func parseObject(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		return parseIRI(s)
	}
	if !strings.HasPrefix(s, `"`) {
		return "", "", fmt.Errorf("expected IRI or literal, got %q", s)
	}

	var sb strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			rest := s[i+1:]
			// Drop a language tag or datatype annotation.
			rest = strings.TrimSpace(rest)
			if strings.HasPrefix(rest, "@") {
				if j := strings.IndexAny(rest, " \t"); j >= 0 {
					rest = rest[j:]
				} else {
					rest = "."
				}
			} else if strings.HasPrefix(rest, "^^") {
				_, after, err := parseIRI(rest[2:])
				if err != nil {
					return "", "", err
				}
				rest = after
			}
			return sb.String(), rest, nil
		}
		sb.WriteByte(c)
		i++
	}
	return "", "", fmt.Errorf("unterminated literal in %q", s)
}

// WriteTo serializes the store as sorted N-Triples. Objects that look like
// IRIs are written as IRIs; everything else is written as a plain literal.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var written int64
	bw := bufio.NewWriter(w)
	for _, t := range s.Triples() {
		n, err := fmt.Fprintf(bw, "<%s> <%s> %s .\n", t.Subject, t.Predicate, formatObject(t.Object))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

func formatObject(o string) string {
	if strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://") || strings.HasPrefix(o, "info:") {
		return "<" + o + ">"
	}
	return `"` + escapeLiteral(o) + `"`
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
