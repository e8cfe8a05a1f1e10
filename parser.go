package plipsql

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParsedQuery is the result of rewriting a query's :name placeholders into
// positional markers. It is immutable.
type ParsedQuery struct {
	query     string
	names     []string // first-appearance order
	positions map[string][]int
	count     int
}

// Parse rewrites every :name placeholder in query to a '?' marker and records
// the 1-based positions each name occupies. It never fails.
func Parse(query string) *ParsedQuery {
	return parse(SQLite, query)
}

// Query returns the rewritten query text.
func (pq *ParsedQuery) Query() string {
	return pq.query
}

// Count returns the total number of markers in the rewritten query.
func (pq *ParsedQuery) Count() int {
	return pq.count
}

// Names returns the parameter names in order of first appearance.
func (pq *ParsedQuery) Names() []string {
	return slices.Clone(pq.names)
}

// Has reports whether name occurs in the query.
func (pq *ParsedQuery) Has(name string) bool {
	_, ok := pq.positions[name]
	return ok
}

// Positions returns the 1-based marker positions of name, in scan order.
func (pq *ParsedQuery) Positions(name string) ([]int, error) {
	idx, ok := pq.positions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParamNotFound, name)
	}
	return slices.Clone(idx), nil
}

// parse walks q once, copying quoted text and :: casts verbatim and replacing
// each :name with a dialect-specific marker.
func parse(dialect Dialect, q string) *ParsedQuery {
	pq := &ParsedQuery{positions: make(map[string][]int)}

	var buf strings.Builder
	extraPer := 0
	switch dialect {
	case Postgres, SQLServer:
		extraPer = 2
	}
	buf.Grow(len(q) + strings.Count(q, ":")*extraPer)

	const (
		sText = iota
		sSQ   // '...'
		sDQ   // "..."
	)
	state := sText

	for i := 0; i < len(q); {
		c := q[i]

		switch state {
		case sText:
			if c == '\'' {
				state = sSQ
				buf.WriteByte(c)
				i++
				continue
			}
			if c == '"' {
				state = sDQ
				buf.WriteByte(c)
				i++
				continue
			}
			if c == ':' && i+1 < len(q) {
				// cast
				if q[i+1] == ':' {
					buf.WriteString("::")
					i += 2
					continue
				}
				if r, size := utf8.DecodeRuneInString(q[i+1:]); isIdentStart(r) {
					k := i + 1 + size
					for k < len(q) {
						r, size := utf8.DecodeRuneInString(q[k:])
						if !isIdentPart(r) {
							break
						}
						k += size
					}
					name := q[i+1 : k]

					pq.count++
					if _, seen := pq.positions[name]; !seen {
						pq.names = append(pq.names, name)
					}
					pq.positions[name] = append(pq.positions[name], pq.count)
					writePlaceholder(&buf, dialect, pq.count)
					i = k
					continue
				}
			}
			buf.WriteByte(c)
			i++

		case sSQ:
			buf.WriteByte(c)
			i++
			if c == '\'' {
				state = sText
			}

		case sDQ:
			buf.WriteByte(c)
			i++
			if c == '"' {
				state = sText
			}
		}
	}

	pq.query = buf.String()
	return pq
}

// writePlaceholder emits a dialect-specific marker for position idx.
func writePlaceholder(b *strings.Builder, d Dialect, idx int) {
	switch d {
	case Postgres:
		b.WriteByte('$')
		var tmp [20]byte
		n := strconv.AppendInt(tmp[:0], int64(idx), 10)
		b.Write(n)
	case SQLServer:
		b.WriteString("@p")
		var tmp [20]byte
		n := strconv.AppendInt(tmp[:0], int64(idx), 10)
		b.Write(n)
	default: // MySQL, SQLite
		b.WriteByte('?')
	}
}

// isIdentStart reports whether r may begin a placeholder name.
func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIdentPart reports whether r may continue a placeholder name.
func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
