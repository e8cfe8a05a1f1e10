package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jkemi/plipsql"
)

// renderRows drains rows and writes them in the requested format.
func renderRows(w io.Writer, rows *sql.Rows, format string) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var results [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	switch format {
	case "json":
		objs := make([]map[string]any, 0, len(results))
		for _, r := range results {
			obj := make(map[string]any, len(cols))
			for i, c := range cols {
				obj[c] = r[i]
			}
			objs = append(objs, obj)
		}
		return renderJSON(w, objs)
	default:
		if len(results) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		t := newTable(w)
		t.AppendHeader(toRow(cols))
		for _, r := range results {
			row := make(table.Row, len(r))
			for i, v := range r {
				row[i] = formatValue(v)
			}
			t.AppendRow(row)
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results))
		return nil
	}
}

// renderAffected reports the outcome of a statement run with --exec.
func renderAffected(w io.Writer, n int64, format string) error {
	if format == "json" {
		return renderJSON(w, map[string]int64{"rows_affected": n})
	}
	_, err := fmt.Fprintf(w, "%d rows affected\n", n)
	return err
}

// parseOutput is the JSON shape of the parse command.
type parseOutput struct {
	Query     string           `json:"query"`
	Count     int              `json:"count"`
	Positions map[string][]int `json:"positions"`
}

// renderParsed writes the rewritten query and each name's marker positions.
func renderParsed(w io.Writer, pq *plipsql.ParsedQuery, format string) error {
	names := pq.Names()
	positions := make(map[string][]int, len(names))
	for _, name := range names {
		idx, err := pq.Positions(name)
		if err != nil {
			return err
		}
		positions[name] = idx
	}

	if format == "json" {
		return renderJSON(w, parseOutput{Query: pq.Query(), Count: pq.Count(), Positions: positions})
	}

	_, _ = fmt.Fprintln(w, pq.Query())
	if len(names) == 0 {
		return nil
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Positions"})
	for _, name := range names {
		idx := positions[name]
		parts := make([]string, len(idx))
		for i, p := range idx {
			parts[i] = fmt.Sprint(p)
		}
		t.AppendRow(table.Row{name, strings.Join(parts, ", ")})
	}
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toRow(cols []string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
