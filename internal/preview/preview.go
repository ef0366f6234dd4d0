// Package preview prints row counts and the leading rows of every table in
// the normalized schema.
package preview

import (
	"context"
	"fmt"
	"io"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/cellcount/cellcount/internal/schema"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/jmoiron/sqlx"
)

// DefaultLimit is the number of rows shown per table when none is given.
const DefaultLimit = 5

const nullValue = "NULL"

// tables lists each previewed table with its primary key, parents first.
var tables = []struct {
	name string
	key  string
}{
	{schema.TableProjects, "project_id"},
	{schema.TableSubjects, "subject_id"},
	{schema.TableCellCounts, "sample_id"},
}

// TableSummary is the preview of one table.
type TableSummary struct {
	Name    string
	Count   int64
	Columns []string
	Rows    [][]interface{}
}

// Collect reads the row count and first limit rows of every table.
func Collect(ctx context.Context, db sqlx.QueryerContext, limit int) ([]TableSummary, error) {
	if limit < 0 {
		limit = 0
	}
	out := make([]TableSummary, 0, len(tables))
	for _, tbl := range tables {
		s := TableSummary{Name: tbl.name}
		if err := sqlx.GetContext(ctx, db, &s.Count, `SELECT COUNT(*) FROM `+tbl.name); err != nil {
			return nil, cerrors.NewQueryError("count "+tbl.name, err)
		}

		rows, err := db.QueryxContext(ctx,
			fmt.Sprintf(`SELECT * FROM %s ORDER BY %s LIMIT ?`, tbl.name, tbl.key), limit)
		if err != nil {
			return nil, cerrors.NewQueryError("select "+tbl.name, err)
		}
		s.Columns, err = rows.Columns()
		if err != nil {
			rows.Close()
			return nil, cerrors.NewQueryError("columns of "+tbl.name, err)
		}
		for rows.Next() {
			row, err := rows.SliceScan()
			if err != nil {
				rows.Close()
				return nil, cerrors.NewQueryError("scan "+tbl.name, err)
			}
			s.Rows = append(s.Rows, row)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, cerrors.NewQueryError("iterate "+tbl.name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Write renders the preview of every table to w and returns the number of
// table rows rendered.
func Write(ctx context.Context, db sqlx.QueryerContext, w io.Writer, limit int) (int, error) {
	summaries, err := Collect(ctx, db, limit)
	if err != nil {
		return 0, err
	}
	rendered := 0
	for _, s := range summaries {
		if err := render(w, s); err != nil {
			return rendered, err
		}
		rendered += len(s.Rows)
	}
	return rendered, nil
}

func render(w io.Writer, s TableSummary) error {
	if _, err := fmt.Fprintf(w, "%s: %d rows\n", s.Name, s.Count); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range s.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = cell(v)
		}
		t.AppendRow(r)
	}
	t.Render()

	_, err := io.WriteString(w, "\n")
	return err
}

// cell converts a scanned column value into something go-pretty can print.
// The sqlite driver returns TEXT columns as []byte.
func cell(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nullValue
	case []byte:
		return string(v)
	default:
		return v
	}
}
