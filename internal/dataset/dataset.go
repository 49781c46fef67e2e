// Package dataset provides the in-memory rectangular table that the query
// engine and the MCP tools operate on. Values are scalars: string, float64,
// time.Time, or nil. Within one dataset every row carries exactly the same
// column set in the same order.
package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// ValueColumn is the canonical name for the asset-value column. Source
// sheets carry several variants ("NILAI ASET 2024", "NILAI ASET (RP)");
// normalization folds the first match into this name.
const ValueColumn = "NILAI ASET"

// Row maps a column name to a scalar cell value.
type Row map[string]any

// Dataset is an ordered sequence of rows sharing one column set.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New constructs a dataset from a header and raw cell rows. Short rows are
// padded with nil so the rectangular invariant holds; excess cells beyond
// the header width are dropped.
func New(columns []string, cells [][]any) *Dataset {
	rows := make([]Row, 0, len(cells))
	for _, rec := range cells {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return &Dataset{Columns: columns, Rows: rows}
}

// FromRows rebuilds a dataset from decoded row maps, e.g. a stored JSON
// artifact. The column set is the sorted union of the row keys.
func FromRows(rows []Row) *Dataset {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return &Dataset{Columns: columns, Rows: rows}
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Rows) == 0
}

// CleanName collapses internal whitespace, trims, and uppercases a column
// name. It is idempotent.
func CleanName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// UniqueHeader deduplicates already-cleaned column names by suffixing
// repeats with _1, _2, ...
func UniqueHeader(names []string) []string {
	seen := map[string]int{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		n := seen[name]
		seen[name] = n + 1
		if n > 0 {
			out = append(out, fmt.Sprintf("%s_%d", name, n))
			continue
		}
		out = append(out, name)
	}
	return out
}

// Normalized returns a copy of the dataset with cleaned, deduplicated
// column names, and the first column containing the value marker renamed
// to the canonical ValueColumn.
func (d *Dataset) Normalized() *Dataset {
	cleaned := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		cleaned[i] = CleanName(col)
	}
	renamed := false
	for i, col := range cleaned {
		if !renamed && strings.Contains(col, ValueColumn) {
			cleaned[i] = ValueColumn
			renamed = true
		}
	}
	unique := UniqueHeader(cleaned)

	rows := make([]Row, len(d.Rows))
	for ri, row := range d.Rows {
		nr := make(Row, len(unique))
		for i, col := range d.Columns {
			nr[unique[i]] = row[col]
		}
		rows[ri] = nr
	}
	return &Dataset{Columns: unique, Rows: rows}
}

// HasColumn reports whether the dataset carries the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// CellString renders a cell as text for filtering and grouping. Nil cells
// become the empty string.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
