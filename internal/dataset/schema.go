package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// TableSchema is the structural description of one table, as opposed to
// the statistical Profile.
type TableSchema struct {
	Columns            []string         `json:"columns"`
	Dtypes             map[string]Dtype `json:"dtypes"`
	RowCount           int              `json:"row_count"`
	ColCount           int              `json:"col_count"`
	NumericColumns     []string         `json:"numeric_columns,omitempty"`
	CategoricalColumns []string         `json:"categorical_columns,omitempty"`
	DatetimeColumns    []string         `json:"datetime_columns,omitempty"`
}

// Schema maps table name to its structural schema.
type Schema map[string]TableSchema

// BuildSchema derives the schema of a set of loaded tables.
func BuildSchema(tables map[string]*Table) Schema {
	s := make(Schema, len(tables))
	for name, t := range tables {
		s[name] = TableSchema{
			Columns:            t.ColumnNames(),
			Dtypes:             dtypeMap(t),
			RowCount:           t.NumRows(),
			ColCount:           t.NumCols(),
			NumericColumns:     t.ColumnsOf(Numeric),
			CategoricalColumns: t.ColumnsOf(Categorical),
			DatetimeColumns:    t.ColumnsOf(Datetime),
		}
	}
	return s
}

func dtypeMap(t *Table) map[string]Dtype {
	m := make(map[string]Dtype, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.Dtype
	}
	return m
}

// AllColumns returns the union of all tables' column names, preserving
// per-table declaration order and de-duplicating across tables.
func (s Schema) AllColumns() []string {
	tableNames := make([]string, 0, len(s))
	for name := range s {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var out []string
	seen := map[string]struct{}{}
	for _, tn := range tableNames {
		for _, c := range s[tn].Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// FormatForPrompt renders the schema as compact prompt context.
func (s Schema) FormatForPrompt() string {
	if len(s) == 0 {
		return "No tables loaded."
	}
	tableNames := make([]string, 0, len(s))
	for name := range s {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var b strings.Builder
	for _, tn := range tableNames {
		ts := s[tn]
		fmt.Fprintf(&b, "Table '%s' (%d rows, %d cols):\n", tn, ts.RowCount, ts.ColCount)
		fmt.Fprintf(&b, "  columns: %s\n", strings.Join(ts.Columns, ", "))
		if len(ts.NumericColumns) > 0 {
			fmt.Fprintf(&b, "  numeric: %s\n", strings.Join(ts.NumericColumns, ", "))
		}
		if len(ts.CategoricalColumns) > 0 {
			fmt.Fprintf(&b, "  categorical: %s\n", strings.Join(ts.CategoricalColumns, ", "))
		}
		if len(ts.DatetimeColumns) > 0 {
			fmt.Fprintf(&b, "  datetime: %s\n", strings.Join(ts.DatetimeColumns, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
