package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Dtype is the logical type of a column.
type Dtype string

const (
	Numeric     Dtype = "numeric"
	Categorical Dtype = "categorical"
	Datetime    Dtype = "datetime"
)

// Column describes one column of a table.
type Column struct {
	Name  string `json:"name"`
	Dtype Dtype  `json:"dtype"`
}

// Table is an in-memory, immutable-by-convention tabular dataset.
// Cell values are float64 for numeric columns and string otherwise
// (datetime values are RFC3339-ish strings typed by the column dtype),
// which keeps rows JSON round-trippable for the Redis session store.
type Table struct {
	Name    string     `json:"name"`
	Columns []Column   `json:"columns"`
	Rows    [][]any    `json:"rows"`
}

// ColumnError reports a reference to a column that does not exist.
// The sandbox classifies execution failures by detecting this type.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column not found: %s", e.Column)
}

// New builds a table from column definitions and rows.
func New(name string, cols []Column, rows [][]any) *Table {
	return &Table{Name: name, Columns: cols, Rows: rows}
}

func (t *Table) NumRows() int { return len(t.Rows) }

func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) columnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the table has a column with the exact name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex(name)
	return ok
}

// resolveMatchThreshold is the minimum similarity for a misspelled
// column mention to resolve to a real column.
const resolveMatchThreshold = 0.5

// ResolveColumn matches name against columns case-insensitively,
// falling back to the closest near-miss spelling, and returns the
// canonical column name.
func (t *Table) ResolveColumn(name string) (string, bool) {
	if _, ok := t.columnIndex(name); ok {
		return name, true
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	if close := CloseMatches(name, t.ColumnNames(), 1, resolveMatchThreshold); len(close) == 1 {
		return close[0], true
	}
	return "", false
}

// Dtype returns the dtype of the named column.
func (t *Table) Dtype(name string) (Dtype, error) {
	i, ok := t.columnIndex(name)
	if !ok {
		return "", &ColumnError{Column: name}
	}
	return t.Columns[i].Dtype, nil
}

// ColumnsOf returns the names of all columns with the given dtype.
func (t *Table) ColumnsOf(dt Dtype) []string {
	var out []string
	for _, c := range t.Columns {
		if c.Dtype == dt {
			out = append(out, c.Name)
		}
	}
	return out
}

// asFloat coerces a cell value to float64 when possible.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FloatValues returns the non-null numeric values of a column.
func (t *Table) FloatValues(name string) ([]float64, error) {
	i, ok := t.columnIndex(name)
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row[i] == nil {
			continue
		}
		if f, ok := asFloat(row[i]); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// StringValues returns the non-null values of a column rendered as strings.
func (t *Table) StringValues(name string) ([]string, error) {
	i, ok := t.columnIndex(name)
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row[i] == nil {
			continue
		}
		out = append(out, fmt.Sprint(row[i]))
	}
	return out, nil
}

// NUnique returns the number of distinct non-null values in a column.
func (t *Table) NUnique(name string) (int, error) {
	vals, err := t.StringValues(name)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen), nil
}

// Mean returns the arithmetic mean of a numeric column.
func (t *Table) Mean(name string) (float64, error) {
	vals, err := t.FloatValues(name)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return math.NaN(), nil
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals)), nil
}

// Sum returns the sum of a numeric column.
func (t *Table) Sum(name string) (float64, error) {
	vals, err := t.FloatValues(name)
	if err != nil {
		return 0, err
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s, nil
}

// Min returns the minimum of a numeric column.
func (t *Table) Min(name string) (float64, error) {
	vals, err := t.FloatValues(name)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return math.NaN(), nil
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

// Max returns the maximum of a numeric column.
func (t *Table) Max(name string) (float64, error) {
	vals, err := t.FloatValues(name)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return math.NaN(), nil
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

// Corr returns the Pearson correlation between two numeric columns.
func (t *Table) Corr(a, b string) (float64, error) {
	ia, ok := t.columnIndex(a)
	if !ok {
		return 0, &ColumnError{Column: a}
	}
	ib, ok := t.columnIndex(b)
	if !ok {
		return 0, &ColumnError{Column: b}
	}
	var xs, ys []float64
	for _, row := range t.Rows {
		fx, okx := asFloat(row[ia])
		fy, oky := asFloat(row[ib])
		if okx && oky {
			xs = append(xs, fx)
			ys = append(ys, fy)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return math.NaN(), nil
	}
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN(), nil
	}
	return cov / math.Sqrt(vx*vy), nil
}

// Filter returns the rows where column cmp value holds.
// cmp is one of ==, !=, >, >=, <, <=. Numeric comparison is used when
// both sides coerce to float64, string equality otherwise.
func (t *Table) Filter(name, cmp string, value any) (*Table, error) {
	i, ok := t.columnIndex(name)
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	want, wantIsNum := asFloat(value)
	var rows [][]any
	for _, row := range t.Rows {
		cell := row[i]
		if cell == nil {
			continue
		}
		keep := false
		if got, ok := asFloat(cell); ok && wantIsNum {
			switch cmp {
			case "==":
				keep = got == want
			case "!=":
				keep = got != want
			case ">":
				keep = got > want
			case ">=":
				keep = got >= want
			case "<":
				keep = got < want
			case "<=":
				keep = got <= want
			default:
				return nil, fmt.Errorf("unsupported comparison %q", cmp)
			}
		} else {
			gs, ws := fmt.Sprint(cell), fmt.Sprint(value)
			switch cmp {
			case "==":
				keep = gs == ws
			case "!=":
				keep = gs != ws
			case ">":
				keep = gs > ws
			case ">=":
				keep = gs >= ws
			case "<":
				keep = gs < ws
			case "<=":
				keep = gs <= ws
			default:
				return nil, fmt.Errorf("unsupported comparison %q", cmp)
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: rows}, nil
}

// GroupBy aggregates valueCol per distinct key with fn (mean, sum, min,
// max, count). For count, valueCol may be empty and the result column is
// named "count". Group order follows first appearance in the data.
func (t *Table) GroupBy(key, fn, valueCol string) (*Table, error) {
	ki, ok := t.columnIndex(key)
	if !ok {
		return nil, &ColumnError{Column: key}
	}
	vi := -1
	if fn != "count" {
		idx, ok := t.columnIndex(valueCol)
		if !ok {
			return nil, &ColumnError{Column: valueCol}
		}
		vi = idx
	}

	order := []string{}
	groups := map[string][]float64{}
	counts := map[string]int{}
	for _, row := range t.Rows {
		if row[ki] == nil {
			continue
		}
		k := fmt.Sprint(row[ki])
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
		if vi >= 0 {
			if f, ok := asFloat(row[vi]); ok {
				groups[k] = append(groups[k], f)
			}
		}
	}

	outName := valueCol
	if fn == "count" {
		outName = "count"
	}
	out := &Table{
		Name: t.Name,
		Columns: []Column{
			{Name: key, Dtype: Categorical},
			{Name: outName, Dtype: Numeric},
		},
	}
	for _, k := range order {
		var v float64
		switch fn {
		case "count":
			v = float64(counts[k])
		case "mean":
			vals := groups[k]
			if len(vals) == 0 {
				v = math.NaN()
				break
			}
			var s float64
			for _, x := range vals {
				s += x
			}
			v = s / float64(len(vals))
		case "sum":
			for _, x := range groups[k] {
				v += x
			}
		case "min":
			vals := groups[k]
			if len(vals) == 0 {
				v = math.NaN()
				break
			}
			v = vals[0]
			for _, x := range vals[1:] {
				if x < v {
					v = x
				}
			}
		case "max":
			vals := groups[k]
			if len(vals) == 0 {
				v = math.NaN()
				break
			}
			v = vals[0]
			for _, x := range vals[1:] {
				if x > v {
					v = x
				}
			}
		default:
			return nil, fmt.Errorf("unsupported aggregation %q", fn)
		}
		out.Rows = append(out.Rows, []any{k, v})
	}
	return out, nil
}

// SortBy returns a copy sorted by the named column. Numeric columns sort
// numerically, everything else lexicographically.
func (t *Table) SortBy(name string, descending bool) (*Table, error) {
	i, ok := t.columnIndex(name)
	if !ok {
		return nil, &ColumnError{Column: name}
	}
	rows := make([][]any, len(t.Rows))
	copy(rows, t.Rows)
	less := func(a, b []any) bool {
		fa, oka := asFloat(a[i])
		fb, okb := asFloat(b[i])
		if oka && okb {
			return fa < fb
		}
		return fmt.Sprint(a[i]) < fmt.Sprint(b[i])
	}
	sort.SliceStable(rows, func(x, y int) bool {
		if descending {
			return less(rows[y], rows[x])
		}
		return less(rows[x], rows[y])
	})
	return &Table{Name: t.Name, Columns: t.Columns, Rows: rows}, nil
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// Select projects the table onto the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for j, n := range names {
		i, ok := t.columnIndex(n)
		if !ok {
			return nil, &ColumnError{Column: n}
		}
		idx[j] = i
		cols[j] = t.Columns[i]
	}
	rows := make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]any, len(idx))
		for j, i := range idx {
			out[j] = row[i]
		}
		rows[r] = out
	}
	return &Table{Name: t.Name, Columns: cols, Rows: rows}, nil
}
