package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Cardinality classes derived from distinct-value counts.
const (
	CardinalityLow    = "low"    // <= 10 distinct
	CardinalityMedium = "medium" // <= 25 distinct
	CardinalityHigh   = "high"
)

// NumericStats is a compact numeric summary of a column.
type NumericStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// ColumnProfile is the per-column statistical profile used for chart
// validation and prompt context.
type ColumnProfile struct {
	Dtype         Dtype          `json:"dtype"`
	NUnique       int            `json:"n_unique"`
	MissingPct    float64        `json:"missing_pct"`
	Cardinality   string         `json:"cardinality"`
	TopCategories map[string]int `json:"top_categories,omitempty"`
	NumericStats  *NumericStats  `json:"numeric_stats,omitempty"`
}

func (p ColumnProfile) IsNumeric() bool     { return p.Dtype == Numeric }
func (p ColumnProfile) IsCategorical() bool { return p.Dtype == Categorical }

// TableProfile maps column name to its profile.
type TableProfile struct {
	Columns map[string]ColumnProfile `json:"columns"`
}

// Profile maps table name to its per-column profiles.
type Profile struct {
	Tables map[string]TableProfile `json:"tables"`
}

// Column returns the profile for table/column, if present.
func (p Profile) Column(table, column string) (ColumnProfile, bool) {
	tp, ok := p.Tables[table]
	if !ok {
		return ColumnProfile{}, false
	}
	cp, ok := tp.Columns[column]
	return cp, ok
}

func classifyCardinality(n int) string {
	switch {
	case n <= 10:
		return CardinalityLow
	case n <= 25:
		return CardinalityMedium
	default:
		return CardinalityHigh
	}
}

// BuildProfile computes the statistical profile for a set of tables.
func BuildProfile(tables map[string]*Table) Profile {
	p := Profile{Tables: make(map[string]TableProfile, len(tables))}
	for name, t := range tables {
		tp := TableProfile{Columns: make(map[string]ColumnProfile, len(t.Columns))}
		for _, col := range t.Columns {
			tp.Columns[col.Name] = profileColumn(t, col)
		}
		p.Tables[name] = tp
	}
	return p
}

func profileColumn(t *Table, col Column) ColumnProfile {
	i, _ := t.columnIndex(col.Name)
	nulls := 0
	seen := map[string]int{}
	for _, row := range t.Rows {
		if row[i] == nil {
			nulls++
			continue
		}
		seen[fmt.Sprint(row[i])]++
	}
	missing := 0.0
	if len(t.Rows) > 0 {
		missing = 100 * float64(nulls) / float64(len(t.Rows))
	}
	cp := ColumnProfile{
		Dtype:       col.Dtype,
		NUnique:     len(seen),
		MissingPct:  missing,
		Cardinality: classifyCardinality(len(seen)),
	}
	if col.Dtype == Numeric {
		if vals, err := t.FloatValues(col.Name); err == nil && len(vals) > 0 {
			stats := &NumericStats{Min: vals[0], Max: vals[0]}
			var s float64
			for _, v := range vals {
				s += v
				if v < stats.Min {
					stats.Min = v
				}
				if v > stats.Max {
					stats.Max = v
				}
			}
			stats.Mean = s / float64(len(vals))
			cp.NumericStats = stats
		}
	}
	if col.Dtype == Categorical {
		cp.TopCategories = topCategories(seen, 5)
	}
	return cp
}

func topCategories(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]int, len(all))
	for _, e := range all {
		out[e.k] = e.v
	}
	return out
}

// FormatForPrompt renders a compressed profile summary for prompt
// injection, capped at maxColumns per table to avoid prompt bloat.
func FormatForPrompt(p Profile, maxColumns int) string {
	if len(p.Tables) == 0 {
		return "No data profile available."
	}
	tableNames := make([]string, 0, len(p.Tables))
	for name := range p.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var b strings.Builder
	for _, tn := range tableNames {
		tp := p.Tables[tn]
		colNames := make([]string, 0, len(tp.Columns))
		for cn := range tp.Columns {
			colNames = append(colNames, cn)
		}
		sort.Strings(colNames)

		fmt.Fprintf(&b, "Table '%s':\n", tn)
		shown := 0
		for _, cn := range colNames {
			if shown >= maxColumns {
				fmt.Fprintf(&b, "... (%d more columns)\n", len(colNames)-shown)
				break
			}
			cp := tp.Columns[cn]
			fmt.Fprintf(&b, "%s (%s, %d unique, %.0f%% missing, %s cardinality", cn, cp.Dtype, cp.NUnique, cp.MissingPct, cp.Cardinality)
			if cp.NumericStats != nil {
				fmt.Fprintf(&b, ", mean=%.2f, range=[%.2f-%.2f]", cp.NumericStats.Mean, cp.NumericStats.Min, cp.NumericStats.Max)
			}
			if len(cp.TopCategories) > 0 {
				cats := make([]string, 0, len(cp.TopCategories))
				for k := range cp.TopCategories {
					cats = append(cats, k)
				}
				sort.Slice(cats, func(i, j int) bool {
					if cp.TopCategories[cats[i]] != cp.TopCategories[cats[j]] {
						return cp.TopCategories[cats[i]] > cp.TopCategories[cats[j]]
					}
					return cats[i] < cats[j]
				})
				if len(cats) > 3 {
					cats = cats[:3]
				}
				pairs := make([]string, len(cats))
				for i, k := range cats {
					pairs[i] = fmt.Sprintf("%s=%d", k, cp.TopCategories[k])
				}
				fmt.Fprintf(&b, ", top: %s", strings.Join(pairs, ", "))
			}
			b.WriteString(")\n")
			shown++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
