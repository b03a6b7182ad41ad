package sandbox

import (
	"regexp"
	"strings"

	"github.com/insightbot-core/engine/internal/dataset"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// The rule-based fast path answers simple single-value aggregation
// questions directly from the table, with no model call and no code
// generation. Anything it cannot confidently handle returns nil and
// defers to the planner / code-generation path.

type rulePattern struct {
	op string
	re *regexp.Regexp
}

var rulePatterns = []rulePattern{
	{"mean", regexp.MustCompile(`(?:average|mean|avg)\s+(?:of\s+|the\s+)?([a-zA-Z_][a-zA-Z0-9_]*)`)},
	{"sum", regexp.MustCompile(`(?:sum|total)\s+(?:of\s+|the\s+)?([a-zA-Z_][a-zA-Z0-9_]*)`)},
	{"max", regexp.MustCompile(`(?:maximum|max|highest|largest)\s+(?:of\s+|the\s+)?([a-zA-Z_][a-zA-Z0-9_]*)`)},
	{"min", regexp.MustCompile(`(?:minimum|min|lowest|smallest)\s+(?:of\s+|the\s+)?([a-zA-Z_][a-zA-Z0-9_]*)`)},
}

var countRe = regexp.MustCompile(`\b(?:count|how many|number of)\b`)

// stopwords are tokens the column regexes may capture that are never
// column names.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "all": {}, "each": {}, "every": {},
	"rows": {}, "records": {}, "items": {}, "values": {},
}

// groupByRe catches breakdown phrasing; those queries need the full
// pipeline, not a single-value answer.
var groupByRe = regexp.MustCompile(`\b(?:by|per|for each|grouped)\b`)

// TryRuleBased attempts to answer the query directly. It returns nil
// when the query is not a simple single-value aggregation, when no
// primary table can be determined, or when the target column cannot be
// resolved.
func TryRuleBased(query string, tables map[string]*dataset.Table) *Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || groupByRe.MatchString(q) {
		return nil
	}

	table := primaryTable(tables)
	if table == nil {
		return nil
	}

	for _, p := range rulePatterns {
		m := p.re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		mention := m[1]
		if _, skip := stopwords[mention]; skip {
			continue
		}
		col, ok := table.ResolveColumn(mention)
		if !ok {
			logx.Debug().Str("column", mention).Msg("rule-based path: column not resolvable, deferring")
			return nil
		}
		var (
			v   float64
			err error
		)
		switch p.op {
		case "mean":
			v, err = table.Mean(col)
		case "sum":
			v, err = table.Sum(col)
		case "max":
			v, err = table.Max(col)
		case "min":
			v, err = table.Min(col)
		}
		if err != nil {
			return nil
		}
		logx.Debug().Str("op", p.op).Str("column", col).Float64("value", v).Msg("rule-based fast path hit")
		return &Result{Kind: "scalar", Scalar: sanitizeFloat(v), ExecutionMethod: MethodRuleBased}
	}

	if countRe.MatchString(q) {
		logx.Debug().Int("rows", table.NumRows()).Msg("rule-based count")
		return &Result{Kind: "scalar", Scalar: float64(table.NumRows()), ExecutionMethod: MethodRuleBased}
	}

	return nil
}

// primaryTable picks the table simple queries run against: the only
// table when one is loaded, else the canonical default binding.
func primaryTable(tables map[string]*dataset.Table) *dataset.Table {
	if len(tables) == 1 {
		for _, t := range tables {
			return t
		}
	}
	if t, ok := tables[DefaultTableName]; ok {
		return t
	}
	return nil
}
