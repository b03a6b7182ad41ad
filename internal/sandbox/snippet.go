package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/insightbot-core/engine/internal/dataset"
)

// The snippet language is a line-oriented pipeline DSL:
//
//	monthly = sales | filter(region, ==, "EU") | group_by(month) | agg(sum, revenue)
//	result  = monthly | sort(revenue, desc) | head(10)
//
// Each line binds one name; the right-hand side starts from a table or
// an earlier binding and applies allow-listed operations left to right.
// The orchestration engine requires the final result to bind "result".
const ResultVar = "result"

// OpCall is one operation in a pipeline, e.g. filter(region, ==, "EU").
type OpCall struct {
	Name string
	Args []string
}

// Statement is one parsed snippet line: Target = Source | ops...
type Statement struct {
	Target string
	Source string
	Ops    []OpCall
}

var (
	identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	opRe    = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\((.*)\)$`)
)

// allowedOps is the capability allow-list: the only operations a snippet
// may invoke, all pure and side-effect free.
var allowedOps = map[string]struct{}{
	"filter":   {},
	"group_by": {},
	"agg":      {},
	"select":   {},
	"sort":     {},
	"head":     {},
	"count":    {},
	"mean":     {},
	"sum":      {},
	"min":      {},
	"max":      {},
	"corr":     {},
}

// Parse parses snippet source into statements. Comment lines (#) and
// blank lines are ignored.
func Parse(code string) ([]Statement, error) {
	var stmts []Statement
	for ln, raw := range strings.Split(code, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("line %d: expected assignment", ln+1)
		}
		target := strings.TrimSpace(line[:eq])
		if !identRe.MatchString(target) {
			return nil, fmt.Errorf("line %d: invalid binding name %q", ln+1, target)
		}
		segments := strings.Split(line[eq+1:], "|")
		source := strings.TrimSpace(segments[0])
		if !identRe.MatchString(source) {
			return nil, fmt.Errorf("line %d: invalid source %q", ln+1, source)
		}
		st := Statement{Target: target, Source: source}
		for _, seg := range segments[1:] {
			op, err := parseOp(strings.TrimSpace(seg))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln+1, err)
			}
			st.Ops = append(st.Ops, *op)
		}
		stmts = append(stmts, st)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("empty snippet")
	}
	return stmts, nil
}

func parseOp(seg string) (*OpCall, error) {
	m := opRe.FindStringSubmatch(seg)
	if m == nil {
		return nil, fmt.Errorf("invalid operation %q", seg)
	}
	name := m[1]
	if _, ok := allowedOps[name]; !ok {
		return nil, fmt.Errorf("operation %q is not permitted", name)
	}
	op := &OpCall{Name: name}
	if args := strings.TrimSpace(m[2]); args != "" {
		for _, a := range strings.Split(args, ",") {
			a = strings.TrimSpace(a)
			a = strings.Trim(a, `"'`)
			op.Args = append(op.Args, a)
		}
	}
	return op, nil
}

// value is either a table or a scalar during evaluation.
type value struct {
	table  *dataset.Table
	scalar any
}

func (v value) isScalar() bool { return v.table == nil }

// eval runs parsed statements against the provided tables. The context
// is checked between statements and between pipeline operations so an
// abandoned worker exits promptly after a caller-side timeout.
func eval(ctx context.Context, stmts []Statement, tables map[string]*dataset.Table) (map[string]value, error) {
	env := make(map[string]value, len(tables)+len(stmts))
	for name, t := range tables {
		env[name] = value{table: t}
	}
	for _, st := range stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, ok := env[st.Source]
		if !ok {
			return nil, fmt.Errorf("unknown table or binding %q", st.Source)
		}
		v, err := evalPipeline(ctx, src, st.Ops)
		if err != nil {
			return nil, err
		}
		env[st.Target] = v
	}
	return env, nil
}

func evalPipeline(ctx context.Context, v value, ops []OpCall) (value, error) {
	pendingGroup := ""
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return value{}, err
		}
		if v.isScalar() {
			return value{}, fmt.Errorf("operation %s applied to a scalar", op.Name)
		}
		t := v.table
		switch op.Name {
		case "filter":
			if len(op.Args) != 3 {
				return value{}, fmt.Errorf("filter expects (column, comparison, value)")
			}
			out, err := t.Filter(op.Args[0], op.Args[1], op.Args[2])
			if err != nil {
				return value{}, err
			}
			v = value{table: out}
		case "group_by":
			if len(op.Args) != 1 {
				return value{}, fmt.Errorf("group_by expects (column)")
			}
			if !t.HasColumn(op.Args[0]) {
				return value{}, &dataset.ColumnError{Column: op.Args[0]}
			}
			pendingGroup = op.Args[0]
		case "agg":
			if pendingGroup == "" {
				return value{}, fmt.Errorf("agg without preceding group_by")
			}
			if len(op.Args) == 0 {
				return value{}, fmt.Errorf("agg expects (function, column)")
			}
			fn := op.Args[0]
			col := ""
			if len(op.Args) > 1 {
				col = op.Args[1]
			}
			out, err := t.GroupBy(pendingGroup, fn, col)
			if err != nil {
				return value{}, err
			}
			pendingGroup = ""
			v = value{table: out}
		case "select":
			out, err := t.Select(op.Args)
			if err != nil {
				return value{}, err
			}
			v = value{table: out}
		case "sort":
			if len(op.Args) == 0 {
				return value{}, fmt.Errorf("sort expects (column [, asc|desc])")
			}
			desc := len(op.Args) > 1 && strings.EqualFold(op.Args[1], "desc")
			out, err := t.SortBy(op.Args[0], desc)
			if err != nil {
				return value{}, err
			}
			v = value{table: out}
		case "head":
			if len(op.Args) != 1 {
				return value{}, fmt.Errorf("head expects (n)")
			}
			n, err := strconv.Atoi(op.Args[0])
			if err != nil {
				return value{}, fmt.Errorf("head expects an integer: %w", err)
			}
			v = value{table: t.Head(n)}
		case "count":
			v = value{scalar: float64(t.NumRows())}
		case "mean", "sum", "min", "max":
			if len(op.Args) != 1 {
				return value{}, fmt.Errorf("%s expects (column)", op.Name)
			}
			var (
				f   float64
				err error
			)
			switch op.Name {
			case "mean":
				f, err = t.Mean(op.Args[0])
			case "sum":
				f, err = t.Sum(op.Args[0])
			case "min":
				f, err = t.Min(op.Args[0])
			case "max":
				f, err = t.Max(op.Args[0])
			}
			if err != nil {
				return value{}, err
			}
			v = value{scalar: f}
		case "corr":
			if len(op.Args) != 2 {
				return value{}, fmt.Errorf("corr expects (column, column)")
			}
			f, err := t.Corr(op.Args[0], op.Args[1])
			if err != nil {
				return value{}, err
			}
			v = value{scalar: f}
		default:
			return value{}, fmt.Errorf("operation %q is not permitted", op.Name)
		}
	}
	if pendingGroup != "" {
		return value{}, fmt.Errorf("group_by(%s) without agg", pendingGroup)
	}
	return v, nil
}
