package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/insightbot-core/engine/internal/dataset"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	ErrTimeout        ErrorKind = "timeout"
	ErrColumnNotFound ErrorKind = "column_not_found"
	ErrOther          ErrorKind = "other"
)

// Execution method tags on results.
const (
	MethodGenerated = "generated"
	MethodRuleBased = "rule_based"
)

// DefaultTimeout is the hard wall-clock limit for one snippet.
const DefaultTimeout = 10 * time.Second

// DefaultTableName is the canonical binding added when exactly one
// table is loaded, so snippets can always refer to "df".
const DefaultTableName = "df"

const suggestionLimit = 3

// matchThreshold is the minimum normalized edit-distance similarity for
// a "did you mean" candidate.
const matchThreshold = 0.5

// Result is a typed execution outcome: either a scalar or a table
// flattened to portable values.
type Result struct {
	Kind            string   `json:"kind"` // "scalar" | "table"
	Scalar          any      `json:"scalar,omitempty"`
	Columns         []string `json:"columns,omitempty"`
	Rows            [][]any  `json:"rows,omitempty"`
	Shape           [2]int   `json:"shape,omitempty"`
	ExecutionMethod string   `json:"execution_method"`
}

// IsTable reports whether the result carries tabular data.
func (r *Result) IsTable() bool { return r != nil && r.Kind == "table" }

// Error is a classified execution failure with optional column
// suggestions for a "did you mean" recovery.
type Error struct {
	Kind             ErrorKind
	Message          string
	Column           string
	SuggestedColumns []string
}

func (e *Error) Error() string { return e.Message }

// Executor runs snippets against named tables under the capability
// allow-list, deny-list, and a hard timeout.
type Executor struct {
	Timeout time.Duration
}

// NewExecutor returns an executor with the default timeout.
func NewExecutor() *Executor {
	return &Executor{Timeout: DefaultTimeout}
}

type evalOutcome struct {
	env map[string]value
	err error
}

// Execute validates and runs one snippet. Tables are bound by name;
// when exactly one table is loaded it is also bound as the canonical
// default. The snippet runs on a bounded worker: on timeout the call
// returns a timeout error and abandons the wait, while the evaluator's
// own context checks let the worker wind down shortly after.
func (e *Executor) Execute(ctx context.Context, code string, tables map[string]*dataset.Table) (*Result, *Error) {
	if err := ValidateCode(code); err != nil {
		return nil, &Error{Kind: ErrOther, Message: err.Error()}
	}

	stmts, err := Parse(code)
	if err != nil {
		return nil, e.classify(err, tables)
	}

	bound := make(map[string]*dataset.Table, len(tables)+1)
	for name, t := range tables {
		bound[name] = t
	}
	if len(tables) == 1 {
		for _, t := range tables {
			if _, taken := bound[DefaultTableName]; !taken {
				bound[DefaultTableName] = t
			}
		}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan evalOutcome, 1)
	go func() {
		env, err := eval(runCtx, stmts, bound)
		done <- evalOutcome{env: env, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, e.timeoutError(timeout)
			}
			return nil, e.classify(out.err, tables)
		}
		v, ok := out.env[ResultVar]
		if !ok {
			return nil, &Error{Kind: ErrOther, Message: fmt.Sprintf("snippet did not bind %q", ResultVar)}
		}
		return coerceResult(v), nil
	case <-runCtx.Done():
		// The worker is not forcibly killed; it observes runCtx between
		// pipeline stages and exits on its own.
		logx.Warn().Dur("timeout", timeout).Msg("snippet execution timed out, abandoning worker")
		return nil, e.timeoutError(timeout)
	}
}

func (e *Executor) timeoutError(timeout time.Duration) *Error {
	return &Error{
		Kind:    ErrTimeout,
		Message: fmt.Sprintf("execution timed out (>%s)", timeout),
	}
}

// classify maps evaluation errors onto the error taxonomy and attaches
// "did you mean" column suggestions for unknown columns.
func (e *Executor) classify(err error, tables map[string]*dataset.Table) *Error {
	var colErr *dataset.ColumnError
	if errors.As(err, &colErr) {
		all := allColumns(tables)
		suggested := dataset.CloseMatches(colErr.Column, all, suggestionLimit, matchThreshold)
		if len(suggested) == 0 && len(all) > 0 {
			// No close match: offer the first available columns as a hint.
			n := suggestionLimit
			if len(all) < n {
				n = len(all)
			}
			suggested = all[:n]
		}
		return &Error{
			Kind:             ErrColumnNotFound,
			Message:          err.Error(),
			Column:           colErr.Column,
			SuggestedColumns: suggested,
		}
	}
	return &Error{Kind: ErrOther, Message: err.Error()}
}

func allColumns(tables map[string]*dataset.Table) []string {
	return dataset.BuildSchema(tables).AllColumns()
}

// coerceResult flattens an evaluation value into portable scalars.
func coerceResult(v value) *Result {
	if v.isScalar() {
		return &Result{
			Kind:            "scalar",
			Scalar:          coerceScalar(v.scalar),
			ExecutionMethod: MethodGenerated,
		}
	}
	t := v.table
	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]any, len(row))
		for j, cell := range row {
			out[j] = coerceScalar(cell)
		}
		rows[i] = out
	}
	return &Result{
		Kind:            "table",
		Columns:         t.ColumnNames(),
		Rows:            rows,
		Shape:           [2]int{t.NumRows(), t.NumCols()},
		ExecutionMethod: MethodGenerated,
	}
}

// coerceScalar widens numbers to float64 and replaces NaN and infinity
// with nil, since the result must survive a JSON round trip through the
// conversation store.
func coerceScalar(v any) any {
	switch x := v.(type) {
	case float64:
		return sanitizeFloat(x)
	case float32:
		return sanitizeFloat(float64(x))
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return v
	}
}

func sanitizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// TableResult builds a table-kind result directly from a dataset table,
// used for chart fallbacks that bypass snippet execution.
func TableResult(t *dataset.Table, method string) *Result {
	r := coerceResult(value{table: t})
	r.ExecutionMethod = method
	return r
}

// FormatScalar renders a scalar result for user-facing text. A nil
// scalar means the value was undefined, for example a mean over no data.
func FormatScalar(v any) string {
	if v == nil {
		return "not defined for this data"
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
