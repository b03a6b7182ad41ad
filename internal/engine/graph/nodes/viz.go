package nodes

import (
	"context"
	"strings"

	errx "github.com/insightbot-core/engine/internal/core/error"
	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/sandbox"
	"github.com/insightbot-core/engine/internal/viz"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// VizNode builds, validates, and renders the chart for the turn. A spec
// that fails structural or data validation, or that the renderer
// rejects, is dropped with a user-facing reason, and a compact fallback
// table takes its place when possible.
type VizNode struct {
	Tables   model.TableStore
	Renderer viz.Renderer
}

func (n *VizNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	tables, err := n.Tables.LoadTables(ctx, state.SessionID)
	if err != nil {
		if errx.NotFound(err) {
			state.ChartError = "The chart couldn't be prepared because no data is loaded."
			return state, nil
		}
		logx.Error().Err(err).Str("session_id", state.SessionID).Msg("failed to load tables for charting")
		state.ChartError = "The chart couldn't be prepared because your data was unavailable."
		return state, nil
	}

	spec := n.buildSpec(state, tables)
	if spec == nil {
		// nothing chartable this turn
		return state, nil
	}

	t := resolveTable(tables, spec)

	if spec.Kind == viz.KindCorrelation {
		if t == nil {
			state.ChartError = "A correlation matrix needs a loaded table."
			return state, nil
		}
		if reason := viz.NormalizeCorrelation(spec, t); reason != "" {
			state.ChartError = reason
			n.fallback(state, t, spec, false)
			return state, nil
		}
	}

	if err := viz.ValidateRequired(spec); err != nil {
		if !repairSpec(spec, state.InsightResult) {
			logx.Debug().Err(err).Str("kind", spec.Kind).Msg("chart spec incomplete, dropping chart")
			state.ChartError = "I couldn't determine which columns to chart. Showing the numbers instead."
			n.fallback(state, t, spec, false)
			return state, nil
		}
	}

	if reason := viz.ValidateData(spec, state.Profile); reason != "" {
		logx.Debug().Str("kind", spec.Kind).Str("reason", reason).Msg("chart failed data validation, falling back to table")
		state.ChartError = reason
		n.fallback(state, t, spec, strings.Contains(reason, "categories"))
		return state, nil
	}

	if t != nil {
		fig, err := n.render(t, spec)
		if err != nil {
			overflow := viz.IsCategoryOverflow(err)
			logx.Debug().Err(err).Str("kind", spec.Kind).Bool("category_overflow", overflow).Msg("chart render failed, falling back to table")
			if overflow {
				state.ChartError = "That chart would have too many categories to read. Showing the top rows instead."
			} else {
				state.ChartError = "The chart couldn't be drawn from this data. Showing the numbers instead."
			}
			n.fallback(state, t, spec, overflow)
			return state, nil
		}
		state.Figure = fig
	}

	state.ChartSpec = spec
	state.ChartReason = viz.Reason(spec)
	return state, nil
}

func (n *VizNode) render(t *dataset.Table, spec *viz.ChartSpec) (*viz.Figure, error) {
	r := n.Renderer
	if r == nil {
		r = viz.NewRenderer()
	}
	return r.Render(t, spec)
}

// buildSpec derives the chart spec from the selected chart operation,
// or from visual phrasing plus a grouped tabular result.
func (n *VizNode) buildSpec(state *model.ConversationState, tables map[string]*dataset.Table) *viz.ChartSpec {
	if op, ok := state.ChartOp(); ok {
		spec := &viz.ChartSpec{
			Kind:  model.ChartOps[op.Name],
			Table: op.StringArg("table"),
			X:     op.StringArg("x"),
			Y:     op.StringArg("y"),
			Agg:   op.StringArg("agg"),
			Color: op.StringArg("color"),
		}
		if spec.Table == "" && len(tables) == 1 {
			for name := range tables {
				spec.Table = name
			}
		}
		return spec
	}

	// implicit chart: the router saw visual phrasing and the result is
	// a grouped table with a plottable pair of columns
	res := state.InsightResult
	if state.PreferChart && res.IsTable() && len(res.Columns) >= 2 {
		return &viz.ChartSpec{
			Kind: viz.KindBar,
			X:    res.Columns[0],
			Y:    res.Columns[1],
		}
	}
	return nil
}

func resolveTable(tables map[string]*dataset.Table, spec *viz.ChartSpec) *dataset.Table {
	if t, ok := tables[spec.Table]; ok {
		return t
	}
	if len(tables) == 1 {
		for name, t := range tables {
			spec.Table = name
			return t
		}
	}
	return nil
}

// repairSpec fills missing axis bindings from the computed result's
// columns. Only bar and line specs are repairable this way.
func repairSpec(spec *viz.ChartSpec, res *sandbox.Result) bool {
	if !res.IsTable() || len(res.Columns) < 2 {
		return false
	}
	if spec.Kind != viz.KindBar && spec.Kind != viz.KindLine {
		return false
	}
	if spec.X == "" {
		spec.X = res.Columns[0]
	}
	if spec.Y == "" {
		spec.Y = res.Columns[1]
	}
	return viz.ValidateRequired(spec) == nil
}

// fallback replaces a rejected chart with a compact top-rows table so
// the user still sees the data. An existing computed result is kept
// as-is, except that when the chart was rejected for category overflow
// the tabular result is truncated to the top rows.
func (n *VizNode) fallback(state *model.ConversationState, t *dataset.Table, spec *viz.ChartSpec, capExisting bool) {
	if res := state.InsightResult; res != nil {
		if capExisting && res.IsTable() && len(res.Rows) > viz.FallbackRows {
			res.Rows = res.Rows[:viz.FallbackRows]
			res.Shape = [2]int{len(res.Rows), len(res.Columns)}
		}
		return
	}
	if t == nil {
		return
	}
	fb, err := viz.FallbackTable(t, spec)
	if err != nil {
		logx.Warn().Err(err).Msg("chart fallback table failed")
		return
	}
	state.InsightResult = sandbox.TableResult(fb, sandbox.MethodRuleBased)
}
