package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/graph/parsers"
	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// profilePromptColumns caps how many column profiles feed the
// dispatcher prompt.
const profilePromptColumns = 30

// AnalyzerNode asks the tool-bound dispatcher model which operations
// should run this turn and records them on the state.
type AnalyzerNode struct {
	Dispatcher llm.Caller
}

func (n *AnalyzerNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	query := state.CurrentQuery()

	sys, err := prompts.RenderAnalyzerSystem(ctx,
		state.Schema.FormatForPrompt(),
		dataset.FormatForPrompt(state.Profile, profilePromptColumns),
	)
	if err != nil {
		logx.Error().Err(err).Msg("render analyzer prompt failed, defaulting to insight")
		state.SelectedOps = defaultOps(query)
		return state, nil
	}

	out, err := n.Dispatcher.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(query),
	})
	if err != nil {
		logx.Error().Err(err).Msg("dispatcher model failed, defaulting to insight")
		state.SelectedOps = defaultOps(query)
		return state, nil
	}
	chargeState(state, n.Dispatcher, out)

	ops := parsers.FromToolCalls(out)
	ops = parsers.CoerceCorrelation(ops, state.SubIntent)
	if len(ops) == 0 {
		logx.Debug().Str("query", query).Msg("dispatcher selected no operations, defaulting to insight")
		ops = defaultOps(query)
	}
	state.SelectedOps = ops

	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	logx.Debug().Strs("operations", names).Msg("operations selected")
	return state, nil
}

func defaultOps(query string) []model.SelectedOp {
	return []model.SelectedOp{{Name: model.OpInsight, Args: map[string]any{"query": query}}}
}

// AnalyzerCondition routes the selected operations: chart-only requests
// skip computation, multi-part analytical questions go through planning,
// everything else computes directly.
func AnalyzerCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, state *model.ConversationState) (string, error) {
		_, hasInsight := state.InsightOp()
		_, hasChart := state.ChartOp()
		switch {
		case !hasInsight && hasChart:
			return NodeViz, nil
		case !hasInsight:
			return NodeResponder, nil
		case needsPlanning(state.CurrentQuery()):
			return NodePlanner, nil
		default:
			return NodeInsight, nil
		}
	}
}

// needsPlanning is the routing-side complexity test. The planner keeps
// its own, stricter test; the two are intentionally separate signals.
func needsPlanning(query string) bool {
	q := " " + strings.ToLower(query) + " "
	for _, marker := range []string{
		" then ", " after that ", " compare ", " versus ", " vs ",
		" difference between ", " ratio ", " percentage of ", " breakdown ",
	} {
		if strings.Contains(q, marker) {
			return true
		}
	}
	if strings.Contains(q, " top ") && strings.Contains(q, " per ") {
		return true
	}
	return strings.Count(q, " and ") >= 2
}
