package parsers

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// FromToolCalls converts the dispatcher's tool calls into selected
// operations. At most one chart operation is kept (the first);
// unknown tools and malformed arguments are dropped with a warning.
func FromToolCalls(msg *schema.Message) []model.SelectedOp {
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil
	}
	var ops []model.SelectedOp
	chartSeen := false
	for _, tc := range msg.ToolCalls {
		name := tc.Function.Name
		if name != model.OpInsight && !model.IsChartOp(name) {
			logx.Warn().Str("component", "ops_parser").Str("tool", name).Msg("unknown tool call dropped")
			continue
		}
		args := map[string]any{}
		if raw := tc.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				logx.Warn().Err(err).Str("component", "ops_parser").Str("tool", name).Msg("tool arguments unmarshal failed, dropping call")
				continue
			}
		}
		if model.IsChartOp(name) {
			if chartSeen {
				continue
			}
			chartSeen = true
		}
		ops = append(ops, model.SelectedOp{Name: name, Args: args})
	}
	return ops
}

// CoerceCorrelation rewrites a mismatched chart choice for correlation
// questions: bar and scatter picks become a correlation matrix so the
// downstream chart stage renders relationships, not categories.
func CoerceCorrelation(ops []model.SelectedOp, subIntent string) []model.SelectedOp {
	if subIntent != model.SubIntentCorrelate {
		return ops
	}
	for i, op := range ops {
		if op.Name == model.OpBarChart || op.Name == model.OpScatterChart {
			// a scatter of two explicitly named columns is legitimate
			if op.Name == model.OpScatterChart && op.StringArg("x") != "" && op.StringArg("y") != "" {
				continue
			}
			logx.Debug().Str("component", "ops_parser").Str("from", op.Name).Msg("coercing chart op to correlation_matrix")
			ops[i].Name = model.OpCorrelationMatrix
		}
	}
	return ops
}
