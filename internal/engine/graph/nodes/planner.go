package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/graph/parsers"
	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/sandbox"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// PlannerNode decomposes a complex question into an ordered snippet
// plan. Questions that its own test deems simple carry no plan at all;
// a plan that fails to parse degrades to a single empty step so the
// insight stage generates the query directly.
type PlannerNode struct {
	Planner llm.Caller
}

func (n *PlannerNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	query := state.CurrentQuery()
	if !planWorthy(query) {
		logx.Debug().Str("query", query).Msg("question simple enough, skipping plan")
		return state, nil
	}

	sys, err := prompts.RenderPlannerSystem(ctx, state.Schema.FormatForPrompt())
	if err != nil {
		logx.Warn().Err(err).Msg("render planner prompt failed, skipping plan")
		return state, nil
	}
	out, err := n.Planner.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(query),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("planner model failed, skipping plan")
		return state, nil
	}
	chargeState(state, n.Planner, out)

	steps, err := parsers.ParsePlan(out.Content)
	if err != nil {
		logx.Warn().Err(err).Msg("plan did not parse, using single-step fallback plan")
		state.Plan = fallbackPlan()
		return state, nil
	}
	steps, ok := bindPlanResult(steps)
	if !ok {
		logx.Warn().Msg("plan binds the result variable ambiguously, using single-step fallback plan")
		state.Plan = fallbackPlan()
		return state, nil
	}
	state.Plan = steps
	logx.Debug().Int("steps", len(steps)).Msg("plan accepted")
	return state, nil
}

// fallbackPlan is the degraded plan used when the model's plan is
// unusable. Its single step carries no code, which tells the insight
// stage to generate the query directly.
func fallbackPlan() []model.PlanStep {
	return []model.PlanStep{{
		Step:        1,
		Description: "run the query directly",
		Code:        "",
		OutputVar:   sandbox.ResultVar,
	}}
}

// planWorthy is the planner's own complexity test, stricter than the
// routing one: it demands several distinct analytic actions.
func planWorthy(query string) bool {
	q := strings.ToLower(query)
	verbs := 0
	for _, v := range []string{
		"filter", "group", "average", "mean", "sum", "count", "rank",
		"sort", "top", "correlat", "compare", "trend",
	} {
		if strings.Contains(q, v) {
			verbs++
		}
	}
	if verbs >= 2 {
		return true
	}
	return strings.Contains(q, "for each") || strings.Contains(q, "grouped by") || strings.Contains(q, "step by step")
}

// bindPlanResult guarantees the final step binds the result variable.
// The final step's own binding is renamed when possible; otherwise a
// forwarding step is appended. A plan whose earlier step already claims
// the result variable is rejected.
func bindPlanResult(steps []model.PlanStep) ([]model.PlanStep, bool) {
	last := len(steps) - 1
	if steps[last].OutputVar == sandbox.ResultVar {
		return steps, true
	}
	for i := 0; i < last; i++ {
		if steps[i].OutputVar == sandbox.ResultVar {
			return nil, false
		}
	}

	final := steps[last]
	if eq := strings.Index(final.Code, "="); eq > 0 && strings.TrimSpace(final.Code[:eq]) == final.OutputVar {
		steps[last].Code = sandbox.ResultVar + " =" + final.Code[eq+1:]
		steps[last].OutputVar = sandbox.ResultVar
		return steps, true
	}
	steps = append(steps, model.PlanStep{
		Step:        len(steps) + 1,
		Description: "bind the final answer",
		Code:        sandbox.ResultVar + " = " + final.OutputVar,
		OutputVar:   sandbox.ResultVar,
	})
	return steps, true
}
