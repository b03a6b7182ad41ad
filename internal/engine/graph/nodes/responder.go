package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// operationHistoryCap bounds the stored operation history.
const operationHistoryCap = 20

// ResponderNode composes the assistant reply for the turn, appends it
// to history with its snapshot, and refreshes the continuity context.
type ResponderNode struct {
	SmallTalk llm.Caller
}

func (n *ResponderNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	var content string
	switch {
	case state.Intent == model.IntentSmallTalk:
		content = n.smallTalk(ctx, state)
	case state.ErrorSuggestion != nil:
		content = didYouMean(state)
	case state.Error != "":
		content = state.Error
	default:
		content = n.composeInsight(state)
	}

	state.AppendAssistant(content)
	state.Snapshots = append(state.Snapshots, model.TurnSnapshot{
		ChartSpec:     state.ChartSpec,
		InsightResult: state.InsightResult,
		GeneratedCode: state.GeneratedCode,
		ChartError:    state.ChartError,
	})

	n.updateContinuity(state)
	return state, nil
}

func (n *ResponderNode) smallTalk(ctx context.Context, state *model.ConversationState) string {
	sys, err := prompts.RenderSmallTalkSystem(ctx, state.Schema.AllColumns())
	if err == nil {
		out, genErr := n.SmallTalk.Generate(ctx, []*schema.Message{
			schema.SystemMessage(sys),
			schema.UserMessage(state.LastUserMessage()),
		})
		if genErr == nil && strings.TrimSpace(out.Content) != "" {
			chargeState(state, n.SmallTalk, out)
			return strings.TrimSpace(out.Content)
		}
		if genErr != nil {
			logx.Warn().Err(genErr).Msg("small talk model failed, using canned reply")
		}
	}
	return "Hi! I'm here to help you explore your data. Ask me anything about your tables."
}

func didYouMean(state *model.ConversationState) string {
	var b strings.Builder
	b.WriteString(state.Error)
	if cands := state.ErrorSuggestion.Candidates; len(cands) > 0 {
		b.WriteString(" Did you mean: ")
		b.WriteString(strings.Join(cands, ", "))
		b.WriteString("?")
	}
	return b.String()
}

func (n *ResponderNode) composeInsight(state *model.ConversationState) string {
	var parts []string
	if state.Insight != "" {
		parts = append(parts, state.Insight)
	}
	switch {
	case state.ChartSpec != nil && state.ChartReason != "":
		parts = append(parts, state.ChartReason)
	case state.ChartSpec != nil:
		parts = append(parts, "Here's the chart.")
	case state.ChartError != "":
		parts = append(parts, state.ChartError)
	}
	if len(parts) == 0 {
		if state.InsightResult.IsTable() {
			parts = append(parts, "Here's what I found in your data.")
		} else {
			parts = append(parts, "I wasn't able to produce an answer for that. Try rephrasing the question.")
		}
	}
	return strings.Join(parts, "\n\n")
}

// updateContinuity records what this turn was about so short follow-ups
// next turn can be resolved. Failed turns keep the previous context.
func (n *ResponderNode) updateContinuity(state *model.ConversationState) {
	if state.Intent == model.IntentSmallTalk {
		return
	}
	if state.Error == "" && (state.Insight != "" || state.ChartSpec != nil) {
		state.Context = model.ConversationContext{
			LastQuery:          state.CurrentQuery(),
			LastInsightSummary: state.Insight,
		}
	}
	for _, op := range state.SelectedOps {
		state.OperationHistory = append(state.OperationHistory, op.Name)
	}
	if len(state.OperationHistory) > operationHistoryCap {
		state.OperationHistory = state.OperationHistory[len(state.OperationHistory)-operationHistoryCap:]
	}
}
