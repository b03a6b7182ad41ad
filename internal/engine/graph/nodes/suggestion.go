package nodes

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/graph/parsers"
	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// cannedSuggestions keys intent to fallback follow-ups used when the
// suggestion model is unavailable.
var cannedSuggestions = map[string][]string{
	model.IntentDataQuery: {
		"Break that down by another category",
		"Show the same numbers as a chart",
		"What does the trend look like over time?",
	},
	model.IntentVisualization: {
		"Show the underlying numbers as a table",
		"Change the aggregation, for example to an average",
		"Filter the chart to a single category",
	},
	model.IntentReport: {
		"Drill into one of the report's sections",
		"Which column has the most missing values?",
		"Show correlations between the numeric columns",
	},
	model.IntentSmallTalk: {
		"What columns does my data have?",
		"Give me an overview of the dataset",
		"What's the average of a numeric column?",
	},
}

// SuggestionNode proposes up to three follow-up questions for the turn.
// It never fails the turn: model problems fall back to canned
// suggestions keyed by intent.
type SuggestionNode struct {
	Suggester llm.Caller
}

func (n *SuggestionNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	state.Suggestions = n.suggest(ctx, state)
	return state, nil
}

func (n *SuggestionNode) suggest(ctx context.Context, state *model.ConversationState) []string {
	sys, err := prompts.RenderSuggestionSystem(ctx,
		state.Schema.FormatForPrompt(),
		state.CurrentQuery(),
		state.Intent,
	)
	if err != nil {
		logx.Warn().Err(err).Msg("render suggestion prompt failed, using canned suggestions")
		return canned(state.Intent)
	}
	out, err := n.Suggester.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage("Suggest follow-up questions."),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("suggestion model failed, using canned suggestions")
		return canned(state.Intent)
	}
	chargeState(state, n.Suggester, out)

	suggestions := parsers.ParseSuggestions(out.Content)
	if len(suggestions) == 0 {
		return canned(state.Intent)
	}
	return suggestions
}

func canned(intent string) []string {
	if s, ok := cannedSuggestions[intent]; ok {
		return append([]string(nil), s...)
	}
	return append([]string(nil), cannedSuggestions[model.IntentDataQuery]...)
}
