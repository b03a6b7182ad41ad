package nodes

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/graph/parsers"
	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// routerHistoryDepth bounds how many recent operations feed the
// classification prompt.
const routerHistoryDepth = 5

// maxAmbiguousMentionLen bounds the token length considered for
// ambiguous column mentions.
const maxAmbiguousMentionLen = 10

// maxClarificationOptions caps how many candidate columns a
// clarification question offers.
const maxClarificationOptions = 10

// RouterNode classifies the incoming message, resolves pending
// clarifications and short follow-ups, and flags ambiguous column
// mentions for the clarification stage.
type RouterNode struct {
	Classifier llm.Caller
	Resolver   llm.Caller
}

func (n *RouterNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	raw := state.LastUserMessage()

	resolvedClarification := false
	if state.NeedsClarification {
		resolvedClarification = n.resolveClarification(state, raw)
	}

	query := state.CurrentQuery()
	n.classify(ctx, state, query)

	if state.Intent == model.IntentSmallTalk || state.Intent == model.IntentSummarizeLast {
		return state, nil
	}

	if !resolvedClarification && state.EffectiveQuery == "" && (state.IsFollowUp || isFollowUp(raw)) && !state.Context.Empty() {
		n.resolveFollowUp(ctx, state, raw)
		query = state.CurrentQuery()
	}

	// a query produced by clarification resolution is unambiguous by construction
	if !resolvedClarification {
		if mention, candidates := detectAmbiguousMention(query, state.Schema.AllColumns()); mention != "" {
			logx.Debug().
				Str("mention", mention).
				Strs("candidates", candidates).
				Msg("ambiguous column mention, asking for clarification")
			state.NeedsClarification = true
			state.ClarificationMention = mention
			state.ClarificationOptions = candidates
			state.ClarificationOriginalQuery = query
		}
	}
	return state, nil
}

// resolveClarification interprets the user's answer to a pending
// clarification question. The answer matches an option verbatim or by
// its 1-based position; anything else abandons the clarification and
// treats the message as a fresh query.
func (n *RouterNode) resolveClarification(state *model.ConversationState, answer string) bool {
	options := state.ClarificationOptions
	original := state.ClarificationOriginalQuery
	mention := state.ClarificationMention

	state.NeedsClarification = false
	state.ClarificationOptions = nil
	state.ClarificationMention = ""
	state.ClarificationOriginalQuery = ""

	trimmed := strings.TrimSpace(answer)
	chosen := ""
	for _, opt := range options {
		if strings.EqualFold(trimmed, opt) {
			chosen = opt
			break
		}
	}
	if chosen == "" {
		if idx, err := strconv.Atoi(trimmed); err == nil && idx >= 1 && idx <= len(options) {
			chosen = options[idx-1]
		}
	}
	if chosen == "" {
		logx.Debug().Str("answer", trimmed).Msg("clarification answer did not match, treating as new query")
		return false
	}

	state.EffectiveQuery = replaceMention(original, mention, chosen)
	logx.Debug().
		Str("column", chosen).
		Str("effective_query", state.EffectiveQuery).
		Msg("clarification resolved")
	return true
}

func (n *RouterNode) classify(ctx context.Context, state *model.ConversationState, query string) {
	fallback := func() {
		state.Intent = model.IntentDataQuery
		state.SubIntent = model.SubIntentGeneral
		state.Confidence = 1.0
	}

	opHistory := state.OperationHistory
	if len(opHistory) > routerHistoryDepth {
		opHistory = opHistory[len(opHistory)-routerHistoryDepth:]
	}
	sys, err := prompts.RenderRouterSystem(ctx, state.Schema.FormatForPrompt(), strings.Join(opHistory, ", "))
	if err != nil {
		logx.Error().Err(err).Msg("render router prompt failed, falling back to data_query")
		fallback()
		return
	}

	out, err := n.Classifier.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(query),
	})
	if err != nil {
		logx.Error().Err(err).Msg("router model failed, falling back to data_query")
		fallback()
		return
	}
	chargeState(state, n.Classifier, out)

	c := parsers.ParseClassification(out.Content)
	state.Intent = c.Intent
	state.SubIntent = c.SubIntent
	state.PreferChart = c.PreferChart
	state.Confidence = c.Confidence
	state.IsFollowUp = c.IsFollowUp
	state.Entities = model.Entities{
		MentionedColumns: c.MentionedColumns,
		Operations:       c.Operations,
	}
}

func (n *RouterNode) resolveFollowUp(ctx context.Context, state *model.ConversationState, raw string) {
	sys, err := prompts.RenderResolverSystem(ctx, state.Context.LastQuery, state.Context.LastInsightSummary)
	if err != nil {
		logx.Warn().Err(err).Msg("render resolver prompt failed, keeping raw query")
		return
	}
	out, err := n.Resolver.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(raw),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("follow-up resolver failed, keeping raw query")
		return
	}
	chargeState(state, n.Resolver, out)

	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(out.Content), `"`))
	if rewritten == "" || len(rewritten) > 500 {
		return
	}
	if !strings.EqualFold(rewritten, raw) {
		logx.Debug().Str("raw", raw).Str("resolved", rewritten).Msg("follow-up resolved")
		state.EffectiveQuery = rewritten
	}
}

// RouterCondition picks the next stage from the routed state.
func RouterCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, state *model.ConversationState) (string, error) {
		switch {
		case state.NeedsClarification:
			return NodeClarification, nil
		case state.Intent == model.IntentSmallTalk:
			return NodeResponder, nil
		case state.Intent == model.IntentSummarizeLast:
			return NodeInsight, nil
		default:
			return NodeAnalyzer, nil
		}
	}
}

var followUpPrefixes = []string{
	"and ", "what about", "how about", "also ", "same ", "now ",
}

// isFollowUp flags short messages that lean on the previous turn.
func isFollowUp(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(msg))
	if m == "" {
		return false
	}
	for _, p := range followUpPrefixes {
		if strings.HasPrefix(m, p) {
			return true
		}
	}
	words := strings.Fields(m)
	if len(words) <= 4 {
		return true
	}
	if len(words) <= 6 {
		for _, w := range words {
			if w == "it" || w == "that" || w == "those" || w == "them" {
				return true
			}
		}
	}
	return false
}

var mentionStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "what": {}, "show": {}, "plot": {},
	"chart": {}, "graph": {}, "mean": {}, "sum": {}, "count": {}, "average": {},
	"total": {}, "max": {}, "min": {}, "top": {}, "over": {}, "per": {},
	"each": {}, "with": {}, "how": {}, "many": {}, "much": {}, "all": {},
}

// detectAmbiguousMention finds the first query token that partially
// matches two or more schema columns. A token matching exactly one
// column, or one exactly, is not ambiguous.
func detectAmbiguousMention(query string, columns []string) (string, []string) {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, tok := range tokens {
		if len(tok) < 3 || len(tok) > maxAmbiguousMentionLen {
			continue
		}
		if _, stop := mentionStopwords[tok]; stop {
			continue
		}
		exact := false
		var candidates []string
		for _, col := range columns {
			lc := strings.ToLower(col)
			if lc == tok {
				exact = true
				break
			}
			if strings.Contains(lc, tok) || strings.Contains(tok, lc) {
				candidates = append(candidates, col)
			}
		}
		if exact {
			continue
		}
		if len(candidates) >= 2 {
			if len(candidates) > maxClarificationOptions {
				candidates = candidates[:maxClarificationOptions]
			}
			return tok, candidates
		}
	}
	return "", nil
}

// replaceMention swaps the ambiguous mention for the chosen column,
// case-insensitively, first occurrence only.
func replaceMention(query, mention, column string) string {
	if mention == "" {
		return query
	}
	idx := strings.Index(strings.ToLower(query), strings.ToLower(mention))
	if idx < 0 {
		return query + " (" + column + ")"
	}
	return query[:idx] + column + query[idx+len(mention):]
}

// chargeState accumulates model cost into the session total.
func chargeState(state *model.ConversationState, caller llm.Caller, out *schema.Message) {
	state.TotalCostUSD += llm.MessageCost(caller.Name(), out)
}
