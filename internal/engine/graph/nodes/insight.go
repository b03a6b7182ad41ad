package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	errx "github.com/insightbot-core/engine/internal/core/error"
	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/graph/prompts"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/sandbox"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// summaryRowLimit caps how many result rows feed the summarizer prompt.
const summaryRowLimit = 15

// InsightNode computes the numeric answer for the turn. Rule-based
// shortcuts run first; everything else goes through snippet generation
// (or the accepted plan) and the sandboxed executor.
type InsightNode struct {
	CodeGen    llm.Caller
	Summarizer llm.Caller
	Tables     model.TableStore
	Executor   *sandbox.Executor
}

func (n *InsightNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	if state.Intent == model.IntentSummarizeLast {
		n.summarizeLast(ctx, state)
		return state, nil
	}

	query := state.CurrentQuery()
	if op, ok := state.InsightOp(); ok {
		if q := op.StringArg("query"); q != "" {
			query = q
		}
	}

	tables, err := n.Tables.LoadTables(ctx, state.SessionID)
	if err != nil {
		if errx.NotFound(err) {
			state.Error = "No tables are loaded yet. Upload a dataset first."
			return state, nil
		}
		logx.Error().Err(err).Str("session_id", state.SessionID).Msg("failed to load session tables")
		state.Error = "I couldn't access your data. Please reload your tables and try again."
		return state, nil
	}
	if len(tables) == 0 {
		state.Error = "No tables are loaded yet. Upload a dataset first."
		return state, nil
	}

	var result *sandbox.Result
	code := joinPlanCode(state.Plan)

	if code == "" {
		if rb := sandbox.TryRuleBased(query, tables); rb != nil {
			logx.Debug().Str("query", query).Msg("rule-based shortcut answered the query")
			result = rb
		} else {
			code = n.generateCode(ctx, state, query)
			if code == "" {
				state.Error = "I couldn't translate that question into an analysis. Try rephrasing it."
				return state, nil
			}
		}
	}

	if result == nil {
		state.GeneratedCode = code
		res, execErr := n.Executor.Execute(ctx, code, tables)
		if execErr != nil {
			n.recordExecutionError(state, execErr)
			return state, nil
		}
		result = res
	}

	state.InsightResult = result
	state.Insight = n.summarize(ctx, state, query, result)
	return state, nil
}

func joinPlanCode(plan []model.PlanStep) string {
	if len(plan) == 0 {
		return ""
	}
	lines := make([]string, 0, len(plan))
	for _, step := range plan {
		lines = append(lines, step.Code)
	}
	return strings.Join(lines, "\n")
}

func (n *InsightNode) generateCode(ctx context.Context, state *model.ConversationState, query string) string {
	sys, err := prompts.RenderCodeGenSystem(ctx,
		state.Schema.FormatForPrompt(),
		dataset.FormatForPrompt(state.Profile, profilePromptColumns),
	)
	if err != nil {
		logx.Error().Err(err).Msg("render code generation prompt failed")
		return ""
	}
	out, err := n.CodeGen.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(query),
	})
	if err != nil {
		logx.Error().Err(err).Msg("code generation model failed")
		return ""
	}
	chargeState(state, n.CodeGen, out)

	code := sandbox.StripFences(out.Content)
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return sandbox.EnsureResultBinding(code)
}

func (n *InsightNode) recordExecutionError(state *model.ConversationState, execErr *sandbox.Error) {
	logx.Warn().
		Str("kind", string(execErr.Kind)).
		Str("message", execErr.Message).
		Msg("snippet execution failed")

	switch execErr.Kind {
	case sandbox.ErrTimeout:
		state.Error = "That analysis took too long and was stopped. Try narrowing the question, for example with a filter."
	case sandbox.ErrColumnNotFound:
		state.Error = fmt.Sprintf("I couldn't find a column named %q.", execErr.Column)
		state.ErrorSuggestion = &model.ErrorSuggestion{
			Mention:    execErr.Column,
			Candidates: execErr.SuggestedColumns,
		}
	default:
		state.Error = "The analysis failed to run. Try rephrasing the question."
	}
}

// summarize turns a computed result into 1-3 narrated sentences. When
// the summarizer is unavailable the raw result is phrased directly.
func (n *InsightNode) summarize(ctx context.Context, state *model.ConversationState, query string, result *sandbox.Result) string {
	resultText := formatResultForPrompt(result)
	sys, err := prompts.RenderSummarizerSystem(ctx, query, resultText)
	if err == nil {
		out, genErr := n.Summarizer.Generate(ctx, []*schema.Message{
			schema.SystemMessage(sys),
			schema.UserMessage("Summarize the result."),
		})
		if genErr == nil && strings.TrimSpace(out.Content) != "" {
			chargeState(state, n.Summarizer, out)
			return strings.TrimSpace(out.Content)
		}
		if genErr != nil {
			logx.Warn().Err(genErr).Msg("summarizer model failed, using plain phrasing")
		}
	} else {
		logx.Warn().Err(err).Msg("render summarizer prompt failed, using plain phrasing")
	}

	if result.IsTable() {
		return fmt.Sprintf("The result has %d rows across %d columns.", result.Shape[0], result.Shape[1])
	}
	return fmt.Sprintf("The answer is %s.", sandbox.FormatScalar(result.Scalar))
}

// summarizeLast re-narrates the previous turn's insight.
func (n *InsightNode) summarizeLast(ctx context.Context, state *model.ConversationState) {
	if state.Context.LastInsightSummary == "" {
		state.Error = "There's no previous analysis to summarize yet. Ask a question about your data first."
		return
	}
	sys, err := prompts.RenderSummarizerSystem(ctx, state.Context.LastQuery, state.Context.LastInsightSummary)
	if err == nil {
		out, genErr := n.Summarizer.Generate(ctx, []*schema.Message{
			schema.SystemMessage(sys),
			schema.UserMessage("Restate the previous answer concisely."),
		})
		if genErr == nil && strings.TrimSpace(out.Content) != "" {
			chargeState(state, n.Summarizer, out)
			state.Insight = strings.TrimSpace(out.Content)
			return
		}
	}
	state.Insight = state.Context.LastInsightSummary
}

// formatResultForPrompt renders a result compactly for the summarizer.
func formatResultForPrompt(result *sandbox.Result) string {
	if !result.IsTable() {
		return sandbox.FormatScalar(result.Scalar)
	}
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")
	for i, row := range result.Rows {
		if i == summaryRowLimit {
			fmt.Fprintf(&b, "... (%d more rows)\n", len(result.Rows)-summaryRowLimit)
			break
		}
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = sandbox.FormatScalar(cell)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

// InsightCondition sends successful turns with a chart request on to
// visualization; failures and chart-less turns respond directly.
func InsightCondition() func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, state *model.ConversationState) (string, error) {
		if state.Error != "" {
			return NodeResponder, nil
		}
		if _, hasChart := state.ChartOp(); hasChart || wantsImplicitChart(state) {
			return NodeViz, nil
		}
		return NodeResponder, nil
	}
}

// wantsImplicitChart lets a tabular grouped result become a chart when
// the router saw visual phrasing even though no chart tool was called.
func wantsImplicitChart(state *model.ConversationState) bool {
	return state.PreferChart && state.InsightResult.IsTable() && len(state.InsightResult.Columns) >= 2
}
