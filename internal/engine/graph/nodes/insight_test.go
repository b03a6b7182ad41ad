package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/engine/repo"
	"github.com/insightbot-core/engine/internal/sandbox"
)

func storedSales(t *testing.T, sessionID string) *repo.MemoryStateRepository {
	t.Helper()
	store := repo.NewMemoryStateRepository()
	err := store.SaveTables(context.Background(), sessionID, map[string]*dataset.Table{"sales": salesTable()})
	require.NoError(t, err)
	return store
}

func newInsightNode(store model.TableStore, codeGen, summarizer *fakeCaller) *InsightNode {
	return &InsightNode{
		CodeGen:    codeGen,
		Summarizer: summarizer,
		Tables:     store,
		Executor:   sandbox.NewExecutor(),
	}
}

func TestInsightRuleBasedPath(t *testing.T) {
	codeGen := &fakeCaller{err: errors.New("should not be called")}
	n := newInsightNode(storedSales(t, "s1"), codeGen, &fakeCaller{err: errors.New("down")})
	state := salesState("s1", "what is the average revenue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Zero(t, codeGen.calls)
	require.NotNil(t, out.InsightResult)
	assert.Equal(t, sandbox.MethodRuleBased, out.InsightResult.ExecutionMethod)
	assert.InDelta(t, 150.0, out.InsightResult.Scalar.(float64), 1e-9)
	assert.Equal(t, "The answer is 150.", out.Insight)
	assert.Empty(t, out.Error)
}

func TestInsightGeneratedPath(t *testing.T) {
	codeGen := &fakeCaller{content: "```\nresult = df | group_by(region) | agg(sum, revenue)\n```"}
	summarizer := &fakeCaller{content: "US leads with 450 in total revenue."}
	n := newInsightNode(storedSales(t, "s1"), codeGen, summarizer)
	state := salesState("s1", "total revenue broken down per region")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 1, codeGen.calls)
	assert.Equal(t, "result = df | group_by(region) | agg(sum, revenue)", out.GeneratedCode)
	require.True(t, out.InsightResult.IsTable())
	assert.Equal(t, sandbox.MethodGenerated, out.InsightResult.ExecutionMethod)
	assert.Equal(t, "US leads with 450 in total revenue.", out.Insight)
}

func TestInsightColumnNotFound(t *testing.T) {
	codeGen := &fakeCaller{content: "result = df | mean(revnue)"}
	n := newInsightNode(storedSales(t, "s1"), codeGen, &fakeCaller{})
	state := salesState("s1", "mean of revnue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, out.Error, `"revnue"`)
	require.NotNil(t, out.ErrorSuggestion)
	assert.Equal(t, "revnue", out.ErrorSuggestion.Mention)
	assert.Contains(t, out.ErrorSuggestion.Candidates, "revenue")
	assert.Nil(t, out.InsightResult)
}

func TestInsightPlanOverridesGeneration(t *testing.T) {
	codeGen := &fakeCaller{err: errors.New("should not be called")}
	summarizer := &fakeCaller{err: errors.New("down")}
	n := newInsightNode(storedSales(t, "s1"), codeGen, summarizer)
	state := salesState("s1", "average revenue for each region then rank them")
	state.Plan = []model.PlanStep{
		{Step: 1, Code: "grouped = df | group_by(region) | agg(mean, revenue)", OutputVar: "grouped"},
		{Step: 2, Code: "result = grouped | sort(revenue, desc)", OutputVar: "result"},
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Zero(t, codeGen.calls)
	require.True(t, out.InsightResult.IsTable())
	assert.Equal(t, "The result has 3 rows across 2 columns.", out.Insight)
}

func TestInsightNoTablesLoaded(t *testing.T) {
	n := newInsightNode(repo.NewMemoryStateRepository(), &fakeCaller{}, &fakeCaller{})
	state := salesState("s1", "average revenue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, out.Error, "No tables are loaded yet")
}

func TestInsightEmptyGenerationFails(t *testing.T) {
	n := newInsightNode(storedSales(t, "s1"), &fakeCaller{content: "   "}, &fakeCaller{})
	state := salesState("s1", "do something clever with the dataset please")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, out.Error, "couldn't translate that question")
}

func TestInsightSummarizeLast(t *testing.T) {
	summarizer := &fakeCaller{err: errors.New("down")}
	n := newInsightNode(storedSales(t, "s1"), &fakeCaller{}, summarizer)
	state := salesState("s1", "summarize that again")
	state.Intent = model.IntentSummarizeLast
	state.Context = model.ConversationContext{
		LastQuery:          "average revenue by region",
		LastInsightSummary: "EU leads with 125 on average.",
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "EU leads with 125 on average.", out.Insight)
}

func TestInsightSummarizeLastWithoutContext(t *testing.T) {
	n := newInsightNode(storedSales(t, "s1"), &fakeCaller{}, &fakeCaller{})
	state := salesState("s1", "summarize that")
	state.Intent = model.IntentSummarizeLast

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, out.Error, "no previous analysis")
}

func TestInsightUsesInsightOpQuery(t *testing.T) {
	n := newInsightNode(storedSales(t, "s1"), &fakeCaller{}, &fakeCaller{err: errors.New("down")})
	state := salesState("s1", "run the analysis we discussed earlier today")
	state.SelectedOps = []model.SelectedOp{
		{Name: model.OpInsight, Args: map[string]any{"query": "sum of revenue"}},
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, out.InsightResult)
	assert.InDelta(t, 750.0, out.InsightResult.Scalar.(float64), 1e-9)
}

func TestInsightSingleStepPlanMatchesDirectGeneration(t *testing.T) {
	summarizer := &fakeCaller{err: errors.New("down")}

	planned := salesState("s1", "mean revenue computed step by step")
	planned.Plan = []model.PlanStep{
		{Step: 1, Code: "result = df | mean(revenue)", OutputVar: "result"},
	}
	n := newInsightNode(storedSales(t, "s1"), &fakeCaller{err: errors.New("unused")}, summarizer)
	plannedOut, err := n.Run(context.Background(), planned)
	require.NoError(t, err)

	direct := salesState("s2", "run the revenue calculation I described")
	n = newInsightNode(storedSales(t, "s2"), &fakeCaller{content: "result = df | mean(revenue)"}, summarizer)
	directOut, err := n.Run(context.Background(), direct)
	require.NoError(t, err)

	require.NotNil(t, plannedOut.InsightResult)
	require.NotNil(t, directOut.InsightResult)
	assert.Equal(t, plannedOut.InsightResult.Scalar, directOut.InsightResult.Scalar)
	assert.Equal(t, plannedOut.Insight, directOut.Insight)
}

func TestInsightCondition(t *testing.T) {
	cond := InsightCondition()
	ctx := context.Background()

	failed := &model.ConversationState{Error: "boom"}
	next, err := cond(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, NodeResponder, next)

	charted := &model.ConversationState{
		SelectedOps: []model.SelectedOp{{Name: model.OpBarChart}},
	}
	next, _ = cond(ctx, charted)
	assert.Equal(t, NodeViz, next)

	implicit := &model.ConversationState{
		PreferChart: true,
		InsightResult: &sandbox.Result{
			Kind:    "table",
			Columns: []string{"region", "revenue"},
		},
	}
	next, _ = cond(ctx, implicit)
	assert.Equal(t, NodeViz, next)

	scalar := &model.ConversationState{
		InsightResult: &sandbox.Result{Kind: "scalar", Scalar: 150.0},
	}
	next, _ = cond(ctx, scalar)
	assert.Equal(t, NodeResponder, next)
}
