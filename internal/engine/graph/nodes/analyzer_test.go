package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot-core/engine/internal/engine/model"
)

func TestAnalyzerSelectsOperations(t *testing.T) {
	dispatcher := &fakeCaller{toolCalls: []schema.ToolCall{
		{Function: schema.FunctionCall{Name: model.OpInsight, Arguments: `{"query": "revenue by region"}`}},
		{Function: schema.FunctionCall{Name: model.OpBarChart, Arguments: `{"x": "region", "y": "revenue", "agg": "sum"}`}},
	}}
	n := &AnalyzerNode{Dispatcher: dispatcher}
	state := salesState("s1", "show revenue by region as a bar chart")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.SelectedOps, 2)
	assert.Equal(t, model.OpInsight, out.SelectedOps[0].Name)
	assert.Equal(t, model.OpBarChart, out.SelectedOps[1].Name)
}

func TestAnalyzerDefaultsToInsightOnModelFailure(t *testing.T) {
	n := &AnalyzerNode{Dispatcher: &fakeCaller{err: errors.New("boom")}}
	state := salesState("s1", "average revenue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.SelectedOps, 1)
	assert.Equal(t, model.OpInsight, out.SelectedOps[0].Name)
	assert.Equal(t, "average revenue", out.SelectedOps[0].StringArg("query"))
}

func TestAnalyzerDefaultsWhenNoToolCalls(t *testing.T) {
	n := &AnalyzerNode{Dispatcher: &fakeCaller{content: "I would just compute it."}}
	state := salesState("s1", "average revenue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.SelectedOps, 1)
	assert.Equal(t, model.OpInsight, out.SelectedOps[0].Name)
}

func TestAnalyzerCoercesCorrelationCharts(t *testing.T) {
	dispatcher := &fakeCaller{toolCalls: []schema.ToolCall{
		{Function: schema.FunctionCall{Name: model.OpBarChart, Arguments: `{"x": "region"}`}},
	}}
	n := &AnalyzerNode{Dispatcher: dispatcher}
	state := salesState("s1", "how do the numeric columns correlate?")
	state.SubIntent = model.SubIntentCorrelate

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.SelectedOps, 1)
	assert.Equal(t, model.OpCorrelationMatrix, out.SelectedOps[0].Name)
}

func TestAnalyzerCondition(t *testing.T) {
	cond := AnalyzerCondition()
	ctx := context.Background()

	chartOnly := &model.ConversationState{SelectedOps: []model.SelectedOp{{Name: model.OpBarChart}}}
	next, err := cond(ctx, chartOnly)
	require.NoError(t, err)
	assert.Equal(t, NodeViz, next)

	none := &model.ConversationState{}
	next, _ = cond(ctx, none)
	assert.Equal(t, NodeResponder, next)

	complexQuery := &model.ConversationState{
		SelectedOps:    []model.SelectedOp{{Name: model.OpInsight}},
		EffectiveQuery: "compare revenue between EU and US",
	}
	next, _ = cond(ctx, complexQuery)
	assert.Equal(t, NodePlanner, next)

	simple := &model.ConversationState{
		SelectedOps:    []model.SelectedOp{{Name: model.OpInsight}},
		EffectiveQuery: "average revenue",
	}
	next, _ = cond(ctx, simple)
	assert.Equal(t, NodeInsight, next)
}

func TestNeedsPlanning(t *testing.T) {
	assert.True(t, needsPlanning("compare revenue between EU and US"))
	assert.True(t, needsPlanning("revenue by region, then rank the regions"))
	assert.True(t, needsPlanning("top product per region"))
	assert.True(t, needsPlanning("revenue and units and margin"))

	assert.False(t, needsPlanning("average revenue"))
	assert.False(t, needsPlanning("revenue by region"))
}

func TestPlannerAcceptsPlan(t *testing.T) {
	planner := &fakeCaller{content: `[
		{"step": 1, "description": "group by region", "code": "grouped = df | group_by(region) | agg(mean, revenue)"},
		{"step": 2, "description": "rank regions", "code": "ranked = grouped | sort(revenue, desc)"}
	]`}
	n := &PlannerNode{Planner: planner}
	state := salesState("s1", "average revenue for each region then rank them")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.Plan, 2)
	assert.Equal(t, "grouped", out.Plan[0].OutputVar)
	assert.Equal(t, "result", out.Plan[1].OutputVar)
	assert.Equal(t, "result = grouped | sort(revenue, desc)", out.Plan[1].Code)
}

func TestPlannerSkipsSimpleQuery(t *testing.T) {
	planner := &fakeCaller{}
	n := &PlannerNode{Planner: planner}
	state := salesState("s1", "average revenue")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.Plan)
	assert.Zero(t, planner.calls)
}

func TestPlannerUnparseablePlanDegradesToSingleStep(t *testing.T) {
	n := &PlannerNode{Planner: &fakeCaller{content: "I would group and then sort."}}
	state := salesState("s1", "average revenue for each region then rank them")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.Plan, 1)
	assert.Equal(t, 1, out.Plan[0].Step)
	assert.Empty(t, out.Plan[0].Code)
	assert.Equal(t, "result", out.Plan[0].OutputVar)
}

func TestPlannerAmbiguousResultBindingDegradesToSingleStep(t *testing.T) {
	// an early step claims the result variable, so the plan is unusable
	n := &PlannerNode{Planner: &fakeCaller{content: `[
		{"step": 1, "description": "group", "code": "result = df | group_by(region) | agg(mean, revenue)"},
		{"step": 2, "description": "rank", "code": "ranked = grouped | sort(revenue, desc)"}
	]`}}
	state := salesState("s1", "average revenue for each region then rank them")

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, out.Plan, 1)
	assert.Empty(t, out.Plan[0].Code)
	assert.Equal(t, "result", out.Plan[0].OutputVar)
}

func TestFallbackPlanRunsQueryDirectly(t *testing.T) {
	// a single empty step joins to no code, so the insight stage
	// generates the snippet from the query itself
	assert.Equal(t, "", joinPlanCode(fallbackPlan()))
}

func TestPlanWorthy(t *testing.T) {
	assert.True(t, planWorthy("filter to EU and sum the revenue"))
	assert.True(t, planWorthy("revenue for each region"))
	assert.True(t, planWorthy("walk me through it step by step"))

	assert.False(t, planWorthy("average revenue"))
	assert.False(t, planWorthy("what is in the data"))
}

func TestBindPlanResult(t *testing.T) {
	steps := []model.PlanStep{
		{Step: 1, Code: "result = df | count()", OutputVar: "result"},
	}
	out, ok := bindPlanResult(steps)
	require.True(t, ok)
	assert.Equal(t, "result", out[0].OutputVar)

	steps = []model.PlanStep{
		{Step: 1, Code: "result = df | count()", OutputVar: "result"},
		{Step: 2, Code: "extra = df | head(5)", OutputVar: "extra"},
	}
	_, ok = bindPlanResult(steps)
	assert.False(t, ok)

	steps = []model.PlanStep{
		{Step: 1, Code: "df | head(3)", OutputVar: "ranked"},
	}
	out, ok = bindPlanResult(steps)
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "result = ranked", out[1].Code)
	assert.Equal(t, "result", out[1].OutputVar)
}
