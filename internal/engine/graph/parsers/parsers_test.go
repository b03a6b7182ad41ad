package parsers

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot-core/engine/internal/engine/model"
)

func TestParseClassification(t *testing.T) {
	c := ParseClassification(`{"intent": "visualization_request", "sub_intent": "trend", "prefer_chart": true, "mentioned_columns": ["revenue"]}`)
	assert.Equal(t, model.IntentVisualization, c.Intent)
	assert.Equal(t, model.SubIntentTrend, c.SubIntent)
	assert.True(t, c.PreferChart)
	assert.Equal(t, []string{"revenue"}, c.MentionedColumns)
}

func TestParseClassificationFenced(t *testing.T) {
	c := ParseClassification("Here you go:\n```json\n{\"intent\": \"small_talk\", \"sub_intent\": \"general\"}\n```")
	assert.Equal(t, model.IntentSmallTalk, c.Intent)
}

func TestParseClassificationFallsBack(t *testing.T) {
	for _, content := range []string{
		"",
		"I couldn't classify that.",
		`{"intent": "telepathy", "sub_intent": "mind_reading"}`,
		`{"intent": `,
	} {
		c := ParseClassification(content)
		assert.Equal(t, model.IntentDataQuery, c.Intent, "content: %q", content)
		assert.Equal(t, model.SubIntentGeneral, c.SubIntent, "content: %q", content)
	}
}

func TestParseClassificationConfidenceAndFollowUp(t *testing.T) {
	c := ParseClassification(`{"intent": "data_query", "sub_intent": "segment", "confidence": 0.7, "is_follow_up": true}`)
	assert.InDelta(t, 0.7, c.Confidence, 1e-9)
	assert.True(t, c.IsFollowUp)

	// absent or out-of-range confidence defaults to full confidence
	c = ParseClassification(`{"intent": "data_query", "sub_intent": "general"}`)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
	assert.False(t, c.IsFollowUp)

	c = ParseClassification(`{"intent": "data_query", "sub_intent": "general", "confidence": 42}`)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
}

func TestParseClassificationNormalizesCase(t *testing.T) {
	c := ParseClassification(`{"intent": " Data_Query ", "sub_intent": "COMPARE"}`)
	assert.Equal(t, model.IntentDataQuery, c.Intent)
	assert.Equal(t, model.SubIntentCompare, c.SubIntent)
}

func TestParsePlan(t *testing.T) {
	content := "```json\n" + `[
		{"step": 2, "description": "rank", "code": "result = grouped | sort(revenue, desc)"},
		{"step": 1, "description": "group", "code": "grouped = df | group_by(region) | agg(sum, revenue)"}
	]` + "\n```"

	steps, err := ParsePlan(content)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, "grouped", steps[0].OutputVar)
	assert.Equal(t, 2, steps[1].Step)
	assert.Equal(t, "result", steps[1].OutputVar)
}

func TestParsePlanErrors(t *testing.T) {
	_, err := ParsePlan("no plan here")
	assert.Error(t, err)

	_, err = ParsePlan("[]")
	assert.Error(t, err)

	_, err = ParsePlan(`[{"step": 1, "description": "empty", "code": "  "}]`)
	assert.Error(t, err)
}

func TestParseSuggestions(t *testing.T) {
	got := ParseSuggestions("1. Show revenue by region\n2) Compare months\n- What drives revenue?\nExtra line past the cap")
	assert.Equal(t, []string{
		"Show revenue by region",
		"Compare months",
		"What drives revenue?",
	}, got)

	assert.Empty(t, ParseSuggestions("   \n\n"))
}

func toolCall(name, args string) schema.ToolCall {
	return schema.ToolCall{Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func TestFromToolCalls(t *testing.T) {
	msg := &schema.Message{ToolCalls: []schema.ToolCall{
		toolCall(model.OpInsight, `{"query": "average revenue"}`),
		toolCall(model.OpBarChart, `{"table": "sales", "x": "region", "y": "revenue"}`),
		toolCall(model.OpLineChart, `{"x": "month"}`),
		toolCall("format_disk", `{}`),
		toolCall(model.OpInsight, `{bad json`),
	}}

	ops := FromToolCalls(msg)
	require.Len(t, ops, 2)
	assert.Equal(t, model.OpInsight, ops[0].Name)
	assert.Equal(t, "average revenue", ops[0].StringArg("query"))
	assert.Equal(t, model.OpBarChart, ops[1].Name)
	assert.Equal(t, "region", ops[1].StringArg("x"))

	assert.Nil(t, FromToolCalls(nil))
	assert.Nil(t, FromToolCalls(&schema.Message{}))
}

func TestCoerceCorrelation(t *testing.T) {
	ops := []model.SelectedOp{{Name: model.OpBarChart, Args: map[string]any{"x": "region"}}}
	out := CoerceCorrelation(ops, model.SubIntentCorrelate)
	assert.Equal(t, model.OpCorrelationMatrix, out[0].Name)

	ops = []model.SelectedOp{{Name: model.OpScatterChart, Args: map[string]any{"x": "revenue", "y": "units"}}}
	out = CoerceCorrelation(ops, model.SubIntentCorrelate)
	assert.Equal(t, model.OpScatterChart, out[0].Name)

	ops = []model.SelectedOp{{Name: model.OpBarChart}}
	out = CoerceCorrelation(ops, model.SubIntentTrend)
	assert.Equal(t, model.OpBarChart, out[0].Name)
}
