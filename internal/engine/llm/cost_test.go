package llm

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	usage := &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 500_000}

	in, out, total := ComputeCost(usage, ResolvePricing("gemini-2.5-flash"))
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 1.25, out, 1e-9)
	assert.InDelta(t, 1.55, total, 1e-9)

	in, out, total = ComputeCost(nil, ResolvePricing("gemini-2.5-flash"))
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.Zero(t, total)
}

func TestResolvePricingUnknownModelIsFree(t *testing.T) {
	p := ResolvePricing("mystery-model")
	assert.Zero(t, p.InputPerM)
	assert.Zero(t, p.OutputPerM)
}

func TestMessageCost(t *testing.T) {
	msg := &schema.Message{
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 2000, CompletionTokens: 1000},
		},
	}
	cost := MessageCost("gemini-2.5-flash-lite", msg)
	assert.InDelta(t, 0.0006, cost, 1e-9)

	assert.Zero(t, MessageCost("gemini-2.5-flash-lite", nil))
	assert.Zero(t, MessageCost("gemini-2.5-flash-lite", &schema.Message{}))
}
