package nodes

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
)

// fakeCaller is a canned model client for node tests.
type fakeCaller struct {
	name      string
	content   string
	toolCalls []schema.ToolCall
	err       error
	calls     int
}

func (f *fakeCaller) Name() string {
	if f.name != "" {
		return f.name
	}
	return "fake-model"
}

func (f *fakeCaller) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{
		Role:      schema.Assistant,
		Content:   f.content,
		ToolCalls: f.toolCalls,
	}, nil
}

func salesTable() *dataset.Table {
	return dataset.New("sales",
		[]dataset.Column{
			{Name: "region", Dtype: dataset.Categorical},
			{Name: "month", Dtype: dataset.Categorical},
			{Name: "revenue", Dtype: dataset.Numeric},
		},
		[][]any{
			{"EU", "Jan", 100.0},
			{"EU", "Feb", 150.0},
			{"US", "Jan", 200.0},
			{"US", "Feb", 250.0},
			{"APAC", "Jan", 50.0},
		},
	)
}

func salesState(sessionID, query string) *model.ConversationState {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	state := model.NewConversationState(sessionID)
	state.Schema = dataset.BuildSchema(tables)
	state.Profile = dataset.BuildProfile(tables)
	state.BeginTurn(query)
	return state
}
