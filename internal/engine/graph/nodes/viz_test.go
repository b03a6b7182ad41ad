package nodes

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/engine/repo"
	"github.com/insightbot-core/engine/internal/sandbox"
	"github.com/insightbot-core/engine/internal/viz"
)

func storedTables(t *testing.T, sessionID string, tables map[string]*dataset.Table) *repo.MemoryStateRepository {
	t.Helper()
	store := repo.NewMemoryStateRepository()
	require.NoError(t, store.SaveTables(context.Background(), sessionID, tables))
	return store
}

func TestVizBuildsChartSpec(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := salesState("s1", "plot revenue by region")
	state.SelectedOps = []model.SelectedOp{
		{Name: model.OpBarChart, Args: map[string]any{"x": "region", "y": "revenue", "agg": "sum"}},
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, out.ChartSpec)
	assert.Equal(t, viz.KindBar, out.ChartSpec.Kind)
	assert.Equal(t, "sales", out.ChartSpec.Table)
	assert.Equal(t, "region", out.ChartSpec.X)
	assert.Equal(t, "revenue", out.ChartSpec.Y)
	assert.Contains(t, out.ChartReason, "Bar chart")
	assert.Empty(t, out.ChartError)

	require.NotNil(t, out.Figure)
	assert.Equal(t, viz.KindBar, out.Figure.Kind)
	require.Len(t, out.Figure.Series, 1)
	assert.ElementsMatch(t, []string{"EU", "US", "APAC"}, out.Figure.Series[0].Labels)
}

func TestVizRenderOverflowCapsResult(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{
		Tables:   storedTables(t, "s1", tables),
		Renderer: &viz.BasicRenderer{MaxCategories: 2},
	}
	state := salesState("s1", "plot revenue by region")
	state.SelectedOps = []model.SelectedOp{
		{Name: model.OpBarChart, Args: map[string]any{"x": "region", "y": "revenue", "agg": "sum"}},
	}

	rows := make([][]any, 0, 15)
	for i := 0; i < 15; i++ {
		rows = append(rows, []any{fmt.Sprintf("r%02d", i), float64(i)})
	}
	state.InsightResult = &sandbox.Result{
		Kind:            "table",
		Columns:         []string{"region", "revenue"},
		Rows:            rows,
		Shape:           [2]int{15, 2},
		ExecutionMethod: sandbox.MethodGenerated,
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.ChartSpec)
	assert.Nil(t, out.Figure)
	assert.Contains(t, out.ChartError, "too many categories")

	require.NotNil(t, out.InsightResult)
	assert.Len(t, out.InsightResult.Rows, viz.FallbackRows)
	assert.Equal(t, [2]int{viz.FallbackRows, 2}, out.InsightResult.Shape)
}

type failingRenderer struct{}

func (failingRenderer) Render(*dataset.Table, *viz.ChartSpec) (*viz.Figure, error) {
	return nil, fmt.Errorf("renderer broke")
}

func TestVizRenderFailureFallsBackToTable(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{Tables: storedTables(t, "s1", tables), Renderer: failingRenderer{}}
	state := salesState("s1", "plot revenue by region")
	state.SelectedOps = []model.SelectedOp{
		{Name: model.OpBarChart, Args: map[string]any{"x": "region", "y": "revenue", "agg": "sum"}},
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.ChartSpec)
	assert.Nil(t, out.Figure)
	assert.Contains(t, out.ChartError, "couldn't be drawn")
	require.NotNil(t, out.InsightResult)
	assert.True(t, out.InsightResult.IsTable())
}

func TestVizTooManyCategoriesFallsBackToTable(t *testing.T) {
	rows := make([][]any, 0, 40)
	for i := 0; i < 40; i++ {
		rows = append(rows, []any{fmt.Sprintf("sku-%03d", i), float64(i * 10)})
	}
	tables := map[string]*dataset.Table{
		"products": dataset.New("products",
			[]dataset.Column{
				{Name: "sku", Dtype: dataset.Categorical},
				{Name: "price", Dtype: dataset.Numeric},
			},
			rows,
		),
	}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := model.NewConversationState("s1")
	state.Schema = dataset.BuildSchema(tables)
	state.Profile = dataset.BuildProfile(tables)
	state.BeginTurn("bar chart of price by sku")
	state.SelectedOps = []model.SelectedOp{
		{Name: model.OpBarChart, Args: map[string]any{"x": "sku", "y": "price", "agg": "sum"}},
	}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.ChartSpec)
	assert.Contains(t, out.ChartError, "Too many categories")
	require.NotNil(t, out.InsightResult)
	assert.True(t, out.InsightResult.IsTable())
	assert.LessOrEqual(t, out.InsightResult.Shape[0], viz.FallbackRows)
}

func TestVizImplicitBarChart(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := salesState("s1", "show revenue by region visually")
	state.PreferChart = true

	grouped, err := salesTable().GroupBy("region", "sum", "revenue")
	require.NoError(t, err)
	state.InsightResult = sandbox.TableResult(grouped, sandbox.MethodGenerated)

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, out.ChartSpec)
	assert.Equal(t, viz.KindBar, out.ChartSpec.Kind)
	assert.Equal(t, "region", out.ChartSpec.X)
	assert.Equal(t, "revenue", out.ChartSpec.Y)
	assert.Equal(t, "sales", out.ChartSpec.Table)
}

func TestVizCorrelationMatrixNormalized(t *testing.T) {
	tables := map[string]*dataset.Table{
		"metrics": dataset.New("metrics",
			[]dataset.Column{
				{Name: "revenue", Dtype: dataset.Numeric},
				{Name: "units", Dtype: dataset.Numeric},
				{Name: "region", Dtype: dataset.Categorical},
			},
			[][]any{{100.0, 10.0, "EU"}, {200.0, 20.0, "US"}, {150.0, 12.0, "APAC"}},
		),
	}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := model.NewConversationState("s1")
	state.Schema = dataset.BuildSchema(tables)
	state.Profile = dataset.BuildProfile(tables)
	state.BeginTurn("correlate the numeric columns")
	state.SelectedOps = []model.SelectedOp{{Name: model.OpCorrelationMatrix}}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, out.ChartSpec)
	assert.Equal(t, viz.KindHeatmap, out.ChartSpec.Kind)
	assert.Equal(t, []string{"revenue", "units"}, out.ChartSpec.Columns)
}

func TestVizNothingChartable(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := salesState("s1", "average revenue")
	state.InsightResult = &sandbox.Result{Kind: "scalar", Scalar: 150.0}

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.ChartSpec)
	assert.Empty(t, out.ChartError)
}

func TestVizRepairsIncompleteSpec(t *testing.T) {
	tables := map[string]*dataset.Table{"sales": salesTable()}
	n := &VizNode{Tables: storedTables(t, "s1", tables)}
	state := salesState("s1", "chart the revenue per region")
	state.SelectedOps = []model.SelectedOp{{Name: model.OpBarChart}}

	grouped, err := salesTable().GroupBy("region", "sum", "revenue")
	require.NoError(t, err)
	state.InsightResult = sandbox.TableResult(grouped, sandbox.MethodGenerated)

	out, err := n.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, out.ChartSpec)
	assert.Equal(t, "region", out.ChartSpec.X)
	assert.Equal(t, "revenue", out.ChartSpec.Y)
}
