package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/insightbot-core/engine/internal/engine/model"
)

// chartAxisParams is the shared parameter set of every chart tool.
func chartAxisParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"table": {
			Type: "string",
			Desc: "Table to chart. Omit when only one table is loaded.",
		},
		"x": {
			Type: "string",
			Desc: "Column bound to the x axis (category or time). Must be an exact schema column name.",
		},
		"y": {
			Type: "string",
			Desc: "Numeric column bound to the y axis. Must be an exact schema column name.",
		},
		"agg": {
			Type: "string",
			Desc: "Aggregation applied to y per x value: mean, sum, count, min, or max.",
		},
		"color": {
			Type: "string",
			Desc: "Optional column used to split series by color.",
		},
	}
}

// AnalysisToolInfos describes the operations the dispatcher model may
// select. The calls are parsed into state, never executed as tools.
func AnalysisToolInfos() []*schema.ToolInfo {
	infos := []*schema.ToolInfo{
		{
			Name: model.OpInsight,
			Desc: "Compute a numeric or tabular answer from the loaded tables: aggregates, comparisons, filters, correlations. Call this whenever the user wants a number or a fact.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "The analytical question to compute, self-contained.",
					Required: true,
				},
			}),
		},
	}

	chartTools := []struct {
		name string
		desc string
	}{
		{model.OpBarChart, "Bar chart comparing a numeric value across categories."},
		{model.OpLineChart, "Line chart of a numeric value over an ordered axis, usually time."},
		{model.OpScatterChart, "Scatter plot of two numeric columns to show their relationship."},
		{model.OpHistogram, "Histogram of one numeric column's distribution."},
		{model.OpAreaChart, "Area chart of a numeric value over an ordered axis."},
		{model.OpBoxChart, "Box plot of a numeric column, optionally split by a category."},
		{model.OpHeatmapChart, "Heatmap over two or more numeric columns."},
		{model.OpCorrelationMatrix, "Correlation matrix across all numeric columns. Use for broad correlation questions."},
		{model.OpComboChart, "Combined bar and line chart sharing one x axis."},
		{model.OpDashboard, "A small dashboard giving an overview of the dataset. Use for broad report requests."},
	}
	for _, ct := range chartTools {
		infos = append(infos, &schema.ToolInfo{
			Name:        ct.name,
			Desc:        ct.desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(chartAxisParams()),
		})
	}
	return infos
}
