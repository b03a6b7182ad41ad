package viz

import (
	"fmt"

	"github.com/insightbot-core/engine/internal/dataset"
)

// Cardinality limits for categorical axes.
const (
	MaxBarCategories = 25
	MaxPieCategories = 10
)

// ValidateData checks the spec against the statistical profile:
// categorical-axis cardinality limits and axis dtype compatibility.
// A non-empty return is a user-facing reason to fall back to a table.
func ValidateData(spec *ChartSpec, profile dataset.Profile) string {
	switch spec.Kind {
	case KindBar:
		if cp, ok := profile.Column(spec.Table, spec.X); ok {
			if cp.NUnique > MaxBarCategories {
				return fmt.Sprintf("Too many categories for a clear bar chart (%d distinct, max %d). Showing table instead.", cp.NUnique, MaxBarCategories)
			}
		}
	case KindPie:
		if cp, ok := profile.Column(spec.Table, spec.X); ok {
			if cp.NUnique > MaxPieCategories {
				return fmt.Sprintf("Too many categories for a clear pie chart (%d distinct, max %d). Showing table instead.", cp.NUnique, MaxPieCategories)
			}
		}
	case KindLine:
		for _, col := range []string{spec.X, spec.Y} {
			if col == "" {
				continue
			}
			cp, ok := profile.Column(spec.Table, col)
			if !ok {
				continue
			}
			if cp.Dtype != dataset.Numeric && cp.Dtype != dataset.Datetime {
				return fmt.Sprintf("Line chart expects numeric or date values; '%s' is %s. Showing table instead.", col, cp.Dtype)
			}
		}
	case KindScatter:
		for _, col := range []string{spec.X, spec.Y} {
			if cp, ok := profile.Column(spec.Table, col); ok && !cp.IsNumeric() {
				return fmt.Sprintf("Scatter chart expects numeric columns; '%s' is not numeric. Showing table instead.", col)
			}
		}
	case KindHistogram:
		if cp, ok := profile.Column(spec.Table, spec.X); ok && !cp.IsNumeric() {
			return fmt.Sprintf("Histogram expects a numeric column; '%s' is not numeric. Showing table instead.", spec.X)
		}
	case KindBox:
		if cp, ok := profile.Column(spec.Table, spec.Y); ok && !cp.IsNumeric() {
			return fmt.Sprintf("Box plot expects a numeric y column; '%s' is not numeric. Showing table instead.", spec.Y)
		}
	case KindArea:
		if cp, ok := profile.Column(spec.Table, spec.Y); ok && !cp.IsNumeric() {
			return fmt.Sprintf("Area chart expects a numeric y column; '%s' is not numeric. Showing table instead.", spec.Y)
		}
	}
	return ""
}

// NormalizeCorrelation rewrites a correlation_matrix spec into a heatmap
// over the table's numeric columns. It returns a reason string when the
// table cannot support one.
func NormalizeCorrelation(spec *ChartSpec, t *dataset.Table) string {
	if spec.Kind != KindCorrelation {
		return ""
	}
	numeric := t.ColumnsOf(dataset.Numeric)
	if len(numeric) < 2 {
		return "Correlation matrix requires at least 2 numeric columns."
	}
	spec.Kind = KindHeatmap
	spec.Columns = numeric
	return ""
}
