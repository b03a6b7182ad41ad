package viz

import "fmt"

// Chart kinds the operation selector can request.
const (
	KindBar         = "bar"
	KindLine        = "line"
	KindScatter     = "scatter"
	KindHistogram   = "histogram"
	KindArea        = "area"
	KindBox         = "box"
	KindHeatmap     = "heatmap"
	KindCorrelation = "correlation_matrix"
	KindCombo       = "combo"
	KindDashboard   = "dashboard"
	KindPie         = "pie"
)

// ChartSpec is the validated, serializable chart configuration. The
// engine stores specs, never rendered figures, so conversation state
// stays JSON round-trippable.
type ChartSpec struct {
	Kind    string   `json:"kind"`
	Table   string   `json:"table"`
	X       string   `json:"x,omitempty"`
	Y       string   `json:"y,omitempty"`
	Columns []string `json:"columns,omitempty"` // heatmap / correlation inputs
	Agg     string   `json:"agg,omitempty"`
	Color   string   `json:"color,omitempty"`
}

// ValidateRequired checks the structural bindings each chart kind needs.
// A nil return means the spec is renderable in principle; data-aware
// checks happen separately against the profile.
func ValidateRequired(spec *ChartSpec) error {
	switch spec.Kind {
	case KindBar, KindPie:
		if spec.X == "" {
			return fmt.Errorf("%s chart requires an x column", spec.Kind)
		}
	case KindLine, KindScatter, KindArea:
		if spec.X == "" || spec.Y == "" {
			return fmt.Errorf("%s chart requires both x and y columns", spec.Kind)
		}
	case KindHistogram:
		if spec.X == "" {
			return fmt.Errorf("histogram requires a column")
		}
	case KindBox:
		if spec.Y == "" {
			return fmt.Errorf("box chart requires a y column")
		}
	case KindHeatmap:
		if len(spec.Columns) < 2 {
			return fmt.Errorf("heatmap requires at least 2 columns")
		}
	case KindCorrelation, KindCombo, KindDashboard:
		// Columns are auto-selected or optional for these kinds.
	default:
		return fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
	return nil
}

// Reason returns a one-line, template-based explanation for the chart
// choice, surfaced alongside the figure.
func Reason(spec *ChartSpec) string {
	switch spec.Kind {
	case KindBar:
		if spec.X != "" && spec.Y != "" {
			return fmt.Sprintf("Bar chart to compare %s by %s.", spec.Y, spec.X)
		}
		return "Bar chart to compare categories."
	case KindLine:
		if spec.Y != "" {
			return fmt.Sprintf("Line chart to show trend over %s for %s.", spec.X, spec.Y)
		}
		return fmt.Sprintf("Line chart to show trend over %s.", spec.X)
	case KindScatter:
		return fmt.Sprintf("Scatter chart to show relationship between %s and %s.", spec.X, spec.Y)
	case KindHistogram:
		return fmt.Sprintf("Histogram to show distribution of %s.", spec.X)
	case KindArea:
		return fmt.Sprintf("Area chart to show cumulative values over %s.", spec.X)
	case KindBox:
		if spec.X != "" {
			return fmt.Sprintf("Box plot to show distribution of %s by %s.", spec.Y, spec.X)
		}
		return fmt.Sprintf("Box plot to show distribution of %s.", spec.Y)
	case KindHeatmap:
		return fmt.Sprintf("Heatmap to show relationships between %d columns.", len(spec.Columns))
	case KindCorrelation:
		return "Correlation matrix to show relationships between all numeric columns."
	case KindCombo:
		return "Combo chart to show multiple series together."
	case KindDashboard:
		return "Dashboard view with multiple charts."
	case KindPie:
		return fmt.Sprintf("Pie chart to show the share of each %s.", spec.X)
	}
	return "Chart to visualize the data."
}
