package viz

import (
	"fmt"
	"strings"

	"github.com/insightbot-core/engine/internal/dataset"
)

// FallbackRows caps the grouped-table fallback shown when a chart
// cannot be rendered.
const FallbackRows = 10

// Series is one plotted series of a figure.
type Series struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values"`
}

// Figure is a renderable chart produced from a validated spec. The
// engine treats it as opaque; only the display layer interprets it.
type Figure struct {
	Kind   string   `json:"kind"`
	Title  string   `json:"title,omitempty"`
	Series []Series `json:"series"`
}

// Renderer turns a validated chart spec plus a table into a figure.
// Render errors are string-classified by the caller, not typed here.
type Renderer interface {
	Render(t *dataset.Table, spec *ChartSpec) (*Figure, error)
}

// BasicRenderer renders figures from in-memory tables. It enforces a
// last-resort category cap so a spec that slipped past profile
// validation still cannot produce an unreadable chart.
type BasicRenderer struct {
	MaxCategories int
}

func NewRenderer() *BasicRenderer {
	return &BasicRenderer{MaxCategories: 50}
}

func (r *BasicRenderer) Render(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	switch spec.Kind {
	case KindBar, KindPie, KindLine, KindArea:
		return r.renderAggregated(t, spec)
	case KindScatter:
		return r.renderScatter(t, spec)
	case KindHistogram:
		return r.renderHistogram(t, spec)
	case KindBox:
		return r.renderBox(t, spec)
	case KindHeatmap:
		return r.renderHeatmap(t, spec)
	case KindCombo, KindDashboard:
		return r.renderAggregated(t, spec)
	}
	return nil, fmt.Errorf("unsupported chart kind %q", spec.Kind)
}

func (r *BasicRenderer) renderAggregated(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	agg := spec.Agg
	if agg == "" || agg == "none" {
		agg = "count"
	}
	grouped, err := t.GroupBy(spec.X, agg, spec.Y)
	if err != nil {
		return nil, err
	}
	if grouped.NumRows() > r.MaxCategories {
		return nil, fmt.Errorf("too many unique categories on axis %s (%d)", spec.X, grouped.NumRows())
	}
	labels, err := grouped.StringValues(spec.X)
	if err != nil {
		return nil, err
	}
	valueCol := spec.Y
	if agg == "count" {
		valueCol = "count"
	}
	values, err := grouped.FloatValues(valueCol)
	if err != nil {
		return nil, err
	}
	name := valueCol
	return &Figure{
		Kind:   spec.Kind,
		Title:  Reason(spec),
		Series: []Series{{Name: name, Labels: labels, Values: values}},
	}, nil
}

func (r *BasicRenderer) renderScatter(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	xs, err := t.FloatValues(spec.X)
	if err != nil {
		return nil, err
	}
	ys, err := t.FloatValues(spec.Y)
	if err != nil {
		return nil, err
	}
	return &Figure{
		Kind:  spec.Kind,
		Title: Reason(spec),
		Series: []Series{
			{Name: spec.X, Values: xs},
			{Name: spec.Y, Values: ys},
		},
	}, nil
}

func (r *BasicRenderer) renderHistogram(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	vals, err := t.FloatValues(spec.X)
	if err != nil {
		return nil, err
	}
	return &Figure{
		Kind:   spec.Kind,
		Title:  Reason(spec),
		Series: []Series{{Name: spec.X, Values: vals}},
	}, nil
}

func (r *BasicRenderer) renderBox(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	vals, err := t.FloatValues(spec.Y)
	if err != nil {
		return nil, err
	}
	return &Figure{
		Kind:   spec.Kind,
		Title:  Reason(spec),
		Series: []Series{{Name: spec.Y, Values: vals}},
	}, nil
}

func (r *BasicRenderer) renderHeatmap(t *dataset.Table, spec *ChartSpec) (*Figure, error) {
	fig := &Figure{Kind: spec.Kind, Title: Reason(spec)}
	// Pairwise correlation rows, one series per column.
	for _, a := range spec.Columns {
		s := Series{Name: a, Labels: spec.Columns}
		for _, b := range spec.Columns {
			c, err := t.Corr(a, b)
			if err != nil {
				return nil, err
			}
			s.Values = append(s.Values, c)
		}
		fig.Series = append(fig.Series, s)
	}
	return fig, nil
}

// IsCategoryOverflow classifies a render error message as a
// category-cardinality failure.
func IsCategoryOverflow(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "categories") || strings.Contains(msg, "unique")
}

// FallbackTable builds the capped grouped table shown when a chart
// fails: the same x/y/agg bindings, top rows only.
func FallbackTable(t *dataset.Table, spec *ChartSpec) (*dataset.Table, error) {
	if spec.X == "" || !t.HasColumn(spec.X) {
		return nil, fmt.Errorf("no grouping column for fallback table")
	}
	agg := spec.Agg
	if agg == "" || agg == "none" || spec.Y == "" || !t.HasColumn(spec.Y) {
		grouped, err := t.GroupBy(spec.X, "count", "")
		if err != nil {
			return nil, err
		}
		return grouped.Head(FallbackRows), nil
	}
	grouped, err := t.GroupBy(spec.X, agg, spec.Y)
	if err != nil {
		return nil, err
	}
	return grouped.Head(FallbackRows), nil
}
