package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfileClassifiesCardinality(t *testing.T) {
	rows := make([][]any, 0, 30)
	for i := 0; i < 30; i++ {
		rows = append(rows, []any{fmt.Sprintf("cat-%d", i%12), float64(i)})
	}
	tbl := New("t",
		[]Column{
			{Name: "category", Dtype: Categorical},
			{Name: "value", Dtype: Numeric},
		},
		rows,
	)

	p := BuildProfile(map[string]*Table{"t": tbl})

	cat, ok := p.Column("t", "category")
	require.True(t, ok)
	assert.Equal(t, 12, cat.NUnique)
	assert.Equal(t, CardinalityMedium, cat.Cardinality)
	assert.True(t, cat.IsCategorical())

	val, ok := p.Column("t", "value")
	require.True(t, ok)
	assert.True(t, val.IsNumeric())
	require.NotNil(t, val.NumericStats)
	assert.InDelta(t, 14.5, val.NumericStats.Mean, 1e-9)
}

func TestBuildSchemaAllColumns(t *testing.T) {
	a := New("a", []Column{{Name: "x", Dtype: Numeric}}, nil)
	b := New("b", []Column{{Name: "x", Dtype: Numeric}, {Name: "y", Dtype: Categorical}}, nil)

	s := BuildSchema(map[string]*Table{"b": b, "a": a})

	assert.Equal(t, []string{"x", "y"}, s.AllColumns())
	assert.Equal(t, 2, s["b"].ColCount)
}

func TestSchemaFormatForPrompt(t *testing.T) {
	tbl := salesTable()
	s := BuildSchema(map[string]*Table{"sales": tbl})

	text := s.FormatForPrompt()
	assert.Contains(t, text, "sales")
	assert.Contains(t, text, "revenue")
	assert.True(t, strings.Contains(text, "numeric") || strings.Contains(text, "Numeric"))
}
