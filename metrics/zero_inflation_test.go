package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

func TestZeroInflationProbability(t *testing.T) {
	tests := []struct {
		name        string
		alpha, beta float64
		want        float64
	}{
		{"symmetric prior", 0.5, 0.5, 0.5},
		{"symmetric posterior", 12.75, 12.75, 0.5},
		{"mass below one half", 1, 2, 0.75},
		{"mass above one half", 2, 1, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ZeroInflationProbability(tt.alpha, tt.beta), 1e-12)
		})
	}
}

func TestClassifyZeroInflation_Boundary(t *testing.T) {
	call, err := ClassifyZeroInflation(
		[]float64{3, 3, 1, 2},
		[]float64{3, 3.0000001, 2, 1},
	)
	require.NoError(t, err)

	// exactly 0.5 is not zero-inflated
	assert.Equal(t, 0.5, call.Probabilities[0])
	assert.False(t, call.IsZeroInflated[0])
	assert.Greater(t, call.Probabilities[1], 0.5)
	assert.True(t, call.IsZeroInflated[1])
	assert.True(t, call.IsZeroInflated[2])
	assert.False(t, call.IsZeroInflated[3])
}

func TestClassifyZeroInflation_Errors(t *testing.T) {
	_, err := ClassifyZeroInflation(nil, nil)
	assert.Error(t, err)

	_, err = ClassifyZeroInflation([]float64{1}, []float64{1, 2})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = ClassifyZeroInflation([]float64{0}, []float64{1})
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestExpressionFilter(t *testing.T) {
	counts := mat.NewDense(4, 3, []float64{
		0, 1, 5,
		0, 1, 0,
		0, 1, 0,
		4, 1, 0,
	})
	// means: 1, 1, 1.25
	assert.Equal(t, []bool{false, false, true}, ExpressionFilter(counts))
}

func TestSummarizeZeroInflation(t *testing.T) {
	call := &ZeroInflationCall{
		Probabilities:  []float64{0.9, 0.1, 0.8, 0.2},
		IsZeroInflated: []bool{true, false, true, false},
	}
	expressed := []bool{true, true, false, false}

	s, err := SummarizeZeroInflation(call, expressed)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.FractionZeroInflated)
	assert.Equal(t, 0.5, s.FractionExpressed)
	assert.Equal(t, 0.5, s.FractionZeroInflatedAmongExpressed)
	assert.Equal(t, 2, s.NumZeroInflated)
	assert.Equal(t, 1, s.NumZeroInflatedExpressed)
	// inputs untouched
	assert.Equal(t, []bool{true, true, false, false}, expressed)
}

func TestSummarizeZeroInflation_NoExpressedFeatures(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	errors.SetZerologWarnFunc(nil)
	t.Cleanup(func() { errors.SetWarningHandler(nil) })

	call := &ZeroInflationCall{Probabilities: []float64{0.9}, IsZeroInflated: []bool{true}}
	s, err := SummarizeZeroInflation(call, []bool{false})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.FractionZeroInflatedAmongExpressed))
	require.Len(t, warnings, 1)
	var undefined *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &undefined))

	_, err = SummarizeZeroInflation(call, []bool{false, true})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
