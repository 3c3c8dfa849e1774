package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	mean, err := Mean([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, mean, 0.001)

	_, err = Mean(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStandardDeviation(t *testing.T) {
	sd, err := StandardDeviation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sd, 0.1)

	_, err = StandardDeviation([]float64{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLinearRegression(t *testing.T) {
	slope, intercept, err := LinearRegression([]float64{3, 5, 7, 9, 11}, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, slope, 0.01)
	assert.InDelta(t, 1.0, intercept, 0.01)
}

func TestLinearRegression_Errors(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		timePoints []float64
		want       error
	}{
		{"length mismatch", []float64{1, 2, 3}, []float64{1, 2}, ErrLengthMismatch},
		{"single point", []float64{1}, []float64{1}, ErrInsufficientData},
		{"constant time", []float64{1, 2, 3}, []float64{4, 4, 4}, ErrIllConditioned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LinearRegression(tt.values, tt.timePoints)
			if !errors.Is(err, tt.want) {
				t.Errorf("LinearRegression() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPolynomialRegression(t *testing.T) {
	coefficients, err := PolynomialRegression([]float64{1, 4, 9, 16, 25}, []float64{0, 1, 2, 3, 4}, 2)
	require.NoError(t, err)
	require.Len(t, coefficients, 3)

	assert.InDelta(t, 36.0, EvaluatePolynomial(coefficients, 5), 1.0)
	// (x+1)^2 = 1 + 2x + x^2
	assert.InDelta(t, 1.0, coefficients[0], 1e-6)
	assert.InDelta(t, 2.0, coefficients[1], 1e-6)
	assert.InDelta(t, 1.0, coefficients[2], 1e-6)
}

func TestPolynomialRegression_ReproducesInput(t *testing.T) {
	timePoints := []float64{0, 300, 600, 900, 1200, 1500}
	values := make([]float64, len(timePoints))
	for i, x := range timePoints {
		values[i] = 120 - 0.01*x + 0.00002*x*x
	}

	coefficients, err := PolynomialRegression(values, timePoints, 2)
	require.NoError(t, err)

	for i, x := range timePoints {
		assert.InDelta(t, values[i], EvaluatePolynomial(coefficients, x), 1e-6)
	}
}

func TestPolynomialRegression_Degenerate(t *testing.T) {
	_, err := PolynomialRegression([]float64{1, 2, 3}, []float64{1, 1, 1}, 2)
	assert.ErrorIs(t, err, ErrIllConditioned)

	_, err = PolynomialRegression([]float64{1, 2}, []float64{1, 2}, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = PolynomialRegression([]float64{1, 2, 3}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEvaluatePolynomial(t *testing.T) {
	tests := []struct {
		name         string
		coefficients []float64
		x            float64
		expected     float64
	}{
		{"empty", nil, 3, 0},
		{"constant", []float64{7}, 3, 7},
		{"linear", []float64{100, 2}, 6, 112},
		{"quadratic", []float64{100, 0, 1}, 6, 136},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluatePolynomial(tt.coefficients, tt.x)
			if result != tt.expected {
				t.Errorf("EvaluatePolynomial() = %f, want %f", result, tt.expected)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	values := []float64{60, 100, 120, 150, 200}

	s, err := Summarize(values)
	require.NoError(t, err)

	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 126.0, s.Mean, 0.1)
	assert.InDelta(t, 20.0, s.TimeBelowRange, 0.1)
	assert.InDelta(t, 60.0, s.TimeInRange, 0.1)
	assert.InDelta(t, 20.0, s.TimeAboveRange, 0.1)
	assert.InDelta(t, 3.31+0.02392*126, s.GMI, 0.1)
	assert.Greater(t, s.CoefficientOfVariation, 0.0)

	_, err = Summarize(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
