package trendline

import (
	"fmt"

	"github.com/mrcode/nightscout-forecast/internal/stats"
)

// Polynomial fits y = c0 + c1*x + ... + cN*x^N. Degree 1 is a straight line.
type Polynomial struct {
	Degree int
}

// Name returns "linear", "quadratic" or "polynomial-N"
func (p Polynomial) Name() string {
	switch p.Degree {
	case 1:
		return "linear"
	case 2:
		return "quadratic"
	default:
		return fmt.Sprintf("polynomial-%d", p.Degree)
	}
}

// Complexity is the number of coefficients
func (p Polynomial) Complexity() int {
	return p.Degree + 1
}

// Predict evaluates the fitted polynomial at futureTime
func (p Polynomial) Predict(values, timePoints []float64, futureTime float64) (float64, error) {
	return predictWith(p.fit, values, timePoints, futureTime)
}

// ErrorVariance returns the residual variance of the fit
func (p Polynomial) ErrorVariance(values, timePoints []float64) (float64, error) {
	return residualVariance(p.fit, p.Complexity(), values, timePoints)
}

func (p Polynomial) fit(values, timePoints []float64) (func(float64) (float64, error), error) {
	if p.Degree == 1 {
		slope, intercept, err := stats.LinearRegression(values, timePoints)
		if err != nil {
			return nil, err
		}
		return func(x float64) (float64, error) {
			return intercept + slope*x, nil
		}, nil
	}

	coefficients, err := stats.PolynomialRegression(values, timePoints, p.Degree)
	if err != nil {
		return nil, err
	}
	return func(x float64) (float64, error) {
		return stats.EvaluatePolynomial(coefficients, x), nil
	}, nil
}
