// Package stats provides the numeric primitives used by the trend-line models
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when there are too few points for the operation
	ErrInsufficientData = errors.New("insufficient data")
	// ErrLengthMismatch is returned when values and time points differ in length
	ErrLengthMismatch = errors.New("values and time points differ in length")
	// ErrIllConditioned is returned when a regression system is singular or near-singular
	ErrIllConditioned = errors.New("ill-conditioned regression")
)

// maxCondition is the largest condition number accepted for a least-squares solve.
// Gonum only flags matrices past 1e16; anything above this already loses most digits.
const maxCondition = 1e12

// Mean returns the arithmetic mean of values
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrInsufficientData
	}
	return stat.Mean(values, nil), nil
}

// StandardDeviation returns the population standard deviation (divides by N)
func StandardDeviation(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrInsufficientData
	}
	return stat.PopStdDev(values, nil), nil
}

// LinearRegression fits values = slope*timePoints + intercept by ordinary least squares
func LinearRegression(values, timePoints []float64) (slope, intercept float64, err error) {
	if err := checkInput(values, timePoints, 2); err != nil {
		return 0, 0, err
	}

	if stat.PopVariance(timePoints, nil) == 0 {
		return 0, 0, fmt.Errorf("linear regression: constant time points: %w", ErrIllConditioned)
	}

	intercept, slope = stat.LinearRegression(timePoints, values, nil, false)
	if !isFinite(slope) || !isFinite(intercept) {
		return 0, 0, fmt.Errorf("linear regression: %w", ErrIllConditioned)
	}

	return slope, intercept, nil
}

// PolynomialRegression fits a polynomial of the given degree by least squares.
// Coefficients are ordered lowest-order first: c[0] + c[1]*x + ... + c[degree]*x^degree.
func PolynomialRegression(values, timePoints []float64, degree int) ([]float64, error) {
	if degree < 0 {
		return nil, fmt.Errorf("polynomial regression: negative degree %d", degree)
	}
	if err := checkInput(values, timePoints, degree+1); err != nil {
		return nil, err
	}

	n := len(values)
	vandermonde := mat.NewDense(n, degree+1, nil)
	for i, x := range timePoints {
		p := 1.0
		for j := 0; j <= degree; j++ {
			vandermonde.Set(i, j, p)
			p *= x
		}
	}

	var qr mat.QR
	qr.Factorize(vandermonde)
	if cond := qr.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return nil, fmt.Errorf("polynomial regression degree %d: condition %g: %w", degree, cond, ErrIllConditioned)
	}

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(n, append([]float64(nil), values...))); err != nil {
		return nil, fmt.Errorf("polynomial regression degree %d: %v: %w", degree, err, ErrIllConditioned)
	}

	coefficients := make([]float64, degree+1)
	for i := range coefficients {
		coefficients[i] = coef.AtVec(i)
		if !isFinite(coefficients[i]) {
			return nil, fmt.Errorf("polynomial regression degree %d: %w", degree, ErrIllConditioned)
		}
	}

	return coefficients, nil
}

// EvaluatePolynomial evaluates coefficients (lowest-order first) at x using Horner's rule
func EvaluatePolynomial(coefficients []float64, x float64) float64 {
	var result float64
	for i := len(coefficients) - 1; i >= 0; i-- {
		result = result*x + coefficients[i]
	}
	return result
}

func checkInput(values, timePoints []float64, minPoints int) error {
	if len(values) != len(timePoints) {
		return fmt.Errorf("%d values, %d time points: %w", len(values), len(timePoints), ErrLengthMismatch)
	}
	if len(values) < minPoints {
		return fmt.Errorf("need %d points, have %d: %w", minPoints, len(values), ErrInsufficientData)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
