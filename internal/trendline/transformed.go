package trendline

import (
	"fmt"
	"math"

	"github.com/mrcode/nightscout-forecast/internal/stats"
)

// Logarithmic fits y = a + b*ln(x). All time points must be positive.
type Logarithmic struct{}

// Exponential fits y = a*e^(b*x) through ln(y) = ln(a) + b*x. All values must be positive.
type Exponential struct{}

// Power fits y = a*x^b through ln(y) = ln(a) + b*ln(x). Time points and values must be positive.
type Power struct{}

// Name returns "logarithmic"
func (Logarithmic) Name() string { return "logarithmic" }

// Complexity returns 2
func (Logarithmic) Complexity() int { return 2 }

// Predict evaluates the fitted curve at futureTime
func (m Logarithmic) Predict(values, timePoints []float64, futureTime float64) (float64, error) {
	return predictWith(m.fit, values, timePoints, futureTime)
}

// ErrorVariance returns the residual variance of the fit
func (m Logarithmic) ErrorVariance(values, timePoints []float64) (float64, error) {
	return residualVariance(m.fit, m.Complexity(), values, timePoints)
}

func (Logarithmic) fit(values, timePoints []float64) (func(float64) (float64, error), error) {
	lnX, err := logAll(timePoints, "time point")
	if err != nil {
		return nil, err
	}
	b, a, err := stats.LinearRegression(values, lnX)
	if err != nil {
		return nil, err
	}
	return func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("time point %g: %w", x, ErrNonPositiveInput)
		}
		return a + b*math.Log(x), nil
	}, nil
}

// Name returns "exponential"
func (Exponential) Name() string { return "exponential" }

// Complexity returns 2
func (Exponential) Complexity() int { return 2 }

// Predict evaluates the fitted curve at futureTime
func (m Exponential) Predict(values, timePoints []float64, futureTime float64) (float64, error) {
	return predictWith(m.fit, values, timePoints, futureTime)
}

// ErrorVariance returns the residual variance of the fit
func (m Exponential) ErrorVariance(values, timePoints []float64) (float64, error) {
	return residualVariance(m.fit, m.Complexity(), values, timePoints)
}

func (Exponential) fit(values, timePoints []float64) (func(float64) (float64, error), error) {
	lnY, err := logAll(values, "value")
	if err != nil {
		return nil, err
	}
	b, lnA, err := stats.LinearRegression(lnY, timePoints)
	if err != nil {
		return nil, err
	}
	a := math.Exp(lnA)
	return func(x float64) (float64, error) {
		return a * math.Exp(b*x), nil
	}, nil
}

// Name returns "power"
func (Power) Name() string { return "power" }

// Complexity returns 2
func (Power) Complexity() int { return 2 }

// Predict evaluates the fitted curve at futureTime
func (m Power) Predict(values, timePoints []float64, futureTime float64) (float64, error) {
	return predictWith(m.fit, values, timePoints, futureTime)
}

// ErrorVariance returns the residual variance of the fit
func (m Power) ErrorVariance(values, timePoints []float64) (float64, error) {
	return residualVariance(m.fit, m.Complexity(), values, timePoints)
}

func (Power) fit(values, timePoints []float64) (func(float64) (float64, error), error) {
	lnX, err := logAll(timePoints, "time point")
	if err != nil {
		return nil, err
	}
	lnY, err := logAll(values, "value")
	if err != nil {
		return nil, err
	}
	b, lnA, err := stats.LinearRegression(lnY, lnX)
	if err != nil {
		return nil, err
	}
	a := math.Exp(lnA)
	return func(x float64) (float64, error) {
		if x <= 0 {
			return 0, fmt.Errorf("time point %g: %w", x, ErrNonPositiveInput)
		}
		return a * math.Pow(x, b), nil
	}, nil
}

func logAll(xs []float64, what string) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if x <= 0 {
			return nil, fmt.Errorf("%s %g: %w", what, x, ErrNonPositiveInput)
		}
		out[i] = math.Log(x)
	}
	return out, nil
}
