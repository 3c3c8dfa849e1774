// Package trendline provides the closed family of trend-line models used to
// extrapolate glucose readings, and the selection of the best-fitting one.
//
// Models are stateless: every call re-derives its coefficients from the window
// it is given, so a single value can be shared across goroutines.
package trendline

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/nightscout-forecast/internal/stats"
)

var (
	// ErrNonPositiveInput is returned by models that take logarithms of non-positive inputs
	ErrNonPositiveInput = errors.New("non-positive input for logarithmic transform")
	// ErrNoModel is returned when no registered model could be fitted
	ErrNoModel = errors.New("no trend-line model could be fitted")
)

// Model is a curve-fitting strategy over (timePoints, values)
type Model interface {
	// Name identifies the model in logs and reports
	Name() string
	// Complexity is the number of fitted parameters, used for tie-breaking
	Complexity() int
	// Predict fits the window and evaluates the curve at futureTime
	Predict(values, timePoints []float64, futureTime float64) (float64, error)
	// ErrorVariance fits the window and returns the residual variance SSR/(n-p)
	ErrorVariance(values, timePoints []float64) (float64, error)
}

// fitFunc fits a window and returns the fitted curve
type fitFunc func(values, timePoints []float64) (func(x float64) (float64, error), error)

// residualVariance computes SSR/(n-p) of a fitted curve over the window
func residualVariance(fit fitFunc, params int, values, timePoints []float64) (float64, error) {
	if len(values) != len(timePoints) {
		return 0, fmt.Errorf("%d values, %d time points: %w", len(values), len(timePoints), stats.ErrLengthMismatch)
	}
	if len(values) <= params {
		return 0, fmt.Errorf("need more than %d points, have %d: %w", params, len(values), stats.ErrInsufficientData)
	}

	curve, err := fit(values, timePoints)
	if err != nil {
		return 0, err
	}

	var ssr float64
	for i, x := range timePoints {
		fitted, err := curve(x)
		if err != nil {
			return 0, err
		}
		r := values[i] - fitted
		ssr += r * r
	}

	variance := ssr / float64(len(values)-params)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0, stats.ErrIllConditioned
	}
	return variance, nil
}

func predictWith(fit fitFunc, values, timePoints []float64, futureTime float64) (float64, error) {
	curve, err := fit(values, timePoints)
	if err != nil {
		return 0, err
	}
	v, err := curve(futureTime)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, stats.ErrIllConditioned
	}
	return v, nil
}
