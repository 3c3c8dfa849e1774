package trendline

import (
	"fmt"
	"math"
)

// tieTolerance is the relative width within which two variances count as equal
const tieTolerance = 1e-9

// CreateAllModels returns one instance of every registered model, simplest first.
// Registration order is the final tie-break in Select.
func CreateAllModels() []Model {
	return []Model{
		Polynomial{Degree: 1},
		Polynomial{Degree: 2},
		Logarithmic{},
		Exponential{},
		Power{},
	}
}

// Candidate is the outcome of evaluating one model
type Candidate struct {
	Model    Model
	Variance float64
	Err      error
}

// Selection is the result of a selection pass
type Selection struct {
	Model    Model
	Variance float64
	// Candidates holds every evaluated model in registration order, excluded ones included
	Candidates []Candidate
}

// Select evaluates every model over the same window and returns the one with the
// lowest error variance. Models that fail to fit are excluded. Variances equal
// within tolerance resolve to the lower complexity, then to registration order.
func Select(models []Model, values, timePoints []float64) (Selection, error) {
	sel := Selection{
		Variance:   math.Inf(1),
		Candidates: make([]Candidate, 0, len(models)),
	}

	for _, m := range models {
		variance, err := m.ErrorVariance(values, timePoints)
		sel.Candidates = append(sel.Candidates, Candidate{Model: m, Variance: variance, Err: err})
		if err != nil {
			continue
		}

		if sel.Model == nil || better(m, variance, sel.Model, sel.Variance) {
			sel.Model = m
			sel.Variance = variance
		}
	}

	if sel.Model == nil {
		return sel, fmt.Errorf("%d models evaluated: %w", len(models), ErrNoModel)
	}

	return sel, nil
}

// better reports whether candidate beats the current best
func better(candidate Model, variance float64, best Model, bestVariance float64) bool {
	tol := tieTolerance * math.Max(1, math.Abs(bestVariance))
	if math.Abs(variance-bestVariance) <= tol {
		return candidate.Complexity() < best.Complexity()
	}
	return variance < bestVariance
}
