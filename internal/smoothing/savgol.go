// Package smoothing provides Savitzky-Golay smoothing of glucose readings
package smoothing

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidConfig is returned for unusable window/order combinations
var ErrInvalidConfig = errors.New("invalid smoothing configuration")

// Config controls a Savitzky-Golay pass
type Config struct {
	WindowSize int // Odd, at least 3
	PolyOrder  int // Below WindowSize
}

// DefaultConfig returns a 5-point quadratic filter
func DefaultConfig() Config {
	return Config{WindowSize: 5, PolyOrder: 2}
}

// Validate checks the window and order
func (c Config) Validate() error {
	if c.WindowSize < 3 || c.WindowSize%2 == 0 {
		return fmt.Errorf("window size %d must be odd and at least 3: %w", c.WindowSize, ErrInvalidConfig)
	}
	if c.PolyOrder < 0 || c.PolyOrder >= c.WindowSize {
		return fmt.Errorf("polynomial order %d must be in [0, %d): %w", c.PolyOrder, c.WindowSize, ErrInvalidConfig)
	}
	return nil
}

// SavitzkyGolay smooths values with a moving least-squares polynomial.
// Near the edges the window shrinks to the points available and the order is
// lowered to fit it.
func SavitzkyGolay(values []float64, cfg Config) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := len(values)
	half := cfg.WindowSize / 2
	smoothed := make([]float64, n)

	var interior []float64
	for i := range values {
		lo := max(0, i-half)
		hi := min(n-1, i+half)

		var weights []float64
		var err error
		if i-lo == half && hi-i == half {
			if interior == nil {
				interior, err = Coefficients(half, half, cfg.PolyOrder)
			}
			weights = interior
		} else {
			weights, err = Coefficients(i-lo, hi-i, min(cfg.PolyOrder, hi-lo))
		}
		if err != nil {
			return nil, err
		}

		var sum float64
		for j, w := range weights {
			sum += w * values[lo+j]
		}
		smoothed[i] = sum
	}

	return smoothed, nil
}

// Coefficients returns the convolution weights that evaluate a least-squares
// polynomial of the given order at a point with left samples before it and
// right samples after it.
func Coefficients(left, right, order int) ([]float64, error) {
	m := left + right + 1
	if left < 0 || right < 0 || order < 0 || order >= m {
		return nil, fmt.Errorf("order %d over window %d+%d: %w", order, left, right, ErrInvalidConfig)
	}

	vandermonde := mat.NewDense(m, order+1, nil)
	for j := 0; j < m; j++ {
		x := float64(j - left)
		p := 1.0
		for c := 0; c <= order; c++ {
			vandermonde.Set(j, c, p)
			p *= x
		}
	}

	ones := make([]float64, m)
	for i := range ones {
		ones[i] = 1
	}

	// Row 0 of the pseudo-inverse yields the fitted constant term at x = 0
	var pinv mat.Dense
	if err := pinv.Solve(vandermonde, mat.NewDiagDense(m, ones)); err != nil {
		return nil, fmt.Errorf("solving smoothing weights: %w", err)
	}

	return mat.Row(nil, 0, &pinv), nil
}
