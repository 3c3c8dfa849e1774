package stats

import "math"

// Glucose range boundaries in mg/dL
const (
	RangeLow  = 70.0
	RangeHigh = 180.0
)

// Summary holds glucose statistics for a window of readings
type Summary struct {
	Count                  int     `json:"count" yaml:"count"`
	Mean                   float64 `json:"mean" yaml:"mean"`
	StdDev                 float64 `json:"stdDev" yaml:"stdDev"`
	CoefficientOfVariation float64 `json:"coefficientOfVariation" yaml:"coefficientOfVariation"` // CV%
	GMI                    float64 `json:"gmi" yaml:"gmi"`                                       // Glucose Management Indicator (estimated HbA1c)
	TimeInRange            float64 `json:"timeInRange" yaml:"timeInRange"`                       // Percentage 70-180 mg/dL
	TimeBelowRange         float64 `json:"timeBelowRange" yaml:"timeBelowRange"`                 // Percentage <70 mg/dL
	TimeAboveRange         float64 `json:"timeAboveRange" yaml:"timeAboveRange"`                 // Percentage >180 mg/dL
}

// Summarize calculates basic glucose statistics over values in mg/dL
func Summarize(values []float64) (Summary, error) {
	mean, err := Mean(values)
	if err != nil {
		return Summary{}, err
	}
	stdDev, err := StandardDeviation(values)
	if err != nil {
		return Summary{}, err
	}

	var inRange, belowRange, aboveRange int
	for _, v := range values {
		switch {
		case v < RangeLow:
			belowRange++
		case v > RangeHigh:
			aboveRange++
		default:
			inRange++
		}
	}

	n := float64(len(values))
	s := Summary{
		Count:          len(values),
		Mean:           round(mean, 1),
		StdDev:         round(stdDev, 1),
		TimeInRange:    round(float64(inRange)/n*100, 1),
		TimeBelowRange: round(float64(belowRange)/n*100, 1),
		TimeAboveRange: round(float64(aboveRange)/n*100, 1),
		// Formula: GMI = 3.31 + 0.02392 × mean glucose (mg/dL)
		GMI: round(3.31+0.02392*mean, 1),
	}

	if mean > 0 {
		s.CoefficientOfVariation = round(stdDev/mean*100, 1)
	}

	return s, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
