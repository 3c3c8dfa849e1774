package prediction

import (
	"time"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

// flatTolerance is the smallest drop per sampling step that counts as falling
const flatTolerance = 1e-6

// PredictLowGlucose estimates when glucose will cross below threshold within
// maxHoursAhead of the last reading. A curve that is still rising may turn and
// cross later. It returns nil when no crossing is found within maxHoursAhead or
// when the readings cannot be fitted.
func (p *Predictor) PredictLowGlucose(readings []models.Reading, threshold, maxHoursAhead float64) *models.LowGlucoseForecast {
	if len(readings) == 0 || threshold <= 0 || maxHoursAhead <= 0 {
		return nil
	}

	fit, err := p.Fit(readings)
	if err != nil {
		return nil
	}

	horizon := maxHoursAhead * 3600
	step := min(p.cfg.SampleStep.Seconds(), horizon/2)

	current, err := fit.At(0)
	if err != nil {
		return nil
	}

	// Already low: report the next step while still falling, nothing while recovering
	if current <= threshold {
		next, err := fit.At(step)
		if err != nil || current-next <= flatTolerance {
			return nil
		}
		return newLowForecast(fit, step, threshold)
	}

	prevT, prevV := 0.0, current
	for i := 1; float64(i)*step < horizon; i++ {
		t := float64(i) * step
		v, err := fit.At(t)
		if err != nil {
			return nil
		}

		if v <= threshold {
			// Interpolate between the last sample above and the first at or below
			crossing := prevT + (prevV-threshold)/(prevV-v)*(t-prevT)
			return newLowForecast(fit, crossing, threshold)
		}

		prevT, prevV = t, v
	}

	return nil
}

func newLowForecast(fit *Fit, seconds, threshold float64) *models.LowGlucoseForecast {
	timeToLow := time.Duration(seconds * float64(time.Second))
	return &models.LowGlucoseForecast{
		TimeToLow:  timeToLow,
		Severity:   models.SeverityForTimeToLow(timeToLow),
		Threshold:  threshold,
		Model:      fit.Model.Name(),
		ExpectedAt: fit.Last().Time.Add(timeToLow),
	}
}
