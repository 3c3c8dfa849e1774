// Package readsuccess estimates how reliably a transmitter delivered readings.
//
// Readings are bucketed into slots one nominal gap wide. Slots are aligned to
// the phase at which the transmitter actually reports, so a reading a few
// seconds late still lands in its own slot. The success rate of a window is
// the share of expected slots holding at least one reading.
package readsuccess

import (
	"time"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

const (
	// Lookback is the longest window analyzed
	Lookback = 24 * time.Hour

	fastGap      = time.Minute
	slowGap      = 5 * time.Minute
	gapThreshold = 90 * time.Second
	phaseBin     = 5 * time.Second

	// maxPercentWithGap keeps a window with any missing slot below 100%
	maxPercentWithGap = 99.9
)

var windows = []time.Duration{6 * time.Hour, 12 * time.Hour, 24 * time.Hour}

// GetReadSuccess computes 6h/12h/24h read success for readings up to now.
// Readings before notBefore (typically the sensor start) are ignored.
func GetReadSuccess(readings []models.Reading, now time.Time, notBefore *time.Time) models.ReadSuccessDisplay {
	floor := now.Add(-Lookback)
	if notBefore != nil && notBefore.After(floor) {
		floor = *notBefore
	}

	inWindow := make([]models.Reading, 0, len(readings))
	for _, r := range models.CleanReadings(readings) {
		if r.Time.Before(floor) || r.Time.After(now) {
			continue
		}
		inWindow = append(inWindow, r)
	}

	display := models.ReadSuccessDisplay{ReadingsInWindow: len(inWindow)}
	counts := make([]models.ReadSuccessWindow, len(windows))
	for i, w := range windows {
		counts[i].Window = w
	}

	if len(inWindow) == 0 {
		display.SixHours, display.TwelveHours, display.TwentyFourHours = counts[0], counts[1], counts[2]
		return display
	}

	display.Earliest = inWindow[0].Time
	display.Latest = inWindow[len(inWindow)-1].Time
	display.NominalGap = nominalGap(inWindow)
	display.Phase = estimatePhase(inWindow, display.NominalGap)

	gap := display.NominalGap.Nanoseconds()
	phase := display.Phase.Nanoseconds()
	slotOf := func(t time.Time) int64 {
		return floorDiv(t.UnixNano()-phase+gap/2, gap)
	}

	// A slot is only expected once its reading is half a gap overdue
	lastSlot := max(floorDiv(now.UnixNano()-phase-gap/2, gap), slotOf(display.Latest))

	for i := range counts {
		start := now.Add(-counts[i].Window)
		if display.Earliest.After(start) {
			start = display.Earliest
		}

		firstSlot := ceilDiv(start.UnixNano()-phase, gap)
		if lastSlot < firstSlot {
			continue
		}
		counts[i].Expected = int(lastSlot - firstSlot + 1)

		occupied := make(map[int64]struct{})
		for _, r := range inWindow {
			if r.Time.Before(start) {
				continue
			}
			// A reading rounding into the slot before the window belongs to that slot
			if slot := slotOf(r.Time); slot >= firstSlot {
				occupied[slot] = struct{}{}
			}
		}
		counts[i].Occupied = len(occupied)
		counts[i].Missing = counts[i].Expected - counts[i].Occupied
	}

	// A longer window never misses fewer slots than the one nested inside it
	for i := 1; i < len(counts); i++ {
		if counts[i].Missing < counts[i-1].Missing {
			counts[i].Missing = counts[i-1].Missing
		}
	}

	for i := range counts {
		counts[i].Percent = percent(counts[i].Expected, counts[i].Missing)
	}

	display.SixHours, display.TwelveHours, display.TwentyFourHours = counts[0], counts[1], counts[2]
	return display
}

// nominalGap picks the transmitter cadence from the average observed gap
func nominalGap(readings []models.Reading) time.Duration {
	if len(readings) < 2 {
		return slowGap
	}
	span := readings[len(readings)-1].Time.Sub(readings[0].Time)
	if span/time.Duration(len(readings)-1) < gapThreshold {
		return fastGap
	}
	return slowGap
}

// estimatePhase votes each reading's offset within the gap into 5-second bins
// and returns the centre of the most popular bin. Ties go to the earliest bin.
func estimatePhase(readings []models.Reading, gap time.Duration) time.Duration {
	bins := make([]int, gap/phaseBin)
	for _, r := range readings {
		offset := floorMod(r.Time.UnixNano(), gap.Nanoseconds())
		bins[offset/phaseBin.Nanoseconds()]++
	}

	best := 0
	for i, votes := range bins {
		if votes > bins[best] {
			best = i
		}
	}

	return time.Duration(best)*phaseBin + phaseBin/2
}

// percent floors the success rate to one decimal
func percent(expected, missing int) float64 {
	if expected <= 0 {
		return 0
	}
	missing = max(0, min(expected, missing))

	p := float64(1000*(expected-missing)/expected) / 10
	if missing > 0 && p > maxPercentWithGap {
		p = maxPercentWithGap
	}
	return p
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
