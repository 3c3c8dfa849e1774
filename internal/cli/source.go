package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrcode/nightscout-forecast/internal/models"
	"github.com/mrcode/nightscout-forecast/internal/nightscout"
	"github.com/mrcode/nightscout-forecast/internal/prediction"
)

var errNotConfigured = errors.New("no Nightscout URL configured: set nightscoutUrl, pass --url or use --input")

// fileSource serves readings from a Nightscout entries export, as returned
// by /api/v1/entries.json
type fileSource struct {
	path  string
	stdin io.Reader
}

// GetReadings returns the readings within hours of the newest one
func (f fileSource) GetReadings(ctx context.Context, hours int) ([]models.Reading, error) {
	var r io.Reader
	if f.path == "-" {
		r = f.stdin
	} else {
		file, err := os.Open(f.path)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer file.Close()
		r = file
	}

	var entries []models.GlucoseEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding entries from %s: %w", f.path, err)
	}

	readings := models.CleanReadings(models.EntriesToReadings(entries))
	if len(readings) == 0 {
		return nil, nightscout.ErrNoEntries
	}

	cutoff := readings[len(readings)-1].Time.Add(-time.Duration(hours) * time.Hour)
	for i, reading := range readings {
		if !reading.Time.Before(cutoff) {
			return readings[i:], nil
		}
	}
	return readings, nil
}

// source returns where readings come from for this invocation
func (o *options) source(stdin io.Reader) (prediction.ReadingSource, error) {
	if o.input != "" {
		return fileSource{path: o.input, stdin: stdin}, nil
	}
	if !o.settings.IsConfigured() {
		return nil, errNotConfigured
	}
	return nightscout.NewClientFromSettings(o.settings, nightscout.WithLogger(o.logger.Named("nightscout"))), nil
}

// report reads once and builds a forecast. File input is evaluated as of its
// newest reading.
func (o *options) report(ctx context.Context, stdin io.Reader) (*models.ForecastReport, []models.Reading, error) {
	source, err := o.source(stdin)
	if err != nil {
		return nil, nil, err
	}

	readings, err := source.GetReadings(ctx, o.settings.HistoryHours)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if o.input != "" {
		now = readings[len(readings)-1].Time
	}

	service := prediction.NewService(source, o.settings, o.logger.Named("forecast"))
	return service.BuildReport(readings, now), readings, nil
}
