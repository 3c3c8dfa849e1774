package notifications

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

// Test constants
const testMmolUnit = "mmol/L"

type recorder struct {
	titles   []string
	messages []string
	sounds   int
	beeps    int
	critical int
	err      error
}

func newTestManager(t *testing.T, settings *models.Settings) (*Manager, *recorder, *time.Time) {
	t.Helper()
	rec := &recorder{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := NewManager(settings, zaptest.NewLogger(t))
	m.notify = func(title, message string) error {
		rec.titles = append(rec.titles, title)
		rec.messages = append(rec.messages, message)
		return rec.err
	}
	m.alert = func(title, message string) error {
		rec.sounds++
		return m.notify(title, message)
	}
	m.critical = nil
	m.beep = func() error {
		rec.beeps++
		return nil
	}
	m.now = func() time.Time { return clock }
	return m, rec, &clock
}

func lowReport(severity models.Severity, timeToLow time.Duration) *models.ForecastReport {
	return &models.ForecastReport{
		LatestReading: &models.Reading{Value: 95},
		Low: &models.LowGlucoseForecast{
			TimeToLow:  timeToLow,
			Severity:   severity,
			Threshold:  70,
			ExpectedAt: time.Now().Add(timeToLow),
		},
	}
}

func TestManager_CheckForecast_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		severity models.Severity
		expected bool
	}{
		{"Watch disabled by default", models.SeverityWatch, false},
		{"Warning", models.SeverityWarning, true},
		{"Urgent", models.SeverityUrgent, true},
		{"Immediate", models.SeverityImmediate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, rec, _ := newTestManager(t, models.DefaultSettings())
			sent, err := manager.CheckForecast(lowReport(tt.severity, 20*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sent)
			assert.Equal(t, tt.expected, len(rec.titles) == 1)
		})
	}
}

func TestManager_CheckForecast_NoLow(t *testing.T) {
	manager, rec, _ := newTestManager(t, models.DefaultSettings())

	sent, err := manager.CheckForecast(&models.ForecastReport{})
	require.NoError(t, err)
	assert.False(t, sent)

	sent, err = manager.CheckForecast(nil)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, rec.titles)
}

func TestManager_CheckForecast_RepeatSuppression(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatAlertMinutes = 15
	manager, rec, clock := newTestManager(t, settings)

	report := lowReport(models.SeverityWarning, 45*time.Minute)

	sent, _ := manager.CheckForecast(report)
	assert.True(t, sent)

	*clock = clock.Add(5 * time.Minute)
	sent, _ = manager.CheckForecast(report)
	assert.False(t, sent, "repeat within 15 minutes should be suppressed")

	*clock = clock.Add(10 * time.Minute)
	sent, _ = manager.CheckForecast(report)
	assert.True(t, sent, "repeat after 15 minutes should notify")

	assert.Len(t, rec.titles, 2)
}

func TestManager_CheckForecast_NoRepeat(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatAlertMinutes = 0
	manager, _, clock := newTestManager(t, settings)

	report := lowReport(models.SeverityWarning, 45*time.Minute)
	sent, _ := manager.CheckForecast(report)
	assert.True(t, sent)

	*clock = clock.Add(time.Hour)
	sent, _ = manager.CheckForecast(report)
	assert.False(t, sent)

	// Clearing the forecast ends the episode
	_, _ = manager.CheckForecast(&models.ForecastReport{})
	sent, _ = manager.CheckForecast(report)
	assert.True(t, sent)
}

func TestManager_CheckForecast_Escalation(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatAlertMinutes = 30
	manager, rec, clock := newTestManager(t, settings)

	sent, _ := manager.CheckForecast(lowReport(models.SeverityWarning, 50*time.Minute))
	assert.True(t, sent)

	*clock = clock.Add(time.Minute)
	sent, _ = manager.CheckForecast(lowReport(models.SeverityUrgent, 25*time.Minute))
	assert.True(t, sent, "escalation should always notify")

	*clock = clock.Add(time.Minute)
	sent, _ = manager.CheckForecast(lowReport(models.SeverityWarning, 40*time.Minute))
	assert.False(t, sent, "de-escalation within the repeat window should stay quiet")

	assert.Equal(t, 1, rec.sounds, "only urgent alerts use sound")
}

func TestManager_CheckForecast_SendError(t *testing.T) {
	manager, rec, _ := newTestManager(t, models.DefaultSettings())
	rec.err = errors.New("no notification daemon")

	sent, err := manager.CheckForecast(lowReport(models.SeverityImmediate, 5*time.Minute))
	assert.False(t, sent)
	assert.ErrorIs(t, err, rec.err)

	// A failed send is retried on the next check
	rec.err = nil
	sent, err = manager.CheckForecast(lowReport(models.SeverityImmediate, 5*time.Minute))
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestManager_CheckForecast_Critical(t *testing.T) {
	tests := []struct {
		name        string
		severity    models.Severity
		criticalErr error
		wantCrit    int
		wantBeeps   int
		wantSounds  int
	}{
		{"immediate uses critical", models.SeverityImmediate, nil, 1, 1, 0},
		{"critical failure falls back to alert", models.SeverityImmediate, errors.New("no session bus"), 1, 0, 1},
		{"urgent stays on alert", models.SeverityUrgent, nil, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, rec, _ := newTestManager(t, models.DefaultSettings())
			manager.critical = func(title, message string) error {
				rec.critical++
				return tt.criticalErr
			}

			sent, err := manager.CheckForecast(lowReport(tt.severity, 10*time.Minute))
			require.NoError(t, err)
			assert.True(t, sent)
			assert.Equal(t, tt.wantCrit, rec.critical)
			assert.Equal(t, tt.wantBeeps, rec.beeps)
			assert.Equal(t, tt.wantSounds, rec.sounds)
		})
	}
}

func TestManager_formatNotification(t *testing.T) {
	manager, _, _ := newTestManager(t, models.DefaultSettings())

	tests := []struct {
		severity      models.Severity
		expectedTitle string
	}{
		{models.SeverityImmediate, "⚠️ LOW GLUCOSE IMMINENT"},
		{models.SeverityUrgent, "⚠️ Urgent: Low Glucose Expected"},
		{models.SeverityWarning, "⬇️ Low Glucose Expected"},
		{models.SeverityWatch, "⬇️ Glucose Trending Low"},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			title, message := manager.formatNotification(lowReport(tt.severity, 20*time.Minute))
			assert.Equal(t, tt.expectedTitle, title)
			assert.Contains(t, message, "70 mg/dL")
			assert.Contains(t, message, "in 20 min")
		})
	}
}

func TestManager_formatNotification_MmolL(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Unit = testMmolUnit
	manager, _, _ := newTestManager(t, settings)

	_, message := manager.formatNotification(lowReport(models.SeverityWarning, 40*time.Minute))
	if !strings.Contains(message, "3.9 mmol/L") {
		t.Errorf("Message should contain mmol/L threshold, got: %s", message)
	}
	if !strings.Contains(message, "5.3 mmol/L") {
		t.Errorf("Message should contain mmol/L current value, got: %s", message)
	}
}

func TestManager_ClearAlertState(t *testing.T) {
	manager, _, _ := newTestManager(t, models.DefaultSettings())

	_, _ = manager.CheckForecast(lowReport(models.SeverityWarning, 45*time.Minute))
	require.NotEmpty(t, manager.lastAlertTime)

	manager.ClearAlertState()
	assert.Empty(t, manager.lastAlertTime)
	assert.False(t, manager.inEpisode)
}

func TestManager_UpdateSettings(t *testing.T) {
	manager, _, _ := newTestManager(t, models.DefaultSettings())

	newSettings := models.DefaultSettings()
	newSettings.Unit = testMmolUnit

	manager.UpdateSettings(newSettings)

	if manager.settings.Unit != testMmolUnit {
		t.Error("Settings were not updated")
	}
}
