package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func isolateHome(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoad_Defaults(t *testing.T) {
	isolateHome(t)

	settings, err := Load(viper.New(), "")
	require.NoError(t, err)

	defaults := models.DefaultSettings()
	assert.Equal(t, defaults.Unit, settings.Unit)
	assert.Equal(t, defaults.LowThreshold, settings.LowThreshold)
	assert.Equal(t, defaults.HorizonMinutes, settings.HorizonMinutes)
	assert.Equal(t, defaults.MaxHoursAhead, settings.MaxHoursAhead)
	assert.Equal(t, defaults.EnableUrgentAlert, settings.EnableUrgentAlert)
	assert.Equal(t, defaults.ListenAddr, settings.ListenAddr)
}

func TestLoad_File(t *testing.T) {
	isolateHome(t)
	path := writeConfig(t, `
nightscoutUrl: https://ns.example.com
apiSecret: hunter2
unit: mmol/L
lowThreshold: 72
horizonMinutes: 45
maxHoursAhead: 1.5
smoothReadings: true
enableWatchAlert: true
`)

	settings, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://ns.example.com", settings.NightscoutURL)
	assert.Equal(t, "hunter2", settings.APISecret)
	assert.Equal(t, "mmol/L", settings.Unit)
	assert.Equal(t, 72.0, settings.LowThreshold)
	assert.Equal(t, 45, settings.HorizonMinutes)
	assert.Equal(t, 1.5, settings.MaxHoursAhead)
	assert.True(t, settings.SmoothReadings)
	assert.True(t, settings.EnableWatchAlert)

	// Unset keys keep their defaults
	assert.Equal(t, 5, settings.IntervalMinutes)
	assert.True(t, settings.IsConfigured())
}

func TestLoad_HomeFile(t *testing.T) {
	isolateHome(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".nightscout-forecast.yaml"), []byte("lowThreshold: 65\n"), 0o600))

	v := viper.New()
	settings, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 65.0, settings.LowThreshold)
	assert.Equal(t, filepath.Join(home, ".nightscout-forecast.yaml"), v.ConfigFileUsed())
}

func TestLoad_Env(t *testing.T) {
	isolateHome(t)
	t.Setenv("NSFORECAST_LOWTHRESHOLD", "80")
	t.Setenv("NSFORECAST_NIGHTSCOUTURL", "https://env.example.com")

	settings, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 80.0, settings.LowThreshold)
	assert.Equal(t, "https://env.example.com", settings.NightscoutURL)
}

func TestLoad_Errors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing explicit file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"malformed yaml", func(t *testing.T) string { return writeConfig(t, "unit: [mg/dL\n") }},
		{"invalid values", func(t *testing.T) string { return writeConfig(t, "unit: furlongs\nrefreshInterval: 5\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestDecode_AfterChange(t *testing.T) {
	isolateHome(t)
	path := writeConfig(t, "nightscoutUrl: https://ns.example.com\nlowThreshold: 70\n")

	v := viper.New()
	_, err := Load(v, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("nightscoutUrl: https://ns.example.com\nlowThreshold: 80\n"), 0o600))
	require.NoError(t, v.ReadInConfig())

	settings, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 80.0, settings.LowThreshold)

	require.NoError(t, os.WriteFile(path, []byte("lowThreshold: -5\n"), 0o600))
	require.NoError(t, v.ReadInConfig())
	_, err = Decode(v)
	assert.Error(t, err)
}
