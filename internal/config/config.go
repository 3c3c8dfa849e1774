// Package config loads settings from a YAML file, the environment and flags
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. NSFORECAST_NIGHTSCOUTURL
	EnvPrefix = "NSFORECAST"

	configName = ".nightscout-forecast"
)

// Load reads settings into v. cfgFile, when set, must exist; otherwise
// $HOME/.nightscout-forecast.yaml and the app config directory are searched
// and a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*models.Settings, error) {
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if dir, err := models.GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(configName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return Decode(v)
}

// Decode builds settings from the values v already holds, e.g. after the
// config file changed on disk
func Decode(v *viper.Viper) (*models.Settings, error) {
	settings := models.DefaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// setDefaults registers every settings key so environment variables and
// bound flags are seen by Unmarshal
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(models.DefaultSettings())
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	var defaults map[string]interface{}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return nil
}
