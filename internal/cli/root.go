// Package cli implements the nightscout-forecast command line
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-forecast/internal/config"
	"github.com/mrcode/nightscout-forecast/internal/logging"
	"github.com/mrcode/nightscout-forecast/internal/models"
)

// options holds state shared by all commands
type options struct {
	cfgFile string
	output  string
	input   string

	v        *viper.Viper
	settings *models.Settings
	logger   *zap.Logger
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	o := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "nightscout-forecast",
		Short: "Glucose trend forecasts and low alerts for Nightscout",
		Long: `nightscout-forecast fits trend lines to recent CGM readings from Nightscout,
projects glucose ahead, warns before a low and reports how reliably the
transmitter has been read.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.nightscout-forecast.yaml)")
	flags.StringVarP(&o.output, "output", "o", formatText, "Output format: text, json, yaml")
	flags.StringVarP(&o.input, "input", "i", "", "Read Nightscout entries JSON from a file ('-' for stdin) instead of the server")
	flags.String("url", "", "Nightscout base URL")
	flags.String("api-secret", "", "Nightscout API secret")
	flags.String("api-token", "", "Nightscout access token")
	flags.String("unit", "", "Display unit: mg/dL or mmol/L")
	flags.String("log-level", "", "Log level: debug, info, warn, error")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"nightscoutUrl": "url",
		"apiSecret":     "api-secret",
		"apiToken":      "api-token",
		"unit":          "unit",
		"logLevel":      "log-level",
	} {
		_ = o.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newPredictCommand(o),
		newLowCommand(o),
		newReadSuccessCommand(o),
		newStatsCommand(o),
		newChartCommand(o),
		newWatchCommand(o),
		newServeCommand(o),
		newAutostartCommand(o),
		newVersionCommand(),
	)

	return rootCmd
}

// settingFlags maps command flags onto settings keys
var settingFlags = map[string]string{
	"threshold":  "lowThreshold",
	"max-hours":  "maxHoursAhead",
	"horizon":    "horizonMinutes",
	"interval":   "intervalMinutes",
	"fit-window": "fitWindowMinutes",
	"smooth":     "smoothReadings",
	"refresh":    "refreshInterval",
	"listen":     "listenAddr",
}

func (o *options) init(cmd *cobra.Command) error {
	for flag, key := range settingFlags {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = o.v.BindPFlag(key, f)
		}
	}

	switch o.output {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}

	settings, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	if settings.APIToken != "" && settings.APISecret == "" {
		settings.UseToken = true
	}
	o.settings = settings

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return err
	}
	o.logger = logger

	if used := o.v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}
