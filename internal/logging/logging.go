// Package logging builds the application's zap logger
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production logger at level, or a development logger when
// level is "debug". Logs go to stderr so command output stays clean.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	config := zap.NewProductionConfig()
	if atomic.Level() == zap.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = atomic
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
