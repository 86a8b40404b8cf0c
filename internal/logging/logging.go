// Package logging configures the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
)

// Setup builds and installs the global logger. Debug selects the
// development config with debug-level output.
func Setup(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop(), err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
