// Package logging builds the broker's structured logger. Every component
// logs through a *zap.SugaredLogger scoped with a "component" field instead
// of the standard library's log package, so log lines stay greppable and
// machine-parseable under load.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile logger writing structured JSON to stderr,
// or a human-friendly console logger when dev is true.
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Component returns a child logger tagged with the given component name,
// the unit every package in the broker logs under.
func Component(base *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return base.With("component", name)
}
