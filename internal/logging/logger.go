// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder and the fields stamped on every entry.
type Options struct {
	Development bool
	// RunID correlates every entry of one command invocation.
	RunID   string
	Command string
}

// New builds a zap.Logger configured for development or production.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.InitialFields = initialFields(opts)

	logger, err := cfg.Build()
	if err != nil {
		if opts.Development {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

func initialFields(opts Options) map[string]any {
	fields := map[string]any{}
	if opts.RunID != "" {
		fields["run_id"] = opts.RunID
	}
	if opts.Command != "" {
		fields["command"] = opts.Command
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
