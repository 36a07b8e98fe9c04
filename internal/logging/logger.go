// Package logging builds the zap logger shared by every crawl component.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "listing-crawler"

// Options selects the encoder and the minimum level. An empty Level keeps the
// mode's default: debug for development, info for production.
type Options struct {
	Development bool
	Level       string
}

// ParseLevel validates a configured level name. The empty string is accepted.
func ParseLevel(name string) (zapcore.Level, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return zapcore.InfoLevel, false, nil
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, false, fmt.Errorf("parse log level %q: %w", name, err)
	}
	return lvl, true, nil
}

// New builds a zap.Logger for one crawl process.
func New(opts Options) (*zap.Logger, error) {
	lvl, override, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
		// Per-page lines share a message; sampling would drop most of a long crawl.
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.InitialFields = map[string]any{"service": serviceName}
	if override {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
