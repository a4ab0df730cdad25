// Package observability builds the process logger and the transcode
// metrics recorder.
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger, or a console logger when
// development is set, at the given level ("debug", "info", "warn", "error").
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
