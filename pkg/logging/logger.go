// Package logging provides the engine's zap logger and log sanitization
// helpers for SQL and credentials.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger. Development environments get the
// human-readable console encoder; everything else logs structured JSON.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" || env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
