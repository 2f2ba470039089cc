// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds a production zap logger tagged with the service name.
// level accepts zap level strings ("debug", "info", "warn", "error");
// blank defaults to info.
func New(service string, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		parsed, err := zap.ParseAtomicLevel(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", trimmed, err)
		}
		cfg.Level = parsed
	}

	logger, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
