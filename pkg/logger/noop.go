package logger

import (
	"github.com/reelpack/reelpack/pkg/interfaces"
)

// NoopLogger discards every log entry. Used in tests where log output is
// noise.
type NoopLogger struct{}

// NewNoopLogger creates a no-op logger.
func NewNoopLogger() interfaces.Logger {
	return &NoopLogger{}
}

func (n *NoopLogger) Debug(msg string, fields ...interfaces.Field) {}
func (n *NoopLogger) Info(msg string, fields ...interfaces.Field)  {}
func (n *NoopLogger) Warn(msg string, fields ...interfaces.Field)  {}
func (n *NoopLogger) Error(msg string, fields ...interfaces.Field) {}

// Fatal does not exit, unlike the zap-backed logger.
func (n *NoopLogger) Fatal(msg string, fields ...interfaces.Field) {}

func (n *NoopLogger) WithFields(fields ...interfaces.Field) interfaces.Logger {
	return n
}
