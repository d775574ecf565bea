// Package log provides shared logging helpers on top of zap.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDefault creates a console logger at info level, named after the
// calling module.
func NewDefault(name string) *zap.Logger {
	return NewWithLevel(name, zapcore.InfoLevel)
}

// NewWithLevel creates a console logger with a fixed level.
func NewWithLevel(name string, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named(name)
}

// NewNop creates a silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
