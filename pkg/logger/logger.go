// Package logger provides opinionated logging capabilities for the relay
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by the relay commands.
func NewLogger(debug bool) *zap.Logger {
	return New(os.Stdout, debug)
}

// New builds a console logger that writes to w. Interactive commands pass a
// file or io.Discard so log lines do not tear the terminal UI.
func New(w io.Writer, debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if w != os.Stdout && w != os.Stderr {
		// No color escapes in files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core, zap.AddCaller()).Named("relay")
}

// Truncate shortens s for log previews, flattening newlines.
func Truncate(s string, maxLen int) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' {
			r = ' '
		}
		out = append(out, r)
	}
	if len(out) <= maxLen {
		return string(out)
	}
	return string(out[:maxLen]) + "..."
}
