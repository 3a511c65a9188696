package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the console logger.
type Options struct {
	Debug bool
	// Writer receives log lines. nil means stdout.
	Writer io.Writer
}

// New builds a console logger that prints "INFO", "WARN" and "ERROR" lines
// for humans running the CLI.
func New(opts Options) *zap.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
		encCfg.TimeKey = "T"
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
