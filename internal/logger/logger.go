// Package logger builds the client's zap logger. The terminal belongs to the
// UI, so output goes to a daily rotating file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxAge is how long rotated log files are kept.
const MaxAge = 7 * 24 * time.Hour

type Config struct {
	Level string
	Dev   bool
	// File is a strftime pattern; empty logs to stderr.
	File string
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes and returns a *zap.Logger along with the sink to close on exit.
func Init(cfg Config) (*zap.Logger, io.Closer, error) {
	sink, err := openSink(cfg.File)
	if err != nil {
		return nil, nil, err
	}

	lvl := levelFromString(cfg.Level)
	var enc zapcore.Encoder
	if cfg.Dev {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encoderCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(sink), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), sink, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openSink(pattern string) (io.WriteCloser, error) {
	if pattern == "" {
		return nopCloser{os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(pattern), 0o700); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	rl, err := rotatelogs.New(pattern,
		rotatelogs.WithMaxAge(MaxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", pattern, err)
	}
	return rl, nil
}
