// Package logging builds the zap loggers used by the CLI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's format, level and destination.
type Config struct {
	Format string `yaml:"format" env:"CHAINKEY_LOG_FORMAT" env-default:"console"` // console or json
	Level  string `yaml:"level" env:"CHAINKEY_LOG_LEVEL" env-default:"warn"`       // debug, info, warn, error
	Output string `yaml:"output" env:"CHAINKEY_LOG_OUTPUT" env-default:"stderr"`  // stderr, stdout or file path
}

// New creates a logger from conf. Additional write syncers receive a copy
// of every entry.
func New(conf Config, extraWriters ...zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if conf.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(conf.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	switch conf.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", conf.Format)
	}

	var ws zapcore.WriteSyncer
	switch conf.Output {
	case "", "stderr":
		ws = zapcore.Lock(os.Stderr)
	case "stdout":
		ws = zapcore.Lock(os.Stdout)
	default:
		if err := os.MkdirAll(filepath.Dir(conf.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(conf.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		ws = zapcore.AddSync(file)
	}
	wss := zapcore.NewMultiWriteSyncer(append(extraWriters, ws)...)

	core := zapcore.NewCore(encoder, wss, level)
	return zap.New(core, zap.AddCaller()), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
