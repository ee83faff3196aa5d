package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voicecapture/internal/config"
)

// New builds the process logger. Format "auto" picks the console encoder
// when stdout is a terminal and JSON otherwise.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(orDefault(cfg.Level, "info")))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.MessageKey = "message"
	zcfg.EncoderConfig.LevelKey = "level"

	switch resolveFormat(cfg.Format, isatty.IsTerminal(os.Stdout.Fd())) {
	case "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.Sampling = nil
	default:
		zcfg.Encoding = "json"
	}
	zcfg.OutputPaths = []string{orDefault(cfg.Output, "stdout")}

	return zcfg.Build()
}

func resolveFormat(format string, terminal bool) string {
	switch strings.ToLower(format) {
	case "json":
		return "json"
	case "console", "text":
		return "console"
	default:
		if terminal {
			return "console"
		}
		return "json"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
