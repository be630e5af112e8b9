package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config describes how the process logs. Stdout is always a sink; File adds a
// second one.
type Config struct {
	Level    zapcore.Level
	Encoding string
	File     string
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT_FILE. It runs
// before the service configuration is loaded, so it keeps its own viper.
func ConfigFromEnv() Config {
	return configFrom(viper.New())
}

func configFrom(v *viper.Viper) Config {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", EncodingJSON)
	v.SetDefault("LOG_OUTPUT_FILE", "")
	v.AutomaticEnv()

	cfg := Config{Level: zapcore.InfoLevel, Encoding: EncodingJSON}

	raw := strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL")))
	if raw == "warning" {
		raw = "warn"
	}
	if lvl, err := zapcore.ParseLevel(raw); err == nil {
		cfg.Level = lvl
	}

	switch strings.ToLower(v.GetString("LOG_FORMAT")) {
	case "console", "text":
		cfg.Encoding = EncodingConsole
	}

	switch file := strings.TrimSpace(v.GetString("LOG_OUTPUT_FILE")); file {
	case "", "stdout", "stderr":
	default:
		cfg.File = file
	}
	return cfg
}

// zapConfig translates cfg into a zap.Config. Debug level switches to zap's
// development preset.
func (c Config) zapConfig() zap.Config {
	zc := zap.NewProductionConfig()
	if c.Level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(c.Level)
	zc.Encoding = c.Encoding
	if c.Encoding == EncodingConsole {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if c.File != "" {
		dir := filepath.Dir(c.File)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create log directory '%s', logging to stdout only: %v\n", dir, err)
		} else {
			zc.OutputPaths = append(zc.OutputPaths, c.File)
		}
	}
	return zc
}
