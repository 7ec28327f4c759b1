// Package logging configures the process-wide zap logger.
package logging

import (
	"os"
	"strings"

	"wjjfit/internal/errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds a logger at level ("debug", "info", ...) in format "console"
// or "json" and installs it as the global logger returned by zap.L().
func Init(level, format string) error {
	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "parse log level")
	}
	zapCfg.Level.SetLevel(lvl)

	logger, err := zapCfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// Component returns the global logger tagged with a component name
func Component(name string) *zap.Logger {
	return zap.L().With(zap.String("component", name))
}

// InitFromEnv initialises the global logger from LOG_LEVEL (ERROR, WARN,
// INFO, DEBUG; default INFO) and LOG_FORMAT (console or json; default
// console). TRACE is accepted as DEBUG.
func InitFromEnv() error {
	level := "info"
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		level = strings.ToLower(levelStr)
		if level == "trace" {
			level = "debug"
		}
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "console"
	}
	return Init(level, format)
}
