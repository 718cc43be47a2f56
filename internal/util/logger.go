package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

// InitLogger initializes the global logger. When file is set, entries are
// also written as JSON to a rotated log file.
func InitLogger(env, file string) error {
	var err error
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if file == "" {
		logger, err = config.Build()
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}

	var console zapcore.Encoder
	if env == "production" {
		console = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		console = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			config.Level,
		),
		zapcore.NewCore(console, zapcore.AddSync(os.Stdout), config.Level),
	)
	logger = zap.New(core, zap.AddCaller())

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
