package app

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger: в production JSON, иначе цветной консольный вывод.
// Если задан file, логи дополнительно пишутся в файл с ротацией.
func NewLogger(env, file string) *zap.Logger {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.OutputPaths = []string{"stdout"}

	if file == "" {
		logger, err := config.Build()
		if err != nil {
			panic("failed to create logger: " + err.Error())
		}
		return logger
	}

	rotated := &lumberjack.Logger{
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
			zapcore.AddSync(rotated),
			config.Level,
		),
		zapcore.NewCore(console, zapcore.AddSync(os.Stdout), config.Level),
	)

	return zap.New(core, zap.AddCaller())
}
