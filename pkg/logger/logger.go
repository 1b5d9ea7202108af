package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - настройка структурированного логирования
//
// Назначение:
// Единая точка инициализации zap-логгера для всего приложения.
// Формат (json/console) и уровень берутся из конфигурации.
//
// Использование:
//
//	log, err := logger.New("info", "json")
//	...
//	scannerLog := log.Named("scanner")

// New создает настроенный zap.Logger.
//
// Параметры:
//   - level: debug, info, warn, error
//   - format: json (production) или console (разработка)
func New(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or console)", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

// NewNop возвращает логгер-заглушку для тестов.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
