package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger создает и настраивает новый логгер
func NewLogger(isDevelopment bool) (*zap.Logger, error) {
	config := newConfig(isDevelopment)

	// Создаем логгер
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	// Заменяем глобальный логгер
	zap.ReplaceGlobals(logger)

	return logger, nil
}

// NewCLILogger пишет в stderr, чтобы не смешивать логи с выводом прогресса в stdout
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	config := newConfig(true)
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return config.Build()
}

func newConfig(isDevelopment bool) zap.Config {
	var config zap.Config

	if isDevelopment {
		// Для разработки используем более читаемый формат
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// Для продакшна используем JSON формат
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// Настраиваем логирование стеков ошибок
	config.DisableStacktrace = false
	return config
}
