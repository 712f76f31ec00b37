package bootstrap

import (
	"sweer/internal/config"
	"sweer/pkg/logg"

	"go.uber.org/zap"
)

func newLogger(config *config.Config) (*zap.Logger, error) {
	return logg.New(config.AppConfig.LogLevel, config.AppConfig.Debug)
}
