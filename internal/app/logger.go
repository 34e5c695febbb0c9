package app

import "github.com/charlesng35/hireflow/pkg/logger"

// ConfigureLogging installs the global logger for the server. Development
// mode switches zap to its console encoder.
func ConfigureLogging(cfg ServerConfig) error {
	return logger.Configure(logger.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "hireflow",
	})
}
