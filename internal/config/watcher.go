package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/quorum/internal/logging"
)

// Watch reloads the config file when it changes on disk and hands every
// valid result to apply. Invalid edits are logged and skipped; the last
// good configuration stays in effect. Watch returns immediately.
func Watch(logger *logging.Logger, apply func(*Config)) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		cfg, err := Load()
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		logger.Info("config reloaded", "file", e.Name)
		apply(cfg)
	})
	viper.WatchConfig()
}
