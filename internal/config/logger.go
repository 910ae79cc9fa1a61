package config

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BullionBear/marketfeed/pkg/logger"
)

// LoggerConfig configures the ambient zerolog logger (see pkg/logger).
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
	// Development selects the human-friendly console writer; false selects
	// newline-delimited JSON.
	Development bool `json:"development"`
}

var (
	loggerOnce sync.Once
	loggerCfg  LoggerConfig
	loggerMu   sync.RWMutex
)

// InitializeLogger initializes the ambient logger exactly once per process.
// Subsequent calls are no-ops; use this from the top of main() or from the
// first Facade constructed in a test.
func InitializeLogger(cfg LoggerConfig) error {
	if err := validateLevel(cfg.Level); err != nil {
		return err
	}
	level, err := parseLogLevel(cfg.Level, cfg.Development)
	if err != nil {
		return err
	}
	loggerOnce.Do(func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		loggerCfg = cfg
		logger.InitLogger(cfg.Development, level)
	})
	return nil
}

// GetLoggerConfig returns the configuration applied by the first successful
// InitializeLogger call; later calls do not replace it.
func GetLoggerConfig() LoggerConfig {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return loggerCfg
}

func validateLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error", "":
		return nil
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
}

// parseLogLevel resolves the configured level string to a zerolog.Level.
// An empty Level falls back to the verbosity Development previously implied
// on its own (debug in development, info otherwise), preserving prior
// behavior for configs that don't set Level explicitly.
func parseLogLevel(level string, development bool) (zerolog.Level, error) {
	if level == "" {
		if development {
			return zerolog.DebugLevel, nil
		}
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
	return parsed, nil
}
