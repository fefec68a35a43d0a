package config

import (
	"os"
	"time"

	"github.com/smilemakc/flowexpr/internal/utils"
)

// Config is the environment-driven configuration for the embeddable
// flow-expression core. There is no HTTP surface in this core, so unlike
// the teacher's Config there is no Port; StorageDSN is only consulted
// when the bunstore backend is wired in.
type Config struct {
	LogLevel                 string
	StorageDSN               string
	DefaultTimeoutResolution time.Duration
}

// Load reads Config from the LOG_LEVEL, STORAGE_DSN and
// DEFAULT_TIMEOUT_RESOLUTION environment variables.
func Load() *Config {
	return &Config{
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		StorageDSN:               getEnv("STORAGE_DSN", ""),
		DefaultTimeoutResolution: getDuration("DEFAULT_TIMEOUT_RESOLUTION", time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, _ := time.ParseDuration(value)
	return utils.DefaultValue(d, fallback)
}
