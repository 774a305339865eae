package generatedocument

import (
	"time"

	"fra-engine/internal/common/config"
)

type Config struct {
	Namespace    string
	Timeout      time.Duration
	EmailSubject string
}

// LoadConfig reads the worker settings from the application config.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Namespace:    "fra",
		Timeout:      60 * time.Second,
		EmailSubject: "Fire risk assessment ready",
	}
	if cfg == nil {
		return c
	}
	if cfg.Storage.Namespace != "" {
		c.Namespace = cfg.Storage.Namespace
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
