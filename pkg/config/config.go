package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Jobs    JobConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type JobConfig struct {
	MaxWorkers      int
	CleanupInterval time.Duration
	ResultTTL       time.Duration
}

type LoggingConfig struct {
	Level          string
	AlgorithmLevel string
}

// Load reads the server configuration from the environment, e.g.
// SERVER_ADDRESS or JOB_MAX_WORKERS.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_BODY_BYTES", int64(100*1024*1024)) // 100MB
	v.SetDefault("JOB_MAX_WORKERS", 4)
	v.SetDefault("JOB_CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("JOB_RESULT_TTL", 1*time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALGORITHM_LOG_LEVEL", "warn")

	cfg := &Config{
		Server: ServerConfig{
			Address:        v.GetString("SERVER_ADDRESS"),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			MaxBodyBytes:   v.GetInt64("MAX_BODY_BYTES"),
		},
		Jobs: JobConfig{
			MaxWorkers:      v.GetInt("JOB_MAX_WORKERS"),
			CleanupInterval: v.GetDuration("JOB_CLEANUP_INTERVAL"),
			ResultTTL:       v.GetDuration("JOB_RESULT_TTL"),
		},
		Logging: LoggingConfig{
			Level:          v.GetString("LOG_LEVEL"),
			AlgorithmLevel: v.GetString("ALGORITHM_LOG_LEVEL"),
		},
	}

	if cfg.Jobs.MaxWorkers <= 0 {
		return nil, fmt.Errorf("JOB_MAX_WORKERS must be positive, got %d", cfg.Jobs.MaxWorkers)
	}

	return cfg, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
