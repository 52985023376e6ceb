package louvain

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// GainStrategy selects how the modularity change of a candidate move is evaluated.
type GainStrategy string

const (
	// GainIncremental updates only the two community terms touched by a move.
	GainIncremental GainStrategy = "incremental"
	// GainRecompute recomputes modularity over the whole graph for every candidate.
	GainRecompute GainStrategy = "recompute"
)

// Config manages algorithm configuration using Viper
type Config struct {
	v      *viper.Viper
	output io.Writer
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.max_iterations", 500)
	v.SetDefault("algorithm.random_seed", int64(0))
	v.SetDefault("algorithm.gain_strategy", string(GainIncremental))

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)
	v.SetDefault("logging.progress_interval", 10)

	v.SetDefault("analysis.track_moves", false)
	v.SetDefault("analysis.output_file", "moves.jsonl")

	return &Config{v: v, output: os.Stderr}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Viper exposes the underlying instance so command-line flags can be bound to it.
func (c *Config) Viper() *viper.Viper { return c.v }

// Getters for algorithm parameters
func (c *Config) MaxIterations() int { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) RandomSeed() int64  { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) GainStrategy() GainStrategy {
	if GainStrategy(c.v.GetString("algorithm.gain_strategy")) == GainRecompute {
		return GainRecompute
	}
	return GainIncremental
}

func (c *Config) LogLevel() string      { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool  { return c.v.GetBool("logging.enable_progress") }
func (c *Config) ProgressInterval() int { return c.v.GetInt("logging.progress_interval") }

func (c *Config) EnableMoveTracking() bool   { return c.v.GetBool("analysis.track_moves") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// SetLogOutput redirects the logger built by CreateLogger.
func (c *Config) SetLogOutput(w io.Writer) {
	c.output = w
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        c.output,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Str("service", "louvain").Logger()
}
