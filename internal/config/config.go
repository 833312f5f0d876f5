// Package config loads and validates pricefetch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // shops' timezones must resolve on minimal images

	"github.com/spf13/viper"

	"github.com/JakeFAU/pricefetch/internal/logging"
	"github.com/JakeFAU/pricefetch/internal/policy/ratelimit"
	"github.com/JakeFAU/pricefetch/internal/sources/catalog"
	"github.com/JakeFAU/pricefetch/internal/storage/local"
)

// Orchestration modes.
const (
	ModeStream = "stream"
	ModePool   = "pool"
)

// Output formats.
const (
	OutputJSONL    = "jsonl"
	OutputPostgres = "postgres"
)

// Session state backends.
const (
	StateLocal  = "local"
	StateMemory = "memory"
)

// Config captures all knobs loaded via Viper.
type Config struct {
	Logging      logging.Config     `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	State        StateConfig        `mapstructure:"state"`
	Output       OutputConfig       `mapstructure:"output"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Progress     ProgressConfig     `mapstructure:"progress"`
	// Timezone resolves relative delivery dates such as "amanhã".
	Timezone string           `mapstructure:"timezone"`
	Sources  []catalog.Config `mapstructure:"sources"`
}

// OrchestratorConfig selects how sources are driven.
type OrchestratorConfig struct {
	Mode     string `mapstructure:"mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// HTTPConfig is shared by every shop session.
type HTTPConfig struct {
	UserAgent      string           `mapstructure:"user_agent"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds"`
	MaxRetries     int              `mapstructure:"max_retries"`
	RateLimit      ratelimit.Config `mapstructure:"rate_limit"`
}

// StateConfig says where shop sessions are persisted between runs.
type StateConfig struct {
	Backend string       `mapstructure:"backend"`
	Local   local.Config `mapstructure:"local"`
}

// OutputConfig selects the record sink.
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
}

// MetricsConfig enables the operator HTTP server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize      int `mapstructure:"buffer_size"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("orchestrator.mode", ModeStream)
	v.SetDefault("orchestrator.pool_size", 0)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.rate_limit.rps", 0)
	v.SetDefault("http.rate_limit.burst", 1)
	v.SetDefault("state.backend", StateLocal)
	v.SetDefault("state.local.base_dir", ".pricefetch")
	v.SetDefault("output.format", OutputJSONL)
	v.SetDefault("output.table", "records")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.flush_interval_ms", 500)
	v.SetDefault("timezone", "UTC")
}

// Validate enforces required values and reasonable limits. Source configs
// are validated in place so their defaults are filled.
func (c *Config) Validate() error {
	if c.Orchestrator.Mode != ModeStream && c.Orchestrator.Mode != ModePool {
		return fmt.Errorf("orchestrator.mode must be %q or %q", ModeStream, ModePool)
	}
	if c.Orchestrator.PoolSize < 0 {
		return fmt.Errorf("orchestrator.pool_size must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RateLimit.RPS < 0 || c.HTTP.RateLimit.Burst < 0 {
		return fmt.Errorf("http.rate_limit values must be >= 0")
	}
	switch c.State.Backend {
	case StateMemory:
	case StateLocal:
		if strings.TrimSpace(c.State.Local.BaseDir) == "" {
			return fmt.Errorf("state.local.base_dir is required for the local backend")
		}
	default:
		return fmt.Errorf("state.backend must be %q or %q", StateLocal, StateMemory)
	}
	switch c.Output.Format {
	case OutputJSONL:
	case OutputPostgres:
		if c.Output.PostgresDSN == "" {
			return fmt.Errorf("output.postgres_dsn is required for postgres output")
		}
	default:
		return fmt.Errorf("output.format must be %q or %q", OutputJSONL, OutputPostgres)
	}
	if c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	for i := range c.Sources {
		if err := c.Sources[i].Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

// HTTPTimeout converts the configured timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// FlushInterval converts the configured progress flush interval.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Progress.FlushIntervalMs) * time.Millisecond
}

// Location returns the configured timezone; Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
