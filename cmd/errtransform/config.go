package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/redis"
)

// Config is the CLI configuration, read from flags, ERRTRANSFORM_* env
// variables and an optional YAML file.
type Config struct {
	Rules  string       `mapstructure:"rules"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// LogConfig selects log verbosity and format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the serve command
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig configures the report store. Reports are only stored when
// at least one address is set.
type RedisConfig struct {
	Mode       string        `mapstructure:"mode"`
	Addrs      []string      `mapstructure:"addrs"`
	MasterName string        `mapstructure:"master_name"`
	UseTLS     bool          `mapstructure:"use_tls"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxPerKind int           `mapstructure:"max_per_kind"`
}

// Enabled reports whether a report store is configured
func (c RedisConfig) Enabled() bool {
	return len(c.Addrs) > 0
}

// ClientConfig converts the settings for the redis package
func (c RedisConfig) ClientConfig() *redis.Config {
	return &redis.Config{
		Mode:       redis.Mode(c.Mode),
		Addrs:      c.Addrs,
		MasterName: c.MasterName,
		Options:    &redis.Options{UseTLS: c.UseTLS},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 50051)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("redis.mode", string(redis.ModeSingle))
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("redis.max_per_kind", 500)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a fixed set of options
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateEnum("log.level", c.Log.Level, []string{"debug", "info", "warn", "error"}, vb)
	errors.ValidateEnum("log.format", c.Log.Format, []string{"text", "json"}, vb)
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		vb.Fieldf("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		vb.Fieldf("server.metrics_port", "must be between 0 and 65535, got %d", c.Server.MetricsPort)
	}
	if c.Redis.Enabled() {
		if err := c.Redis.ClientConfig().Validate(); err != nil {
			vb.Field("redis", errors.GetMessage(err))
		}
	}
	return vb.Build()
}
