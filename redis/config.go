package redis

import (
	"fmt"
	"time"
)

// DefaultChannel is the pub/sub channel frames are published to.
const DefaultChannel = "pitwall:frames"

// Config holds the frame mirror configuration.
type Config struct {
	// Enabled controls whether the mirror runs. Disabled by default.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr" mapstructure:"addr"`

	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`

	// Channel receives one message per frame.
	Channel string `yaml:"channel" mapstructure:"channel"`

	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`

	// MaxRetries is the go-redis retry count per command.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// DialTimeout is the timeout for establishing new connections (e.g. "5s").
	DialTimeout string `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (e.g. "3s").
	ReadTimeout string `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (e.g. "3s").
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout"`

	// BreakerFailures consecutive publish failures open the breaker.
	BreakerFailures int `yaml:"breaker_failures" mapstructure:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open (e.g. "10s").
	BreakerTimeout string `yaml:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout == "" {
		c.BreakerTimeout = "10s"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // skip validation when disabled
	}
	if c.Addr == "" {
		return fmt.Errorf("mirror.addr is required")
	}
	if c.Channel == "" {
		return fmt.Errorf("mirror.channel is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("mirror.pool_size must be > 0")
	}
	for name, v := range map[string]string{
		"dial_timeout":    c.DialTimeout,
		"read_timeout":    c.ReadTimeout,
		"write_timeout":   c.WriteTimeout,
		"breaker_timeout": c.BreakerTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid mirror.%s %q: %w", name, v, err)
		}
	}
	return nil
}

func (c *Config) breakerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.BreakerTimeout)
	return d
}
