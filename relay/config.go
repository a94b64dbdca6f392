package relay

import (
	"fmt"

	"github.com/kbukum/pitwall/config"
	grpcx "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/ingest"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/observer"
	"github.com/kbukum/pitwall/redis"
	"github.com/kbukum/pitwall/server"
	"github.com/kbukum/pitwall/validation"
)

// ServiceName is the default service name and config/env prefix.
const ServiceName = "pitwall"

// BroadcastConfig sizes the broadcast ring.
type BroadcastConfig struct {
	// Capacity is how many recent frames the ring retains.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"gte=0"`
}

// Config is the full relay configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Broadcast     BroadcastConfig      `yaml:"broadcast" mapstructure:"broadcast"`
	Ingest        ingest.Config        `yaml:"ingest" mapstructure:"ingest"`
	Observer      observer.Config      `yaml:"observer" mapstructure:"observer"`
	GRPC          grpcx.Config         `yaml:"grpc" mapstructure:"grpc"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Mirror        redis.Config         `yaml:"mirror" mapstructure:"mirror"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Broadcast.Capacity == 0 {
		c.Broadcast.Capacity = 100
	}
	c.Ingest.ApplyDefaults()
	c.Observer.ApplyDefaults()
	c.GRPC.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Mirror.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks struct tags and every section's own rules.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if _, err := observer.ParseLagPolicy(c.Observer.LagPolicy); err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	if err := c.GRPC.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Mirror.Validate(); err != nil {
		return err
	}
	return nil
}
