package observer

import (
	"fmt"
	"time"
)

// LagPolicy decides what a session does when its cursor lags.
type LagPolicy string

const (
	// LagTerminate ends the session so the observer notices the gap.
	LagTerminate LagPolicy = "terminate"
	// LagResume logs the gap and continues from the oldest retained frame.
	LagResume LagPolicy = "resume"
)

// ParseLagPolicy validates s.
func ParseLagPolicy(s string) (LagPolicy, error) {
	switch p := LagPolicy(s); p {
	case LagTerminate, LagResume:
		return p, nil
	case "":
		return LagTerminate, nil
	default:
		return "", fmt.Errorf("unknown lag policy %q", s)
	}
}

// Config controls observer sessions and their transports.
type Config struct {
	LagPolicy string `yaml:"lag_policy" mapstructure:"lag_policy" validate:"omitempty,oneof=terminate resume"`
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions  int           `yaml:"max_sessions" mapstructure:"max_sessions" validate:"gte=0"`
	WSPath       string        `yaml:"ws_path" mapstructure:"ws_path"`
	SSEPath      string        `yaml:"sse_path" mapstructure:"sse_path"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration `yaml:"keepalive" mapstructure:"keepalive"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.LagPolicy == "" {
		c.LagPolicy = string(LagTerminate)
	}
	if c.WSPath == "" {
		c.WSPath = "/ws"
	}
	if c.SSEPath == "" {
		c.SSEPath = "/sse"
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 15 * time.Second
	}
}
