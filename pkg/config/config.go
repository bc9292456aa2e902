// Package config holds the broker's tunable options: the scalar settings
// that can be loaded from YAML or built programmatically with functional
// options, mirroring the teacher's Config struct + NewManager(cfg) pattern
// (pkg/manager/manager.go). It never holds the pluggable interfaces
// (Transport, Cacher, Validator, Strategy) — those are constructed and
// passed to pkg/broker.New directly, since they aren't serializable.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/relaybroker/pkg/breaker"
)

// Config is the full set of tunables for one broker node.
type Config struct {
	NodeID string `yaml:"nodeId"`

	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeatTimeout"`

	RequestTimeout time.Duration `yaml:"requestTimeout"`
	RequestRetry   int           `yaml:"requestRetry"`
	PreferLocal    bool          `yaml:"preferLocal"`

	Breaker breaker.Config `yaml:"breaker"`

	// CacheDefaultTTL/CacheCleanupInterval tune the default memcache
	// Cacher, when the caller doesn't supply its own.
	CacheDefaultTTL      time.Duration `yaml:"cacheDefaultTTL"`
	CacheCleanupInterval time.Duration `yaml:"cacheCleanupInterval"`
}

// Default returns the baseline configuration most deployments start from.
func Default(nodeID string) Config {
	return Config{
		NodeID:               nodeID,
		HeartbeatInterval:    5 * time.Second,
		HeartbeatTimeout:     15 * time.Second,
		RequestTimeout:       10 * time.Second,
		RequestRetry:         1,
		PreferLocal:          true,
		Breaker:              breaker.DefaultConfig(),
		CacheDefaultTTL:      time.Minute,
		CacheCleanupInterval: 2 * time.Minute,
	}
}

// Option mutates a Config built from Default.
type Option func(*Config)

// New builds a Config for nodeID, applying opts over the defaults.
func New(nodeID string, opts ...Option) Config {
	cfg := Default(nodeID)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = interval
		c.HeartbeatTimeout = timeout
	}
}

func WithRequestRetry(timeout time.Duration, retries int) Option {
	return func(c *Config) {
		c.RequestTimeout = timeout
		c.RequestRetry = retries
	}
}

func WithBreaker(cfg breaker.Config) Option {
	return func(c *Config) { c.Breaker = cfg }
}

func WithPreferLocal(prefer bool) Option {
	return func(c *Config) { c.PreferLocal = prefer }
}

// Load reads a YAML file into a Config, grounded on the teacher's
// cmd/warren/apply.go YAML manifest loading.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.NodeID == "" {
		return Config{}, fmt.Errorf("config %q: nodeId is required", path)
	}
	return cfg, nil
}
