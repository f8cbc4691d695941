// Package redis provides a wrapper around the go-redis client library
// for improved testing and abstraction.
package redis

import (
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/errtransform/internal/errors"
)

// Mode selects the deployment topology a client connects to
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeCluster  Mode = "cluster"
	ModeSentinel Mode = "sentinel"
)

// Options configures Redis client behavior
type Options struct {
	PoolSize        int
	MinIdleConns    int
	ConnMaxIdleTime time.Duration
	MaxRetries      int
	UseTLS          bool
	ReadOnly        bool // For cluster mode routing
}

// Config describes where the report store lives
type Config struct {
	Mode       Mode
	Addrs      []string
	MasterName string
	Options    *Options
}

// Validate checks that the addresses required by the mode are present
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if len(c.Addrs) == 0 {
		vb.RequiredField("addrs")
	}
	switch c.Mode {
	case "", ModeSingle, ModeCluster:
	case ModeSentinel:
		if c.MasterName == "" {
			vb.RequiredField("master_name")
		}
	default:
		vb.Fieldf("mode", "unsupported redis mode %q", c.Mode)
	}
	return vb.Build()
}

// Open creates a client for the configured mode
func Open(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("redis: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "redis: invalid config")
	}

	switch cfg.Mode {
	case ModeCluster:
		return NewClusterClient(cfg.Addrs, cfg.Options)
	case ModeSentinel:
		return NewFailoverClient(cfg.MasterName, cfg.Addrs, cfg.Options)
	default:
		return NewClient(cfg.Addrs[0], cfg.Options)
	}
}

// NewClient creates a Redis client for a single instance
func NewClient(endpoint string, opts *Options) (Client, error) {
	if endpoint == "" {
		return nil, errors.InvalidArgument("redis: endpoint is required")
	}

	if opts == nil {
		opts = &Options{}
	}

	redisOpts := &redis.Options{
		Addr:            endpoint,
		MinIdleConns:    opts.MinIdleConns,
		PoolSize:        opts.PoolSize,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		MaxRetries:      opts.MaxRetries,
	}

	if opts.UseTLS {
		redisOpts.TLSConfig = tlsConfig()
	}

	return redis.NewClient(redisOpts), nil
}

// NewClusterClient creates a Redis client for cluster mode
func NewClusterClient(endpoints []string, opts *Options) (Client, error) {
	if len(endpoints) == 0 {
		return nil, errors.InvalidArgument("redis: at least one endpoint is required")
	}

	if opts == nil {
		opts = &Options{}
	}

	clusterOpts := &redis.ClusterOptions{
		Addrs:           endpoints,
		MinIdleConns:    opts.MinIdleConns,
		PoolSize:        opts.PoolSize,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		MaxRetries:      opts.MaxRetries,
		ReadOnly:        opts.ReadOnly,
	}

	if opts.UseTLS {
		clusterOpts.TLSConfig = tlsConfig()
	}

	return redis.NewClusterClient(clusterOpts), nil
}

// NewFailoverClient creates a Redis client with Sentinel support
func NewFailoverClient(masterName string, sentinelAddrs []string, opts *Options) (Client, error) {
	if masterName == "" {
		return nil, errors.InvalidArgument("redis: master name is required")
	}
	if len(sentinelAddrs) == 0 {
		return nil, errors.InvalidArgument("redis: at least one sentinel address is required")
	}

	if opts == nil {
		opts = &Options{}
	}

	failoverOpts := &redis.FailoverOptions{
		MasterName:      masterName,
		SentinelAddrs:   sentinelAddrs,
		MinIdleConns:    opts.MinIdleConns,
		PoolSize:        opts.PoolSize,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		MaxRetries:      opts.MaxRetries,
	}

	if opts.UseTLS {
		failoverOpts.TLSConfig = tlsConfig()
	}

	return redis.NewFailoverClient(failoverOpts), nil
}

func tlsConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, // #nosec G402 // managed redis uses self-signed certs
	}
}
