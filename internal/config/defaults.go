package config

import (
	"time"

	"github.com/atria-live/presence/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.atria.live/v1"
	DefaultGatewayURL        = "wss://gateway.atria.live/v1/stream"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBufferSize        = 1024
	DefaultCacheBackend      = "memory"
	DefaultRedisKeyPrefix    = "presence:"
	DefaultRedisOpTimeout    = 3 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultPollInterval      = 5 * time.Minute
	DefaultHealthPort        = 8090
)

func (c *Config) applyDefaults() {
	// Platform defaults
	if c.Platform.RestURL == "" {
		c.Platform.RestURL = DefaultRestURL
	}
	if c.Platform.GatewayURL == "" {
		c.Platform.GatewayURL = DefaultGatewayURL
	}
	if c.Platform.Timeout == 0 {
		c.Platform.Timeout = DefaultAPITimeout
	}
	if c.Platform.MaxRetries == 0 {
		c.Platform.MaxRetries = DefaultMaxRetries
	}
	if len(c.Platform.Events) == 0 {
		for _, evt := range model.SubscribableEvents() {
			c.Platform.Events = append(c.Platform.Events, string(evt))
		}
	}

	// Connection defaults
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Cache.Redis.OpTimeout == 0 {
		c.Cache.Redis.OpTimeout = DefaultRedisOpTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
