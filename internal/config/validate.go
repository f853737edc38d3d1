package config

import (
	"errors"
	"fmt"

	"github.com/atria-live/presence/internal/model"
)

// Validate checks that all required fields are set and values are valid.
// Credential shape (token and room id lengths) is enforced by the
// connection supervisor at connect time, not here.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Platform.APIToken == "" {
		return errors.New("platform.api_token is required")
	}
	if c.Platform.RoomID == "" {
		return errors.New("platform.room_id is required")
	}
	for _, name := range c.Platform.Events {
		evt := model.EventType(name)
		if !evt.Known() || evt == model.EventSessionMetadata {
			return fmt.Errorf("platform.events: %q is not a subscribable event type", name)
		}
	}

	if c.Connection.HeartbeatInterval <= 0 {
		return errors.New("connection.heartbeat_interval must be positive")
	}
	if c.Connection.ReconnectDelay <= 0 {
		return errors.New("connection.reconnect_delay must be positive")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory, redis, or none, got %q", c.Cache.Backend)
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Writer.BatchSize < 1 {
			return errors.New("writer.batch_size must be >= 1")
		}
	}

	if c.Poller.Enabled && c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 0 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
