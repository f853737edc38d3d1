package config

import "time"

// Config is the root configuration for a presence client instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Platform   PlatformConfig   `yaml:"platform"`
	Connection ConnectionConfig `yaml:"connection"`
	Cache      CacheConfig      `yaml:"cache"`
	Database   DatabaseConfig   `yaml:"database"`
	Writer     WriterConfig     `yaml:"writer"`
	Poller     PollerConfig     `yaml:"poller"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID  string `yaml:"id"`
	Env string `yaml:"env"`
}

// PlatformConfig holds Atria platform endpoints and credentials.
type PlatformConfig struct {
	RestURL    string        `yaml:"rest_url"`
	GatewayURL string        `yaml:"gateway_url"`
	APIToken   string        `yaml:"api_token"` // 64-char token, usually ${ATRIA_API_TOKEN}
	RoomID     string        `yaml:"room_id"`   // 24-char room id
	Events     []string      `yaml:"events"`    // subscribed event tags; empty = all subscribable
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds gateway connection supervisor settings.
type ConnectionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// CacheConfig selects the occupancy cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend"` // memory, redis, or none
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis cache backend connection.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// DatabaseConfig holds the optional presence journal database.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds presence journal batching settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PollerConfig holds roster reconciliation settings.
type PollerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// HealthConfig holds the daemon health endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}
