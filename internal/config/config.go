package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Store    StoreConfig    `yaml:"store"`
	Presence PresenceConfig `yaml:"presence"`
	Room     RoomConfig     `yaml:"room"`
	Game     GameConfig     `yaml:"game"`
	Session  SessionConfig  `yaml:"session"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// StoreConfig holds the retry policy for shared store operations
type StoreConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// PresenceConfig holds heartbeat and liveness configuration
type PresenceConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LivenessTTL       time.Duration `yaml:"liveness_ttl"`
}

// RoomConfig holds room lifecycle configuration
type RoomConfig struct {
	MaxPlayers   int           `yaml:"max_players"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// GameConfig holds round and question configuration
type GameConfig struct {
	Rounds            int   `yaml:"rounds"`
	QuestionsPerRound []int `yaml:"questions_per_round"`
}

// SessionConfig holds per-session polling configuration
type SessionConfig struct {
	AnswerPollInterval   time.Duration `yaml:"answer_poll_interval"`
	LivenessPollInterval time.Duration `yaml:"liveness_poll_interval"`
	AutoAdvanceDelay     time.Duration `yaml:"auto_advance_delay"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "dilemma"
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "dilemma-results"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "dilemma-stats"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Store retry defaults: 3 attempts, delay doubling from 1s
	if c.Store.RetryAttempts == 0 {
		c.Store.RetryAttempts = 3
	}
	if c.Store.RetryDelay == 0 {
		c.Store.RetryDelay = 1 * time.Second
	}

	// Presence defaults: heartbeat interval stays well under the liveness TTL
	// so one missed beat does not mark the player offline
	if c.Presence.HeartbeatInterval == 0 {
		c.Presence.HeartbeatInterval = 10 * time.Second
	}
	if c.Presence.LivenessTTL == 0 {
		c.Presence.LivenessTTL = 30 * time.Second
	}

	// Room defaults
	if c.Room.MaxPlayers == 0 {
		c.Room.MaxPlayers = 2
	}
	if c.Room.IdleTimeout == 0 {
		c.Room.IdleTimeout = 180 * time.Second
	}
	if c.Room.ReapInterval == 0 {
		c.Room.ReapInterval = 60 * time.Second
	}

	// Game defaults
	if c.Game.Rounds == 0 {
		c.Game.Rounds = 3
	}
	if len(c.Game.QuestionsPerRound) == 0 {
		c.Game.QuestionsPerRound = []int{10, 10, 13}
	}

	// Session defaults
	if c.Session.AnswerPollInterval == 0 {
		c.Session.AnswerPollInterval = 2 * time.Second
	}
	if c.Session.LivenessPollInterval == 0 {
		c.Session.LivenessPollInterval = 5 * time.Second
	}
	if c.Session.AutoAdvanceDelay == 0 {
		c.Session.AutoAdvanceDelay = 2 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
