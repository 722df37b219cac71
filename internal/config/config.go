package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hotelbooking/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Storage    StorageConfig    `yaml:"storage"`
	Events     EventsConfig     `yaml:"events"`
	Booking    BookingConfig    `yaml:"booking"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// IdleTTL drops the bucket of a client that sent nothing for this long.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// GRPCConfig serves the standard grpc.health.v1 service next to the REST API.
type GRPCConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Port          int           `yaml:"port"`
	Reflection    bool          `yaml:"reflection"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

type StorageConfig struct {
	Driver  string        `yaml:"driver"`
	Timeout time.Duration `yaml:"timeout"`
	Mongo   MongoConfig   `yaml:"mongo"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
	Redis   RedisConfig   `yaml:"redis"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	Database     string `yaml:"database"`
	Transactions bool   `yaml:"transactions"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

type EventsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Index     string        `yaml:"index"`
	QueueSize int           `yaml:"queue_size"`
	Retry     RetryConfig   `yaml:"retry"`
	Elastic   ElasticConfig `yaml:"elastic"`
	// RedisQueue buffers undelivered events in redis when storage.redis.address is set.
	RedisQueue bool `yaml:"redis_queue"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type ElasticConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

type BookingConfig struct {
	RequireReservationForPayment bool `yaml:"require_reservation_for_payment"`
	// DisableSeed skips the destructive catalog reset at startup.
	DisableSeed bool          `yaml:"disable_seed"`
	SeedRooms   []models.Room `yaml:"seed_rooms"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, the process environment wins otherwise
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMongo:
		if strings.TrimSpace(c.Storage.Mongo.URI) == "" {
			return errors.New("storage.mongo.uri is required")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLite.Path) == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.Redis.Address) == "" {
			return errors.New("storage.redis.address is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.GRPC.Enabled && c.GRPC.Port == c.HTTP.Port {
		return fmt.Errorf("grpc.port %d collides with http.port", c.GRPC.Port)
	}

	if c.Events.Enabled && len(c.Events.Elastic.Addresses) == 0 {
		return errors.New("events.elastic.addresses is required when events are enabled")
	}
	if c.Events.RedisQueue && strings.TrimSpace(c.Storage.Redis.Address) == "" {
		return errors.New("events.redis_queue requires storage.redis.address")
	}

	return ValidateSeedRooms(c.Booking.SeedRooms)
}

func ValidateSeedRooms(rooms []models.Room) error {
	for i, room := range rooms {
		if room.Capacity <= 0 {
			return fmt.Errorf("seed room #%d (%d) has invalid capacity %d", i, room.Number, room.Capacity)
		}
		if room.Price < 0 {
			return fmt.Errorf("seed room #%d (%d) has negative price", i, room.Number)
		}
		if room.Status != "" && !room.Status.Valid() {
			return fmt.Errorf("seed room #%d (%d) has unknown status %q", i, room.Number, room.Status)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hotel-booking"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = models.DefaultHTTPPort
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 7 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}

	if c.GRPC.Port == 0 {
		c.GRPC.Port = models.DefaultGRPCPort
	}
	if c.GRPC.CheckInterval == 0 {
		c.GRPC.CheckInterval = 5 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMongo
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Timeout == 0 {
		c.Storage.Timeout = models.DefaultStoreTimeout * time.Second
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "hotel"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "hotel"
	}

	addresses := c.Events.Elastic.Addresses[:0]
	for _, addr := range c.Events.Elastic.Addresses {
		if strings.TrimSpace(addr) != "" {
			addresses = append(addresses, strings.TrimSpace(addr))
		}
	}
	c.Events.Elastic.Addresses = addresses

	if c.Events.Index == "" {
		c.Events.Index = models.EventIndex
	}
	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = models.EventQueueSize
	}

	if c.Booking.SeedRooms == nil {
		c.Booking.SeedRooms = models.DefaultRooms()
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// StoreTimeout returns the per-call deadline for store operations.
func (c *Config) StoreTimeout() time.Duration {
	if c.Storage.Timeout <= 0 {
		return models.DefaultStoreTimeout * time.Second
	}
	return c.Storage.Timeout
}
