package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	FleetTrack FleetTrackConfig `yaml:"fleettrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	Username string `yaml:"username" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host" env:"KAFKA_HOST"`
	Port                   int    `yaml:"port" env:"KAFKA_PORT"`
	JourneyEventsTopic     string `yaml:"journey_events_topic" env:"KAFKA_JOURNEY_EVENTS_TOPIC"`
	MaintenanceAlertsTopic string `yaml:"maintenance_alerts_topic" env:"KAFKA_MAINTENANCE_ALERTS_TOPIC"`
}

type RedisConfig struct {
	Host string `yaml:"host" env:"REDIS_HOST"`
	Port int    `yaml:"port" env:"REDIS_PORT"`
}

type StorageConfig struct {
	// "postgres" | "memory"
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
}

type FleetTrackConfig struct {
	HTTPAddr    string   `yaml:"http_addr" env:"HTTP_ADDR"`
	LogLevel    string   `yaml:"log_level" env:"LOG_LEVEL"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	JWTSecret       string `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes" env:"TOKEN_TTL_MINUTES"`

	JourneyCacheTTLSeconds int `yaml:"journey_cache_ttl_seconds" env:"JOURNEY_CACHE_TTL_SECONDS"`
	RateLimitPerMinute     int `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`

	// Admin account created on startup when no user with this email exists.
	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email" env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password" env:"BOOTSTRAP_ADMIN_PASSWORD"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr" env:"WORKER_HTTP_ADDR"`
	WorkerScanIntervalSeconds int    `yaml:"worker_scan_interval_seconds" env:"WORKER_SCAN_INTERVAL_SECONDS"`
	WorkerConsumerGroup       string `yaml:"worker_consumer_group" env:"WORKER_CONSUMER_GROUP"`
	UpcomingWindowDays        int    `yaml:"upcoming_window_days" env:"UPCOMING_WINDOW_DAYS"`
	UpcomingWindowKm          int    `yaml:"upcoming_window_km" env:"UPCOMING_WINDOW_KM"`
}

// LoadConfig читает YAML, затем переменные окружения перекрывают значения из файла.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	return &config, nil
}

func (c DatabaseConfig) ConnString() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, ssl)
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
