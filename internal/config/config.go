package config

import (
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Geoapify      GeoapifyConfig      `mapstructure:"geoapify"`
	Autosave      AutosaveConfig      `mapstructure:"autosave"`
	Dashboard     DashboardConfig     `mapstructure:"dashboard"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Events        EventsConfig        `mapstructure:"events"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	// Backend selects the application store: "postgres" or "memory".
	Backend string `mapstructure:"backend"`
}

// IsDevelopment reports whether human-readable logs should be used.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "" || a.Environment == "development"
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ApplySchema     bool          `mapstructure:"apply_schema"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	AdminAllowlist []string      `mapstructure:"admin_allowlist"`
	// BootstrapEmail and BootstrapPassword, when both set, create or reset one admin at startup.
	BootstrapEmail    string `mapstructure:"bootstrap_email"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

type AWSConfig struct {
	Region      string `mapstructure:"region"`
	SESFrom     string `mapstructure:"ses_from"`
	SNSEnabled  bool   `mapstructure:"sns_enabled"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	EndpointURL string `mapstructure:"endpoint_url"`
}

type NotificationsConfig struct {
	// Driver is one of "ses", "kafka" or "log".
	Driver      string        `mapstructure:"driver"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type GeoapifyConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AutosaveConfig struct {
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	// Store is "redis" or "memory".
	Store string `mapstructure:"store"`
}

type DashboardConfig struct {
	ApplicationFee      float64       `mapstructure:"application_fee"`
	PaymentMethods      []string      `mapstructure:"payment_methods"`
	PaymentInstructions string        `mapstructure:"payment_instructions"`
	DocumentURLTTL      time.Duration `mapstructure:"document_url_ttl"`
}

type StorageConfig struct {
	// Driver is "s3" or "memory".
	Driver         string `mapstructure:"driver"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type EventsConfig struct {
	// Driver is "memory" or "redis".
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}
