package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional .env file, an optional
// config.yaml (./configs or the working directory) and the environment.
// Environment keys use upper-case with underscores, e.g. DATABASE_POSTGRES_HOST.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalizeLists(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.backend", "postgres")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "rental_app")
	v.SetDefault("database.postgres.user", "rental_app")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_connections", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.postgres.apply_schema", true)

	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_allowlist", []string{"admin@choiceproperties.com", "manager@choiceproperties.com"})
	v.SetDefault("auth.bootstrap_email", "")
	v.SetDefault("auth.bootstrap_password", "")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.ses_from", "noreply@choiceproperties.com")
	v.SetDefault("aws.sns_enabled", false)
	v.SetDefault("aws.s3_bucket", "")
	v.SetDefault("aws.endpoint_url", "")

	v.SetDefault("notifications.driver", "log")
	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.queue_size", 100)
	v.SetDefault("notifications.max_attempts", 3)
	v.SetDefault("notifications.retry_delay", 500*time.Millisecond)
	v.SetDefault("notifications.send_timeout", 10*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "rental-app.notifications")

	v.SetDefault("geoapify.api_key", "")
	v.SetDefault("geoapify.base_url", "https://api.geoapify.com/v1/geocode/autocomplete")
	v.SetDefault("geoapify.cache_ttl", 24*time.Hour)
	v.SetDefault("geoapify.timeout", 5*time.Second)

	v.SetDefault("autosave.quiet_period", time.Second)
	v.SetDefault("autosave.snapshot_ttl", 30*24*time.Hour)
	v.SetDefault("autosave.store", "redis")

	v.SetDefault("dashboard.application_fee", 50.0)
	v.SetDefault("dashboard.payment_methods", []string{"Zelle", "Venmo", "Cash App", "Money order"})
	v.SetDefault("dashboard.payment_instructions", "Include your application ID in the payment memo. Review begins once payment is confirmed.")
	v.SetDefault("dashboard.document_url_ttl", time.Hour)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.max_upload_bytes", 10<<20)

	v.SetDefault("events.driver", "memory")
	v.SetDefault("events.channel", "rental-app:application-events")
}

// normalizeLists splits comma-separated env values that viper leaves as a single element.
func normalizeLists(cfg *Config) {
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Auth.AdminAllowlist = splitList(cfg.Auth.AdminAllowlist)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Dashboard.PaymentMethods = splitList(cfg.Dashboard.PaymentMethods)
	for i, email := range cfg.Auth.AdminAllowlist {
		cfg.Auth.AdminAllowlist[i] = strings.ToLower(email)
	}
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret == "" {
		if !cfg.App.IsDevelopment() {
			return errors.New("auth.jwt_secret is required outside development")
		}
		cfg.Auth.JWTSecret = "development-only-secret"
	}
	if len(cfg.Auth.AdminAllowlist) == 0 {
		return errors.New("auth.admin_allowlist must name at least one email")
	}

	switch cfg.App.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("app.backend must be postgres or memory, got %q", cfg.App.Backend)
	}
	switch cfg.Autosave.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("autosave.store must be redis or memory, got %q", cfg.Autosave.Store)
	}
	switch cfg.Notifications.Driver {
	case "ses", "kafka", "log":
	default:
		return fmt.Errorf("notifications.driver must be ses, kafka or log, got %q", cfg.Notifications.Driver)
	}
	if cfg.Notifications.Driver == "kafka" && (len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required for the kafka notification driver")
	}
	switch cfg.Storage.Driver {
	case "s3":
		if cfg.AWS.S3Bucket == "" {
			return errors.New("aws.s3_bucket is required for the s3 storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be s3 or memory, got %q", cfg.Storage.Driver)
	}
	switch cfg.Events.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("events.driver must be memory or redis, got %q", cfg.Events.Driver)
	}
	if cfg.Notifications.Workers <= 0 {
		cfg.Notifications.Workers = 1
	}
	if cfg.Notifications.MaxAttempts <= 0 {
		cfg.Notifications.MaxAttempts = 1
	}
	return nil
}
