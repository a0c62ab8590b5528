package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
)

type Config struct {
	App         AppConfig
	OpenWeather OpenWeatherConfig
	Locations   []entities.Location `mapstructure:"locations"`
	Quota       QuotaConfig
	Retry       RetryConfig
	Scheduler   SchedulerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Archive     ArchiveConfig
	HealthCheck HealthCheckConfig
	API         APIConfig
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type OpenWeatherConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Units   string `mapstructure:"units"`
}

type QuotaConfig struct {
	DailyLimit     int `mapstructure:"daily_limit"`
	PerMinuteLimit int `mapstructure:"per_minute_limit"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres or memory
	URL    string `mapstructure:"url"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Broker       string `mapstructure:"broker"`
	Topic        string `mapstructure:"topic"`
	RequiredAcks int16  `mapstructure:"required_acks"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type HealthCheckConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
	MonitorSpec   string        `mapstructure:"monitor_spec"` // cron expression
}

type APIConfig struct {
	Port       int           `mapstructure:"port"`
	BasePath   string        `mapstructure:"base_path"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/weather-ingest/")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if apiKey := os.Getenv("WEATHER_API_KEY"); apiKey != "" {
		v.Set("openweather.api_key", apiKey)
	}

	if baseURL := os.Getenv("OPENWEATHER_BASE_URL"); baseURL != "" {
		v.Set("openweather.base_url", baseURL)
	}

	if units := os.Getenv("OPENWEATHER_UNITS"); units != "" {
		v.Set("openweather.units", units)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		v.Set("redis.addr", addr)
	}

	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		v.Set("kafka.broker", broker)
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		v.Set("archive.endpoint", endpoint)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "weather-ingest")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "15s")

	v.SetDefault("openweather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("openweather.units", "metric")

	// The four monitored sites around Ithaca, NY.
	v.SetDefault("locations", []map[string]interface{}{
		{"id": "downtown", "name": "Downtown Ithaca", "lat": 42.4430, "lon": -76.5019},
		{"id": "cornell-campus", "name": "Cornell Campus", "lat": 42.4534, "lon": -76.4735},
		{"id": "ithaca-college", "name": "Ithaca College", "lat": 42.4206, "lon": -76.4951},
		{"id": "cayuga-lake", "name": "Cayuga Lake", "lat": 42.4301, "lon": -76.5370},
	})

	v.SetDefault("quota.daily_limit", 950)
	v.SetDefault("quota.per_minute_limit", 55)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")
	v.SetDefault("retry.max_delay", "60s")

	v.SetDefault("scheduler.interval", "30m")

	v.SetDefault("database.driver", "postgres")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.broker", "localhost:9092")
	v.SetDefault("kafka.topic", "weather-readings")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.max_retries", 3)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "weather-raw")
	v.SetDefault("archive.use_ssl", false)

	v.SetDefault("healthcheck.timeout", "5s")
	v.SetDefault("healthcheck.retry_interval", "2s")
	v.SetDefault("healthcheck.max_retries", 5)
	v.SetDefault("healthcheck.monitor_spec", "*/5 * * * *")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.base_path", "/api/v1")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.rate_window", "1s")
}

func validateConfig(cfg *Config) error {
	if cfg.OpenWeather.APIKey == "" {
		return fmt.Errorf("OpenWeather API key must not be empty")
	}

	if len(cfg.Locations) == 0 {
		return fmt.Errorf("locations list must not be empty")
	}

	for _, loc := range cfg.Locations {
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("location %q: %w", loc.ID, err)
		}
	}

	if cfg.Quota.DailyLimit <= 0 {
		return fmt.Errorf("daily quota limit must be positive")
	}

	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive")
	}

	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "memory" {
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		return fmt.Errorf("database URL must not be empty for the postgres driver")
	}

	return nil
}
