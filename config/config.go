package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. APPT_DATABASE_DSN.
const EnvPrefix = "APPT"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Address string `yaml:"address" split_words:"true"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" split_words:"true"`
	DSN      string `yaml:"dsn" split_words:"true"`
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
	// AutoMigrate applies pending migrations on process start.
	AutoMigrate bool `yaml:"auto_migrate" split_words:"true"`
}

// DriverName defaults to postgres.
func (d DatabaseConfig) DriverName() string {
	if d.Driver == "" {
		return "postgres"
	}
	return d.Driver
}

func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, sslMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
	// CacheTTLSeconds bounds how long a workspace's service list is cached.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" split_words:"true"`
}

func (r RedisConfig) CacheTTL() time.Duration {
	if r.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
	PublishRetries     int      `yaml:"publish_retries" split_words:"true"`
}

type BookingConfig struct {
	SlotHoldSeconds int    `yaml:"slot_hold_seconds" split_words:"true"`
	TokenSecret     string `yaml:"token_secret" split_words:"true"`
	TokenTTLHours   int    `yaml:"token_ttl_hours" split_words:"true"`
	DefaultTimezone string `yaml:"default_timezone" split_words:"true"`
}

func (b BookingConfig) SlotHold() time.Duration {
	return time.Duration(b.SlotHoldSeconds) * time.Second
}

func (b BookingConfig) TokenTTL() time.Duration {
	if b.TokenTTLHours <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(b.TokenTTLHours) * time.Hour
}

type WorkerConfig struct {
	SweepIntervalMinutes   int `yaml:"sweep_interval_minutes" split_words:"true"`
	ReminderLeadHours      int `yaml:"reminder_lead_hours" split_words:"true"`
	FollowUpDelayMinutes   int `yaml:"follow_up_delay_minutes" split_words:"true"`
	LowStockRealertHours   int `yaml:"low_stock_realert_hours" split_words:"true"`
	NotificationMaxAttempt int `yaml:"notification_max_attempts" split_words:"true"`
	// MetricsAddress is where the worker serves /metrics.
	MetricsAddress string `yaml:"metrics_address" split_words:"true"`
}

func (w WorkerConfig) MetricsAddr() string {
	if w.MetricsAddress == "" {
		return ":9091"
	}
	return w.MetricsAddress
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return minutesOr(w.SweepIntervalMinutes, 5*time.Minute)
}

func (w WorkerConfig) ReminderLead() time.Duration {
	if w.ReminderLeadHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(w.ReminderLeadHours) * time.Hour
}

func (w WorkerConfig) FollowUpDelay() time.Duration {
	return minutesOr(w.FollowUpDelayMinutes, time.Hour)
}

func (w WorkerConfig) LowStockRealert() time.Duration {
	if w.LowStockRealertHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(w.LowStockRealertHours) * time.Hour
}

type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" split_words:"true"`
	ServiceName string `yaml:"service_name" split_words:"true"`
	Insecure    bool   `yaml:"insecure" split_words:"true"`
}

func minutesOr(minutes int, fallback time.Duration) time.Duration {
	if minutes <= 0 {
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}

// LoadConfig reads the YAML file at path and then applies APPT_* environment overrides.
// A missing file is not an error when the environment provides the configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	return &cfg, nil
}
