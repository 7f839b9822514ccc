package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Settlement SettlementConfig `validate:"required"`
	Stripe     StripeConfig
	Sweeper    SweeperConfig `validate:"required"`
	Events     EventsConfig  `validate:"required"`
	Kafka      KafkaConfig
	Cache      CacheConfig
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Environment string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// BillingConfig holds the knobs of the invoice and revenue math
type BillingConfig struct {
	Currency string `validate:"required"`
	// CommissionRate is the platform share of provider income, a ratio in [0,1]
	CommissionRate     decimal.Decimal `mapstructure:"commission_rate"`
	InvoiceGracePeriod time.Duration   `mapstructure:"invoice_grace_period" validate:"required"`
	// PromotionReleaseRestoresCapacity makes ReleaseUsage decrement use_count.
	// When false use_count is monotonic and only usage rows are deleted.
	PromotionReleaseRestoresCapacity bool `mapstructure:"promotion_release_restores_capacity"`
}

// SettlementConfig bounds the retry of a settlement unit of work
type SettlementConfig struct {
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type StripeConfig struct {
	SecretKey         string        `mapstructure:"secret_key"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type SweeperConfig struct {
	Enabled     bool
	Interval    time.Duration `validate:"required"`
	Concurrency int           `validate:"required,min=1"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type EventsConfig struct {
	PubSub types.PubSubType `mapstructure:"pubsub" validate:"required"`
	Topic  string           `validate:"required"`
}

type KafkaConfig struct {
	Brokers       []string
	ClientID      string `mapstructure:"client_id"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

type CacheConfig struct {
	Enabled    bool
	WebhookTTL time.Duration `mapstructure:"webhook_ttl"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// a missing .env is fine, the process env and config.yaml still apply
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bookingpay")

	v.SetEnvPrefix("BOOKINGPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Billing.CommissionRate.IsNegative() || c.Billing.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("billing.commission_rate must be between 0 and 1, got %s", c.Billing.CommissionRate)
	}
	if c.Events.PubSub == types.KafkaPubSub && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when events.pubsub is kafka")
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Environment: "local"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "bookingpay",
			DBName:  "bookingpay",
			SSLMode: "disable",
		},
		Billing: BillingConfig{
			Currency:           types.DefaultCurrency,
			CommissionRate:     decimal.NewFromFloat(0.1),
			InvoiceGracePeriod: 24 * time.Hour,
		},
		Settlement: SettlementConfig{
			MaxRetries:      3,
			InitialInterval: 50 * time.Millisecond,
			MaxElapsedTime:  5 * time.Second,
		},
		Stripe: StripeConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 25,
		},
		Sweeper: SweeperConfig{
			Enabled:     true,
			Interval:    time.Minute,
			Concurrency: 4,
			BatchSize:   500,
		},
		Events: EventsConfig{
			PubSub: types.MemoryPubSub,
			Topic:  "billing_events",
		},
		Cache: CacheConfig{
			Enabled:    true,
			WebhookTTL: 10 * time.Minute,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
