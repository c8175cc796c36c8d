package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverDynamoDB = "dynamodb"
	DriverPostgres = "postgres"

	callbackPath = "/payment/success"
)

// Config holds runtime settings for the API and the notifier.
type Config struct {
	HTTPAddr string
	RunLocal bool

	PaystackSecretKey     string
	PaystackWebhookSecret string
	PaystackBaseURL       string
	PaystackTimeout       time.Duration

	PublicBaseURL   string
	DefaultCurrency string

	OrderStoreDriver     string
	OrdersTable          string
	OrdersReferenceIndex string
	DatabaseURL          string

	IdempotencyTable string
	IdempotencyTTL   time.Duration

	NotificationsQueueURL string
	MailQueueURL          string
	MetricsNamespace      string
}

// CallbackURL is where the gateway sends the customer after checkout.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + callbackPath
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("RUN_LOCAL", false)
	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("PAYSTACK_TIMEOUT", "15s")
	v.SetDefault("DEFAULT_CURRENCY", "NGN")
	v.SetDefault("ORDER_STORE_DRIVER", DriverDynamoDB)
	v.SetDefault("ORDERS_TABLE", "orders")
	v.SetDefault("ORDERS_REFERENCE_INDEX", "payment_reference-index")
	v.SetDefault("IDEMPOTENCY_TABLE", "idempotency")
	v.SetDefault("IDEMPOTENCY_TTL", "48h")
	v.SetDefault("METRICS_NAMESPACE", "Storefront/Payments")
}

// Load reads the API configuration from the environment. An optional file
// named by CONFIG_FILE is read first; environment variables override it.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadNotifier reads the settings the notification worker uses. Gateway
// credentials are not required there.
func LoadNotifier() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL <= 0 {
		return nil, errors.New("IDEMPOTENCY_TTL must be positive")
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		RunLocal:              v.GetBool("RUN_LOCAL"),
		PaystackSecretKey:     v.GetString("PAYSTACK_SECRET_KEY"),
		PaystackWebhookSecret: v.GetString("PAYSTACK_WEBHOOK_SECRET"),
		PaystackBaseURL:       v.GetString("PAYSTACK_BASE_URL"),
		PaystackTimeout:       v.GetDuration("PAYSTACK_TIMEOUT"),
		PublicBaseURL:         v.GetString("PUBLIC_BASE_URL"),
		DefaultCurrency:       strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		OrderStoreDriver:      strings.ToLower(v.GetString("ORDER_STORE_DRIVER")),
		OrdersTable:           v.GetString("ORDERS_TABLE"),
		OrdersReferenceIndex:  v.GetString("ORDERS_REFERENCE_INDEX"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		IdempotencyTable:      v.GetString("IDEMPOTENCY_TABLE"),
		IdempotencyTTL:        v.GetDuration("IDEMPOTENCY_TTL"),
		NotificationsQueueURL: v.GetString("NOTIFICATIONS_QUEUE_URL"),
		MailQueueURL:          v.GetString("MAIL_QUEUE_URL"),
		MetricsNamespace:      v.GetString("METRICS_NAMESPACE"),
	}
	if strings.EqualFold(cfg.MetricsNamespace, "none") {
		cfg.MetricsNamespace = ""
	}
	if cfg.PaystackWebhookSecret == "" {
		cfg.PaystackWebhookSecret = cfg.PaystackSecretKey
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.PaystackSecretKey == "" {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required"))
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL %q is not an absolute url", c.PublicBaseURL))
	}
	if c.PaystackTimeout <= 0 {
		errs = append(errs, errors.New("PAYSTACK_TIMEOUT must be positive"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}
	switch c.OrderStoreDriver {
	case DriverDynamoDB:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres order store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ORDER_STORE_DRIVER %q", c.OrderStoreDriver))
	}
	return errors.Join(errs...)
}
