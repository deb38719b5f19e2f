package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/exchange"
	"github.com/xenking/catalog-service/internal/notify"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Exchange  ExchangeConfig
	Notify    NotifyConfig
	Auth      AuthConfig
	Paging    PagingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects the product store.
type StorageConfig struct {
	Driver      string `default:"postgres" usage:"Product store: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CATALOG_STORAGE_DATABASE_URL or DATABASE_URL)"`
}

// ExchangeConfig controls the exchange-rate lookup pipeline.
type ExchangeConfig struct {
	BaseURL     string        `default:"https://api.frankfurter.app/latest" usage:"Exchange-rate API endpoint"`
	Timeout     time.Duration `default:"5s" usage:"Per-request timeout of the exchange-rate API"`
	MaxAttempts uint          `default:"3" usage:"Attempts per rate lookup before falling back"`
	RetryDelay  time.Duration `default:"0s" usage:"Constant delay between attempts"`
	CacheTTL    time.Duration `default:"0s" usage:"Rate cache lifetime, 0 keeps rates until purged"`
}

// NotifyConfig controls product change emails.
type NotifyConfig struct {
	Enabled bool   `default:"false" usage:"Send an email on every product change"`
	To      string `usage:"Recipient of product change emails"`
	From    string `usage:"Sender address of product change emails"`
	SMTP    SMTPConfig
	Queue   NotifyQueueConfig
}

// NotifyQueueConfig bounds background email delivery.
type NotifyQueueConfig struct {
	Size    int           `default:"100" usage:"Buffered notifications before new ones are dropped"`
	Workers int           `default:"2" usage:"Concurrent email deliveries"`
	Timeout time.Duration `default:"30s" usage:"Timeout of a single email delivery"`
}

// SMTPConfig locates the mail relay.
type SMTPConfig struct {
	Host     string `usage:"SMTP relay host"`
	Port     int    `default:"587" usage:"SMTP relay port"`
	Username string `usage:"SMTP username, empty disables authentication"`
	Password string `usage:"SMTP password"`
	TLS      string `default:"mandatory" usage:"TLS policy: mandatory, opportunistic or none"`
}

// AuthConfig controls API key protection of mutating routes.
type AuthConfig struct {
	Enabled bool   `default:"false" usage:"Require an api_key header on mutating routes"`
	Pepper  string `usage:"HMAC pepper for API key hashing (CATALOG_AUTH_PEPPER)"`
}

// PagingConfig bounds list queries.
type PagingConfig struct {
	DefaultSize int `default:"100" usage:"Page size used when a query omits size"`
	MaxSize     int `default:"1000" usage:"Largest accepted page size"`
}

// RateLimitConfig controls the per-client token bucket rate limiter. Max is
// the burst size, refilled evenly over Window.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration"`
}

func loaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "CATALOG",
		Files:     []string{"config.yaml", "/etc/catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files and flags, then applies platform defaults and validates
// the result.
func LoadConfig() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()
	return loadConfig(loaderConfig())
}

func loadConfig(lc aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, lc).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CATALOG_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set CATALOG_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
		if c.Auth.Enabled {
			return errors.New("api key auth requires the postgres driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Exchange.MaxAttempts < 1 {
		return errors.New("exchange max attempts must be at least 1")
	}
	if c.Exchange.RetryDelay < 0 || c.Exchange.CacheTTL < 0 {
		return errors.New("exchange durations must not be negative")
	}

	if c.Paging.MaxSize < 1 || c.Paging.MaxSize > product.MaxPageSize {
		return errors.Errorf("paging max size must be between 1 and %d", product.MaxPageSize)
	}
	if c.Paging.DefaultSize < 1 || c.Paging.DefaultSize > c.Paging.MaxSize {
		return errors.New("paging default size must be between 1 and the max size")
	}

	if c.Notify.Enabled {
		if c.Notify.To == "" || c.Notify.From == "" || c.Notify.SMTP.Host == "" {
			return errors.New("notifications require recipient, sender and SMTP host")
		}
		policies := []notify.TLSPolicy{notify.TLSMandatory, notify.TLSOpportunistic, notify.TLSNone}
		if !slices.Contains(policies, notify.TLSPolicy(c.Notify.SMTP.TLS)) {
			return errors.Errorf("unknown SMTP TLS policy %q", c.Notify.SMTP.TLS)
		}
	}

	if c.Auth.Enabled && c.Auth.Pepper == "" {
		return errors.New("api key auth requires a pepper")
	}
	return nil
}

func (c *Config) exchangeConfig() exchange.Config {
	return exchange.Config{
		MaxAttempts: c.Exchange.MaxAttempts,
		RetryDelay:  c.Exchange.RetryDelay,
		CacheTTL:    c.Exchange.CacheTTL,
	}
}

func (c *Config) smtpConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.Notify.SMTP.Host,
		Port:     c.Notify.SMTP.Port,
		Username: c.Notify.SMTP.Username,
		Password: c.Notify.SMTP.Password,
		From:     c.Notify.From,
		TLS:      notify.TLSPolicy(c.Notify.SMTP.TLS),
	}
}
