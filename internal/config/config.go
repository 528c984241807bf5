package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the storefront client configuration, read from the environment
// after an optional .env file.
type Config struct {
	APIBaseURL string        `mapstructure:"API_BASE_URL"`
	APITimeout time.Duration `mapstructure:"API_TIMEOUT"`
	ListenAddr string        `mapstructure:"LISTEN_ADDR"`

	StoreBackend   string        `mapstructure:"STORE_BACKEND"`
	StoreNamespace string        `mapstructure:"STORE_NAMESPACE"`
	StoreRetention time.Duration `mapstructure:"STORE_RETENTION"`
	MongoURI       string        `mapstructure:"MONGO_URI"`
	DBName         string        `mapstructure:"DB_NAME"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`

	CheckoutTTL    time.Duration `mapstructure:"CHECKOUT_TTL"`
	RenewLead      time.Duration `mapstructure:"RENEW_LEAD"`
	RenewFloor     time.Duration `mapstructure:"RENEW_FLOOR"`
	ValidityMargin time.Duration `mapstructure:"VALIDITY_MARGIN"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogOutput string `mapstructure:"LOG_OUTPUT"`
	LogFile   string `mapstructure:"LOG_FILE"`
}

// Load reads .env (if present) and builds a validated Config from the
// environment. A missing .env is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not loaded", slog.String("error", err.Error()))
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("LISTEN_ADDR", "127.0.0.1:8090")
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("STORE_NAMESPACE", "storefront")
	v.SetDefault("STORE_RETENTION", "720h")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("DB_NAME", "heremarket_client")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CHECKOUT_TTL", "30m")
	v.SetDefault("RENEW_LEAD", "5m")
	v.SetDefault("RENEW_FLOOR", "1m")
	v.SetDefault("VALIDITY_MARGIN", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE", "logs/storefront.log")
}

func (c *Config) normalize() error {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		return errors.New("config: API_BASE_URL must be set")
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreMemory, StoreNone, StoreRedis:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI must be set when STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	c.APITimeout = positiveOr(c.APITimeout, 10*time.Second)
	c.StoreRetention = positiveOr(c.StoreRetention, 720*time.Hour)
	c.CheckoutTTL = positiveOr(c.CheckoutTTL, 30*time.Minute)
	c.RenewLead = positiveOr(c.RenewLead, 5*time.Minute)
	c.RenewFloor = positiveOr(c.RenewFloor, time.Minute)
	c.ValidityMargin = positiveOr(c.ValidityMargin, 60*time.Second)
	return nil
}
