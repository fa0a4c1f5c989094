package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// EnvTest is the only environment that may skip gateway signature checks.
const EnvTest = "test"

// Config holds runtime settings loaded from the environment.
type Config struct {
	Env            string
	HTTPAddr       string
	BaseURL        string
	DatabaseURL    string
	SessionSecret  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	OrderLocation  *time.Location
	Negdi          NegdiConfig
	Contribution   ContributionConfig
	S3             S3Config
	SMTP           SMTPConfig
	Logging        LoggingConfig
}

// NegdiConfig configures the payment gateway client.
type NegdiConfig struct {
	BaseURL        string
	CreateOrderURL string
	InquiryURL     string
	TerminalID     string
	Username       string
	Password       string
	PublicKey      string
	Currency       string
	Timeout        time.Duration
	SkipSignature  bool
}

// ContributionConfig bounds accepted contribution amounts.
type ContributionConfig struct {
	Min           decimal.Decimal
	Max           decimal.Decimal
	RatePerMinute int
}

// S3Config configures QR archiving. Empty bucket disables it.
type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
}

// SMTPConfig configures receipt email. Empty host disables it.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// IsTest reports whether the process runs against the gateway's test environment.
func (c *Config) IsTest() bool {
	return strings.EqualFold(c.Env, EnvTest)
}

// Load reads .env.<ENVIRONMENT> (or .env) into the process environment and builds the config.
func Load() (*Config, error) {
	env := strings.ToLower(getenv("ENVIRONMENT", EnvTest))
	if err := loadDotenv(env); err != nil {
		return nil, err
	}
	return FromEnv()
}

// FromEnv builds the config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:            strings.ToLower(getenv("ENVIRONMENT", EnvTest)),
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		BaseURL:        strings.TrimRight(os.Getenv("BASE_URL"), "/"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SessionSecret:  os.Getenv("SECRET_KEY"),
		SessionTTL:     getenvDuration("SESSION_TTL", time.Hour),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 30*time.Second),
		Negdi: NegdiConfig{
			BaseURL:        strings.TrimRight(os.Getenv("NEGDI_BASE_URL"), "/"),
			CreateOrderURL: os.Getenv("NEGDI_CREATE_ORDER_URL"),
			InquiryURL:     os.Getenv("NEGDI_INQUIRY_URL"),
			TerminalID:     os.Getenv("NEGDI_TERMINAL_ID"),
			Username:       os.Getenv("NEGDI_USERNAME"),
			Password:       os.Getenv("NEGDI_PASSWORD"),
			PublicKey:      os.Getenv("NEGDI_PUBLIC_KEY"),
			Currency:       strings.ToUpper(getenv("NEGDI_CURRENCY", "USD")),
			Timeout:        getenvDuration("NEGDI_TIMEOUT", 15*time.Second),
			SkipSignature:  getenvBool("NEGDI_SKIP_SIGNATURE", false),
		},
		Contribution: ContributionConfig{
			RatePerMinute: getenvInt("CONTRIBUTE_RATE_PER_MIN", 10),
		},
		S3: S3Config{
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         os.Getenv("S3_BUCKET"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getenv("S3_REGION", "us-east-1"),
			UseSSL:         getenvBool("S3_USE_SSL", true),
		},
		SMTP: SMTPConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      getenvInt("SMTP_PORT", 587),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			FromEmail: os.Getenv("SMTP_FROM_EMAIL"),
			FromName:  getenv("SMTP_FROM_NAME", "Donato"),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	var err error
	if cfg.Contribution.Min, err = getenvDecimal("CONTRIBUTION_MIN", "1"); err != nil {
		return nil, err
	}
	if cfg.Contribution.Max, err = getenvDecimal("CONTRIBUTION_MAX", "10000"); err != nil {
		return nil, err
	}
	if cfg.OrderLocation, err = time.LoadLocation(getenv("ORDER_TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("ORDER_TIMEZONE: %w", err)
	}
	if cfg.Negdi.PublicKey == "" {
		if path := os.Getenv("NEGDI_PUBLIC_KEY_FILE"); path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("NEGDI_PUBLIC_KEY_FILE: %w", err)
			}
			cfg.Negdi.PublicKey = string(raw)
		}
	}
	if cfg.Negdi.BaseURL != "" {
		if cfg.Negdi.CreateOrderURL == "" {
			cfg.Negdi.CreateOrderURL = cfg.Negdi.BaseURL + "/ec1000"
		}
		if cfg.Negdi.InquiryURL == "" {
			cfg.Negdi.InquiryURL = cfg.Negdi.BaseURL + "/ec1098"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.Negdi.CreateOrderURL == "" || c.Negdi.InquiryURL == "" {
		return fmt.Errorf("NEGDI_BASE_URL or NEGDI_CREATE_ORDER_URL and NEGDI_INQUIRY_URL are required")
	}
	if c.Negdi.TerminalID == "" || c.Negdi.Username == "" || c.Negdi.Password == "" {
		return fmt.Errorf("NEGDI_TERMINAL_ID, NEGDI_USERNAME and NEGDI_PASSWORD are required")
	}
	if c.Negdi.SkipSignature && !c.IsTest() {
		return fmt.Errorf("NEGDI_SKIP_SIGNATURE is only allowed when ENVIRONMENT=%s", EnvTest)
	}
	if !c.Negdi.SkipSignature && strings.TrimSpace(c.Negdi.PublicKey) == "" {
		return fmt.Errorf("NEGDI_PUBLIC_KEY or NEGDI_PUBLIC_KEY_FILE is required")
	}
	if !c.Contribution.Min.IsPositive() || c.Contribution.Max.LessThan(c.Contribution.Min) {
		return fmt.Errorf("CONTRIBUTION_MIN must be positive and not above CONTRIBUTION_MAX")
	}
	return nil
}

func loadDotenv(env string) error {
	for _, name := range []string{".env." + env, ".env"} {
		err := godotenv.Load(name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDecimal(key, def string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(getenv(key, def)))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
