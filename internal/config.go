package internal

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Payment providers.
const (
	PaymentProviderRazorpay = "razorpay"
	PaymentProviderStripe   = "stripe"
	PaymentProviderMock     = "mock"
)

// MinSessionSecretLength is the minimum accepted SESSION_SECRET length in bytes.
const MinSessionSecretLength = 32

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Application base URL (used for checkout callbacks)
	BaseURL string

	// Comma-separated proxy addresses or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means key clients by TCP peer.
	TrustedProxies string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string

	// Session signing. Required; there is no built-in default.
	SessionSecret string
	SessionDays   int

	// Payment Configuration
	PaymentProvider      string // "razorpay", "stripe" or "mock"
	RazorpayKeyID        string
	RazorpayKeySecret    string
	StripeSecretKey      string
	StripePublishableKey string
	MockPaymentSecret    string

	// Premium product
	PremiumAmount   int64 // minor units
	PremiumCurrency string
	PremiumDays     int

	// Quota
	FreeDailyLimit int
	QuotaTimezone  string

	// Conversion
	MaxUploadSize            int64
	MaxConcurrentConversions int

	// Storage Configuration
	StorageProvider string // "local" or "r2"
	UploadDir       string
	OutputDir       string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Region          string

	// Retention worker
	RetentionEnabled   bool
	RetentionInterval  time.Duration
	FileRetention      time.Duration
	UsageRetentionDays int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),

		TrustedProxies: getEnv("TRUSTED_PROXIES", ""),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "file:convertly.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionDays:   getEnvInt("SESSION_DAYS", 30),

		PaymentProvider:      getEnv("PAYMENT_PROVIDER", PaymentProviderRazorpay),
		RazorpayKeyID:        getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		MockPaymentSecret:    getEnv("MOCK_PAYMENT_SECRET", "mock-secret"),

		PremiumAmount:   getEnvInt64("PREMIUM_AMOUNT", 9900),
		PremiumCurrency: strings.ToUpper(getEnv("PREMIUM_CURRENCY", "INR")),
		PremiumDays:     getEnvInt("PREMIUM_DAYS", 30),

		FreeDailyLimit: getEnvInt("FREE_DAILY_LIMIT", 3),
		QuotaTimezone:  getEnv("QUOTA_TIMEZONE", "UTC"),

		MaxUploadSize:            getEnvInt64("MAX_UPLOAD_SIZE", 20*1024*1024),
		MaxConcurrentConversions: getEnvInt("MAX_CONCURRENT_CONVERSIONS", 4),

		// Storage defaults to local filesystem
		StorageProvider: getEnv("STORAGE_PROVIDER", "local"),
		UploadDir:       getEnv("UPLOAD_DIR", "static/uploads"),
		OutputDir:       getEnv("OUTPUT_DIR", "static/output"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Region:          getEnv("R2_REGION", "auto"),

		RetentionEnabled:   getEnvBool("RETENTION_ENABLED", true),
		RetentionInterval:  getEnvDuration("RETENTION_INTERVAL", time.Hour),
		FileRetention:      getEnvDuration("FILE_RETENTION", 24*time.Hour),
		UsageRetentionDays: getEnvInt("USAGE_RETENTION_DAYS", 7),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Location returns the time zone used to decide which calendar day a
// request counts against. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(c.TrustedProxies, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Validate checks required fields and provider-specific settings.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET is required and must be at least %d bytes", MinSessionSecretLength)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be either 'sqlite' or 'postgres', got: %s", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate payment configuration
	switch c.PaymentProvider {
	case PaymentProviderRazorpay:
		if c.RazorpayKeyID == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID is required when PAYMENT_PROVIDER is 'razorpay'")
		}
		if c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_SECRET is required when PAYMENT_PROVIDER is 'razorpay'")
		}
	case PaymentProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER is 'stripe'")
		}
		if c.StripePublishableKey == "" {
			return fmt.Errorf("STRIPE_PUBLISHABLE_KEY is required when PAYMENT_PROVIDER is 'stripe'")
		}
	case PaymentProviderMock:
		if !c.IsDevelopment() {
			return fmt.Errorf("PAYMENT_PROVIDER 'mock' is only allowed when ENV is 'development'")
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be one of 'razorpay', 'stripe' or 'mock', got: %s", c.PaymentProvider)
	}

	if c.PremiumAmount <= 0 {
		return fmt.Errorf("PREMIUM_AMOUNT must be positive, got: %d", c.PremiumAmount)
	}
	if len(c.PremiumCurrency) != 3 {
		return fmt.Errorf("PREMIUM_CURRENCY must be a 3-letter ISO code, got: %s", c.PremiumCurrency)
	}
	if c.PremiumDays <= 0 {
		return fmt.Errorf("PREMIUM_DAYS must be positive, got: %d", c.PremiumDays)
	}
	if c.SessionDays <= 0 {
		return fmt.Errorf("SESSION_DAYS must be positive, got: %d", c.SessionDays)
	}
	if c.FreeDailyLimit < 0 {
		return fmt.Errorf("FREE_DAILY_LIMIT must not be negative, got: %d", c.FreeDailyLimit)
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE is invalid: %w", err)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got: %d", c.MaxUploadSize)
	}
	if c.MaxConcurrentConversions < 1 {
		return fmt.Errorf("MAX_CONCURRENT_CONVERSIONS must be at least 1, got: %d", c.MaxConcurrentConversions)
	}

	// Validate storage configuration
	if c.StorageProvider == "r2" {
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	if c.RetentionEnabled {
		if c.RetentionInterval <= 0 {
			return fmt.Errorf("RETENTION_INTERVAL must be positive, got: %v", c.RetentionInterval)
		}
		if c.FileRetention <= 0 {
			return fmt.Errorf("FILE_RETENTION must be positive, got: %v", c.FileRetention)
		}
		if c.UsageRetentionDays < 1 {
			return fmt.Errorf("USAGE_RETENTION_DAYS must be at least 1, got: %d", c.UsageRetentionDays)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
