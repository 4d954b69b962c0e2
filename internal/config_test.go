package internal

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		DatabaseDriver:           DriverSQLite,
		DatabaseURL:              "file::memory:",
		SessionSecret:            "0123456789abcdef0123456789abcdef",
		SessionDays:              30,
		PaymentProvider:          PaymentProviderRazorpay,
		RazorpayKeyID:            "rzp_test_key",
		RazorpayKeySecret:        "secret",
		PremiumAmount:            9900,
		PremiumCurrency:          "INR",
		PremiumDays:              30,
		FreeDailyLimit:           3,
		QuotaTimezone:            "UTC",
		MaxUploadSize:            20 << 20,
		MaxConcurrentConversions: 4,
		StorageProvider:          "local",
		RetentionEnabled:         true,
		RetentionInterval:        time.Hour,
		FileRetention:            24 * time.Hour,
		UsageRetentionDays:       7,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing session secret",
			mutate:  func(c *Config) { c.SessionSecret = "" },
			wantErr: "SESSION_SECRET",
		},
		{
			name:    "short session secret",
			mutate:  func(c *Config) { c.SessionSecret = "too-short" },
			wantErr: "SESSION_SECRET",
		},
		{
			name:    "razorpay without secret",
			mutate:  func(c *Config) { c.RazorpayKeySecret = "" },
			wantErr: "RAZORPAY_KEY_SECRET",
		},
		{
			name: "stripe without publishable key",
			mutate: func(c *Config) {
				c.PaymentProvider = PaymentProviderStripe
				c.StripeSecretKey = "sk_test"
			},
			wantErr: "STRIPE_PUBLISHABLE_KEY",
		},
		{
			name: "mock outside development",
			mutate: func(c *Config) {
				c.Env = "production"
				c.PaymentProvider = PaymentProviderMock
			},
			wantErr: "only allowed",
		},
		{
			name:    "mock in development",
			mutate:  func(c *Config) { c.PaymentProvider = PaymentProviderMock },
			wantErr: "",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.PaymentProvider = "paypal" },
			wantErr: "PAYMENT_PROVIDER",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.DatabaseDriver = "mysql" },
			wantErr: "DATABASE_DRIVER",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.QuotaTimezone = "Mars/Olympus" },
			wantErr: "QUOTA_TIMEZONE",
		},
		{
			name:    "r2 without bucket",
			mutate:  func(c *Config) { c.StorageProvider = "r2"; c.R2AccountID = "a"; c.R2AccessKeyID = "b"; c.R2SecretAccessKey = "c" },
			wantErr: "R2_BUCKET_NAME",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(c *Config) { c.TrustedProxies = "10.0.0.0/8, not-an-ip" },
			wantErr: "TRUSTED_PROXIES",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.MaxConcurrentConversions = 0 },
			wantErr: "MAX_CONCURRENT_CONVERSIONS",
		},
		{
			name: "retention disabled skips retention checks",
			mutate: func(c *Config) {
				c.RetentionEnabled = false
				c.RetentionInterval = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("ENV", "development")
	t.Setenv("FREE_DAILY_LIMIT", "5")
	t.Setenv("PREMIUM_CURRENCY", "usd")
	t.Setenv("FILE_RETENTION", "2h")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FreeDailyLimit)
	assert.Equal(t, "USD", cfg.PremiumCurrency)
	assert.Equal(t, 2*time.Hour, cfg.FileRetention)
	assert.Equal(t, int64(9900), cfg.PremiumAmount)
	assert.Equal(t, 30, cfg.PremiumDays)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "auto", cfg.R2Region)

	proxies, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, proxies, "no proxy is trusted unless configured")
}

func TestConfig_TrustedProxyPrefixes(t *testing.T) {
	cfg := validConfig()
	cfg.TrustedProxies = " 10.1.2.3/8 ,, 127.0.0.1, ::1, ::ffff:192.0.2.7"

	got, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.1/32"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("192.0.2.7/32"),
	}, got)
}

func TestNewConfig_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("ENV", "development")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}
