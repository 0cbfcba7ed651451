package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/jobhunter/server/internal/utils/errors"
)

// Config holds all application configuration.
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	HTTPClient    HTTPClientConfig    `mapstructure:"http_client"`
	AI            AIConfig            `mapstructure:"ai"`
	Quota         QuotaConfig         `mapstructure:"quota"`
	Features      FeaturesConfig      `mapstructure:"features"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Paystack      PaystackConfig      `mapstructure:"paystack"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	AccessControl AccessControlConfig `mapstructure:"access_control"`
	Log           LogConfig           `mapstructure:"log"`
}

// IsProduction reports whether live payment credentials are in use.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// MaxUploadBytes bounds multipart CV uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration. An empty Host and URL selects in-memory repositories.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// Enabled reports whether a postgres database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration. An empty Address and URL keeps quota counters in-process.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether a shared Redis backend is configured.
func (c *RedisConfig) Enabled() bool {
	return c.URL != "" || c.Address != ""
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// AIConfig holds LLM provider configuration.
type AIConfig struct {
	Provider         string        `mapstructure:"provider"` // gemini, mock
	GeminiAPIKey     string        `mapstructure:"gemini_api_key"`
	Model            string        `mapstructure:"model"`
	APIURL           string        `mapstructure:"api_url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	CircuitTimeout   time.Duration `mapstructure:"circuit_timeout"`
}

// QuotaConfig holds the daily allowance policy and the counter store settings.
type QuotaConfig struct {
	FreeDaily    int           `mapstructure:"free_daily"`
	PremiumDaily int           `mapstructure:"premium_daily"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	KeyTTL       time.Duration `mapstructure:"key_ttl"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	Shards       int           `mapstructure:"shards"`
	// BreakerFailures is the consecutive Redis failure count that opens the store breaker.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// FeaturesConfig holds the premium-only capability set. Empty means every capability is open.
type FeaturesConfig struct {
	PremiumFeatures []string `mapstructure:"premium_features"`
}

// CORSConfig holds browser origin configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// PaystackConfig holds Paystack webhook configuration.
type PaystackConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	TestSecretKey string `mapstructure:"test_secret_key"`
	// PlanCodes maps a plan name (monthly, yearly) to its Paystack plan code.
	PlanCodes map[string]string `mapstructure:"plan_codes"`
}

// StripeConfig holds Stripe webhook configuration.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// PricePlans maps a Stripe price id to a plan name.
	PricePlans map[string]string `mapstructure:"price_plans"`
}

// Enabled reports whether the Stripe webhook endpoint should be mounted.
func (c *StripeConfig) Enabled() bool {
	return c.WebhookSecret != ""
}

// AccessControlConfig holds privileged account configuration.
type AccessControlConfig struct {
	AdminEmails  []string `mapstructure:"admin_emails"`
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ActivePaystackSecret returns the live secret in production and the test secret elsewhere.
func (c *Config) ActivePaystackSecret() string {
	if c.IsProduction() {
		return c.Paystack.SecretKey
	}
	return c.Paystack.TestSecretKey
}

// Validate reports configuration that must stop the process from serving traffic.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.AI.Provider) {
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			problems = append(problems, "ai.gemini_api_key is required for the gemini provider")
		}
	case "mock":
		if c.IsProduction() {
			problems = append(problems, "ai.provider mock is not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown ai.provider %q", c.AI.Provider))
	}

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if secret := c.ActivePaystackSecret(); secret == "" || strings.HasPrefix(secret, "your_") {
		problems = append(problems, "an active paystack secret key is required")
	}
	for _, plan := range []string{"monthly", "yearly"} {
		if c.Paystack.PlanCodes[plan] == "" {
			problems = append(problems, fmt.Sprintf("paystack.plan_codes.%s is required", plan))
		}
	}
	if c.Quota.FreeDaily <= 0 || c.Quota.PremiumDaily <= 0 {
		problems = append(problems, "quota allowances must be positive")
	}

	if len(problems) > 0 {
		return apperrors.Configuration(strings.Join(problems, "; "))
	}
	return nil
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/jobhunter")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("JOBHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads secrets and list values from the plain variable names used by the
// hosting platform.
func applyEnvOverrides(cfg *Config) {
	override := func(dst *string, keys ...string) {
		for _, key := range keys {
			if val := os.Getenv(key); val != "" {
				*dst = val
				return
			}
		}
	}

	override(&cfg.Environment, "ENVIRONMENT")
	override(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY")
	override(&cfg.AI.Model, "GEMINI_MODEL")
	override(&cfg.AI.APIURL, "GEMINI_API_URL")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Paystack.SecretKey, "PAYSTACK_SECRET_KEY")
	override(&cfg.Paystack.TestSecretKey, "PAYSTACK_TEST_SECRET_KEY")
	override(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	override(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Database.Password, "JOBHUNTER_DB_PASSWORD")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "JOBHUNTER_REDIS_PASSWORD")

	if s := os.Getenv("ALLOWED_ORIGINS"); s != "" {
		cfg.CORS.AllowedOrigins = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("PREMIUM_FEATURES"); s != "" {
		cfg.Features.PremiumFeatures = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("JOBHUNTER_ADMIN_EMAILS"); s != "" {
		cfg.AccessControl.AdminEmails = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("JOBHUNTER_ADMIN_USER_IDS"); s != "" {
		cfg.AccessControl.AdminUserIDs = parseCommaSeparatedList(s)
	}
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultAllowedOrigins is the browser origin list used when none is configured.
var DefaultAllowedOrigins = []string{
	"https://jobhunterui.github.io",
	"http://localhost:8000",
	"http://localhost:3000",
	"http://127.0.0.1:5500",
	"moz-extension://*",
	"chrome-extension://*",
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Database defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "jobhunter")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", 500*time.Millisecond)
	v.SetDefault("redis.write_timeout", 500*time.Millisecond)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 30*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 120*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// AI defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.api_url", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("ai.request_timeout", 120*time.Second)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.retry_base_delay", time.Second)
	v.SetDefault("ai.failure_threshold", 5)
	v.SetDefault("ai.circuit_timeout", 60*time.Second)

	// Quota defaults
	v.SetDefault("quota.free_daily", 5)
	v.SetDefault("quota.premium_daily", 50)
	v.SetDefault("quota.key_prefix", "jobhunter_rl")
	v.SetDefault("quota.key_ttl", 48*time.Hour)
	v.SetDefault("quota.store_timeout", 500*time.Millisecond)
	v.SetDefault("quota.shards", 32)
	v.SetDefault("quota.breaker_failures", 3)
	v.SetDefault("quota.breaker_timeout", 30*time.Second)

	// Feature defaults
	v.SetDefault("features.premium_features", []string{})

	// CORS defaults
	v.SetDefault("cors.allowed_origins", DefaultAllowedOrigins)

	// Auth defaults
	v.SetDefault("auth.issuer", "jobhunter")

	// Paystack defaults
	v.SetDefault("paystack.plan_codes", map[string]string{
		"monthly": "PLN_y6ssj3yx0t392cz",
		"yearly":  "PLN_uqktx3mjkn0skcx",
	})

	// Access control defaults
	v.SetDefault("access_control.admin_emails", []string{})
	v.SetDefault("access_control.admin_user_ids", []string{})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
