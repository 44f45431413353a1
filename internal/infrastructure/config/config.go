package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Airtable  AirtableConfig
	Shopify   ShopifyConfig
	Sync      SyncConfig
	Cart      CartConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port pair for the redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// AirtableConfig holds the catalog source settings
type AirtableConfig struct {
	AccessToken    string
	BaseID         string
	ProductsTable  string
	OrdersTable    string
	APIBaseURL     string
	TimeoutSeconds int
}

// ShopifyConfig holds Storefront API and webhook settings
type ShopifyConfig struct {
	StoreDomain     string
	APIVersion      string
	StorefrontToken string
	WebhookSecret   string
	VerifyWebhook   bool
	TimeoutSeconds  int
}

// SyncConfig holds catalog sync trigger settings
type SyncConfig struct {
	Interval    time.Duration // 0 disables the scheduler
	RunOnStart  bool
	Timeout     time.Duration
	LockBackend string // memory, redis
	LockTTL     time.Duration
}

// CartConfig holds settings for the operator CLI cart session
type CartConfig struct {
	APIURL    string
	StatePath string
	Timeout   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with KIOSK_ prefix (e.g., KIOSK_DATABASE_PASSWORD)
// 2. Legacy storefront variables (AIRTABLE_ACCESS_TOKEN, SHOPIFY_STOREFRONT_TOKEN, ...)
// 3. config.toml
// 4. Built-in defaults
//
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/kiosk")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("KIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// Booleans that default to true cannot be told apart from "unset" after
	// the struct is built, so they get viper defaults instead.
	v.SetDefault("shopify.verify_webhook", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			RateLimitBurst:    v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_thresh"),
		},
		Airtable: AirtableConfig{
			AccessToken:    v.GetString("airtable.access_token"),
			BaseID:         v.GetString("airtable.base_id"),
			ProductsTable:  v.GetString("airtable.products_table"),
			OrdersTable:    v.GetString("airtable.orders_table"),
			APIBaseURL:     v.GetString("airtable.api_base_url"),
			TimeoutSeconds: v.GetInt("airtable.timeout_seconds"),
		},
		Shopify: ShopifyConfig{
			StoreDomain:     v.GetString("shopify.store_domain"),
			APIVersion:      v.GetString("shopify.api_version"),
			StorefrontToken: v.GetString("shopify.storefront_token"),
			WebhookSecret:   v.GetString("shopify.webhook_secret"),
			VerifyWebhook:   v.GetBool("shopify.verify_webhook"),
			TimeoutSeconds:  v.GetInt("shopify.timeout_seconds"),
		},
		Sync: SyncConfig{
			Interval:    v.GetDuration("sync.interval"),
			RunOnStart:  v.GetBool("sync.run_on_start"),
			Timeout:     v.GetDuration("sync.timeout"),
			LockBackend: v.GetString("sync.lock_backend"),
			LockTTL:     v.GetDuration("sync.lock_ttl"),
		},
		Cart: CartConfig{
			APIURL:    v.GetString("cart.api_url"),
			StatePath: v.GetString("cart.state_path"),
			Timeout:   v.GetDuration("cart.timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// bindLegacyEnv lets the unprefixed variables used by the storefront's
// serverless functions configure the same settings.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"airtable.access_token":    "AIRTABLE_ACCESS_TOKEN",
		"airtable.base_id":         "AIRTABLE_BASE_ID",
		"airtable.products_table":  "AIRTABLE_PRODUCTS_TABLE",
		"airtable.orders_table":    "AIRTABLE_ORDERS_TABLE",
		"shopify.store_domain":     "SHOPIFY_STORE",
		"shopify.api_version":      "SHOPIFY_API_VERSION",
		"shopify.storefront_token": "SHOPIFY_STOREFRONT_TOKEN",
		"shopify.webhook_secret":   "SHOPIFY_WEBHOOK_SECRET",
		"shopify.verify_webhook":   "VERIFY_WEBHOOK",
	}
	for key, env := range legacy {
		prefixed := "KIOSK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kiosk-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "kiosk"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Sync runs synchronously inside the request, so writes get more room.
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 20
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "kiosk-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Airtable.ProductsTable == "" {
		cfg.Airtable.ProductsTable = "Products"
	}
	if cfg.Airtable.OrdersTable == "" {
		cfg.Airtable.OrdersTable = "Orders"
	}
	if cfg.Airtable.APIBaseURL == "" {
		cfg.Airtable.APIBaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Airtable.TimeoutSeconds == 0 {
		cfg.Airtable.TimeoutSeconds = 30
	}
	if cfg.Shopify.StoreDomain == "" {
		cfg.Shopify.StoreDomain = "onlyatthekiosk.com"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2024-01"
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 10 * time.Minute
	}
	if cfg.Sync.LockBackend == "" {
		cfg.Sync.LockBackend = "memory"
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 15 * time.Minute
	}
	if cfg.Cart.APIURL == "" {
		cfg.Cart.APIURL = "http://localhost:8080"
	}
	if cfg.Cart.StatePath == "" {
		cfg.Cart.StatePath = "kiosk-cart.db"
	}
	if cfg.Cart.Timeout == 0 {
		cfg.Cart.Timeout = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns cannot be negative")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval cannot be negative")
	}
	switch c.Sync.LockBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("sync.lock_backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("sync.lock_backend must be memory or redis, got %q", c.Sync.LockBackend)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Shopify.VerifyWebhook && c.Shopify.WebhookSecret == "" {
			return fmt.Errorf("shopify.webhook_secret is required in production when webhook verification is on")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
