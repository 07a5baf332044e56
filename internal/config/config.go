// Service configuration.
//
// Precedence (lowest first):
//   - built-in defaults
//   - YAML file named by CONFIG_FILE
//   - .env in the working directory
//   - process environment

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config invalid")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Admin     AdminConfig     `yaml:"admin"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Razorpay  RazorpayConfig  `yaml:"razorpay"`
	Storage   StorageConfig   `yaml:"storage"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	OIDC      OIDCConfig      `yaml:"oidc"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwtSecret"`
	AccessTTL      time.Duration `yaml:"accessTTL"`
	RefreshTTL     time.Duration `yaml:"refreshTTL"`
	CookieDomain   string        `yaml:"cookieDomain"`
	CookiePath     string        `yaml:"cookiePath"`
	CookieSecure   bool          `yaml:"cookieSecure"`
	CookieSameSite string        `yaml:"cookieSameSite"`
}

type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"passwordHash"`
	SessionTTL   time.Duration `yaml:"sessionTTL"`
}

type PostgresConfig struct {
	DatabaseURL string `yaml:"databaseURL"`
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslMode"`
}

type RazorpayConfig struct {
	KeyID         string        `yaml:"keyID"`
	KeySecret     string        `yaml:"keySecret"`
	WebhookSecret string        `yaml:"webhookSecret"`
	BaseURL       string        `yaml:"baseURL"`
	Timeout       time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	S3Bucket       string `yaml:"s3Bucket"`
	S3Region       string `yaml:"s3Region"`
	UploadDir      string `yaml:"uploadDir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

type ScannerConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	MaterialsTTL  time.Duration `yaml:"materialsTTL"`
	SitemapTTL    time.Duration `yaml:"sitemapTTL"`
	SiteURL       string        `yaml:"siteURL"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqpURL"`
	Exchange string `yaml:"exchange"`
}

type OIDCConfig struct {
	IssuerURL    string `yaml:"issuerURL"`
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	RedirectURL  string `yaml:"redirectURL"`
}

func (o OIDCConfig) Enabled() bool {
	return o.IssuerURL != "" && o.ClientID != ""
}

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Window          time.Duration `yaml:"window"`
	GlobalRequests  int           `yaml:"globalRequests"`
	LoginRequests   int           `yaml:"loginRequests"`
	PaymentRequests int           `yaml:"paymentRequests"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Verbose bool   `yaml:"verbose"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "5000",
			Env:             "development",
			CleanupInterval: time.Hour,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			CookiePath:     "/",
			CookieSameSite: "lax",
		},
		Admin: AdminConfig{
			SessionTTL: 24 * time.Hour,
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		Razorpay: RazorpayConfig{
			BaseURL: "https://api.razorpay.com",
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir:      "uploads",
			MaxUploadBytes: 10 << 20,
		},
		Scanner: ScannerConfig{
			Address: "tcp://localhost:3310",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			MaterialsTTL: 5 * time.Minute,
			SitemapTTL:   time.Hour,
			SiteURL:      "http://localhost:5000",
		},
		Events: EventsConfig{
			Exchange: "storefront.events",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Window:          15 * time.Minute,
			GlobalRequests:  1000,
			LoginRequests:   5,
			PaymentRequests: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.Server.Port = getenv("PORT", cfg.Server.Port)
	cfg.Server.Env = getenv("APP_ENV", getenv("NODE_ENV", cfg.Server.Env))
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Server.CleanupInterval = getenvDuration("CLEANUP_INTERVAL", cfg.Server.CleanupInterval, collect)

	cfg.Auth.JWTSecret = getenv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTTL = getenvDuration("JWT_ACCESS_TTL", cfg.Auth.AccessTTL, collect)
	cfg.Auth.RefreshTTL = getenvDuration("JWT_REFRESH_TTL", cfg.Auth.RefreshTTL, collect)
	cfg.Auth.CookieDomain = getenv("AUTH_COOKIE_DOMAIN", cfg.Auth.CookieDomain)
	cfg.Auth.CookieSameSite = getenv("AUTH_COOKIE_SAMESITE", cfg.Auth.CookieSameSite)
	cfg.Auth.CookieSecure = getenvBool("AUTH_COOKIE_SECURE", cfg.Auth.CookieSecure || cfg.Server.IsProduction(), collect)

	cfg.Admin.Username = getenv("ADMIN_USERNAME", cfg.Admin.Username)
	cfg.Admin.PasswordHash = getenv("ADMIN_PASSWORD_HASH", cfg.Admin.PasswordHash)
	cfg.Admin.SessionTTL = getenvDuration("ADMIN_SESSION_TTL", cfg.Admin.SessionTTL, collect)

	cfg.Postgres.DatabaseURL = getenv("DATABASE_URL", cfg.Postgres.DatabaseURL)
	cfg.Postgres.Host = getenv("PGHOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getenv("PGPORT", cfg.Postgres.Port)
	cfg.Postgres.User = getenv("PGUSER", cfg.Postgres.User)
	cfg.Postgres.Password = getenv("PGPASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = getenv("PGDATABASE", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = getenv("PGSSLMODE", cfg.Postgres.SSLMode)

	cfg.Razorpay.KeyID = getenv("RAZORPAY_KEY_ID", cfg.Razorpay.KeyID)
	cfg.Razorpay.KeySecret = getenv("RAZORPAY_KEY_SECRET", cfg.Razorpay.KeySecret)
	cfg.Razorpay.WebhookSecret = getenv("RAZORPAY_WEBHOOK_SECRET", cfg.Razorpay.WebhookSecret)
	cfg.Razorpay.BaseURL = getenv("RAZORPAY_BASE_URL", cfg.Razorpay.BaseURL)

	cfg.Storage.S3Bucket = getenv("AWS_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Region = getenv("AWS_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.UploadDir = getenv("UPLOAD_DIR", cfg.Storage.UploadDir)

	cfg.Scanner.Address = getenv("CLAMAV_ADDRESS", cfg.Scanner.Address)
	cfg.Scanner.Timeout = getenvDuration("SCAN_TIMEOUT", cfg.Scanner.Timeout, collect)

	cfg.Cache.RedisAddr = getenv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getenv("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = getenvInt("REDIS_DB", cfg.Cache.RedisDB, collect)
	cfg.Cache.MaterialsTTL = getenvSeconds("MATERIALS_CACHE_TTL_SECONDS", cfg.Cache.MaterialsTTL, collect)
	cfg.Cache.SitemapTTL = getenvSeconds("SITEMAP_CACHE_TTL_SECONDS", cfg.Cache.SitemapTTL, collect)
	cfg.Cache.SiteURL = strings.TrimRight(getenv("SITE_URL", cfg.Cache.SiteURL), "/")

	cfg.Events.AMQPURL = getenv("AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.Exchange = getenv("AMQP_EXCHANGE", cfg.Events.Exchange)

	cfg.OIDC.IssuerURL = getenv("OIDC_ISSUER_URL", cfg.OIDC.IssuerURL)
	cfg.OIDC.ClientID = getenv("OIDC_CLIENT_ID", cfg.OIDC.ClientID)
	cfg.OIDC.ClientSecret = getenv("OIDC_CLIENT_SECRET", cfg.OIDC.ClientSecret)
	cfg.OIDC.RedirectURL = getenv("OIDC_REDIRECT_URL", cfg.OIDC.RedirectURL)

	cfg.RateLimit.Enabled = getenvBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled, collect)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Verbose = getenvBool("VERBOSE_LOGGING", cfg.Log.Verbose, collect)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrInvalid)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", ErrInvalid)
	}
	if strings.EqualFold(c.Auth.CookieSameSite, "none") && !c.Auth.CookieSecure {
		return fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrInvalid)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max upload size must be positive", ErrInvalid)
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool, collect func(error)) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		collect(fmt.Errorf("%w: %s must be a boolean", ErrInvalid, key))
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int, collect func(error)) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		collect(fmt.Errorf("%w: %s must be an integer", ErrInvalid, key))
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration, collect func(error)) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		collect(fmt.Errorf("%w: %s must be a duration", ErrInvalid, key))
		return fallback
	}
	return parsed
}

func getenvSeconds(key string, fallback time.Duration, collect func(error)) time.Duration {
	secs := getenvInt(key, -1, collect)
	if secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
