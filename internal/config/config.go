package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers supported by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Mail         MailConfig
	Uploads      UploadConfig
	Applications ApplicationConfig
	RateLimit    RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigin            string
	PublicWebURL          string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values. AuthDSN points at the isolated
// user database and defaults to DSN.
type PostgresConfig struct {
	DSN            string
	AuthDSN        string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI    string
	AppDB  string
	AuthDB string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	TokenTTLHours           int
	RememberTTLDays         int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// MailConfig holds outbound email settings.
type MailConfig struct {
	Enabled           bool
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	From              string
	AdminRecipients   []string
	NotifyTimeoutSecs int
}

// UploadConfig controls where uploaded files land and how large they may be.
type UploadConfig struct {
	Dir          string
	MaxFileMB    int
	MaxBodyMB    int
	PublicPrefix string
}

// ApplicationConfig holds application lifecycle settings.
type ApplicationConfig struct {
	EditWindowDays int
}

// RateLimitConfig throttles the public auth endpoints.
type RateLimitConfig struct {
	AuthPerMinute int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
			CORSOrigin:            getEnv("CORS_ORIGIN", "*"),
			PublicWebURL:          strings.TrimRight(getEnv("PUBLIC_WEB_URL", "http://localhost:5173"), "/"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			AuthDSN:        getEnv("AUTH_POSTGRES_DSN", dsn),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Mongo: MongoConfig{
			URI:    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			AppDB:  getEnv("MONGO_APP_DB", "intake"),
			AuthDB: getEnv("MONGO_AUTH_DB", "intake_auth"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLHours:           getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 8),
			RememberTTLDays:         getEnvAsInt("AUTH_REMEMBER_TTL_DAYS", 30),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Mail: MailConfig{
			Enabled:           getEnvAsBool("MAIL_ENABLED", false),
			SMTPHost:          os.Getenv("SMTP_HOST"),
			SMTPPort:          getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:      os.Getenv("SMTP_USERNAME"),
			SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
			From:              getEnv("MAIL_FROM", "noreply@example.com"),
			AdminRecipients:   splitAndTrim(os.Getenv("MAIL_ADMIN_RECIPIENTS")),
			NotifyTimeoutSecs: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 120),
		},
		Uploads: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "./uploads"),
			MaxFileMB:    getEnvAsInt("UPLOAD_MAX_FILE_MB", 15),
			MaxBodyMB:    getEnvAsInt("UPLOAD_MAX_BODY_MB", 100),
			PublicPrefix: "/uploads",
		},
		Applications: ApplicationConfig{
			EditWindowDays: getEnvAsInt("EDIT_WINDOW_DAYS", 7),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required secrets and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		if !c.App.IsDevelopment() {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
		} else {
			c.Auth.JWTSecret = "dev-secret"
		}
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" && !c.App.IsDevelopment() {
			errs = append(errs, errors.New("POSTGRES_DSN is required"))
		}
	case StoreDriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Mail.Enabled {
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_ENABLED=true"))
		}
		if len(c.Mail.AdminRecipients) == 0 {
			errs = append(errs, errors.New("MAIL_ADMIN_RECIPIENTS is required when MAIL_ENABLED=true"))
		}
	}

	if c.Applications.EditWindowDays <= 0 {
		errs = append(errs, errors.New("EDIT_WINDOW_DAYS must be positive"))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs with development defaults.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(a.Env) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL is the lifetime of a regular session token.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// RememberTTL is the lifetime of a "remember me" session token.
func (a AuthConfig) RememberTTL() time.Duration {
	return time.Duration(a.RememberTTLDays) * 24 * time.Hour
}

// PasswordResetTTL is how long a reset link stays valid.
func (a AuthConfig) PasswordResetTTL() time.Duration {
	return time.Duration(a.PasswordResetTTLMinutes) * time.Minute
}

// NotifyTimeout bounds the background notification work of one write.
func (m MailConfig) NotifyTimeout() time.Duration {
	if m.NotifyTimeoutSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(m.NotifyTimeoutSecs) * time.Second
}

// MaxFileBytes is the per-file upload limit.
func (u UploadConfig) MaxFileBytes() int64 {
	return int64(u.MaxFileMB) << 20
}

// MaxBodyBytes is the request body limit for multipart submissions.
func (u UploadConfig) MaxBodyBytes() int {
	return u.MaxBodyMB << 20
}

// EditWindow is the time span after submission during which edits are allowed.
func (a ApplicationConfig) EditWindow() time.Duration {
	return time.Duration(a.EditWindowDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
