package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig is the relational store connection. URL, when set, wins over the
// discrete fields.
type DBConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig controls API token signing
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// AdminConfig holds the demo admin credentials accepted by the login endpoint.
// An empty password disables the admin login.
type AdminConfig struct {
	Email    string
	Password string
}

type LogConfig struct {
	Level string
}

// TwentyConfig is the default remote CRM connection
type TwentyConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RedisConfig is the offline store connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SyncConfig configures the field sync agent
type SyncConfig struct {
	Port          string
	Store         string
	Interval      time.Duration
	ProbeInterval time.Duration
	RemoteTimeout time.Duration
	// CompanyID selects stored tenant credentials instead of TWENTY_*
	CompanyID uint
}

// Config is everything both binaries read from the environment
type Config struct {
	ServiceName       string
	DB                DBConfig
	Server            ServerConfig
	JWT               JWTConfig
	Admin             AdminConfig
	Log               LogConfig
	Twenty            TwentyConfig
	Redis             RedisConfig
	Sync              SyncConfig
	EncryptionKey     string
	DashboardCacheTTL time.Duration
}

// Load reads the optional .env file, then the environment. Malformed values
// are reported together rather than silently replaced by defaults.
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	var e env
	cfg := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			URL:             e.str("DATABASE_URL", ""),
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.str("DB_PORT", "5432"),
			User:            e.str("DB_USER", "postgres"),
			Password:        e.str("DB_PASSWORD", "password"),
			DBName:          e.str("DB_NAME", "spartan_crm"),
			SSLMode:         e.str("DB_SSL_MODE", "disable"),
			MaxIdleConns:    e.number("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    e.number("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        e.gormLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: e.str("SERVER_PORT", "8080"),
			Env:  e.str("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey:      e.str("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: e.number("JWT_EXPIRATION_HOURS", 24),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(e.str("ADMIN_EMAIL", "admin@spartan.local")),
			Password: e.str("ADMIN_PASSWORD", ""),
		},
		Log:     LogConfig{Level: e.str("LOG_LEVEL", "info")},
		Twenty: TwentyConfig{
			BaseURL: e.str("TWENTY_API_URL", "https://api.twenty.com"),
			APIKey:  e.str("TWENTY_API_KEY", ""),
			Timeout: e.duration("TWENTY_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", "localhost:6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.number("REDIS_DB", 0),
		},
		Sync: SyncConfig{
			Port:          e.str("SYNC_PORT", "8090"),
			Store:         e.str("OFFLINE_STORE", "redis"),
			Interval:      e.duration("SYNC_INTERVAL", 5*time.Minute),
			ProbeInterval: e.duration("SYNC_PROBE_INTERVAL", 30*time.Second),
			RemoteTimeout: e.duration("SYNC_REMOTE_TIMEOUT", 20*time.Second),
			CompanyID:     uint(e.number("SYNC_COMPANY_ID", 0)),
		},
		EncryptionKey:     e.str("ENCRYPTION_KEY", ""),
		DashboardCacheTTL: e.duration("DASHBOARD_CACHE_TTL", 10*time.Minute),
	}

	if cfg.Sync.Store != "redis" && cfg.Sync.Store != "memory" {
		e.fail("OFFLINE_STORE", cfg.Sync.Store, "expected redis or memory")
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogConfig returns the startup fields worth logging. Secrets are left out.
func (c *Config) LogConfig() []zap.Field {
	fields := []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("twenty_url", c.Twenty.BaseURL),
	}
	if c.DB.URL != "" {
		return append(fields, zap.Bool("db_url", true))
	}
	return append(fields,
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName))
}

// env reads variables, collecting parse failures. Unset and empty both mean
// "use the default".
type env struct {
	errs []error
}

func (e *env) fail(key, value, reason string) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %s", key, value, reason))
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) number(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		e.fail(key, raw, "expected a non-negative integer")
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		e.fail(key, raw, "expected a positive duration such as 30s")
		return def
	}
	return v
}

var gormLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func (e *env) gormLevel(key string, def logger.LogLevel) logger.LogLevel {
	raw := strings.ToLower(e.str(key, ""))
	if raw == "" {
		return def
	}
	lvl, ok := gormLevels[raw]
	if !ok {
		e.fail(key, raw, "expected silent, error, warn or info")
		return def
	}
	return lvl
}
