package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"coachhub/internal/utils/appinfo"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Auth       AuthConfig
	Logging    LoggingConfig
	Badges     BadgeConfig
	Monitoring MonitoringConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	ServerName      string
	CORSOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL                 string
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	ConnMaxIdleTime     time.Duration
	SlowQueryThreshold  time.Duration
	HealthCheckInterval time.Duration
	MigrationsPath      string
	AutoMigrate         bool
	ConnectTimeout      time.Duration
	MaxRetryElapsed     time.Duration
}

// CacheConfig selects the catalog cache backend
type CacheConfig struct {
	Provider   string // "memory", "redis" or "none"
	MaxEntries int
	DefaultTTL time.Duration
	RedisURL   string
	KeyPrefix  string
}

// AuthConfig holds bearer token settings for the trigger endpoints
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	CoachRoles  []string
	AdminRoles  []string
	DisableAuth bool
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// BadgeConfig holds badge engine settings
type BadgeConfig struct {
	Schedule         string
	SchedulerEnabled bool
	CatalogFile      string
	CatalogCacheTTL  time.Duration
	RunTimeout       time.Duration
}

// MonitoringConfig holds metrics settings
type MonitoringConfig struct {
	EnableMetrics bool
	MetricsPath   string
}

// Load reads configuration from the environment. Outside production a
// .env.<GO_ENV> file, or .env, is loaded first.
func Load() (*Config, error) {
	env := appinfo.Environment()
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	config := &Config{
		Server:     loadServerConfig(env),
		Database:   loadDatabaseConfig(env),
		Cache:      loadCacheConfig(),
		Auth:       loadAuthConfig(env),
		Logging:    loadLoggingConfig(env),
		Badges:     loadBadgeConfig(),
		Monitoring: loadMonitoringConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		ServerName:      getEnv("SERVER_NAME", "CoachHub"),
		CORSOrigins:     getListEnv("CORS_ORIGINS", "*"),
	}
}

func loadDatabaseConfig(env string) DatabaseConfig {
	config := DatabaseConfig{
		URL:                 getEnv("DATABASE_URL", ""),
		MaxOpenConns:        getIntEnv("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:        getIntEnv("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:     getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime:     getDurationEnv("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		SlowQueryThreshold:  getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		HealthCheckInterval: getDurationEnv("DB_HEALTH_CHECK_INTERVAL", 30*time.Second),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "migrations"),
		AutoMigrate:         getBoolEnv("DB_AUTO_MIGRATE", env != "production"),
		ConnectTimeout:      getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
		MaxRetryElapsed:     getDurationEnv("DB_MAX_RETRY_ELAPSED", time.Minute),
	}

	if env == "development" {
		config.MaxOpenConns = min(config.MaxOpenConns, 10)
		config.MaxIdleConns = min(config.MaxIdleConns, config.MaxOpenConns)
	}
	return config
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:   strings.ToLower(getEnv("CACHE_PROVIDER", "memory")),
		MaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 256),
		DefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "coachhub:"),
	}
}

func loadAuthConfig(env string) AuthConfig {
	return AuthConfig{
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		CoachRoles:  getListEnv("AUTH_COACH_ROLES", "coach,admin"),
		AdminRoles:  getListEnv("AUTH_ADMIN_ROLES", "admin"),
		DisableAuth: getBoolEnv("AUTH_DISABLED", env == "development"),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format: getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
	}
}

func loadBadgeConfig() BadgeConfig {
	return BadgeConfig{
		Schedule:         getEnv("BADGE_SCHEDULE", "0 */6 * * *"),
		SchedulerEnabled: getBoolEnv("BADGE_SCHEDULER_ENABLED", true),
		CatalogFile:      getEnv("BADGE_CATALOG_FILE", ""),
		CatalogCacheTTL:  getDurationEnv("BADGE_CATALOG_CACHE_TTL", 5*time.Minute),
		RunTimeout:       getDurationEnv("BADGE_RUN_TIMEOUT", 30*time.Minute),
	}
}

func loadMonitoringConfig() MonitoringConfig {
	return MonitoringConfig{
		EnableMetrics: getBoolEnv("ENABLE_METRICS", true),
		MetricsPath:   getEnv("METRICS_PATH", "/metrics"),
	}
}

// ===============================
// VALIDATION
// ===============================

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server config: %w", err))
	}
	// A file-backed catalog still needs the database for skills and awards.
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database config: %w", err))
	}
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache config: %w", err))
	}
	if err := c.Auth.Validate(c.Server.Environment); err != nil {
		errs = append(errs, fmt.Errorf("auth config: %w", err))
	}
	if err := c.Badges.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("badge config: %w", err))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}
	return nil
}

func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}
	if d.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}
	if d.ConnMaxLifetime <= 0 {
		return fmt.Errorf("ConnMaxLifetime must be positive")
	}
	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Provider {
	case "none":
	case "memory":
		if c.MaxEntries <= 0 {
			return fmt.Errorf("CACHE_MAX_ENTRIES must be positive")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis provider")
		}
	default:
		return fmt.Errorf("unknown CACHE_PROVIDER %q", c.Provider)
	}
	return nil
}

func (a *AuthConfig) Validate(env string) error {
	if a.DisableAuth {
		if env == "production" {
			return fmt.Errorf("AUTH_DISABLED cannot be set in production")
		}
		return nil
	}
	if a.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(a.CoachRoles) == 0 {
		return fmt.Errorf("AUTH_COACH_ROLES cannot be empty")
	}
	return nil
}

func (b *BadgeConfig) Validate() error {
	if b.SchedulerEnabled {
		if _, err := cron.ParseStandard(b.Schedule); err != nil {
			return fmt.Errorf("invalid BADGE_SCHEDULE %q: %w", b.Schedule, err)
		}
	}
	if b.CatalogCacheTTL < 0 {
		return fmt.Errorf("BADGE_CATALOG_CACHE_TTL cannot be negative")
	}
	if b.RunTimeout <= 0 {
		return fmt.Errorf("BADGE_RUN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// ===============================
// ENV HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
