// Package config reads service settings from the environment.
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

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	ORS      ORSConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Planner  PlannerConfig
}

type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type DatabaseConfig struct {
	// "sqlite" or "pgx".
	Driver string
	Path   string
	URL    string
}

type RedisConfig struct {
	// Empty disables the Redis route cache.
	Addr     string
	Password string
	DB       int
}

type ORSConfig struct {
	// Empty switches the service to the straight-line mock router.
	APIKey  string
	BaseURL string
	Profile string
	Timeout time.Duration
	// Attempts per request including the first.
	MaxAttempts int
	Backoff     time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type PlannerConfig struct {
	RequireFutureDeparture bool
	SafetyWait             time.Duration
	RouteCacheTTL          time.Duration
}

// LoadDotEnv loads .env into the environment if the file exists. It reports
// whether a file was loaded.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              Get("PORT", "8080"),
			ReadHeaderTimeout: GetDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       GetDuration("READ_TIMEOUT", 10*time.Second),
			// Cold route lookups wait on the routing provider.
			WriteTimeout: GetDuration("WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  GetDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Driver: Get("DB_DRIVER", "sqlite"),
			Path:   Get("DB_PATH", "data/app.db"),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       GetInt("REDIS_DB", 0),
		},
		ORS: ORSConfig{
			APIKey:  strings.TrimSpace(os.Getenv("ORS_API_KEY")),
			BaseURL: Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
			Profile: Get("ORS_PROFILE", "driving-hgv"),
			Timeout: GetDuration("ORS_TIMEOUT", 10*time.Second),

			MaxAttempts: GetInt("ORS_MAX_ATTEMPTS", 4),
			Backoff:     GetDuration("ORS_BACKOFF", 200*time.Millisecond),
		},
		Security: SecurityConfig{
			AllowedOrigins: GetStrings("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   GetFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst: GetInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  Get("LOG_LEVEL", "info"),
			Format: Get("LOG_FORMAT", "json"),
		},
		Planner: PlannerConfig{
			RequireFutureDeparture: GetBool("REQUIRE_FUTURE_DEPARTURE", false),
			SafetyWait:             GetDuration("SAFETY_WAIT", 0),
			RouteCacheTTL:          GetDuration("ROUTE_CACHE_TTL", 24*time.Hour),
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT is empty"))
	} else if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %q is not a number", c.Server.Port))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "pgx", "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for pgx"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be sqlite or pgx", c.Database.Driver))
	}

	if c.Security.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.Security.RateLimitRPS > 0 && c.Security.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be at least 1 when rate limiting is on"))
	}
	if c.ORS.MaxAttempts < 1 {
		errs = append(errs, errors.New("ORS_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Planner.SafetyWait < 0 {
		errs = append(errs, errors.New("SAFETY_WAIT must not be negative"))
	}
	if c.Planner.RouteCacheTTL < 0 {
		errs = append(errs, errors.New("ROUTE_CACHE_TTL must not be negative"))
	}

	return errors.Join(errs...)
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func GetFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func GetBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// GetDuration accepts Go duration syntax ("90s", "1h30m").
func GetDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

// GetStrings splits a comma-separated value and drops empty items.
func GetStrings(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}

	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
