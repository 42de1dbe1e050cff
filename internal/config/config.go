package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"yoketrip/internal/booking"
	"yoketrip/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ScopeAll  = "all"
	ScopeTrip = "trip"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Booking    BookingConfig    `yaml:"booking"`
	Review     ReviewConfig     `yaml:"review"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	BaseURL         string             `yaml:"base_url"`
	Timeout         time.Duration      `yaml:"timeout"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	RateLimit       APIRateLimitConfig `yaml:"rate_limit"`
}

// APIRateLimitConfig throttles outgoing requests. RPS 0 disables the limiter.
type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RealtimeConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Path      string          `yaml:"path"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type BookingConfig struct {
	Scope          string        `yaml:"scope"`
	TripID         string        `yaml:"trip_id"`
	CancelWindow   time.Duration `yaml:"cancel_window"`
	ExpiredPending string        `yaml:"expired_pending"`
}

type ReviewConfig struct {
	Cache                string        `yaml:"cache"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	TreatErrorsAsMissing bool          `yaml:"treat_errors_as_missing"`
}

type SessionConfig struct {
	Token string `yaml:"token"`
	Store string `yaml:"store"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}

	switch c.Booking.Scope {
	case ScopeAll:
	case ScopeTrip:
		if strings.TrimSpace(c.Booking.TripID) == "" {
			return errors.New("booking.trip_id is required for trip scope")
		}
	default:
		return fmt.Errorf("unknown booking.scope %q", c.Booking.Scope)
	}

	if _, err := booking.ParseExpiredPendingPolicy(c.Booking.ExpiredPending); err != nil {
		return err
	}
	if c.Booking.CancelWindow < 0 {
		return errors.New("booking.cancel_window must not be negative")
	}

	if err := validateStore("review.cache", c.Review.Cache, c.Redis); err != nil {
		return err
	}
	return validateStore("session.store", c.Session.Store, c.Redis)
}

func validateStore(field, value string, redis RedisConfig) error {
	switch value {
	case StoreMemory:
		return nil
	case StoreRedis:
		if redis.Address == "" {
			return fmt.Errorf("%s=redis requires redis.address", field)
		}
		return nil
	default:
		return fmt.Errorf("unknown %s %q", field, value)
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "yoketrip-bookings"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = models.DefaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = models.DefaultRequestTimeout
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst <= 0 {
		c.API.RateLimit.Burst = 5
	}

	if c.Realtime.Path == "" {
		c.Realtime.Path = models.DefaultSocketPath
	}
	if c.Realtime.Reconnect.InitialDelay == 0 {
		c.Realtime.Reconnect.InitialDelay = time.Second
	}
	if c.Realtime.Reconnect.MaxDelay == 0 {
		c.Realtime.Reconnect.MaxDelay = 30 * time.Second
	}
	if c.Realtime.Reconnect.BackoffFactor == 0 {
		c.Realtime.Reconnect.BackoffFactor = 2
	}

	c.Booking.Scope = strings.ToLower(strings.TrimSpace(c.Booking.Scope))
	if c.Booking.Scope == "" {
		c.Booking.Scope = ScopeAll
	}
	if c.Booking.CancelWindow == 0 {
		c.Booking.CancelWindow = models.DefaultCancelWindow
	}
	if c.Booking.ExpiredPending == "" {
		c.Booking.ExpiredPending = string(booking.ExpiredPendingDrop)
	}

	c.Review.Cache = strings.ToLower(strings.TrimSpace(c.Review.Cache))
	if c.Review.Cache == "" {
		c.Review.Cache = StoreMemory
	}
	if c.Review.CacheTTL == 0 {
		c.Review.CacheTTL = models.DefaultReviewCacheTTL
	}

	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
}

// PartitionPolicy returns the validated partition policy.
func (c *Config) PartitionPolicy() booking.Policy {
	p, _ := booking.ParseExpiredPendingPolicy(c.Booking.ExpiredPending)
	return booking.Policy{ExpiredPending: p}
}
