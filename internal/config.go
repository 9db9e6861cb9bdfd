package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/certhub/internal/api"
	"github.com/starford/certhub/internal/kvstore"
	"github.com/starford/certhub/internal/pipeline"
	"github.com/starford/certhub/internal/toast"
)

// Auth modes.
const (
	AuthModeDisabled = api.AuthDisabled
	AuthModeToken    = api.AuthToken
	AuthModeSession  = api.AuthSession
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Auth      AuthConfig        `yaml:"auth"`
	Store     StoreConfig       `yaml:"store"`
	Latency   LatencyConfig     `yaml:"latency"`
	KV        KVConfig          `yaml:"kv"`
	Toast     ToastConfig       `yaml:"toast"`
	Search    SearchConfig      `yaml:"search"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Auth, &c.Store, &c.Latency, &c.KV, &c.Toast, &c.Search, &c.RateLimit, &c.Events,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how API requests are authenticated:
//   - "disabled" (default): no credentials required.
//   - "token": a static bearer token; Token must be set.
//   - "session": bearer session tokens issued by POST /api/auth/login and
//     signed with Secret.
type AuthConfig struct {
	Mode       string        `yaml:"mode"`
	Token      string        `yaml:"token"`
	Secret     string        `yaml:"secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	DemoUser   string        `yaml:"demo_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeSession)),
		validation.Field(&c.SessionTTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Mode == AuthModeSession && len(c.Secret) < 16 {
		return fmt.Errorf("auth: mode is %q but secret is shorter than 16 bytes", AuthModeSession)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != AuthModeDisabled
}

// StoreConfig holds the certificate store settings.
type StoreConfig struct {
	PageSize  int    `yaml:"page_size"`
	SeedPath  string `yaml:"seed_path"`
	WatchSeed bool   `yaml:"watch_seed"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
	); err != nil {
		return err
	}
	if c.WatchSeed && c.SeedPath == "" {
		return fmt.Errorf("store: watch_seed requires seed_path")
	}
	return nil
}

// LatencyConfig bounds the simulated latency and fault rate of collaborator calls.
type LatencyConfig struct {
	Min       time.Duration `yaml:"min"`
	Max       time.Duration `yaml:"max"`
	ErrorRate float64       `yaml:"error_rate"`
}

// Validate validates the latency configuration.
func (c *LatencyConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Min, validation.Min(time.Duration(0))),
		validation.Field(&c.ErrorRate, validation.Min(0.0), validation.Max(1.0)),
	); err != nil {
		return err
	}
	if c.Max < c.Min {
		return fmt.Errorf("latency: max %s is below min %s", c.Max, c.Min)
	}
	return nil
}

// KVConfig selects the persisted-flag store.
type KVConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the kv configuration.
func (c *KVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(kvstore.DriverSQLite, kvstore.DriverFS, kvstore.DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver != kvstore.DriverMemory, validation.Required)),
	)
}

// ToastConfig holds toast queue settings.
type ToastConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
}

// Validate validates the toast configuration.
func (c *ToastConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultDuration, validation.Required, validation.Min(time.Millisecond)),
	)
}

// SearchConfig holds the feed search settings.
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// RateLimitConfig configures per-client rate limiting. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RPS, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.When(c.RPS > 0, validation.Required, validation.Min(1))),
	)
}

// EventsConfig holds the SSE broker settings.
type EventsConfig struct {
	FeedThrottle time.Duration `yaml:"feed_throttle"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FeedThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode:       AuthModeDisabled,
			SessionTTL: 24 * time.Hour,
		},
		Store: StoreConfig{
			PageSize: pipeline.DefaultPageSize,
		},
		Latency: LatencyConfig{
			Min: 200 * time.Millisecond,
			Max: 800 * time.Millisecond,
		},
		KV: KVConfig{
			Driver: kvstore.DriverSQLite,
			Path:   "./certhub.db",
		},
		Toast: ToastConfig{
			DefaultDuration: toast.DefaultDuration,
		},
		Search: SearchConfig{
			Debounce: api.DefaultSearchDebounce,
		},
		Events: EventsConfig{
			FeedThrottle: time.Second,
			Heartbeat:    15 * time.Second,
		},
	}
}
