// Package config loads relay configuration from a TOML file, an optional
// .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/relay/pkg/llm"
)

// Store drivers.
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Inference providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config is the full relay configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Session   SessionConfig   `toml:"session"`
	Prompt    PromptConfig    `toml:"prompt"`
	Inference InferenceConfig `toml:"inference"`
	Gateway   GatewayConfig   `toml:"gateway"`
}

// ServerConfig configures the webhook listener.
type ServerConfig struct {
	// Address to listen on (e.g., ":5000")
	ListenAddr string `toml:"listen"`

	// Path the gateway posts webhook events to
	WebhookPath string `toml:"webhook_path"`
}

// StoreConfig selects and configures the key-value backing store.
type StoreConfig struct {
	Driver  string   `toml:"driver"`
	Timeout Duration `toml:"timeout"`

	Redis    RedisConfig    `toml:"redis"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SQLiteConfig holds the sqlite database path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds the postgres DSN.
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// SessionConfig controls how session state is keyed and guarded.
type SessionConfig struct {
	KeyPrefix       string `toml:"key_prefix"`
	SerializePerKey bool   `toml:"serialize_per_key"`
}

// PromptConfig controls context composition.
type PromptConfig struct {
	System          string `toml:"system"`
	InjectTime      bool   `toml:"inject_time"`
	Timezone        string `toml:"timezone"`
	TimeLayout      string `toml:"time_layout"`
	MaxHistoryTurns int    `toml:"max_history_turns"`
}

// InferenceConfig selects the inference provider.
type InferenceConfig struct {
	Provider string      `toml:"provider"`
	Model    string      `toml:"model"`
	BaseURL  string      `toml:"base_url"`
	APIKey   string      `toml:"api_key"`
	Timeout  Duration    `toml:"timeout"`
	Options  llm.Options `toml:"options"`
}

// GatewayConfig configures outbound replies.
type GatewayConfig struct {
	URL     string   `toml:"url"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// Duration wraps time.Duration so TOML files can say "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":5000",
			WebhookPath: "/webhook",
		},
		Store: StoreConfig{
			Driver:  DriverRedis,
			Timeout: Duration{5 * time.Second},
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
			SQLite: SQLiteConfig{Path: "relay.db"},
		},
		Session: SessionConfig{
			KeyPrefix:       "",
			SerializePerKey: true,
		},
		Prompt: PromptConfig{
			InjectTime: true,
			Timezone:   "America/Sao_Paulo",
			TimeLayout: "Monday, 02 January 2006 15:04 MST",
		},
		Inference: InferenceConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o",
			Timeout:  Duration{60 * time.Second},
			Options: llm.Options{
				Temperature: llm.Float64(llm.DefaultTemperature),
			},
		},
		Gateway: GatewayConfig{
			URL:     "http://evolution-api:8080/message/sendText",
			Timeout: Duration{15 * time.Second},
		},
	}
}

// Load builds a Config from defaults, the TOML file at path (if non-empty),
// a .env file in the working directory (if present) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays environment variables. The first group keeps the names
// the gateway deployment already uses.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("EVOLUTION_API_KEY", &c.Gateway.APIKey)
	setString("EVOLUTION_API_URL", &c.Gateway.URL)
	setString("REDIS_HOST", &c.Store.Redis.Host)
	setString("REDIS_PASSWORD", &c.Store.Redis.Password)
	setString("OPENAI_API_KEY", &c.Inference.APIKey)
	if err := setInt("REDIS_PORT", &c.Store.Redis.Port); err != nil {
		return err
	}
	if err := setInt("REDIS_DB", &c.Store.Redis.DB); err != nil {
		return err
	}

	setString("RELAY_LISTEN", &c.Server.ListenAddr)
	setString("RELAY_STORE_DRIVER", &c.Store.Driver)
	setString("RELAY_SQLITE_PATH", &c.Store.SQLite.Path)
	setString("RELAY_POSTGRES_DSN", &c.Store.Postgres.DSN)
	setString("RELAY_INFERENCE_PROVIDER", &c.Inference.Provider)
	setString("RELAY_MODEL", &c.Inference.Model)
	setString("RELAY_INFERENCE_BASE_URL", &c.Inference.BaseURL)
	setString("RELAY_TIMEZONE", &c.Prompt.Timezone)

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen cannot be empty")
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return fmt.Errorf("server.webhook_path must start with /, got %q", c.Server.WebhookPath)
	}

	switch c.Store.Driver {
	case DriverRedis:
		if c.Store.Redis.Host == "" || c.Store.Redis.Port <= 0 {
			return errors.New("store.redis needs a host and a positive port")
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path cannot be empty")
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn cannot be empty")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Inference.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown inference provider %q", c.Inference.Provider)
	}
	if c.Inference.Model == "" {
		return errors.New("inference.model cannot be empty")
	}

	if c.Prompt.MaxHistoryTurns < 0 {
		return errors.New("prompt.max_history_turns cannot be negative")
	}
	if c.Prompt.InjectTime {
		if _, err := time.LoadLocation(c.Prompt.Timezone); err != nil {
			return fmt.Errorf("prompt.timezone: %w", err)
		}
	}

	if c.Gateway.URL == "" {
		return errors.New("gateway.url cannot be empty")
	}

	for name, d := range map[string]Duration{
		"store.timeout":     c.Store.Timeout,
		"inference.timeout": c.Inference.Timeout,
		"gateway.timeout":   c.Gateway.Timeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}
