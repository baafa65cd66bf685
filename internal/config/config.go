// Package config loads itemwatch settings from a YAML file, ITEMWATCH_*
// environment variables and flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dir is the per-user settings directory under $HOME.
const Dir = ".itemwatch"

// Config is the resolved configuration.
type Config struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Container      string        `mapstructure:"container"`
	Environment    string        `mapstructure:"environment"`
	Database       string        `mapstructure:"database"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 0 = none
	Theme          string        `mapstructure:"theme"`
	Color          string        `mapstructure:"color"` // auto | always | never

	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
	File   string `mapstructure:"file"`
}

type ServerConfig struct {
	Listen     string  `mapstructure:"listen"`
	Driver     string  `mapstructure:"driver"` // memory | sqlite | postgres
	DSN        string  `mapstructure:"dsn"`
	Fixtures   string  `mapstructure:"fixtures"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests/second, 0 = unlimited
	Burst      int     `mapstructure:"burst"`
	TrustProxy bool    `mapstructure:"trust_proxy"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// New returns a viper instance with defaults and env binding applied.
// Callers bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("endpoint", "http://localhost:8787")
	v.SetDefault("container", "iCloud.com.example.itemwatch")
	v.SetDefault("environment", "development")
	v.SetDefault("database", "public")
	v.SetDefault("request_timeout", 0)
	v.SetDefault("theme", "classic")
	v.SetDefault("color", "auto")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.listen", ":8787")
	v.SetDefault("server.driver", "memory")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")

	v.SetEnvPrefix("ITEMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// api_token is never given a default, so AutomaticEnv alone would not
	// surface it through Unmarshal.
	_ = v.BindEnv("api_token")
	_ = v.BindEnv("server.dsn")
	_ = v.BindEnv("server.fixtures")
	_ = v.BindEnv("log.file")
	return v
}

// Load reads cfgFile, or config.yaml from ~/.itemwatch when cfgFile is
// empty. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, Dir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	if cfg.APIToken == "" {
		ti, err := ReadToken()
		if err != nil {
			return nil, err
		}
		if ti != nil {
			cfg.APIToken = ti.Token
		}
	}
	return &cfg, cfg.Validate()
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	switch c.Database {
	case "public", "private":
	default:
		return fmt.Errorf("database must be public or private, got %q", c.Database)
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", c.Color)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Server.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("server.driver must be memory, sqlite or postgres, got %q", c.Server.Driver)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	return nil
}
