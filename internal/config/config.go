// Package config wraps viper with the defaults and environment binding used
// by every WelfareDesk command.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// WELFAREDESK_SERVER_PORT.
const EnvPrefix = "WELFAREDESK"

// Config is a read-only view over a viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil viper yields an empty Config that returns zero values.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

// Load reads the YAML file at path (optional), applies defaults and binds
// WELFAREDESK_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("welfaredesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/welfaredesk")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return New(v), nil
}

// SetDefaults installs the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.secure_cookie", false)

	v.SetDefault("endpoint.base_url", "http://localhost:8081/admin/php/")
	v.SetDefault("endpoint.timeout", "0s")

	v.SetDefault("table.rows_per_page", 10)
	v.SetDefault("table.search_debounce", "300ms")
	v.SetDefault("table.filter_delay", "120ms")
	v.SetDefault("table.filter_threshold", 100)

	v.SetDefault("datastore.stale_responses", "discard")

	v.SetDefault("workspace.idle_ttl", "30m")
	v.SetDefault("workspace.sweep_interval", "1m")

	v.SetDefault("catalog.path", "")

	v.SetDefault("attachments.driver", "memory")
	v.SetDefault("attachments.fs_root", "./uploads")
	v.SetDefault("attachments.s3.region", "us-east-1")

	v.SetDefault("emulator.addr", "127.0.0.1:8081")
	v.SetDefault("emulator.db_path", "welfaredesk-emulator.db")
	v.SetDefault("emulator.prefix", "/admin/php/")
	v.SetDefault("emulator.embedded", false)
	v.SetDefault("emulator.latency", "0s")
	v.SetDefault("emulator.seed", "")

	v.SetDefault("log.development", false)
}

// Viper exposes the underlying viper instance.
func (c *Config) Viper() *viper.Viper { return c.v }

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetStringSlice(key string) []string   { return c.v.GetStringSlice(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree rooted at key. A missing subtree yields an empty
// Config rather than nil.
func (c *Config) Sub(key string) *Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole config into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// ConfigFile returns the path of the file the config was read from, if any.
func (c *Config) ConfigFile() string { return c.v.ConfigFileUsed() }
