// Package config loads the server configuration from defaults, a sudomode.yaml file,
// SUDOMODE_* environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/sudomode/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Session backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Event backends
const (
	EventsNone      = "none"
	EventsGoChannel = "gochannel"
	EventsRedis     = "redis"
)

// Config is the complete server configuration
type Config struct {
	Listen          string              `mapstructure:"listen"`
	LifetimeMinutes int                 `mapstructure:"lifetime_minutes"`
	HelpLink        string              `mapstructure:"help_link"`
	SecurityToken   SecurityTokenConfig `mapstructure:"security_token"`
	Session         SessionConfig       `mapstructure:"session"`
	Redis           RedisConfig         `mapstructure:"redis"`
	Bolt            BoltConfig          `mapstructure:"bolt"`
	Events          EventsConfig        `mapstructure:"events"`
	MembersFile     string              `mapstructure:"members_file"`
	Language        string              `mapstructure:"language"`
	Log             LogConfig           `mapstructure:"log"`
}

type SecurityTokenConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type SessionConfig struct {
	Backend        string        `mapstructure:"backend"`
	TTL            time.Duration `mapstructure:"ttl"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	SigningKeyFile string        `mapstructure:"signing_key_file"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type EventsConfig struct {
	Backend string `mapstructure:"backend"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Defaults returns the default value of every key
func Defaults() map[string]any {
	return map[string]any{
		"listen":                   ":9000",
		"lifetime_minutes":         core.DefaultLifetimeMinutes,
		"help_link":                "",
		"security_token.enabled":   true,
		"session.backend":          BackendMemory,
		"session.ttl":              "24h",
		"session.cookie_secure":    false,
		"session.signing_key_file": "",
		"redis.url":                "redis://localhost:6379/0",
		"bolt.path":                "sudomode.db",
		"events.backend":           EventsNone,
		"members_file":             "members.yaml",
		"language":                 "en",
		"log.debug":                false,
	}
}

// Load builds the configuration. cmd may be nil; configFile overrides the file search when set.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("sudomode")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.AddConfigPath("/etc/sudomode")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, a malformed one is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("sudomode")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := bindFlags(v, cmd); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// bindFlags maps dashed flag names onto their dotted config keys
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key := range Defaults() {
		name := strings.NewReplacer(".", "-", "_", "-").Replace(key)
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	return nil
}

// Validate checks the values that cannot be corrected later
func (c Config) Validate() error {
	if err := (core.SudoModeConfig{LifetimeMinutes: c.LifetimeMinutes}).Validate(); err != nil {
		return err
	}

	switch c.Session.Backend {
	case BackendMemory, BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	switch c.Events.Backend {
	case EventsNone, EventsGoChannel, EventsRedis:
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}

	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	return nil
}

// SudoMode returns the sudo mode part of the configuration
func (c Config) SudoMode() core.SudoModeConfig {
	return core.SudoModeConfig{LifetimeMinutes: c.LifetimeMinutes}
}
