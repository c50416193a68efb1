// Package config wraps viper for the telerelay commands: flags, TELERELAY_*
// environment variables and an optional config file in one lookup.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is a read-only view over a viper instance. A nil *Config and
// New(nil) answer every lookup with a zero value.
type Config struct {
	v *viper.Viper
}

// New wraps v.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) viper() *viper.Viper {
	if c == nil || c.v == nil {
		return viper.New()
	}
	return c.v
}

func (c *Config) GetString(key string) string          { return c.viper().GetString(key) }
func (c *Config) GetInt(key string) int                { return c.viper().GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.viper().GetBool(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.viper().GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.viper().IsSet(key) }

// Unmarshal decodes every setting into target through its mapstructure
// tags. Fields target already holds survive when no setting names them.
func (c *Config) Unmarshal(target any) error { return c.viper().Unmarshal(target) }
