package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TELERELAY_PORT.
const EnvPrefix = "TELERELAY"

// FileFlag names the flag holding the optional config file path.
const FileFlag = "config"

// keyAnnotation is the pflag annotation carrying a flag's config key.
const keyAnnotation = "telerelay_config_key"

// BindKey stores flag under key instead of its default key, so a flag can
// fill a nested setting: BindKey(fs, "mqtt-qos", "mqtt.qos").
func BindKey(fs *pflag.FlagSet, flag, key string) error {
	return fs.SetAnnotation(flag, keyAnnotation, []string{key})
}

// Key maps a flag name to its default config key: "io-timeout" becomes
// "io_timeout", read from TELERELAY_IO_TIMEOUT.
func Key(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func flagKey(f *pflag.Flag) string {
	if keys := f.Annotations[keyAnnotation]; len(keys) == 1 {
		return keys[0]
	}
	return Key(f.Name)
}

// Load binds every flag in fs and reads the file named by --config, if any.
// Precedence, highest first: flags set on the command line, environment,
// config file, flag defaults. Nested keys read their environment with
// dots as underscores: mqtt.qos from TELERELAY_MQTT_QOS.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == FileFlag {
			return
		}
		if err := v.BindPFlag(flagKey(f), f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if f := fs.Lookup(FileFlag); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", f.Value.String(), err)
		}
	}

	return New(v), nil
}
