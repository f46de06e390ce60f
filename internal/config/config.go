package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "POSITIONSWAP"

// Config holds engine settings shared by the replay and serve commands.
type Config struct {
	ChainID         uint64
	Engine          string
	DepositPolicy   string
	MaxDeviationBps uint64
	Tokens          []string
	Events          string
	PGDSN           string
	Listen          string
	Script          string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"chain-id":          uint64(31337),
		"engine":            "0x00000000000000000000000000000000000005a7",
		"deposit-policy":    "open",
		"max-deviation-bps": uint64(100),
		"events":            "./data/events.jsonl",
		"listen":            ":8080",
		"log-level":         "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ChainID:         v.GetUint64("chain-id"),
		Engine:          v.GetString("engine"),
		DepositPolicy:   v.GetString("deposit-policy"),
		MaxDeviationBps: v.GetUint64("max-deviation-bps"),
		Tokens:          getStringSlice(v, "token"),
		Events:          v.GetString("events"),
		PGDSN:           v.GetString("pg-dsn"),
		Listen:          v.GetString("listen"),
		Script:          v.GetString("script"),
		LogLevel:        v.GetString("log-level"),
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("positionswap")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return splitItems(typed)
	case string:
		return splitItems([]string{typed})
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return splitItems(items)
	default:
		return nil
	}
}

// splitItems flattens comma separated entries and drops blanks.
func splitItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}
