package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	RPCURL        string
	Input         string
	Window        time.Duration
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":         "./data/typed_events.jsonl",
		"batch-size": 1000,
		"log-level":  "info",
		"window":     "1h",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}

	return AggregateConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Window:        window,
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if val, err := strconv.ParseUint(input, 10, 64); err == nil {
		return val, nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is neither unix seconds nor RFC3339", input)
	}
	return uint64(tm.Unix()), nil
}
