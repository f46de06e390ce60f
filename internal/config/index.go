package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// IndexConfig holds configuration for the index command.
type IndexConfig struct {
	RPCURL       string
	Pool         common.Address
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	Out          string
	StateFile    string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
// The pool address falls back to the engine address shared with replay and serve.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"engine":        "0x00000000000000000000000000000000000005a7",
		"batch-size":    uint64(2000),
		"out":           "./data/events.jsonl",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return IndexConfig{}, err
	}

	pool := v.GetString("pool")
	if pool == "" {
		pool = v.GetString("engine")
	}
	if !common.IsHexAddress(pool) {
		return IndexConfig{}, fmt.Errorf("invalid pool address: %q", pool)
	}

	cfg := IndexConfig{
		RPCURL:       v.GetString("rpc"),
		Pool:         common.HexToAddress(pool),
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		BatchSize:    v.GetUint64("batch-size"),
		Out:          v.GetString("out"),
		StateFile:    v.GetString("state-file"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return IndexConfig{}, fmt.Errorf("to block %d is before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	return cfg, nil
}
