package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionSwap/internal/chain"
	"positionSwap/internal/model"
)

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Decimals returns the cached decimals of a token, or fallback when unknown.
func (c *TokenMetaCache) Decimals(address common.Address, fallback uint8) uint8 {
	if c == nil {
		return fallback
	}
	meta, ok := c.Get(address)
	if !ok || meta.Decimals == 0 {
		return fallback
	}
	return meta.Decimals
}

// FetchTokenMeta loads token metadata via ERC20 calls. Symbol and name are
// best effort; decimals is required.
func FetchTokenMeta(ctx context.Context, chainClient *chain.Client, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token, Decimals: 18}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := chainClient.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s returned nothing", method)
		}
		return values, nil
	}

	values, err := call("decimals")
	if err != nil {
		return meta, err
	}
	switch v := values[0].(type) {
	case uint8:
		meta.Decimals = v
	case *big.Int:
		meta.Decimals = uint8(v.Uint64())
	default:
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}

	for _, field := range []struct {
		method string
		dst    *string
	}{{"symbol", &meta.Symbol}, {"name", &meta.Name}} {
		values, err := call(field.method)
		if err != nil {
			if logger != nil {
				logger.Debug("token metadata call failed", zap.String("token", token.Hex()), zap.String("method", field.method), zap.Error(err))
			}
			continue
		}
		if s, ok := values[0].(string); ok {
			*field.dst = s
		}
	}
	return meta, nil
}
