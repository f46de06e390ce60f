// Package world assembles an in-process deployment: token book, native
// bank, position NFT, registry and engine.
package world

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/engine"
	"positionSwap/internal/model"
	"positionSwap/internal/position"
	"positionSwap/internal/token"
)

// World is a complete deployment living in one process.
type World struct {
	Tokens   *token.Book
	Native   *token.Bank
	NFT      *position.MemoryNFT
	Registry *position.Registry
	Engine   *engine.Engine

	logger *zap.Logger
}

// New deploys a fresh world. metrics may be nil.
func New(cfg engine.Config, metrics *engine.Metrics, logger *zap.Logger) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nft := position.NewMemoryNFT()
	registry, err := position.NewRegistry(nft, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("create position registry: %w", err)
	}
	bank := token.NewBank()
	eng, err := engine.New(cfg, bank, registry, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &World{
		Tokens:   token.NewBook(),
		Native:   bank,
		NFT:      nft,
		Registry: registry,
		Engine:   eng,
		logger:   logger,
	}, nil
}

// DeployToken registers a token and opens its pool.
func (w *World) DeployToken(meta model.TokenMeta) (*token.ERC20, error) {
	tok, err := w.Tokens.Deploy(meta)
	if err != nil {
		return nil, err
	}
	if err := w.Engine.CreatePool(tok.Address(), tok); err != nil {
		return nil, err
	}
	w.logger.Info("token deployed",
		zap.String("token", tok.Address().Hex()),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", tok.Meta().Decimals),
	)
	return tok, nil
}

// Token resolves a token by address or symbol (case-insensitive).
func (w *World) Token(ref string) (*token.ERC20, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return w.Tokens.Lookup(common.HexToAddress(ref))
	}
	for _, tok := range w.Tokens.List() {
		if strings.EqualFold(tok.Meta().Symbol, ref) {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("token %q: %w", ref, model.ErrTokenNotFound)
}

// Fund mints tokenAmount of tok and credits nativeAmount to account. Either
// amount may be nil.
func (w *World) Fund(account common.Address, tok *token.ERC20, tokenAmount, nativeAmount *uint256.Int) {
	if tok != nil && tokenAmount != nil && !tokenAmount.IsZero() {
		tok.Mint(account, tokenAmount)
	}
	if nativeAmount != nil && !nativeAmount.IsZero() {
		w.Native.Fund(account, nativeAmount)
	}
}

// ParseTokenSpec parses SYMBOL[:DECIMALS][@ADDRESS]. Without an address the
// token lives at the last 20 bytes of keccak256(symbol).
func ParseTokenSpec(spec string) (model.TokenMeta, error) {
	spec = strings.TrimSpace(spec)
	rest, addr, hasAddr := strings.Cut(spec, "@")
	symbol, decimalsText, hasDecimals := strings.Cut(rest, ":")
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return model.TokenMeta{}, fmt.Errorf("token spec %q: missing symbol", spec)
	}

	meta := model.TokenMeta{Symbol: symbol, Name: symbol, Decimals: model.NativeDecimals}
	if hasDecimals {
		decimals, err := strconv.ParseUint(strings.TrimSpace(decimalsText), 10, 8)
		if err != nil || decimals > 77 {
			return model.TokenMeta{}, fmt.Errorf("token spec %q: invalid decimals", spec)
		}
		meta.Decimals = uint8(decimals)
	}
	if hasAddr {
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return model.TokenMeta{}, fmt.Errorf("token spec %q: invalid address", spec)
		}
		meta.Address = common.HexToAddress(addr)
	} else {
		meta.Address = common.BytesToAddress(crypto.Keccak256([]byte(symbol)))
	}
	return meta, nil
}

// ParseAccount converts a hex address or a name into an account address.
// Names map to the last 20 bytes of keccak256(name) so scripts can say
// "alice".
func ParseAccount(ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return common.Address{}, fmt.Errorf("account is required")
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	if strings.HasPrefix(ref, "0x") {
		return common.Address{}, fmt.Errorf("invalid address: %s", ref)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(strings.ToLower(ref)))), nil
}
