package token

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"positionSwap/internal/model"
)

// Book is the set of tokens deployed in the process.
type Book struct {
	mu     sync.RWMutex
	tokens map[common.Address]*ERC20
}

func NewBook() *Book {
	return &Book{tokens: make(map[common.Address]*ERC20)}
}

// Deploy registers a new token under meta.Address.
func (b *Book) Deploy(meta model.TokenMeta) (*ERC20, error) {
	if meta.Address == (common.Address{}) {
		return nil, fmt.Errorf("deploy token %q: zero address", meta.Symbol)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tokens[meta.Address]; ok {
		return nil, fmt.Errorf("deploy token %s: %w", meta.Address.Hex(), model.ErrTokenExists)
	}
	if meta.Decimals == 0 {
		meta.Decimals = model.NativeDecimals
	}
	t := NewERC20(meta)
	b.tokens[meta.Address] = t
	return t, nil
}

func (b *Book) Lookup(address common.Address) (*ERC20, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tokens[address]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", address.Hex(), model.ErrTokenNotFound)
	}
	return t, nil
}

// List returns the deployed tokens ordered by address.
func (b *Book) List() []*ERC20 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*ERC20, 0, len(b.tokens))
	for _, t := range b.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].meta.Address.Hex(), out[j].meta.Address.Hex()) < 0
	})
	return out
}
