package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Bank holds native currency balances.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	blocked  map[common.Address]bool
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[common.Address]*uint256.Int),
		blocked:  make(map[common.Address]bool),
	}
}

// Fund credits account out of thin air.
func (b *Bank) Fund(account common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.balances[account]
	if balance == nil {
		balance = new(uint256.Int)
		b.balances[account] = balance
	}
	balance.Add(balance, amount)
}

func (b *Bank) Transfer(from, to common.Address, amount *uint256.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount == nil || to == (common.Address{}) || b.blocked[from] || b.blocked[to] {
		return false
	}
	if amount.IsZero() {
		return true
	}
	balance := b.balances[from]
	if balance == nil || balance.Lt(amount) {
		return false
	}
	balance.Sub(balance, amount)
	dest := b.balances[to]
	if dest == nil {
		dest = new(uint256.Int)
		b.balances[to] = dest
	}
	dest.Add(dest, amount)
	return true
}

func (b *Bank) BalanceOf(account common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v := b.balances[account]; v != nil {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// SetBlocked makes every transfer from or to account fail.
func (b *Bank) SetBlocked(account common.Address, blocked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if blocked {
		b.blocked[account] = true
		return
	}
	delete(b.blocked, account)
}
