// Package token provides in-process asset collaborators: ERC20-style
// tokens and a native currency bank.
package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// ERC20 is an in-memory fungible token. Transfers report failure instead of
// returning errors, matching the token interface pools consume.
type ERC20 struct {
	mu         sync.RWMutex
	meta       model.TokenMeta
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	blocked    map[common.Address]bool
}

// NewERC20 returns a token with zero supply.
func NewERC20(meta model.TokenMeta) *ERC20 {
	return &ERC20{
		meta:       meta,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		blocked:    make(map[common.Address]bool),
	}
}

func (t *ERC20) Address() common.Address { return t.meta.Address }

func (t *ERC20) Meta() model.TokenMeta { return t.meta }

// Mint credits amount to account. It fails only on supply overflow.
func (t *ERC20) Mint(account common.Address, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(t.supply, amount)
	if overflow {
		return false
	}
	t.supply = supply
	t.credit(account, amount)
	return true
}

func (t *ERC20) Transfer(from, to common.Address, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *ERC20) TransferFrom(spender, from, to common.Address, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := allowanceKey{owner: from, spender: spender}
	allowance := t.allowances[key]
	if spender != from {
		if allowance == nil || allowance.Lt(amount) {
			return false
		}
	}
	if !t.move(from, to, amount) {
		return false
	}
	if spender != from {
		allowance.Sub(allowance, amount)
	}
	return true
}

func (t *ERC20) Approve(owner, spender common.Address, amount *uint256.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if spender == (common.Address{}) {
		return false
	}
	t.allowances[allowanceKey{owner: owner, spender: spender}] = new(uint256.Int).Set(amount)
	return true
}

func (t *ERC20) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v := t.allowances[allowanceKey{owner: owner, spender: spender}]; v != nil {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (t *ERC20) BalanceOf(account common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v := t.balances[account]; v != nil {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (t *ERC20) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.supply)
}

// SetBlocked makes every transfer from or to account fail.
func (t *ERC20) SetBlocked(account common.Address, blocked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if blocked {
		t.blocked[account] = true
		return
	}
	delete(t.blocked, account)
}

func (t *ERC20) move(from, to common.Address, amount *uint256.Int) bool {
	if amount == nil || to == (common.Address{}) || t.blocked[from] || t.blocked[to] {
		return false
	}
	balance := t.balances[from]
	if balance == nil || balance.Lt(amount) {
		return amount.IsZero()
	}
	balance.Sub(balance, amount)
	t.credit(to, amount)
	return true
}

func (t *ERC20) credit(account common.Address, amount *uint256.Int) {
	balance := t.balances[account]
	if balance == nil {
		balance = new(uint256.Int)
		t.balances[account] = balance
	}
	balance.Add(balance, amount)
}
