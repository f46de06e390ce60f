package position

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

// NFT is the ownership registry that holds one token per position.
type NFT interface {
	SetController(controller common.Address) error
	Mint(caller, owner common.Address, id *uint256.Int) error
	Burn(caller common.Address, id *uint256.Int) error
	OwnerOf(id *uint256.Int) (common.Address, error)
	TransferFrom(caller, from, to common.Address, id *uint256.Int) error
}

// MemoryNFT is an in-process NFT registry. Only the controller can mint
// and burn; owners and approved accounts can transfer.
type MemoryNFT struct {
	mu         sync.RWMutex
	controller common.Address
	owners     map[uint256.Int]common.Address
	approved   map[uint256.Int]common.Address
	balances   map[common.Address]uint64
}

// NewMemoryNFT returns an empty registry with no controller.
func NewMemoryNFT() *MemoryNFT {
	return &MemoryNFT{
		owners:   make(map[uint256.Int]common.Address),
		approved: make(map[uint256.Int]common.Address),
		balances: make(map[common.Address]uint64),
	}
}

// SetController binds the only account allowed to mint and burn. It can be
// called once.
func (n *MemoryNFT) SetController(controller common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.controller != (common.Address{}) {
		return model.ErrControllerAlreadySet
	}
	if controller == (common.Address{}) {
		return fmt.Errorf("set controller: zero address")
	}
	n.controller = controller
	return nil
}

func (n *MemoryNFT) Mint(caller, owner common.Address, id *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireController(caller); err != nil {
		return err
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("mint %s: zero owner", id.Dec())
	}
	if _, ok := n.owners[*id]; ok {
		return fmt.Errorf("mint %s: %w", id.Dec(), model.ErrTokenExists)
	}
	n.owners[*id] = owner
	n.balances[owner]++
	return nil
}

func (n *MemoryNFT) Burn(caller common.Address, id *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireController(caller); err != nil {
		return err
	}
	owner, ok := n.owners[*id]
	if !ok {
		return fmt.Errorf("burn %s: %w", id.Dec(), model.ErrPositionNotFound)
	}
	delete(n.owners, *id)
	delete(n.approved, *id)
	n.balances[owner]--
	if n.balances[owner] == 0 {
		delete(n.balances, owner)
	}
	return nil
}

func (n *MemoryNFT) OwnerOf(id *uint256.Int) (common.Address, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[*id]
	if !ok {
		return common.Address{}, model.ErrPositionNotFound
	}
	return owner, nil
}

// Approve lets spender transfer a single token on the owner's behalf.
func (n *MemoryNFT) Approve(caller, spender common.Address, id *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[*id]
	if !ok {
		return model.ErrPositionNotFound
	}
	if owner != caller {
		return model.ErrNotOwner
	}
	n.approved[*id] = spender
	return nil
}

func (n *MemoryNFT) TransferFrom(caller, from, to common.Address, id *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[*id]
	if !ok {
		return model.ErrPositionNotFound
	}
	if owner != from {
		return fmt.Errorf("transfer %s: %w", id.Dec(), model.ErrNotOwner)
	}
	if caller != from && n.approved[*id] != caller {
		return fmt.Errorf("transfer %s: caller %s: %w", id.Dec(), caller.Hex(), model.ErrNotOwner)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer %s: zero recipient", id.Dec())
	}
	delete(n.approved, *id)
	n.owners[*id] = to
	n.balances[from]--
	if n.balances[from] == 0 {
		delete(n.balances, from)
	}
	n.balances[to]++
	return nil
}

// BalanceOf returns how many tokens owner holds.
func (n *MemoryNFT) BalanceOf(owner common.Address) uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.balances[owner]
}

func (n *MemoryNFT) requireController(caller common.Address) error {
	if n.controller == (common.Address{}) || caller != n.controller {
		return model.ErrNotController
	}
	return nil
}
