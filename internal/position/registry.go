// Package position tracks live positions and their ownership tokens.
package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"positionSwap/internal/model"
)

// Registry assigns position ids, stores position snapshots and mirrors
// ownership into the NFT registry. Sequence numbers are per pool and are
// never handed out twice.
type Registry struct {
	mu        sync.RWMutex
	nft       NFT
	self      common.Address
	nextSeq   map[common.Address]uint64
	positions map[model.PositionID]model.Position
}

// NewRegistry binds the registry to nft as its controller.
func NewRegistry(nft NFT, self common.Address) (*Registry, error) {
	if err := nft.SetController(self); err != nil {
		return nil, fmt.Errorf("bind position nft: %w", err)
	}
	return &Registry{
		nft:       nft,
		self:      self,
		nextSeq:   make(map[common.Address]uint64),
		positions: make(map[model.PositionID]model.Position),
	}, nil
}

// NextID returns the id the next Create for pool will assign.
func (r *Registry) NextID(pool common.Address) model.PositionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.PositionID{Pool: pool, Seq: r.nextSeq[pool]}
}

// Create assigns the next id of pos.ID.Pool, mints it to owner and stores the
// snapshot. Nothing is consumed when minting fails.
func (r *Registry) Create(owner common.Address, pos model.Position) (model.PositionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := model.PositionID{Pool: pos.ID.Pool, Seq: r.nextSeq[pos.ID.Pool]}
	if err := r.nft.Mint(r.self, owner, id.Uint256()); err != nil {
		return model.PositionID{}, fmt.Errorf("mint position %s: %w", id, err)
	}
	stored := pos.Clone()
	stored.ID = id
	stored.Owner = common.Address{}
	r.positions[id] = stored
	r.nextSeq[id.Pool] = id.Seq + 1
	return id, nil
}

// Remove burns the position and returns its last snapshot.
func (r *Registry) Remove(id model.PositionID) (model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(id, nil)
}

// RemoveOwned burns the position only while owner still holds it. The owner
// check and the burn happen under one lock, so a concurrent Transfer either
// lands first and fails the check or waits for the burn.
func (r *Registry) RemoveOwned(id model.PositionID, owner common.Address) (model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(id, &owner)
}

func (r *Registry) remove(id model.PositionID, expected *common.Address) (model.Position, error) {
	pos, ok := r.positions[id]
	if !ok {
		return model.Position{}, model.ErrPositionNotFound
	}
	owner, err := r.nft.OwnerOf(id.Uint256())
	if err != nil {
		return model.Position{}, fmt.Errorf("owner of %s: %w", id, err)
	}
	if expected != nil && owner != *expected {
		return model.Position{}, fmt.Errorf("position %s: %w", id, model.ErrNotOwner)
	}
	if err := r.nft.Burn(r.self, id.Uint256()); err != nil {
		return model.Position{}, fmt.Errorf("burn position %s: %w", id, err)
	}
	delete(r.positions, id)
	pos.Owner = owner
	return pos, nil
}

// Restore puts back a position removed by Remove, minting it to its owner
// again. It is used to undo a removal whose settlement failed.
func (r *Registry) Restore(pos model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[pos.ID]; ok {
		return fmt.Errorf("restore position %s: %w", pos.ID, model.ErrTokenExists)
	}
	if err := r.nft.Mint(r.self, pos.Owner, pos.ID.Uint256()); err != nil {
		return fmt.Errorf("restore position %s: %w", pos.ID, err)
	}
	stored := pos.Clone()
	stored.Owner = common.Address{}
	r.positions[pos.ID] = stored
	return nil
}

// Get returns the snapshot of a live position with its current owner.
func (r *Registry) Get(id model.PositionID) (model.Position, error) {
	r.mu.RLock()
	pos, ok := r.positions[id]
	r.mu.RUnlock()
	if !ok {
		return model.Position{}, model.ErrPositionNotFound
	}
	owner, err := r.nft.OwnerOf(id.Uint256())
	if err != nil {
		if errors.Is(err, model.ErrPositionNotFound) {
			return model.Position{}, err
		}
		return model.Position{}, fmt.Errorf("owner of %s: %w", id, err)
	}
	out := pos.Clone()
	out.Owner = owner
	return out, nil
}

// Transfer moves a position to a new owner through the NFT registry.
func (r *Registry) Transfer(caller, to common.Address, id model.PositionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[id]; !ok {
		return model.ErrPositionNotFound
	}
	owner, err := r.nft.OwnerOf(id.Uint256())
	if err != nil {
		return err
	}
	return r.nft.TransferFrom(caller, owner, to, id.Uint256())
}

// List returns the live positions of pool ordered by sequence.
func (r *Registry) List(pool common.Address) ([]model.Position, error) {
	r.mu.RLock()
	ids := make([]model.PositionID, 0)
	for id := range r.positions {
		if id.Pool == pool {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].Seq < ids[j].Seq })

	out := make([]model.Position, 0, len(ids))
	for _, id := range ids {
		pos, err := r.Get(id)
		if err != nil {
			if errors.Is(err, model.ErrPositionNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// Count returns how many positions of pool are live.
func (r *Registry) Count(pool common.Address) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for id := range r.positions {
		if id.Pool == pool {
			n++
		}
	}
	return n
}
