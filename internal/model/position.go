package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// seqBits is the width of the per-pool sequence inside a flat position id.
const seqBits = 96

// PositionID is the composite key of a position: the pool's token and the
// per-pool sequence number assigned at deposit time.
type PositionID struct {
	Pool common.Address
	Seq  uint64
}

// Uint256 packs the id as (pool << 96) | seq.
func (id PositionID) Uint256() *uint256.Int {
	packed := new(uint256.Int).SetBytes(id.Pool.Bytes())
	packed.Lsh(packed, seqBits)
	return packed.Or(packed, uint256.NewInt(id.Seq))
}

// String returns the base-10 flat id.
func (id PositionID) String() string {
	return id.Uint256().Dec()
}

// PositionIDFromUint256 unpacks a flat id. Sequences wider than 64 bits are
// never issued and are rejected.
func PositionIDFromUint256(packed *uint256.Int) (PositionID, error) {
	if packed == nil {
		return PositionID{}, ErrInvalidPositionID
	}
	seq := new(uint256.Int).Lsh(packed, 256-seqBits)
	seq.Rsh(seq, 256-seqBits)
	if !seq.IsUint64() {
		return PositionID{}, fmt.Errorf("%w: sequence overflows 64 bits", ErrInvalidPositionID)
	}
	pool := new(uint256.Int).Rsh(packed, seqBits)
	bytes := pool.Bytes20()
	id := PositionID{Pool: common.BytesToAddress(bytes[:]), Seq: seq.Uint64()}
	if id.Pool == (common.Address{}) {
		return PositionID{}, fmt.Errorf("%w: zero pool", ErrInvalidPositionID)
	}
	return id, nil
}

// ParsePositionID accepts a base-10 or 0x-prefixed hex flat id.
func ParsePositionID(input string) (PositionID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return PositionID{}, ErrInvalidPositionID
	}
	var (
		packed *uint256.Int
		err    error
	)
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		packed, err = uint256.FromHex(input)
	} else {
		packed, err = uint256.FromDecimal(input)
	}
	if err != nil {
		return PositionID{}, fmt.Errorf("%w: %v", ErrInvalidPositionID, err)
	}
	return PositionIDFromUint256(packed)
}

// Position is the stored snapshot of one deposit.
type Position struct {
	ID                  PositionID
	Owner               common.Address
	DepositToken        *uint256.Int
	DepositNative       *uint256.Int
	Liquidity           *uint256.Int
	Shares              *uint256.Int
	FeeCheckpointToken  *uint256.Int
	FeeCheckpointNative *uint256.Int
	CreatedAt           time.Time
}

// Clone returns a deep copy so callers never alias ledger-owned values.
func (p Position) Clone() Position {
	return Position{
		ID:                  p.ID,
		Owner:               p.Owner,
		DepositToken:        cloneAmount(p.DepositToken),
		DepositNative:       cloneAmount(p.DepositNative),
		Liquidity:           cloneAmount(p.Liquidity),
		Shares:              cloneAmount(p.Shares),
		FeeCheckpointToken:  cloneAmount(p.FeeCheckpointToken),
		FeeCheckpointNative: cloneAmount(p.FeeCheckpointNative),
		CreatedAt:           p.CreatedAt,
	}
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
