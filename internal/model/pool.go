package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolInfo is the aggregate state of one pool.
type PoolInfo struct {
	Token         common.Address
	TokenReserve  *uint256.Int
	NativeReserve *uint256.Int
	PriceRatio    *uint256.Int
}

// PoolSnapshot is the persisted form of a pool's full accounting state.
type PoolSnapshot struct {
	Token          string `json:"token"`
	TokenReserve   string `json:"token_reserve"`
	NativeReserve  string `json:"native_reserve"`
	PriceRatio     string `json:"price_ratio"`
	FeeIndexToken  string `json:"fee_index_token"`
	FeeIndexNative string `json:"fee_index_native"`
	TotalShares    string `json:"total_shares"`
	Positions      int    `json:"positions"`
	NextSeq        uint64 `json:"next_seq"`
	UpdatedSeq     uint64 `json:"updated_seq"`
}

// PoolRecord is the registry row of a pool seen in the event stream.
type PoolRecord struct {
	ChainID      uint64
	Token        string
	Symbol       string
	Decimals     uint8
	FirstSeenSeq uint64
}
