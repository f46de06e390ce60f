package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event names emitted by the engine.
const (
	EventAddLiquidity    = "AddLiquidity"
	EventSwapToToken     = "SwapToToken"
	EventSwapToEth       = "SwapToEth"
	EventRemoveLiquidity = "RemoveLiquidity"
)

// Event is a committed pool operation. Seq orders events across all pools.
type Event struct {
	Seq           uint64
	Name          string
	Token         common.Address
	Account       common.Address
	Position      *PositionID
	TokenAmount   *uint256.Int
	NativeAmount  *uint256.Int
	Fee           *uint256.Int
	PriceRatio    *uint256.Int
	TokenReserve  *uint256.Int
	NativeReserve *uint256.Int
	Time          time.Time
}

// SwapEventData is the decoded SwapToToken / SwapToEth payload.
type SwapEventData struct {
	Token         string `json:"token"`
	Trader        string `json:"trader"`
	TokenAmount   string `json:"token_amount"`
	NativeAmount  string `json:"native_amount"`
	Fee           string `json:"fee"`
	FeeAsset      string `json:"fee_asset"`
	PriceRatio    string `json:"price_ratio"`
	TokenReserve  string `json:"token_reserve"`
	NativeReserve string `json:"native_reserve"`
}

// LiquidityEventData is the decoded AddLiquidity / RemoveLiquidity payload.
type LiquidityEventData struct {
	Token         string `json:"token"`
	Account       string `json:"account"`
	PositionID    string `json:"position_id"`
	TokenAmount   string `json:"token_amount"`
	NativeAmount  string `json:"native_amount"`
	TokenReserve  string `json:"token_reserve"`
	NativeReserve string `json:"native_reserve"`
}
