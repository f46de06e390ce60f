package api

import (
	"time"

	"positionSwap/internal/model"
)

type poolResponse struct {
	Token         string `json:"token"`
	Symbol        string `json:"symbol,omitempty"`
	Decimals      uint8  `json:"decimals"`
	TokenReserve  string `json:"token_reserve"`
	NativeReserve string `json:"native_reserve"`
	PriceRatio    string `json:"price_ratio"`
}

type poolDetailResponse struct {
	poolResponse
	Snapshot model.PoolSnapshot `json:"snapshot"`
}

type positionResponse struct {
	ID            string    `json:"id"`
	Pool          string    `json:"pool"`
	Seq           uint64    `json:"seq"`
	Owner         string    `json:"owner"`
	DepositToken  string    `json:"deposit_token"`
	DepositNative string    `json:"deposit_native"`
	Liquidity     string    `json:"liquidity"`
	Shares        string    `json:"shares"`
	ClaimToken    string    `json:"claim_token"`
	ClaimNative   string    `json:"claim_native"`
	CreatedAt     time.Time `json:"created_at"`
}

type quoteRequest struct {
	Token     string `json:"token" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

type quoteResponse struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

type swapRequest struct {
	Account   string `json:"account" binding:"required"`
	Token     string `json:"token" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Bound     string `json:"bound"`
	Value     string `json:"value"`
}

type swapResponse struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
	Seq       uint64 `json:"seq"`
}

type addLiquidityRequest struct {
	Account      string `json:"account" binding:"required"`
	Token        string `json:"token" binding:"required"`
	TokenAmount  string `json:"token_amount" binding:"required"`
	NativeAmount string `json:"native_amount" binding:"required"`
	Value        string `json:"value"`
}

type addLiquidityResponse struct {
	PositionID   string `json:"position_id"`
	Shares       string `json:"shares"`
	TokenAmount  string `json:"token_amount"`
	NativeAmount string `json:"native_amount"`
	Seq          uint64 `json:"seq"`
}

type removeLiquidityRequest struct {
	Account string `json:"account" binding:"required"`
	Value   string `json:"value"`
}

type removeLiquidityResponse struct {
	PositionID   string `json:"position_id"`
	TokenAmount  string `json:"token_amount"`
	NativeAmount string `json:"native_amount"`
	Seq          uint64 `json:"seq"`
}

type transferPositionRequest struct {
	Account string `json:"account" binding:"required"`
	To      string `json:"to" binding:"required"`
}

type deployTokenRequest struct {
	Spec string `json:"spec" binding:"required"`
}

type fundRequest struct {
	Account      string `json:"account" binding:"required"`
	Token        string `json:"token"`
	TokenAmount  string `json:"token_amount"`
	NativeAmount string `json:"native_amount"`
}

type approveRequest struct {
	Account string `json:"account" binding:"required"`
	Token   string `json:"token" binding:"required"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type accountResponse struct {
	Account   string            `json:"account"`
	Native    string            `json:"native"`
	Tokens    map[string]string `json:"tokens"`
	Positions int               `json:"positions"`
}
