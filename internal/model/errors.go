package model

import "errors"

// Pool and position failures. Every operation that returns one of these leaves
// reserves, balances and positions untouched.
var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrReserveUnderflow      = errors.New("reserve underflow")
	ErrNotOwner              = errors.New("caller is not the position owner")
	ErrPositionNotFound      = errors.New("position not found")

	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrValueMismatch     = errors.New("native amount does not match attached value")
	ErrRatioMismatch     = errors.New("deposit ratio deviates from pool price")
	ErrPoolNotFound      = errors.New("pool not found")
	ErrInvalidPositionID = errors.New("invalid position id")
	ErrTokenNotFound     = errors.New("token not registered")

	ErrNotController        = errors.New("caller is not the registry controller")
	ErrControllerAlreadySet = errors.New("registry controller already set")
	ErrTokenExists          = errors.New("already exists")
	ErrPoolExists           = errors.New("pool already exists")
	ErrInvariantViolation   = errors.New("pool invariant violated")
)
