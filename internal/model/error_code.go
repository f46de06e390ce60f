package model

import "errors"

var errorCodes = []struct {
	code string
	err  error
}{
	{"insufficient_liquidity", ErrInsufficientLiquidity},
	{"slippage_exceeded", ErrSlippageExceeded},
	{"transfer_failed", ErrTransferFailed},
	{"reserve_underflow", ErrReserveUnderflow},
	{"not_owner", ErrNotOwner},
	{"position_not_found", ErrPositionNotFound},
	{"zero_amount", ErrZeroAmount},
	{"overflow", ErrOverflow},
	{"value_mismatch", ErrValueMismatch},
	{"ratio_mismatch", ErrRatioMismatch},
	{"pool_not_found", ErrPoolNotFound},
	{"invalid_position_id", ErrInvalidPositionID},
	{"token_not_found", ErrTokenNotFound},
	{"not_controller", ErrNotController},
	{"controller_already_set", ErrControllerAlreadySet},
	{"token_exists", ErrTokenExists},
	{"pool_exists", ErrPoolExists},
	{"invariant_violation", ErrInvariantViolation},
}

// ErrorCode returns the stable snake_case code of the first sentinel err
// wraps, or "internal" when it wraps none.
func ErrorCode(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "internal"
}

// ErrorForCode maps a code back to its sentinel.
func ErrorForCode(code string) (error, bool) {
	for _, entry := range errorCodes {
		if entry.code == code {
			return entry.err, true
		}
	}
	return nil, false
}
