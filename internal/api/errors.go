package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"positionSwap/internal/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrPoolNotFound),
		errors.Is(err, model.ErrPositionNotFound),
		errors.Is(err, model.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, model.ErrTokenExists),
		errors.Is(err, model.ErrPoolExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrZeroAmount),
		errors.Is(err, model.ErrValueMismatch),
		errors.Is(err, model.ErrInvalidPositionID),
		errors.Is(err, model.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientLiquidity),
		errors.Is(err, model.ErrSlippageExceeded),
		errors.Is(err, model.ErrReserveUnderflow),
		errors.Is(err, model.ErrRatioMismatch),
		errors.Is(err, model.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: model.ErrorCode(err), Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
}
