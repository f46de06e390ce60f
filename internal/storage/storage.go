package storage

import (
	"context"

	"positionSwap/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}
