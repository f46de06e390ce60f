package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"positionSwap/internal/dex"
	"positionSwap/internal/model"
)

// LogSink encodes committed engine events as EVM-style logs and hands them
// to a Storage backend.
type LogSink struct {
	encoder *dex.Encoder
	store   Storage
	retry   RetryPolicy
	logger  *zap.Logger
}

func NewLogSink(encoder *dex.Encoder, store Storage, logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{encoder: encoder, store: store, logger: logger}
}

// WithRetry makes Publish retry failed writes with exponential backoff.
func (s *LogSink) WithRetry(policy RetryPolicy) *LogSink {
	s.retry = policy
	return s
}

// Publish implements engine.EventSink.
func (s *LogSink) Publish(ctx context.Context, event model.Event) error {
	record, err := s.encoder.Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	batch := []model.LogRecord{record}
	err = Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.store.PutLogBatch(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("store event log: %w", err)
	}
	s.logger.Debug("event log stored",
		zap.String("event", event.Name),
		zap.Uint64("seq", event.Seq),
		zap.String("tx_hash", record.TxHash),
	)
	return nil
}
