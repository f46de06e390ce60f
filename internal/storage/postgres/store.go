package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionSwap/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for event logs, pool snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutLogBatch inserts event logs; logs already stored are left untouched.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO event_logs (
				chain_id, seq, tx_hash, log_index, address, topics, data, event_ts, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(l.ChainID),
			int64(l.BlockNumber),
			l.TxHash,
			int64(l.LogIndex),
			l.Address,
			l.Topics,
			l.Data,
			int64(l.Timestamp),
			l.IngestedAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPools inserts or updates pool registry rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, token, symbol, decimals, first_seen_seq, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (chain_id, token)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				decimals = EXCLUDED.decimals,
				first_seen_seq = LEAST(pools.first_seen_seq, EXCLUDED.first_seen_seq),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Token,
			pool.Symbol,
			int16(pool.Decimals),
			int64(pool.FirstSeenSeq),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPoolSnapshots stores the latest accounting state of each pool.
// A snapshot older than the stored one is ignored.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				token, token_reserve, native_reserve, price_ratio, fee_index_token, fee_index_native,
				total_shares, positions, next_seq, updated_seq, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (token)
			DO UPDATE SET
				token_reserve = EXCLUDED.token_reserve,
				native_reserve = EXCLUDED.native_reserve,
				price_ratio = EXCLUDED.price_ratio,
				fee_index_token = EXCLUDED.fee_index_token,
				fee_index_native = EXCLUDED.fee_index_native,
				total_shares = EXCLUDED.total_shares,
				positions = EXCLUDED.positions,
				next_seq = EXCLUDED.next_seq,
				updated_seq = EXCLUDED.updated_seq,
				updated_at = now()
			WHERE pool_snapshots.updated_seq <= EXCLUDED.updated_seq
		`,
			snap.Token,
			snap.TokenReserve,
			snap.NativeReserve,
			snap.PriceRatio,
			snap.FeeIndexToken,
			snap.FeeIndexNative,
			snap.TotalShares,
			snap.Positions,
			int64(snap.NextSeq),
			int64(snap.UpdatedSeq),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdrawal_count, volume_token, volume_native,
				fee_token, fee_native, token_reserve, native_reserve, price_ratio,
				fee_rate_token, fee_rate_native, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (chain_id, pool, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdrawal_count = EXCLUDED.withdrawal_count,
				volume_token = EXCLUDED.volume_token,
				volume_native = EXCLUDED.volume_native,
				fee_token = EXCLUDED.fee_token,
				fee_native = EXCLUDED.fee_native,
				token_reserve = EXCLUDED.token_reserve,
				native_reserve = EXCLUDED.native_reserve,
				price_ratio = EXCLUDED.price_ratio,
				fee_rate_token = EXCLUDED.fee_rate_token,
				fee_rate_native = EXCLUDED.fee_rate_native,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.Pool,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawalCount),
			m.VolumeToken,
			m.VolumeNative,
			m.FeeToken,
			m.FeeNative,
			m.TokenReserve,
			m.NativeReserve,
			m.PriceRatio,
			m.FeeRateToken,
			m.FeeRateNative,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
