package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const BatchCountersTable = "batch_counters"

// CounterStore hands out per-date batch sequence values atomically. One row per
// date key; the upsert increments under row-level locking so concurrent
// registrations can never observe the same value.
type CounterStore struct {
	pool *pgxpool.Pool
}

// NewCounterStore returns a store instance bound to the shared pool.
func NewCounterStore(pool *pgxpool.Pool) (*CounterStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &CounterStore{pool: pool}, nil
}

// NextSequence reserves and returns the next sequence value for the date key,
// starting at 1 for an unused key. A reserved value that never reaches a row
// (insert failed downstream) burns a suffix; gaps are acceptable, duplicates
// are not.
func (s *CounterStore) NextSequence(ctx context.Context, dateKey string) (int64, error) {
	if dateKey == "" {
		return 0, errors.New("date key is required")
	}

	var seq int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (date_key, counter)
        VALUES ($1, 1)
        ON CONFLICT (date_key) DO UPDATE SET counter = %s.counter + 1
        RETURNING counter
    `, BatchCountersTable, BatchCountersTable), dateKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next batch sequence: %w", err)
	}
	return seq, nil
}
