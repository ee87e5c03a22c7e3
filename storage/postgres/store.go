// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package postgres implements the partner store on PostgreSQL with the
// pgvector extension. Embeddings live in a vector column, the weighted
// lexical document in a generated tsvector column.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
	"golang.org/x/sync/singleflight"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store for PostgreSQL.
type Store struct {
	pool         *pgxpool.Pool
	ownsPool     bool
	dimensions   int
	logger       *slog.Logger
	maintenance  singleflight.Group
	lexicalReady atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithDimensions sets the width of the embedding column.
func WithDimensions(dims int) Option {
	return func(s *Store) {
		s.dimensions = dims
	}
}

// Open connects to connString, verifies the connection and migrates the
// schema. The returned store owns the pool.
func Open(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", core.ErrDependencyUnavailable, err)
	}
	store, err := NewStore(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.ownsPool = true
	return store, nil
}

// NewStore creates a store on an existing pool and migrates the schema.
func NewStore(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	s := &Store{
		pool:       pool,
		dimensions: core.EmbeddingDimensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dimensions <= 0 {
		return nil, fmt.Errorf("%w: invalid embedding dimensions %d", core.ErrConfiguration, s.dimensions)
	}
	s.logger = s.logger.With("component", "partner-store", "backend", "postgres")

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the pool when the store owns it.
func (s *Store) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range []string{
		sqlCreateExtension,
		fmt.Sprintf(sqlCreateTableTemplate, s.dimensions),
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// transact runs fn inside a transaction, rolling back on error.
func transact[T any](ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, translateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, translateError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return result, nil
}

// translateError maps serialization and deadlock failures to ErrConflict.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	}
	return err
}

// AddPartner inserts the partner and returns it with its new ID.
func (s *Store) AddPartner(ctx context.Context, partner *core.Partner) (*core.Partner, error) {
	if partner == nil {
		return nil, storage.ErrInvalidQuery
	}
	if err := storage.CheckDerived(partner); err != nil {
		return nil, err
	}
	record := partner.Clone()
	args, err := s.rowArgs(record)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, sqlInsertPartner, args...)
	var id int64
	if err := row.Scan(&id, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert partner: %w", translateError(err))
	}
	record.Id = core.ID(id)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

// UpdatePartner locks the row, applies mutate and writes the result.
func (s *Store) UpdatePartner(ctx context.Context, id core.ID, mutate func(p *core.Partner) error) (*core.Partner, error) {
	return transact(ctx, s.pool, func(tx pgx.Tx) (*core.Partner, error) {
		old, err := getPartner(ctx, tx, sqlSelectPartnerForUpdate, id)
		if err != nil {
			return nil, err
		}
		updated := old.Clone()
		if err := mutate(updated); err != nil {
			return nil, err
		}
		updated.Id = old.Id
		updated.CreatedAt = old.CreatedAt
		if err := storage.CheckDerived(updated); err != nil {
			return nil, err
		}

		args, err := s.rowArgs(updated)
		if err != nil {
			return nil, err
		}
		args = append(args, int64(id))
		if err := tx.QueryRow(ctx, sqlUpdatePartner, args...).Scan(&updated.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to update partner: %w", err)
		}
		updated.UpdatedAt = updated.UpdatedAt.UTC()
		return updated, nil
	})
}

// DeletePartner removes the partner row; its index entries go with it.
func (s *Store) DeletePartner(ctx context.Context, id core.ID) error {
	tag, err := s.pool.Exec(ctx, sqlDeletePartner, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete partner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetPartner retrieves a single partner by ID.
func (s *Store) GetPartner(ctx context.Context, id core.ID) (*core.Partner, error) {
	return getPartner(ctx, s.pool, sqlSelectPartner, id)
}

// GetPartners retrieves the partners that exist among ids with one query.
func (s *Store) GetPartners(ctx context.Context, ids ...core.ID) ([]*core.Partner, error) {
	if len(ids) == 0 {
		return []*core.Partner{}, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}
	return queryPartners(ctx, s.pool, sqlSelectPartnersByID, keys)
}

// ListPartners returns a page of partners ordered by ID. limit <= 0
// returns every remaining partner.
func (s *Store) ListPartners(ctx context.Context, offset, limit int) ([]*core.Partner, error) {
	if offset < 0 {
		return nil, storage.ErrInvalidQuery
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	return queryPartners(ctx, s.pool, sqlListPartners, offset, lim)
}

// CountPartners returns the number of stored partners.
func (s *Store) CountPartners(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, sqlCountPartners).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count partners: %w", err)
	}
	return int(n), nil
}
