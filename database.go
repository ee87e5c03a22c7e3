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


package partners

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/ai/hugot"
	"github.com/poiesic/partners/ai/openai"
	"github.com/poiesic/partners/catalog"
	"github.com/poiesic/partners/config"
	"github.com/poiesic/partners/reembed"
	"github.com/poiesic/partners/search"
	"github.com/poiesic/partners/storage"
	"github.com/poiesic/partners/storage/badger"
	"github.com/poiesic/partners/storage/postgres"
)

// Database wires a partner store to an embedding provider.
type Database struct {
	store    storage.Store
	provider ai.AIProvider
	workers  int
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the configuration.
// The Database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the store selected by cfg and creates the embedding
// provider for its backend.
func NewDatabase(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		var err error
		if provider, err = NewProvider(cfg.AIConfig()); err != nil {
			return nil, err
		}
	}

	store, err := openStore(ctx, cfg, provider.Embedder().Dimensions(), options.logger)
	if err != nil {
		provider.Close()
		return nil, err
	}

	return &Database{
		store:    store,
		provider: provider,
		workers:  cfg.WorkerCount,
		logger:   options.logger,
	}, nil
}

// NewProvider builds the embedding provider for aiConfig.Backend.
func NewProvider(aiConfig *ai.Config) (ai.AIProvider, error) {
	if err := aiConfig.Validate(); err != nil {
		return nil, err
	}
	switch aiConfig.Backend {
	case ai.BackendHugot:
		return hugot.NewProvider(aiConfig)
	default:
		return openai.NewProvider(aiConfig)
	}
}

func openStore(ctx context.Context, cfg *config.Config, dims int, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.Postgres.ConnString(),
			postgres.WithDimensions(dims),
			postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := badger.Open(cfg.DataDir, badger.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	}
}

// Close releases the provider and the store.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing partner store", "err", err)
		return err
	}
	return nil
}

// Store returns the partner store.
func (db *Database) Store() storage.Store {
	return db.store
}

// Provider returns the embedding provider.
func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewCatalog creates a catalog on the database. Callers must Release it.
func (db *Database) NewCatalog(opts ...catalog.Option) (*catalog.Catalog, error) {
	base := []catalog.Option{catalog.WithPoolSize(db.workers), catalog.WithLogger(db.logger)}
	return catalog.NewCatalog(db.store, db.provider, append(base, opts...)...)
}

// NewSearcher creates a searcher on the database.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithLogger(db.logger)}
	return search.NewSearcher(db.store, db.provider, append(base, opts...)...)
}

// NewReembedder creates a reembedder writing progress to progress.
func (db *Database) NewReembedder(reembedConfig *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.store, db.provider.Embedder(), reembedConfig, progress)
}

// EnsureIndexes builds the vector and lexical indexes.
func (db *Database) EnsureIndexes(ctx context.Context) error {
	if err := db.store.EnsureVectorIndex(ctx); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	if err := db.store.EnsureLexicalIndex(ctx); err != nil {
		return fmt.Errorf("lexical index: %w", err)
	}
	return nil
}
