package partners

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/ai/mock"
	"github.com/poiesic/partners/config"
	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:    "info",
		Store:       config.StoreBadger,
		DataDir:     filepath.Join(t.TempDir(), "db"),
		WorkerCount: 2,
		TopN:        5,
		Embedding: config.EmbeddingConfig{
			Backend:    ai.BackendOpenAI,
			Host:       "http://localhost:11434/v1",
			Model:      "mxbai-embed-large",
			Dimensions: 8,
		},
	}
}

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	provider := mock.NewMockProviderWithEmbedder(mock.NewMockEmbedder().WithDimensions(8))
	db, err := NewDatabase(context.Background(), testConfig(t), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		db := newTestDatabase(t)
		assert.NotNil(t, db.Store())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		cfg := testConfig(t)
		cfg.DataDir = tmpFile
		provider := mock.NewMockProvider()
		db, err := NewDatabase(context.Background(), cfg, WithProvider(provider))
		assert.Error(t, err)
		assert.Nil(t, db)
		assert.True(t, provider.(*mock.MockProvider).Closed())
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store = "sqlite"
		_, err := NewDatabase(context.Background(), cfg)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithBackend("nope")))
	assert.ErrorIs(t, err, core.ErrConfiguration)

	provider, err := NewProvider(ai.NewConfig(ai.WithDimensions(8)))
	require.NoError(t, err)
	defer provider.Close()
	assert.Equal(t, 8, provider.Embedder().Dimensions())
}

func TestDatabase_EndToEnd(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	c, err := db.NewCatalog()
	require.NoError(t, err)
	defer c.Release()

	created, err := c.Create(ctx, core.PartnerInput{
		Name:     "Acme Logistics",
		Location: core.Text("Berlin"),
	})
	require.NoError(t, err)

	require.NoError(t, db.EnsureIndexes(ctx))

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	for _, strategy := range core.Strategies {
		results, err := searcher.Search(ctx, "logistics", strategy, 5)
		require.NoError(t, err, strategy)
		require.NotEmpty(t, results, strategy)
		assert.Equal(t, created.Id, results[0].Partner.Id)
	}

	r, err := db.NewReembedder(nil, nil)
	require.NoError(t, err)
	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
}

func TestDatabase_Reopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	newProvider := func() ai.AIProvider {
		return mock.NewMockProviderWithEmbedder(mock.NewMockEmbedder().WithDimensions(8))
	}

	db, err := NewDatabase(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	c, err := db.NewCatalog()
	require.NoError(t, err)
	created, err := c.Create(ctx, core.PartnerInput{Name: "Durable"})
	require.NoError(t, err)
	c.Release()
	require.NoError(t, db.Close())

	db, err = NewDatabase(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Store().GetPartner(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Durable", got.Name)
}
