package reembed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/partners/ai/mock"
	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newModel returns an embedder that differs from the one used to create
// the test partners.
func newModel() *mock.MockEmbedder {
	m := mock.NewMockEmbedder().WithDimensions(testDimensions)
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector("v2:"+text, testDimensions)
		}
		return out, nil
	}
	return m
}

func TestBatchProcessor_Process(t *testing.T) {
	store, partners := setupTestDB(t, 3)
	ctx := context.Background()

	processor := NewBatchProcessor(store, newModel(), 3, time.Millisecond)
	result, err := processor.Process(ctx, partners)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Updated: 3}, result)

	for _, p := range partners {
		got, err := store.GetPartner(ctx, p.Id)
		require.NoError(t, err)
		assert.Equal(t, mock.Vector("v2:"+core.Project(p).Text(), testDimensions), got.Embedding)
		assert.Equal(t, p.Digest, got.Digest)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	store, _ := setupTestDB(t, 0)
	processor := NewBatchProcessor(store, newModel(), 3, time.Millisecond)

	result, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result)
}

func TestBatchProcessor_Retry(t *testing.T) {
	store, partners := setupTestDB(t, 2)

	var attempts atomic.Int32
	model := newModel()
	next := model.EmbedTextsFunc
	model.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("rate limited")
		}
		return next(ctx, texts)
	}

	result, err := NewBatchProcessor(store, model, 3, time.Millisecond).Process(context.Background(), partners)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	store, partners := setupTestDB(t, 1)
	model := mock.NewMockEmbedder().WithDimensions(testDimensions)
	model.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding error")
	}

	_, err := NewBatchProcessor(store, model, 2, time.Millisecond).Process(context.Background(), partners)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDependencyUnavailable)
	assert.Contains(t, err.Error(), "embedding error")

	got, err := store.GetPartner(context.Background(), partners[0].Id)
	require.NoError(t, err)
	assert.Equal(t, partners[0].Embedding, got.Embedding)
}

func TestBatchProcessor_WrongDimensions(t *testing.T) {
	store, partners := setupTestDB(t, 1)
	model := mock.NewMockEmbedder().WithDimensions(testDimensions)
	model.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	_, err := NewBatchProcessor(store, model, 1, time.Millisecond).Process(context.Background(), partners)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestBatchProcessor_SkipsChangedAndDeleted(t *testing.T) {
	store, partners := setupTestDB(t, 3)
	ctx := context.Background()

	// Edit partner 0 after the batch was read.
	edited, err := store.UpdatePartner(ctx, partners[0].Id, func(p *core.Partner) error {
		p.Location = core.Text("Berlin")
		p.Digest = core.Project(p).Digest()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, store.DeletePartner(ctx, partners[1].Id))

	result, err := NewBatchProcessor(store, newModel(), 1, time.Millisecond).Process(ctx, partners)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Updated: 1, Skipped: 2}, result)

	got, err := store.GetPartner(ctx, partners[0].Id)
	require.NoError(t, err)
	assert.Equal(t, edited.Embedding, got.Embedding)
	assert.Equal(t, edited.Digest, got.Digest)
}
