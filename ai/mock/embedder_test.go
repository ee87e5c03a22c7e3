package mock

import (
	"context"
	"testing"

	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "Name: Acme")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "Name: Acme")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "Name: Globex")
	require.NoError(t, err)

	assert.Len(t, a, core.EmbeddingDimensions)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, m.CallCount())

	var sum float64
	for _, x := range a {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}

func TestMockEmbedder_BatchMatchesSingle(t *testing.T) {
	m := NewMockEmbedder().WithDimensions(8)
	ctx := context.Background()

	batch, err := m.EmbedTexts(ctx, []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single, err := m.EmbedText(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, single, batch[1])
	assert.Equal(t, 8, m.Dimensions())
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, assert.AnError
	}

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, assert.AnError)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedText(context.Background(), "x")
	assert.NoError(t, err)
}
