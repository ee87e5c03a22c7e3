package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/partners/ai/mock"
	"github.com/poiesic/partners/catalog"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimensions = 8

// setupTestDB returns an in-memory store holding n partners embedded with
// the default mock vectors.
func setupTestDB(t *testing.T, n int) (*badger.Store, []*core.Partner) {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := mock.NewMockProviderWithEmbedder(mock.NewMockEmbedder().WithDimensions(testDimensions))
	c, err := catalog.NewCatalog(store, provider)
	require.NoError(t, err)
	defer c.Release()

	partners := make([]*core.Partner, n)
	for i := range partners {
		partners[i], err = c.Create(context.Background(), core.PartnerInput{Name: fmt.Sprintf("Partner %d", i)})
		require.NoError(t, err)
	}
	return store, partners
}

func TestPartnerIterator_Pages(t *testing.T) {
	store, partners := setupTestDB(t, 7)

	var sizes []int
	var seen []core.ID
	err := NewPartnerIterator(store, 3).ForEach(context.Background(), func(page []*core.Partner) error {
		sizes = append(sizes, len(page))
		for _, p := range page {
			seen = append(seen, p.Id)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, sizes)
	require.Len(t, seen, len(partners))
	for i, p := range partners {
		assert.Equal(t, p.Id, seen[i])
	}
}

func TestPartnerIterator_ExactMultiple(t *testing.T) {
	store, _ := setupTestDB(t, 4)

	calls := 0
	err := NewPartnerIterator(store, 2).ForEach(context.Background(), func(page []*core.Partner) error {
		calls++
		assert.Len(t, page, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPartnerIterator_Empty(t *testing.T) {
	store, _ := setupTestDB(t, 0)

	err := NewPartnerIterator(store, 0).ForEach(context.Background(), func(page []*core.Partner) error {
		t.Fatal("callback should not run")
		return nil
	})
	require.NoError(t, err)
}

func TestPartnerIterator_StopsOnError(t *testing.T) {
	store, _ := setupTestDB(t, 5)
	boom := errors.New("boom")

	calls := 0
	err := NewPartnerIterator(store, 2).ForEach(context.Background(), func(page []*core.Partner) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPartnerIterator_Cancelled(t *testing.T) {
	store, _ := setupTestDB(t, 5)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := NewPartnerIterator(store, 2).ForEach(ctx, func(page []*core.Partner) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
