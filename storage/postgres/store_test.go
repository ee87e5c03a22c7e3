package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimensions = 3

// openTestStore connects to PARTNERS_TEST_POSTGRES_URL and starts from an
// empty partners table.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PARTNERS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PARTNERS_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := Open(ctx, url, WithDimensions(testDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// A table from an earlier run may have a different embedding width.
	_, err = store.pool.Exec(ctx, `DROP TABLE IF EXISTS partners`)
	require.NoError(t, err)
	require.NoError(t, store.migrate(ctx))
	store.lexicalReady.Store(false)
	return store
}

func withArtifacts(p *core.Partner) *core.Partner {
	p.SearchableText = lexical.Analyze(p)
	p.Digest = core.Project(p).Digest()
	return p
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestFieldColumnsCoverEveryField(t *testing.T) {
	for _, f := range append(append([]core.Field(nil), core.ProjectedFields...), core.FieldAdditionalData) {
		_, ok := fieldColumns[f]
		assert.True(t, ok, "missing column for %s", f)
	}
}

func TestRowArgs_DimensionMismatch(t *testing.T) {
	s := &Store{dimensions: 4}
	_, err := s.rowArgs(&core.Partner{Name: "Acme", Embedding: []float32{1, 2}})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestPostgresStore_CRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	added, err := store.AddPartner(ctx, withArtifacts(&core.Partner{
		Name:      "Acme",
		Industry:  core.Text("Logistics"),
		Embedding: []float32{1, 0, 0},
		AdditionalData: core.Attributes{
			{Key: "zeta", Value: core.NumberValue(1)},
			{Key: "alpha", Value: core.BoolValue(true)},
		},
	}))
	require.NoError(t, err)
	assert.NotZero(t, added.Id)

	got, err := store.GetPartner(ctx, added.Id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	require.Len(t, got.AdditionalData, 2)
	assert.Equal(t, "zeta", got.AdditionalData[0].Key, "key order survives storage")

	updated, err := store.UpdatePartner(ctx, added.Id, func(p *core.Partner) error {
		p.Description = core.Text("freight")
		withArtifacts(p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "freight", *updated.Description)

	count, err := store.CountPartners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.DeletePartner(ctx, added.Id))
	_, err = store.GetPartner(ctx, added.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeletePartner(ctx, added.Id), storage.ErrNotFound)
}

func TestPostgresStore_Search(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	byName, err := store.AddPartner(ctx, withArtifacts(&core.Partner{Name: "Payment Hub", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, err)
	byDescription, err := store.AddPartner(ctx, withArtifacts(&core.Partner{
		Name:        "Acme",
		Description: core.Text("payment processing"),
		Embedding:   []float32{0, 1, 0},
	}))
	require.NoError(t, err)

	nearest, err := store.NearestPartners(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, nearest, 2)
	assert.Equal(t, byName.Id, nearest[0].Id)
	assert.InDelta(t, 1.0, nearest[0].Score, 1e-6)

	found, err := store.FindByKeywords(ctx, []string{"payment"}, []core.Field{core.FieldName}, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, byName.Id, found[0].Id)

	_, err = store.RankLexical(ctx, []string{"pay"}, 5)
	assert.ErrorIs(t, err, storage.ErrIndexUnavailable)

	require.NoError(t, store.EnsureLexicalIndex(ctx))
	require.NoError(t, store.EnsureVectorIndex(ctx))

	ranked, err := store.RankLexical(ctx, []string{"pay"}, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, byName.Id, ranked[0].Id)
	assert.Equal(t, byDescription.Id, ranked[1].Id)
}
