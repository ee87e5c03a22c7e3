package storage

import (
	"context"

	"github.com/poiesic/partners/core"
)

// PartnerRepository provides durable CRUD over partners.
// Implementations must be thread-safe and support concurrent access.
//
// Every write stores the partner's derived artifacts (embedding, lexemes,
// digest and any index entries built from them) in the same transaction as
// its fields. Writers must pass partners whose Digest matches their current
// projection; see CheckDerived.
type PartnerRepository interface {
	// AddPartner assigns a new ID and timestamps and stores the partner.
	// Returns the stored partner.
	AddPartner(ctx context.Context, partner *core.Partner) (*core.Partner, error)

	// UpdatePartner reads the partner, calls mutate on a copy and stores the
	// result, all inside one transaction. If mutate returns an error nothing
	// is written. Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the partner doesn't exist and ErrConflict if a
	// concurrent writer won.
	UpdatePartner(ctx context.Context, id core.ID, mutate func(p *core.Partner) error) (*core.Partner, error)

	// DeletePartner removes a partner and all its index entries.
	// Returns ErrNotFound if the partner doesn't exist.
	DeletePartner(ctx context.Context, id core.ID) error

	// GetPartner retrieves a single partner by ID.
	// Returns ErrNotFound if the partner doesn't exist.
	GetPartner(ctx context.Context, id core.ID) (*core.Partner, error)

	// GetPartners retrieves multiple partners in one lookup.
	// Returns only the partners that exist, in no particular order.
	GetPartners(ctx context.Context, ids ...core.ID) ([]*core.Partner, error)

	// ListPartners returns a page of partners ordered by ID.
	ListPartners(ctx context.Context, offset, limit int) ([]*core.Partner, error)

	// CountPartners returns the number of stored partners.
	CountPartners(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// VectorSearcher provides nearest-neighbor search over partner embeddings.
type VectorSearcher interface {
	// NearestPartners returns up to k partners ordered by descending cosine
	// similarity to vector (score = 1 - cosine distance). Ties are broken by
	// ascending ID. Partners without an embedding are skipped.
	NearestPartners(ctx context.Context, vector []float32, k int) ([]core.Match, error)
}

// KeywordSearcher provides case-insensitive substring candidate lookup.
type KeywordSearcher interface {
	// FindByKeywords returns partners where at least one keyword is a
	// case-insensitive substring of at least one of fields, ordered by ID.
	// Keywords must already be lowercased. limit <= 0 means no limit.
	FindByKeywords(ctx context.Context, keywords []string, fields []core.Field, limit int) ([]*core.Partner, error)
}

// LexicalSearcher ranks partners against prepared prefix terms.
type LexicalSearcher interface {
	// RankLexical returns up to limit matches for the OR of the prefix
	// terms, best first. Returns ErrIndexUnavailable when the lexical index
	// has not been built.
	RankLexical(ctx context.Context, terms []string, limit int) ([]core.Match, error)
}

// IndexMaintainer builds search accelerators. Both methods are idempotent
// and safe to call concurrently.
type IndexMaintainer interface {
	// EnsureVectorIndex builds the approximate or precomputed vector index.
	// Search results never depend on it.
	EnsureVectorIndex(ctx context.Context) error

	// EnsureLexicalIndex builds the weighted lexical index. Until it exists
	// RankLexical returns ErrIndexUnavailable.
	EnsureLexicalIndex(ctx context.Context) error
}

// Store combines every capability the search and catalog layers consume.
type Store interface {
	PartnerRepository
	VectorSearcher
	KeywordSearcher
	LexicalSearcher
	IndexMaintainer
}
