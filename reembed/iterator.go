package reembed

import (
	"context"

	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
)

const (
	// DefaultBatchSize is the default number of partners to fetch in each batch
	DefaultBatchSize = 100
)

// PartnerIterator pages over all partners in ID order.
type PartnerIterator struct {
	repo      storage.PartnerRepository
	batchSize int
}

// NewPartnerIterator creates a new partner iterator.
// batchSize <= 0 uses DefaultBatchSize.
func NewPartnerIterator(repo storage.PartnerRepository, batchSize int) *PartnerIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PartnerIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each page of partners.
// Iteration stops on the first error from fn or when a short page is read.
// Context cancellation is checked between pages.
func (it *PartnerIterator) ForEach(ctx context.Context, fn func([]*core.Partner) error) error {
	for offset := 0; ; offset += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.repo.ListPartners(ctx, offset, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
	}
}
