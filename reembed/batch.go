package reembed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/catalog"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
	"golang.org/x/sync/errgroup"
)

// defaultWriters bounds the concurrent write-backs of one batch.
const defaultWriters = 4

// BatchResult counts the outcome of one processed batch.
type BatchResult struct {
	Updated int
	Skipped int
}

// BatchProcessor embeds batches of partners and writes the vectors back.
type BatchProcessor struct {
	repo           storage.PartnerRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	writers        int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.PartnerRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		writers:        defaultWriters,
	}
}

// Process embeds the projections of partners with one EmbedTexts call and
// stores each vector together with refreshed lexemes and digest. Partners
// whose digest changed since they were read are skipped.
func (bp *BatchProcessor) Process(ctx context.Context, partners []*core.Partner) (BatchResult, error) {
	if len(partners) == 0 {
		return BatchResult{}, nil
	}

	texts := make([]string, len(partners))
	for i, p := range partners {
		texts[i] = core.Project(p).Text()
	}

	var embeddings [][]float32
	err := catalog.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: failed to generate embeddings after %d attempts: %w",
			core.ErrDependencyUnavailable, bp.maxRetries, err)
	}
	if len(embeddings) != len(partners) {
		return BatchResult{}, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(partners), len(embeddings))
	}
	for _, vec := range embeddings {
		if err := core.ValidateEmbedding(vec, bp.embedder.Dimensions()); err != nil {
			return BatchResult{}, err
		}
	}

	var updated, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.writers)
	for i, p := range partners {
		g.Go(func() error {
			ok, err := bp.writeBack(gctx, p, embeddings[i])
			if err != nil {
				return fmt.Errorf("partner %d: %w", p.Id, err)
			}
			if ok {
				updated.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return BatchResult{Updated: int(updated.Load()), Skipped: int(skipped.Load())}, err
}

// writeBack stores vec on partner p. Returns false when p was changed or
// deleted after it was read.
func (bp *BatchProcessor) writeBack(ctx context.Context, p *core.Partner, vec []float32) (bool, error) {
	_, err := bp.repo.UpdatePartner(ctx, p.Id, func(current *core.Partner) error {
		if current.Digest != p.Digest {
			return errDigestChanged
		}
		catalog.Annotate(current, vec)
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errDigestChanged), errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}
