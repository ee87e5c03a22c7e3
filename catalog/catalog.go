package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/lexical"
	"github.com/poiesic/partners/storage"
)

const (
	// DefaultListLimit is the page size used when List is called without one.
	DefaultListLimit = 100

	defaultImportBatch    = 32
	defaultMaxRetries     = 5
	defaultRetryBaseDelay = 20 * time.Millisecond
)

// Catalog creates, updates and removes partners, keeping each partner's
// embedding, lexemes and digest in step with its fields.
type Catalog struct {
	store          storage.PartnerRepository
	embedder       ai.Embedder
	pool           *ants.Pool
	importBatch    int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithPoolSize sets the worker pool size used by Import.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Catalog) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		return nil
	}
}

// WithImportBatchSize sets how many partners Import embeds per call.
func WithImportBatchSize(size int) Option {
	return func(c *Catalog) error {
		if size < 1 {
			return fmt.Errorf("%w: import batch size must be positive", core.ErrConfiguration)
		}
		c.importBatch = size
		return nil
	}
}

// WithRetry configures how Update retries after a write conflict.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Catalog) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		c.maxRetries = maxAttempts
		c.retryBaseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCatalog creates a catalog writing to store and embedding with the
// provider's embedder.
func NewCatalog(store storage.PartnerRepository, provider ai.AIProvider, opts ...Option) (*Catalog, error) {
	if store == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		store:          store,
		embedder:       provider.Embedder(),
		pool:           pool,
		importBatch:    defaultImportBatch,
		maxRetries:     defaultMaxRetries,
		retryBaseDelay: defaultRetryBaseDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			c.Release()
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "catalog")
	return c, nil
}

// Release releases the worker pool.
// The catalog should not be used after calling Release.
func (c *Catalog) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Annotate fills the derived fields of p from its current fields and the
// embedding of its projection.
func Annotate(p *core.Partner, embedding []float32) {
	p.Embedding = embedding
	p.SearchableText = lexical.Analyze(p)
	p.Digest = core.Project(p).Digest()
}

// Derive embeds the projection of p and annotates it.
func Derive(ctx context.Context, embedder ai.Embedder, p *core.Partner) error {
	vec, err := embedder.EmbedText(ctx, core.Project(p).Text())
	if err != nil {
		return fmt.Errorf("%w: embedding partner: %w", core.ErrDependencyUnavailable, err)
	}
	if err := core.ValidateEmbedding(vec, embedder.Dimensions()); err != nil {
		return err
	}
	Annotate(p, vec)
	return nil
}

// Create validates input, computes the partner's artifacts and stores it.
// Nothing is written when embedding fails.
func (c *Catalog) Create(ctx context.Context, in core.PartnerInput) (*core.Partner, error) {
	p := core.NewPartner(in)
	if err := core.ValidatePartner(p); err != nil {
		return nil, err
	}
	if err := Derive(ctx, c.embedder, p); err != nil {
		c.logger.Error("error deriving partner artifacts", "name", p.Name, "err", err)
		return nil, err
	}

	created, err := c.store.AddPartner(ctx, p)
	if err != nil {
		c.logger.Error("error storing partner", "name", p.Name, "err", err)
		return nil, err
	}
	c.logger.Debug("partner created", "id", created.Id)
	return created, nil
}

// Update applies patch to partner id. The embedding is recomputed before the
// write, and only when the projection changed. A concurrent change between
// the read and the write is retried with exponential backoff.
func (c *Catalog) Update(ctx context.Context, id core.ID, patch core.PartnerPatch) (*core.Partner, error) {
	if patch.IsEmpty() {
		return c.store.GetPartner(ctx, id)
	}

	var result *core.Partner
	err := RetryWithBackoff(ctx, func() error {
		current, err := c.store.GetPartner(ctx, id)
		if err != nil {
			return Permanent(err)
		}

		next := current.Clone()
		patch.Apply(next)
		if err := core.ValidatePartner(next); err != nil {
			return Permanent(err)
		}
		if core.Project(next).Digest() == current.Digest && len(current.Embedding) > 0 {
			Annotate(next, current.Embedding)
		} else if err := Derive(ctx, c.embedder, next); err != nil {
			return Permanent(err)
		}

		result, err = c.store.UpdatePartner(ctx, id, func(p *core.Partner) error {
			if !p.UpdatedAt.Equal(current.UpdatedAt) || p.Digest != current.Digest {
				return storage.ErrConflict
			}
			*p = *next
			return nil
		})
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return Permanent(err)
		}
		return err
	}, c.maxRetries, c.retryBaseDelay)
	if err != nil {
		c.logger.Error("error updating partner", "id", id, "err", err)
		return nil, err
	}
	return result, nil
}

// Delete removes partner id together with its artifacts.
func (c *Catalog) Delete(ctx context.Context, id core.ID) error {
	return c.store.DeletePartner(ctx, id)
}

// Get returns partner id.
func (c *Catalog) Get(ctx context.Context, id core.ID) (*core.Partner, error) {
	return c.store.GetPartner(ctx, id)
}

// List returns a page of partners ordered by ID. limit <= 0 uses
// DefaultListLimit.
func (c *Catalog) List(ctx context.Context, offset, limit int) ([]*core.Partner, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", core.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return c.store.ListPartners(ctx, offset, limit)
}

// Count returns the number of stored partners.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	return c.store.CountPartners(ctx)
}

// Import creates many partners concurrently. Inputs are validated up front;
// any invalid input aborts the import before anything is written. Batches
// are embedded with one EmbedTexts call each on the worker pool. Returns the
// created partners in input order, skipping failures, and every failure
// joined into one error.
func (c *Catalog) Import(ctx context.Context, inputs []core.PartnerInput) ([]*core.Partner, error) {
	partners := make([]*core.Partner, len(inputs))
	for i, in := range inputs {
		p := core.NewPartner(in)
		if err := core.ValidatePartner(p); err != nil {
			return nil, fmt.Errorf("partner %d: %w", i, err)
		}
		partners[i] = p
	}

	created := make([]*core.Partner, len(partners))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for start := 0; start < len(partners); start += c.importBatch {
		end := min(start+c.importBatch, len(partners))
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			if err := c.importBatchRange(ctx, partners, created, start, end); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submitting import batch: %w", err))
			mu.Unlock()
		}
	}
	wg.Wait()

	results := make([]*core.Partner, 0, len(created))
	for _, p := range created {
		if p != nil {
			results = append(results, p)
		}
	}
	c.logger.Info("import finished", "requested", len(inputs), "created", len(results), "failed_batches", len(errs))
	return results, errors.Join(errs...)
}

func (c *Catalog) importBatchRange(ctx context.Context, partners, created []*core.Partner, start, end int) error {
	batch := partners[start:end]
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = core.Project(p).Text()
	}

	vecs, err := c.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding partners %d-%d: %w", core.ErrDependencyUnavailable, start, end-1, err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("%w: embedding result mismatch. expected %d, received %d", core.ErrDependencyUnavailable, len(batch), len(vecs))
	}

	var errs []error
	for i, p := range batch {
		if err := core.ValidateEmbedding(vecs[i], c.embedder.Dimensions()); err != nil {
			return err
		}
		Annotate(p, vecs[i])
		stored, err := c.store.AddPartner(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("partner %d: %w", start+i, err))
			continue
		}
		created[start+i] = stored
	}
	return errors.Join(errs...)
}
