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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/catalog"
	"github.com/poiesic/partners/core"
	"github.com/poiesic/partners/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of partners embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of partners)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", core.ErrConfiguration)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, catalog.ErrInvalidMaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", core.ErrConfiguration)
	}
	return nil
}

// Summary describes a finished run.
type Summary struct {
	Total   int
	Updated int
	Skipped int
	Elapsed time.Duration
}

// Reembedder recomputes the embeddings of every stored partner.
type Reembedder struct {
	repo      storage.PartnerRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *PartnerIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.PartnerRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewPartnerIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run reembeds all partners with the configured embedder.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	total, err := r.repo.CountPartners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count partners: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No partners found in database (0 partners)\n")
		return &Summary{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d partners (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	summary := &Summary{Total: total}
	err = r.iterator.ForEach(ctx, func(partners []*core.Partner) error {
		result, err := r.processor.Process(ctx, partners)
		summary.Updated += result.Updated
		summary.Skipped += result.Skipped
		if err != nil {
			r.logger.Error("batch failed", "first_id", partners[0].Id, "size", len(partners), "err", err)
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Increment(len(partners), result.Skipped)
		return nil
	})
	if err != nil {
		return summary, err
	}

	tracker.Finish()
	summary.Elapsed = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Updated %d partners, skipped %d, in %v (%.1f partners/sec)\n",
		summary.Updated, summary.Skipped, summary.Elapsed.Round(time.Second),
		float64(summary.Updated+summary.Skipped)/summary.Elapsed.Seconds())

	return summary, nil
}
