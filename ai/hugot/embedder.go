// Package hugot embeds text in-process with a local ONNX sentence-embedding
// model through the hugot pure-Go backend.
package hugot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/core"
)

// batchMax bounds the number of texts per pipeline run.
const batchMax = 16

// Embedder implements ai.Embedder with a lazily loaded hugot pipeline.
// The model loads at most once; concurrent callers wait on the same load and
// a failed load is retried by the next call. The mutex serializes both
// loading and inference.
type Embedder struct {
	config   *ai.Config
	logger   *slog.Logger
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	closed   bool
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		config: config,
		logger: slog.Default().With("component", "hugot-embedder"),
	}, nil
}

// NewEmbedder creates an embedder for the model found under config.ModelPath.
// No model files are read until the first embedding request.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimensions returns the configured embedding width.
func (e *Embedder) Dimensions() int {
	return e.config.Dimensions
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings in input order, running the pipeline in
// batches of at most batchMax texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchMax {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchMax, len(texts))
		result, err := e.pipeline.RunPipeline(texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: run embedding pipeline: %w", core.ErrDependencyUnavailable, err)
		}
		if len(result.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: pipeline returned %d vectors for %d texts", core.ErrDependencyUnavailable, len(result.Embeddings), end-start)
		}
		out = append(out, result.Embeddings...)
	}

	if err := e.config.CheckDimensions(out...); err != nil {
		e.logger.Error("embedding model produced unexpected dimensions", "model", e.config.ModelPath, "err", err)
		return nil, err
	}
	return out, nil
}

// load creates the session and pipeline. Callers hold e.mu.
func (e *Embedder) load() error {
	if e.closed {
		return fmt.Errorf("%w: embedder is closed", core.ErrDependencyUnavailable)
	}
	if e.pipeline != nil {
		return nil
	}

	modelPath, err := resolveModelPath(e.config.ModelPath)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrDependencyUnavailable, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("%w: create hugot session: %w", core.ErrDependencyUnavailable, err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "partner-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("%w: create feature extraction pipeline: %w", core.ErrDependencyUnavailable, err)
	}

	e.session = session
	e.pipeline = pipeline
	e.logger.Info("embedding model loaded", "path", modelPath)
	return nil
}

// Close destroys the session. Later calls fail.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.pipeline = nil
	return err
}

// resolveModelPath accepts either a model directory containing
// tokenizer.json or a directory with one such model subdirectory.
func resolveModelPath(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, "tokenizer.json")); err == nil {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(dir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model with tokenizer.json found in %s", dir)
}
