package hugot

import (
	"log/slog"

	"github.com/poiesic/partners/ai"
)

// Provider implements ai.AIProvider around a local hugot model.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider creates a provider whose embedder loads the model on first use.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "hugot-provider"),
	}, nil
}

// Embedder returns the local embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases the model session.
func (p *Provider) Close() error {
	p.logger.Debug("closing hugot provider")
	return p.embedder.Close()
}
