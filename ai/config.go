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


package ai

import (
	"fmt"
	"strings"

	"github.com/poiesic/partners/core"
)

// Embedding backends.
const (
	BackendOpenAI = "openai"
	BackendHugot  = "hugot"
)

type Config struct {
	// Backend selects the embedding implementation: "openai" or "hugot".
	Backend string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "mxbai-embed-large", "mixedbread-ai/mxbai-embed-large-v1"
	EmbeddingModel string

	// ModelPath is the directory holding the ONNX model for the hugot backend.
	ModelPath string

	// Dimensions is the expected embedding width. Every vector produced is
	// checked against it.
	// Default: 1024
	Dimensions int
}

type ConfigOption func(*Config)

func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithModelPath(path string) ConfigOption {
	return func(c *Config) {
		c.ModelPath = path
	}
}

func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "mxbai-embed-large",
		Dimensions:     core.EmbeddingDimensions,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	// Ensure EmbeddingHost ends with /v1 for OpenAI-compatible APIs
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: ai config: Dimensions must be positive", core.ErrConfiguration)
	}
	switch c.Backend {
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return fmt.Errorf("%w: ai config: EmbeddingHost is required", core.ErrConfiguration)
		}
		if c.EmbeddingModel == "" {
			return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfiguration)
		}
	case BackendHugot:
		if c.ModelPath == "" {
			return fmt.Errorf("%w: ai config: ModelPath is required", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: ai config: unknown backend %q", core.ErrConfiguration, c.Backend)
	}
	return nil
}

// CheckDimensions verifies every vector has the configured width.
func (c *Config) CheckDimensions(vectors ...[]float32) error {
	for _, v := range vectors {
		if err := core.ValidateEmbedding(v, c.Dimensions); err != nil {
			return err
		}
	}
	return nil
}
