package ai

import (
	"testing"

	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "mxbai-embed-large", cfg.EmbeddingModel)
	assert.Equal(t, core.EmbeddingDimensions, cfg.Dimensions)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendHugot),
			WithEmbeddingHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithModelPath("/models/mxbai"),
			WithDimensions(384),
		)

		assert.Equal(t, BackendHugot, cfg.Backend)
		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "/models/mxbai", cfg.ModelPath)
		assert.Equal(t, 384, cfg.Dimensions)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		backend  string
		wantHost string
		wantBack string
	}{
		{"already has /v1", "http://localhost:11434/v1", "openai", "http://localhost:11434/v1", "openai"},
		{"missing /v1", "http://localhost:11434", "openai", "http://localhost:11434/v1", "openai"},
		{"has trailing slash", "http://localhost:11434/", "openai", "http://localhost:11434/v1", "openai"},
		{"empty host", "", "openai", "", "openai"},
		{"backend case and spaces", "", " Hugot ", "", "hugot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, Backend: tt.backend}
			cfg.Normalize()
			assert.Equal(t, tt.wantHost, cfg.EmbeddingHost)
			assert.Equal(t, tt.wantBack, cfg.Backend)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid openai",
			cfg:  Config{Backend: BackendOpenAI, EmbeddingHost: "http://localhost:11434", EmbeddingModel: "m", Dimensions: 1024},
		},
		{
			name: "valid hugot",
			cfg:  Config{Backend: BackendHugot, ModelPath: "/models", Dimensions: 1024},
		},
		{
			name:    "openai missing host",
			cfg:     Config{Backend: BackendOpenAI, EmbeddingModel: "m", Dimensions: 1024},
			wantErr: true,
		},
		{
			name:    "openai missing model",
			cfg:     Config{Backend: BackendOpenAI, EmbeddingHost: "http://x", Dimensions: 1024},
			wantErr: true,
		},
		{
			name:    "hugot missing model path",
			cfg:     Config{Backend: BackendHugot, Dimensions: 1024},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "tfjs", Dimensions: 1024},
			wantErr: true,
		},
		{
			name:    "zero dimensions",
			cfg:     Config{Backend: BackendHugot, ModelPath: "/models"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	cfg := NewConfig(WithDimensions(2))

	assert.NoError(t, cfg.CheckDimensions([]float32{1, 2}, []float32{3, 4}))

	err := cfg.CheckDimensions([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
