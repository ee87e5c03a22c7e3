// Package mock provides test double implementations of AI service interfaces.
//
// The mocks let tests run without a model server and give deterministic
// vectors: the same text always yields the same unit vector.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder().WithDimensions(8)
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("model offline")
//	}
//	count := embedder.CallCount()
package mock
