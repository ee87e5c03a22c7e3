package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when a partner repository is not provided.
	ErrRepositoryRequired = errors.New("partner repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// errDigestChanged marks a partner edited after its batch was embedded.
	errDigestChanged = errors.New("partner changed during reembedding")
)
