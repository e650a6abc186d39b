package interfaces

import (
	"context"
)

// EmbeddingService generates vector embeddings for passages, queries, and
// answers. A single instance is shared between indexing and grounding so that
// both sides of a similarity comparison always come from the same model.
type EmbeddingService interface {
	// EmbedText generates an embedding for a single text. Empty input is an
	// error, not a zero vector.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts, order-preserving
	// and 1:1 with the input.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the embedding model. Persisted alongside the index
	// so a reload with a different model is rejected.
	ModelName() string

	// Dimension returns the fixed embedding dimensionality.
	Dimension() int
}
