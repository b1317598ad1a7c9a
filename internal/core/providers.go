package core

import "context"

// EmbeddingProvider is the raw external embedding service. It returns one
// vector per input, in input order, with whatever length the model produces.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder is the validated embedding client used by the memory service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type TokenCounter interface {
	Count(text string) int
}
