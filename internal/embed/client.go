// Package embed defines the embedding capability consumed by the retrieval
// pipeline. The core never imports a concrete provider; the deterministic
// implementation keeps everything working offline and in tests.
package embed

import "context"

// Client converts text into embedding vectors.
type Client interface {
	// Embed converts one text into its vector representation.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one call, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality this client produces.
	Dimensions() int
}
