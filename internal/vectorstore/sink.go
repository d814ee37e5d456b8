package vectorstore

import (
	"context"
	"fmt"

	"github.com/kb-labs/mind/internal/chunker"
	"github.com/kb-labs/mind/internal/embed"
)

// Sink feeds indexing output into one scope of the vector store, embedding
// each chunk on the way in. It satisfies the indexer's VectorSink.
type Sink struct {
	store  *Store
	client embed.Client
	scope  string
}

// NewSink creates a sink writing to scope.
func NewSink(store *Store, client embed.Client, scope string) *Sink {
	return &Sink{store: store, client: client, scope: scope}
}

// IndexFile embeds chunks and replaces rel's entries in the scope.
func (s *Sink) IndexFile(rel string, fileHash string, chunks []chunker.Chunk) error {
	stored, err := EmbedChunks(context.Background(), s.client, s.scope, "", rel, chunks)
	if err != nil {
		return err
	}
	return s.store.UpsertFile(s.scope, rel, fileHash, stored)
}

// RemoveFile drops rel's entries from the scope.
func (s *Sink) RemoveFile(rel string) error {
	return s.store.RemoveFile(s.scope, rel)
}

// EmbedChunks converts chunker output into stored chunks with embeddings.
// Chunk ids are positional within (path, span), stable across runs.
func EmbedChunks(ctx context.Context, client embed.Client, scopeID, sourceID, rel string, chunks []chunker.Chunk) ([]StoredChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", rel, err)
	}

	stored := make([]StoredChunk, len(chunks))
	for i, c := range chunks {
		stored[i] = StoredChunk{
			ChunkID:   fmt.Sprintf("%s:%d-%d:%d", rel, c.Span.StartLine, c.Span.EndLine, i),
			ScopeID:   scopeID,
			SourceID:  sourceID,
			Path:      rel,
			Text:      c.Text,
			Span:      c.Span,
			Type:      c.Type,
			Name:      c.Name,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	return stored, nil
}
