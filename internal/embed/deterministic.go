package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DefaultDimensions matches the output size of small sentence-transformer
// models. The OpenAI client produces 1536-dimensional vectors, so a scope
// embedded with one client is not dimension-compatible with the other.
const DefaultDimensions = 384

// Deterministic generates embeddings from the content hash of the text.
// Equal texts always produce equal vectors, which keeps offline operation
// and the test suite fully reproducible. It shares a family resemblance
// with real embeddings only in shape, not in semantics: similarity over
// these vectors measures content identity, not meaning.
type Deterministic struct {
	dimensions int
}

// NewDeterministic creates the offline embedding client.
func NewDeterministic() *Deterministic {
	return &Deterministic{dimensions: DefaultDimensions}
}

func (d *Deterministic) Dimensions() int {
	return d.dimensions
}

func (d *Deterministic) Embed(ctx context.Context, text string) ([]float32, error) {
	return d.vector(text), nil
}

func (d *Deterministic) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.vector(t)
	}
	return out, nil
}

// vector expands the SHA-256 of text into a unit-length vector by hashing
// counter blocks.
func (d *Deterministic) vector(text string) []float32 {
	vec := make([]float32, d.dimensions)

	seed := sha256.Sum256([]byte(text))
	var block [40]byte
	copy(block[:32], seed[:])

	var norm float64
	for i := 0; i < d.dimensions; i += 8 {
		binary.LittleEndian.PutUint64(block[32:], uint64(i))
		h := sha256.Sum256(block[:])
		for j := 0; j < 8 && i+j < d.dimensions; j++ {
			bits := binary.LittleEndian.Uint32(h[j*4 : j*4+4])
			v := float32(bits)/float32(math.MaxUint32)*2 - 1
			vec[i+j] = v
			norm += float64(v) * float64(v)
		}
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
