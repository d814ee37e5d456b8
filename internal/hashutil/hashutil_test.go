package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan:
// - CanonicalJSON sorts object keys at every nesting level
// - CanonicalJSON is byte-stable across runs and input orderings
// - HashCanonical equals the hash of the canonical bytes
// - CosineSimilarity handles identity, orthogonality, and mismatched dims
// - EstimateTokens approximates bytes/4

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"y": 2, "x": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"x":1,"y":2},"zebra":1}`, string(out))
}

func TestCanonicalJSON_StableAcrossStructAndMap(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	fromStruct, err := CanonicalJSON(payload{B: "v", A: 7})
	require.NoError(t, err)
	fromMap, err := CanonicalJSON(map[string]any{"a": 7, "b": "v"})
	require.NoError(t, err)
	assert.Equal(t, string(fromMap), string(fromStruct))
}

func TestCanonicalJSON_IntegralFloatsMatchInts(t *testing.T) {
	a, err := CanonicalJSON(map[string]any{"n": 1})
	require.NoError(t, err)
	b, err := CanonicalJSON(map[string]any{"n": 1.0})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestHashCanonical_Deterministic(t *testing.T) {
	v := map[string]any{"edges": []any{"a", "b"}, "count": 2}
	h1, err := HashCanonical(v)
	require.NoError(t, err)
	h2, err := HashCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestSha256Bytes_KnownVector(t *testing.T) {
	// SHA-256 of the empty string.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Bytes(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Mismatched dimensions and zero vectors score 0 rather than erroring.
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}
