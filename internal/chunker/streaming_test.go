package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan:
// - Small inputs yield a single chunk covering every line
// - Window boundaries carry globally-adjusted line numbers
// - Consecutive windows overlap
// - Oversized windows split into maxLines sub-chunks

func TestStreaming_SmallInput(t *testing.T) {
	chunks, err := NewStreaming().Chunk("a\nb\nc", "data.txt", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Span.StartLine)
	assert.Equal(t, 3, chunks[0].Span.EndLine)
	assert.Equal(t, TypeLines, chunks[0].Type)
}

func TestStreaming_GlobalLineNumbers(t *testing.T) {
	// ~1200 lines of 100 bytes: several 50 KiB windows.
	line := strings.Repeat("x", 99)
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	chunks, err := NewStreaming().Chunk(b.String(), "big.txt", Options{MaxLines: 10000})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 1, chunks[0].Span.StartLine)
	for i := 1; i < len(chunks); i++ {
		// Each window starts inside the previous one (the overlap) but
		// strictly after its start.
		assert.Greater(t, chunks[i].Span.StartLine, chunks[i-1].Span.StartLine)
		assert.LessOrEqual(t, chunks[i].Span.StartLine, chunks[i-1].Span.EndLine+1)
	}

	last := chunks[len(chunks)-1]
	assert.GreaterOrEqual(t, last.Span.EndLine, 1200)
}

func TestStreaming_LineOverWindowStillChunks(t *testing.T) {
	// A single minified line larger than the window but under the line
	// cap forms its own window; nothing is lost and no error is raised.
	long := strings.Repeat("y", defaultWindowBytes+1024)
	source := "before\n" + long + "\nafter\n"

	chunks, err := NewStreaming().Chunk(source, "bundle.min.js", Options{MaxLines: 10000})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 1, chunks[0].Span.StartLine)
	assert.GreaterOrEqual(t, chunks[len(chunks)-1].Span.EndLine, 3)

	var all strings.Builder
	for _, c := range chunks {
		all.WriteString(c.Text)
	}
	assert.Contains(t, all.String(), "after")
}

func TestStreaming_LineOverCapReturnsError(t *testing.T) {
	source := "before\n" + strings.Repeat("z", maxLineBytes+1) + "\nafter\n"

	_, err := NewStreaming().Chunk(source, "bundle.min.js", Options{})
	require.Error(t, err)
}

func TestStreaming_SplitsToMaxLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("line\n")
	}

	chunks, err := NewStreaming().Chunk(b.String(), "data.txt", Options{MaxLines: 100})
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Span.EndLine-c.Span.StartLine+1, 100)
	}
}
