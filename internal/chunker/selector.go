package chunker

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Size thresholds for strategy selection.
const (
	// StreamingThreshold is the size above which files are always chunked
	// by the streaming strategy.
	StreamingThreshold = 200 * 1024

	// RegexThreshold is the size above which recognized languages fall
	// back from tree-sitter to regex extraction.
	RegexThreshold = 500 * 1024

	// RegexCeiling is the size above which even regex extraction is
	// skipped in favor of streaming.
	RegexCeiling = 1024 * 1024
)

// generatedPatterns match build artifacts and vendored trees that never
// benefit from semantic chunking.
var generatedPatterns = compilePatterns([]string{
	"**/bundle.*",
	"bundle.*",
	"**/vendor.*",
	"vendor.*",
	"**/*.min.*",
	"*.min.*",
	"dist/**",
	"**/dist/**",
	"build/**",
	"**/build/**",
	"node_modules/**",
	"**/node_modules/**",
})

func compilePatterns(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, glob.MustCompile(p, '/'))
	}
	return out
}

// IsGeneratedPath reports whether rel matches a generated-file pattern.
func IsGeneratedPath(rel string) bool {
	rel = strings.TrimPrefix(path.Clean(rel), "./")
	for _, g := range generatedPatterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

var markdownExtensions = map[string]bool{
	".md":       true,
	".mdx":      true,
	".markdown": true,
}

// IsMarkdownPath reports whether rel has a markdown extension.
func IsMarkdownPath(rel string) bool {
	return markdownExtensions[strings.ToLower(path.Ext(rel))]
}

// Select picks the chunking strategy for a file based on its path and size.
// Recognized languages degrade with size: tree-sitter up to 500 KiB, regex
// extraction up to 1 MiB, streaming beyond. Everything unrecognized streams,
// as does any markdown file past the streaming threshold.
func Select(rel string, size int64) Chunker {
	if IsGeneratedPath(rel) {
		return NewStreaming()
	}
	if IsMarkdownPath(rel) {
		if size > StreamingThreshold {
			return NewStreaming()
		}
		return NewMarkdown()
	}
	if lang := LanguageForPath(rel); lang != "" {
		switch {
		case size <= RegexThreshold:
			return NewTreeSitter(lang)
		case size <= RegexCeiling:
			return NewRegex(lang)
		}
	}
	return NewStreaming()
}

// ChunkFile runs the selected strategy over source, falling back to
// streaming when the strategy fails or produces nothing. Streaming is the
// terminal strategy: when it errors, content was dropped, and the error is
// returned alongside whatever chunks survived so the caller can record the
// file as a parse failure instead of indexing a truncated chunk set.
func ChunkFile(source string, rel string, size int64, opts Options) ([]Chunk, error) {
	strategy := Select(rel, size)

	chunks, err := strategy.Chunk(source, rel, opts)
	if err == nil && len(chunks) > 0 {
		return chunks, nil
	}
	if _, isStreaming := strategy.(*StreamingChunker); isStreaming {
		return chunks, err
	}

	return NewStreaming().Chunk(source, rel, opts)
}
