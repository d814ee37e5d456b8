// Package chunker splits source files into semantic chunks. Strategy
// selection is driven by extension and file size: tree-sitter for recognized
// languages, goldmark for markdown, regex extraction for oversized code
// files, and a streaming sliding window for everything else.
package chunker

// Span is a 1-based inclusive line range within a file.
type Span struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// Chunk is a contiguous slice of a file carrying its text and semantic
// metadata.
type Chunk struct {
	Text     string         `json:"text"`
	Span     Span           `json:"span"`
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk types produced across strategies.
const (
	TypeFunction  = "function"
	TypeClass     = "class"
	TypeInterface = "interface"
	TypeType      = "type"
	TypeEnum      = "enum"
	TypeModule    = "module"
	TypeConst     = "const"
	TypeSection   = "section"
	TypeCodeBlock = "code_block"
	TypeLines     = "lines"
)

// Options control chunking behavior. Zero values take the documented
// defaults via withDefaults.
type Options struct {
	// MinLines is the minimum chunk size; the tree-sitter and regex
	// strategies merge adjacent smaller regions. Default 20 for code, 30 for
	// markdown. The markdown and streaming chunkers do not merge, so small
	// sections and windows stay separate chunks there.
	MinLines int

	// MaxLines is the maximum chunk size; larger chunks are split into
	// equal sub-chunks. Default 200 for code, 150 for markdown.
	MaxLines int

	// PreserveContext prepends file-level imports and header comments to
	// each chunk's text.
	PreserveContext bool

	// IncludeJSDoc prepends the doc comment directly preceding a
	// declaration to its chunk.
	IncludeJSDoc bool
}

const (
	defaultCodeMinLines     = 20
	defaultCodeMaxLines     = 200
	defaultMarkdownMinLines = 30
	defaultMarkdownMaxLines = 150
)

func (o Options) withDefaults(markdown bool) Options {
	if o.MinLines <= 0 {
		if markdown {
			o.MinLines = defaultMarkdownMinLines
		} else {
			o.MinLines = defaultCodeMinLines
		}
	}
	if o.MaxLines <= 0 {
		if markdown {
			o.MaxLines = defaultMarkdownMaxLines
		} else {
			o.MaxLines = defaultCodeMaxLines
		}
	}
	return o
}

// Chunker is the common contract every strategy implements.
type Chunker interface {
	// Chunk splits source into chunks. Implementations return an error or
	// an empty slice when they cannot handle the input; the caller then
	// falls back to the streaming strategy.
	Chunk(source string, filePath string, opts Options) ([]Chunk, error)
}

// splitOversized splits any chunk longer than maxLines into equal
// sub-chunks tagged isSubChunk, carrying the original bounds in metadata.
func splitOversized(chunks []Chunk, maxLines int) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		lines := c.Span.EndLine - c.Span.StartLine + 1
		if lines <= maxLines {
			out = append(out, c)
			continue
		}

		parts := (lines + maxLines - 1) / maxLines
		per := (lines + parts - 1) / parts
		textLines := splitLines(c.Text)

		for i := 0; i < parts; i++ {
			startOffset := i * per
			endOffset := startOffset + per - 1
			if endOffset >= lines {
				endOffset = lines - 1
			}
			if startOffset > endOffset {
				break
			}

			sub := Chunk{
				Span: Span{
					StartLine: c.Span.StartLine + startOffset,
					EndLine:   c.Span.StartLine + endOffset,
				},
				Type: c.Type,
				Name: c.Name,
				Metadata: map[string]any{
					"isSubChunk":        true,
					"subChunkIndex":     i,
					"originalStartLine": c.Span.StartLine,
					"originalEndLine":   c.Span.EndLine,
				},
			}
			for k, v := range c.Metadata {
				if _, taken := sub.Metadata[k]; !taken {
					sub.Metadata[k] = v
				}
			}
			if startOffset < len(textLines) {
				hi := endOffset + 1
				if hi > len(textLines) {
					hi = len(textLines)
				}
				sub.Text = joinLines(textLines[startOffset:hi])
			}
			out = append(out, sub)
		}
	}
	return out
}
