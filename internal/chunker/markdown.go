package chunker

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker splits markdown into one chunk per heading region and
// additionally emits each fenced code block as its own chunk annotated with
// the declared language.
type MarkdownChunker struct {
	md goldmark.Markdown
}

// NewMarkdown creates a markdown chunker.
func NewMarkdown() *MarkdownChunker {
	return &MarkdownChunker{md: goldmark.New()}
}

type headingMark struct {
	line  int
	level int
	title string
}

// Chunk parses source with goldmark and splits on headings. The preamble
// before the first heading becomes its own section.
func (c *MarkdownChunker) Chunk(source string, filePath string, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults(true)

	src := []byte(source)
	reader := text.NewReader(src)
	doc := c.md.Parser().Parse(reader)

	lineStarts := buildLineStarts(src)
	lines := splitLines(source)

	var headings []headingMark
	var codeBlocks []Chunk

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Lines().Len() > 0 {
				seg := node.Lines().At(0)
				headings = append(headings, headingMark{
					line:  offsetToLine(lineStarts, seg.Start),
					level: node.Level,
					title: strings.TrimSpace(string(seg.Value(src))),
				})
			}
		case *ast.FencedCodeBlock:
			if node.Lines().Len() == 0 {
				return ast.WalkContinue, nil
			}
			first := node.Lines().At(0)
			last := node.Lines().At(node.Lines().Len() - 1)
			startLine := offsetToLine(lineStarts, first.Start)
			endLine := offsetToLine(lineStarts, last.Stop-1)

			var content strings.Builder
			for i := 0; i < node.Lines().Len(); i++ {
				content.Write(node.Lines().At(i).Value(src))
			}

			codeBlocks = append(codeBlocks, Chunk{
				Text: strings.TrimRight(content.String(), "\n"),
				Span: Span{StartLine: startLine, EndLine: endLine},
				Type: TypeCodeBlock,
				Metadata: map[string]any{
					"language": string(node.Language(src)),
				},
			})
		}
		return ast.WalkContinue, nil
	})

	chunks := c.sections(headings, lines)
	chunks = append(chunks, codeBlocks...)

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Span.StartLine != chunks[j].Span.StartLine {
			return chunks[i].Span.StartLine < chunks[j].Span.StartLine
		}
		return chunks[i].Type == TypeSection && chunks[j].Type != TypeSection
	})

	return splitOversized(chunks, opts.MaxLines), nil
}

// sections slices the document into heading regions: each runs from its
// heading line to the line before the next heading.
func (c *MarkdownChunker) sections(headings []headingMark, lines []string) []Chunk {
	var out []Chunk

	if len(headings) == 0 {
		if text := strings.TrimSpace(joinLines(lines)); text != "" {
			out = append(out, Chunk{
				Text: joinLines(lines),
				Span: Span{StartLine: 1, EndLine: len(lines)},
				Type: TypeSection,
			})
		}
		return out
	}

	if headings[0].line > 1 {
		preamble := extractLines(lines, 1, headings[0].line-1)
		if strings.TrimSpace(preamble) != "" {
			out = append(out, Chunk{
				Text: preamble,
				Span: Span{StartLine: 1, EndLine: headings[0].line - 1},
				Type: TypeSection,
			})
		}
	}

	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].line - 1
		}
		out = append(out, Chunk{
			Text: extractLines(lines, h.line, end),
			Span: Span{StartLine: h.line, EndLine: end},
			Type: TypeSection,
			Name: h.title,
			Metadata: map[string]any{
				"level": h.level,
			},
		})
	}
	return out
}

// buildLineStarts returns the byte offset of each line start.
func buildLineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// offsetToLine converts a byte offset into a 1-based line number.
func offsetToLine(starts []int, offset int) int {
	idx := sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
	return idx
}
