package chunker

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TreeSitterChunker extracts declaration-level chunks using the tree-sitter
// grammar for one language.
type TreeSitterChunker struct {
	spec *languageSpec
}

// NewTreeSitter creates an AST-aware chunker for the named language.
func NewTreeSitter(language string) *TreeSitterChunker {
	return &TreeSitterChunker{spec: languages()[language]}
}

// Chunk parses source and emits one chunk per top-level declaration, tagged
// with the declaration kind and name. Export wrappers and decorators are
// descended through so the declaration inside them is still found.
func (c *TreeSitterChunker) Chunk(source string, filePath string, opts Options) ([]Chunk, error) {
	if c.spec == nil {
		return nil, fmt.Errorf("no tree-sitter grammar for %s", filePath)
	}
	opts = opts.withDefaults(false)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.spec.lang())

	src := []byte(source)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filePath)
	}
	defer tree.Close()

	lines := splitLines(source)
	root := tree.RootNode()

	contextPrefix := ""
	if opts.PreserveContext {
		contextPrefix = c.fileContext(root, src)
	}

	var chunks []Chunk
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(uint(i))
		decl := c.unwrap(node)
		if decl == nil {
			continue
		}
		chunkType, ok := c.spec.declarations[decl.Kind()]
		if !ok {
			continue
		}

		startLine := int(node.StartPosition().Row) + 1
		endLine := int(node.EndPosition().Row) + 1

		text := extractLines(lines, startLine, endLine)
		if opts.IncludeJSDoc {
			if doc := c.precedingComment(root, i, src); doc != "" {
				text = doc + "\n" + text
			}
		}
		if contextPrefix != "" {
			text = contextPrefix + "\n" + text
		}

		chunks = append(chunks, Chunk{
			Text: text,
			Span: Span{StartLine: startLine, EndLine: endLine},
			Type: chunkType,
			Name: c.declName(decl, src),
		})
	}

	chunks = mergeSmall(chunks, lines, opts.MinLines)
	return splitOversized(chunks, opts.MaxLines), nil
}

// unwrap descends through wrapper nodes (export statements, decorated
// definitions) to the declaration they carry.
func (c *TreeSitterChunker) unwrap(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if _, ok := c.spec.declarations[node.Kind()]; ok {
		return node
	}
	if c.spec.wrapperKinds[node.Kind()] {
		for i := 0; i < int(node.ChildCount()); i++ {
			if inner := c.unwrap(node.Child(uint(i))); inner != nil {
				return inner
			}
		}
	}
	return nil
}

// declName finds the declared name: the grammar's name field when present,
// otherwise the first identifier-like descendant.
func (c *TreeSitterChunker) declName(node *sitter.Node, src []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nodeText(nameNode, src)
	}

	var name string
	walkTree(node, func(n *sitter.Node) bool {
		if name != "" {
			return false
		}
		kind := n.Kind()
		if strings.Contains(kind, "identifier") || kind == "constant" || kind == "type_identifier" {
			name = nodeText(n, src)
			return false
		}
		return true
	})
	return name
}

// fileContext collects the file's imports and any header comments that
// appear before the first declaration.
func (c *TreeSitterChunker) fileContext(root *sitter.Node, src []byte) string {
	var parts []string
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(uint(i))
		kind := node.Kind()
		switch {
		case c.spec.importKinds[kind]:
			parts = append(parts, nodeText(node, src))
		case c.spec.commentKinds[kind] && len(parts) == i:
			parts = append(parts, nodeText(node, src))
		}
	}
	return strings.Join(parts, "\n")
}

// precedingComment returns the comment node directly above root's child at
// index, if the comment's last line touches the declaration.
func (c *TreeSitterChunker) precedingComment(root *sitter.Node, index int, src []byte) string {
	if index == 0 {
		return ""
	}
	prev := root.Child(uint(index - 1))
	if prev == nil || !c.spec.commentKinds[prev.Kind()] {
		return ""
	}
	cur := root.Child(uint(index))
	if int(cur.StartPosition().Row)-int(prev.EndPosition().Row) > 1 {
		return ""
	}
	return nodeText(prev, src)
}

// mergeSmall coalesces runs of adjacent chunks shorter than minLines so the
// output does not degenerate into one chunk per one-line declaration.
func mergeSmall(chunks []Chunk, lines []string, minLines int) []Chunk {
	if minLines <= 1 || len(chunks) < 2 {
		return chunks
	}

	var out []Chunk
	for _, c := range chunks {
		size := c.Span.EndLine - c.Span.StartLine + 1
		if len(out) > 0 {
			last := &out[len(out)-1]
			lastSize := last.Span.EndLine - last.Span.StartLine + 1
			if lastSize < minLines && size < minLines && c.Span.StartLine > last.Span.EndLine {
				last.Span.EndLine = c.Span.EndLine
				last.Text = extractLines(lines, last.Span.StartLine, last.Span.EndLine)
				if last.Metadata == nil {
					last.Metadata = map[string]any{}
				}
				last.Metadata["merged"] = true
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// nodeText extracts the source text of a tree-sitter node.
func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return string(src[node.StartByte():node.EndByte()])
}

// extractLines returns source lines startLine..endLine (1-indexed inclusive).
func extractLines(lines []string, startLine, endLine int) string {
	if startLine < 1 || endLine < 1 || startLine > len(lines) {
		return ""
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[startLine-1:end], "\n")
}

// walkTree recursively walks node, calling visitor for each node until it
// returns false.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
