package chunker

import (
	"fmt"
	"regexp"
)

// declPattern pairs a top-level declaration regex with the chunk type and
// the capture group holding the name.
type declPattern struct {
	re        *regexp.Regexp
	chunkType string
	nameGroup int
}

var regexPatterns = map[string][]declPattern{
	"typescript": tsRegexPatterns,
	"tsx":        tsRegexPatterns,
	"javascript": tsRegexPatterns,
	"python": {
		{regexp.MustCompile(`^(async\s+)?def\s+(\w+)`), TypeFunction, 2},
		{regexp.MustCompile(`^class\s+(\w+)`), TypeClass, 1},
	},
	"go": {
		{regexp.MustCompile(`^func\s+(\([^)]*\)\s+)?(\w+)`), TypeFunction, 2},
		{regexp.MustCompile(`^type\s+(\w+)`), TypeType, 1},
		{regexp.MustCompile(`^(const|var)\s+(\w+|\()`), TypeConst, 2},
	},
	"rust": {
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?(async\s+)?fn\s+(\w+)`), TypeFunction, 4},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?struct\s+(\w+)`), TypeClass, 3},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?enum\s+(\w+)`), TypeEnum, 3},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?trait\s+(\w+)`), TypeInterface, 3},
		{regexp.MustCompile(`^impl\b`), TypeClass, 0},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?mod\s+(\w+)`), TypeModule, 3},
	},
	"csharp": {
		{regexp.MustCompile(`^\s*(public|internal|private|protected)?\s*(static\s+|abstract\s+|sealed\s+|partial\s+)*(class|interface|struct|record|enum)\s+(\w+)`), TypeClass, 4},
		{regexp.MustCompile(`^namespace\s+([\w.]+)`), TypeModule, 1},
	},
	"c": {
		{regexp.MustCompile(`^\w[\w\s*]*\s+\**(\w+)\s*\([^;]*$`), TypeFunction, 1},
		{regexp.MustCompile(`^(typedef\s+)?struct\s+(\w+)`), TypeType, 2},
		{regexp.MustCompile(`^(typedef\s+)?enum\s+(\w+)`), TypeEnum, 2},
	},
	"java": {
		{regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+|final\s+|abstract\s+)*(class|interface|enum)\s+(\w+)`), TypeClass, 4},
	},
	"php": {
		{regexp.MustCompile(`^\s*(abstract\s+|final\s+)?(class|interface|trait|enum)\s+(\w+)`), TypeClass, 3},
		{regexp.MustCompile(`^\s*function\s+(\w+)`), TypeFunction, 1},
	},
	"ruby": {
		{regexp.MustCompile(`^\s*def\s+([\w.?!]+)`), TypeFunction, 1},
		{regexp.MustCompile(`^\s*(class|module)\s+([\w:]+)`), TypeClass, 2},
	},
}

var tsRegexPatterns = []declPattern{
	{regexp.MustCompile(`^export\s+default\s+(async\s+)?function\s*(\w*)`), TypeFunction, 2},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?(async\s+)?function\s+(\w+)`), TypeFunction, 4},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?(abstract\s+)?class\s+(\w+)`), TypeClass, 4},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?interface\s+(\w+)`), TypeInterface, 3},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?type\s+(\w+)`), TypeType, 3},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?(const\s+)?enum\s+(\w+)`), TypeEnum, 4},
	{regexp.MustCompile(`^(export\s+)?(declare\s+)?(const|let|var)\s+(\w+)`), TypeConst, 4},
	{regexp.MustCompile(`^(export\s+)?namespace\s+([\w.]+)`), TypeModule, 2},
}

// RegexChunker extracts top-level declarations by line pattern. It is the
// middle ground for recognized languages too large to parse with
// tree-sitter.
type RegexChunker struct {
	language string
}

// NewRegex creates a regex chunker for the named language.
func NewRegex(language string) *RegexChunker {
	return &RegexChunker{language: language}
}

// Chunk scans source line by line; each matched declaration opens a chunk
// that runs to the line before the next match.
func (c *RegexChunker) Chunk(source string, filePath string, opts Options) ([]Chunk, error) {
	patterns, ok := regexPatterns[c.language]
	if !ok {
		return nil, fmt.Errorf("no regex patterns for language %q", c.language)
	}
	opts = opts.withDefaults(false)

	lines := splitLines(source)

	type mark struct {
		line      int
		chunkType string
		name      string
	}
	var marks []mark

	for i, line := range lines {
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := ""
			if p.nameGroup > 0 && p.nameGroup < len(m) {
				name = m[p.nameGroup]
			}
			marks = append(marks, mark{line: i + 1, chunkType: p.chunkType, name: name})
			break
		}
	}

	var chunks []Chunk
	for i, m := range marks {
		end := len(lines)
		if i+1 < len(marks) {
			end = marks[i+1].line - 1
		}
		chunks = append(chunks, Chunk{
			Text: extractLines(lines, m.line, end),
			Span: Span{StartLine: m.line, EndLine: end},
			Type: m.chunkType,
			Name: m.name,
		})
	}

	chunks = mergeSmall(chunks, lines, opts.MinLines)
	return splitOversized(chunks, opts.MaxLines), nil
}
