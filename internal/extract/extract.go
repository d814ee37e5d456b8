// Package extract produces per-file export records: every exported symbol
// with a compact one-line signature and its leading doc comment. TypeScript
// and JavaScript get a full AST pass; other recognized languages fall back
// to a line-pattern scan of public declarations.
package extract

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/kb-labs/mind/internal/hashutil"
)

// Export kinds.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindType      = "type"
	KindConst     = "const"
	KindEnum      = "enum"
	KindInterface = "interface"
)

// ApiExport is one exported symbol of a file.
type ApiExport struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	JSDoc     string `json:"jsdoc,omitempty"`
}

// ApiFile is the export surface of one file.
type ApiFile struct {
	Exports []ApiExport `json:"exports"`
	Size    int         `json:"size"`
	Sha256  string      `json:"sha256"`
}

// File extracts the export surface of the file at rel with the given bytes.
func File(rel string, source []byte) *ApiFile {
	af := &ApiFile{
		Exports: []ApiExport{},
		Size:    len(source),
		Sha256:  hashutil.Sha256Bytes(source),
	}

	switch languageFamily(rel) {
	case "typescript":
		af.Exports = extractTreeSitter(source, sitter.NewLanguage(typescript.LanguageTypescript()))
	case "tsx":
		af.Exports = extractTreeSitter(source, sitter.NewLanguage(typescript.LanguageTSX()))
	case "javascript":
		af.Exports = extractTreeSitter(source, sitter.NewLanguage(javascript.Language()))
	default:
		af.Exports = extractGeneric(string(source))
	}

	af.Exports = dedupeByName(af.Exports)
	return af
}

func languageFamily(rel string) string {
	lower := strings.ToLower(rel)
	switch {
	case strings.HasSuffix(lower, ".tsx"), strings.HasSuffix(lower, ".jsx"):
		return "tsx"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".mts"), strings.HasSuffix(lower, ".cts"):
		return "typescript"
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".mjs"), strings.HasSuffix(lower, ".cjs"):
		return "javascript"
	default:
		return ""
	}
}

var declarationKinds = map[string]string{
	"function_declaration":           KindFunction,
	"generator_function_declaration": KindFunction,
	"class_declaration":              KindClass,
	"abstract_class_declaration":     KindClass,
	"interface_declaration":          KindInterface,
	"type_alias_declaration":         KindType,
	"enum_declaration":               KindEnum,
	"lexical_declaration":            KindConst,
	"variable_declaration":           KindConst,
}

func extractTreeSitter(source []byte, lang *sitter.Language) []ApiExport {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return []ApiExport{}
	}
	defer tree.Close()

	root := tree.RootNode()
	exports := []ApiExport{}

	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(uint(i))
		if node.Kind() != "export_statement" {
			continue
		}

		doc := leadingDoc(root, i, source)
		exports = append(exports, exportsFromStatement(node, source, doc)...)
	}

	return exports
}

// exportsFromStatement handles the three shapes of an export statement: a
// declaration, an export clause (re-exports), and a default expression.
func exportsFromStatement(node *sitter.Node, source []byte, doc string) []ApiExport {
	var out []ApiExport

	isDefault := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		kind := child.Kind()

		if kind == "default" {
			isDefault = true
			continue
		}

		if declKind, ok := declarationKinds[kind]; ok {
			for _, name := range declaredNames(child, source) {
				out = append(out, ApiExport{
					Name:      name,
					Kind:      declKind,
					Signature: signatureOf(child, source),
					JSDoc:     doc,
				})
			}
			continue
		}

		if kind == "export_clause" {
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(uint(j))
				if spec.Kind() != "export_specifier" {
					continue
				}
				name := nodeText(spec, source)
				// Renamed re-exports keep the public name.
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					name = nodeText(alias, source)
				} else if n := spec.ChildByFieldName("name"); n != nil {
					name = nodeText(n, source)
				}
				out = append(out, ApiExport{
					Name:      name,
					Kind:      KindConst,
					Signature: collapse(nodeText(node, source)),
					JSDoc:     doc,
				})
			}
		}
	}

	// export default <expression> with no named declaration inside.
	if isDefault && len(out) == 0 {
		out = append(out, ApiExport{
			Name:      "default",
			Kind:      KindConst,
			Signature: collapse(nodeText(node, source)),
			JSDoc:     doc,
		})
	}

	// export default function foo() — named default still records its name.
	if isDefault {
		for i := range out {
			if out[i].Name == "" {
				out[i].Name = "default"
			}
		}
	}

	return out
}

// declaredNames returns the names bound by a declaration node. Lexical
// declarations can bind several names at once.
func declaredNames(node *sitter.Node, source []byte) []string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return []string{nodeText(nameNode, source)}
	}

	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() != "variable_declarator" {
			continue
		}
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			names = append(names, nodeText(nameNode, source))
		}
	}
	if len(names) == 0 {
		names = []string{""}
	}
	return names
}

// signatureOf renders a declaration as a compact one-line signature: the
// declaration text up to its body, whitespace-collapsed.
func signatureOf(node *sitter.Node, source []byte) string {
	text := nodeText(node, source)
	if body := node.ChildByFieldName("body"); body != nil {
		text = string(source[node.StartByte():body.StartByte()])
	} else if idx := strings.IndexByte(text, '{'); idx > 0 {
		text = text[:idx]
	}
	return collapse(text)
}

const maxSignatureLen = 200

func collapse(s string) string {
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	out = strings.TrimSuffix(out, ";")
	if len(out) > maxSignatureLen {
		out = out[:maxSignatureLen]
	}
	return strings.TrimSpace(out)
}

// leadingDoc returns the first one-or-two lines of a comment that directly
// precedes child index of root.
func leadingDoc(root *sitter.Node, index int, source []byte) string {
	if index == 0 {
		return ""
	}
	prev := root.Child(uint(index - 1))
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	cur := root.Child(uint(index))
	if int(cur.StartPosition().Row)-int(prev.EndPosition().Row) > 1 {
		return ""
	}
	return docSummary(nodeText(prev, source))
}

// docSummary strips comment markers and keeps the first two content lines.
func docSummary(comment string) string {
	comment = strings.TrimPrefix(comment, "/**")
	comment = strings.TrimPrefix(comment, "/*")
	comment = strings.TrimSuffix(comment, "*/")

	var kept []string
	for _, line := range strings.Split(comment, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == 2 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// genericExportRe matches public top-level declarations for the non-TS
// languages: Go/Rust/Python style definitions scanned by line.
var genericExportRe = []struct {
	re   *regexp.Regexp
	kind string
	grp  int
}{
	{regexp.MustCompile(`^func\s+(\([^)]*\)\s+)?([A-Z]\w*)`), KindFunction, 2},
	{regexp.MustCompile(`^type\s+([A-Z]\w*)`), KindType, 1},
	{regexp.MustCompile(`^(const|var)\s+([A-Z]\w*)`), KindConst, 2},
	{regexp.MustCompile(`^(pub\s+)(async\s+)?fn\s+(\w+)`), KindFunction, 3},
	{regexp.MustCompile(`^(pub\s+)struct\s+(\w+)`), KindClass, 2},
	{regexp.MustCompile(`^(pub\s+)enum\s+(\w+)`), KindEnum, 2},
	{regexp.MustCompile(`^(pub\s+)trait\s+(\w+)`), KindInterface, 2},
	{regexp.MustCompile(`^(async\s+)?def\s+(\w+)`), KindFunction, 2},
	{regexp.MustCompile(`^class\s+(\w+)`), KindClass, 1},
}

func extractGeneric(source string) []ApiExport {
	exports := []ApiExport{}
	for _, line := range strings.Split(source, "\n") {
		for _, p := range genericExportRe {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[p.grp]
			if name == "" || strings.HasPrefix(name, "_") {
				break
			}
			exports = append(exports, ApiExport{
				Name:      name,
				Kind:      p.kind,
				Signature: collapse(line),
			})
			break
		}
	}
	return exports
}

// dedupeByName keeps the first export per name; names are unique within a
// file.
func dedupeByName(exports []ApiExport) []ApiExport {
	seen := make(map[string]bool, len(exports))
	out := exports[:0]
	for _, e := range exports {
		if e.Name == "" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	if out == nil {
		out = []ApiExport{}
	}
	return out
}
