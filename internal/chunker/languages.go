package chunker

import (
	"path"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languageSpec describes how to chunk one language: its grammar and the
// node kinds that become chunks.
type languageSpec struct {
	name string
	lang func() *sitter.Language

	// declarations maps tree-sitter node kinds to chunk types.
	declarations map[string]string

	// importKinds are node kinds treated as file-level imports for
	// preserveContext.
	importKinds map[string]bool

	// commentKinds are node kinds treated as comments for doc attachment.
	commentKinds map[string]bool

	// wrapperKinds are node kinds descended through when looking for
	// top-level declarations (export statements, decorated definitions).
	wrapperKinds map[string]bool
}

var (
	langOnce  sync.Once
	langTable map[string]*languageSpec
)

var tsDeclarations = map[string]string{
	"function_declaration":           TypeFunction,
	"generator_function_declaration": TypeFunction,
	"class_declaration":              TypeClass,
	"abstract_class_declaration":     TypeClass,
	"interface_declaration":          TypeInterface,
	"type_alias_declaration":         TypeType,
	"enum_declaration":               TypeEnum,
	"internal_module":                TypeModule,
	"module":                         TypeModule,
	"lexical_declaration":            TypeConst,
	"variable_declaration":           TypeConst,
}

var tsWrappers = map[string]bool{
	"export_statement":    true,
	"ambient_declaration": true,
}

var tsComments = map[string]bool{"comment": true}

var tsImports = map[string]bool{"import_statement": true}

func languages() map[string]*languageSpec {
	langOnce.Do(func() {
		langTable = map[string]*languageSpec{
			"typescript": {
				name:         "typescript",
				lang:         func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTypescript()) },
				declarations: tsDeclarations,
				importKinds:  tsImports,
				commentKinds: tsComments,
				wrapperKinds: tsWrappers,
			},
			"tsx": {
				name:         "tsx",
				lang:         func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTSX()) },
				declarations: tsDeclarations,
				importKinds:  tsImports,
				commentKinds: tsComments,
				wrapperKinds: tsWrappers,
			},
			"javascript": {
				name:         "javascript",
				lang:         func() *sitter.Language { return sitter.NewLanguage(javascript.Language()) },
				declarations: tsDeclarations,
				importKinds:  tsImports,
				commentKinds: tsComments,
				wrapperKinds: tsWrappers,
			},
			"python": {
				name: "python",
				lang: func() *sitter.Language { return sitter.NewLanguage(python.Language()) },
				declarations: map[string]string{
					"function_definition": TypeFunction,
					"class_definition":    TypeClass,
				},
				importKinds: map[string]bool{
					"import_statement":      true,
					"import_from_statement": true,
				},
				commentKinds: map[string]bool{"comment": true},
				wrapperKinds: map[string]bool{"decorated_definition": true},
			},
			"go": {
				name: "go",
				lang: func() *sitter.Language { return sitter.NewLanguage(golang.Language()) },
				declarations: map[string]string{
					"function_declaration": TypeFunction,
					"method_declaration":   TypeFunction,
					"type_declaration":     TypeType,
					"const_declaration":    TypeConst,
					"var_declaration":      TypeConst,
				},
				importKinds:  map[string]bool{"import_declaration": true},
				commentKinds: map[string]bool{"comment": true},
			},
			"rust": {
				name: "rust",
				lang: func() *sitter.Language { return sitter.NewLanguage(rust.Language()) },
				declarations: map[string]string{
					"function_item": TypeFunction,
					"struct_item":   TypeClass,
					"enum_item":     TypeEnum,
					"trait_item":    TypeInterface,
					"impl_item":     TypeClass,
					"mod_item":      TypeModule,
					"type_item":     TypeType,
					"const_item":    TypeConst,
					"static_item":   TypeConst,
				},
				importKinds:  map[string]bool{"use_declaration": true},
				commentKinds: map[string]bool{"line_comment": true, "block_comment": true},
			},
			"csharp": {
				name: "csharp",
				lang: func() *sitter.Language { return sitter.NewLanguage(csharp.Language()) },
				declarations: map[string]string{
					"class_declaration":     TypeClass,
					"interface_declaration": TypeInterface,
					"struct_declaration":    TypeClass,
					"record_declaration":    TypeClass,
					"enum_declaration":      TypeEnum,
					"method_declaration":    TypeFunction,
					"namespace_declaration": TypeModule,
				},
				importKinds:  map[string]bool{"using_directive": true},
				commentKinds: map[string]bool{"comment": true},
			},
			"c": {
				name: "c",
				lang: func() *sitter.Language { return sitter.NewLanguage(c.Language()) },
				declarations: map[string]string{
					"function_definition": TypeFunction,
					"struct_specifier":    TypeType,
					"enum_specifier":      TypeEnum,
					"type_definition":     TypeType,
				},
				importKinds:  map[string]bool{"preproc_include": true},
				commentKinds: map[string]bool{"comment": true},
			},
			"java": {
				name: "java",
				lang: func() *sitter.Language { return sitter.NewLanguage(java.Language()) },
				declarations: map[string]string{
					"class_declaration":     TypeClass,
					"interface_declaration": TypeInterface,
					"enum_declaration":      TypeEnum,
					"method_declaration":    TypeFunction,
				},
				importKinds:  map[string]bool{"import_declaration": true},
				commentKinds: map[string]bool{"line_comment": true, "block_comment": true},
			},
			"php": {
				name: "php",
				lang: func() *sitter.Language { return sitter.NewLanguage(php.LanguagePHP()) },
				declarations: map[string]string{
					"function_definition":   TypeFunction,
					"class_declaration":     TypeClass,
					"interface_declaration": TypeInterface,
					"trait_declaration":     TypeClass,
					"enum_declaration":      TypeEnum,
				},
				importKinds:  map[string]bool{"namespace_use_declaration": true},
				commentKinds: map[string]bool{"comment": true},
			},
			"ruby": {
				name: "ruby",
				lang: func() *sitter.Language { return sitter.NewLanguage(ruby.Language()) },
				declarations: map[string]string{
					"method": TypeFunction,
					"class":  TypeClass,
					"module": TypeModule,
				},
				commentKinds: map[string]bool{"comment": true},
			},
		}
	})
	return langTable
}

var extensionLanguages = map[string]string{
	".ts":   "typescript",
	".mts":  "typescript",
	".cts":  "typescript",
	".tsx":  "tsx",
	".js":   "javascript",
	".jsx":  "tsx",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".py":   "python",
	".pyi":  "python",
	".go":   "go",
	".rs":   "rust",
	".cs":   "csharp",
	".c":    "c",
	".h":    "c",
	".java": "java",
	".php":  "php",
	".rb":   "ruby",
}

// LanguageForPath returns the language name for rel's extension, or empty
// when the extension is not recognized.
func LanguageForPath(rel string) string {
	return extensionLanguages[strings.ToLower(path.Ext(rel))]
}
