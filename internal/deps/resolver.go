// Package deps builds the import graph: relative imports resolved against
// the file's directory, tsconfig-style aliases resolved against the base
// directory (or a workspace-root scan when no base is configured), and
// everything else recorded as an external package reference.
package deps

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/storage"
)

// resolutionExtensions is the fixed probe order for extensionless imports.
var resolutionExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"}

// importRef is one raw import reference found in a source file.
type importRef struct {
	spec     string
	symbols  []string
	typeOnly bool
}

var (
	importFromRe   = regexp.MustCompile(`(?m)^\s*import\s+(type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`)
	bareImportRe   = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	exportFromRe   = regexp.MustCompile(`(?m)^\s*export\s+(type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`)
	requireRe      = regexp.MustCompile(`(?m)(?:const|let|var)\s+(.+?)\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`)
	namedSymbolsRe = regexp.MustCompile(`\{([^}]*)\}`)
)

// Resolver turns source files into dependency edges.
type Resolver struct {
	store storage.Storage
	cfg   *TSConfig

	// topDirs caches the workspace's top-level directories for the
	// no-base-directory alias scan.
	topDirs []string
}

// NewResolver creates a resolver, loading alias configuration when present.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store, cfg: LoadTSConfig(store)}
}

// Resolve extracts and resolves every import in the file at rel, returning
// deduplicated, sorted edges.
func (r *Resolver) Resolve(rel string, source string) []index.DepEdge {
	refs := scanImports(source)

	seen := map[string]int{}
	var edges []index.DepEdge
	for _, ref := range refs {
		target := r.resolveSpec(rel, ref.spec)
		if target == "" || target == rel {
			continue
		}

		edgeType := index.EdgeRuntime
		if ref.typeOnly {
			edgeType = index.EdgeDev
		}

		key := target + "\x00" + edgeType
		if i, ok := seen[key]; ok {
			edges[i].Symbols = mergeSymbols(edges[i].Symbols, ref.symbols)
			continue
		}
		seen[key] = len(edges)
		edges = append(edges, index.DepEdge{
			From:    rel,
			To:      target,
			Type:    edgeType,
			Symbols: mergeSymbols(nil, ref.symbols),
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Type < edges[j].Type
	})
	return edges
}

// scanImports finds import/export-from/require references with their
// imported symbol lists.
func scanImports(source string) []importRef {
	var refs []importRef

	for _, m := range importFromRe.FindAllStringSubmatch(source, -1) {
		refs = append(refs, importRef{
			spec:     m[3],
			symbols:  parseSymbols(m[2]),
			typeOnly: m[1] != "",
		})
	}
	for _, m := range exportFromRe.FindAllStringSubmatch(source, -1) {
		refs = append(refs, importRef{
			spec:     m[3],
			symbols:  parseSymbols(m[2]),
			typeOnly: m[1] != "",
		})
	}
	for _, m := range bareImportRe.FindAllStringSubmatch(source, -1) {
		refs = append(refs, importRef{spec: m[1]})
	}
	for _, m := range requireRe.FindAllStringSubmatch(source, -1) {
		refs = append(refs, importRef{
			spec:    m[2],
			symbols: parseSymbols(m[1]),
		})
	}
	return refs
}

// parseSymbols extracts imported names from an import clause: named
// bindings, the default binding, and namespace imports.
func parseSymbols(clause string) []string {
	var out []string
	if m := namedSymbolsRe.FindStringSubmatch(clause); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			// "orig as alias" imports are tracked by the source name.
			if idx := strings.Index(name, " as "); idx > 0 {
				name = name[:idx]
			}
			name = strings.TrimSpace(strings.TrimPrefix(name, "type "))
			if name != "" {
				out = append(out, name)
			}
		}
		clause = namedSymbolsRe.ReplaceAllString(clause, "")
	}

	for _, part := range strings.Split(clause, ",") {
		name := strings.TrimSpace(part)
		if name == "" || name == "*" {
			continue
		}
		if strings.HasPrefix(name, "* as ") {
			out = append(out, strings.TrimPrefix(name, "* as "))
			continue
		}
		if isIdentifier(name) {
			out = append(out, name)
		}
	}
	return out
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func mergeSymbols(existing, extra []string) []string {
	seen := map[string]bool{}
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			existing = append(existing, s)
		}
	}
	sort.Strings(existing)
	return existing
}

// resolveSpec resolves one import specifier from the importing file at rel.
// Returns an internal path, an external package name, or empty when an
// internal target cannot be found.
func (r *Resolver) resolveSpec(rel, spec string) string {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return r.probe(path.Join(path.Dir(rel), spec))
	}

	if targets, ok := r.cfg.Match(spec); ok {
		for _, target := range targets {
			if r.cfg.BaseURL != "" {
				if found := r.probe(path.Join(r.cfg.BaseURL, target)); found != "" {
					return found
				}
				continue
			}
			// No base directory: try the target against the workspace
			// root, then against each top-level directory.
			if found := r.probe(target); found != "" {
				return found
			}
			for _, dir := range r.topLevelDirs() {
				if found := r.probe(path.Join(dir, target)); found != "" {
					return found
				}
			}
		}
		// A matched alias that resolves nowhere is dropped rather than
		// misrecorded as an external package.
		return ""
	}

	return externalName(spec)
}

// probe tries candidate as-is, with each known extension, and as a
// directory index module.
func (r *Resolver) probe(candidate string) string {
	candidate = path.Clean(candidate)
	if r.store.Exists(candidate) {
		return candidate
	}
	for _, ext := range resolutionExtensions {
		if r.store.Exists(candidate + ext) {
			return candidate + ext
		}
	}
	for _, ext := range resolutionExtensions {
		idx := path.Join(candidate, "index"+ext)
		if r.store.Exists(idx) {
			return idx
		}
	}
	return ""
}

// topLevelDirs lists the workspace's first-level directories once.
func (r *Resolver) topLevelDirs() []string {
	if r.topDirs != nil {
		return r.topDirs
	}
	files, err := r.store.List(".")
	if err != nil {
		r.topDirs = []string{}
		return r.topDirs
	}
	seen := map[string]bool{}
	for _, f := range files {
		if idx := strings.IndexByte(f, '/'); idx > 0 {
			seen[f[:idx]] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		if d != "node_modules" && !strings.HasPrefix(d, ".") {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	r.topDirs = dirs
	return r.topDirs
}

// externalName extracts the package name from a bare specifier, honoring
// @scope/name packages.
func externalName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// RemoveFile purges every edge touching rel: outgoing edges are dropped,
// and edges that pointed at rel become unresolved and are dropped too.
func RemoveFile(edges []index.DepEdge, rel string) []index.DepEdge {
	out := edges[:0]
	for _, e := range edges {
		if e.From == rel || e.To == rel {
			continue
		}
		out = append(out, e)
	}
	return out
}
