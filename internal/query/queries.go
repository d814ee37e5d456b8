package query

import (
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
)

// Importer is one file depending on the queried file.
type Importer struct {
	Path    string   `json:"path"`
	Symbols []string `json:"symbols,omitempty"`
	Type    string   `json:"type"`
}

// ImpactResult lists the files whose edges point at the queried file.
type ImpactResult struct {
	File      string     `json:"file"`
	Importers []Importer `json:"importers"`
	Count     int        `json:"count"`
}

func (e *Engine) impact(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	result := &ImpactResult{File: e.renderPath(params.File, opts), Importers: []Importer{}}

	touched := 0
	for _, edge := range artifacts.Deps.Edges {
		touched++
		if edge.To != params.File {
			continue
		}
		result.Importers = append(result.Importers, Importer{
			Path:    e.renderPath(edge.From, opts),
			Symbols: edge.Symbols,
			Type:    edge.Type,
		})
	}

	sort.Slice(result.Importers, func(i, j int) bool {
		return result.Importers[i].Path < result.Importers[j].Path
	})
	if len(result.Importers) > opts.Limit {
		result.Importers = result.Importers[:opts.Limit]
	}
	result.Count = len(result.Importers)
	return result, 0, touched, nil
}

// ScopeResult lists the indexed files under a path prefix.
type ScopeResult struct {
	Path  string   `json:"path"`
	Files []string `json:"files"`
	Count int      `json:"count"`
}

func (e *Engine) scopeQuery(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	prefix := strings.TrimSuffix(params.Path, "/")
	result := &ScopeResult{Path: prefix, Files: []string{}}

	scanned := 0
	for rel := range artifacts.Api.Files {
		scanned++
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			result.Files = append(result.Files, e.renderPath(rel, opts))
		}
	}

	sort.Strings(result.Files)
	if len(result.Files) > opts.Limit {
		result.Files = result.Files[:opts.Limit]
	}
	result.Count = len(result.Files)
	return result, scanned, 0, nil
}

// ExportsResult is the export surface of one file.
type ExportsResult struct {
	File    string `json:"file"`
	Exports any    `json:"exports"`
	Count   int    `json:"count"`
}

func (e *Engine) exports(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	apiFile, ok := artifacts.Api.Files[params.File]
	if !ok {
		return nil, 0, 0, minderr.Newf(minderr.CodeQueryError, "file %s is not in the index", params.File)
	}
	return &ExportsResult{
		File:    e.renderPath(params.File, opts),
		Exports: apiFile.Exports,
		Count:   len(apiFile.Exports),
	}, 1, 0, nil
}

// ExternalsResult maps external packages to the files referencing them.
type ExternalsResult struct {
	Externals map[string][]string `json:"externals"`
	Count     int                 `json:"count"`
}

func (e *Engine) externals(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	result := &ExternalsResult{Externals: map[string][]string{}}

	touched := 0
	for _, edge := range artifacts.Deps.Edges {
		touched++
		if !edge.External() {
			continue
		}
		if params.Scope != "" && !strings.HasPrefix(edge.From, strings.TrimSuffix(params.Scope, "/")+"/") {
			continue
		}
		result.Externals[edge.To] = append(result.Externals[edge.To], e.renderPath(edge.From, opts))
	}

	for pkg := range result.Externals {
		files := result.Externals[pkg]
		sort.Strings(files)
		result.Externals[pkg] = dedupeSorted(files)
	}
	result.Count = len(result.Externals)
	return result, 0, touched, nil
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// ChainHop is one file in the transitive dependency chain.
type ChainHop struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// ChainResult is the forward dependency chain from a file.
type ChainResult struct {
	File  string     `json:"file"`
	Chain []ChainHop `json:"chain"`
	Count int        `json:"count"`
}

func (e *Engine) chain(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	g := graph.New(graph.StringHash, graph.Directed())

	touched := 0
	for _, edge := range artifacts.Deps.Edges {
		touched++
		if edge.External() {
			continue
		}
		_ = g.AddVertex(edge.From)
		_ = g.AddVertex(edge.To)
		_ = g.AddEdge(edge.From, edge.To)
	}

	result := &ChainResult{File: e.renderPath(params.File, opts), Chain: []ChainHop{}}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, 0, touched, minderr.Wrap(minderr.CodeQueryError, err, "dependency graph traversal failed")
	}

	// Level-order walk bounded by depth; neighbors expand in sorted order
	// so the chain is deterministic.
	depths := map[string]int{params.File: 0}
	frontier := []string{params.File}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		if depths[node] >= opts.Depth {
			continue
		}

		neighbors := make([]string, 0, len(adjacency[node]))
		for next := range adjacency[node] {
			neighbors = append(neighbors, next)
		}
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if _, seen := depths[next]; seen {
				continue
			}
			depths[next] = depths[node] + 1
			result.Chain = append(result.Chain, ChainHop{Path: e.renderPath(next, opts), Depth: depths[next]})
			frontier = append(frontier, next)
		}
	}

	sort.Slice(result.Chain, func(i, j int) bool {
		if result.Chain[i].Depth != result.Chain[j].Depth {
			return result.Chain[i].Depth < result.Chain[j].Depth
		}
		return result.Chain[i].Path < result.Chain[j].Path
	})
	if len(result.Chain) > opts.Limit {
		result.Chain = result.Chain[:opts.Limit]
	}
	result.Count = len(result.Chain)
	return result, 0, touched, nil
}

// MetaResult is the package summary.
type MetaResult struct {
	Name         string   `json:"name,omitempty"`
	Modules      []string `json:"modules"`
	ExportsCount int      `json:"exportsCount"`
	LastActivity string   `json:"lastActivity,omitempty"`
}

func (e *Engine) metaQuery(params Params, artifacts *index.Artifacts) (any, int, int, error) {
	meta := artifacts.Meta
	if params.Product != "" && meta.Name != "" && meta.Name != params.Product {
		return &MetaResult{Modules: []string{}}, 0, 0, nil
	}
	return &MetaResult{
		Name:         meta.Name,
		Modules:      meta.Modules,
		ExportsCount: meta.ExportsCount,
		LastActivity: meta.LastActivity,
	}, 0, 0, nil
}

// DocsResult is the filtered docs listing.
type DocsResult struct {
	Docs  []index.DocEntry `json:"docs"`
	Count int              `json:"count"`
}

func (e *Engine) docs(params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	docs := artifacts.Docs.Docs

	if params.Search != "" {
		matched, err := searchDocs(docs, params.Search)
		if err != nil {
			e.logger.Warn("docs search index failed, using substring match", "error", err)
			matched = substringDocs(docs, params.Search)
		}
		docs = matched
	}

	result := &DocsResult{Docs: []index.DocEntry{}}
	scanned := 0
	for _, d := range docs {
		scanned++
		if params.Tag != "" && d.Tag != params.Tag {
			continue
		}
		if params.Type != "" && d.Type != params.Type {
			continue
		}
		d.Path = e.renderPath(d.Path, opts)
		result.Docs = append(result.Docs, d)
	}

	sort.Slice(result.Docs, func(i, j int) bool {
		return result.Docs[i].Path < result.Docs[j].Path
	})
	if len(result.Docs) > opts.Limit {
		result.Docs = result.Docs[:opts.Limit]
	}
	result.Count = len(result.Docs)
	return result, scanned, 0, nil
}
