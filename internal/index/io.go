package index

import (
	"encoding/json"
	"sort"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Artifacts bundles the loaded index state for one workspace.
type Artifacts struct {
	Index *MindIndex
	Api   *ApiIndex
	Deps  *DepsGraph
	Diff  *RecentDiff
	Meta  *ProjectMeta
	Docs  *DocsIndex
}

// Empty returns a fresh artifact set with schema fields populated.
func Empty() *Artifacts {
	return &Artifacts{
		Index: &MindIndex{SchemaVersion: SchemaVersion, Generator: Generator},
		Api:   NewApiIndex(),
		Deps:  NewDepsGraph(),
		Diff:  NewRecentDiff(),
		Meta:  NewProjectMeta(),
		Docs:  NewDocsIndex(),
	}
}

// Load reads every artifact from store. A missing artifact yields
// MIND_NO_INDEX.
func Load(store storage.Storage) (*Artifacts, error) {
	a := Empty()
	for _, part := range []struct {
		path string
		dst  any
	}{
		{IndexPath, a.Index},
		{ApiIndexPath, a.Api},
		{DepsPath, a.Deps},
		{RecentDiffPath, a.Diff},
		{MetaPath, a.Meta},
		{DocsPath, a.Docs},
	} {
		data, err := store.Read(part.path)
		if err != nil {
			if storage.IsNotExist(err) {
				return nil, minderr.Newf(minderr.CodeNoIndex, "missing index artifact %s", part.path)
			}
			return nil, err
		}
		if err := json.Unmarshal(data, part.dst); err != nil {
			return nil, minderr.Wrap(minderr.CodeIndexInconsistent, err, "corrupt artifact "+part.path)
		}
	}
	return a, nil
}

// Normalize sorts every artifact into its canonical ordering: edges by
// (from, to, type), diff files and docs by path, externals ascending.
func (a *Artifacts) Normalize() {
	sort.Slice(a.Deps.Edges, func(i, j int) bool {
		ei, ej := a.Deps.Edges[i], a.Deps.Edges[j]
		if ei.From != ej.From {
			return ei.From < ej.From
		}
		if ei.To != ej.To {
			return ei.To < ej.To
		}
		return ei.Type < ej.Type
	})
	sort.Strings(a.Deps.Summary.ExternalDeps)
	sort.Slice(a.Diff.Files, func(i, j int) bool {
		return a.Diff.Files[i].Path < a.Diff.Files[j].Path
	})
	sort.Slice(a.Docs.Docs, func(i, j int) bool {
		return a.Docs.Docs[i].Path < a.Docs.Docs[j].Path
	})
	sort.Strings(a.Meta.Modules)
}

// RecomputeSummary rebuilds the deps summary from the edge list.
func (a *Artifacts) RecomputeSummary() {
	externals := map[string]bool{}
	files := map[string]bool{}
	for _, e := range a.Deps.Edges {
		files[e.From] = true
		if e.External() {
			externals[e.To] = true
		}
	}
	list := make([]string, 0, len(externals))
	for name := range externals {
		list = append(list, name)
	}
	sort.Strings(list)
	a.Deps.Summary = DepsSummary{
		ExternalDeps: list,
		EdgeCount:    len(a.Deps.Edges),
		FileCount:    len(files),
	}
}

// Rehash recomputes the per-artifact hashes and the composite checksum,
// stamping them into the manifest. updatedAt is the caller's timestamp.
func (a *Artifacts) Rehash(updatedAt string) error {
	a.Normalize()

	apiHash, err := hashutil.HashCanonical(a.Api)
	if err != nil {
		return err
	}
	depsHash, err := hashutil.HashCanonical(a.Deps)
	if err != nil {
		return err
	}
	diffHash, err := hashutil.HashCanonical(a.Diff)
	if err != nil {
		return err
	}
	checksum, err := hashutil.HashCanonical(map[string]any{
		"apiIndex":   a.Api,
		"deps":       a.Deps,
		"recentDiff": a.Diff,
		"meta":       a.Meta,
		"docs":       a.Docs,
	})
	if err != nil {
		return err
	}

	a.Index.SchemaVersion = SchemaVersion
	a.Index.Generator = Generator
	a.Index.UpdatedAt = updatedAt
	a.Index.ApiIndexHash = apiHash
	a.Index.DepsHash = depsHash
	a.Index.RecentDiffHash = diffHash
	a.Index.IndexChecksum = checksum
	return nil
}

// Save writes every artifact atomically as canonical JSON. Rehash must have
// been called first so the manifest matches what lands on disk.
func (a *Artifacts) Save(store storage.Storage) error {
	for _, part := range []struct {
		path string
		src  any
	}{
		{ApiIndexPath, a.Api},
		{DepsPath, a.Deps},
		{RecentDiffPath, a.Diff},
		{MetaPath, a.Meta},
		{DocsPath, a.Docs},
		{IndexPath, a.Index},
	} {
		data, err := hashutil.CanonicalJSON(part.src)
		if err != nil {
			return err
		}
		if err := store.Write(part.path, data); err != nil {
			return err
		}
	}
	return nil
}
