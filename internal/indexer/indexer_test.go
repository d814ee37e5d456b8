package indexer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
	"github.com/kb-labs/mind/internal/verify"
)

// Test Plan:
// - Init writes empty artifacts; a second Init without force fails; with
//   force it is idempotent
// - Update indexes exports and dependency edges (S1)
// - tsconfig aliases resolve to internal edges (S2)
// - External packages land in the summary (S3)
// - Deleting a file and updating with changed=[f] purges it (S4)
// - Two sequential runs produce byte-identical artifacts except index.json
// - A fake-clock time budget yields partial=true with verifiable artifacts
// - Unchanged files are skipped unless noCache
// - Markdown files land in the docs index

func testWorkspace(t *testing.T, files map[string]string) storage.Storage {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		require.NoError(t, store.Write(rel, []byte(content)))
	}
	return store
}

func initialized(t *testing.T, store storage.Storage, opts ...Option) *Indexer {
	t.Helper()
	ix := New(store, opts...)
	_, err := ix.Init(false)
	require.NoError(t, err)
	return ix
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	store := testWorkspace(t, nil)
	ix := New(store)

	_, err := ix.Init(false)
	require.NoError(t, err)

	_, err = ix.Init(false)
	require.Error(t, err)

	_, err = ix.Init(true)
	assert.NoError(t, err)
}

func TestUpdate_IndexesExportsAndEdges(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"src/a.ts": "export const x = 1;",
		"src/b.ts": "import {x} from './a';",
	})
	ix := initialized(t, store)

	report, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Api.Added)
	assert.False(t, report.Partial)

	artifacts, err := index.Load(store)
	require.NoError(t, err)

	apiFile := artifacts.Api.Files["src/a.ts"]
	require.NotNil(t, apiFile)
	require.Len(t, apiFile.Exports, 1)
	assert.Equal(t, "x", apiFile.Exports[0].Name)
	assert.Equal(t, "const", apiFile.Exports[0].Kind)

	require.Len(t, artifacts.Deps.Edges, 1)
	assert.Equal(t, index.DepEdge{
		From: "src/b.ts", To: "src/a.ts", Type: index.EdgeRuntime, Symbols: []string{"x"},
	}, artifacts.Deps.Edges[0])
}

func TestUpdate_AliasResolvesInternally(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"tsconfig.json": `{"compilerOptions": {"baseUrl": ".", "paths": {"@/*": ["src/*"]}}}`,
		"src/a.ts":      "export const x = 1;",
		"src/b.ts":      "import {x} from '@/a';",
	})
	ix := initialized(t, store)

	_, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)

	artifacts, err := index.Load(store)
	require.NoError(t, err)
	require.Len(t, artifacts.Deps.Edges, 1)
	assert.Equal(t, "src/a.ts", artifacts.Deps.Edges[0].To)
	assert.Empty(t, artifacts.Deps.Summary.ExternalDeps)
}

func TestUpdate_ExternalsInSummary(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"src/index.ts": "import _ from 'lodash';",
	})
	ix := initialized(t, store)

	_, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)

	artifacts, err := index.Load(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"lodash"}, artifacts.Deps.Summary.ExternalDeps)
}

func TestUpdate_RemovesDeletedFile(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"src/a.ts": "export const x = 1;",
		"src/b.ts": "import {x} from './a';",
	})
	ix := initialized(t, store)

	_, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Delete("src/a.ts"))
	report, err := ix.Update(UpdateOptions{Changed: []string{"src/a.ts"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Api.Removed, 1)

	artifacts, err := index.Load(store)
	require.NoError(t, err)
	assert.NotContains(t, artifacts.Api.Files, "src/a.ts")
	for _, e := range artifacts.Deps.Edges {
		assert.NotEqual(t, "src/a.ts", e.From)
		assert.NotEqual(t, "src/a.ts", e.To)
	}
}

func TestUpdate_Deterministic(t *testing.T) {
	files := map[string]string{
		"src/a.ts":  "export const x = 1;",
		"src/b.ts":  "import {x} from './a';\nexport function f() {}",
		"README.md": "# Project\n\nWords.",
	}

	readArtifacts := func(store storage.Storage) map[string]string {
		out := map[string]string{}
		for _, p := range []string{index.ApiIndexPath, index.DepsPath, index.DocsPath, index.MetaPath} {
			data, err := store.Read(p)
			require.NoError(t, err)
			out[p] = string(data)
		}
		return out
	}

	fixed := func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	store1 := testWorkspace(t, files)
	ix1 := initialized(t, store1, WithClock(fixed))
	_, err := ix1.Update(UpdateOptions{})
	require.NoError(t, err)

	store2 := testWorkspace(t, files)
	ix2 := initialized(t, store2, WithClock(fixed))
	_, err = ix2.Update(UpdateOptions{})
	require.NoError(t, err)

	assert.Equal(t, readArtifacts(store1), readArtifacts(store2))
}

func TestUpdate_NoopLeavesMetaAndChecksumAlone(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"src/a.ts": "export const x = 1;",
	})

	// The clock moves between updates, as it would against real time.
	clock := &tickingClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	ix := initialized(t, store, WithClock(clock.Now))

	_, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)

	metaBefore, err := store.Read(index.MetaPath)
	require.NoError(t, err)
	before, err := index.Load(store)
	require.NoError(t, err)

	// Nothing changed on disk: meta.json and the composite checksum must
	// come out byte-identical even though the wall clock moved.
	_, err = ix.Update(UpdateOptions{})
	require.NoError(t, err)

	metaAfter, err := store.Read(index.MetaPath)
	require.NoError(t, err)
	after, err := index.Load(store)
	require.NoError(t, err)

	assert.Equal(t, string(metaBefore), string(metaAfter))
	assert.Equal(t, before.Index.IndexChecksum, after.Index.IndexChecksum)

	// Touching a file moves last activity again.
	require.NoError(t, store.Write("src/a.ts", []byte("export const x = 2;")))
	_, err = ix.Update(UpdateOptions{})
	require.NoError(t, err)
	final, err := index.Load(store)
	require.NoError(t, err)
	assert.NotEqual(t, before.Meta.LastActivity, final.Meta.LastActivity)
}

// tickingClock advances a fixed step on every reading, so the time budget
// deterministically expires mid-walk.
type tickingClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestUpdate_TimeBudgetPartial(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files["src/"+name+".ts"] = "export const " + name + " = 1;"
	}
	store := testWorkspace(t, files)

	clock := &tickingClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), step: 40 * time.Millisecond}
	ix := initialized(t, store, WithClock(clock.Now))

	report, err := ix.Update(UpdateOptions{TimeBudgetMs: 100})
	require.NoError(t, err)
	assert.True(t, report.Partial)
	assert.GreaterOrEqual(t, report.Budget.UsedMs, 100)
	assert.Equal(t, 100, report.Budget.LimitMs)
	assert.Less(t, report.Api.Added, len(files))

	// Partial artifacts are still internally consistent.
	vr, err := verify.Verify(store)
	require.NoError(t, err)
	assert.True(t, vr.OK)
}

func TestUpdate_TruncatedChunkingIsReportedNotIndexed(t *testing.T) {
	// One line past the streaming line cap: the chunker drops the tail,
	// so the file must show up as a per-file parse error rather than
	// being indexed truncated.
	store := testWorkspace(t, map[string]string{
		"dist/bundle.min.js": "prefix\n" + strings.Repeat("x", 1024*1024+1) + "\nsuffix\n",
	})
	ix := initialized(t, store)

	report, err := ix.Update(UpdateOptions{Changed: []string{"dist/bundle.min.js"}})
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "dist/bundle.min.js", report.Errors[0].Path)
	assert.Contains(t, report.Errors[0].Error, minderr.CodeParseError)

	artifacts, err := index.Load(store)
	require.NoError(t, err)
	assert.NotContains(t, artifacts.Api.Files, "dist/bundle.min.js")
}

func TestUpdate_SkipsUnchangedFiles(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"src/a.ts": "export const x = 1;",
	})
	ix := initialized(t, store)

	first, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Api.Added)

	second, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.Api.Added)
	assert.Zero(t, second.Api.Updated)

	third, err := ix.Update(UpdateOptions{NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Api.Updated)
}

func TestUpdate_DocsIndex(t *testing.T) {
	store := testWorkspace(t, map[string]string{
		"README.md":         "# My Project\n",
		"docs/adr/adr-1.md": "# Decision\n",
		"docs/guide.md":     "# Guide\n",
		"docs/CHANGELOG.md": "# Changelog\n",
	})
	ix := initialized(t, store)

	_, err := ix.Update(UpdateOptions{})
	require.NoError(t, err)

	artifacts, err := index.Load(store)
	require.NoError(t, err)

	tags := map[string]string{}
	titles := map[string]string{}
	for _, d := range artifacts.Docs.Docs {
		tags[d.Path] = d.Tag
		titles[d.Path] = d.Title
	}
	assert.Equal(t, index.DocTagReadme, tags["README.md"])
	assert.Equal(t, index.DocTagADR, tags["docs/adr/adr-1.md"])
	assert.Equal(t, index.DocTagGuide, tags["docs/guide.md"])
	assert.Equal(t, index.DocTagChangelog, tags["docs/CHANGELOG.md"])
	assert.Equal(t, "My Project", titles["README.md"])
}
