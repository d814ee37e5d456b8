package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/mind/internal/indexer"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Test Plan:
// - impact lists importers with their symbols
// - scope filters by path prefix
// - exports returns a file's export surface
// - externals maps packages to referencing files
// - chain walks the transitive forward closure bounded by depth
// - docs filters by tag and search term
// - Unknown query names and missing params are MIND_INVALID_FLAG
// - A repeated query within the TTL is served from cache; an index write
//   invalidates it
// - AI mode adds suggestions without an LLM and a summary with one

func indexedWorkspace(t *testing.T, files map[string]string) storage.Storage {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		require.NoError(t, store.Write(rel, []byte(content)))
	}

	ix := indexer.New(store)
	_, err = ix.Init(false)
	require.NoError(t, err)
	_, err = ix.Update(indexer.UpdateOptions{})
	require.NoError(t, err)
	return store
}

func defaultWorkspace(t *testing.T) storage.Storage {
	return indexedWorkspace(t, map[string]string{
		"src/core.ts":       "export const core = 1;",
		"src/api.ts":        "import {core} from './core';\nexport function handler() {}",
		"src/app.ts":        "import {handler} from './api';\nimport _ from 'lodash';",
		"docs/adr/adr-1.md": "# Use JSON artifacts\n",
		"README.md":         "# Demo\n",
	})
}

func newEngine(t *testing.T, store storage.Storage) *Engine {
	t.Helper()
	engine, err := New(store)
	require.NoError(t, err)
	return engine
}

func TestImpact(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "impact", Params{File: "src/core.ts"}, Options{})
	require.NoError(t, err)

	result := resp.Result.(*ImpactResult)
	require.Len(t, result.Importers, 1)
	assert.Equal(t, "src/api.ts", result.Importers[0].Path)
	assert.Equal(t, []string{"core"}, result.Importers[0].Symbols)
	assert.Equal(t, 1, result.Count)
	assert.False(t, resp.Meta.Cached)
	assert.NotEmpty(t, resp.Meta.ApiHash)
}

func TestScope(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "scope", Params{Path: "src"}, Options{})
	require.NoError(t, err)

	result := resp.Result.(*ScopeResult)
	assert.Equal(t, []string{"src/api.ts", "src/app.ts", "src/core.ts"}, result.Files)
	assert.Equal(t, 3, result.Count)
}

func TestExports(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "exports", Params{File: "src/api.ts"}, Options{})
	require.NoError(t, err)

	result := resp.Result.(*ExportsResult)
	assert.Equal(t, 1, result.Count)
}

func TestExternals(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "externals", Params{}, Options{})
	require.NoError(t, err)

	result := resp.Result.(*ExternalsResult)
	assert.Equal(t, map[string][]string{"lodash": {"src/app.ts"}}, result.Externals)
	assert.Equal(t, 1, result.Count)
}

func TestChain(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "chain", Params{File: "src/app.ts"}, Options{})
	require.NoError(t, err)

	result := resp.Result.(*ChainResult)
	require.Len(t, result.Chain, 2)
	assert.Equal(t, ChainHop{Path: "src/api.ts", Depth: 1}, result.Chain[0])
	assert.Equal(t, ChainHop{Path: "src/core.ts", Depth: 2}, result.Chain[1])

	// Depth 1 stops before core.ts.
	resp, err = engine.Execute(context.Background(), "chain", Params{File: "src/app.ts"}, Options{Depth: 1})
	require.NoError(t, err)
	result = resp.Result.(*ChainResult)
	require.Len(t, result.Chain, 1)
	assert.Equal(t, "src/api.ts", result.Chain[0].Path)
}

func TestDocs(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	resp, err := engine.Execute(context.Background(), "docs", Params{Tag: "adr"}, Options{})
	require.NoError(t, err)
	result := resp.Result.(*DocsResult)
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "docs/adr/adr-1.md", result.Docs[0].Path)

	resp, err = engine.Execute(context.Background(), "docs", Params{Search: "artifacts"}, Options{})
	require.NoError(t, err)
	result = resp.Result.(*DocsResult)
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "docs/adr/adr-1.md", result.Docs[0].Path)
}

func TestInvalidQueries(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)

	_, err := engine.Execute(context.Background(), "nonsense", Params{}, Options{})
	assert.Equal(t, minderr.CodeInvalidFlag, minderr.CodeOf(err))

	_, err = engine.Execute(context.Background(), "impact", Params{}, Options{})
	assert.Equal(t, minderr.CodeInvalidFlag, minderr.CodeOf(err))

	_, err = engine.Execute(context.Background(), "scope", Params{}, Options{})
	assert.Equal(t, minderr.CodeInvalidFlag, minderr.CodeOf(err))
}

func TestMissingIndex(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	engine := newEngine(t, store)

	_, err = engine.Execute(context.Background(), "meta", Params{}, Options{})
	assert.Equal(t, minderr.CodeNoIndex, minderr.CodeOf(err))
}

func TestCache_HitAndInvalidation(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)
	ctx := context.Background()

	first, err := engine.Execute(ctx, "impact", Params{File: "src/core.ts"}, Options{})
	require.NoError(t, err)
	assert.False(t, first.Meta.Cached)

	second, err := engine.Execute(ctx, "impact", Params{File: "src/core.ts"}, Options{})
	require.NoError(t, err)
	assert.True(t, second.Meta.Cached)
	assert.Equal(t, first.Result, second.Result)

	// Rewriting the workspace and updating the index moves the hashes,
	// which makes the cached entry stale.
	require.NoError(t, store.Write("src/core.ts", []byte("export const core = 2;\nexport const extra = 3;")))
	ix := indexer.New(store)
	_, err = ix.Update(indexer.UpdateOptions{})
	require.NoError(t, err)

	third, err := engine.Execute(ctx, "impact", Params{File: "src/core.ts"}, Options{})
	require.NoError(t, err)
	assert.False(t, third.Meta.Cached)
}

func TestCache_DirectArtifactMutationInvalidates(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)
	ctx := context.Background()

	_, err := engine.Execute(ctx, "externals", Params{}, Options{})
	require.NoError(t, err)

	// Touch deps.json directly, bypassing the indexer.
	data, err := store.Read(".kb/mind/deps.json")
	require.NoError(t, err)
	require.NoError(t, store.Write(".kb/mind/deps.json", append(data, ' ')))

	resp, err := engine.Execute(ctx, "externals", Params{}, Options{})
	require.NoError(t, err)
	assert.False(t, resp.Meta.Cached)
}

func TestCache_CIModeDisables(t *testing.T) {
	store := defaultWorkspace(t)
	engine := newEngine(t, store)
	ctx := context.Background()

	_, err := engine.Execute(ctx, "meta", Params{}, Options{CacheMode: "ci"})
	require.NoError(t, err)
	resp, err := engine.Execute(ctx, "meta", Params{}, Options{CacheMode: "ci"})
	require.NoError(t, err)
	assert.False(t, resp.Meta.Cached)
}

type fakeLlm struct{}

func (fakeLlm) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	return &GenerateResult{Text: "a short summary", Tokens: 4, FinishReason: "stop"}, nil
}

func TestAIMode(t *testing.T) {
	store := defaultWorkspace(t)
	ctx := context.Background()

	// Without an LLM: suggestions only.
	engine := newEngine(t, store)
	resp, err := engine.Execute(ctx, "impact", Params{File: "src/core.ts"}, Options{AIMode: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Summary)
	assert.NotEmpty(t, resp.SuggestNextQueries)

	// With one: a summary too.
	withLlm, err := New(store, WithLlm(fakeLlm{}))
	require.NoError(t, err)
	resp, err = withLlm.Execute(ctx, "impact", Params{File: "src/core.ts"}, Options{AIMode: true})
	require.NoError(t, err)
	assert.Equal(t, "a short summary", resp.Summary)
}
