package pack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/indexer"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Test Plan:
// - tokensEstimate never exceeds totalTokens; every section respects its
//   weighted cap
// - Equal inputs (including seed) produce byte-identical output
// - The middle truncation strategy inserts its marker and keeps both ends
// - An impossible budget fails with MIND_PACK_BUDGET_EXCEEDED
// - Preset weights bias section caps

func packedWorkspace(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	files := map[string]string{
		"README.md":   "# Demo\n\nA demo workspace.\n",
		"src/core.ts": "export const core = 1;\nexport function build(): void {}\n",
		"src/api.ts":  "import {core} from './core';\nexport function handler(): void {}\n",
	}
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

func TestAssemble_BudgetLaw(t *testing.T) {
	store := packedWorkspace(t)

	out, err := New(store).Assemble(Input{Intent: "demo", Budget: DefaultBudget(), Preset: DefaultPreset()})
	require.NoError(t, err)

	assert.LessOrEqual(t, out.TokensEstimate, DefaultBudget().TotalTokens)

	preset := DefaultPreset()
	defaults := DefaultBudget()
	for name, used := range out.Json.SectionUsage {
		capTokens := int(float64(defaults.Caps[name]) * preset.weightFor(name))
		assert.LessOrEqual(t, used, capTokens, name)
	}
	assert.True(t, out.Json.Deterministic)
}

func TestAssemble_Deterministic(t *testing.T) {
	store := packedWorkspace(t)
	assembler := New(store)

	in := Input{Intent: "demo", Budget: DefaultBudget(), Preset: DefaultPreset(), Seed: 42}

	first, err := assembler.Assemble(in)
	require.NoError(t, err)
	second, err := assembler.Assemble(in)
	require.NoError(t, err)

	j1, err := hashutil.CanonicalJSON(first.Json)
	require.NoError(t, err)
	j2, err := hashutil.CanonicalJSON(second.Json)
	require.NoError(t, err)

	assert.Equal(t, string(j1), string(j2))
	assert.Equal(t, first.Markdown, second.Markdown)
	assert.Equal(t, first.TokensEstimate, second.TokensEstimate)
	assert.Equal(t, first.Json.Sections["intent_summary"], second.Json.Sections["intent_summary"])
	assert.Equal(t, 42, first.Json.Seed)
}

func TestAssemble_ImpossibleBudget(t *testing.T) {
	store := packedWorkspace(t)

	budget := DefaultBudget()
	budget.TotalTokens = 1

	_, err := New(store).Assemble(Input{
		Intent: strings.Repeat("a very long intent statement ", 40),
		Budget: budget,
		Preset: DefaultPreset(),
	})
	require.Error(t, err)
	assert.Equal(t, minderr.CodePackBudget, minderr.CodeOf(err))
}

func TestTruncate_Middle(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("line of content number with padding\n")
	}
	text := b.String()

	out := truncate(text, 100, TruncateMiddle)
	assert.LessOrEqual(t, hashutil.EstimateTokens(out), 110)
	assert.Contains(t, out, truncationMarker)
	assert.True(t, strings.HasPrefix(out, "line of content"))
	assert.Contains(t, out[len(out)-60:], "padding")
}

func TestTruncate_StartAndEnd(t *testing.T) {
	text := "first\nsecond\nthird\nfourth\nfifth"

	fromStart := truncate(text, 3, TruncateStart)
	assert.True(t, strings.HasSuffix(fromStart, "fifth"))
	assert.NotContains(t, fromStart, "first")

	fromEnd := truncate(text, 3, TruncateEnd)
	assert.True(t, strings.HasPrefix(fromEnd, "first"))
	assert.NotContains(t, fromEnd, "fifth")
}

func TestTruncate_UnderCapUntouched(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100, TruncateMiddle))
}

func TestPresetWeights_BiasCaps(t *testing.T) {
	store := packedWorkspace(t)

	narrow := DefaultBudget()
	narrow.Caps["api_signatures"] = 10

	heavy := Preset{Overview: 1, Api: 10, Diffs: 1, Snippets: 1, Configs: 1}
	light := Preset{Overview: 1, Api: 0.1, Diffs: 1, Snippets: 1, Configs: 1}

	withHeavy, err := New(store).Assemble(Input{Intent: "demo", Budget: narrow, Preset: heavy})
	require.NoError(t, err)
	withLight, err := New(store).Assemble(Input{Intent: "demo", Budget: narrow, Preset: light})
	require.NoError(t, err)

	assert.Greater(t,
		len(withHeavy.Json.Sections["api_signatures"]),
		len(withLight.Json.Sections["api_signatures"]))
}
