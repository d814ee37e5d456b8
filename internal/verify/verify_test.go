package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/indexer"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Test Plan:
// - A freshly-updated workspace verifies clean
// - A single-byte mutation of any hashed artifact is reported with that
//   file in the inconsistencies
// - A mutation of meta.json surfaces through the composite checksum
// - A missing artifact is reported
// - No manifest at all is MIND_NO_INDEX

func verifiedWorkspace(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write("src/a.ts", []byte("export const x = 1;")))

	ix := indexer.New(store)
	_, err = ix.Init(false)
	require.NoError(t, err)
	_, err = ix.Update(indexer.UpdateOptions{})
	require.NoError(t, err)
	return store
}

func TestVerify_CleanIndex(t *testing.T) {
	store := verifiedWorkspace(t)

	report, err := Verify(store)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Empty(t, report.Inconsistencies)
}

func flipByte(t *testing.T, store storage.Storage, path string) {
	t.Helper()
	data, err := store.Read(path)
	require.NoError(t, err)
	// Mutate a digit inside the payload, keeping the JSON parseable.
	mutated := []byte(string(data))
	for i, b := range mutated {
		if b >= '0' && b <= '8' {
			mutated[i] = b + 1
			break
		}
	}
	require.NoError(t, store.Write(path, mutated))
}

func TestVerify_DetectsArtifactMutation(t *testing.T) {
	for _, target := range []string{index.ApiIndexPath, index.DepsPath} {
		t.Run(target, func(t *testing.T) {
			store := verifiedWorkspace(t)
			flipByte(t, store, target)

			report, err := Verify(store)
			require.NoError(t, err)
			assert.False(t, report.OK)
			assert.Equal(t, minderr.CodeIndexInconsistent, report.Code)

			found := false
			for _, inc := range report.Inconsistencies {
				if inc.File == target {
					found = true
					assert.NotEqual(t, inc.Expected, inc.Actual)
				}
			}
			assert.True(t, found)
			assert.NotEmpty(t, report.Hint)
		})
	}
}

func TestVerify_DetectsWhitespaceMutation(t *testing.T) {
	store := verifiedWorkspace(t)

	data, err := store.Read(index.MetaPath)
	require.NoError(t, err)
	require.NoError(t, store.Write(index.MetaPath, append(data, '\n')))

	report, err := Verify(store)
	require.NoError(t, err)
	assert.False(t, report.OK)
	require.NotEmpty(t, report.Inconsistencies)
	assert.Equal(t, index.MetaPath, report.Inconsistencies[0].File)
}

func TestVerify_MetaMutationHitsChecksum(t *testing.T) {
	store := verifiedWorkspace(t)
	flipByte(t, store, index.MetaPath)

	report, err := Verify(store)
	require.NoError(t, err)
	assert.False(t, report.OK)
	require.NotEmpty(t, report.Inconsistencies)
	assert.Equal(t, index.IndexPath, report.Inconsistencies[0].File)
}

func TestVerify_MissingArtifact(t *testing.T) {
	store := verifiedWorkspace(t)
	require.NoError(t, store.Delete(index.DepsPath))

	report, err := Verify(store)
	require.NoError(t, err)
	assert.False(t, report.OK)

	found := false
	for _, inc := range report.Inconsistencies {
		if inc.File == index.DepsPath && inc.Actual == "missing" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVerify_NoManifest(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	_, err = Verify(store)
	assert.Equal(t, minderr.CodeNoIndex, minderr.CodeOf(err))
}
