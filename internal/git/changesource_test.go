package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
)

// Test Plan:
// - Outside a repository, DiffSince reports MIND_NO_GIT
// - Inside a repository, modified and new files surface with statuses
// - The mock returns its fixed data

func gitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(),
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t")
	require.NoError(t, cmd.Run(), "git %v", args)
}

func TestDiffSince_NotARepository(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not installed")
	}

	_, err := NewChangeSource().DiffSince(t.TempDir(), "")
	require.Error(t, err)
	assert.Equal(t, minderr.CodeNoGit, minderr.CodeOf(err))
}

func TestDiffSince_ReportsChanges(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	writeFile(t, dir, "a.ts", "export const x = 1;")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	writeFile(t, dir, "a.ts", "export const x = 2;")

	files, err := NewChangeSource().DiffSince(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, index.DiffFile{Path: "a.ts", Status: index.StatusModified}, files[0])
}

func TestListStaged(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	writeFile(t, dir, "a.ts", "export const x = 1;")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	writeFile(t, dir, "b.ts", "export const y = 2;")
	runGit(t, dir, "add", "b.ts")

	staged, err := NewChangeSource().ListStaged(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.ts"}, staged)
}

func TestMockChangeSource(t *testing.T) {
	mock := &MockChangeSource{
		Files: []index.DiffFile{{Path: "x.ts", Status: index.StatusAdded}},
	}
	files, err := mock.DiffSince(".", "HEAD")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
