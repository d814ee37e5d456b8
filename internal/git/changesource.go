// Package git provides the change-source capability: which files changed
// since a reference. The core consumes the interface only; this package
// also ships the real implementation over the git CLI so the indexer works
// out of the box.
package git

import (
	"os/exec"
	"strings"

	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
)

// ChangeSource reports workspace changes. Tests substitute fakes. The
// indexer walks the whole workspace when no since reference is given; a
// since reference without a change source fails with MIND_NO_GIT.
type ChangeSource interface {
	// DiffSince lists files changed between ref and the working tree.
	// An empty ref diffs against HEAD.
	DiffSince(cwd, ref string) ([]index.DiffFile, error)

	// ListStaged lists paths staged in the index.
	ListStaged(cwd string) ([]string, error)
}

// gitSource is the real implementation using exec.Command.
type gitSource struct{}

// NewChangeSource returns the git-CLI-backed change source.
func NewChangeSource() ChangeSource {
	return &gitSource{}
}

func (g *gitSource) DiffSince(cwd, ref string) ([]index.DiffFile, error) {
	args := []string{"diff", "--name-status"}
	if ref != "" {
		args = append(args, ref)
	} else {
		args = append(args, "HEAD")
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	output, err := cmd.Output()
	if err != nil {
		return nil, minderr.Wrap(minderr.CodeNoGit, err, "git diff failed")
	}

	var files []index.DiffFile
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		status := normalizeStatus(parts[0])
		p := parts[1]
		// Renames report "R<score> old new"; the new path is the one that
		// exists now.
		if status == index.StatusRenamed && len(parts) >= 3 {
			p = parts[2]
		}
		files = append(files, index.DiffFile{Path: p, Status: status})
	}
	return files, nil
}

func (g *gitSource) ListStaged(cwd string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--cached", "--name-only")
	cmd.Dir = cwd
	output, err := cmd.Output()
	if err != nil {
		return nil, minderr.Wrap(minderr.CodeNoGit, err, "git diff --cached failed")
	}

	var paths []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func normalizeStatus(raw string) string {
	switch {
	case strings.HasPrefix(raw, "A"):
		return index.StatusAdded
	case strings.HasPrefix(raw, "D"):
		return index.StatusDeleted
	case strings.HasPrefix(raw, "R"):
		return index.StatusRenamed
	default:
		return index.StatusModified
	}
}

// MockChangeSource is a fixed-response change source for tests.
type MockChangeSource struct {
	Files  []index.DiffFile
	Staged []string
	Err    error
}

func (m *MockChangeSource) DiffSince(cwd, ref string) ([]index.DiffFile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Files, nil
}

func (m *MockChangeSource) ListStaged(cwd string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Staged, nil
}
