// Package storage provides scoped filesystem access for the mind core. All
// paths are POSIX-relative to the workspace root; anything that escapes the
// root is rejected with MIND_FORBIDDEN. Writes are atomic (temp file, fsync,
// rename) so readers never observe a partially-written artifact.
package storage

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kb-labs/mind/internal/minderr"
)

// Storage defines the capability the core uses for durable state. The core
// never touches the filesystem directly; tests run it over temporary
// directories.
type Storage interface {
	// Read returns the full contents of the file at rel.
	Read(rel string) ([]byte, error)

	// Write atomically replaces the file at rel with data, creating parent
	// directories as needed.
	Write(rel string, data []byte) error

	// List returns the relative paths of all regular files under prefix,
	// sorted lexicographically.
	List(prefix string) ([]string, error)

	// Delete removes the file at rel. Deleting a missing file is not an
	// error.
	Delete(rel string) error

	// MkdirAll creates the directory at rel and any missing parents.
	MkdirAll(rel string) error

	// Exists reports whether a regular file exists at rel.
	Exists(rel string) bool

	// Root returns the absolute workspace root this storage is scoped to.
	Root() string
}

// IsNotExist reports whether err signals a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

type fsStorage struct {
	root string
}

// NewFS creates filesystem-backed storage rooted at root.
func NewFS(root string) (Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &fsStorage{root: abs}, nil
}

func (s *fsStorage) Root() string {
	return s.root
}

// resolve converts a workspace-relative POSIX path into an absolute path,
// refusing anything that would land outside the root.
func (s *fsStorage) resolve(rel string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if cleaned == "." {
		return s.root, nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", minderr.Newf(minderr.CodeForbidden, "path escapes workspace: %s", rel)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *fsStorage) Read(rel string) ([]byte, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func (s *fsStorage) Write(rel string, data []byte) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return writeAtomic(abs, data)
}

// writeAtomic writes data to a sibling temp file, fsyncs it, and renames it
// over path. Rename is atomic on POSIX filesystems, so readers see either
// the old bytes or the new bytes, never a mix.
func writeAtomic(abs string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(abs), filepath.Base(abs)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fsStorage) List(prefix string) ([]string, error) {
	abs, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

func (s *fsStorage) Delete(rel string) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fsStorage) MkdirAll(rel string) error {
	abs, err := s.resolve(rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

func (s *fsStorage) Exists(rel string) bool {
	abs, err := s.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}
