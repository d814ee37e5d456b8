// Package vectorstore persists embedded chunks per scope as one JSON file
// under .kb/mind/vectors/ and serves cosine top-k search over them. A
// process-local cache holds up to 64 loaded scopes; a scope's entry is
// evicted whenever its file is rewritten.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/maypok86/otter"

	"github.com/kb-labs/mind/internal/chunker"
	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/storage"
)

// replaceFallbackRatio is the changed-or-deleted share of the stored file
// set above which updateScope degrades to a full replace.
const replaceFallbackRatio = 0.8

// scopeCacheSize bounds the number of scopes held in memory.
const scopeCacheSize = 64

// StoredChunk is one embedded chunk at rest.
type StoredChunk struct {
	ChunkID   string         `json:"chunkId"`
	ScopeID   string         `json:"scopeId"`
	SourceID  string         `json:"sourceId,omitempty"`
	Path      string         `json:"path"`
	Text      string         `json:"text"`
	Span      chunker.Span   `json:"span"`
	Type      string         `json:"type"`
	Name      string         `json:"name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding"`
}

// FileMeta is the per-path change-detection record updateScope diffs
// against.
type FileMeta struct {
	Mtime int64  `json:"mtime"`
	Hash  string `json:"hash"`
}

// scopeFile is the on-disk layout of one scope.
type scopeFile struct {
	SchemaVersion string              `json:"schemaVersion"`
	Generator     string              `json:"generator"`
	ScopeID       string              `json:"scopeId"`
	GeneratedAt   string              `json:"generatedAt"`
	Files         map[string]FileMeta `json:"files"`
	Chunks        []StoredChunk       `json:"chunks"`
}

// Match is one search hit.
type Match struct {
	Chunk StoredChunk `json:"chunk"`
	Score float64     `json:"score"`
}

// Filters narrow a search. A nil Sources map means no source filtering; an
// empty non-nil map admits nothing, which is how soft-deleted documents
// disappear from results.
type Filters struct {
	// Sources, when non-nil, restricts matches to these source ids.
	Sources map[string]bool

	// PathMatch, when set, must accept the chunk's path.
	PathMatch func(string) bool

	// Boosts adds a per-chunk score bonus, typically derived from
	// aggregated feedback. Applied after the cosine score, before
	// sorting.
	Boosts map[string]float64
}

// Store is the per-scope vector store.
type Store struct {
	store storage.Storage
	cache otter.Cache[string, *scopeFile]
	now   func() time.Time
}

// New creates a vector store over the given storage.
func New(store storage.Storage) (*Store, error) {
	cache, err := otter.MustBuilder[string, *scopeFile](scopeCacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create scope cache: %w", err)
	}
	return &Store{store: store, cache: cache, now: time.Now}, nil
}

// WithClock overrides the generatedAt time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func scopePath(scopeID string) string {
	return index.VectorsDir + "/" + scopeID + ".json"
}

// ScopeExists reports whether a scope file exists.
func (s *Store) ScopeExists(scopeID string) bool {
	return s.store.Exists(scopePath(scopeID))
}

// ReplaceScope overwrites the whole scope with chunks.
func (s *Store) ReplaceScope(scopeID string, chunks []StoredChunk, files map[string]FileMeta) error {
	if files == nil {
		files = map[string]FileMeta{}
	}
	return s.save(&scopeFile{
		SchemaVersion: index.SchemaVersion,
		Generator:     index.Generator,
		ScopeID:       scopeID,
		GeneratedAt:   s.now().UTC().Format(time.RFC3339),
		Files:         files,
		Chunks:        chunks,
	})
}

// UpdateScope applies a file-granularity diff: paths absent from files are
// deleted, paths whose hash or mtime differ are replaced from chunks, and
// unchanged paths keep their stored chunks. When more than 80% of the
// stored file set changed, the whole scope is replaced instead.
func (s *Store) UpdateScope(scopeID string, chunks []StoredChunk, files map[string]FileMeta) error {
	current, err := s.load(scopeID)
	if err != nil || len(current.Files) == 0 {
		return s.ReplaceScope(scopeID, chunks, files)
	}

	changed := map[string]bool{}
	for p, meta := range files {
		prev, ok := current.Files[p]
		if !ok || prev.Hash != meta.Hash || prev.Mtime != meta.Mtime {
			changed[p] = true
		}
	}
	deleted := map[string]bool{}
	for p := range current.Files {
		if _, ok := files[p]; !ok {
			deleted[p] = true
		}
	}

	if float64(len(changed)+len(deleted)) > replaceFallbackRatio*float64(len(current.Files)) {
		return s.ReplaceScope(scopeID, chunks, files)
	}

	var kept []StoredChunk
	for _, c := range current.Chunks {
		if !changed[c.Path] && !deleted[c.Path] {
			kept = append(kept, c)
		}
	}
	for _, c := range chunks {
		if changed[c.Path] {
			kept = append(kept, c)
		}
	}

	return s.save(&scopeFile{
		SchemaVersion: index.SchemaVersion,
		Generator:     index.Generator,
		ScopeID:       scopeID,
		GeneratedAt:   s.now().UTC().Format(time.RFC3339),
		Files:         files,
		Chunks:        kept,
	})
}

// Search returns the top limit chunks by cosine similarity to queryVector.
// Non-finite similarities, zero vectors, and dimension mismatches score 0
// and stay in the results; no score is dropped. Ties break by
// (path, startLine) so results are deterministic.
func (s *Store) Search(scopeID string, queryVector []float32, limit int, filters *Filters) ([]Match, error) {
	scope, err := s.load(scopeID)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, c := range scope.Chunks {
		if filters != nil {
			if filters.Sources != nil && !filters.Sources[c.SourceID] {
				continue
			}
			if filters.PathMatch != nil && !filters.PathMatch(c.Path) {
				continue
			}
		}
		score := hashutil.CosineSimilarity(queryVector, c.Embedding)
		if filters != nil && filters.Boosts != nil {
			score += filters.Boosts[c.ChunkID]
		}
		matches = append(matches, Match{Chunk: c, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Chunk.Path != matches[j].Chunk.Path {
			return matches[i].Chunk.Path < matches[j].Chunk.Path
		}
		return matches[i].Chunk.Span.StartLine < matches[j].Chunk.Span.StartLine
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UpsertFile replaces one path's chunks within a scope, creating the scope
// if needed. This is the incremental entry point the indexer drives.
func (s *Store) UpsertFile(scopeID, rel, hash string, chunks []StoredChunk) error {
	current, err := s.load(scopeID)
	if err != nil {
		current = &scopeFile{
			SchemaVersion: index.SchemaVersion,
			Generator:     index.Generator,
			ScopeID:       scopeID,
			Files:         map[string]FileMeta{},
		}
	}

	var kept []StoredChunk
	for _, c := range current.Chunks {
		if c.Path != rel {
			kept = append(kept, c)
		}
	}
	kept = append(kept, chunks...)

	current.Files[rel] = FileMeta{Hash: hash}
	current.Chunks = kept
	current.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	return s.save(current)
}

// RemoveFile drops one path's chunks from a scope. Removing from a missing
// scope is a no-op.
func (s *Store) RemoveFile(scopeID, rel string) error {
	current, err := s.load(scopeID)
	if err != nil {
		return nil
	}

	var kept []StoredChunk
	for _, c := range current.Chunks {
		if c.Path != rel {
			kept = append(kept, c)
		}
	}
	current.Chunks = kept
	delete(current.Files, rel)
	current.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	return s.save(current)
}

// RemoveSource drops every chunk carrying sourceID from a scope.
func (s *Store) RemoveSource(scopeID, sourceID string) error {
	current, err := s.load(scopeID)
	if err != nil {
		return nil
	}

	var kept []StoredChunk
	for _, c := range current.Chunks {
		if c.SourceID != sourceID {
			kept = append(kept, c)
		}
	}
	current.Chunks = kept
	current.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	return s.save(current)
}

// ReplaceSource swaps every chunk of sourceID for the given chunks.
func (s *Store) ReplaceSource(scopeID, sourceID string, chunks []StoredChunk) error {
	current, err := s.load(scopeID)
	if err != nil {
		current = &scopeFile{
			SchemaVersion: index.SchemaVersion,
			Generator:     index.Generator,
			ScopeID:       scopeID,
			Files:         map[string]FileMeta{},
		}
	}

	var kept []StoredChunk
	for _, c := range current.Chunks {
		if c.SourceID != sourceID {
			kept = append(kept, c)
		}
	}
	current.Chunks = append(kept, chunks...)
	current.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	return s.save(current)
}

func (s *Store) load(scopeID string) (*scopeFile, error) {
	if cached, ok := s.cache.Get(scopeID); ok {
		return cached, nil
	}

	data, err := s.store.Read(scopePath(scopeID))
	if err != nil {
		return nil, err
	}
	var scope scopeFile
	if err := json.Unmarshal(data, &scope); err != nil {
		return nil, fmt.Errorf("corrupt vector scope %s: %w", scopeID, err)
	}
	if scope.Files == nil {
		scope.Files = map[string]FileMeta{}
	}
	s.cache.Set(scopeID, &scope)
	return &scope, nil
}

func (s *Store) save(scope *scopeFile) error {
	if scope.Chunks == nil {
		scope.Chunks = []StoredChunk{}
	}
	data, err := hashutil.CanonicalJSON(scope)
	if err != nil {
		return err
	}
	if err := s.store.Write(scopePath(scope.ScopeID), data); err != nil {
		return err
	}
	// The cache entry is stale the moment the file is rewritten.
	s.cache.Delete(scope.ScopeID)
	return nil
}
