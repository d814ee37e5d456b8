// Package syncstore tracks externally-ingested documents. Each document is
// keyed by (source, id, scope); content flows through the chunker and the
// vector store so synced documents are searchable next to indexed code.
// Deletion is soft with a TTL: deleted documents stay invisible to list and
// search until cleanup physically removes them.
package syncstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kb-labs/mind/internal/chunker"
	"github.com/kb-labs/mind/internal/embed"
	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/storage"
	"github.com/kb-labs/mind/internal/vectorstore"
)

// Defaults for the registry configuration.
const (
	DefaultTTLDays      = 30
	DefaultBatchMaxSize = 100
)

// Document is one externally-ingested document.
type Document struct {
	Source    string         `json:"source"`
	ID        string         `json:"id"`
	ScopeID   string         `json:"scopeId"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Deleted   bool           `json:"deleted,omitempty"`
	DeletedAt string         `json:"deletedAt,omitempty"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// SourceID is the vector-store source identifier for d.
func (d *Document) SourceID() string {
	return d.Source + ":" + d.ID + ":" + d.ScopeID
}

type registryFile struct {
	SchemaVersion string     `json:"schemaVersion"`
	Generator     string     `json:"generator"`
	Documents     []Document `json:"documents"`
}

// Config tunes soft-delete and batch behavior.
type Config struct {
	SoftDelete   bool
	TTLDays      int
	BatchMaxSize int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SoftDelete:   true,
		TTLDays:      DefaultTTLDays,
		BatchMaxSize: DefaultBatchMaxSize,
	}
}

// Registry is the sync document store.
type Registry struct {
	store   storage.Storage
	vectors *vectorstore.Store
	client  embed.Client
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a registry. vectors and client may be nil when semantic
// retrieval is disabled; documents are then tracked without chunk storage.
func New(store storage.Storage, vectors *vectorstore.Store, client embed.Client, cfg Config) *Registry {
	return &Registry{
		store:   store,
		vectors: vectors,
		client:  client,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// WithClock overrides the time source for deterministic tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Add inserts a new document and stores its chunks. Adding an existing
// live key fails; adding over a soft-deleted document revives it.
func (r *Registry) Add(ctx context.Context, doc Document) error {
	if err := validateKey(doc); err != nil {
		return err
	}

	reg, err := r.load()
	if err != nil {
		return err
	}

	if i := find(reg.Documents, doc.Source, doc.ID, doc.ScopeID); i >= 0 {
		if !reg.Documents[i].Deleted {
			return fmt.Errorf("document %s already exists", doc.SourceID())
		}
		reg.Documents = append(reg.Documents[:i], reg.Documents[i+1:]...)
	}

	now := r.timestamp()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Deleted = false
	doc.DeletedAt = ""
	reg.Documents = append(reg.Documents, doc)

	if err := r.save(reg); err != nil {
		return err
	}
	return r.syncChunks(ctx, &doc)
}

// Update applies a partial update: empty content keeps the stored content,
// nil metadata keeps the stored metadata.
func (r *Registry) Update(ctx context.Context, doc Document) error {
	if err := validateKey(doc); err != nil {
		return err
	}

	reg, err := r.load()
	if err != nil {
		return err
	}

	i := find(reg.Documents, doc.Source, doc.ID, doc.ScopeID)
	if i < 0 || reg.Documents[i].Deleted {
		return fmt.Errorf("document %s not found", doc.SourceID())
	}

	current := &reg.Documents[i]
	contentChanged := doc.Content != "" && doc.Content != current.Content
	if doc.Content != "" {
		current.Content = doc.Content
	}
	if doc.Metadata != nil {
		if current.Metadata == nil {
			current.Metadata = map[string]any{}
		}
		for k, v := range doc.Metadata {
			current.Metadata[k] = v
		}
	}
	current.UpdatedAt = r.timestamp()

	updated := *current
	if err := r.save(reg); err != nil {
		return err
	}
	if contentChanged {
		return r.syncChunks(ctx, &updated)
	}
	return nil
}

// Delete soft-deletes a document. Its chunks stay on disk but are filtered
// out of search results until cleanup.
func (r *Registry) Delete(source, id, scope string) error {
	reg, err := r.load()
	if err != nil {
		return err
	}

	i := find(reg.Documents, source, id, scope)
	if i < 0 || reg.Documents[i].Deleted {
		return fmt.Errorf("document %s:%s:%s not found", source, id, scope)
	}

	if !r.cfg.SoftDelete {
		doc := reg.Documents[i]
		reg.Documents = append(reg.Documents[:i], reg.Documents[i+1:]...)
		if err := r.save(reg); err != nil {
			return err
		}
		r.dropChunks(&doc)
		return nil
	}

	reg.Documents[i].Deleted = true
	reg.Documents[i].DeletedAt = r.timestamp()
	return r.save(reg)
}

// Restore reverses a soft delete.
func (r *Registry) Restore(source, id, scope string) error {
	reg, err := r.load()
	if err != nil {
		return err
	}

	i := find(reg.Documents, source, id, scope)
	if i < 0 {
		return fmt.Errorf("document %s:%s:%s not found", source, id, scope)
	}
	if !reg.Documents[i].Deleted {
		return nil
	}

	reg.Documents[i].Deleted = false
	reg.Documents[i].DeletedAt = ""
	reg.Documents[i].UpdatedAt = r.timestamp()
	return r.save(reg)
}

// ListOptions filter List.
type ListOptions struct {
	Source         string
	Scope          string
	IncludeDeleted bool
}

// List returns matching documents sorted by (source, id, scope).
func (r *Registry) List(opts ListOptions) ([]Document, error) {
	reg, err := r.load()
	if err != nil {
		return nil, err
	}

	var out []Document
	for _, d := range reg.Documents {
		if d.Deleted && !opts.IncludeDeleted {
			continue
		}
		if opts.Source != "" && d.Source != opts.Source {
			continue
		}
		if opts.Scope != "" && d.ScopeID != opts.Scope {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SourceID() < out[j].SourceID()
	})
	return out, nil
}

// Status summarizes the registry.
type Status struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Deleted int `json:"deleted"`
}

// GetStatus counts documents matching the filters.
func (r *Registry) GetStatus(opts ListOptions) (*Status, error) {
	opts.IncludeDeleted = true
	docs, err := r.List(opts)
	if err != nil {
		return nil, err
	}

	st := &Status{Total: len(docs)}
	for _, d := range docs {
		if d.Deleted {
			st.Deleted++
		} else {
			st.Active++
		}
	}
	return st, nil
}

// CleanupOptions control physical removal.
type CleanupOptions struct {
	Source      string
	Scope       string
	DeletedOnly bool
	TTLDays     int
}

// Cleanup physically removes soft-deleted documents whose deletedAt is
// older than the TTL (default 30 days; zero TTLDays with DeletedOnly
// removes everything soft-deleted). With DeletedOnly false, live documents
// matching the filters are removed too.
func (r *Registry) Cleanup(opts CleanupOptions) (int, error) {
	reg, err := r.load()
	if err != nil {
		return 0, err
	}

	ttl := opts.TTLDays
	if ttl < 0 {
		ttl = DefaultTTLDays
	}
	cutoff := r.now().UTC().Add(-time.Duration(ttl) * 24 * time.Hour)

	removed := 0
	kept := reg.Documents[:0]
	for _, d := range reg.Documents {
		drop := false
		matches := (opts.Source == "" || d.Source == opts.Source) &&
			(opts.Scope == "" || d.ScopeID == opts.Scope)
		if matches {
			if d.Deleted {
				deletedAt, parseErr := time.Parse(time.RFC3339, d.DeletedAt)
				drop = parseErr != nil || !deletedAt.After(cutoff)
			} else if !opts.DeletedOnly {
				drop = true
			}
		}
		if drop {
			r.dropChunks(&d)
			removed++
			continue
		}
		kept = append(kept, d)
	}
	reg.Documents = kept

	if err := r.save(reg); err != nil {
		return removed, err
	}
	return removed, nil
}

// ActiveSources returns the set of live source ids for a scope, used to
// filter soft-deleted chunks out of search results.
func (r *Registry) ActiveSources(scope string) (map[string]bool, error) {
	docs, err := r.List(ListOptions{Scope: scope})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(docs))
	for _, d := range docs {
		out[d.SourceID()] = true
	}
	return out, nil
}

// Batch ops.

// BatchOp is one operation in a batch.
type BatchOp struct {
	Op       string         `json:"op"` // add | update | delete | restore
	Source   string         `json:"source"`
	ID       string         `json:"id"`
	ScopeID  string         `json:"scopeId"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BatchResult reports one operation's outcome.
type BatchResult struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Batch processes ops in order, atomically per operation. It refuses to
// start when ops exceeds maxSize (zero means the configured default).
func (r *Registry) Batch(ctx context.Context, ops []BatchOp, maxSize int) ([]BatchResult, error) {
	if maxSize <= 0 {
		maxSize = r.cfg.BatchMaxSize
	}
	if len(ops) > maxSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum %d", len(ops), maxSize)
	}

	results := make([]BatchResult, 0, len(ops))
	for _, op := range ops {
		doc := Document{
			Source:   op.Source,
			ID:       op.ID,
			ScopeID:  op.ScopeID,
			Content:  op.Content,
			Metadata: op.Metadata,
		}

		var err error
		switch op.Op {
		case "add":
			err = r.Add(ctx, doc)
		case "update":
			err = r.Update(ctx, doc)
		case "delete":
			err = r.Delete(op.Source, op.ID, op.ScopeID)
		case "restore":
			err = r.Restore(op.Source, op.ID, op.ScopeID)
		default:
			err = fmt.Errorf("unknown batch op %q", op.Op)
		}

		res := BatchResult{Op: op.Op, Key: doc.SourceID(), OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// Internals.

func validateKey(doc Document) error {
	if doc.Source == "" || doc.ID == "" || doc.ScopeID == "" {
		return fmt.Errorf("source, id, and scope are all required")
	}
	return nil
}

func find(docs []Document, source, id, scope string) int {
	for i, d := range docs {
		if d.Source == source && d.ID == id && d.ScopeID == scope {
			return i
		}
	}
	return -1
}

func (r *Registry) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

// syncChunks chunks the document content and replaces its chunks in the
// vector store.
func (r *Registry) syncChunks(ctx context.Context, doc *Document) error {
	if r.vectors == nil || r.client == nil {
		return nil
	}

	pseudoPath := chunkPath(doc)
	chunks, err := chunker.ChunkFile(doc.Content, pseudoPath, int64(len(doc.Content)), chunker.Options{})
	if err != nil {
		return fmt.Errorf("chunking %s: %w", doc.SourceID(), err)
	}
	stored, err := vectorstore.EmbedChunks(ctx, r.client, doc.ScopeID, doc.SourceID(), pseudoPath, chunks)
	if err != nil {
		return err
	}
	return r.vectors.ReplaceSource(doc.ScopeID, doc.SourceID(), stored)
}

// dropChunks physically removes a document's chunks. Best-effort: a chunk
// store failure does not block registry cleanup.
func (r *Registry) dropChunks(doc *Document) {
	if r.vectors == nil {
		return
	}
	if err := r.vectors.RemoveSource(doc.ScopeID, doc.SourceID()); err != nil {
		r.logger.Warn("failed to remove chunks", "sourceId", doc.SourceID(), "error", err)
	}
}

// chunkPath derives the pseudo-path used for chunk strategy selection: an
// explicit metadata path wins, otherwise the document is treated as
// markdown text.
func chunkPath(doc *Document) string {
	if doc.Metadata != nil {
		if p, ok := doc.Metadata["path"].(string); ok && p != "" {
			return p
		}
	}
	return doc.Source + "/" + strings.ReplaceAll(doc.ID, "/", "_") + ".md"
}

func (r *Registry) load() (*registryFile, error) {
	data, err := r.store.Read(index.SyncPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return &registryFile{
				SchemaVersion: index.SchemaVersion,
				Generator:     index.Generator,
				Documents:     []Document{},
			}, nil
		}
		return nil, err
	}

	var reg registryFile
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("corrupt sync registry: %w", err)
	}
	return &reg, nil
}

func (r *Registry) save(reg *registryFile) error {
	if reg.Documents == nil {
		reg.Documents = []Document{}
	}
	sort.Slice(reg.Documents, func(i, j int) bool {
		return reg.Documents[i].SourceID() < reg.Documents[j].SourceID()
	})

	data, err := hashutil.CanonicalJSON(reg)
	if err != nil {
		return err
	}
	return r.store.Write(index.SyncPath, data)
}
