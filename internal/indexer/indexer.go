// Package indexer orchestrates the on-disk index: initial build, and
// incremental updates that walk changed files, re-extract their API and
// dependency records, and rewrite all artifacts atomically with fresh
// integrity hashes. Updates honor a wall-clock budget and report partial
// progress instead of failing.
package indexer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kb-labs/mind/internal/chunker"
	"github.com/kb-labs/mind/internal/deps"
	"github.com/kb-labs/mind/internal/extract"
	"github.com/kb-labs/mind/internal/git"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// DefaultTimeBudgetMs bounds one update call.
const DefaultTimeBudgetMs = 5000

// VectorSink receives chunk output from the indexing walk. The vector
// store implements it when semantic retrieval is enabled.
type VectorSink interface {
	IndexFile(rel string, fileHash string, chunks []chunker.Chunk) error
	RemoveFile(rel string) error
}

// Indexer owns the index artifacts for one workspace.
type Indexer struct {
	store    storage.Storage
	changes  git.ChangeSource
	logger   *slog.Logger
	now      func() time.Time
	vectors  VectorSink
	progress func(done, total int)
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithChangeSource sets the change source used when no explicit change set
// is supplied.
func WithChangeSource(cs git.ChangeSource) Option {
	return func(ix *Indexer) { ix.changes = cs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

// WithVectorSink attaches a chunk consumer to the indexing walk.
func WithVectorSink(sink VectorSink) Option {
	return func(ix *Indexer) { ix.vectors = sink }
}

// WithProgress reports walk progress after each file.
func WithProgress(fn func(done, total int)) Option {
	return func(ix *Indexer) { ix.progress = fn }
}

// New creates an Indexer over store.
func New(store storage.Storage, opts ...Option) *Indexer {
	ix := &Indexer{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Init creates .kb/mind/ and writes empty artifacts. An existing index is
// not overwritten unless force is set; with force the call is idempotent.
func (ix *Indexer) Init(force bool) (string, error) {
	if ix.store.Exists(index.IndexPath) && !force {
		return "", fmt.Errorf("index already exists at %s (use --force to reinitialize)", index.MindDir)
	}

	if err := ix.store.MkdirAll(index.MindDir); err != nil {
		return "", err
	}

	artifacts := index.Empty()
	if err := artifacts.Rehash(ix.now().UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	if err := artifacts.Save(ix.store); err != nil {
		return "", err
	}

	ix.logger.Info("index initialized", "dir", index.MindDir)
	return index.MindDir, nil
}

// UpdateOptions control one update call.
type UpdateOptions struct {
	// Since is the change-source reference to diff against. Ignored when
	// Changed is supplied.
	Since string

	// Changed is an explicit candidate file set.
	Changed []string

	// TimeBudgetMs bounds the file walk. Zero means the default.
	TimeBudgetMs int

	// NoCache forces re-extraction even when the file hash is unchanged.
	NoCache bool
}

// FileError records one per-file failure. File errors never abort a run.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Budget reports time-budget consumption.
type Budget struct {
	UsedMs  int `json:"usedMs"`
	LimitMs int `json:"limitMs"`
}

// ApiDelta counts API index mutations.
type ApiDelta struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// DepsDelta counts edge mutations.
type DepsDelta struct {
	EdgesAdded   int `json:"edgesAdded"`
	EdgesRemoved int `json:"edgesRemoved"`
}

// DiffInfo summarizes the stored diff snapshot.
type DiffInfo struct {
	Files int `json:"files"`
}

// UpdateReport is the result of one update call.
type UpdateReport struct {
	Api        ApiDelta    `json:"api"`
	Deps       DepsDelta   `json:"deps"`
	Diff       *DiffInfo   `json:"diff,omitempty"`
	Partial    bool        `json:"partial"`
	Budget     Budget      `json:"budget"`
	DurationMs int         `json:"durationMs"`
	Errors     []FileError `json:"errors,omitempty"`
}

// Update walks the candidate set in deterministic path order and splices
// the results into the artifacts. The artifacts are rewritten (and hashed)
// even when the walk stops at the time budget, so a partial update is still
// verifiable.
func (ix *Indexer) Update(opts UpdateOptions) (*UpdateReport, error) {
	start := ix.now()
	limitMs := opts.TimeBudgetMs
	if limitMs <= 0 {
		limitMs = DefaultTimeBudgetMs
	}
	deadline := start.Add(time.Duration(limitMs) * time.Millisecond)

	artifacts, err := index.Load(ix.store)
	if err != nil {
		return nil, err
	}

	candidates, diffFiles, err := ix.candidates(opts)
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{}
	report.Budget.LimitMs = limitMs

	resolver := deps.NewResolver(ix.store)

	for i, rel := range candidates {
		if ix.now().After(deadline) {
			report.Partial = true
			break
		}
		if err := ix.indexFile(artifacts, resolver, rel, opts.NoCache, report); err != nil {
			report.Errors = append(report.Errors, FileError{Path: rel, Error: err.Error()})
			ix.logger.Warn("file indexing failed", "path", rel, "error", err)
		}
		if ix.progress != nil {
			ix.progress(i+1, len(candidates))
		}
	}

	artifacts.RecomputeSummary()
	mutated := report.Api.Added+report.Api.Updated+report.Api.Removed > 0
	ix.recomputeMeta(artifacts, mutated)

	if diffFiles != nil {
		artifacts.Diff = index.NewRecentDiff()
		artifacts.Diff.Since = opts.Since
		artifacts.Diff.Files = diffFiles
		report.Diff = &DiffInfo{Files: len(diffFiles)}
	}

	if err := artifacts.Rehash(ix.now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := artifacts.Save(ix.store); err != nil {
		return nil, err
	}

	report.DurationMs = int(ix.now().Sub(start).Milliseconds())
	report.Budget.UsedMs = report.DurationMs
	if report.Partial && report.Budget.UsedMs < limitMs {
		report.Budget.UsedMs = limitMs
	}

	ix.logger.Info("index updated",
		"files", len(candidates),
		"apiAdded", report.Api.Added,
		"apiUpdated", report.Api.Updated,
		"apiRemoved", report.Api.Removed,
		"partial", report.Partial,
		"durationMs", report.DurationMs)
	return report, nil
}

// candidates determines the file set to walk, sorted by path. The second
// return value is the diff snapshot to store, nil when none was taken.
func (ix *Indexer) candidates(opts UpdateOptions) ([]string, []index.DiffFile, error) {
	if len(opts.Changed) > 0 {
		return normalizePaths(opts.Changed), nil, nil
	}

	if opts.Since != "" {
		if ix.changes == nil {
			return nil, nil, minderr.New(minderr.CodeNoGit, "no change source configured")
		}
		diff, err := ix.changes.DiffSince(ix.store.Root(), opts.Since)
		if err != nil {
			return nil, nil, err
		}
		paths := make([]string, 0, len(diff))
		for _, f := range diff {
			paths = append(paths, f.Path)
		}
		sort.Slice(diff, func(i, j int) bool { return diff[i].Path < diff[j].Path })
		return normalizePaths(paths), diff, nil
	}

	all, err := ix.store.List(".")
	if err != nil {
		return nil, nil, err
	}
	var out []string
	for _, rel := range all {
		if isIndexable(rel) {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out, nil, nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, p := range in {
		p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
		if p == "." || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// isIndexable filters the full-walk candidate set down to source and
// documentation files.
func isIndexable(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == "node_modules" || part == "vendor" || strings.HasPrefix(part, ".") {
			return false
		}
	}
	if chunker.IsGeneratedPath(rel) {
		return false
	}
	return chunker.LanguageForPath(rel) != "" || chunker.IsMarkdownPath(rel)
}

// indexFile splices one candidate into the artifacts: removal for missing
// files, re-extraction for changed ones, a cache skip for unchanged ones.
func (ix *Indexer) indexFile(artifacts *index.Artifacts, resolver *deps.Resolver, rel string, noCache bool, report *UpdateReport) error {
	if !ix.store.Exists(rel) {
		return ix.removeFile(artifacts, rel, report)
	}

	data, err := ix.store.Read(rel)
	if err != nil {
		return err
	}

	apiFile := extract.File(rel, data)
	prev, existed := artifacts.Api.Files[rel]
	if existed && !noCache && prev.Sha256 == apiFile.Sha256 {
		return nil
	}

	chunks, err := chunker.ChunkFile(string(data), rel, int64(len(data)), chunker.Options{
		PreserveContext: true,
		IncludeJSDoc:    true,
	})
	if err != nil {
		return minderr.Wrap(minderr.CodeParseError, err, "chunking failed for "+rel)
	}
	if len(chunks) == 0 && len(data) > 0 {
		return minderr.Newf(minderr.CodeParseError, "no chunker produced output for %s", rel)
	}

	artifacts.Api.Files[rel] = apiFile
	if existed {
		report.Api.Updated++
	} else {
		report.Api.Added++
	}

	// Replace this file's outgoing edges; incoming edges stay.
	before := len(artifacts.Deps.Edges)
	kept := artifacts.Deps.Edges[:0]
	for _, e := range artifacts.Deps.Edges {
		if e.From != rel {
			kept = append(kept, e)
		}
	}
	report.Deps.EdgesRemoved += before - len(kept)

	newEdges := resolver.Resolve(rel, string(data))
	artifacts.Deps.Edges = append(kept, newEdges...)
	report.Deps.EdgesAdded += len(newEdges)

	ix.spliceDoc(artifacts, rel, string(data))

	if ix.vectors != nil {
		if err := ix.vectors.IndexFile(rel, apiFile.Sha256, chunks); err != nil {
			ix.logger.Warn("vector sink failed", "path", rel, "error", err)
		}
	}
	return nil
}

func (ix *Indexer) removeFile(artifacts *index.Artifacts, rel string, report *UpdateReport) error {
	if _, ok := artifacts.Api.Files[rel]; ok {
		delete(artifacts.Api.Files, rel)
		report.Api.Removed++
	}

	before := len(artifacts.Deps.Edges)
	artifacts.Deps.Edges = deps.RemoveFile(artifacts.Deps.Edges, rel)
	report.Deps.EdgesRemoved += before - len(artifacts.Deps.Edges)

	docs := artifacts.Docs.Docs[:0]
	for _, d := range artifacts.Docs.Docs {
		if d.Path != rel {
			docs = append(docs, d)
		}
	}
	artifacts.Docs.Docs = docs

	if ix.vectors != nil {
		if err := ix.vectors.RemoveFile(rel); err != nil {
			ix.logger.Warn("vector sink failed", "path", rel, "error", err)
		}
	}
	return nil
}

// spliceDoc maintains the docs index entry for markdown files.
func (ix *Indexer) spliceDoc(artifacts *index.Artifacts, rel string, source string) {
	if !chunker.IsMarkdownPath(rel) {
		return
	}

	entry := index.DocEntry{
		Path:  rel,
		Tag:   docTag(rel),
		Type:  "markdown",
		Title: docTitle(source),
	}

	for i, d := range artifacts.Docs.Docs {
		if d.Path == rel {
			artifacts.Docs.Docs[i] = entry
			return
		}
	}
	artifacts.Docs.Docs = append(artifacts.Docs.Docs, entry)
}

func docTag(rel string) string {
	base := strings.ToLower(path.Base(rel))
	lower := strings.ToLower(rel)
	switch {
	case strings.HasPrefix(base, "readme"):
		return index.DocTagReadme
	case strings.HasPrefix(base, "changelog"):
		return index.DocTagChangelog
	case strings.Contains(lower, "/adr/") || strings.HasPrefix(base, "adr-"):
		return index.DocTagADR
	case strings.Contains(lower, "api"):
		return index.DocTagAPI
	default:
		return index.DocTagGuide
	}
}

func docTitle(source string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

// recomputeMeta rebuilds the project summary from the current index. The
// last-activity timestamp tracks the newest indexed change, so it moves
// only when this update actually touched a file; a no-op update leaves
// meta.json (and therefore the composite checksum) byte-identical.
func (ix *Indexer) recomputeMeta(artifacts *index.Artifacts, mutated bool) {
	modules := map[string]bool{}
	exports := 0
	for rel, af := range artifacts.Api.Files {
		exports += len(af.Exports)
		top := moduleOf(rel)
		if top != "" {
			modules[top] = true
		}
	}

	list := make([]string, 0, len(modules))
	for m := range modules {
		list = append(list, m)
	}
	sort.Strings(list)

	artifacts.Meta.Modules = list
	artifacts.Meta.ExportsCount = exports
	if mutated {
		artifacts.Meta.LastActivity = ix.now().UTC().Format(time.RFC3339)
	}
	if artifacts.Meta.Name == "" {
		artifacts.Meta.Name = ix.packageName()
	}
}

// moduleOf maps a file path to its module: the directory under src/ when
// the workspace uses an src layout, the top-level directory otherwise.
func moduleOf(rel string) string {
	if rest, ok := strings.CutPrefix(rel, "src/"); ok {
		if idx := strings.IndexByte(rest, '/'); idx > 0 {
			return rest[:idx]
		}
		return "src"
	}
	if idx := strings.IndexByte(rel, '/'); idx > 0 {
		return rel[:idx]
	}
	return ""
}

// packageName reads the workspace package name from package.json when one
// exists.
func (ix *Indexer) packageName() string {
	data, err := ix.store.Read("package.json")
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Name
}
