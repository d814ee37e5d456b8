// Package index defines the on-disk artifact model: the manifest, the API
// index, the dependency graph, the diff snapshot, project meta, and the
// docs index. Every artifact is canonical JSON under .kb/mind/ and hashes
// into the composite index checksum.
package index

import (
	"strings"

	"github.com/kb-labs/mind/internal/extract"
)

// Schema constants shared by every artifact file.
const (
	SchemaVersion = "1.0"
	Generator     = "kb-labs-mind@0.1.0"
)

// Artifact file paths, workspace-relative.
const (
	MindDir        = ".kb/mind"
	IndexPath      = ".kb/mind/index.json"
	ApiIndexPath   = ".kb/mind/api-index.json"
	DepsPath       = ".kb/mind/deps.json"
	RecentDiffPath = ".kb/mind/recent-diff.json"
	MetaPath       = ".kb/mind/meta.json"
	DocsPath       = ".kb/mind/docs.json"
	VectorsDir     = ".kb/mind/vectors"
	SyncPath       = ".kb/mind/sync/registry.json"
	HistoryDir     = ".kb/mind/learning/history"
	FeedbackDir    = ".kb/mind/learning/feedback"
	QueryDir       = ".kb/mind/query"
)

// MindIndex is the top-level manifest tying the artifacts together.
type MindIndex struct {
	SchemaVersion  string `json:"schemaVersion"`
	Generator      string `json:"generator"`
	UpdatedAt      string `json:"updatedAt"`
	IndexChecksum  string `json:"indexChecksum"`
	ApiIndexHash   string `json:"apiIndexHash"`
	DepsHash       string `json:"depsHash"`
	RecentDiffHash string `json:"recentDiffHash"`
}

// ApiIndex maps relative file paths to their export surface.
type ApiIndex struct {
	SchemaVersion string                      `json:"schemaVersion"`
	Generator     string                      `json:"generator"`
	Files         map[string]*extract.ApiFile `json:"files"`
}

// NewApiIndex returns an empty API index.
func NewApiIndex() *ApiIndex {
	return &ApiIndex{
		SchemaVersion: SchemaVersion,
		Generator:     Generator,
		Files:         map[string]*extract.ApiFile{},
	}
}

// Edge kinds.
const (
	EdgeRuntime = "runtime"
	EdgeDev     = "dev"
	EdgePeer    = "peer"
)

// DepEdge is one directed import edge. From is always an internal path; To
// is an internal path or an external package name.
type DepEdge struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

// External marks whether To references a package outside the workspace.
func (e DepEdge) External() bool {
	return !isInternalPath(e.To)
}

// sourceExtensions are the file extensions a resolved internal target can
// carry.
var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".mts": true, ".cts": true, ".mjs": true, ".cjs": true,
	".py": true, ".pyi": true, ".go": true, ".rs": true, ".cs": true,
	".json": true, ".md": true,
}

// isInternalPath reports whether p is a workspace-relative path rather than
// a package name. Scoped packages (@scope/name) contain a slash, so the
// scope prefix is checked first.
func isInternalPath(p string) bool {
	if p == "" || p[0] == '@' {
		return false
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 && sourceExtensions[p[i:]] {
		return true
	}
	return strings.ContainsRune(p, '/')
}

// DepsSummary aggregates the graph's external surface.
type DepsSummary struct {
	ExternalDeps []string `json:"externalDeps"`
	EdgeCount    int      `json:"edgeCount"`
	FileCount    int      `json:"fileCount"`
}

// DepsGraph is the import graph artifact.
type DepsGraph struct {
	SchemaVersion string      `json:"schemaVersion"`
	Generator     string      `json:"generator"`
	Edges         []DepEdge   `json:"edges"`
	Summary       DepsSummary `json:"summary"`
}

// NewDepsGraph returns an empty dependency graph.
func NewDepsGraph() *DepsGraph {
	return &DepsGraph{
		SchemaVersion: SchemaVersion,
		Generator:     Generator,
		Edges:         []DepEdge{},
		Summary:       DepsSummary{ExternalDeps: []string{}},
	}
}

// Diff statuses.
const (
	StatusAdded    = "A"
	StatusModified = "M"
	StatusDeleted  = "D"
	StatusRenamed  = "R"
)

// DiffFile is one changed file as reported by the change source.
type DiffFile struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// RecentDiff stores the change-source snapshot as supplied.
type RecentDiff struct {
	SchemaVersion string     `json:"schemaVersion"`
	Generator     string     `json:"generator"`
	Since         string     `json:"since,omitempty"`
	Files         []DiffFile `json:"files"`
}

// NewRecentDiff returns an empty diff snapshot.
func NewRecentDiff() *RecentDiff {
	return &RecentDiff{
		SchemaVersion: SchemaVersion,
		Generator:     Generator,
		Files:         []DiffFile{},
	}
}

// ProjectMeta is the package summary artifact.
type ProjectMeta struct {
	SchemaVersion string   `json:"schemaVersion"`
	Generator     string   `json:"generator"`
	Name          string   `json:"name,omitempty"`
	Modules       []string `json:"modules"`
	ExportsCount  int      `json:"exportsCount"`
	LastActivity  string   `json:"lastActivity,omitempty"`
}

// NewProjectMeta returns an empty project meta artifact.
func NewProjectMeta() *ProjectMeta {
	return &ProjectMeta{
		SchemaVersion: SchemaVersion,
		Generator:     Generator,
		Modules:       []string{},
	}
}

// Doc tags inferred from path conventions.
const (
	DocTagReadme    = "readme"
	DocTagADR       = "adr"
	DocTagGuide     = "guide"
	DocTagAPI       = "api"
	DocTagChangelog = "changelog"
)

// DocEntry is one discovered document.
type DocEntry struct {
	Path  string `json:"path"`
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// DocsIndex lists discovered documents, unique by path.
type DocsIndex struct {
	SchemaVersion string     `json:"schemaVersion"`
	Generator     string     `json:"generator"`
	Docs          []DocEntry `json:"docs"`
}

// NewDocsIndex returns an empty docs index.
func NewDocsIndex() *DocsIndex {
	return &DocsIndex{
		SchemaVersion: SchemaVersion,
		Generator:     Generator,
		Docs:          []DocEntry{},
	}
}
