// Package query executes the structured queries over the index artifacts:
// impact, scope, exports, externals, chain, meta, and docs. Results are
// cached under a bounded TTL keyed by the query fingerprint and the current
// artifact hashes, so any index write invalidates every cached entry.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Option defaults.
const (
	DefaultLimit    = 500
	DefaultDepth    = 5
	DefaultCacheTTL = 60
)

// Known query names.
var queryNames = map[string]bool{
	"impact":    true,
	"scope":     true,
	"exports":   true,
	"externals": true,
	"chain":     true,
	"meta":      true,
	"docs":      true,
}

// LlmClient is the optional generation capability behind AI-mode
// enrichment. When absent, queries return without summaries.
type LlmClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error)
}

// GenerateOptions tune one generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// GenerateResult is one generation outcome.
type GenerateResult struct {
	Text         string
	Tokens       int
	FinishReason string
}

// Params are the per-query parameters.
type Params struct {
	File    string `json:"file,omitempty"`
	Path    string `json:"path,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Product string `json:"product,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Type    string `json:"type,omitempty"`
	Search  string `json:"search,omitempty"`
}

// Options are the cross-query options.
type Options struct {
	Limit     int    `json:"limit,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	CacheTTL  int    `json:"cacheTtl,omitempty"`
	CacheMode string `json:"cacheMode,omitempty"` // local | ci
	NoCache   bool   `json:"-"`
	PathMode  string `json:"pathMode,omitempty"` // id | absolute
	AIMode    bool   `json:"aiMode,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.PathMode == "" {
		o.PathMode = "id"
	}
	if o.CacheMode == "" {
		o.CacheMode = "local"
	}
	return o
}

// Timing breaks down one execution.
type Timing struct {
	Load   int `json:"load"`
	Filter int `json:"filter"`
	Total  int `json:"total"`
}

// Meta accompanies every result.
type Meta struct {
	Cwd            string `json:"cwd"`
	QueryID        string `json:"queryId"`
	TokensEstimate int    `json:"tokensEstimate"`
	Cached         bool   `json:"cached"`
	FilesScanned   int    `json:"filesScanned"`
	EdgesTouched   int    `json:"edgesTouched"`
	DepsHash       string `json:"depsHash"`
	ApiHash        string `json:"apiHash"`
	TimingMs       Timing `json:"timingMs"`
}

// Response is the full query result.
type Response struct {
	Query              string   `json:"query"`
	Result             any      `json:"result"`
	Meta               Meta     `json:"meta"`
	Summary            string   `json:"summary,omitempty"`
	SuggestNextQueries []string `json:"suggestNextQueries,omitempty"`
}

// Engine executes queries for one workspace.
type Engine struct {
	store  storage.Storage
	cache  *resultCache
	llm    LlmClient
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLlm attaches the optional generation capability.
func WithLlm(llm LlmClient) EngineOption {
	return func(e *Engine) { e.llm = llm }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over store.
func New(store storage.Storage, opts ...EngineOption) (*Engine, error) {
	cache, err := newResultCache()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:  store,
		cache:  cache,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs one named query.
func (e *Engine) Execute(ctx context.Context, name string, params Params, opts Options) (*Response, error) {
	start := e.now()
	opts = opts.withDefaults()

	if !queryNames[name] {
		return nil, minderr.Newf(minderr.CodeInvalidFlag, "unknown query %q", name)
	}
	if err := requireParams(name, params); err != nil {
		return nil, err
	}

	artifacts, err := index.Load(e.store)
	if err != nil {
		return nil, err
	}
	loadMs := int(e.now().Sub(start).Milliseconds())

	// Hashes come from the artifact bytes, not the manifest: any byte that
	// changes on disk must invalidate cached results, even one the indexer
	// did not write.
	apiHash, depsHash, err := e.artifactHashes()
	if err != nil {
		return nil, err
	}

	cacheEnabled := !opts.NoCache && opts.CacheMode != "ci"
	key, err := fingerprint(name, params, opts, apiHash, depsHash)
	if err != nil {
		return nil, minderr.Wrap(minderr.CodeQueryError, err, "cache fingerprint failed")
	}

	if cacheEnabled {
		if cached, ok := e.cache.get(key, opts.CacheTTL, apiHash, depsHash); ok {
			resp := *cached
			resp.Meta.Cached = true
			resp.Meta.QueryID = uuid.NewString()
			resp.Meta.TimingMs = Timing{Load: loadMs, Total: int(e.now().Sub(start).Milliseconds())}
			return &resp, nil
		}
	}

	filterStart := e.now()
	result, scanned, touched, err := e.run(name, params, opts, artifacts)
	if err != nil {
		return nil, err
	}
	filterMs := int(e.now().Sub(filterStart).Milliseconds())

	resultJSON, err := hashutil.CanonicalJSON(result)
	if err != nil {
		return nil, minderr.Wrap(minderr.CodeQueryError, err, "result encoding failed")
	}

	resp := &Response{
		Query:  name,
		Result: result,
		Meta: Meta{
			Cwd:            e.store.Root(),
			QueryID:        uuid.NewString(),
			TokensEstimate: hashutil.EstimateTokens(string(resultJSON)),
			FilesScanned:   scanned,
			EdgesTouched:   touched,
			DepsHash:       depsHash,
			ApiHash:        apiHash,
			TimingMs: Timing{
				Load:   loadMs,
				Filter: filterMs,
				Total:  int(e.now().Sub(start).Milliseconds()),
			},
		},
	}

	if opts.AIMode {
		e.enrich(ctx, resp, name, params)
	}

	if cacheEnabled {
		e.cache.put(key, resp, apiHash, depsHash)
	}
	return resp, nil
}

// artifactHashes digests the current api-index and deps artifact bytes.
// The indexer writes them canonically, so these match the manifest hashes
// unless the files were touched out of band.
func (e *Engine) artifactHashes() (string, string, error) {
	apiRaw, err := e.store.Read(index.ApiIndexPath)
	if err != nil {
		return "", "", minderr.Wrap(minderr.CodeNoIndex, err, "missing api index")
	}
	depsRaw, err := e.store.Read(index.DepsPath)
	if err != nil {
		return "", "", minderr.Wrap(minderr.CodeNoIndex, err, "missing deps graph")
	}
	return hashutil.Sha256Bytes(apiRaw), hashutil.Sha256Bytes(depsRaw), nil
}

func requireParams(name string, params Params) error {
	switch name {
	case "impact", "exports", "chain":
		if params.File == "" {
			return minderr.Newf(minderr.CodeInvalidFlag, "query %q requires --file", name)
		}
	case "scope":
		if params.Path == "" {
			return minderr.New(minderr.CodeInvalidFlag, `query "scope" requires --path`)
		}
	}
	return nil
}

func (e *Engine) run(name string, params Params, opts Options, artifacts *index.Artifacts) (any, int, int, error) {
	switch name {
	case "impact":
		return e.impact(params, opts, artifacts)
	case "scope":
		return e.scopeQuery(params, opts, artifacts)
	case "exports":
		return e.exports(params, opts, artifacts)
	case "externals":
		return e.externals(params, opts, artifacts)
	case "chain":
		return e.chain(params, opts, artifacts)
	case "meta":
		return e.metaQuery(params, artifacts)
	case "docs":
		return e.docs(params, opts, artifacts)
	default:
		return nil, 0, 0, minderr.Newf(minderr.CodeInvalidFlag, "unknown query %q", name)
	}
}

// renderPath applies the pathMode option.
func (e *Engine) renderPath(rel string, opts Options) string {
	if opts.PathMode == "absolute" {
		return filepath.Join(e.store.Root(), filepath.FromSlash(rel))
	}
	return rel
}

// fingerprint hashes the query identity plus the artifact hashes. Cache
// control options are excluded so a cacheTtl change does not bypass the
// cache.
func fingerprint(name string, params Params, opts Options, apiHash, depsHash string) (string, error) {
	return hashutil.HashCanonical(map[string]any{
		"query":  name,
		"params": params,
		"options": map[string]any{
			"limit":    opts.Limit,
			"depth":    opts.Depth,
			"pathMode": opts.PathMode,
			"aiMode":   opts.AIMode,
		},
		"apiIndexHash": apiHash,
		"depsHash":     depsHash,
	})
}

// enrich adds the AI-mode summary and suggestions. Suggestions are
// heuristic; the summary needs the generation capability.
func (e *Engine) enrich(ctx context.Context, resp *Response, name string, params Params) {
	resp.SuggestNextQueries = suggestions(name, params)

	if e.llm == nil {
		return
	}
	resultJSON, err := hashutil.CanonicalJSON(resp.Result)
	if err != nil {
		return
	}
	prompt := fmt.Sprintf("Summarize this %s query result in two sentences:\n%s", name, truncateForPrompt(string(resultJSON)))
	gen, err := e.llm.Generate(ctx, prompt, GenerateOptions{MaxTokens: 120, Temperature: 0})
	if err != nil {
		e.logger.Warn("ai summary failed", "query", name, "error", err)
		return
	}
	resp.Summary = gen.Text
}

const maxPromptBytes = 4000

func truncateForPrompt(s string) string {
	if len(s) <= maxPromptBytes {
		return s
	}
	return s[:maxPromptBytes]
}

func suggestions(name string, params Params) []string {
	switch name {
	case "impact":
		return []string{"exports --file " + params.File, "chain --file " + params.File}
	case "exports":
		return []string{"impact --file " + params.File}
	case "chain":
		return []string{"impact --file " + params.File, "externals"}
	case "scope":
		return []string{"externals --scope " + params.Path, "docs"}
	case "externals":
		return []string{"meta", "docs"}
	case "meta":
		return []string{"docs", "externals"}
	default:
		return []string{"meta"}
	}
}
