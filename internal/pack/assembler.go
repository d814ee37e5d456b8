// Package pack assembles context packs: labeled Markdown sections built
// from the index artifacts under a per-section token cap and a total
// budget. Assembly is deterministic; equal inputs produce byte-identical
// output.
package pack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/storage"
)

// Section names in assembly order.
var sectionOrder = []string{
	"intent_summary",
	"product_overview",
	"project_meta",
	"api_signatures",
	"recent_diffs",
	"docs_overview",
	"impl_snippets",
	"configs_profiles",
}

// Budget is the token budget for one pack.
type Budget struct {
	TotalTokens int            `json:"totalTokens"`
	Caps        map[string]int `json:"caps"`
	Truncation  string         `json:"truncation"`
}

// DefaultBudget returns the documented defaults.
func DefaultBudget() Budget {
	return Budget{
		TotalTokens: 8000,
		Caps: map[string]int{
			"intent_summary":   300,
			"product_overview": 600,
			"project_meta":     300,
			"api_signatures":   2200,
			"recent_diffs":     1200,
			"docs_overview":    400,
			"impl_snippets":    3000,
			"configs_profiles": 700,
		},
		Truncation: TruncateMiddle,
	}
}

// Preset weights bias the section caps without reordering them.
type Preset struct {
	Overview float64 `json:"overview"`
	Api      float64 `json:"api"`
	Diffs    float64 `json:"diffs"`
	Snippets float64 `json:"snippets"`
	Configs  float64 `json:"configs"`
}

// DefaultPreset returns the documented default weights.
func DefaultPreset() Preset {
	return Preset{Overview: 1, Api: 1.2, Diffs: 1, Snippets: 1.4, Configs: 0.6}
}

// weightFor maps a section to its preset weight.
func (p Preset) weightFor(section string) float64 {
	switch section {
	case "product_overview", "project_meta", "docs_overview":
		return p.Overview
	case "api_signatures":
		return p.Api
	case "recent_diffs":
		return p.Diffs
	case "impl_snippets":
		return p.Snippets
	case "configs_profiles":
		return p.Configs
	default:
		return 1
	}
}

// Input describes one pack request.
type Input struct {
	Intent  string
	Product string
	Budget  Budget
	Preset  Preset
	Seed    int
}

// ContextPackJson is the structured half of the pack output.
type ContextPackJson struct {
	SchemaVersion string            `json:"schemaVersion"`
	Generator     string            `json:"generator"`
	Sections      map[string]string `json:"sections"`
	SectionUsage  map[string]int    `json:"sectionUsage"`
	BudgetApplied Budget            `json:"budgetApplied"`
	Seed          int               `json:"seed,omitempty"`
	Deterministic bool              `json:"deterministic"`
}

// Output is one assembled pack.
type Output struct {
	Json           *ContextPackJson `json:"json"`
	Markdown       string           `json:"markdown"`
	TokensEstimate int              `json:"tokensEstimate"`
}

// maxSnippetLines bounds the lines taken from any one source file.
const maxSnippetLines = 60

// Assembler builds packs for one workspace.
type Assembler struct {
	store storage.Storage
}

// New creates an Assembler over store.
func New(store storage.Storage) *Assembler {
	return &Assembler{store: store}
}

// Assemble builds a pack. Sections are built in fixed order, truncated to
// their weighted caps, then dropped from the tail until the total budget
// holds. A budget that cannot fit even the truncated intent section is an
// error.
func (a *Assembler) Assemble(in Input) (*Output, error) {
	if in.Budget.TotalTokens <= 0 {
		in.Budget = DefaultBudget()
	}
	if in.Budget.Truncation == "" {
		in.Budget.Truncation = TruncateMiddle
	}
	if in.Preset == (Preset{}) {
		in.Preset = DefaultPreset()
	}
	defaults := DefaultBudget()

	artifacts, err := index.Load(a.store)
	if err != nil {
		return nil, err
	}

	sections := map[string]string{}
	usage := map[string]int{}

	for _, name := range sectionOrder {
		block := a.build(name, in, artifacts)
		if block == "" {
			continue
		}

		capTokens := in.Budget.Caps[name]
		if capTokens <= 0 {
			capTokens = defaults.Caps[name]
		}
		capTokens = int(float64(capTokens) * in.Preset.weightFor(name))
		if capTokens <= 0 {
			continue
		}

		block = truncate(block, capTokens, in.Budget.Truncation)
		sections[name] = block
		usage[name] = hashutil.EstimateTokens(block)
	}

	// Enforce the total budget by dropping sections from the tail.
	total := 0
	for _, name := range sectionOrder {
		total += usage[name]
	}
	for i := len(sectionOrder) - 1; i >= 0 && total > in.Budget.TotalTokens; i-- {
		name := sectionOrder[i]
		if name == "intent_summary" {
			return nil, minderr.Newf(minderr.CodePackBudget,
				"budget of %d tokens cannot fit the intent section", in.Budget.TotalTokens)
		}
		if used, ok := usage[name]; ok {
			total -= used
			delete(sections, name)
			delete(usage, name)
		}
	}

	var md strings.Builder
	for _, name := range sectionOrder {
		if block, ok := sections[name]; ok {
			md.WriteString(block)
			md.WriteString("\n\n")
		}
	}

	out := &Output{
		Json: &ContextPackJson{
			SchemaVersion: index.SchemaVersion,
			Generator:     index.Generator,
			Sections:      sections,
			SectionUsage:  usage,
			BudgetApplied: in.Budget,
			Seed:          in.Seed,
			Deterministic: true,
		},
		Markdown:       strings.TrimRight(md.String(), "\n") + "\n",
		TokensEstimate: total,
	}
	return out, nil
}

// build renders one section's Markdown block.
func (a *Assembler) build(name string, in Input, artifacts *index.Artifacts) string {
	switch name {
	case "intent_summary":
		return a.intentSummary(in)
	case "product_overview":
		return a.productOverview(in, artifacts)
	case "project_meta":
		return a.projectMeta(artifacts)
	case "api_signatures":
		return a.apiSignatures(artifacts)
	case "recent_diffs":
		return a.recentDiffs(artifacts)
	case "docs_overview":
		return a.docsOverview(artifacts)
	case "impl_snippets":
		return a.implSnippets(in, artifacts)
	case "configs_profiles":
		return a.configsProfiles()
	default:
		return ""
	}
}

func (a *Assembler) intentSummary(in Input) string {
	var b strings.Builder
	b.WriteString("## Intent\n\n")
	b.WriteString(in.Intent)
	if in.Product != "" {
		b.WriteString("\n\nProduct: " + in.Product)
	}
	return b.String()
}

func (a *Assembler) productOverview(in Input, artifacts *index.Artifacts) string {
	meta := artifacts.Meta
	var b strings.Builder
	b.WriteString("## Overview\n\n")
	if meta.Name != "" {
		b.WriteString("Project: " + meta.Name + "\n")
	}
	b.WriteString(fmt.Sprintf("Indexed files: %d\n", len(artifacts.Api.Files)))
	b.WriteString(fmt.Sprintf("Exported symbols: %d\n", meta.ExportsCount))
	if len(artifacts.Deps.Summary.ExternalDeps) > 0 {
		b.WriteString("External dependencies: " + strings.Join(artifacts.Deps.Summary.ExternalDeps, ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) projectMeta(artifacts *index.Artifacts) string {
	meta := artifacts.Meta
	if len(meta.Modules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Modules\n\n")
	for _, m := range meta.Modules {
		b.WriteString("- " + m + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) apiSignatures(artifacts *index.Artifacts) string {
	paths := make([]string, 0, len(artifacts.Api.Files))
	for rel := range artifacts.Api.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("## API\n")
	wrote := false
	for _, rel := range paths {
		af := artifacts.Api.Files[rel]
		if len(af.Exports) == 0 {
			continue
		}
		b.WriteString("\n### " + rel + "\n\n")
		for _, exp := range af.Exports {
			b.WriteString("- `" + exp.Signature + "`")
			if exp.JSDoc != "" {
				b.WriteString(" — " + exp.JSDoc)
			}
			b.WriteString("\n")
		}
		wrote = true
	}
	if !wrote {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) recentDiffs(artifacts *index.Artifacts) string {
	if len(artifacts.Diff.Files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Recent changes\n\n")
	if artifacts.Diff.Since != "" {
		b.WriteString("Since: " + artifacts.Diff.Since + "\n\n")
	}
	for _, f := range artifacts.Diff.Files {
		b.WriteString("- " + f.Status + " " + f.Path + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) docsOverview(artifacts *index.Artifacts) string {
	if len(artifacts.Docs.Docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Documentation\n\n")
	for _, d := range artifacts.Docs.Docs {
		b.WriteString("- " + d.Path)
		if d.Title != "" {
			b.WriteString(": " + d.Title)
		}
		b.WriteString(" (" + d.Tag + ")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// implSnippets includes the head of the most relevant source files:
// recently changed ones first, then the files with the largest export
// surface. The seed rotates the starting point within that ranking.
func (a *Assembler) implSnippets(in Input, artifacts *index.Artifacts) string {
	var candidates []string
	seen := map[string]bool{}
	for _, f := range artifacts.Diff.Files {
		if f.Status != index.StatusDeleted {
			if _, ok := artifacts.Api.Files[f.Path]; ok && !seen[f.Path] {
				candidates = append(candidates, f.Path)
				seen[f.Path] = true
			}
		}
	}

	rest := make([]string, 0, len(artifacts.Api.Files))
	for rel := range artifacts.Api.Files {
		if !seen[rel] {
			rest = append(rest, rel)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		ei := len(artifacts.Api.Files[rest[i]].Exports)
		ej := len(artifacts.Api.Files[rest[j]].Exports)
		if ei != ej {
			return ei > ej
		}
		return rest[i] < rest[j]
	})
	candidates = append(candidates, rest...)

	if len(candidates) == 0 {
		return ""
	}
	if in.Seed != 0 {
		offset := in.Seed % len(candidates)
		if offset < 0 {
			offset += len(candidates)
		}
		candidates = append(candidates[offset:], candidates[:offset]...)
	}

	const maxSnippetFiles = 5
	if len(candidates) > maxSnippetFiles {
		candidates = candidates[:maxSnippetFiles]
	}

	var b strings.Builder
	b.WriteString("## Snippets\n")
	for _, rel := range candidates {
		data, err := a.store.Read(rel)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		if len(lines) > maxSnippetLines {
			lines = lines[:maxSnippetLines]
		}
		b.WriteString("\n### " + rel + "\n\n```\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n```\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// configFiles are the workspace profiles surfaced in packs.
var configFiles = []string{"package.json", "tsconfig.json", "jsconfig.json", "go.mod", "pyproject.toml", "Cargo.toml"}

func (a *Assembler) configsProfiles() string {
	var b strings.Builder
	b.WriteString("## Configuration\n\n")
	wrote := false
	for _, name := range configFiles {
		if a.store.Exists(name) {
			b.WriteString("- " + name + "\n")
			wrote = true
		}
	}
	if !wrote {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}
