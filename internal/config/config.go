// Package config loads the workspace configuration for the mind core.
// Priority: defaults, then .kb/mind/config.yml, then MIND_* environment
// variables.
package config

import (
	"fmt"
	"strings"
)

// Config is the recognized option surface.
type Config struct {
	Sync    SyncConfig    `mapstructure:"sync"`
	Pack    PackConfig    `mapstructure:"pack"`
	Indexer IndexerConfig `mapstructure:"indexer"`
	Query   QueryConfig   `mapstructure:"query"`
}

// SyncConfig tunes the sync registry.
type SyncConfig struct {
	Type           string `mapstructure:"type"`
	Path           string `mapstructure:"path"`
	SoftDelete     bool   `mapstructure:"soft_delete"`
	SoftDeleteTTL  int    `mapstructure:"soft_delete_ttl_days"`
	PartialUpdates bool   `mapstructure:"partial_updates"`
	BatchMaxSize   int    `mapstructure:"batch_max_size"`
}

// PackConfig tunes pack assembly.
type PackConfig struct {
	TotalTokens int            `mapstructure:"total_tokens"`
	Caps        map[string]int `mapstructure:"caps"`
	Truncation  string         `mapstructure:"truncation"`
}

// IndexerConfig tunes the update walk.
type IndexerConfig struct {
	TimeBudgetMs     int   `mapstructure:"time_budget_ms"`
	MaxFileSizeBytes int64 `mapstructure:"max_file_size_bytes"`
	MaxSnippetLines  int   `mapstructure:"max_snippet_lines"`
}

// QueryConfig tunes the query engine.
type QueryConfig struct {
	CacheTTL int    `mapstructure:"cache_ttl"`
	Limit    int    `mapstructure:"limit"`
	Depth    int    `mapstructure:"depth"`
	PathMode string `mapstructure:"path_mode"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Type:           "filesystem",
			Path:           ".kb/mind/sync/registry.json",
			SoftDelete:     true,
			SoftDeleteTTL:  30,
			PartialUpdates: true,
			BatchMaxSize:   100,
		},
		Pack: PackConfig{
			TotalTokens: 8000,
			Caps: map[string]int{
				"intent_summary":   300,
				"product_overview": 600,
				"api_signatures":   2200,
				"recent_diffs":     1200,
				"impl_snippets":    3000,
				"configs_profiles": 700,
			},
			Truncation: "middle",
		},
		Indexer: IndexerConfig{
			TimeBudgetMs:     800,
			MaxFileSizeBytes: 1536 * 1024,
			MaxSnippetLines:  60,
		},
		Query: QueryConfig{
			CacheTTL: 60,
			Limit:    500,
			Depth:    5,
			PathMode: "id",
		},
	}
}

// Validate checks option values, collecting every problem.
func (c *Config) Validate() error {
	var problems []string

	if c.Sync.Type != "filesystem" {
		problems = append(problems, fmt.Sprintf("sync.type %q is not supported (only filesystem)", c.Sync.Type))
	}
	if c.Sync.BatchMaxSize <= 0 {
		problems = append(problems, "sync.batch_max_size must be positive")
	}
	if c.Pack.TotalTokens <= 0 {
		problems = append(problems, "pack.total_tokens must be positive")
	}
	switch c.Pack.Truncation {
	case "start", "middle", "end":
	default:
		problems = append(problems, fmt.Sprintf("pack.truncation %q is not one of start, middle, end", c.Pack.Truncation))
	}
	if c.Indexer.TimeBudgetMs <= 0 {
		problems = append(problems, "indexer.time_budget_ms must be positive")
	}
	switch c.Query.PathMode {
	case "id", "absolute":
	default:
		problems = append(problems, fmt.Sprintf("query.path_mode %q is not one of id, absolute", c.Query.PathMode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
