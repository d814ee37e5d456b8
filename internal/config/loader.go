package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration for the workspace at rootDir with the following
// priority (highest to lowest):
//  1. Environment variables (MIND_*)
//  2. Config file (.kb/mind/config.yml)
//  3. Default values
func Load(rootDir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(rootDir, ".kb", "mind"))

	v.SetEnvPrefix("MIND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file means defaults; anything else is a real
		// problem worth surfacing.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("sync.type", d.Sync.Type)
	v.SetDefault("sync.path", d.Sync.Path)
	v.SetDefault("sync.soft_delete", d.Sync.SoftDelete)
	v.SetDefault("sync.soft_delete_ttl_days", d.Sync.SoftDeleteTTL)
	v.SetDefault("sync.partial_updates", d.Sync.PartialUpdates)
	v.SetDefault("sync.batch_max_size", d.Sync.BatchMaxSize)

	v.SetDefault("pack.total_tokens", d.Pack.TotalTokens)
	v.SetDefault("pack.truncation", d.Pack.Truncation)
	for name, tokens := range d.Pack.Caps {
		v.SetDefault("pack.caps."+name, tokens)
	}

	v.SetDefault("indexer.time_budget_ms", d.Indexer.TimeBudgetMs)
	v.SetDefault("indexer.max_file_size_bytes", d.Indexer.MaxFileSizeBytes)
	v.SetDefault("indexer.max_snippet_lines", d.Indexer.MaxSnippetLines)

	v.SetDefault("query.cache_ttl", d.Query.CacheTTL)
	v.SetDefault("query.limit", d.Query.Limit)
	v.SetDefault("query.depth", d.Query.Depth)
	v.SetDefault("query.path_mode", d.Query.PathMode)
}
