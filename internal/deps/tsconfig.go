package deps

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kb-labs/mind/internal/storage"
)

// TSConfig is the subset of a TypeScript project configuration the resolver
// cares about: the base directory and the path alias map.
type TSConfig struct {
	BaseURL string
	Paths   map[string][]string
}

type tsconfigFile struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

var (
	lineCommentRe  = regexp.MustCompile(`(^|[^:])//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// LoadTSConfig reads tsconfig.json (or jsconfig.json) from the workspace
// root. The files are JSONC in the wild, so comments and trailing commas
// are stripped before decoding. A missing or unreadable config is not an
// error; alias resolution is simply disabled.
func LoadTSConfig(store storage.Storage) *TSConfig {
	for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
		data, err := store.Read(name)
		if err != nil {
			continue
		}
		cleaned := blockCommentRe.ReplaceAllString(string(data), "")
		cleaned = lineCommentRe.ReplaceAllString(cleaned, "$1")
		cleaned = trailingComma.ReplaceAllString(cleaned, "$1")

		var parsed tsconfigFile
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			continue
		}
		if len(parsed.CompilerOptions.Paths) == 0 {
			continue
		}
		return &TSConfig{
			BaseURL: strings.TrimPrefix(strings.TrimSuffix(parsed.CompilerOptions.BaseURL, "/"), "./"),
			Paths:   parsed.CompilerOptions.Paths,
		}
	}
	return nil
}

// Match resolves spec against the alias map, returning the candidate target
// fragments (with the alias wildcard substituted) and whether any alias
// matched.
func (c *TSConfig) Match(spec string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	for pattern, targets := range c.Paths {
		prefix, wildcard := strings.CutSuffix(pattern, "*")
		var rest string
		if wildcard {
			if !strings.HasPrefix(spec, prefix) {
				continue
			}
			rest = strings.TrimPrefix(spec, prefix)
		} else if spec != pattern {
			continue
		}

		var out []string
		for _, target := range targets {
			resolved := target
			if wildcard {
				resolved = strings.Replace(target, "*", rest, 1)
			}
			out = append(out, strings.TrimPrefix(resolved, "./"))
		}
		return out, true
	}
	return nil, false
}
