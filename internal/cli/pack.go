package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/config"
	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/pack"
	"github.com/kb-labs/mind/internal/storage"
)

type packFlags struct {
	intent      string
	product     string
	preset      string
	totalTokens int
	truncation  string
	seed        int
	out         string
	withBundle  bool
}

func (p *packFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.intent, "intent", "", "what the pack is for")
	cmd.Flags().StringVar(&p.product, "product", "", "product to focus on")
	cmd.Flags().StringVar(&p.preset, "preset", "", "weighting preset (default balanced)")
	cmd.Flags().IntVar(&p.totalTokens, "budget", 0, "total token budget")
	cmd.Flags().StringVar(&p.truncation, "truncation", "", "truncation strategy: start, middle, end")
	cmd.Flags().IntVar(&p.seed, "seed", 0, "snippet selection seed")
	cmd.Flags().StringVar(&p.out, "out", "", "write pack.md and pack.json under this path prefix")
	cmd.Flags().BoolVar(&p.withBundle, "with-bundle", false, "include the markdown bundle in JSON output")
}

func (p *packFlags) assemble(store storage.Storage, cfg *config.Config) (*pack.Output, error) {
	// Configured values override the built-in defaults; flags override
	// both.
	budget := pack.DefaultBudget()
	if cfg != nil {
		if cfg.Pack.TotalTokens > 0 {
			budget.TotalTokens = cfg.Pack.TotalTokens
		}
		if cfg.Pack.Truncation != "" {
			budget.Truncation = cfg.Pack.Truncation
		}
		for name, tokens := range cfg.Pack.Caps {
			budget.Caps[name] = tokens
		}
	}
	if p.totalTokens > 0 {
		budget.TotalTokens = p.totalTokens
	}
	if p.truncation != "" {
		budget.Truncation = p.truncation
	}

	out, err := pack.New(store).Assemble(pack.Input{
		Intent:  p.intent,
		Product: p.product,
		Budget:  budget,
		Preset:  presetByName(p.preset),
		Seed:    p.seed,
	})
	if err != nil {
		return nil, err
	}

	if p.out != "" {
		jsonData, err := hashutil.CanonicalJSON(out.Json)
		if err != nil {
			return nil, err
		}
		if err := store.Write(p.out+".json", jsonData); err != nil {
			return nil, err
		}
		if err := store.Write(p.out+".md", []byte(out.Markdown)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// presetByName maps named presets to weight sets. Unknown names fall back
// to the default.
func presetByName(name string) pack.Preset {
	switch name {
	case "api":
		return pack.Preset{Overview: 0.8, Api: 1.6, Diffs: 0.8, Snippets: 1, Configs: 0.5}
	case "review":
		return pack.Preset{Overview: 0.8, Api: 1, Diffs: 1.6, Snippets: 1.4, Configs: 0.5}
	default:
		return pack.DefaultPreset()
	}
}

func newPackCmd(flags *rootFlags) *cobra.Command {
	pf := &packFlags{}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Assemble a token-budgeted context pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pf.intent == "" {
				return fmt.Errorf("--intent is required")
			}

			store, cfg, err := flags.workspace()
			if err != nil {
				return err
			}

			out, err := pf.assemble(store, cfg)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				if pf.withBundle {
					return printResult(out)
				}
				return printResult(out.Json)
			}
			fmt.Print(out.Markdown)
			fmt.Printf("\n(tokens: %d)\n", out.TokensEstimate)
			return nil
		},
	}

	pf.register(cmd)
	return cmd
}
