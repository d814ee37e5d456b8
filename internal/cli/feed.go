package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/git"
	"github.com/kb-labs/mind/internal/indexer"
	"github.com/kb-labs/mind/internal/pack"
)

// feedReport combines the update and pack halves of one feed run.
type feedReport struct {
	Update *indexer.UpdateReport `json:"update,omitempty"`
	Pack   *pack.ContextPackJson `json:"pack"`
	Tokens int                   `json:"tokensEstimate"`
}

func newFeedCmd(flags *rootFlags) *cobra.Command {
	pf := &packFlags{}
	var (
		noUpdate     bool
		since        string
		timeBudgetMs int
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Update the index, then assemble a context pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := flags.workspace()
			if err != nil {
				return err
			}
			if pf.intent == "" {
				pf.intent = "feed"
			}
			if timeBudgetMs <= 0 {
				timeBudgetMs = cfg.Indexer.TimeBudgetMs
			}

			report := &feedReport{}

			if !noUpdate {
				ix := indexer.New(store, indexer.WithChangeSource(git.NewChangeSource()))
				report.Update, err = ix.Update(indexer.UpdateOptions{
					Since:        since,
					TimeBudgetMs: timeBudgetMs,
					NoCache:      noCache,
				})
				if err != nil {
					return err
				}
			}

			out, err := pf.assemble(store, cfg)
			if err != nil {
				return err
			}
			report.Pack = out.Json
			report.Tokens = out.TokensEstimate

			if flags.jsonOut {
				return printResult(report)
			}
			fmt.Print(out.Markdown)
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&noUpdate, "no-update", false, "skip the index update")
	cmd.Flags().StringVar(&since, "since", "", "change-source reference to diff against")
	cmd.Flags().IntVar(&timeBudgetMs, "time-budget-ms", 0, "wall-clock budget for the update")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "re-extract files even when unchanged")
	return cmd
}
