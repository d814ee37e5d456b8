package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/git"
	"github.com/kb-labs/mind/internal/indexer"
)

func newUpdateCmd(flags *rootFlags) *cobra.Command {
	var (
		since        string
		changed      []string
		timeBudgetMs int
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Incrementally update the index from changed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := flags.workspace()
			if err != nil {
				return err
			}
			if timeBudgetMs <= 0 {
				timeBudgetMs = cfg.Indexer.TimeBudgetMs
			}

			opts := []indexer.Option{indexer.WithChangeSource(git.NewChangeSource())}

			var bar *progressbar.ProgressBar
			if !flags.jsonOut && isatty.IsTerminal(os.Stderr.Fd()) {
				opts = append(opts, indexer.WithProgress(func(done, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionSetDescription("indexing"),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(done)
				}))
			}

			report, err := indexer.New(store, opts...).Update(indexer.UpdateOptions{
				Since:        since,
				Changed:      changed,
				TimeBudgetMs: timeBudgetMs,
				NoCache:      noCache,
			})
			if err != nil {
				return err
			}

			if flags.jsonOut {
				return printResult(report)
			}
			fmt.Printf("api: +%d ~%d -%d, edges: +%d -%d, partial: %v (%d ms)\n",
				report.Api.Added, report.Api.Updated, report.Api.Removed,
				report.Deps.EdgesAdded, report.Deps.EdgesRemoved,
				report.Partial, report.DurationMs)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "change-source reference to diff against")
	cmd.Flags().StringSliceVar(&changed, "changed", nil, "explicit changed file list")
	cmd.Flags().IntVar(&timeBudgetMs, "time-budget-ms", 0, "wall-clock budget for the walk")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "re-extract files even when unchanged")
	return cmd
}
