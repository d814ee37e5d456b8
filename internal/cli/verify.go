package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/verify"
)

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check artifact integrity hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.workspaceStorage()
			if err != nil {
				return err
			}

			report, err := verify.Verify(store)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				if err := printResult(report); err != nil {
					return err
				}
			} else if report.OK {
				fmt.Println("index is consistent")
			} else {
				for _, inc := range report.Inconsistencies {
					fmt.Printf("mismatch: %s\n  expected %s\n  actual   %s\n", inc.File, inc.Expected, inc.Actual)
				}
				fmt.Println("hint:", report.Hint)
			}

			if !report.OK {
				return minderr.New(minderr.CodeIndexInconsistent, "index artifacts are inconsistent")
			}
			return nil
		},
	}
}
