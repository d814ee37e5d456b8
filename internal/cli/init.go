package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/indexer"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the index directory with empty artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.workspaceStorage()
			if err != nil {
				return err
			}

			mindDir, err := indexer.New(store).Init(force)
			if err != nil {
				return err
			}

			if flags.jsonOut {
				return printResult(map[string]string{"mindDir": mindDir})
			}
			fmt.Printf("initialized %s\n", mindDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reinitialize even if an index exists")
	return cmd
}
