// Package cli wires the command surface onto the core packages. Commands
// parse flags and render output; all behavior lives in the core.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/config"
	"github.com/kb-labs/mind/internal/storage"
)

// rootFlags are shared across subcommands.
type rootFlags struct {
	cwd     string
	jsonOut bool
	verbose bool
}

// NewRootCmd builds the mind command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "mind",
		Short:         "Code-knowledge indexer and retrieval engine",
		Long:          "mind indexes a source tree into deterministic artifacts and answers structured and semantic queries over them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if flags.verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
		},
	}

	root.PersistentFlags().StringVar(&flags.cwd, "cwd", ".", "workspace root")
	root.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newInitCmd(flags),
		newUpdateCmd(flags),
		newQueryCmd(flags),
		newPackCmd(flags),
		newFeedCmd(flags),
		newVerifyCmd(flags),
		newSyncCmd(flags),
	)
	return root
}

// workspaceStorage opens storage rooted at the --cwd flag.
func (f *rootFlags) workspaceStorage() (storage.Storage, error) {
	return storage.NewFS(f.cwd)
}

// workspace opens storage and loads the workspace configuration, which
// seeds every flag the user left unset.
func (f *rootFlags) workspace() (storage.Storage, *config.Config, error) {
	store, err := f.workspaceStorage()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(store.Root())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// printResult renders v as indented JSON on stdout.
func printResult(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
