package main

import (
	"fmt"
	"os"

	"github.com/kb-labs/mind/internal/cli"
	"github.com/kb-labs/mind/internal/minderr"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := minderr.HintOf(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(minderr.ExitCode(err))
	}
}
