// Command vmemo is a command-line agent memory: it embeds short textual
// notes via an on-device transformer, stores them alongside a parallel
// text store and an optional metadata sidecar, and answers similarity
// queries with optional metadata pre-filtering (spec.md §1).
//
// Usage:
//
//	vmemo save "text" [-m "key: value"] [-f basename]
//	vmemo recall "query" [-k N] [--filter expr] [-f basename]
//	vmemo clean [-f basename]
//	vmemo analyze [-f basename]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "vmemo",
		Short:         "A self-contained semantic memory engine for CLI agents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&opts.base, "file", "f", "", "db basename (default from vmemo.yaml, else \"vmemo\")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logs on the error stream")

	root.AddCommand(newSaveCmd(opts))
	root.AddCommand(newRecallCmd(opts))
	root.AddCommand(newCleanCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))

	return root
}
