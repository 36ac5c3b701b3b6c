package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vmemo/internal/config"
)

func newCleanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove a db's sidecar files (vectors, text, metadata)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts)
		},
	}
}

func runClean(opts *globalOptions) error {
	cfg, err := config.Load("vmemo.yaml")
	if err != nil {
		return err
	}
	base := resolveBase(opts, cfg)

	removed := 0
	for _, ext := range []string{".memo", ".txt", ".meta"} {
		path := base + ext
		if err := os.Remove(path); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	fmt.Printf("removed %d sidecar file(s) for %q\n", removed, base)
	return nil
}
