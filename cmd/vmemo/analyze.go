package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Print per-record diagnostics: GPU backend, vector norm, token count, metadata fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts)
		},
	}
}

func runAnalyze(opts *globalOptions) error {
	db, tel, _, _, err := openDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	_, end := tel.Span(context.Background(), "analyze")
	defer end()

	rows, err := db.Analyze()
	if err != nil {
		return err
	}

	for _, r := range rows {
		fmt.Printf("id=%d backend=%s norm=%.4f tokens=%d fields=", r.ID, r.GPUBackend, r.VectorNorm, r.TokenCount)
		for i, f := range r.MetaFields {
			if i > 0 {
				fmt.Print(",")
			}
			fmt.Printf("%s:%s", f.Key, f.Kind)
		}
		fmt.Println()
	}
	return nil
}
