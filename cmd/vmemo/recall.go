package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecallCmd(opts *globalOptions) *cobra.Command {
	var k int
	var filterExpr string

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Embed a query and return the top-k most similar notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kSet := cmd.Flags().Changed("top")
			return runRecall(opts, args[0], k, kSet, filterExpr)
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 2, "number of results to return (capped at 100, default from vmemo.yaml's top_k)")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "metadata filter expression")
	return cmd
}

func runRecall(opts *globalOptions, query string, k int, kSet bool, filterExpr string) error {
	db, tel, _, cfg, err := openDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, end := tel.Span(context.Background(), "recall")
	defer end()

	if !kSet {
		k = cfg.TopK
	}

	before := db.GPUStats()
	results, err := db.Recall(query, k, filterExpr)
	if err != nil {
		return err
	}
	tel.RecordGPUStats(ctx, before, db.GPUStats())

	fmt.Printf("%-6s %-8s %s\n", "ID", "SCORE", "TEXT")
	for _, r := range results {
		if r.Sentinel {
			continue // fewer real candidates than k
		}
		fmt.Printf("%-6d %-8.4f %s\n", r.ID, r.Score, r.Text)
	}
	return nil
}
