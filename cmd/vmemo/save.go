package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSaveCmd(opts *globalOptions) *cobra.Command {
	var metaYAML string

	cmd := &cobra.Command{
		Use:   "save <text>",
		Short: "Embed and store a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], metaYAML)
		},
	}
	cmd.Flags().StringVarP(&metaYAML, "meta", "m", "", "metadata, as YAML (a superset of the flow-style metadata grammar)")
	return cmd
}

func runSave(opts *globalOptions, text, metaYAML string) error {
	db, tel, base, _, err := openDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, end := tel.Span(context.Background(), "save")
	defer end()

	meta, err := parseMeta(metaYAML)
	if err != nil {
		return err
	}

	before := db.GPUStats()
	id, err := db.Save(text, meta)
	if err != nil {
		return err
	}
	tel.RecordGPUStats(ctx, before, db.GPUStats())
	if err := db.Persist(base); err != nil {
		return err
	}

	fmt.Printf("saved id=%d\n", id)
	return nil
}

func parseMeta(metaYAML string) (map[string]any, error) {
	if metaYAML == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := yaml.Unmarshal([]byte(metaYAML), &meta); err != nil {
		return nil, fmt.Errorf("parsing -m metadata: %w", err)
	}
	return meta, nil
}
