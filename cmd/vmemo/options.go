package main

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"vmemo/internal/config"
	"vmemo/internal/memo"
	"vmemo/internal/telemetry"
)

// globalOptions holds the persistent flags every subcommand shares.
type globalOptions struct {
	base    string
	verbose bool
}

// newLogger builds the go-logr logger used throughout the CLI, writing
// to stderr per spec §6 ("diagnostic and verbose logs go to the error
// stream"). Verbosity 1 (-v) is enabled only when requested.
func newLogger(verbose bool) logr.Logger {
	l := stdr.New(stdlog.New(os.Stderr, "", stdlog.LstdFlags))
	if verbose {
		stdr.SetVerbosity(1)
	}
	return l
}

// resolveBase applies the precedence the CLI owes its flags over the
// optional vmemo.yaml config file (SPEC_FULL.md §1.3).
func resolveBase(opts *globalOptions, cfg config.Config) string {
	if opts.base != "" {
		return opts.base
	}
	return cfg.Base
}

// openDB loads the configured db basename's model, tokenizer, and
// sidecars into a memo.DB, ready for a single CLI operation. It returns
// the resolved basename and loaded config too, so callers can Persist
// back to the same location and apply config-sourced flag defaults
// (e.g. recall's -k) without reloading the config file.
func openDB(opts *globalOptions) (db *memo.DB, tel *telemetry.Telemetry, base string, cfg config.Config, err error) {
	cfg, err = config.Load("vmemo.yaml")
	if err != nil {
		return nil, nil, "", config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	base = resolveBase(opts, cfg)
	log := newLogger(opts.verbose)

	modelPath := base + ".model"
	tokenizerPath := base + ".tokenizer"

	db, err = memo.Open(log, modelPath, tokenizerPath, base, cfg.ArenaBytes, cfg.PreferVulkan)
	if err != nil {
		return nil, nil, "", config.Config{}, err
	}

	tel, err = telemetry.New(log, opts.verbose)
	if err != nil {
		db.Close()
		return nil, nil, "", config.Config{}, err
	}
	return db, tel, base, cfg, nil
}
