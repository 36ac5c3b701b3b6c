// Package vmemoerr declares the sentinel error kinds shared across vmemo's
// core components. Call sites wrap these with fmt.Errorf("...: %w", ...) and
// callers unwrap with errors.Is.
package vmemoerr

import "errors"

var (
	// ErrInvalidModel marks a corrupt or structurally impossible model file.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidTokenizer marks a truncated or malformed tokenizer file.
	ErrInvalidTokenizer = errors.New("invalid tokenizer")

	// ErrFull marks a store operating at capacity.
	ErrFull = errors.New("store full")

	// ErrNotFound marks an overwrite against an unknown id.
	ErrNotFound = errors.New("id not found")

	// ErrIoError marks a failed read or write against a sidecar file.
	ErrIoError = errors.New("i/o error")

	// ErrGpuInit marks a failed device or queue acquisition at startup.
	ErrGpuInit = errors.New("gpu init failed")

	// ErrGpuDispatch marks a failed kernel dispatch; treated as device loss.
	ErrGpuDispatch = errors.New("gpu dispatch failed")

	// ErrFilterParse marks a malformed filter expression.
	ErrFilterParse = errors.New("filter parse error")
)
