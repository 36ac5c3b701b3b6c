// Package textstore implements spec.md §4.H: an append-only parallel
// array of body strings keyed by the same dense ID space as
// internal/vectorindex, with a length-prefixed binary format (spec §6).
package textstore

import (
	"encoding/binary"
	"fmt"
	"io"

	"vmemo/internal/vmemoerr"
)

// Store is the flat text array of spec §3/§4.H.
type Store struct {
	lines []string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Count returns the number of populated entries.
func (s *Store) Count() int { return len(s.lines) }

// Append adds text, returning its position (the same dense ID the
// parallel vector index assigns).
func (s *Store) Append(text string) uint64 {
	id := uint64(len(s.lines))
	s.lines = append(s.lines, text)
	return id
}

// Set replaces the body at id. Returns ErrNotFound if id is not a
// populated slot.
func (s *Store) Set(id uint64, text string) error {
	if id >= uint64(len(s.lines)) {
		return vmemoerr.ErrNotFound
	}
	s.lines[id] = text
	return nil
}

// Get returns the body at id.
func (s *Store) Get(id uint64) (string, bool) {
	if id >= uint64(len(s.lines)) {
		return "", false
	}
	return s.lines[id], true
}

// Save writes the text sidecar format of spec §6: int32 count, then per
// entry int32 length, length bytes (UTF-8, no trailing newline).
func (s *Store) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s.lines))); err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	for _, line := range s.lines {
		b := []byte(line)
		if err := binary.Write(w, binary.LittleEndian, int32(len(b))); err != nil {
			return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
	}
	return nil
}

// Load reads the text sidecar format of spec §6.
func Load(r io.Reader) (*Store, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	lines := make([]string, count)
	for i := range lines {
		var length int32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		lines[i] = string(buf)
	}
	return &Store{lines: lines}, nil
}
