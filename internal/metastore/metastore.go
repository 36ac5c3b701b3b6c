// Package metastore implements spec.md §4.I/§3's MetaStore: a per-record
// inline flow-style string, advanced in lockstep with the vector index,
// plus the bitmask producer the search path consumes as a pre-filter.
// Parsing and evaluation are delegated to internal/filter.
package metastore

import (
	"encoding/binary"
	"fmt"
	"io"

	"vmemo/internal/arena"
	"vmemo/internal/filter"
	"vmemo/internal/vmemoerr"
)

// Store is the flat metadata array of spec §3. A missing-metadata slot
// (empty string) is distinct from a present-but-empty one and never
// matches any filter.
type Store struct {
	raw []string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Count returns the number of populated entries.
func (s *Store) Count() int { return len(s.raw) }

// Append adds a raw flow-style string (possibly empty, meaning "no
// metadata"), returning its position.
func (s *Store) Append(raw string) uint64 {
	id := uint64(len(s.raw))
	s.raw = append(s.raw, raw)
	return id
}

// RawAt returns the unparsed flow-style string stored at id, for callers
// (such as the analyze subcommand and Recall's result joins) that just
// need to display or re-parse it without going through Filter.
func (s *Store) RawAt(id uint64) (string, bool) {
	if id >= uint64(len(s.raw)) {
		return "", false
	}
	return s.raw[id], true
}

// Record parses and returns the record at id.
func (s *Store) Record(ar *arena.Arena, id uint64) (filter.Record, error) {
	if id >= uint64(len(s.raw)) {
		return filter.Record{}, vmemoerr.ErrNotFound
	}
	if s.raw[id] == "" {
		return filter.Record{}, nil
	}
	return filter.ParseRecord(ar, s.raw[id])
}

// Filter evaluates expr against every record, returning a bitmask the
// same length as Count(). Producing it is O(N) in records, independent
// of vector dimension (spec §4.I). Parsing is done per record against
// ar's scratch region, and the arena's high-water mark is snapshotted
// before the pass and restored after, per spec §5's filter-engine scratch
// lifetime rule.
func (s *Store) Filter(ar *arena.Arena, expr string) ([]bool, error) {
	snapshot := ar.Snapshot()
	defer ar.Restore(snapshot)

	mask := make([]bool, len(s.raw))
	for i, raw := range s.raw {
		if raw == "" {
			// Deliberate design rule (spec §4.I): records saved without
			// metadata never pass any filter.
			continue
		}
		rec, err := filter.ParseRecord(ar, raw)
		if err != nil {
			continue // malformed per-record metadata just fails to match
		}
		ok, err := filter.Evaluate(ar, expr, rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrFilterParse, err)
		}
		mask[i] = ok
	}
	return mask, nil
}

// Save writes the metadata sidecar format of spec §6: int32 count, then
// per entry int32 length (0 permitted), length bytes.
func (s *Store) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s.raw))); err != nil {
		return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	for _, r := range s.raw {
		b := []byte(r)
		if err := binary.Write(w, binary.LittleEndian, int32(len(b))); err != nil {
			return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		if len(b) > 0 {
			if _, err := w.Write(b); err != nil {
				return fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
			}
		}
	}
	return nil
}

// Load reads the metadata sidecar format of spec §6.
func Load(r io.Reader) (*Store, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
	}
	raw := make([]string, count)
	for i := range raw {
		var length int32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		if length == 0 {
			continue
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", vmemoerr.ErrIoError, err)
		}
		raw[i] = string(buf)
	}
	return &Store{raw: raw}, nil
}
