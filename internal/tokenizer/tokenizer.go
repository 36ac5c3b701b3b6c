// Package tokenizer implements the byte-pair vocabulary and the greedy
// scored-merge encoder described in spec.md §4.B. The vocabulary file is a
// flat sequence of (score, length, bytes) records; a lexicographic index
// over the token bytes supports binary search during both seeding and the
// merge loop.
package tokenizer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"vmemo/internal/vmemoerr"
)

// Token is one vocabulary entry: its merge score and its raw bytes.
type Token struct {
	Score float32
	Bytes []byte
}

// Vocab is the loaded tokenizer: the token table plus a lexicographic
// index over token bytes for binary search.
type Vocab struct {
	MaxTokenLength int32
	Tokens         []Token
	sortedByBytes  []int32 // token ids, sorted lexicographically by Bytes
	byteToID       [256]int32
	hasByte        [256]bool
}

// Load reads the tokenizer file format from r: int32 max_token_length,
// then V records of (float32 score, int32 length, bytes[length]). V is
// not stored explicitly in the file; Load reads records until EOF.
func Load(r io.Reader) (*Vocab, error) {
	var maxLen int32
	if err := binary.Read(r, binary.LittleEndian, &maxLen); err != nil {
		return nil, fmt.Errorf("%w: reading max_token_length: %v", vmemoerr.ErrInvalidTokenizer, err)
	}

	v := &Vocab{MaxTokenLength: maxLen}

	for {
		var score float32
		if err := binary.Read(r, binary.LittleEndian, &score); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: reading score: %v", vmemoerr.ErrInvalidTokenizer, err)
		}
		var length int32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: truncated length field: %v", vmemoerr.ErrInvalidTokenizer, err)
		}
		if length < 0 {
			return nil, fmt.Errorf("%w: negative token length %d", vmemoerr.ErrInvalidTokenizer, length)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated token bytes: %v", vmemoerr.ErrInvalidTokenizer, err)
		}
		v.Tokens = append(v.Tokens, Token{Score: score, Bytes: buf})
	}

	v.buildIndex()
	return v, nil
}

func (v *Vocab) buildIndex() {
	v.sortedByBytes = make([]int32, len(v.Tokens))
	for i := range v.Tokens {
		v.sortedByBytes[i] = int32(i)
	}
	sort.Slice(v.sortedByBytes, func(i, j int) bool {
		return bytes.Compare(v.Tokens[v.sortedByBytes[i]].Bytes, v.Tokens[v.sortedByBytes[j]].Bytes) < 0
	})

	for id, tok := range v.Tokens {
		if len(tok.Bytes) == 1 {
			b := tok.Bytes[0]
			v.byteToID[b] = int32(id)
			v.hasByte[b] = true
		}
	}
}

// Lookup binary-searches the vocabulary for an exact byte-string match,
// returning its id and whether it was found.
func (v *Vocab) Lookup(s []byte) (id int32, found bool) {
	n := len(v.sortedByBytes)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(v.Tokens[v.sortedByBytes[i]].Bytes, s) >= 0
	})
	if i < n && bytes.Equal(v.Tokens[v.sortedByBytes[i]].Bytes, s) {
		return v.sortedByBytes[i], true
	}
	return 0, false
}

// Decode returns the raw vocabulary bytes for a token id. Spacing
// convention during detokenization is explicitly the caller's concern
// (spec §4.B); Decode performs no SentencePiece-style leading-space
// handling.
func (v *Vocab) Decode(id int32) []byte {
	if id < 0 || int(id) >= len(v.Tokens) {
		return nil
	}
	return v.Tokens[id].Bytes
}

// Encode tokenizes s via the seed-then-merge loop of spec §4.B: each
// input byte maps to its one-character vocabulary entry (bytes without
// an entry are discarded), then adjacent pairs are repeatedly merged,
// always choosing the highest-scoring merge available, until no
// adjacent pair has a vocabulary entry.
func (v *Vocab) Encode(s []byte) []int32 {
	ids := make([]int32, 0, len(s))
	for _, b := range s {
		if v.hasByte[b] {
			ids = append(ids, v.byteToID[b])
		}
	}

	for {
		bestIdx := -1
		var bestID int32
		var bestScore float32
		for i := 0; i+1 < len(ids); i++ {
			merged := append(append([]byte{}, v.Tokens[ids[i]].Bytes...), v.Tokens[ids[i+1]].Bytes...)
			id, found := v.Lookup(merged)
			if !found {
				continue
			}
			score := v.Tokens[id].Score
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestID = id
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		ids[bestIdx] = bestID
		ids = append(ids[:bestIdx+1], ids[bestIdx+2:]...)
	}

	return ids
}
