package filter

import (
	"strconv"
	"strings"
	"unicode"
	"unsafe"

	"vmemo/internal/arena"
	"vmemo/internal/vmemoerr"
)

// ParseRecord parses one inline flow-style metadata line (spec §4.I) into
// a Record. Every extracted token is copied into ar so the parse tree
// never aliases the caller's raw string. This is the scratch allocation
// spec §5 requires the filter engine to roll back via Snapshot/Restore
// after each pass.
func ParseRecord(ar *arena.Arena, raw string) (Record, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Record{}, nil
	}
	if s[0] == '{' {
		end := strings.LastIndexByte(s, '}')
		if end == -1 {
			return Record{}, vmemoerr.ErrFilterParse
		}
		s = strings.TrimSpace(s[1:end])
	}
	if s == "" {
		return Record{}, nil
	}

	items := splitDepth0(s, ',')
	rec := Record{Fields: make([]Field, 0, len(items))}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ci := indexDepth0(item, ':')
		if ci == -1 {
			return Record{}, vmemoerr.ErrFilterParse
		}
		keyText := strings.TrimSpace(item[:ci])
		valText := strings.TrimSpace(item[ci+1:])
		if keyText == "" {
			return Record{}, vmemoerr.ErrFilterParse
		}
		val, err := parseValue(ar, valText)
		if err != nil {
			return Record{}, err
		}
		rec.Fields = append(rec.Fields, Field{Key: arenaString(ar, keyText), Value: val})
	}
	return rec, nil
}

func parseValue(ar *arena.Arena, text string) (Value, error) {
	if text == "" {
		return Value{Kind: KindString, Str: ""}, nil
	}
	switch text[0] {
	case '{':
		if text[len(text)-1] != '}' {
			return Value{}, vmemoerr.ErrFilterParse
		}
		return Value{Kind: KindRawSubmap, Str: arenaString(ar, text)}, nil
	case '[':
		if text[len(text)-1] != ']' {
			return Value{}, vmemoerr.ErrFilterParse
		}
		inner := strings.TrimSpace(text[1 : len(text)-1])
		var elems []string
		if inner != "" {
			for _, e := range splitDepth0(inner, ',') {
				elems = append(elems, arenaString(ar, strings.TrimSpace(e)))
			}
		}
		return Value{Kind: KindArray, Str: arenaString(ar, inner), Arr: elems}, nil
	default:
		if isBareInt(text) {
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Value{}, vmemoerr.ErrFilterParse
			}
			return Value{Kind: KindInt64, Int: n, Str: arenaString(ar, text)}, nil
		}
		return Value{Kind: KindString, Str: arenaString(ar, text)}, nil
	}
}

func isBareInt(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if !unicode.IsDigit(rune(s[i])) {
			return false
		}
	}
	return true
}

// splitDepth0 splits s on sep, only at bracket/brace depth 0.
func splitDepth0(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// indexDepth0 finds the first occurrence of sep at bracket/brace depth 0,
// or -1 if none exists.
func indexDepth0(s string, sep byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				return i
			}
		}
	}
	return -1
}

// arenaString copies s's bytes into ar and returns a string view over
// that arena-owned memory.
func arenaString(ar *arena.Arena, s string) string {
	if s == "" {
		return ""
	}
	buf := ar.Push(len(s))
	copy(buf, s)
	return unsafe.String(&buf[0], len(buf))
}
