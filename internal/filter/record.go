// Package filter implements spec.md §4.I: the inline flow-style metadata
// parser, the small operator algebra, and the per-record evaluator that
// produces the bitmask the search path uses as a pre-filter. The scanning
// style (delimiter/boundary checks, no parser generator) is grounded on
// the teacher's pkg/cypher/helpers.go hand-rolled rune scanning.
package filter

// ValueKind tags the strongly-typed sum variant spec.md §3/§9 calls for
// in place of the source's untagged field union.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt64
	KindArray
	KindRawSubmap
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindArray:
		return "array"
	case KindRawSubmap:
		return "submap"
	default:
		return "unknown"
	}
}

// Value is one field's parsed value.
type Value struct {
	Kind ValueKind
	Str  string   // String text; RawSubmap verbatim text (including braces); Array's raw inner text
	Int  int64    // populated when Kind == KindInt64
	Arr  []string // populated when Kind == KindArray, bare-token elements trimmed
}

// Field is one (key, value) pair of a parsed record.
type Field struct {
	Key   string
	Value Value
}

// Record is the parsed form of one metadata entry: an ordered sequence
// of fields (spec §3's MetaRecord).
type Record struct {
	Fields []Field
}

// Get returns the first field matching key, in declaration order.
func (r Record) Get(key string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}
