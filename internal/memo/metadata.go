package memo

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMetadata flattens a YAML-decoded map (spec §1.3: "-m <yaml> is
// parsed... into a map[string]any, rendered into the flow-style metadata
// line the metadata store persists") into the inline flow-style string
// internal/filter parses. Keys are sorted for a deterministic rendering;
// YAML itself doesn't guarantee map ordering.
func RenderMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+renderValue(meta[k]))
	}
	return strings.Join(parts, ", ")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		// yaml.v3 keeps a bare ISO-8601 date scalar (e.g. "ts: 2026-01-15")
		// as a string when decoding into map[string]any, so the string case
		// above handles -m input. A time.Time placed in the map directly is
		// rendered in the same flow-style form instead of Go's default
		// time.Time string (spec §4.I scenario 5's $gte/$lte date-range
		// filters are lexicographic ISO-8601 compares).
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case map[string]any:
		return "{" + RenderMetadata(t) + "}"
	case []any:
		elems := make([]string, len(t))
		for i, e := range t {
			elems[i] = renderValue(e)
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprintf("%v", t)
	}
}
