package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmemo/internal/arena"
)

func parse(t *testing.T, ar *arena.Arena, s string) Record {
	t.Helper()
	rec, err := ParseRecord(ar, s)
	require.NoError(t, err)
	return rec
}

func TestParseBareEquality(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "source: user")
	v, ok := rec.Get("source")
	require.True(t, ok)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "user", v.Str)
}

func TestParseInt64Value(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "priority: 3")
	v, ok := rec.Get("priority")
	require.True(t, ok)
	assert.Equal(t, KindInt64, v.Kind)
	assert.Equal(t, int64(3), v.Int)
}

func TestParseArrayValue(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "tags: [medical, allergy]")
	v, ok := rec.Get("tags")
	require.True(t, ok)
	assert.Equal(t, KindArray, v.Kind)
	assert.Equal(t, []string{"medical", "allergy"}, v.Arr)
}

func TestParseOuterBracesStripped(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "{source: user, priority: 1}")
	assert.Len(t, rec.Fields, 2)
}

func TestEvaluateGTEFilter(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "priority: 3")
	ok, err := Evaluate(ar, "priority: {$gte: 2}", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	rec2 := parse(t, ar, "priority: 1")
	ok2, err := Evaluate(ar, "priority: {$gte: 2}", rec2)
	require.NoError(t, err)
	assert.False(t, ok2)
}

func TestEvaluateContainsOnArray(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "tags: [medical, allergy]")
	ok, err := Evaluate(ar, "tags: {$contains: allergy}", rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateAndConjunctionDateRange(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "ts: 2026-01-15")
	ok, err := Evaluate(ar, "$and: [{ts: {$gte: 2026-01-01}}, {ts: {$lte: 2026-01-31}}]", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	recFeb := parse(t, ar, "ts: 2026-02-15")
	ok2, err := Evaluate(ar, "$and: [{ts: {$gte: 2026-01-01}}, {ts: {$lte: 2026-01-31}}]", recFeb)
	require.NoError(t, err)
	assert.False(t, ok2)
}

func TestEvaluateMissingFieldFailsClause(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "source: user")
	ok, err := Evaluate(ar, "priority: 1", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterMonotonicity(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "source: user, priority: 5")

	a, err := Evaluate(ar, "source: user", rec)
	require.NoError(t, err)
	ab, err := Evaluate(ar, "source: user, priority: {$gte: 10}", rec)
	require.NoError(t, err)

	// A∧B's bitmask is a subset of A's: if the conjunction passes, A must
	// also pass.
	if ab {
		assert.True(t, a)
	}
	assert.True(t, a)
	assert.False(t, ab)
}

func TestEvaluateOrPassesWhenAnyClausePasses(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "source: chat")
	ok, err := Evaluate(ar, "$or: [{source: user}, {source: chat}]", rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateUnknownOperatorFailsClause(t *testing.T) {
	ar := arena.New(1 << 16)
	rec := parse(t, ar, "priority: 3")
	ok, err := Evaluate(ar, "priority: {$bogus: 1}", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}
