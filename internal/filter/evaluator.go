package filter

import (
	"strconv"
	"strings"

	"vmemo/internal/arena"
	"vmemo/internal/vmemoerr"
)

// Evaluate parses exprRaw as a filter expression (the same inline
// flow-style grammar as a metadata record) and evaluates its top-level
// clauses, which are implicitly ANDed, against rec (spec §4.I).
func Evaluate(ar *arena.Arena, exprRaw string, rec Record) (bool, error) {
	expr, err := ParseRecord(ar, exprRaw)
	if err != nil {
		return false, err
	}
	for _, f := range expr.Fields {
		ok, err := evalClause(ar, f.Key, f.Value, rec)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalClause(ar *arena.Arena, fk string, fv Value, rec Record) (bool, error) {
	switch fk {
	case "$and":
		if fv.Kind != KindArray {
			return false, vmemoerr.ErrFilterParse
		}
		for _, e := range splitDepth0(fv.Str, ',') {
			ok, err := Evaluate(ar, strings.TrimSpace(e), rec)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case "$or":
		if fv.Kind != KindArray {
			return false, vmemoerr.ErrFilterParse
		}
		for _, e := range splitDepth0(fv.Str, ',') {
			ok, err := Evaluate(ar, strings.TrimSpace(e), rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		fieldVal, ok := rec.Get(fk)
		if !ok {
			return false, nil
		}
		if fv.Kind == KindRawSubmap {
			return evalSubmap(ar, fv.Str, fieldVal)
		}
		return evalBareEquality(fv, fieldVal), nil
	}
}

func evalSubmap(ar *arena.Arena, raw string, fieldVal Value) (bool, error) {
	sub, err := ParseRecord(ar, raw)
	if err != nil || len(sub.Fields) == 0 {
		return false, vmemoerr.ErrFilterParse
	}
	op := sub.Fields[0].Key
	operand := sub.Fields[0].Value

	switch op {
	case "$gte":
		return compareOrdered(operand, fieldVal) >= 0, nil
	case "$lte":
		return compareOrdered(operand, fieldVal) <= 0, nil
	case "$ne":
		return !valuesEqual(operand, fieldVal), nil
	case "$prefix":
		if fieldVal.Kind != KindString {
			return false, nil
		}
		return strings.HasPrefix(fieldVal.Str, operandString(operand)), nil
	case "$contains":
		if fieldVal.Kind != KindArray {
			return false, nil
		}
		target := operandString(operand)
		for _, e := range fieldVal.Arr {
			if e == target {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil // unknown operator: clause fails
	}
}

// compareOrdered returns a negative, zero, or positive value comparing
// field against operand: integer compare when both are Int64, lexical
// compare otherwise (used for ISO-8601 dates, per spec §4.I).
func compareOrdered(operand, field Value) int {
	if operand.Kind == KindInt64 && field.Kind == KindInt64 {
		switch {
		case field.Int < operand.Int:
			return -1
		case field.Int > operand.Int:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(operandString(field), operandString(operand))
}

func valuesEqual(a, b Value) bool {
	if a.Kind == KindInt64 && b.Kind == KindInt64 {
		return a.Int == b.Int
	}
	return operandString(a) == operandString(b)
}

// evalBareEquality implements exact equality, with the implicit "contains"
// fallback for array fields (spec §4.I).
func evalBareEquality(filterVal, fieldVal Value) bool {
	if fieldVal.Kind == KindArray {
		target := operandString(filterVal)
		for _, e := range fieldVal.Arr {
			if e == target {
				return true
			}
		}
		return false
	}
	if filterVal.Kind == KindInt64 && fieldVal.Kind == KindInt64 {
		return filterVal.Int == fieldVal.Int
	}
	return operandString(filterVal) == operandString(fieldVal)
}

func operandString(v Value) string {
	if v.Kind == KindInt64 {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}
