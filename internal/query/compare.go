package query

import (
	"cmp"
	"strings"

	"github.com/roach88/svcstore/internal/ir"
)

// Type brackets in ascending sort order.
const (
	rankMissing = iota
	rankNull
	rankNumber
	rankString
	rankBool
	rankArray
	rankObject
	rankOther
)

func rank(v any, present bool) int {
	if !present {
		return rankMissing
	}
	if _, ok := ir.Number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case bool:
		return rankBool
	case []any, []string:
		return rankArray
	case map[string]any:
		return rankObject
	default:
		return rankOther
	}
}

// Compare orders two JSON values. Values of different types order by type
// bracket; within a bracket numbers compare numerically, strings
// lexically, false before true, arrays element-wise then by length, and
// objects by their sorted keys then values.
func Compare(a, b any) int {
	return compareValues(a, true, b, true)
}

func compareValues(a any, aok bool, b any, bok bool) int {
	ra, rb := rank(a, aok), rank(b, bok)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNumber:
		an, _ := ir.Number(a)
		bn, _ := ir.Number(b)
		return cmp.Compare(an, bn)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankArray:
		aa, ba := toArray(a), toArray(b)
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := Compare(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(aa), len(ba))
	case rankObject:
		am, bm := a.(map[string]any), b.(map[string]any)
		ak, bk := ir.SortedKeys(am), ir.SortedKeys(bm)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := ir.CompareKeys(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(am[ak[i]], bm[bk[i]]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ak), len(bk))
	default:
		return 0
	}
}

func toArray(v any) []any {
	switch a := v.(type) {
	case []any:
		return a
	case []string:
		return ir.StringsToAny(a)
	default:
		return nil
	}
}

// sameBracket reports whether a range operator may compare a and b. Range
// operators only match values in the same type bracket.
func sameBracket(a, b any) bool {
	ra := rank(a, true)
	return ra == rank(b, true) && ra != rankOther
}
