package queryir

import (
	"fmt"
)

// ValidationResult contains portability analysis of a predicate.
//
// A portable predicate can be compiled to SQL by querysql. Predicates
// outside the portable fragment still evaluate correctly in memory; the
// reference service falls back to in-memory filtering for them.
type ValidationResult struct {
	// IsPortable indicates the predicate compiles to SQL.
	IsPortable bool

	// Warnings lists non-portable features used in the predicate.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks whether a predicate stays inside the SQL-portable
// fragment.
//
// Portable fragment rules:
//  1. No Custom operators - their implementation lives in Go code
//  2. No nested $elemMatch - element scopes do not nest in json_each
//  3. No $all with operator documents as elements
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validatePredicate(p, 0)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validatePredicate recursively validates a predicate node. depth counts
// enclosing $elemMatch scopes.
func (v *validator) validatePredicate(p Predicate, depth int) {
	if p == nil {
		return // nil predicates match everything
	}

	switch pred := p.(type) {
	case *Compare, *In, *Exists, *Regex, *Size:
		// Portable leaves
	case *All:
		for _, val := range pred.Values {
			if _, isOps := isOperatorDoc(val); isOps {
				v.addWarning("Field '%s' uses $all with operator documents", pred.Path)
				break
			}
		}
	case *ElemMatch:
		if depth > 0 {
			v.addWarning("Field '%s' nests $elemMatch inside $elemMatch", pred.Path)
		}
		v.validatePredicate(pred.Filter, depth+1)
	case *Not:
		v.validatePredicate(pred.Predicate, depth)
	case *And:
		v.validateAll(pred.Predicates, depth)
	case *Or:
		v.validateAll(pred.Predicates, depth)
	case *Nor:
		v.validateAll(pred.Predicates, depth)
	case *Custom:
		v.addWarning("Field '%s' uses custom operator %s", pred.Path, pred.Name)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateAll(preds []Predicate, depth int) {
	for _, sub := range preds {
		v.validatePredicate(sub, depth)
	}
}
