package testutil

import "github.com/roach88/svcstore/internal/ir"

var ordinals = []string{
	"first", "second", "third", "fourth", "fifth",
	"sixth", "seventh", "eighth", "ninth", "tenth",
}

// Todos returns ten fresh todo records with ids 0..9 and descriptions
// "Do the first" through "Do the tenth", none complete.
func Todos() []ir.Record {
	out := make([]ir.Record, len(ordinals))
	for i, o := range ordinals {
		out[i] = ir.Record{
			"id":          i,
			"description": "Do the " + o,
			"isComplete":  false,
		}
	}
	return out
}

// TodosWithIDField is Todos keyed by a non-default id field, as served by
// APIs that use "_id".
func TodosWithIDField(field string) []ir.Record {
	out := Todos()
	for _, r := range out {
		r[field] = r["id"]
		delete(r, "id")
	}
	return out
}
