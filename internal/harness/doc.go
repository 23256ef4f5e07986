// Package harness runs YAML scenarios against a client collection and
// snapshots its final state.
//
// # Scenario Format
//
//	name: promote_temp
//	description: "A temp record is promoted once the server assigns an id"
//	collection:
//	  name: todos
//	  addOnUpsert: true
//	steps:
//	  - op: add
//	    records: [{description: "Write docs"}]
//	  - op: update_temp
//	    id: 7
//	    temp_id: temp-1
//	  - op: find
//	    query: {description: "Write docs"}
//	    expect: {total: 1, ids: [7]}
//	expect:
//	  - type: no_record
//	    id: temp-1
//
// The collection block takes the same keys as a service entry of the
// configuration file.
//
// # Steps
//
//   - add: AddItems(records)
//   - update: UpdateItems(records)
//   - update_temp: UpdateTemp(id, temp_id)
//   - remove: RemoveItem(id)
//   - clear: ClearAll()
//   - create_copy: CreateCopy(id), then set fields on the copy
//   - commit_copy, reset_copy, clear_copy: the copy operation for id
//   - paginate: UpdatePaginationForQuery(qid, page, query)
//   - find: Find(query, temps, copies) with an optional inline expect
//
// A step may name the error it must fail with in error; the step passes
// when the returned error contains that text.
//
// # Expectations
//
//   - find: total and ids of a Find
//   - record: the record stored under id, subset match
//   - no_record: nothing stored under id
//   - copy_equals_record: the copy of id has the same fields as its source
//   - temps: the number of temp records
//
// Every run uses sequential temp ids ("temp-1", "temp-2", ...) and a
// deterministic clock, so the final state snapshot is stable and can be
// compared with a golden file.
package harness
