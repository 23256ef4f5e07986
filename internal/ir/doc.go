// Package ir provides the value model shared by every svcstore package.
//
// Records are plain JSON-shaped maps. This package owns the helpers that
// every other layer needs to agree on: id key normalization, deep clone and
// merge, numeric coercion, and canonical JSON for signatures.
//
// ir imports nothing internal so it stays the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Records are map[string]any, values follow the encoding/json data model
//   - Map keys for ids are always the string form produced by KeyOf
//   - Canonical JSON sorts object keys by UTF-16 code units (RFC 8785)
package ir
