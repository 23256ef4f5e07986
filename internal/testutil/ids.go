package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out temp ids "<prefix>-1", "<prefix>-2", ... so
// scenarios and golden files see stable identifiers.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "temp".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "temp"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
