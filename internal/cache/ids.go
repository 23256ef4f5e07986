package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TempIDGenerator assigns temporary ids to records created locally.
type TempIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 temp ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so temp ids sort
// by creation time, which keeps debugging output readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined temp ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches a test creating more
// temp records than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Clock supplies the queriedAt timestamps of the pagination ledger.
type Clock interface {
	NowMillis() int64
}

// WallClock reads the system clock.
type WallClock struct{}

// NowMillis returns the current Unix time in milliseconds.
func (WallClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}
