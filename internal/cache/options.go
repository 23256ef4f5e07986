package cache

import (
	"log/slog"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/query"
)

// Options is the per-collection configuration surface.
type Options struct {
	// ServicePath names the remote service. Required.
	ServicePath string

	// IDField holds a record's real id. Default "id".
	IDField string

	// TempIDField holds a record's temp id. Default "__id".
	TempIDField string

	// ReplaceItems makes UpdateItems replace cached records wholesale
	// instead of deep-merging into them.
	ReplaceItems bool

	// AddOnUpsert makes UpdateItems insert records it has not cached.
	AddOnUpsert bool

	// AutoRemove drops cached records missing from an unpaginated find
	// response.
	AutoRemove bool

	// KeepCopiesInStore keeps copies inside the collection instead of the
	// registry.
	KeepCopiesInStore bool

	// ParamsForServer lists query keys sent to the server but ignored by
	// local finds.
	ParamsForServer []string

	// Whitelist lists query operators accepted beyond the built-in set.
	Whitelist []string

	// Operators implements custom operators named in Whitelist.
	Operators map[string]query.OperatorFunc

	// SkipRequestIfExists makes get return a cached record without a
	// remote call.
	SkipRequestIfExists bool

	// Model selects the model-wrapped variant. Nil means plain data.
	Model *Model
}

// Model describes the model-wrapped record variant of a collection.
type Model struct {
	// Name labels the model in logs.
	Name string

	// Defaults are merged under every record inserted into the collection.
	Defaults ir.Record

	// Setup runs on every record after defaults are applied and may
	// return a replacement record.
	Setup func(ir.Record) ir.Record
}

func (o Options) withDefaults() Options {
	if o.IDField == "" {
		o.IDField = ir.DefaultIDField
	}
	if o.TempIDField == "" {
		o.TempIDField = ir.DefaultTempIDField
	}
	return o
}

// Option configures a Collection.
type Option func(*Collection)

// WithRegistry shares a registry between the collections of one store.
func WithRegistry(r *Registry) Option {
	return func(c *Collection) {
		c.registry = r
	}
}

// WithClock sets the clock used for pagination timestamps.
func WithClock(clock Clock) Option {
	return func(c *Collection) {
		c.clock = clock
	}
}

// WithTempIDs sets the temp id generator.
func WithTempIDs(g TempIDGenerator) Option {
	return func(c *Collection) {
		c.tempIDs = g
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) {
		c.log = l
	}
}
