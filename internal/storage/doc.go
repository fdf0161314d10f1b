// Package storage provides persistence backends for the object store.
//
// # Overview
//
// The store keeps every committed object in memory. A Backend only has to
// reload those objects at startup and write the changes of each committed
// transaction:
//
//	type Backend interface {
//	    Load(ctx context.Context, fn func(Record) error) error
//	    Apply(ctx context.Context, puts []Record, deletes []ref.Ref) error
//	    Close() error
//	}
//
// Apply is atomic: either every put and delete of a commit is durable or
// none is.
//
// # Backends
//
//   - memory: a map, for tests and throwaway stores
//   - badger: an embedded LSM key-value store, keys are the 6-byte ref
//   - sqlite: a single table keyed by (type, num), pure Go driver
//
// Open selects one by name:
//
//	b, err := storage.Open(storage.Options{Kind: "badger", Path: "/var/lib/obastore"})
package storage
