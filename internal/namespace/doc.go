// Package namespace provides the uniqueness registry for the object store.
//
// # Overview
//
// A namespace is a uniqueness domain shared by one or more fields. A value
// reserved in a namespace is held by exactly one field (identified by the
// owning object's Ref and the field code) across the whole store.
//
// # Transactions
//
// Reservations are made on behalf of a transaction:
//
//	ns := registry.Define("usernames", true)
//
//	// Reserve a value for a field in transaction tx
//	if err := ns.Mark(tx, "alice", holder); err != nil {
//	    // errors.Is(err, namespace.ErrConflict)
//	}
//
//	// Release the value the field held before
//	ns.Unmark(tx, "bob", holder)
//
// Marks and unmarks are provisional until the transaction commits:
//
//	registry.Commit(tx) // reservations become permanent
//	registry.Abort(tx)  // reservations are discarded
//
// While a transaction holds any provisional state on a value, no other
// transaction may claim it, even if the first transaction released it.
//
// # Checkpoints
//
// Checkpoints capture the provisional state of one transaction so a
// multi-step edit can be undone:
//
//	registry.Checkpoint(tx, "bind")
//	...
//	registry.Rollback(tx, "bind")      // restore
//	registry.PopCheckpoint(tx, "bind") // or keep changes
//
// # Locking
//
// Each namespace carries its own mutex. MarkAll reserves a batch of values
// under a single lock acquisition so the batch is atomic relative to other
// transactions probing the same namespace.
package namespace
