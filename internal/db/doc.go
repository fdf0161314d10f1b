// Package db implements the transactional in-memory object store.
//
// # Overview
//
// Objects are typed collections of fields defined by a schema.Schema.
// Committed objects live in the Store. A Session opens an EditSet, which
// checks objects out exclusively, edits private copies and installs them
// on Commit:
//
//	sess := store.NewSession("alice", db.NewACLOracle(eval, persona), false)
//	es, _ := sess.Begin()
//	user, res := es.CreateObject(schema.TypeUser)
//	if res.Failed() {
//	    // res.Code, res.Message
//	}
//	name, _ := db.FieldAs[*db.StringField](user, "username")
//	res = name.Set("alice")
//	res = es.Commit(ctx)
//
// # Results
//
// Mutators return a *Result: nil on success, a Result with an advisory
// message when the change was made with warnings, or a failure carrying a
// ResultCode. Result.Err converts a failure into an error matching the
// Err* sentinels.
//
// # Checkpoints
//
// Every operation touching more than one value or object runs inside a
// checkpoint of its EditSet and either pops it or rolls back to it, so a
// failed call leaves fields, namespace reservations and delete locks as
// they were. Callers may take their own checkpoints with
// EditSet.Checkpoint and EditSet.Rollback.
//
// # References
//
// InvidField keeps symmetric references consistent on both sides: moving
// a reference from one target to another unbinds the old mirror and binds
// the new one in a single checkpoint. Asymmetric references put a delete
// lock on their target until commit. Edit-in-place fields own embedded
// objects created with CreateEmbedded and deleted with their container.
//
// # Passwords
//
// PasswordField stores hashes in the formats its definition requires and
// never returns them through Value. MatchPlaintext tries the strongest
// stored format first; a match in a format that covers the whole
// candidate captures the plaintext and fills in missing formats.
//
// # Persistence
//
// Records are protobuf wire format, versioned. Version 1 records remain
// readable; EncodeOptions.Legacy writes them. The Store writes through a
// storage.Backend on every commit and loads from it on Open.
package db
