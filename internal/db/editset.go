package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

// EditSet is a transaction: the objects a session has checked out,
// created or marked for deletion, with nested keyed checkpoints.
type EditSet struct {
	id    string
	store *Store
	sess  *Session
	log   logging.Logger
	seq   atomic.Uint64

	mu          sync.Mutex
	objects     map[ref.Ref]*Object
	order       []ref.Ref
	created     map[ref.Ref]struct{}
	deleteLocks map[ref.Ref]struct{}
	checkpoints []*checkpoint
	held        map[string]chan struct{}
	captures    map[ref.Ref]map[uint16]capture
	closed      bool
}

// capture is a password captured on the committed object while the
// transaction had it checked out. It is merged at commit when the
// transaction left that password alone.
type capture struct {
	before passwordState
	after  passwordState
}

// checkpoint is the saved state of an EditSet.
type checkpoint struct {
	key         string
	states      map[ref.Ref]objectState
	deleteLocks map[ref.Ref]struct{}
}

type objectState struct {
	status Status
	fields map[uint16]Snapshot
}

func newEditSet(sess *Session) *EditSet {
	id := logging.NewTxID()
	return &EditSet{
		id:          id,
		store:       sess.store,
		sess:        sess,
		log:         sess.log.WithTx(id),
		objects:     make(map[ref.Ref]*Object),
		created:     make(map[ref.Ref]struct{}),
		deleteLocks: make(map[ref.Ref]struct{}),
		held:        make(map[string]chan struct{}),
	}
}

// ID returns the transaction id.
func (es *EditSet) ID() string { return es.id }

// Session returns the owning session.
func (es *EditSet) Session() *Session { return es.sess }

func (es *EditSet) isClosed() bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.closed
}

func (es *EditSet) object(r ref.Ref) *Object {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.objects[r]
}

// Objects returns every object touched by the transaction in order.
func (es *EditSet) Objects() []*Object {
	es.mu.Lock()
	defer es.mu.Unlock()
	list := make([]*Object, 0, len(es.order))
	for _, r := range es.order {
		list = append(list, es.objects[r])
	}
	return list
}

// Checkpoint saves the state of every checked-out object, the delete
// locks and the transaction's namespace reservations under key. It blocks
// while another caller holds a checkpoint with the same key.
func (es *EditSet) Checkpoint(key string) *Result {
	for {
		es.mu.Lock()
		if es.closed {
			es.mu.Unlock()
			return fail(TransactionClosed, "transaction %s is closed", es.id)
		}
		wait, busy := es.held[key]
		if !busy {
			break
		}
		es.mu.Unlock()
		<-wait
	}
	defer es.mu.Unlock()

	cp := &checkpoint{
		key:         key,
		states:      make(map[ref.Ref]objectState, len(es.objects)),
		deleteLocks: make(map[ref.Ref]struct{}, len(es.deleteLocks)),
	}
	for r, obj := range es.objects {
		st := objectState{status: obj.Status(), fields: make(map[uint16]Snapshot, len(obj.fields))}
		for code, f := range obj.fields {
			st.fields[code] = f.Checkpoint()
		}
		cp.states[r] = st
	}
	for r := range es.deleteLocks {
		cp.deleteLocks[r] = struct{}{}
	}
	es.checkpoints = append(es.checkpoints, cp)
	es.held[key] = make(chan struct{})
	es.store.namespaces.Checkpoint(es.id, key)
	return nil
}

func (es *EditSet) findLocked(key string) int {
	for i := len(es.checkpoints) - 1; i >= 0; i-- {
		if es.checkpoints[i].key == key {
			return i
		}
	}
	return -1
}

func (es *EditSet) releaseKeyLocked(key string) {
	if ch, ok := es.held[key]; ok {
		close(ch)
		delete(es.held, key)
	}
}

// PopCheckpoint discards the checkpoint saved under key.
func (es *EditSet) PopCheckpoint(key string) *Result {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return fail(TransactionClosed, "transaction %s is closed", es.id)
	}
	i := es.findLocked(key)
	if i < 0 {
		return fail(NotFound, "no checkpoint %q", key)
	}
	es.checkpoints = append(es.checkpoints[:i:i], es.checkpoints[i+1:]...)
	es.releaseKeyLocked(key)
	es.store.namespaces.PopCheckpoint(es.id, key)
	return nil
}

// Rollback restores the state saved under key and discards that
// checkpoint and every later one. Objects checked out or created since
// are released.
func (es *EditSet) Rollback(key string) *Result {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return fail(TransactionClosed, "transaction %s is closed", es.id)
	}
	i := es.findLocked(key)
	if i < 0 {
		return fail(NotFound, "no checkpoint %q", key)
	}
	cp := es.checkpoints[i]
	for _, later := range es.checkpoints[i:] {
		es.releaseKeyLocked(later.key)
	}
	es.checkpoints = es.checkpoints[:i]

	kept := es.order[:0]
	for _, r := range es.order {
		obj := es.objects[r]
		st, ok := cp.states[r]
		if !ok {
			delete(es.objects, r)
			delete(es.created, r)
			es.store.release(r, es)
			continue
		}
		for code, snap := range st.fields {
			obj.fields[code].Restore(snap)
		}
		obj.setStatus(st.status)
		if st.status != StatusDeleting {
			es.store.clearDeleting(r, es)
		}
		kept = append(kept, r)
	}
	es.order = kept

	for r := range es.deleteLocks {
		if _, ok := cp.deleteLocks[r]; !ok {
			delete(es.deleteLocks, r)
			es.store.dropDeleteLock(r, es)
		}
	}

	es.store.namespaces.Rollback(es.id, key)
	es.log.Debug("rolled back checkpoint", "key", key)
	return nil
}

// guard runs fn inside a fresh checkpoint, rolling back if fn fails or
// panics.
func (es *EditSet) guard(label string, fn func() *Result) (res *Result) {
	key := fmt.Sprintf("%s #%d", label, es.seq.Add(1))
	if r := es.Checkpoint(key); r != nil {
		return r
	}
	defer func() {
		if p := recover(); p != nil {
			es.settle(label, "rollback", es.Rollback(key))
			panic(p)
		}
		if res.Failed() {
			es.settle(label, "rollback", es.Rollback(key))
		} else {
			es.settle(label, "pop checkpoint", es.PopCheckpoint(key))
		}
	}()
	return fn()
}

func (es *EditSet) settle(label, step string, r *Result) {
	if r.Failed() {
		es.log.Warn("checkpoint cleanup failed", "operation", label, "step", step, "error", r.String())
	}
}

// noteCapture records a capture for r. It reports false once the
// transaction is closed.
func (es *EditSet) noteCapture(r ref.Ref, code uint16, c capture) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.closed {
		return false
	}
	if es.captures == nil {
		es.captures = make(map[ref.Ref]map[uint16]capture)
	}
	if es.captures[r] == nil {
		es.captures[r] = make(map[uint16]capture)
	}
	es.captures[r][code] = c
	return true
}

// mergeCapturesLocked carries captured passwords into the edited copies
// whose password still matches the state the capture started from.
func (es *EditSet) mergeCapturesLocked() {
	for r, fields := range es.captures {
		obj := es.objects[r]
		if obj == nil || obj.Status() == StatusDeleting {
			continue
		}
		for code, c := range fields {
			pf, ok := obj.fields[code].(*PasswordField)
			if !ok || !pf.replaceIf(c.before, c.after) {
				continue
			}
			es.log.Debug("merged captured password", "object", obj.String(), "field", pf.Name())
		}
	}
	es.captures = nil
}

// checkout returns the edit set's copy of r, checking it out from the
// store if needed. No permission check is made.
func (es *EditSet) checkout(r ref.Ref) (*Object, *Result) {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return nil, fail(TransactionClosed, "transaction %s is closed", es.id)
	}
	if obj, ok := es.objects[r]; ok {
		return obj, nil
	}
	committed, res := es.store.checkOut(r, es)
	if res != nil {
		return nil, res
	}
	obj := committed.copyFor(StatusEditing, es, nil)
	es.objects[r] = obj
	es.order = append(es.order, r)
	return obj, nil
}

// EditObject checks r out for editing.
func (es *EditSet) EditObject(r ref.Ref) (*Object, *Result) {
	es.mu.Lock()
	_, had := es.objects[r]
	es.mu.Unlock()

	obj, res := es.checkout(r)
	if res != nil {
		return nil, res
	}
	if obj.Status() == StatusDeleting {
		return nil, fail(TargetDeleted, "%s is being deleted", obj)
	}
	if !obj.oracle().CanWrite(obj, schema.ObjectField) {
		if !had {
			es.forget(r)
		}
		return nil, fail(PermissionDenied, "no permission to edit %s", obj)
	}
	return obj, nil
}

func (es *EditSet) forget(r ref.Ref) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.objects, r)
	for i, x := range es.order {
		if x == r {
			es.order = append(es.order[:i:i], es.order[i+1:]...)
			break
		}
	}
	es.store.release(r, es)
}

func (es *EditSet) newObject(ot *schema.ObjectType) *Object {
	r := es.store.allocate(ot.ID)
	obj := newObject(es.store, r, ot, StatusCreated)
	obj.editSet = es
	es.store.reserve(r, es)

	es.mu.Lock()
	es.objects[r] = obj
	es.order = append(es.order, r)
	es.created[r] = struct{}{}
	es.mu.Unlock()
	return obj
}

// CreateObject creates a top-level object of the given type and runs the
// type's InitializeNewObject hook. Embedded objects are created through
// InvidField.CreateEmbedded.
func (es *EditSet) CreateObject(typeID uint16) (*Object, *Result) {
	if es.isClosed() {
		return nil, fail(TransactionClosed, "transaction %s is closed", es.id)
	}
	ot := es.store.schema.ObjectType(typeID)
	if ot == nil {
		return nil, fail(InvalidValue, "unknown object type %d", typeID)
	}
	if ot.Embedded {
		return nil, fail(InvalidValue, "%s objects are embedded and must be created by their container", ot.Name)
	}

	var obj *Object
	res := es.guard("create "+ot.Name, func() *Result {
		obj = es.newObject(ot)
		if !obj.oracle().CanWrite(obj, schema.ObjectField) {
			return fail(PermissionDenied, "no permission to create %s objects", ot.Name)
		}
		return obj.hooks().InitializeNewObject(obj)
	})
	if res.Failed() {
		return nil, res
	}
	es.log.Debug("object created", "object", obj.String())
	return obj, res
}

// DeleteObject marks r for deletion. Symmetric references are unbound,
// embedded objects are deleted with their container and asymmetric
// references held by other objects are removed.
func (es *EditSet) DeleteObject(r ref.Ref) *Result {
	return es.guard("delete "+r.String(), func() *Result {
		return es.deleteObject(r, true)
	})
}

func (es *EditSet) deleteObject(r ref.Ref, checkPerm bool) *Result {
	obj, res := es.checkout(r)
	if res != nil {
		return res
	}
	if obj.Status() == StatusDeleting {
		return nil
	}
	obj.setStatus(StatusDeleting)
	if checkPerm && !obj.oracle().CanWrite(obj, schema.ObjectField) {
		return fail(PermissionDenied, "no permission to delete %s", obj)
	}
	if res := es.store.markDeleting(r, es); res != nil {
		return res
	}
	if res := obj.hooks().RemoveObject(obj); res.Failed() {
		return &Result{Code: VetoedByPlugin, Message: res.Message, Cause: res.Err()}
	}

	if c, ok := obj.Container(); ok {
		if res := es.detachFromContainer(c, r); res != nil {
			return res
		}
	}

	for _, f := range obj.Fields() {
		if inv, ok := f.(*InvidField); ok {
			if res := inv.unbindAll(); res.Failed() {
				return res
			}
			continue
		}
		for _, v := range f.nsValues() {
			f.base().unmark(v)
		}
	}

	return es.dropAsymmetricSources(r)
}

func (es *EditSet) detachFromContainer(c, child ref.Ref) *Result {
	container, res := es.checkout(c)
	if res != nil {
		if res.Code == NotFound {
			return nil
		}
		return res
	}
	if container.Status() == StatusDeleting {
		return nil
	}
	for _, f := range container.fields {
		if inv, ok := f.(*InvidField); ok && inv.def.EditInPlace {
			inv.remove(child)
		}
	}
	return nil
}

// dropAsymmetricSources removes asymmetric references to r held by other
// objects, committed or edited in this transaction.
func (es *EditSet) dropAsymmetricSources(r ref.Ref) *Result {
	sources := es.store.BackPointers(r)
	for _, obj := range es.Objects() {
		for _, t := range asymmetricTargets(obj) {
			if t == r {
				sources = append(sources, obj.ref)
			}
		}
	}

	for _, src := range sources {
		if src == r {
			continue
		}
		obj, res := es.checkout(src)
		if res != nil {
			if res.Code == NotFound {
				continue
			}
			return res
		}
		if obj.Status() == StatusDeleting {
			continue
		}
		for _, f := range obj.fields {
			if inv, ok := f.(*InvidField); ok && inv.def.IsAsymmetric() {
				if res := inv.Dissolve(r); res.Failed() {
					return res
				}
			}
		}
	}
	return nil
}

func (es *EditSet) lockTarget(r ref.Ref) *Result {
	if obj := es.object(r); obj != nil {
		if obj.Status() == StatusDeleting {
			return fail(TargetDeleted, "%s is being deleted", obj)
		}
		es.mu.Lock()
		_, isNew := es.created[r]
		es.mu.Unlock()
		if isNew {
			return nil
		}
	}
	if res := es.store.addDeleteLock(r, es); res != nil {
		return res
	}
	es.mu.Lock()
	es.deleteLocks[r] = struct{}{}
	es.mu.Unlock()
	return nil
}

// Commit persists every change through the storage backend and installs
// the edited objects in the store. A failed commit leaves the transaction
// open so the caller may retry or abort.
func (es *EditSet) Commit(ctx context.Context) *Result {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return fail(TransactionClosed, "transaction %s is closed", es.id)
	}

	es.mergeCapturesLocked()

	objs := make([]*Object, 0, len(es.order))
	var puts []storage.Record
	var deletes []ref.Ref
	for _, r := range es.order {
		obj := es.objects[r]
		objs = append(objs, obj)
		_, isNew := es.created[r]
		if obj.Status() == StatusDeleting {
			if !isNew {
				deletes = append(deletes, r)
			}
			continue
		}
		data, err := encodeObject(obj, EncodeOptions{})
		if err != nil {
			return failCause(PersistenceFailed, err, "encoding %s", obj)
		}
		puts = append(puts, storage.Record{Ref: r, Data: data})
	}

	es.store.persistMu.Lock()
	if err := es.store.backend.Apply(ctx, puts, deletes); err != nil {
		es.store.persistMu.Unlock()
		es.log.Error("commit failed", "error", err)
		return failCause(PersistenceFailed, err, "writing transaction %s", es.id)
	}

	es.store.namespaces.Commit(es.id)
	es.store.install(es, objs, es.created, es.deleteLocks)
	es.store.persistMu.Unlock()
	es.closeLocked()
	es.log.Info("transaction committed", "written", len(puts), "deleted", len(deletes))
	return nil
}

// Abort discards every change. Aborting a closed transaction does nothing.
func (es *EditSet) Abort() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return
	}
	es.store.namespaces.Abort(es.id)
	es.store.releaseAll(es, es.order, es.deleteLocks)
	es.closeLocked()
	es.log.Info("transaction aborted", "objects", len(es.order))
}

func (es *EditSet) closeLocked() {
	es.closed = true
	for key := range es.held {
		es.releaseKeyLocked(key)
	}
	es.checkpoints = nil
}
