package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/namespace"
	"github.com/KilimcininKorOglu/obastore/internal/password"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
	"github.com/KilimcininKorOglu/obastore/internal/storage"
)

// Store errors.
var (
	ErrNoSchema    = errors.New("db: no schema")
	ErrStoreClosed = errors.New("db: store closed")
)

// Options configures a Store.
type Options struct {
	Schema *schema.Schema

	// Backend persists committed objects. Defaults to an empty memory
	// backend.
	Backend storage.Backend

	Logger logging.Logger

	// Passwords supplies policies and the hasher. Defaults to
	// password.NewManager(nil, nil).
	Passwords *password.Manager

	// Hooks maps object type ids to their plugins.
	Hooks map[uint16]Hooks

	// Now is the clock for password history. Defaults to time.Now.
	Now func() time.Time
}

// Store is the in-memory object database. Committed objects live in an
// arena keyed by Ref; edits happen on copies checked out by an EditSet.
type Store struct {
	schema     *schema.Schema
	namespaces *namespace.Registry
	backend    storage.Backend
	log        logging.Logger
	passwords  *password.Manager
	now        func() time.Time

	hooksMu sync.RWMutex
	hooks   map[uint16]Hooks

	// persistMu orders backend writes with the installs that follow them.
	persistMu sync.Mutex

	mu           sync.RWMutex
	objects      map[ref.Ref]*Object
	nextNum      map[uint16]uint32
	generation   map[uint16]uint64
	backPointers map[ref.Ref]map[ref.Ref]struct{} // target -> sources
	checkedOut   map[ref.Ref]*EditSet
	deleting     map[ref.Ref]*EditSet
	deleteLocks  map[ref.Ref]map[*EditSet]struct{}
	closed       bool
}

// Open creates a store and loads every object from the backend.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Schema == nil {
		return nil, ErrNoSchema
	}
	if opts.Backend == nil {
		opts.Backend = storage.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Passwords == nil {
		opts.Passwords = password.NewManager(nil, nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		schema:       opts.Schema,
		namespaces:   namespace.NewRegistry(),
		backend:      opts.Backend,
		log:          opts.Logger,
		passwords:    opts.Passwords,
		now:          opts.Now,
		hooks:        make(map[uint16]Hooks),
		objects:      make(map[ref.Ref]*Object),
		nextNum:      make(map[uint16]uint32),
		generation:   make(map[uint16]uint64),
		backPointers: make(map[ref.Ref]map[ref.Ref]struct{}),
		checkedOut:   make(map[ref.Ref]*EditSet),
		deleting:     make(map[ref.Ref]*EditSet),
		deleteLocks:  make(map[ref.Ref]map[*EditSet]struct{}),
	}
	for id, h := range opts.Hooks {
		s.hooks[id] = h
	}

	for _, def := range opts.Schema.Namespaces {
		s.namespaces.Define(def.Name, def.CaseInsensitive)
	}
	for _, ot := range opts.Schema.ObjectTypes() {
		for _, fd := range ot.Fields() {
			if fd.Password != nil && fd.Password.Policy != nil {
				s.passwords.SetFieldPolicy(policyKey(ot, fd), fd.Password.Policy)
			}
		}
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.log.Info("store opened", "objects", len(s.objects))
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	err := s.backend.Load(ctx, func(rec storage.Record) error {
		obj, err := decodeObject(s, rec.Ref, rec.Data)
		if err != nil {
			return err
		}
		s.objects[obj.ref] = obj
		if obj.ref.Num > s.nextNum[obj.ref.Type] {
			s.nextNum[obj.ref.Type] = obj.ref.Num
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("db: loading objects: %w", err)
	}

	for _, obj := range s.objects {
		s.indexLocked(obj)
		for _, f := range obj.fields {
			if !f.Def().HasNamespace() {
				continue
			}
			ns, err := s.namespaces.Get(f.Def().Namespace)
			if err != nil {
				return err
			}
			for _, v := range f.nsValues() {
				if err := ns.Load(v, namespace.Holder{Ref: obj.ref, Field: f.Code()}); err != nil {
					return fmt.Errorf("db: loading %s: %w", obj, err)
				}
			}
		}
	}
	return nil
}

// Schema returns the store's schema.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Namespaces returns the namespace registry.
func (s *Store) Namespaces() *namespace.Registry { return s.namespaces }

// SetHooks installs the plugin for an object type.
func (s *Store) SetHooks(typeID uint16, h Hooks) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	if h == nil {
		delete(s.hooks, typeID)
		return
	}
	s.hooks[typeID] = h
}

func (s *Store) hooksFor(typeID uint16) Hooks {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	if h, ok := s.hooks[typeID]; ok {
		return h
	}
	return BaseHooks{}
}

// NewSession opens a session for a persona. A nil oracle allows
// everything. Privileged sessions get advisories instead of failures for
// password quality and reuse.
func (s *Store) NewSession(name string, oracle PermissionOracle, privileged bool) *Session {
	if oracle == nil {
		oracle = AllowAll{}
	}
	id := logging.NewTxID()
	return &Session{
		id:         id,
		name:       name,
		store:      s,
		oracle:     oracle,
		privileged: privileged,
		log:        s.log.WithFields("session", id, "persona", name),
	}
}

// Lookup returns the committed object r. The object must not be modified.
func (s *Store) Lookup(r ref.Ref) (*Object, bool) {
	obj := s.get(r)
	return obj, obj != nil
}

func (s *Store) get(r ref.Ref) *Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[r]
}

// Refs returns the refs of every committed object of a type, ordered.
// Type 0 lists every top-level object.
func (s *Store) Refs(typeID uint16) []ref.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []ref.Ref
	for r, obj := range s.objects {
		if typeID == 0 && obj.typ.Embedded {
			continue
		}
		if typeID == 0 || r.Type == typeID {
			refs = append(refs, r)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return ref.Less(refs[i], refs[j]) })
	return refs
}

// Len returns the number of committed objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Generation returns the creation and deletion counter of a type.
func (s *Store) Generation(typeID uint16) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if typeID != 0 {
		return s.generation[typeID]
	}
	var sum uint64
	for _, g := range s.generation {
		sum += g
	}
	return sum
}

// BackPointers returns the objects holding asymmetric references to r.
func (s *Store) BackPointers(r ref.Ref) []ref.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backPointersLocked(r)
}

func (s *Store) backPointersLocked(r ref.Ref) []ref.Ref {
	var refs []ref.Ref
	for src := range s.backPointers[r] {
		refs = append(refs, src)
	}
	sort.Slice(refs, func(i, j int) bool { return ref.Less(refs[i], refs[j]) })
	return refs
}

// Close closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.backend.Close()
}

func (s *Store) allocate(typeID uint16) ref.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNum[typeID]++
	return ref.New(typeID, s.nextNum[typeID])
}

// checkOut reserves r for es and returns the committed object.
func (s *Store) checkOut(r ref.Ref, es *EditSet) (*Object, *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, failCause(TransactionClosed, ErrStoreClosed, "store is closed")
	}
	obj, ok := s.objects[r]
	if !ok {
		return nil, fail(NotFound, "object %s does not exist", r)
	}
	if holder, busy := s.checkedOut[r]; busy && holder != es {
		return nil, fail(TargetBusy, "%s is checked out by another transaction", obj)
	}
	s.checkedOut[r] = es
	return obj, nil
}

// reserve records a newly created object as checked out by es.
func (s *Store) reserve(r ref.Ref, es *EditSet) {
	s.mu.Lock()
	s.checkedOut[r] = es
	s.mu.Unlock()
}

func (s *Store) release(r ref.Ref, es *EditSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut[r] == es {
		delete(s.checkedOut, r)
	}
	if s.deleting[r] == es {
		delete(s.deleting, r)
	}
}

func (s *Store) markDeleting(r ref.Ref, es *EditSet) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for holder := range s.deleteLocks[r] {
		if holder != es {
			return fail(TargetBusy, "%s is referenced by another transaction", r)
		}
	}
	s.deleting[r] = es
	return nil
}

func (s *Store) clearDeleting(r ref.Ref, es *EditSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleting[r] == es {
		delete(s.deleting, r)
	}
}

func (s *Store) addDeleteLock(r ref.Ref, es *EditSet) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[r]; !ok {
		return fail(TargetDeleted, "object %s does not exist", r)
	}
	if holder, ok := s.deleting[r]; ok {
		if holder == es {
			return fail(TargetDeleted, "%s is being deleted", r)
		}
		return fail(TargetBusy, "%s is being deleted by another transaction", r)
	}
	locks := s.deleteLocks[r]
	if locks == nil {
		locks = make(map[*EditSet]struct{})
		s.deleteLocks[r] = locks
	}
	locks[es] = struct{}{}
	return nil
}

func (s *Store) dropDeleteLock(r ref.Ref, es *EditSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropDeleteLockLocked(r, es)
}

func (s *Store) dropDeleteLockLocked(r ref.Ref, es *EditSet) {
	if locks := s.deleteLocks[r]; locks != nil {
		delete(locks, es)
		if len(locks) == 0 {
			delete(s.deleteLocks, r)
		}
	}
}

// install replaces committed objects with the edit set's copies and
// releases its checkouts and delete locks.
func (s *Store) install(es *EditSet, objs []*Object, created map[ref.Ref]struct{}, locks map[ref.Ref]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range objs {
		r := obj.ref
		old := s.objects[r]
		if old != nil {
			s.unindexLocked(old)
		}
		if obj.Status() == StatusDeleting {
			if old != nil {
				delete(s.objects, r)
				s.generation[r.Type]++
			}
		} else {
			if _, isNew := created[r]; isNew {
				s.generation[r.Type]++
			}
			obj.detach()
			s.objects[r] = obj
			s.indexLocked(obj)
		}
		delete(s.checkedOut, r)
		delete(s.deleting, r)
	}
	for r := range locks {
		s.dropDeleteLockLocked(r, es)
	}
}

// releaseAll drops every checkout and delete lock held by es.
func (s *Store) releaseAll(es *EditSet, refs []ref.Ref, locks map[ref.Ref]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range refs {
		if s.checkedOut[r] == es {
			delete(s.checkedOut, r)
		}
		if s.deleting[r] == es {
			delete(s.deleting, r)
		}
	}
	for r := range locks {
		s.dropDeleteLockLocked(r, es)
	}
}

func (s *Store) indexLocked(obj *Object) {
	for _, target := range asymmetricTargets(obj) {
		srcs := s.backPointers[target]
		if srcs == nil {
			srcs = make(map[ref.Ref]struct{})
			s.backPointers[target] = srcs
		}
		srcs[obj.ref] = struct{}{}
	}
}

func (s *Store) unindexLocked(obj *Object) {
	for _, target := range asymmetricTargets(obj) {
		if srcs := s.backPointers[target]; srcs != nil {
			delete(srcs, obj.ref)
			if len(srcs) == 0 {
				delete(s.backPointers, target)
			}
		}
	}
}

func asymmetricTargets(obj *Object) []ref.Ref {
	var out []ref.Ref
	for _, f := range obj.fields {
		if inv, ok := f.(*InvidField); ok && inv.def.IsAsymmetric() {
			out = append(out, inv.raw()...)
		}
	}
	return out
}

// persistCaptured writes a passively captured password of a committed
// object through to the backend. A transaction holding the object gets
// the capture too, so its commit does not drop it.
func (s *Store) persistCaptured(f *PasswordField, before, after passwordState) {
	obj := f.owner
	if es := obj.currentEditSet(); es != nil && !es.isClosed() {
		return
	}

	s.mu.RLock()
	holder := s.checkedOut[obj.ref]
	s.mu.RUnlock()
	if holder != nil && holder.noteCapture(obj.ref, f.Code(), capture{before: before, after: after}) {
		s.log.Debug("capture deferred to holding transaction", "object", obj.String(), "tx", holder.ID())
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	committed := s.objects[obj.ref]
	if committed == nil {
		s.mu.Unlock()
		return
	}
	if committed != obj {
		cf, ok := committed.fields[f.Code()].(*PasswordField)
		if !ok || (!cf.replaceIf(before, after) && !cf.holds(after)) {
			s.mu.Unlock()
			s.log.Debug("password changed since capture", "object", obj.String(), "field", f.Name())
			return
		}
	}
	data, err := encodeObject(committed, EncodeOptions{})
	s.mu.Unlock()

	if err != nil {
		s.log.Error("encoding captured password failed", "object", obj.String(), "error", err)
		return
	}
	if err := s.backend.Apply(context.Background(), []storage.Record{{Ref: obj.ref, Data: data}}, nil); err != nil {
		s.log.Error("persisting captured password failed", "object", obj.String(), "error", err)
		return
	}
	s.log.Info("captured password formats", "object", obj.String(), "field", f.Name(), "checkedOut", holder != nil)
}

func policyKey(ot *schema.ObjectType, fd *schema.FieldDef) string {
	return ot.Name + "." + fd.Name
}
