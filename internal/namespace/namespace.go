package namespace

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/cases"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Namespace errors.
var (
	ErrConflict         = errors.New("namespace: value already reserved")
	ErrNotHeld          = errors.New("namespace: value not held by field")
	ErrUnknownNamespace = errors.New("namespace: unknown namespace")
	ErrNoCheckpoint     = errors.New("namespace: no such checkpoint")
	ErrEmptyTx          = errors.New("namespace: transaction id is empty")
)

// Holder identifies the field that holds a value.
type Holder struct {
	Ref   ref.Ref
	Field uint16
}

// String returns a printable form of the holder.
func (h Holder) String() string {
	return fmt.Sprintf("%s#%d", h.Ref, h.Field)
}

// ConflictError describes a failed reservation.
type ConflictError struct {
	Namespace string
	Value     string
	Holder    Holder // current holder, zero if held only provisionally
	Tx        string // transaction holding the value provisionally, if any
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Tx != "" {
		return fmt.Sprintf("namespace %s: value %q is being edited by another transaction", e.Namespace, e.Value)
	}
	return fmt.Sprintf("namespace %s: value %q is already held by %s", e.Namespace, e.Value, e.Holder)
}

// Unwrap allows errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// handle is the reservation state of one value.
type handle struct {
	owner    Holder // committed holder
	owned    bool
	tx       string // transaction with provisional state on this value
	shadow   Holder // holder once tx commits
	shadowed bool
}

// state is the provisional part of a handle, saved by checkpoints.
type state struct {
	shadow   Holder
	shadowed bool
}

// checkpoint is a saved provisional state for one transaction.
type checkpoint struct {
	key   string
	saved map[string]state
}

// Namespace is a single uniqueness domain.
type Namespace struct {
	name            string
	caseInsensitive bool
	folder          cases.Caser

	mu          sync.Mutex
	handles     map[string]*handle
	touched     map[string]map[string]struct{} // tx -> keys with provisional state
	checkpoints map[string][]checkpoint        // tx -> checkpoint stack
}

// New creates an empty namespace.
func New(name string, caseInsensitive bool) *Namespace {
	return &Namespace{
		name:            name,
		caseInsensitive: caseInsensitive,
		folder:          cases.Fold(),
		handles:         make(map[string]*handle),
		touched:         make(map[string]map[string]struct{}),
		checkpoints:     make(map[string][]checkpoint),
	}
}

// Name returns the namespace name.
func (ns *Namespace) Name() string {
	return ns.name
}

// CaseInsensitive reports whether values are compared case-insensitively.
func (ns *Namespace) CaseInsensitive() bool {
	return ns.caseInsensitive
}

// Key returns the form under which value is reserved. Two values with the
// same key conflict.
func (ns *Namespace) Key(value string) string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.key(value)
}

// key normalizes a value for lookup. cases.Caser is stateful, so callers
// must hold ns.mu.
func (ns *Namespace) key(value string) string {
	if !ns.caseInsensitive {
		return value
	}
	return ns.folder.String(value)
}

// Load records a committed reservation, used when loading the store.
func (ns *Namespace) Load(value string, holder Holder) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	k := ns.key(value)
	if h, ok := ns.handles[k]; ok && h.owned && h.owner != holder {
		return &ConflictError{Namespace: ns.name, Value: value, Holder: h.owner}
	}
	ns.handles[k] = &handle{owner: holder, owned: true}
	return nil
}

// Mark reserves value for holder within transaction tx.
func (ns *Namespace) Mark(tx, value string, holder Holder) error {
	if tx == "" {
		return ErrEmptyTx
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	return ns.markLocked(tx, ns.key(value), value, holder)
}

// MarkAll reserves every value for holder atomically: if any value cannot
// be reserved, no reservation made by this call survives.
func (ns *Namespace) MarkAll(tx string, values []string, holder Holder) error {
	if tx == "" {
		return ErrEmptyTx
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	type prior struct {
		key     string
		exists  bool
		handle  handle
		touched bool
	}
	priors := make([]prior, 0, len(values))

	for _, value := range values {
		k := ns.key(value)
		p := prior{key: k}
		if h, ok := ns.handles[k]; ok {
			p.exists = true
			p.handle = *h
		}
		_, p.touched = ns.touched[tx][k]
		priors = append(priors, p)

		if err := ns.markLocked(tx, k, value, holder); err != nil {
			// Undo in reverse order so repeated keys restore correctly
			for i := len(priors) - 1; i >= 0; i-- {
				p := priors[i]
				if p.exists {
					h := p.handle
					ns.handles[p.key] = &h
				} else {
					delete(ns.handles, p.key)
				}
				if !p.touched {
					delete(ns.touched[tx], p.key)
				}
			}
			return err
		}
	}

	return nil
}

func (ns *Namespace) markLocked(tx, k, value string, holder Holder) error {
	h, ok := ns.handles[k]
	if !ok {
		ns.handles[k] = &handle{tx: tx, shadow: holder, shadowed: true}
		ns.touch(tx, k)
		return nil
	}

	if h.tx != "" && h.tx != tx {
		return &ConflictError{Namespace: ns.name, Value: value, Tx: h.tx}
	}

	if h.tx == tx {
		if h.shadowed && h.shadow != holder {
			return &ConflictError{Namespace: ns.name, Value: value, Holder: h.shadow}
		}
		h.shadow = holder
		h.shadowed = true
		return nil
	}

	// No provisional state: only the committed owner may re-reserve
	if h.owned && h.owner != holder {
		return &ConflictError{Namespace: ns.name, Value: value, Holder: h.owner}
	}

	h.tx = tx
	h.shadow = holder
	h.shadowed = true
	ns.touch(tx, k)
	return nil
}

// Unmark releases value from holder within transaction tx.
func (ns *Namespace) Unmark(tx, value string, holder Holder) error {
	if tx == "" {
		return ErrEmptyTx
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	k := ns.key(value)
	h, ok := ns.handles[k]
	if !ok {
		return ErrNotHeld
	}

	switch {
	case h.tx == tx:
		if !h.shadowed || h.shadow != holder {
			return ErrNotHeld
		}
		h.shadowed = false
		h.shadow = Holder{}
		return nil

	case h.tx == "":
		if !h.owned || h.owner != holder {
			return ErrNotHeld
		}
		h.tx = tx
		h.shadowed = false
		ns.touch(tx, k)
		return nil

	default:
		return &ConflictError{Namespace: ns.name, Value: value, Tx: h.tx}
	}
}

// Available reports whether holder could reserve value in tx right now.
func (ns *Namespace) Available(tx, value string, holder Holder) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	h, ok := ns.handles[ns.key(value)]
	if !ok {
		return true
	}
	if h.tx != "" && h.tx != tx {
		return false
	}
	if h.tx == tx {
		return !h.shadowed || h.shadow == holder
	}
	return !h.owned || h.owner == holder
}

// Lookup returns the committed holder of value.
func (ns *Namespace) Lookup(value string) (Holder, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	h, ok := ns.handles[ns.key(value)]
	if !ok || !h.owned {
		return Holder{}, false
	}
	return h.owner, true
}

// LookupTx returns the holder of value as seen from inside tx.
func (ns *Namespace) LookupTx(tx, value string) (Holder, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	h, ok := ns.handles[ns.key(value)]
	if !ok {
		return Holder{}, false
	}
	if h.tx == tx {
		return h.shadow, h.shadowed
	}
	return h.owner, h.owned
}

// Commit makes the provisional state of tx permanent.
func (ns *Namespace) Commit(tx string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for k := range ns.touched[tx] {
		h, ok := ns.handles[k]
		if !ok || h.tx != tx {
			continue
		}
		if h.shadowed {
			ns.handles[k] = &handle{owner: h.shadow, owned: true}
		} else {
			delete(ns.handles, k)
		}
	}
	delete(ns.touched, tx)
	delete(ns.checkpoints, tx)
}

// Abort discards the provisional state of tx.
func (ns *Namespace) Abort(tx string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for k := range ns.touched[tx] {
		ns.revertLocked(tx, k)
	}
	delete(ns.touched, tx)
	delete(ns.checkpoints, tx)
}

// Checkpoint saves the provisional state of tx under key.
func (ns *Namespace) Checkpoint(tx, key string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	saved := make(map[string]state, len(ns.touched[tx]))
	for k := range ns.touched[tx] {
		if h, ok := ns.handles[k]; ok && h.tx == tx {
			saved[k] = state{shadow: h.shadow, shadowed: h.shadowed}
		}
	}
	ns.checkpoints[tx] = append(ns.checkpoints[tx], checkpoint{key: key, saved: saved})
}

// Rollback restores the provisional state of tx saved under key and drops
// that checkpoint along with any taken after it.
func (ns *Namespace) Rollback(tx, key string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	idx := ns.findCheckpoint(tx, key)
	if idx < 0 {
		return ErrNoCheckpoint
	}
	cp := ns.checkpoints[tx][idx]

	for k := range ns.touched[tx] {
		if st, ok := cp.saved[k]; ok {
			if h, exists := ns.handles[k]; exists && h.tx == tx {
				h.shadow = st.shadow
				h.shadowed = st.shadowed
			}
			continue
		}
		ns.revertLocked(tx, k)
		delete(ns.touched[tx], k)
	}

	ns.checkpoints[tx] = ns.checkpoints[tx][:idx]
	return nil
}

// PopCheckpoint discards the checkpoint saved under key without restoring it.
func (ns *Namespace) PopCheckpoint(tx, key string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	idx := ns.findCheckpoint(tx, key)
	if idx < 0 {
		return ErrNoCheckpoint
	}
	stack := ns.checkpoints[tx]
	ns.checkpoints[tx] = append(stack[:idx], stack[idx+1:]...)
	return nil
}

// findCheckpoint returns the index of the innermost checkpoint named key.
func (ns *Namespace) findCheckpoint(tx, key string) int {
	stack := ns.checkpoints[tx]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].key == key {
			return i
		}
	}
	return -1
}

// revertLocked removes the provisional state of tx from a handle.
func (ns *Namespace) revertLocked(tx, k string) {
	h, ok := ns.handles[k]
	if !ok || h.tx != tx {
		return
	}
	if !h.owned {
		delete(ns.handles, k)
		return
	}
	h.tx = ""
	h.shadow = Holder{}
	h.shadowed = false
}

func (ns *Namespace) touch(tx, k string) {
	keys, ok := ns.touched[tx]
	if !ok {
		keys = make(map[string]struct{})
		ns.touched[tx] = keys
	}
	keys[k] = struct{}{}
}

// Len returns the number of values with committed or provisional state.
func (ns *Namespace) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.handles)
}
