package namespace

import (
	"sort"
	"sync"
)

// Registry holds every namespace of a store and fans transaction
// boundaries out to all of them.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*Namespace)}
}

// Define returns the namespace called name, creating it if needed. An
// existing namespace keeps its original case sensitivity.
func (r *Registry) Define(name string, caseInsensitive bool) *Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns := New(name, caseInsensitive)
	r.namespaces[name] = ns
	return ns
}

// Get returns the namespace called name.
func (r *Registry) Get(name string) (*Namespace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ns, ok := r.namespaces[name]
	if !ok {
		return nil, ErrUnknownNamespace
	}
	return ns, nil
}

// Names returns the sorted namespace names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) all() []*Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		list = append(list, ns)
	}
	return list
}

// Commit makes tx's reservations permanent in every namespace.
func (r *Registry) Commit(tx string) {
	for _, ns := range r.all() {
		ns.Commit(tx)
	}
}

// Abort discards tx's reservations in every namespace.
func (r *Registry) Abort(tx string) {
	for _, ns := range r.all() {
		ns.Abort(tx)
	}
}

// Checkpoint saves tx's provisional state under key in every namespace.
func (r *Registry) Checkpoint(tx, key string) {
	for _, ns := range r.all() {
		ns.Checkpoint(tx, key)
	}
}

// Rollback restores tx's provisional state saved under key. Namespaces
// defined after the checkpoint was taken are reverted entirely.
func (r *Registry) Rollback(tx, key string) {
	for _, ns := range r.all() {
		if err := ns.Rollback(tx, key); err != nil {
			ns.Abort(tx)
		}
	}
}

// PopCheckpoint drops the checkpoint saved under key in every namespace.
func (r *Registry) PopCheckpoint(tx, key string) {
	for _, ns := range r.all() {
		_ = ns.PopCheckpoint(tx, key)
	}
}
