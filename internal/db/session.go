package db

import (
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// Session is one client's view of the store. It reads committed objects
// through its permission oracle and edits them through at most one open
// EditSet at a time.
type Session struct {
	id         string
	name       string
	store      *Store
	oracle     PermissionOracle
	privileged bool
	log        logging.Logger

	mu      sync.Mutex
	current *EditSet
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Name returns the persona name.
func (s *Session) Name() string { return s.name }

// Privileged reports whether the session is privileged.
func (s *Session) Privileged() bool { return s.privileged }

// Begin opens an EditSet.
func (s *Session) Begin() (*EditSet, *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && !s.current.isClosed() {
		return nil, fail(NotEditable, "session %s already has an open transaction", s.name)
	}
	es := newEditSet(s)
	s.current = es
	return es, nil
}

// Current returns the open EditSet, or nil.
func (s *Session) Current() *EditSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.isClosed() {
		return nil
	}
	return s.current
}

// View returns a read-only copy of the committed object r whose reads are
// checked against the session's oracle.
func (s *Session) View(r ref.Ref) (*Object, *Result) {
	obj := s.store.get(r)
	if obj == nil {
		return nil, fail(NotFound, "object %s does not exist", r)
	}
	view := obj.copyFor(StatusCommitted, nil, s)
	if !s.oracle.CanRead(view, schema.ObjectField) {
		return nil, fail(PermissionDenied, "cannot read %s", view)
	}
	return view, nil
}

// Close aborts the open EditSet, if any.
func (s *Session) Close() {
	if es := s.Current(); es != nil {
		es.Abort()
	}
}
