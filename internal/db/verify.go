package db

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// ErrBrokenLink reports a reference whose other side does not agree.
var ErrBrokenLink = errors.New("db: broken link")

// VerifyObject audits every reference field of the committed object r:
// symmetric fields must be mirrored on their targets, asymmetric fields
// must appear in the back-pointer index and embedded objects must point at
// the container holding them.
func (s *Store) VerifyObject(r ref.Ref) error {
	obj := s.get(r)
	if obj == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, r)
	}
	var errs error
	for _, f := range obj.Fields() {
		if inv, ok := f.(*InvidField); ok {
			errs = multierr.Append(errs, verifyInvid(obj, inv, s.get, s.BackPointers))
		}
	}
	return errs
}

// VerifyAll runs VerifyObject on every committed object and combines the
// problems found.
func (s *Store) VerifyAll() error {
	s.mu.RLock()
	refs := make([]ref.Ref, 0, len(s.objects))
	for r := range s.objects {
		refs = append(refs, r)
	}
	s.mu.RUnlock()
	slices.SortFunc(refs, func(a, b ref.Ref) int {
		switch {
		case ref.Less(a, b):
			return -1
		case ref.Less(b, a):
			return 1
		}
		return 0
	})

	var errs error
	for _, r := range refs {
		errs = multierr.Append(errs, s.VerifyObject(r))
	}
	if errs != nil {
		s.log.Warn("verification found broken links", "count", len(multierr.Errors(errs)))
	}
	return errs
}

func verifyInvid(owner *Object, f *InvidField, lookup func(ref.Ref) *Object, backPointers func(ref.Ref) []ref.Ref) error {
	var errs error
	broken := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s: %s", ErrBrokenLink, f.label(), fmt.Sprintf(format, args...)))
	}

	for _, r := range f.raw() {
		target := lookup(r)
		if target == nil {
			broken("%s does not exist", r)
			continue
		}

		switch {
		case f.def.Code == schema.ContainerField:
			if !containsChild(target, owner.ref) {
				broken("container %s does not hold %s", target, owner)
			}
		case f.def.EditInPlace:
			if c, ok := target.Container(); !ok || c != owner.ref {
				broken("embedded %s points at container %s", target, c)
			}
		case f.def.Symmetric:
			mirror, ok := target.fields[f.def.Mirror].(*InvidField)
			if !ok {
				broken("%s has no mirror field %d", target, f.def.Mirror)
				continue
			}
			if !slices.Contains(mirror.raw(), owner.ref) {
				broken("%s does not point back", mirror.label())
			}
		default:
			if !slices.Contains(backPointers(r), owner.ref) {
				broken("back-pointer index of %s lacks %s", r, owner)
			}
		}
	}
	return errs
}

func containsChild(container *Object, child ref.Ref) bool {
	for _, f := range container.fields {
		if inv, ok := f.(*InvidField); ok && inv.def.EditInPlace && slices.Contains(inv.raw(), child) {
			return true
		}
	}
	return false
}
