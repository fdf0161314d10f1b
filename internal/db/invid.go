package db

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// InvidField holds references to other objects. Symmetric fields keep
// the mirror field on each target pointing back; asymmetric fields put
// their targets under a delete lock and are tracked by the store's
// back-pointer index; edit-in-place fields own embedded objects.
type InvidField struct {
	typedField[ref.Ref]
}

var invidOps = kindOps[ref.Ref]{
	coerce: func(b *baseField, v any) (ref.Ref, *Result) {
		switch x := v.(type) {
		case ref.Ref:
			return x, nil
		case *Object:
			if x == nil {
				return ref.Ref{}, nil
			}
			return x.ref, nil
		case string:
			r, err := ref.Parse(x)
			if err != nil {
				return r, failCause(InvalidValue, err, "%s: %q is not a reference", b.label(), x)
			}
			return r, nil
		}
		return ref.Ref{}, mismatch(b, v)
	},
	empty: func(v any) bool {
		switch x := v.(type) {
		case ref.Ref:
			return x.IsNil()
		case *Object:
			return x == nil
		}
		return false
	},
	check: func(b *baseField, v ref.Ref) (ref.Ref, *Result) {
		if v.IsNil() {
			return v, fail(InvalidValue, "%s: nil reference", b.label())
		}
		if t := b.def.TargetType; t != 0 && v.Type != t {
			return v, fail(InvalidValue, "%s cannot point to a %s", b.label(), typeName(b.owner.store, v.Type))
		}
		return v, nil
	},
	equal:  func(a, b ref.Ref) bool { return a == b },
	format: ref.Ref.String,
	marshal: func(v ref.Ref, version int) []byte {
		if version == codecLegacy {
			return []byte(v.String())
		}
		return v.Bytes()
	},
	unmarshal: func(data []byte, version int) (ref.Ref, error) {
		if version == codecLegacy {
			return ref.Parse(string(data))
		}
		return ref.FromBytes(data)
	},
}

func newInvidField(def *schema.FieldDef, owner *Object) *InvidField {
	f := &InvidField{}
	f.setup(def, owner, f, &invidOps)
	return f
}

func (f *InvidField) clone(owner *Object) Field {
	c := newInvidField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

func typeName(s *Store, id uint16) string {
	if ot := s.schema.ObjectType(id); ot != nil {
		return ot.Name
	}
	return fmt.Sprintf("type %d", id)
}

// Set points a scalar reference at v, or clears it when v is nil,
// rebinding mirrors as needed.
func (f *InvidField) Set(v any) *Result {
	if r := f.checkVector(false); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	old, had := f.current()

	if v == nil || f.ops.empty(v) {
		if !had {
			return nil
		}
		return f.editSet().guard("unbind "+f.label(), func() *Result {
			return f.removeValue(old, OpSet)
		})
	}

	if f.def.EditInPlace {
		return fail(InvalidValue, "%s contains embedded objects; use CreateEmbedded", f.label())
	}
	val, r := f.ops.coerce(&f.baseField, v)
	if r != nil {
		return r
	}
	if had && val == old {
		return nil
	}
	val, advice := f.prepare(val)
	if advice.Failed() {
		return advice
	}
	if had && val == old {
		return advice
	}

	return f.editSet().guard("bind "+f.label(), func() *Result {
		if r := f.bind(old, had, val, true); r != nil {
			return r
		}
		fin := f.finalize(OpSet, []any{val})
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		f.values = []ref.Ref{val}
		f.mu.Unlock()
		return mergeAdvice(advice, fin)
	})
}

// AddElement adds a reference to a vector field.
func (f *InvidField) AddElement(v any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if f.def.EditInPlace {
		return fail(InvalidValue, "%s contains embedded objects; use CreateEmbedded", f.label())
	}
	val, advice := f.prepare(v)
	if advice.Failed() {
		return advice
	}
	vals := f.raw()
	if f.indexIn(vals, val, -1) >= 0 {
		return fail(DuplicateValue, "%s already contains %s", f.label(), val)
	}
	if max := f.def.MaxSize; max > 0 && len(vals) >= max {
		return fail(CapacityExceeded, "%s holds at most %d values", f.label(), max)
	}

	return f.editSet().guard("bind "+f.label(), func() *Result {
		if r := f.bind(ref.Ref{}, false, val, true); r != nil {
			return r
		}
		fin := f.finalize(OpAdd, []any{val})
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		f.values = append(f.values, val)
		f.mu.Unlock()
		return mergeAdvice(advice, fin)
	})
}

// DeleteElement removes the reference at index. For edit-in-place fields
// the embedded object is deleted.
func (f *InvidField) DeleteElement(index int) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	vals := f.raw()
	if index < 0 || index >= len(vals) {
		return fail(NoSuchValue, "%s has no element %d", f.label(), index)
	}
	val := vals[index]
	return f.editSet().guard("unbind "+f.label(), func() *Result {
		return f.removeValue(val, OpDelete)
	})
}

// DeleteValue removes a reference from a vector field.
func (f *InvidField) DeleteValue(v any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	val, r := f.ops.coerce(&f.baseField, v)
	if r != nil {
		return r
	}
	if f.indexIn(f.raw(), val, -1) < 0 {
		return fail(NoSuchValue, "%s does not contain %s", f.label(), val)
	}
	return f.editSet().guard("unbind "+f.label(), func() *Result {
		return f.removeValue(val, OpDelete)
	})
}

// SetElement replaces the reference at index.
func (f *InvidField) SetElement(index int, v any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if f.def.EditInPlace {
		return fail(InvalidValue, "%s contains embedded objects; use CreateEmbedded", f.label())
	}
	val, advice := f.prepare(v)
	if advice.Failed() {
		return advice
	}
	vals := f.raw()
	if index < 0 || index >= len(vals) {
		return fail(NoSuchValue, "%s has no element %d", f.label(), index)
	}
	old := vals[index]
	if old == val {
		return advice
	}
	if f.indexIn(vals, val, index) >= 0 {
		return fail(DuplicateValue, "%s already contains %s", f.label(), val)
	}

	return f.editSet().guard("bind "+f.label(), func() *Result {
		if r := f.bind(old, true, val, true); r != nil {
			return r
		}
		fin := f.finalize(OpSetElement, []any{val})
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		if i := f.indexIn(f.values, old, -1); i >= 0 {
			f.values[i] = val
		}
		f.mu.Unlock()
		return mergeAdvice(advice, fin)
	})
}

// AddElements binds every value under one checkpoint; see
// typedField.AddElements for allowPartial.
func (f *InvidField) AddElements(values []any, allowPartial bool) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if f.def.EditInPlace {
		return fail(InvalidValue, "%s contains embedded objects; use CreateEmbedded", f.label())
	}
	if len(values) == 0 {
		return nil
	}

	es := f.editSet()
	return es.guard("bind "+f.label(), func() *Result {
		var fails batchFailures
		current := f.raw()
		linked := make([]ref.Ref, 0, len(values))
		for _, v := range values {
			val, r := f.prepare(v)
			if r.Failed() {
				fails.add(r)
				continue
			}
			if f.indexIn(current, val, -1) >= 0 || f.indexIn(linked, val, -1) >= 0 {
				fails.add(fail(DuplicateValue, "%s already contains %s", f.label(), val))
				continue
			}
			if max := f.def.MaxSize; max > 0 && len(current)+len(linked) >= max {
				fails.add(fail(CapacityExceeded, "%s holds at most %d values", f.label(), max))
				continue
			}
			r = es.guard("link "+val.String(), func() *Result {
				return f.bind(ref.Ref{}, false, val, true)
			})
			if r.Failed() {
				fails.add(r)
				continue
			}
			linked = append(linked, val)
		}

		if !fails.empty() && (!allowPartial || len(linked) == 0) {
			return fails.failure(len(values))
		}
		fin := f.finalize(OpAddMany, toAny(linked))
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		f.values = append(f.values, linked...)
		f.mu.Unlock()

		if !fails.empty() {
			return mergeAdvice(fails.advisory(len(values)), fin)
		}
		return fin
	})
}

// DeleteElements unbinds every value under one checkpoint. Any value not
// present fails the whole batch.
func (f *InvidField) DeleteElements(values []any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if len(values) == 0 {
		return nil
	}

	return f.editSet().guard("unbind "+f.label(), func() *Result {
		current := f.raw()
		doomed := make([]ref.Ref, 0, len(values))
		for _, v := range values {
			val, r := f.ops.coerce(&f.baseField, v)
			if r != nil {
				return r
			}
			if f.indexIn(current, val, -1) < 0 || f.indexIn(doomed, val, -1) >= 0 {
				return fail(NoSuchValue, "%s does not contain %s", f.label(), val)
			}
			doomed = append(doomed, val)
		}
		fin := f.finalize(OpDeleteMany, toAny(doomed))
		if fin.Failed() {
			return fin
		}
		for _, val := range doomed {
			if r := f.unlink(val); r != nil {
				return r
			}
			f.remove(val)
		}
		return fin
	})
}

// removeValue finalizes, unlinks and drops one value. Callers hold a
// checkpoint.
func (f *InvidField) removeValue(val ref.Ref, op Op) *Result {
	var values []any
	if op != OpSet {
		values = []any{val}
	}
	fin := f.finalize(op, values)
	if fin.Failed() {
		return fin
	}
	if r := f.unlink(val); r != nil {
		return r
	}
	f.remove(val)
	return fin
}

// unlink undoes the binding side effects of holding val.
func (f *InvidField) unlink(val ref.Ref) *Result {
	if f.def.EditInPlace {
		f.remove(val)
		return f.editSet().deleteObject(val, false)
	}
	return f.bind(val, true, ref.Ref{}, false)
}

// remove drops val from the field without any checks.
func (f *InvidField) remove(val ref.Ref) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexIn(f.values, val, -1)
	if i < 0 {
		return false
	}
	f.values = append(f.values[:i:i], f.values[i+1:]...)
	return true
}

// bind moves the binding of this field from old to new. The caller holds
// a checkpoint covering every object touched here.
func (f *InvidField) bind(old ref.Ref, hasOld bool, new ref.Ref, hasNew bool) *Result {
	es := f.editSet()

	if !f.def.Symmetric {
		if hasNew && f.def.IsAsymmetric() {
			return es.lockTarget(new)
		}
		return nil
	}

	var target *InvidField
	if hasNew {
		obj, r := f.linkTarget(new)
		if r != nil {
			return r
		}
		mirror, r := f.mirrorOf(obj)
		if r != nil {
			return r
		}
		if !f.mayLink(obj, mirror, true) {
			return fail(PermissionDenied, "no permission to link %s to %s", f.label(), obj)
		}
		// A field mirroring itself on its own object is both sides of a
		// self-link; the caller records the single value.
		if mirror != f {
			if !mirror.def.Vector {
				if cur, ok := mirror.current(); ok && cur != f.owner.ref {
					return fail(LinkConflict, "%s is already bound to %s", mirror.label(), cur)
				}
			}
			target = mirror
		}
	}

	if hasOld {
		obj, r := f.linkTarget(old)
		switch {
		case r == nil:
			mirror, r := f.mirrorOf(obj)
			if r != nil {
				return r
			}
			if !f.mayLink(obj, mirror, false) {
				return fail(PermissionDenied, "no permission to unlink %s from %s", f.label(), obj)
			}
			if mirror == f {
				break
			}
			if r := mirror.Dissolve(f.owner.ref); r.Failed() {
				return r
			}
		case r.Code == TargetDeleted:
			// already gone; nothing to dissolve
		default:
			return r
		}
	}

	if target != nil {
		if r := target.Establish(f.owner.ref); r.Failed() {
			return r
		}
	}
	return nil
}

func (f *InvidField) linkTarget(r ref.Ref) (*Object, *Result) {
	obj, res := f.editSet().checkout(r)
	if res != nil {
		if res.Code == NotFound {
			return nil, fail(TargetDeleted, "%s does not exist", r)
		}
		return nil, res
	}
	if obj.Status() == StatusDeleting {
		return obj, fail(TargetDeleted, "%s is being deleted", obj)
	}
	return obj, nil
}

func (f *InvidField) mirrorOf(obj *Object) (*InvidField, *Result) {
	mirror, ok := obj.fields[f.def.Mirror].(*InvidField)
	if !ok || !mirror.def.Symmetric || mirror.def.Mirror != f.def.Code {
		f.owner.store.log.Error("mirror field missing or inconsistent",
			"field", f.label(), "target", obj.String(), "mirror", f.def.Mirror)
		return nil, fail(SchemaInconsistency, "%s has no mirror field %d for %s", obj, f.def.Mirror, f.label())
	}
	return mirror, nil
}

func (f *InvidField) mayLink(target *Object, mirror *InvidField, link bool) bool {
	if target.oracle().CanWrite(target, mirror.Code()) {
		return true
	}
	h := target.hooks()
	if link {
		return h.AnonymousLinkOK(target, mirror.Code(), f.owner, f.Code())
	}
	return h.AnonymousUnlinkOK(target, mirror.Code(), f.owner, f.Code())
}

// Dissolve removes the back-reference to r from this mirror field. It is
// called by the bind protocol of the field on the other side and never
// binds further.
func (f *InvidField) Dissolve(r ref.Ref) *Result {
	if f.indexIn(f.raw(), r, -1) < 0 {
		return nil
	}
	op := OpDelete
	if !f.def.Vector {
		op = OpSet
	}
	fin := f.finalize(op, []any{r})
	if fin.Failed() {
		return fin
	}
	f.remove(r)
	return fin
}

// Establish adds the back-reference to r to this mirror field. Like
// Dissolve it never binds further.
func (f *InvidField) Establish(r ref.Ref) *Result {
	vals := f.raw()
	if f.indexIn(vals, r, -1) >= 0 {
		return nil
	}
	if f.def.Vector {
		if max := f.def.MaxSize; max > 0 && len(vals) >= max {
			return fail(CapacityExceeded, "%s holds at most %d values", f.label(), max)
		}
		fin := f.finalize(OpAdd, []any{r})
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		f.values = append(f.values, r)
		f.mu.Unlock()
		return fin
	}

	if len(vals) > 0 {
		return fail(LinkConflict, "%s is already bound to %s", f.label(), vals[0])
	}
	fin := f.finalize(OpSet, []any{r})
	if fin.Failed() {
		return fin
	}
	f.mu.Lock()
	f.values = []ref.Ref{r}
	f.mu.Unlock()
	return fin
}

// unbindAll releases every binding of a field whose object is being
// deleted.
func (f *InvidField) unbindAll() *Result {
	if f.def.Code == schema.ContainerField || f.def.IsAsymmetric() {
		return nil
	}
	for _, val := range f.raw() {
		if r := f.unlink(val); r.Failed() {
			return r
		}
		f.remove(val)
	}
	return nil
}

// CreateEmbedded creates an object of the target type inside this
// edit-in-place field. The new object's InitializeNewObject hook runs in
// the same checkpoint; if it fails the object is never created.
func (f *InvidField) CreateEmbedded() (*Object, *Result) {
	if !f.def.EditInPlace {
		return nil, fail(InvalidValue, "%s does not contain embedded objects", f.label())
	}
	if r := f.checkWrite(); r != nil {
		return nil, r
	}
	if max := f.def.MaxSize; f.def.Vector && max > 0 && f.Len() >= max {
		return nil, fail(CapacityExceeded, "%s holds at most %d values", f.label(), max)
	}
	if !f.def.Vector && f.Len() > 0 {
		return nil, fail(CapacityExceeded, "%s already contains an object", f.label())
	}
	ot := f.owner.store.schema.ObjectType(f.def.TargetType)
	if ot == nil {
		return nil, fail(SchemaInconsistency, "%s targets unknown type %d", f.label(), f.def.TargetType)
	}

	var child *Object
	res := f.editSet().guard("embed "+f.label(), func() *Result {
		child = f.editSet().newObject(ot)
		if cf, ok := child.fields[schema.ContainerField].(*InvidField); ok {
			cf.mu.Lock()
			cf.values = []ref.Ref{f.owner.ref}
			cf.mu.Unlock()
		}
		fin := f.finalize(OpAdd, []any{child.ref})
		if fin.Failed() {
			return fin
		}
		f.mu.Lock()
		f.values = append(f.values, child.ref)
		f.mu.Unlock()

		init := f.editSet().guard("initialize "+child.String(), func() *Result {
			return child.hooks().InitializeNewObject(child)
		})
		return mergeAdvice(fin, init)
	})
	if res.Failed() {
		return nil, res
	}
	return child, res
}

// Choices returns the candidate targets of the field.
func (f *InvidField) Choices() []ref.Ref {
	if list, ok := f.hooks().ObtainChoiceList(f); ok {
		return list
	}
	return f.owner.store.Refs(f.def.TargetType)
}

// ChoicesKey returns a cache key for Choices. It hashes the candidate
// list, and for the default list also the target type's generation, so it
// changes whenever an object of the target type is created or deleted.
func (f *InvidField) ChoicesKey() string {
	d := xxhash.New()
	list, ok := f.hooks().ObtainChoiceList(f)
	if !ok {
		gen := f.owner.store.Generation(f.def.TargetType)
		fmt.Fprintf(d, "%d/%d/", f.def.TargetType, gen)
		list = f.owner.store.Refs(f.def.TargetType)
	}
	for _, r := range list {
		_, _ = d.Write(r.Bytes())
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Verify audits the bindings of the field; see Store.VerifyAll.
func (f *InvidField) Verify() error {
	return verifyInvid(f.owner, f, f.owner.lookup, f.owner.store.BackPointers)
}

func (f *InvidField) emit(d *dumper) error {
	if f.def.EditInPlace {
		return d.embedded(f, f.raw())
	}
	return d.refs(f, f.raw())
}
