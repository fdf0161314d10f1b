package db

import (
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// kindOps describes the values of one field kind.
type kindOps[T any] struct {
	// coerce converts a caller value, failing with TypeMismatch.
	coerce func(b *baseField, v any) (T, *Result)
	// empty reports caller values that clear a scalar.
	empty func(v any) bool
	// check applies the definition constraints and may canonicalize.
	check  func(b *baseField, v T) (T, *Result)
	equal  func(a, b T) bool
	clone  func(T) T
	format func(T) string

	marshal   func(v T, version int) []byte
	unmarshal func(data []byte, version int) (T, error)
}

// typedField implements the value handling shared by every variant except
// PasswordField. A scalar holds at most one value.
type typedField[T any] struct {
	baseField
	ops    *kindOps[T]
	values []T
}

func (f *typedField[T]) setup(def *schema.FieldDef, owner *Object, self Field, ops *kindOps[T]) {
	f.init(def, owner, self)
	f.ops = ops
}

func (f *typedField[T]) raw() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.values...)
}

func (f *typedField[T]) current() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		var zero T
		return zero, false
	}
	return f.values[0], true
}

func (f *typedField[T]) copyValues(vals []T) []T {
	if len(vals) == 0 {
		return nil
	}
	out := make([]T, len(vals))
	for i, v := range vals {
		if f.ops.clone != nil {
			v = f.ops.clone(v)
		}
		out[i] = v
	}
	return out
}

func (f *typedField[T]) indexIn(vals []T, v T, skip int) int {
	for i, x := range vals {
		if i != skip && f.ops.equal(x, v) {
			return i
		}
	}
	return -1
}

// duplicateIn is indexIn under the owning namespace's notion of equality,
// so values reserved under one key never share a field.
func (f *typedField[T]) duplicateIn(vals []T, v T, skip int) int {
	ns := f.namespace()
	if ns == nil || !ns.CaseInsensitive() {
		return f.indexIn(vals, v, skip)
	}
	key := ns.Key(f.ops.format(v))
	for i, x := range vals {
		if i != skip && ns.Key(f.ops.format(x)) == key {
			return i
		}
	}
	return -1
}

// IsDefined reports whether the field holds a value.
func (f *typedField[T]) IsDefined() bool {
	return f.Len() > 0
}

// Len returns the number of values held.
func (f *typedField[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

// Value returns the scalar value, or nil if undefined.
func (f *typedField[T]) Value() (any, *Result) {
	if r := f.checkRead(); r != nil {
		return nil, r
	}
	v, ok := f.current()
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Values returns every value in order.
func (f *typedField[T]) Values() ([]any, *Result) {
	if r := f.checkRead(); r != nil {
		return nil, r
	}
	return toAny(f.raw()), nil
}

// Get returns the typed scalar value. ok is false when undefined.
func (f *typedField[T]) Get() (v T, ok bool, r *Result) {
	if r := f.checkRead(); r != nil {
		return v, false, r
	}
	v, ok = f.current()
	return v, ok, nil
}

// All returns the typed values in order.
func (f *typedField[T]) All() ([]T, *Result) {
	if r := f.checkRead(); r != nil {
		return nil, r
	}
	return f.copyValues(f.raw()), nil
}

// Checkpoint implements Field.
func (f *typedField[T]) Checkpoint() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{state: f.copyValues(f.values)}
}

// Restore implements Field.
func (f *typedField[T]) Restore(s Snapshot) {
	vals, _ := s.state.([]T)
	vals = f.copyValues(vals)
	f.mu.Lock()
	f.values = vals
	f.mu.Unlock()
}

// Equal implements Field.
func (f *typedField[T]) Equal(other Field) bool {
	o, ok := other.(interface{ raw() []T })
	if !ok || other.Def().Kind != f.def.Kind {
		return false
	}
	a, b := f.raw(), o.raw()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !f.ops.equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Diff implements Field.
func (f *typedField[T]) Diff(original Field) string {
	var before []T
	if o, ok := original.(interface{ raw() []T }); ok {
		before = o.raw()
	}
	after := f.raw()

	if !f.def.Vector {
		if f.sameValues(before, after) {
			return ""
		}
		return fmt.Sprintf("%s: %s -> %s", f.def.Name, f.formatOne(before), f.formatOne(after))
	}

	var added, removed []string
	for _, v := range after {
		if f.indexIn(before, v, -1) < 0 {
			added = append(added, f.ops.format(v))
		}
	}
	for _, v := range before {
		if f.indexIn(after, v, -1) < 0 {
			removed = append(removed, f.ops.format(v))
		}
	}
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "added ["+strings.Join(added, ", ")+"]")
	}
	if len(removed) > 0 {
		parts = append(parts, "removed ["+strings.Join(removed, ", ")+"]")
	}
	if len(parts) == 0 {
		if f.sameValues(before, after) {
			return ""
		}
		parts = append(parts, "reordered")
	}
	return f.def.Name + ": " + strings.Join(parts, "; ")
}

func (f *typedField[T]) sameValues(a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !f.ops.equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (f *typedField[T]) formatOne(vals []T) string {
	if len(vals) == 0 {
		return "<unset>"
	}
	return f.ops.format(vals[0])
}

func (f *typedField[T]) nsValues() []string {
	if !f.def.HasNamespace() {
		return nil
	}
	vals := f.raw()
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = f.ops.format(v)
	}
	return out
}

// prepare coerces v and runs the definition check and the type's
// VerifyNewValue hook. The returned Result may carry an advisory.
func (f *typedField[T]) prepare(v any) (T, *Result) {
	val, r := f.ops.coerce(&f.baseField, v)
	if r != nil {
		return val, r
	}
	val, r = f.ops.check(&f.baseField, val)
	if r != nil {
		return val, r
	}
	out, r := f.verifyHook(val)
	if r.Failed() {
		return val, r
	}
	if canon, ok := out.(T); ok {
		val = canon
	} else if out != nil {
		var rr *Result
		if val, rr = f.ops.coerce(&f.baseField, out); rr != nil {
			return val, rr
		}
	}
	return val, r
}

// Set replaces the value of a scalar field. A nil value clears it.
func (f *typedField[T]) Set(v any) *Result {
	if r := f.checkVector(false); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	old, had := f.current()
	if v == nil || (f.ops.empty != nil && f.ops.empty(v)) {
		return f.clear(old, had)
	}

	val, r := f.ops.coerce(&f.baseField, v)
	if r != nil {
		return r
	}
	if had && f.ops.equal(old, val) {
		return nil
	}
	val, advice := f.prepare(val)
	if advice.Failed() {
		return advice
	}
	if had && f.ops.equal(old, val) {
		return advice
	}

	if r := f.remark(f.ops.format(old), had, f.ops.format(val)); r != nil {
		return r
	}
	fin := f.finalize(OpSet, []any{val})
	if fin.Failed() {
		f.unmark(f.ops.format(val))
		if had {
			_ = f.mark(f.ops.format(old))
		}
		return fin
	}

	f.mu.Lock()
	f.values = []T{val}
	f.mu.Unlock()
	return mergeAdvice(advice, fin)
}

func (f *typedField[T]) clear(old T, had bool) *Result {
	if !had {
		return nil
	}
	f.unmark(f.ops.format(old))
	fin := f.finalize(OpSet, nil)
	if fin.Failed() {
		_ = f.mark(f.ops.format(old))
		return fin
	}
	f.mu.Lock()
	f.values = nil
	f.mu.Unlock()
	return fin
}

// AddElement appends a value to a vector field.
func (f *typedField[T]) AddElement(v any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	val, advice := f.prepare(v)
	if advice.Failed() {
		return advice
	}
	vals := f.raw()
	if f.duplicateIn(vals, val, -1) >= 0 {
		return fail(DuplicateValue, "%s already contains %s", f.label(), f.ops.format(val))
	}
	if max := f.def.MaxSize; max > 0 && len(vals) >= max {
		return fail(CapacityExceeded, "%s holds at most %d values", f.label(), max)
	}
	key := f.ops.format(val)
	if r := f.mark(key); r != nil {
		return r
	}
	fin := f.finalize(OpAdd, []any{val})
	if fin.Failed() {
		f.unmark(key)
		return fin
	}

	f.mu.Lock()
	f.values = append(f.values, val)
	f.mu.Unlock()
	return mergeAdvice(advice, fin)
}

// DeleteElement removes the value at index.
func (f *typedField[T]) DeleteElement(index int) *Result {
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
	return f.deleteValue(vals[index])
}

// DeleteValue removes v from a vector field.
func (f *typedField[T]) DeleteValue(v any) *Result {
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
		return fail(NoSuchValue, "%s does not contain %s", f.label(), f.ops.format(val))
	}
	return f.deleteValue(val)
}

func (f *typedField[T]) deleteValue(val T) *Result {
	key := f.ops.format(val)
	f.unmark(key)
	fin := f.finalize(OpDelete, []any{val})
	if fin.Failed() {
		_ = f.mark(key)
		return fin
	}
	f.mu.Lock()
	if i := f.indexIn(f.values, val, -1); i >= 0 {
		f.values = append(f.values[:i:i], f.values[i+1:]...)
	}
	f.mu.Unlock()
	return fin
}

// SetElement replaces the value at index.
func (f *typedField[T]) SetElement(index int, v any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
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
	if f.ops.equal(old, val) {
		return advice
	}
	if f.duplicateIn(vals, val, index) >= 0 {
		return fail(DuplicateValue, "%s already contains %s", f.label(), f.ops.format(val))
	}
	oldKey, newKey := f.ops.format(old), f.ops.format(val)
	if r := f.remark(oldKey, true, newKey); r != nil {
		return r
	}
	fin := f.finalize(OpSetElement, []any{val})
	if fin.Failed() {
		_ = f.remark(newKey, true, oldKey)
		return fin
	}

	f.mu.Lock()
	if i := f.indexIn(f.values, old, -1); i >= 0 {
		f.values[i] = val
	}
	f.mu.Unlock()
	return mergeAdvice(advice, fin)
}

// AddElements appends values under one checkpoint. Without allowPartial
// any failure leaves the field untouched. With it, failing values are
// skipped and reported in an advisory, unless every value fails.
func (f *typedField[T]) AddElements(values []any, allowPartial bool) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if len(values) == 0 {
		return nil
	}

	return f.editSet().guard("add "+f.label(), func() *Result {
		var fails batchFailures
		current := f.raw()
		accepted := make([]T, 0, len(values))
		for _, v := range values {
			val, r := f.prepare(v)
			if r.Failed() {
				fails.add(r)
				continue
			}
			if f.duplicateIn(current, val, -1) >= 0 || f.duplicateIn(accepted, val, -1) >= 0 {
				fails.add(fail(DuplicateValue, "%s already contains %s", f.label(), f.ops.format(val)))
				continue
			}
			if max := f.def.MaxSize; max > 0 && len(current)+len(accepted) >= max {
				fails.add(fail(CapacityExceeded, "%s holds at most %d values", f.label(), max))
				continue
			}
			if r := f.mark(f.ops.format(val)); r != nil {
				fails.add(r)
				continue
			}
			accepted = append(accepted, val)
		}

		if !fails.empty() && (!allowPartial || len(accepted) == 0) {
			return fails.failure(len(values))
		}
		fin := f.finalize(OpAddMany, toAny(accepted))
		if fin.Failed() {
			return fin
		}

		f.mu.Lock()
		f.values = append(f.values, accepted...)
		f.mu.Unlock()

		if !fails.empty() {
			return mergeAdvice(fails.advisory(len(values)), fin)
		}
		return fin
	})
}

// DeleteElements removes every value under one checkpoint. Any value not
// present fails the whole batch.
func (f *typedField[T]) DeleteElements(values []any) *Result {
	if r := f.checkVector(true); r != nil {
		return r
	}
	if r := f.checkWrite(); r != nil {
		return r
	}
	if len(values) == 0 {
		return nil
	}

	return f.editSet().guard("delete "+f.label(), func() *Result {
		current := f.raw()
		doomed := make([]T, 0, len(values))
		for _, v := range values {
			val, r := f.ops.coerce(&f.baseField, v)
			if r != nil {
				return r
			}
			if f.indexIn(current, val, -1) < 0 || f.indexIn(doomed, val, -1) >= 0 {
				return fail(NoSuchValue, "%s does not contain %s", f.label(), f.ops.format(val))
			}
			f.unmark(f.ops.format(val))
			doomed = append(doomed, val)
		}
		fin := f.finalize(OpDeleteMany, toAny(doomed))
		if fin.Failed() {
			return fin
		}

		f.mu.Lock()
		kept := f.values[:0:0]
		for _, v := range f.values {
			if f.indexIn(doomed, v, -1) < 0 {
				kept = append(kept, v)
			}
		}
		f.values = kept
		f.mu.Unlock()
		return fin
	})
}

func (f *typedField[T]) copyFrom(src *typedField[T]) {
	vals := src.copyValues(src.raw())
	f.mu.Lock()
	f.values = vals
	f.mu.Unlock()
}

func (f *typedField[T]) encode(w *fieldWriter) error {
	for _, v := range f.raw() {
		w.values = append(w.values, f.ops.marshal(v, w.version))
	}
	return nil
}

func (f *typedField[T]) decode(r *fieldReader) error {
	vals := make([]T, 0, len(r.values))
	for _, data := range r.values {
		v, err := f.ops.unmarshal(data, r.version)
		if err != nil {
			return fmt.Errorf("%s: %w", f.def.Name, err)
		}
		vals = append(vals, v)
	}
	if !f.def.Vector && len(vals) > 1 {
		return fmt.Errorf("%s: %w: %d values in scalar field", f.def.Name, ErrCorruptRecord, len(vals))
	}
	f.mu.Lock()
	f.values = vals
	f.mu.Unlock()
	return nil
}

func (f *typedField[T]) emit(d *dumper) error {
	return d.values(f.self, f.formatted())
}

func (f *typedField[T]) formatted() []string {
	vals := f.raw()
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = f.ops.format(v)
	}
	return out
}

func toAny[T any](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
