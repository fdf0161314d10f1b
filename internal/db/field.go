package db

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/namespace"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// Field is one field value of an object. The concrete variants are
// BooleanField, NumericField, FloatField, DateField, StringField, IPField,
// InvidField, PasswordField, PermissionField and FieldOptionsField.
type Field interface {
	Code() uint16
	Name() string
	Def() *schema.FieldDef
	Owner() *Object
	IsVector() bool
	IsDefined() bool
	Len() int

	// Value and Values are the permission-checked read accessors. Value
	// returns nil for an undefined scalar.
	Value() (any, *Result)
	Values() ([]any, *Result)

	// Checkpoint copies the value state; Restore puts a copy back in place.
	Checkpoint() Snapshot
	Restore(Snapshot)

	// Equal reports whether other is the same variant holding equal values
	// in the same order.
	Equal(other Field) bool
	// Diff describes the change from original, or returns "" if none.
	Diff(original Field) string

	base() *baseField
	clone(owner *Object) Field
	nsValues() []string
	encode(w *fieldWriter) error
	decode(r *fieldReader) error
	emit(d *dumper) error
}

// Snapshot is the saved value state of a field.
type Snapshot struct {
	state any
}

// baseField holds what every variant shares. mu guards the value state of
// the embedding variant and is held only around reads and swaps.
type baseField struct {
	def   *schema.FieldDef
	owner *Object
	self  Field
	mu    sync.Mutex
}

func (b *baseField) base() *baseField { return b }

func (b *baseField) init(def *schema.FieldDef, owner *Object, self Field) {
	b.def = def
	b.owner = owner
	b.self = self
}

// Code returns the field code.
func (b *baseField) Code() uint16 { return b.def.Code }

// Name returns the field name.
func (b *baseField) Name() string { return b.def.Name }

// Def returns the shared field definition.
func (b *baseField) Def() *schema.FieldDef { return b.def }

// Owner returns the object holding the field.
func (b *baseField) Owner() *Object { return b.owner }

// IsVector reports whether the field holds a sequence.
func (b *baseField) IsVector() bool { return b.def.Vector }

func (b *baseField) label() string {
	return b.owner.String() + "." + b.def.Name
}

func (b *baseField) checkRead() *Result {
	if !b.owner.oracle().CanRead(b.owner, b.def.Code) {
		return fail(PermissionDenied, "cannot read %s", b.label())
	}
	return nil
}

func (b *baseField) checkWrite() *Result {
	if !b.owner.editable() {
		return fail(NotEditable, "%s is not checked out for editing", b.owner)
	}
	if b.def.ReadOnly {
		return fail(NotEditable, "%s is read-only", b.label())
	}
	if !b.owner.oracle().CanWrite(b.owner, b.def.Code) {
		return fail(NotEditable, "no permission to edit %s", b.label())
	}
	return nil
}

func (b *baseField) checkVector(want bool) *Result {
	if b.def.Vector != want {
		if want {
			return fail(InvalidValue, "%s is a scalar field", b.label())
		}
		return fail(InvalidValue, "%s is a vector field", b.label())
	}
	return nil
}

func (b *baseField) hooks() Hooks {
	return b.owner.hooks()
}

func (b *baseField) editSet() *EditSet {
	return b.owner.editSet
}

// finalize asks the owning type's hook to approve a change.
func (b *baseField) finalize(op Op, values []any) *Result {
	r := b.hooks().Finalize(b.self, op, values)
	if r.OK() {
		return r
	}
	if r.Code == VetoedByPlugin {
		return r
	}
	return &Result{Code: VetoedByPlugin, Message: r.Message, Cause: r.Err()}
}

func (b *baseField) verifyHook(value any) (any, *Result) {
	return b.hooks().VerifyNewValue(b.self, value)
}

func (b *baseField) namespace() *namespace.Namespace {
	if !b.def.HasNamespace() {
		return nil
	}
	ns, err := b.owner.store.namespaces.Get(b.def.Namespace)
	if err != nil {
		return nil
	}
	return ns
}

func (b *baseField) holder() namespace.Holder {
	return namespace.Holder{Ref: b.owner.ref, Field: b.def.Code}
}

func (b *baseField) mark(key string) *Result {
	ns := b.namespace()
	if ns == nil {
		return nil
	}
	if err := ns.Mark(b.editSet().id, key, b.holder()); err != nil {
		return namespaceFailure(err)
	}
	return nil
}

func (b *baseField) unmark(key string) {
	ns := b.namespace()
	if ns == nil {
		return
	}
	if err := ns.Unmark(b.editSet().id, key, b.holder()); err != nil && !errors.Is(err, namespace.ErrNotHeld) {
		b.owner.store.log.Warn("namespace unmark failed", "field", b.label(), "error", err)
	}
}

// remark moves the reservation from oldKey to newKey, unmarking first.
// On failure the old reservation is restored.
func (b *baseField) remark(oldKey string, hadOld bool, newKey string) *Result {
	if b.namespace() == nil {
		return nil
	}
	if hadOld {
		b.unmark(oldKey)
	}
	if r := b.mark(newKey); r != nil {
		if hadOld {
			_ = b.mark(oldKey)
		}
		return r
	}
	return nil
}

func namespaceFailure(err error) *Result {
	var conflict *namespace.ConflictError
	if errors.As(err, &conflict) {
		return failCause(NamespaceConflict, err, "%s", conflict.Error())
	}
	return failCause(NamespaceConflict, err, "%v", err)
}

func mismatch(b *baseField, v any) *Result {
	return fail(TypeMismatch, "%s does not accept %T", b.label(), v)
}

// newField creates the empty field value for def.
func newField(def *schema.FieldDef, owner *Object) Field {
	switch def.Kind {
	case schema.KindBoolean:
		return newBooleanField(def, owner)
	case schema.KindNumeric:
		return newNumericField(def, owner)
	case schema.KindFloat:
		return newFloatField(def, owner)
	case schema.KindDate:
		return newDateField(def, owner)
	case schema.KindString:
		return newStringField(def, owner)
	case schema.KindIP:
		return newIPField(def, owner)
	case schema.KindInvid:
		return newInvidField(def, owner)
	case schema.KindPassword:
		return newPasswordField(def, owner)
	case schema.KindPermission:
		return newPermissionField(def, owner)
	case schema.KindFieldOptions:
		return newFieldOptionsField(def, owner)
	default:
		panic(fmt.Sprintf("db: field %s has unknown kind %d", def.Name, def.Kind))
	}
}
