package db

import (
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Op tags the mutation passed to Hooks.Finalize.
type Op int

const (
	OpSet Op = iota + 1
	OpAdd
	OpAddMany
	OpDelete
	OpDeleteMany
	OpSetElement
	OpSetPassword
)

// String returns the name of the operation.
func (op Op) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpAddMany:
		return "addMany"
	case OpDelete:
		return "delete"
	case OpDeleteMany:
		return "deleteMany"
	case OpSetElement:
		return "setElement"
	case OpSetPassword:
		return "setPassword"
	default:
		return "unknown"
	}
}

// Hooks is the per-type plugin interface consulted by fields and edit
// sets. Hooks run with no store, edit set or field lock held and may edit
// other objects through the owning EditSet.
type Hooks interface {
	// VerifyNewValue may reject a value or return a canonical replacement.
	VerifyNewValue(f Field, value any) (any, *Result)

	// Finalize approves a change just before it is committed to the field.
	// A failed Result vetoes it.
	Finalize(f Field, op Op, values []any) *Result

	// AnonymousLinkOK allows source to link into target's mirror field
	// without write permission on target.
	AnonymousLinkOK(target *Object, mirror uint16, source *Object, field uint16) bool

	// AnonymousUnlinkOK is the unlink counterpart of AnonymousLinkOK.
	AnonymousUnlinkOK(target *Object, mirror uint16, source *Object, field uint16) bool

	// InitializeNewObject runs after an object is created.
	InitializeNewObject(obj *Object) *Result

	// RemoveObject approves deletion of obj.
	RemoveObject(obj *Object) *Result

	// ObtainChoiceList overrides the candidate list of a reference field.
	// ok is false to use the default list.
	ObtainChoiceList(f *InvidField) (choices []ref.Ref, ok bool)

	// CheckPasswordQuality is an external quality check for new passwords.
	CheckPasswordQuality(f *PasswordField, plaintext string) error
}

// BaseHooks accepts everything. Embed it to override single methods.
type BaseHooks struct{}

func (BaseHooks) VerifyNewValue(_ Field, value any) (any, *Result) { return value, nil }
func (BaseHooks) Finalize(Field, Op, []any) *Result { return nil }
func (BaseHooks) AnonymousLinkOK(*Object, uint16, *Object, uint16) bool {
	return false
}
func (BaseHooks) AnonymousUnlinkOK(*Object, uint16, *Object, uint16) bool {
	return false
}
func (BaseHooks) InitializeNewObject(*Object) *Result { return nil }
func (BaseHooks) RemoveObject(*Object) *Result { return nil }
func (BaseHooks) ObtainChoiceList(*InvidField) ([]ref.Ref, bool) { return nil, false }
func (BaseHooks) CheckPasswordQuality(*PasswordField, string) error { return nil }
