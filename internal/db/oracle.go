package db

import (
	"github.com/KilimcininKorOglu/obastore/internal/acl"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// PermissionOracle decides field access for a session. The field code
// schema.ObjectField stands for the object as a whole.
type PermissionOracle interface {
	CanRead(obj *Object, field uint16) bool
	CanWrite(obj *Object, field uint16) bool
}

// AllowAll grants every access. It is the oracle of internal sessions.
type AllowAll struct{}

// CanRead implements PermissionOracle.
func (AllowAll) CanRead(*Object, uint16) bool { return true }

// CanWrite implements PermissionOracle.
func (AllowAll) CanWrite(*Object, uint16) bool { return true }

// ACLOracle answers permission questions for one persona from ACL rules.
type ACLOracle struct {
	eval    *acl.Evaluator
	persona acl.Persona
}

// NewACLOracle creates an oracle for persona.
func NewACLOracle(eval *acl.Evaluator, persona acl.Persona) *ACLOracle {
	return &ACLOracle{eval: eval, persona: persona}
}

// CanRead implements PermissionOracle.
func (o *ACLOracle) CanRead(obj *Object, field uint16) bool {
	return o.check(obj, field, acl.Read)
}

// CanWrite implements PermissionOracle. Object-level writes on created
// and deleted objects need the create and delete rights.
func (o *ACLOracle) CanWrite(obj *Object, field uint16) bool {
	op := acl.Write
	if field == schema.ObjectField {
		switch obj.Status() {
		case StatusCreated:
			op = acl.Create
		case StatusDeleting:
			op = acl.Delete
		}
	}
	return o.check(obj, field, op)
}

func (o *ACLOracle) check(obj *Object, field uint16, op acl.Right) bool {
	ctx := acl.NewAccessContext(o.persona, obj.Type().Name, obj.Ref(), op).
		WithContainers(obj.containerTypes()...)
	if field == schema.ObjectField {
		return o.eval.CheckAccess(ctx)
	}
	fd := obj.Type().Field(field)
	if fd == nil {
		return false
	}
	return o.eval.CheckFieldAccess(ctx, fd.Name)
}
