package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// Status is the edit state of an object.
type Status int

const (
	StatusCommitted Status = iota
	StatusEditing
	StatusCreated
	StatusDeleting
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusEditing:
		return "editing"
	case StatusCreated:
		return "created"
	case StatusDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// Object is a typed set of fields identified by a Ref. Objects reached
// through an EditSet are private copies; the committed object is
// replaced when the EditSet commits.
type Object struct {
	ref    ref.Ref
	typ    *schema.ObjectType
	store  *Store
	sess   *Session
	fields map[uint16]Field

	mu      sync.Mutex
	status  Status
	editSet *EditSet
}

func newObject(s *Store, r ref.Ref, ot *schema.ObjectType, status Status) *Object {
	o := &Object{
		ref:    r,
		typ:    ot,
		store:  s,
		status: status,
		fields: make(map[uint16]Field),
	}
	for _, fd := range ot.Fields() {
		o.fields[fd.Code] = newField(fd, o)
	}
	return o
}

// copyFor returns a deep copy of o bound to an edit set or session.
func (o *Object) copyFor(status Status, es *EditSet, sess *Session) *Object {
	c := &Object{
		ref:     o.ref,
		typ:     o.typ,
		store:   o.store,
		sess:    sess,
		fields:  make(map[uint16]Field, len(o.fields)),
		status:  status,
		editSet: es,
	}
	for code, f := range o.fields {
		c.fields[code] = f.clone(c)
	}
	return c
}

// Ref returns the object's identifier.
func (o *Object) Ref() ref.Ref { return o.ref }

// Type returns the object's type.
func (o *Object) Type() *schema.ObjectType { return o.typ }

// Status returns the edit state.
func (o *Object) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Object) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

func (o *Object) currentEditSet() *EditSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.editSet
}

// detach turns an edited copy into the committed object.
func (o *Object) detach() {
	o.mu.Lock()
	o.status = StatusCommitted
	o.editSet = nil
	o.mu.Unlock()
}

// String returns "type[ref]".
func (o *Object) String() string {
	return fmt.Sprintf("%s[%s]", o.typ.Name, o.ref)
}

// Label returns the value of the type's label field, or the ref.
func (o *Object) Label() string {
	if fd := o.typ.LabelField(); fd != nil {
		if sf, ok := o.fields[fd.Code].(*StringField); ok {
			if v, ok := sf.current(); ok {
				return v
			}
		}
	}
	return o.ref.String()
}

// Field returns the field with the given code, or nil.
func (o *Object) Field(code uint16) Field {
	return o.fields[code]
}

// FieldByName returns the named field, or nil.
func (o *Object) FieldByName(name string) Field {
	fd := o.typ.FieldByName(name)
	if fd == nil {
		return nil
	}
	return o.fields[fd.Code]
}

// Fields returns every field ordered by code.
func (o *Object) Fields() []Field {
	list := make([]Field, 0, len(o.fields))
	for _, f := range o.fields {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code() < list[j].Code() })
	return list
}

// FieldAs returns the named field as variant F. ok is false if the field
// does not exist or is another variant.
func FieldAs[F Field](o *Object, name string) (f F, ok bool) {
	field := o.FieldByName(name)
	if field == nil {
		return f, false
	}
	f, ok = field.(F)
	return f, ok
}

// Container returns the ref of the containing object of an embedded object.
func (o *Object) Container() (ref.Ref, bool) {
	if !o.typ.Embedded {
		return ref.Ref{}, false
	}
	cf, ok := o.fields[schema.ContainerField].(*InvidField)
	if !ok {
		return ref.Ref{}, false
	}
	return cf.current()
}

// Diff describes every field change from original, one line per field.
func (o *Object) Diff(original *Object) []string {
	var out []string
	for _, f := range o.Fields() {
		var before Field
		if original != nil {
			before = original.fields[f.Code()]
		}
		if before == nil {
			before = newField(f.Def(), o)
		}
		if d := f.Diff(before); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func (o *Object) editable() bool {
	o.mu.Lock()
	status, es := o.status, o.editSet
	o.mu.Unlock()
	if es == nil || es.isClosed() {
		return false
	}
	return status == StatusEditing || status == StatusCreated
}

func (o *Object) session() *Session {
	if o.sess != nil {
		return o.sess
	}
	if es := o.currentEditSet(); es != nil {
		return es.sess
	}
	return nil
}

func (o *Object) oracle() PermissionOracle {
	if sess := o.session(); sess != nil && sess.oracle != nil {
		return sess.oracle
	}
	return AllowAll{}
}

func (o *Object) privileged() bool {
	sess := o.session()
	return sess == nil || sess.privileged
}

func (o *Object) hooks() Hooks {
	return o.store.hooksFor(o.typ.ID)
}

// lookup resolves r as seen from o: the edit set's copy when o is being
// edited, otherwise the committed object.
func (o *Object) lookup(r ref.Ref) *Object {
	if es := o.currentEditSet(); es != nil {
		if obj := es.object(r); obj != nil {
			return obj
		}
	}
	return o.store.get(r)
}

// containerTypes lists the type names of o's containers, innermost first.
func (o *Object) containerTypes() []string {
	var names []string
	cur := o
	for depth := 0; depth < 16; depth++ {
		c, ok := cur.Container()
		if !ok {
			break
		}
		next := o.lookup(c)
		if next == nil {
			break
		}
		names = append(names, next.typ.Name)
		cur = next
	}
	return names
}
