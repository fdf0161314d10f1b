package schema

import (
	"fmt"
	"sort"
)

// ObjectType defines the fields that objects of one type carry.
type ObjectType struct {
	ID       uint16
	Name     string
	Desc     string
	Embedded bool   // objects live inside a container object
	Label    string // name of the field used as a display label

	fields map[uint16]*FieldDef
	byName map[string]*FieldDef
}

// NewObjectType creates a new ObjectType. Embedded types are given the
// reserved container field.
func NewObjectType(id uint16, name string, embedded bool) *ObjectType {
	ot := &ObjectType{
		ID:       id,
		Name:     name,
		Embedded: embedded,
		fields:   make(map[uint16]*FieldDef),
		byName:   make(map[string]*FieldDef),
	}
	if embedded {
		container := NewFieldDef(ContainerField, "container", KindInvid)
		container.ReadOnly = true
		ot.fields[ContainerField] = container
		ot.byName[container.Name] = container
	}
	return ot
}

// AddField adds a field definition. Codes and names must be unique within
// the type, and the reserved codes cannot be used.
func (ot *ObjectType) AddField(fd *FieldDef) error {
	if fd.Code == ContainerField || fd.Code == ObjectField {
		return fmt.Errorf("%w: %s.%s uses reserved code %d", ErrReservedCode, ot.Name, fd.Name, fd.Code)
	}
	if _, exists := ot.fields[fd.Code]; exists {
		return fmt.Errorf("%w: %s code %d", ErrDuplicateField, ot.Name, fd.Code)
	}
	if _, exists := ot.byName[fd.Name]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateField, ot.Name, fd.Name)
	}
	ot.fields[fd.Code] = fd
	ot.byName[fd.Name] = fd
	return nil
}

// Field returns the definition with the given code, or nil.
func (ot *ObjectType) Field(code uint16) *FieldDef {
	return ot.fields[code]
}

// FieldByName returns the definition with the given name, or nil.
func (ot *ObjectType) FieldByName(name string) *FieldDef {
	return ot.byName[name]
}

// Fields returns all definitions ordered by code.
func (ot *ObjectType) Fields() []*FieldDef {
	list := make([]*FieldDef, 0, len(ot.fields))
	for _, fd := range ot.fields {
		list = append(list, fd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

// LabelField returns the label field definition, or nil.
func (ot *ObjectType) LabelField() *FieldDef {
	if ot.Label == "" {
		return nil
	}
	return ot.byName[ot.Label]
}
