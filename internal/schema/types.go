package schema

import (
	"errors"
	"fmt"
	"sort"
)

// Schema errors.
var (
	ErrUnknownKind       = errors.New("schema: unknown field kind")
	ErrUnknownType       = errors.New("schema: unknown object type")
	ErrUnknownField      = errors.New("schema: unknown field")
	ErrUnknownNamespace  = errors.New("schema: unknown namespace")
	ErrUnknownSyntax     = errors.New("schema: unknown syntax")
	ErrDuplicateType     = errors.New("schema: duplicate object type")
	ErrDuplicateField    = errors.New("schema: duplicate field")
	ErrReservedCode      = errors.New("schema: reserved field code")
	ErrInconsistent      = errors.New("schema: inconsistent definition")
	ErrSchemaFileMissing = errors.New("schema: schema file not found")
)

// NamespaceDef declares a uniqueness domain.
type NamespaceDef struct {
	Name            string
	CaseInsensitive bool
}

// Schema holds every object type, namespace and string syntax of a store.
type Schema struct {
	types      map[uint16]*ObjectType
	byName     map[string]*ObjectType
	Namespaces map[string]*NamespaceDef
	Syntaxes   map[string]*Syntax
}

// NewSchema creates an empty Schema with the built-in syntaxes registered.
func NewSchema() *Schema {
	s := &Schema{
		types:      make(map[uint16]*ObjectType),
		byName:     make(map[string]*ObjectType),
		Namespaces: make(map[string]*NamespaceDef),
		Syntaxes:   make(map[string]*Syntax),
	}
	for _, syn := range builtinSyntaxes() {
		s.AddSyntax(syn)
	}
	return s
}

// AddObjectType registers an object type by ID and name.
func (s *Schema) AddObjectType(ot *ObjectType) error {
	if ot.ID == 0 {
		return fmt.Errorf("%w: type %q has id 0", ErrReservedCode, ot.Name)
	}
	if _, exists := s.types[ot.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateType, ot.ID)
	}
	if _, exists := s.byName[ot.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, ot.Name)
	}
	s.types[ot.ID] = ot
	s.byName[ot.Name] = ot
	return nil
}

// AddNamespace registers a namespace.
func (s *Schema) AddNamespace(ns *NamespaceDef) {
	s.Namespaces[ns.Name] = ns
}

// AddSyntax registers a string syntax.
func (s *Schema) AddSyntax(syn *Syntax) {
	s.Syntaxes[syn.Name] = syn
}

// ObjectType returns the type with the given id, or nil.
func (s *Schema) ObjectType(id uint16) *ObjectType {
	return s.types[id]
}

// ObjectTypeByName returns the type with the given name, or nil.
func (s *Schema) ObjectTypeByName(name string) *ObjectType {
	return s.byName[name]
}

// ObjectTypes returns all types ordered by id.
func (s *Schema) ObjectTypes() []*ObjectType {
	list := make([]*ObjectType, 0, len(s.types))
	for _, ot := range s.types {
		list = append(list, ot)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Field returns the definition of field code on type typeID, or nil.
func (s *Schema) Field(typeID, code uint16) *FieldDef {
	ot := s.types[typeID]
	if ot == nil {
		return nil
	}
	return ot.Field(code)
}

// Syntax returns the syntax with the given name, or nil.
func (s *Schema) Syntax(name string) *Syntax {
	return s.Syntaxes[name]
}

// Resolve binds reference field targets and mirrors given by name to
// type ids and field codes.
func (s *Schema) Resolve() error {
	for _, ot := range s.ObjectTypes() {
		for _, fd := range ot.Fields() {
			if fd.targetName != "" {
				target := s.byName[fd.targetName]
				if target == nil {
					return fmt.Errorf("%w: %s.%s targets %q", ErrUnknownType, ot.Name, fd.Name, fd.targetName)
				}
				fd.TargetType = target.ID
			}
			if fd.mirrorName != "" {
				target := s.types[fd.TargetType]
				if target == nil {
					return fmt.Errorf("%w: %s.%s has a mirror but no target type", ErrInconsistent, ot.Name, fd.Name)
				}
				mirror := target.FieldByName(fd.mirrorName)
				if mirror == nil {
					return fmt.Errorf("%w: %s.%s mirror %s.%s", ErrUnknownField, ot.Name, fd.Name, target.Name, fd.mirrorName)
				}
				fd.Mirror = mirror.Code
				fd.Symmetric = true
			}
		}
	}
	return nil
}
