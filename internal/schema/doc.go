// Package schema provides the object type and field definitions of the
// object store.
//
// # Overview
//
// A Schema contains:
//
//   - Object types, each with a set of field definitions keyed by code
//   - Namespaces: uniqueness domains shared by fields
//   - Syntaxes: named format checks for string fields
//
// Field definitions are shared, immutable metadata. Field values never
// carry a copy; they look their definition up by type id and field code.
//
// # Field Kinds
//
//   - boolean, numeric, float, date: scalar values
//   - string, ip: scalar or vector, optionally namespace-unique
//   - invid: references to other objects, scalar or vector
//   - password: a secret stored as one or more hashes
//   - permission, fieldOptions: opaque values
//
// # References
//
// A reference field is symmetric when it names a mirror field on its target
// type; the store keeps both sides consistent. Without a mirror the field
// is asymmetric and the store indexes back-pointers instead. An
// edit-in-place field owns embedded objects, which carry the reserved
// ContainerField pointing back at their container.
//
// # Loading
//
// Schemas are written in YAML:
//
//	s, err := schema.LoadSchema("schema.yaml")
//	if err != nil {
//	    // errors.Is(err, schema.ErrInconsistent) for mirror mismatches
//	}
//
// LoadSchemaFromYAML resolves target types and mirror fields by name, then
// runs Validate, which reports every inconsistency at once.
package schema
