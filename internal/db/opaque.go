package db

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/KilimcininKorOglu/obastore/internal/acl"
	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// PermKey addresses a field of an object type. Field schema.ObjectField
// addresses the type as a whole.
type PermKey struct {
	Type  uint16
	Field uint16
}

// String returns "type:field".
func (k PermKey) String() string {
	return fmt.Sprintf("%d:%d", k.Type, k.Field)
}

func comparePermKeys(a, b PermKey) int {
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	return int(a.Field) - int(b.Field)
}

// PermissionMatrix grants rights per type and field. The store keeps it
// as an opaque value.
type PermissionMatrix map[PermKey]acl.Right

// FieldOptions maps types and fields to option strings, kept opaque.
type FieldOptions map[PermKey]string

// PermissionField holds a PermissionMatrix.
type PermissionField struct {
	typedField[PermissionMatrix]
}

var permissionOps = kindOps[PermissionMatrix]{
	coerce: func(b *baseField, v any) (PermissionMatrix, *Result) {
		x, ok := v.(PermissionMatrix)
		if !ok {
			return nil, mismatch(b, v)
		}
		return maps.Clone(x), nil
	},
	empty: func(v any) bool {
		x, ok := v.(PermissionMatrix)
		return ok && len(x) == 0
	},
	check: func(_ *baseField, v PermissionMatrix) (PermissionMatrix, *Result) { return v, nil },
	equal: func(a, b PermissionMatrix) bool { return maps.Equal(a, b) },
	clone: func(v PermissionMatrix) PermissionMatrix { return maps.Clone(v) },
	format: func(v PermissionMatrix) string {
		keys := slices.SortedFunc(maps.Keys(v), comparePermKeys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k.String() + "=" + v[k].String()
		}
		return strings.Join(parts, ",")
	},
	marshal: func(v PermissionMatrix, _ int) []byte {
		var b []byte
		for _, k := range slices.SortedFunc(maps.Keys(v), comparePermKeys) {
			var entry []byte
			entry = appendKey(entry, k)
			entry = protowire.AppendTag(entry, 3, protowire.VarintType)
			entry = protowire.AppendVarint(entry, uint64(v[k]))
			b = protowire.AppendTag(b, 1, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}
		return b
	},
	unmarshal: func(data []byte, _ int) (PermissionMatrix, error) {
		m := make(PermissionMatrix)
		err := consumeEntries(data, func(k PermKey, n uint64, _ []byte) {
			m[k] = acl.Right(n)
		})
		return m, err
	},
}

func newPermissionField(def *schema.FieldDef, owner *Object) *PermissionField {
	f := &PermissionField{}
	f.setup(def, owner, f, &permissionOps)
	return f
}

func (f *PermissionField) clone(owner *Object) Field {
	c := newPermissionField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

// FieldOptionsField holds FieldOptions.
type FieldOptionsField struct {
	typedField[FieldOptions]
}

var fieldOptionsOps = kindOps[FieldOptions]{
	coerce: func(b *baseField, v any) (FieldOptions, *Result) {
		x, ok := v.(FieldOptions)
		if !ok {
			return nil, mismatch(b, v)
		}
		return maps.Clone(x), nil
	},
	empty: func(v any) bool {
		x, ok := v.(FieldOptions)
		return ok && len(x) == 0
	},
	check: func(_ *baseField, v FieldOptions) (FieldOptions, *Result) { return v, nil },
	equal: func(a, b FieldOptions) bool { return maps.Equal(a, b) },
	clone: func(v FieldOptions) FieldOptions { return maps.Clone(v) },
	format: func(v FieldOptions) string {
		keys := slices.SortedFunc(maps.Keys(v), comparePermKeys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k.String() + "=" + v[k]
		}
		return strings.Join(parts, ",")
	},
	marshal: func(v FieldOptions, _ int) []byte {
		var b []byte
		for _, k := range slices.SortedFunc(maps.Keys(v), comparePermKeys) {
			var entry []byte
			entry = appendKey(entry, k)
			entry = protowire.AppendTag(entry, 3, protowire.BytesType)
			entry = protowire.AppendString(entry, v[k])
			b = protowire.AppendTag(b, 1, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}
		return b
	},
	unmarshal: func(data []byte, _ int) (FieldOptions, error) {
		m := make(FieldOptions)
		err := consumeEntries(data, func(k PermKey, _ uint64, s []byte) {
			m[k] = string(s)
		})
		return m, err
	},
}

func newFieldOptionsField(def *schema.FieldDef, owner *Object) *FieldOptionsField {
	f := &FieldOptionsField{}
	f.setup(def, owner, f, &fieldOptionsOps)
	return f
}

func (f *FieldOptionsField) clone(owner *Object) Field {
	c := newFieldOptionsField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

func appendKey(b []byte, k PermKey) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Type))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Field))
	return b
}

// consumeEntries walks repeated {1: type, 2: field, 3: value} messages.
func consumeEntries(data []byte, fn func(k PermKey, n uint64, s []byte)) error {
	for len(data) > 0 {
		num, typ, l := protowire.ConsumeTag(data)
		if l < 0 || num != 1 || typ != protowire.BytesType {
			return ErrCorruptRecord
		}
		data = data[l:]
		entry, l := protowire.ConsumeBytes(data)
		if l < 0 {
			return ErrCorruptRecord
		}
		data = data[l:]

		var k PermKey
		var n uint64
		var s []byte
		for len(entry) > 0 {
			num, typ, l := protowire.ConsumeTag(entry)
			if l < 0 {
				return ErrCorruptRecord
			}
			entry = entry[l:]
			switch {
			case num == 3 && typ == protowire.BytesType:
				s, l = protowire.ConsumeBytes(entry)
			case typ == protowire.VarintType:
				var v uint64
				v, l = protowire.ConsumeVarint(entry)
				switch num {
				case 1:
					k.Type = uint16(v)
				case 2:
					k.Field = uint16(v)
				case 3:
					n = v
				}
			default:
				l = protowire.ConsumeFieldValue(num, typ, entry)
			}
			if l < 0 {
				return ErrCorruptRecord
			}
			entry = entry[l:]
		}
		fn(k, n, s)
	}
	return nil
}
