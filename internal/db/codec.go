package db

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Record versions. Version 1 records carry no version tag, store
// references as text and dates in seconds.
const (
	codecLegacy  = 1
	codecCurrent = 2
)

// Codec errors.
var (
	ErrCorruptRecord         = errors.New("db: corrupt record")
	ErrUnsupportedVersion    = errors.New("db: unsupported record version")
	ErrUnknownType           = errors.New("db: record of unknown object type")
	ErrLegacyUnrepresentable = errors.New("db: value cannot be written in the legacy layout")
)

// Record layout:
//
//	1: version (varint, absent in version 1)
//	2: field (repeated message)
//	     1: code (varint)
//	     2: value (repeated bytes)
const (
	recVersionTag protowire.Number = 1
	recFieldTag   protowire.Number = 2
	fldCodeTag    protowire.Number = 1
	fldValueTag   protowire.Number = 2
)

// EncodeOptions controls record encoding.
type EncodeOptions struct {
	// Legacy writes the version 1 layout for readers that predate
	// version 2. Values it cannot express fail with
	// ErrLegacyUnrepresentable.
	Legacy bool
}

type fieldWriter struct {
	version int
	values  [][]byte
}

type fieldReader struct {
	version int
	values  [][]byte
}

func encodeObject(obj *Object, opts EncodeOptions) ([]byte, error) {
	version := codecCurrent
	var b []byte
	if opts.Legacy {
		version = codecLegacy
	} else {
		b = protowire.AppendTag(b, recVersionTag, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(version))
	}

	for _, f := range obj.Fields() {
		if !f.IsDefined() {
			continue
		}
		w := &fieldWriter{version: version}
		if err := f.encode(w); err != nil {
			return nil, fmt.Errorf("%s: %w", obj, err)
		}

		var msg []byte
		msg = protowire.AppendTag(msg, fldCodeTag, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(f.Code()))
		for _, v := range w.values {
			msg = protowire.AppendTag(msg, fldValueTag, protowire.BytesType)
			msg = protowire.AppendBytes(msg, v)
		}
		b = protowire.AppendTag(b, recFieldTag, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	return b, nil
}

func decodeObject(s *Store, r ref.Ref, data []byte) (*Object, error) {
	ot := s.schema.ObjectType(r.Type)
	if ot == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, r)
	}
	obj := newObject(s, r, ot, StatusCommitted)

	version := codecLegacy
	var fields [][]byte
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%s: %w", r, ErrCorruptRecord)
		}
		data = data[n:]
		switch {
		case num == recVersionTag && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			version = int(v)
		case num == recFieldTag && typ == protowire.BytesType:
			var msg []byte
			msg, n = protowire.ConsumeBytes(data)
			fields = append(fields, msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s: %w", r, ErrCorruptRecord)
		}
		data = data[n:]
	}
	if version != codecLegacy && version != codecCurrent {
		return nil, fmt.Errorf("%s: %w %d", r, ErrUnsupportedVersion, version)
	}

	for _, msg := range fields {
		code, values, err := consumeFieldMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r, err)
		}
		f := obj.fields[code]
		if f == nil {
			s.log.Warn("dropping value of unknown field", "object", obj.String(), "code", code)
			continue
		}
		if err := f.decode(&fieldReader{version: version, values: values}); err != nil {
			return nil, fmt.Errorf("%s: %w", r, err)
		}
	}
	return obj, nil
}

func consumeFieldMessage(b []byte) (code uint16, values [][]byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, ErrCorruptRecord
		}
		b = b[n:]
		switch {
		case num == fldCodeTag && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			code = uint16(v)
		case num == fldValueTag && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			values = append(values, v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, nil, ErrCorruptRecord
		}
		b = b[n:]
	}
	return code, values, nil
}

// EncodeObject returns the committed record of r.
func (s *Store) EncodeObject(r ref.Ref, opts EncodeOptions) ([]byte, error) {
	obj := s.get(r)
	if obj == nil {
		return nil, ErrNotFound
	}
	return encodeObject(obj, opts)
}
