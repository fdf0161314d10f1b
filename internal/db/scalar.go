package db

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// BooleanField holds true or false.
type BooleanField struct {
	typedField[bool]
}

var booleanOps = kindOps[bool]{
	coerce: func(b *baseField, v any) (bool, *Result) {
		x, ok := v.(bool)
		if !ok {
			return false, mismatch(b, v)
		}
		return x, nil
	},
	check:  func(_ *baseField, v bool) (bool, *Result) { return v, nil },
	equal:  func(a, b bool) bool { return a == b },
	format: strconv.FormatBool,
	marshal: func(v bool, _ int) []byte {
		return protowire.AppendVarint(nil, protowire.EncodeBool(v))
	},
	unmarshal: func(data []byte, _ int) (bool, error) {
		n, err := consumeVarint(data)
		return n != 0, err
	},
}

func newBooleanField(def *schema.FieldDef, owner *Object) *BooleanField {
	f := &BooleanField{}
	f.setup(def, owner, f, &booleanOps)
	return f
}

func (f *BooleanField) clone(owner *Object) Field {
	c := newBooleanField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

// NumericField holds a signed integer.
type NumericField struct {
	typedField[int64]
}

var numericOps = kindOps[int64]{
	coerce: func(b *baseField, v any) (int64, *Result) {
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint8:
			return int64(x), nil
		}
		return 0, mismatch(b, v)
	},
	check: func(b *baseField, v int64) (int64, *Result) {
		if b.def.Min != nil && v < *b.def.Min {
			return v, fail(InvalidValue, "%s must be at least %d", b.label(), *b.def.Min)
		}
		if b.def.Max != nil && v > *b.def.Max {
			return v, fail(InvalidValue, "%s must be at most %d", b.label(), *b.def.Max)
		}
		return v, nil
	},
	equal:  func(a, b int64) bool { return a == b },
	format: func(v int64) string { return strconv.FormatInt(v, 10) },
	marshal: func(v int64, _ int) []byte {
		return protowire.AppendVarint(nil, protowire.EncodeZigZag(v))
	},
	unmarshal: func(data []byte, _ int) (int64, error) {
		n, err := consumeVarint(data)
		return protowire.DecodeZigZag(n), err
	},
}

func newNumericField(def *schema.FieldDef, owner *Object) *NumericField {
	f := &NumericField{}
	f.setup(def, owner, f, &numericOps)
	return f
}

func (f *NumericField) clone(owner *Object) Field {
	c := newNumericField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

// FloatField holds a finite float64.
type FloatField struct {
	typedField[float64]
}

var floatOps = kindOps[float64]{
	coerce: func(b *baseField, v any) (float64, *Result) {
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		return 0, mismatch(b, v)
	},
	check: func(b *baseField, v float64) (float64, *Result) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v, fail(InvalidValue, "%s must be a finite number", b.label())
		}
		if b.def.FloatMin != nil && v < *b.def.FloatMin {
			return v, fail(InvalidValue, "%s must be at least %g", b.label(), *b.def.FloatMin)
		}
		if b.def.FloatMax != nil && v > *b.def.FloatMax {
			return v, fail(InvalidValue, "%s must be at most %g", b.label(), *b.def.FloatMax)
		}
		return v, nil
	},
	equal:  func(a, b float64) bool { return a == b },
	format: func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) },
	marshal: func(v float64, _ int) []byte {
		return protowire.AppendFixed64(nil, math.Float64bits(v))
	},
	unmarshal: func(data []byte, _ int) (float64, error) {
		n, l := protowire.ConsumeFixed64(data)
		if l < 0 || l != len(data) {
			return 0, ErrCorruptRecord
		}
		return math.Float64frombits(n), nil
	},
}

func newFloatField(def *schema.FieldDef, owner *Object) *FloatField {
	f := &FloatField{}
	f.setup(def, owner, f, &floatOps)
	return f
}

func (f *FloatField) clone(owner *Object) Field {
	c := newFloatField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

// DateField holds a point in time with millisecond precision, in UTC.
type DateField struct {
	typedField[time.Time]
}

var dateOps = kindOps[time.Time]{
	coerce: func(b *baseField, v any) (time.Time, *Result) {
		x, ok := v.(time.Time)
		if !ok {
			return time.Time{}, mismatch(b, v)
		}
		return x.UTC().Truncate(time.Millisecond), nil
	},
	empty: func(v any) bool {
		t, ok := v.(time.Time)
		return ok && t.IsZero()
	},
	check: func(_ *baseField, v time.Time) (time.Time, *Result) { return v, nil },
	equal: func(a, b time.Time) bool { return a.Equal(b) },
	format: func(v time.Time) string {
		return v.Format(time.RFC3339Nano)
	},
	marshal: func(v time.Time, version int) []byte {
		if version == codecLegacy {
			return protowire.AppendVarint(nil, protowire.EncodeZigZag(v.Unix()))
		}
		return protowire.AppendVarint(nil, protowire.EncodeZigZag(v.UnixMilli()))
	},
	unmarshal: func(data []byte, version int) (time.Time, error) {
		n, err := consumeVarint(data)
		if err != nil {
			return time.Time{}, err
		}
		if version == codecLegacy {
			return time.Unix(protowire.DecodeZigZag(n), 0).UTC(), nil
		}
		return time.UnixMilli(protowire.DecodeZigZag(n)).UTC(), nil
	},
}

func newDateField(def *schema.FieldDef, owner *Object) *DateField {
	f := &DateField{}
	f.setup(def, owner, f, &dateOps)
	return f
}

func (f *DateField) clone(owner *Object) Field {
	c := newDateField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

func consumeVarint(data []byte) (uint64, error) {
	n, l := protowire.ConsumeVarint(data)
	if l < 0 || l != len(data) {
		return 0, fmt.Errorf("%w: bad varint", ErrCorruptRecord)
	}
	return n, nil
}
