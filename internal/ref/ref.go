// Package ref provides the object identifier used throughout the object store.
//
// A Ref names one object instance by its object type and a number that is
// unique within that type. Refs are small comparable values and are what
// reference fields hold, so objects never point at each other directly.
package ref

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Ref errors.
var (
	ErrInvalidRef = errors.New("ref: invalid object reference")
	ErrShortBytes = errors.New("ref: byte slice too short")
)

// Size is the length of a Ref in its binary form.
const Size = 6

// Ref identifies an object by type and number.
type Ref struct {
	Type uint16
	Num  uint32
}

// Nil is the zero Ref. It never names an object.
var Nil Ref

// New creates a Ref.
func New(typeID uint16, num uint32) Ref {
	return Ref{Type: typeID, Num: num}
}

// IsNil returns true if this is the zero Ref.
func (r Ref) IsNil() bool {
	return r.Num == 0
}

// String returns the "type:num" form.
func (r Ref) String() string {
	return strconv.FormatUint(uint64(r.Type), 10) + ":" + strconv.FormatUint(uint64(r.Num), 10)
}

// Bytes returns the big-endian binary form, which sorts by type then number.
func (r Ref) Bytes() []byte {
	b := make([]byte, Size)
	binary.BigEndian.PutUint16(b[0:2], r.Type)
	binary.BigEndian.PutUint32(b[2:6], r.Num)
	return b
}

// Parse parses the "type:num" form.
func Parse(s string) (Ref, error) {
	typePart, numPart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Nil, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	t, err := strconv.ParseUint(typePart, 10, 16)
	if err != nil {
		return Nil, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	n, err := strconv.ParseUint(numPart, 10, 32)
	if err != nil || n == 0 {
		return Nil, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	return Ref{Type: uint16(t), Num: uint32(n)}, nil
}

// FromBytes decodes the binary form produced by Bytes.
func FromBytes(b []byte) (Ref, error) {
	if len(b) < Size {
		return Nil, ErrShortBytes
	}
	return Ref{
		Type: binary.BigEndian.Uint16(b[0:2]),
		Num:  binary.BigEndian.Uint32(b[2:6]),
	}, nil
}

// Less orders Refs by type, then number.
func Less(a, b Ref) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.Num < b.Num
}
