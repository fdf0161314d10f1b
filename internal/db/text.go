package db

import (
	"net"
	"net/netip"
	"strings"
	"unicode/utf8"
	"unique"

	"golang.org/x/text/unicode/norm"

	"github.com/KilimcininKorOglu/obastore/internal/schema"
)

// StringField holds NFC-normalized text, scalar or vector.
type StringField struct {
	typedField[string]
}

var stringOps = kindOps[string]{
	coerce: func(b *baseField, v any) (string, *Result) {
		x, ok := v.(string)
		if !ok {
			return "", mismatch(b, v)
		}
		return x, nil
	},
	empty: func(v any) bool {
		s, ok := v.(string)
		return ok && s == ""
	},
	check:  checkString,
	equal:  func(a, b string) bool { return a == b },
	format: func(v string) string { return v },
	marshal: func(v string, _ int) []byte {
		return []byte(v)
	},
	unmarshal: func(data []byte, _ int) (string, error) {
		if !utf8.Valid(data) {
			return "", ErrCorruptRecord
		}
		return intern(string(data)), nil
	},
}

func checkString(b *baseField, v string) (string, *Result) {
	if v == "" {
		return v, fail(InvalidValue, "%s cannot hold an empty string", b.label())
	}
	if !utf8.ValidString(v) {
		return v, fail(InvalidValue, "%s must be valid UTF-8", b.label())
	}
	v = intern(norm.NFC.String(v))

	def := b.def
	n := utf8.RuneCountInString(v)
	if def.MinLength > 0 && n < def.MinLength {
		return v, fail(TooShort, "%s must be at least %d characters", b.label(), def.MinLength)
	}
	if def.MaxLength > 0 && n > def.MaxLength {
		return v, fail(TooLong, "%s must be at most %d characters", b.label(), def.MaxLength)
	}
	if def.OKChars != "" {
		for _, r := range v {
			if !strings.ContainsRune(def.OKChars, r) {
				return v, fail(ForbiddenCharacter, "%s may not contain %q", b.label(), r)
			}
		}
	}
	if i := strings.IndexAny(v, def.BadChars); def.BadChars != "" && i >= 0 {
		r, _ := utf8.DecodeRuneInString(v[i:])
		return v, fail(ForbiddenCharacter, "%s may not contain %q", b.label(), r)
	}
	if def.Syntax != "" {
		if syn := b.owner.store.schema.Syntax(def.Syntax); syn != nil && !syn.Validate(v) {
			return v, fail(InvalidValue, "%s is not a valid %s", b.label(), syn.Description)
		}
	}
	return v, nil
}

// intern returns the canonical copy of s shared by every field.
func intern(s string) string {
	return unique.Make(s).Value()
}

func newStringField(def *schema.FieldDef, owner *Object) *StringField {
	f := &StringField{}
	f.setup(def, owner, f, &stringOps)
	return f
}

func (f *StringField) clone(owner *Object) Field {
	c := newStringField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}

// IPField holds IP addresses, scalar or vector. IPv4-mapped IPv6
// addresses are stored as IPv4.
type IPField struct {
	typedField[netip.Addr]
}

var ipOps = kindOps[netip.Addr]{
	coerce: func(b *baseField, v any) (netip.Addr, *Result) {
		switch x := v.(type) {
		case netip.Addr:
			return x, nil
		case net.IP:
			addr, ok := netip.AddrFromSlice(x)
			if !ok {
				return addr, fail(InvalidValue, "%s: %d-byte address", b.label(), len(x))
			}
			return addr, nil
		case string:
			addr, err := netip.ParseAddr(x)
			if err != nil {
				return addr, failCause(InvalidValue, err, "%s: %q is not an IP address", b.label(), x)
			}
			return addr, nil
		}
		return netip.Addr{}, mismatch(b, v)
	},
	empty: func(v any) bool {
		switch x := v.(type) {
		case string:
			return x == ""
		case netip.Addr:
			return !x.IsValid()
		}
		return false
	},
	check: func(b *baseField, v netip.Addr) (netip.Addr, *Result) {
		if !v.IsValid() {
			return v, fail(InvalidValue, "%s: invalid address", b.label())
		}
		v = v.Unmap().WithZone("")
		if v.Is6() && !b.def.AllowIPv6 {
			return v, fail(InvalidValue, "%s accepts IPv4 addresses only", b.label())
		}
		return v, nil
	},
	equal:  func(a, b netip.Addr) bool { return a == b },
	format: func(v netip.Addr) string { return v.String() },
	marshal: func(v netip.Addr, _ int) []byte {
		return v.AsSlice()
	},
	unmarshal: func(data []byte, _ int) (netip.Addr, error) {
		addr, ok := netip.AddrFromSlice(data)
		if !ok {
			return addr, ErrCorruptRecord
		}
		return addr, nil
	},
}

func newIPField(def *schema.FieldDef, owner *Object) *IPField {
	f := &IPField{}
	f.setup(def, owner, f, &ipOps)
	return f
}

func (f *IPField) clone(owner *Object) Field {
	c := newIPField(f.def, owner)
	c.copyFrom(&f.typedField)
	return c
}
