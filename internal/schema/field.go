package schema

import (
	"math"
	"strings"

	"github.com/KilimcininKorOglu/obastore/internal/password"
)

// Reserved field codes.
const (
	// ContainerField is defined on every embedded type and points at the
	// object that contains it.
	ContainerField uint16 = 0

	// ObjectField stands for the object as a whole in permission checks.
	ObjectField uint16 = math.MaxUint16
)

// FieldKind is the value type stored by a field.
type FieldKind int

const (
	// KindBoolean stores true or false.
	KindBoolean FieldKind = iota + 1
	// KindNumeric stores a signed integer.
	KindNumeric
	// KindFloat stores a float64.
	KindFloat
	// KindDate stores a point in time.
	KindDate
	// KindString stores text.
	KindString
	// KindIP stores an IPv4 or IPv6 address.
	KindIP
	// KindInvid stores references to other objects.
	KindInvid
	// KindPassword stores a secret as one or more hashes.
	KindPassword
	// KindPermission stores an opaque permission matrix.
	KindPermission
	// KindFieldOptions stores opaque per-field option strings.
	KindFieldOptions
)

// String returns the schema file name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindNumeric:
		return "numeric"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindString:
		return "string"
	case KindIP:
		return "ip"
	case KindInvid:
		return "invid"
	case KindPassword:
		return "password"
	case KindPermission:
		return "permission"
	case KindFieldOptions:
		return "fieldOptions"
	default:
		return "unknown"
	}
}

// ParseFieldKind parses a kind name, ignoring case.
func ParseFieldKind(name string) (FieldKind, error) {
	for k := KindBoolean; k <= KindFieldOptions; k++ {
		if strings.EqualFold(name, k.String()) {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

// CanBeVector reports whether fields of this kind may hold a sequence.
func (k FieldKind) CanBeVector() bool {
	return k == KindString || k == KindIP || k == KindInvid
}

// CanUseNamespace reports whether values of this kind can be kept unique.
func (k FieldKind) CanUseNamespace() bool {
	return k == KindString || k == KindIP || k == KindNumeric
}

// PasswordOptions configures a password field.
type PasswordOptions struct {
	// Formats are generated from plaintext and required to be present
	Formats []password.Format

	// Accept lists additional formats that may be set prehashed
	Accept []password.Format

	// StorePlaintext keeps the plaintext alongside the hashes
	StorePlaintext bool

	// HistorySize bounds the reuse history (0 = no history)
	HistorySize int

	// Policy overrides the global password policy for this field
	Policy *password.Policy
}

// Requires reports whether f is generated and required.
func (o *PasswordOptions) Requires(f password.Format) bool {
	for _, r := range o.Formats {
		if r == f {
			return true
		}
	}
	return false
}

// Enabled reports whether f may be stored at all.
func (o *PasswordOptions) Enabled(f password.Format) bool {
	if o.Requires(f) {
		return true
	}
	for _, a := range o.Accept {
		if a == f {
			return true
		}
	}
	return false
}

// FieldDef defines one field of an object type. Definitions are shared,
// immutable metadata: field values look them up by code.
type FieldDef struct {
	Code      uint16
	Name      string
	Desc      string
	Kind      FieldKind
	Vector    bool
	MaxSize   int  // vector capacity (0 = unlimited)
	ReadOnly  bool // never editable by clients
	Namespace string

	// String constraints
	MinLength int
	MaxLength int
	OKChars   string
	BadChars  string
	Syntax    string

	// Numeric and float constraints
	Min      *int64
	Max      *int64
	FloatMin *float64
	FloatMax *float64

	// IP fields accept IPv4 and, when set, IPv6
	AllowIPv6 bool

	// Reference fields
	TargetType  uint16 // 0 = any type
	Symmetric   bool
	Mirror      uint16 // mirror field code on the target, when Symmetric
	EditInPlace bool

	Password *PasswordOptions

	// set by the loader, resolved by Resolve
	targetName string
	mirrorName string
}

// NewFieldDef creates a FieldDef with the given code, name and kind.
func NewFieldDef(code uint16, name string, kind FieldKind) *FieldDef {
	return &FieldDef{
		Code: code,
		Name: name,
		Kind: kind,
	}
}

// IsInvid returns true for reference fields.
func (fd *FieldDef) IsInvid() bool {
	return fd.Kind == KindInvid
}

// IsAsymmetric returns true for reference fields without a mirror.
func (fd *FieldDef) IsAsymmetric() bool {
	return fd.Kind == KindInvid && !fd.Symmetric && !fd.EditInPlace && fd.Code != ContainerField
}

// HasNamespace returns true if values must be unique.
func (fd *FieldDef) HasNamespace() bool {
	return fd.Namespace != ""
}

// Clone creates a deep copy of the definition.
func (fd *FieldDef) Clone() *FieldDef {
	if fd == nil {
		return nil
	}
	clone := *fd
	if fd.Min != nil {
		v := *fd.Min
		clone.Min = &v
	}
	if fd.Max != nil {
		v := *fd.Max
		clone.Max = &v
	}
	if fd.FloatMin != nil {
		v := *fd.FloatMin
		clone.FloatMin = &v
	}
	if fd.FloatMax != nil {
		v := *fd.FloatMax
		clone.FloatMax = &v
	}
	if fd.Password != nil {
		opts := *fd.Password
		opts.Formats = append([]password.Format(nil), fd.Password.Formats...)
		opts.Accept = append([]password.Format(nil), fd.Password.Accept...)
		opts.Policy = fd.Password.Policy.Clone()
		clone.Password = &opts
	}
	return &clone
}
