package schema

import (
	"strings"
	"unicode/utf8"
)

// Syntax is a named format check applied to string field values.
type Syntax struct {
	Name        string
	Description string
	Validator   func(string) bool
}

// NewSyntax creates a new Syntax.
func NewSyntax(name, description string, validator func(string) bool) *Syntax {
	return &Syntax{
		Name:        name,
		Description: description,
		Validator:   validator,
	}
}

// Validate checks if the given value conforms to this syntax.
// Returns true if the value is valid or if no validator is defined.
func (s *Syntax) Validate(value string) bool {
	if s.Validator == nil {
		return true
	}
	return s.Validator(value)
}

// Built-in syntax names.
const (
	SyntaxDirectoryString = "directoryString"
	SyntaxIA5String       = "ia5String"
	SyntaxPrintableString = "printableString"
	SyntaxNumericString   = "numericString"
	SyntaxTelephoneNumber = "telephoneNumber"
	SyntaxOID             = "oid"
)

func builtinSyntaxes() []*Syntax {
	return []*Syntax{
		NewSyntax(SyntaxDirectoryString, "Non-empty UTF-8 string", ValidateDirectoryString),
		NewSyntax(SyntaxIA5String, "ASCII string", ValidateIA5String),
		NewSyntax(SyntaxPrintableString, "Printable string", ValidatePrintableString),
		NewSyntax(SyntaxNumericString, "Digits and spaces", ValidateNumericString),
		NewSyntax(SyntaxTelephoneNumber, "Telephone number", ValidateTelephoneNumber),
		NewSyntax(SyntaxOID, "Dotted object identifier", ValidateOID),
	}
}

// ValidateDirectoryString accepts any non-empty valid UTF-8 string.
func ValidateDirectoryString(value string) bool {
	return value != "" && utf8.ValidString(value)
}

// ValidateIA5String accepts ASCII only.
func ValidateIA5String(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] > 127 {
			return false
		}
	}
	return true
}

// ValidatePrintableString accepts letters, digits, space and '()+,-./:=?.
func ValidatePrintableString(value string) bool {
	for i := 0; i < len(value); i++ {
		b := value[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		case strings.IndexByte(" '()+,-./:=?", b) >= 0:
		default:
			return false
		}
	}
	return true
}

// ValidateNumericString accepts digits and spaces.
func ValidateNumericString(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] != ' ' && (value[i] < '0' || value[i] > '9') {
			return false
		}
	}
	return true
}

// ValidateTelephoneNumber accepts a non-empty string of digits, spaces and -()+.
func ValidateTelephoneNumber(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		b := value[i]
		if (b < '0' || b > '9') && strings.IndexByte(" -()+.", b) < 0 {
			return false
		}
	}
	return true
}

// ValidateOID accepts dotted decimal identifiers such as 1.3.6.1.
func ValidateOID(value string) bool {
	if value == "" {
		return false
	}
	for _, arc := range strings.Split(value, ".") {
		if arc == "" || (len(arc) > 1 && arc[0] == '0') {
			return false
		}
		for i := 0; i < len(arc); i++ {
			if arc[i] < '0' || arc[i] > '9' {
				return false
			}
		}
	}
	return true
}
