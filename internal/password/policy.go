package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy defines the length, character and complexity rules for a password
// field, along with how many previous passwords are remembered.
type Policy struct {
	// Enabled indicates whether policy enforcement is active
	Enabled bool `yaml:"enabled"`

	// MinLength is the minimum password length in characters
	MinLength int `yaml:"minLength"`

	// MaxLength is the maximum password length in characters (0 = unlimited)
	MaxLength int `yaml:"maxLength"`

	// OKChars, when set, lists the only characters a password may contain
	OKChars string `yaml:"okChars"`

	// BadChars lists characters a password may not contain
	BadChars string `yaml:"badChars"`

	RequireUppercase bool `yaml:"requireUppercase"`
	RequireLowercase bool `yaml:"requireLowercase"`
	RequireDigit     bool `yaml:"requireDigit"`
	RequireSpecial   bool `yaml:"requireSpecial"`

	// HistoryCount is the number of previous passwords remembered (0 = no history)
	HistoryCount int `yaml:"historyCount"`
}

// ValidationErrorCode represents specific validation failure types.
type ValidationErrorCode int

const (
	// ErrTooShort indicates password is shorter than MinLength
	ErrTooShort ValidationErrorCode = iota + 1

	// ErrTooLong indicates password exceeds MaxLength
	ErrTooLong

	// ErrForbiddenCharacter indicates a character outside OKChars or inside BadChars
	ErrForbiddenCharacter

	// ErrNoUppercase indicates missing required uppercase letter
	ErrNoUppercase

	// ErrNoLowercase indicates missing required lowercase letter
	ErrNoLowercase

	// ErrNoDigit indicates missing required digit
	ErrNoDigit

	// ErrNoSpecial indicates missing required special character
	ErrNoSpecial

	// ErrRejected indicates an external quality check refused the password
	ErrRejected

	// ErrInHistory indicates password was used recently
	ErrInHistory
)

// IsQuality reports whether the code is a complexity failure, as opposed to
// a hard length or character violation.
func (c ValidationErrorCode) IsQuality() bool {
	switch c {
	case ErrNoUppercase, ErrNoLowercase, ErrNoDigit, ErrNoSpecial, ErrRejected:
		return true
	}
	return false
}

// ValidationError represents a password validation failure.
type ValidationError struct {
	Code    ValidationErrorCode
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// DefaultPolicy returns a sensible default password policy.
func DefaultPolicy() *Policy {
	return &Policy{
		Enabled:          true,
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   false,
		HistoryCount:     5,
	}
}

// DisabledPolicy returns a policy with all enforcement disabled.
func DisabledPolicy() *Policy {
	return &Policy{}
}

// Validate checks length, characters and quality in that order.
// Returns nil if the password is valid, or a ValidationError describing the failure.
func (p *Policy) Validate(password string) error {
	if err := p.CheckLength(password); err != nil {
		return err
	}
	if err := p.CheckCharacters(password); err != nil {
		return err
	}
	return p.CheckQuality(password)
}

// CheckLength checks MinLength and MaxLength.
func (p *Policy) CheckLength(password string) error {
	if p == nil || !p.Enabled {
		return nil
	}

	n := utf8.RuneCountInString(password)

	if p.MinLength > 0 && n < p.MinLength {
		return &ValidationError{
			Code:    ErrTooShort,
			Message: fmt.Sprintf("password is too short (minimum %d characters)", p.MinLength),
		}
	}

	if p.MaxLength > 0 && n > p.MaxLength {
		return &ValidationError{
			Code:    ErrTooLong,
			Message: fmt.Sprintf("password is too long (maximum %d characters)", p.MaxLength),
		}
	}

	return nil
}

// CheckCharacters checks OKChars and BadChars.
func (p *Policy) CheckCharacters(password string) error {
	if p == nil || !p.Enabled {
		return nil
	}

	for _, r := range password {
		if p.OKChars != "" && !strings.ContainsRune(p.OKChars, r) {
			return &ValidationError{
				Code:    ErrForbiddenCharacter,
				Message: fmt.Sprintf("password contains a disallowed character %q", r),
			}
		}
		if strings.ContainsRune(p.BadChars, r) {
			return &ValidationError{
				Code:    ErrForbiddenCharacter,
				Message: fmt.Sprintf("password contains a forbidden character %q", r),
			}
		}
	}

	return nil
}

// CheckQuality checks the character class requirements.
func (p *Policy) CheckQuality(password string) error {
	if p == nil || !p.Enabled {
		return nil
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case isSpecialChar(r):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		return &ValidationError{
			Code:    ErrNoUppercase,
			Message: "password must contain at least one uppercase letter",
		}
	}

	if p.RequireLowercase && !hasLower {
		return &ValidationError{
			Code:    ErrNoLowercase,
			Message: "password must contain at least one lowercase letter",
		}
	}

	if p.RequireDigit && !hasDigit {
		return &ValidationError{
			Code:    ErrNoDigit,
			Message: "password must contain at least one digit",
		}
	}

	if p.RequireSpecial && !hasSpecial {
		return &ValidationError{
			Code:    ErrNoSpecial,
			Message: "password must contain at least one special character",
		}
	}

	return nil
}

// Clone creates a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Merge applies non-zero values from another policy to this one.
// Boolean requirements are only ever added by an override, never removed.
func (p *Policy) Merge(override *Policy) *Policy {
	if override == nil {
		return p.Clone()
	}

	result := p.Clone()
	if result == nil {
		result = &Policy{}
	}

	if override.Enabled {
		result.Enabled = true
	}
	if override.MinLength > 0 {
		result.MinLength = override.MinLength
	}
	if override.MaxLength > 0 {
		result.MaxLength = override.MaxLength
	}
	if override.OKChars != "" {
		result.OKChars = override.OKChars
	}
	if override.BadChars != "" {
		result.BadChars = override.BadChars
	}
	if override.RequireUppercase {
		result.RequireUppercase = true
	}
	if override.RequireLowercase {
		result.RequireLowercase = true
	}
	if override.RequireDigit {
		result.RequireDigit = true
	}
	if override.RequireSpecial {
		result.RequireSpecial = true
	}
	if override.HistoryCount > 0 {
		result.HistoryCount = override.HistoryCount
	}

	return result
}

// isSpecialChar checks if a rune is a special character.
func isSpecialChar(r rune) bool {
	return strings.ContainsRune("!@#$%^&*()_+-=[]{}|;':\",./<>?`~\\", r)
}
