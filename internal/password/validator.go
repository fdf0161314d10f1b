package password

// QualityFunc is an external quality check, such as a dictionary lookup.
// It returns a non-nil error to reject the password.
type QualityFunc func(password string) error

// Validator checks a candidate password against a policy, an optional
// external quality check and a reuse history.
type Validator struct {
	policy  *Policy
	quality QualityFunc
}

// NewValidator creates a new password validator with the given policy.
// If policy is nil, a disabled policy is used.
func NewValidator(policy *Policy, quality QualityFunc) *Validator {
	if policy == nil {
		policy = DisabledPolicy()
	}
	return &Validator{
		policy:  policy.Clone(),
		quality: quality,
	}
}

// Policy returns a copy of the validator's policy.
func (v *Validator) Policy() *Policy {
	return v.policy.Clone()
}

// Validate runs the checks in order: length, characters, quality, reuse.
//
// Length and character failures are always returned as err. When lenient
// is set, quality and reuse failures are returned as warnings instead and
// validation continues.
func (v *Validator) Validate(password string, history *History, lenient bool) (warnings []*ValidationError, err error) {
	if err := v.policy.CheckLength(password); err != nil {
		return nil, err
	}
	if err := v.policy.CheckCharacters(password); err != nil {
		return nil, err
	}

	soft := func(verr *ValidationError) error {
		if lenient {
			warnings = append(warnings, verr)
			return nil
		}
		return verr
	}

	if qerr := v.policy.CheckQuality(password); qerr != nil {
		if err := soft(qerr.(*ValidationError)); err != nil {
			return nil, err
		}
	}

	if v.quality != nil {
		if qerr := v.quality(password); qerr != nil {
			verr := &ValidationError{Code: ErrRejected, Message: qerr.Error()}
			if err := soft(verr); err != nil {
				return nil, err
			}
		}
	}

	if history != nil && history.Contains(password) {
		verr := &ValidationError{Code: ErrInHistory, Message: "password was used recently"}
		if err := soft(verr); err != nil {
			return nil, err
		}
	}

	return warnings, nil
}
