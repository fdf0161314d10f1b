package acl

import (
	"fmt"
)

// ValidateConfig validates an ACL configuration.
// Returns a slice of errors found during validation.
func ValidateConfig(config *Config) []error {
	var errs []error

	if config == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	policy := config.DefaultPolicy
	if policy != "" && policy != "allow" && policy != "deny" {
		errs = append(errs, fmt.Errorf("%w: %s (must be allow or deny)", ErrInvalidPolicy, policy))
	}

	for i, rule := range config.Rules {
		if rule == nil {
			errs = append(errs, fmt.Errorf("rule %d: is nil", i))
			continue
		}

		if rule.Target == "" {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, ErrMissingTarget))
		}

		if rule.Subject == "" {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, ErrMissingSubject))
		}

		if rule.Rights == 0 {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, ErrMissingRights))
		}

		if rule.Scope < ScopeBase || rule.Scope > ScopeSubtree {
			errs = append(errs, fmt.Errorf("rule %d: %w %d", i, ErrInvalidScope, rule.Scope))
		}
	}

	return errs
}

// ValidateTypes reports rules whose target is not one of the known type
// names.
func ValidateTypes(config *Config, known func(name string) bool) []error {
	var errs []error
	for i, rule := range config.Rules {
		if rule.Target != "*" && !known(rule.Target) {
			errs = append(errs, fmt.Errorf("rule %d: %w %q", i, ErrUnknownTarget, rule.Target))
		}
	}
	return errs
}
