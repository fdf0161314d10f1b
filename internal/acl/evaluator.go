package acl

// Evaluator evaluates ACL rules to determine access permissions.
type Evaluator struct {
	config  *Config
	matcher *Matcher
}

// NewEvaluator creates a new ACL evaluator with the given configuration.
func NewEvaluator(config *Config) *Evaluator {
	if config == nil {
		config = NewConfig()
	}

	return &Evaluator{
		config:  config,
		matcher: NewMatcher(),
	}
}

// CheckAccess determines if the operation is allowed on the object as a
// whole. Rules restricted to particular fields are skipped.
// Uses first-match-wins semantics; if no rules match, the default policy
// is applied.
func (e *Evaluator) CheckAccess(ctx *AccessContext) bool {
	if ctx == nil {
		return e.config.IsDefaultAllow()
	}

	for _, rule := range e.config.Rules {
		if len(rule.Fields) > 0 {
			continue
		}
		if e.matches(rule, ctx) {
			return !rule.Deny
		}
	}

	return e.config.IsDefaultAllow()
}

// CheckFieldAccess checks if the operation is allowed on a single field.
func (e *Evaluator) CheckFieldAccess(ctx *AccessContext, field string) bool {
	if ctx == nil {
		return e.config.IsDefaultAllow()
	}

	for _, rule := range e.config.Rules {
		if !rule.AppliesToField(field) {
			continue
		}
		if e.matches(rule, ctx) {
			return !rule.Deny
		}
	}

	return e.config.IsDefaultAllow()
}

func (e *Evaluator) matches(rule *ACL, ctx *AccessContext) bool {
	return e.matcher.MatchesTarget(rule, ctx) &&
		e.matcher.MatchesSubject(rule, ctx) &&
		rule.Rights.Has(ctx.Operation)
}

// FilterFields returns the subset of fields the persona can read.
func (e *Evaluator) FilterFields(ctx *AccessContext, fields []string) []string {
	if ctx == nil {
		if e.config.IsDefaultAllow() {
			return fields
		}
		return nil
	}

	readCtx := *ctx
	readCtx.Operation = Read

	filtered := make([]string, 0, len(fields))
	for _, f := range fields {
		if e.CheckFieldAccess(&readCtx, f) {
			filtered = append(filtered, f)
		}
	}

	return filtered
}

// GetConfig returns the evaluator's configuration.
func (e *Evaluator) GetConfig() *Config {
	return e.config
}
