package acl

import (
	"strings"
)

// Matcher provides target and subject matching for ACL evaluation.
type Matcher struct{}

// NewMatcher creates a new Matcher instance.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// MatchesTarget checks if the accessed object falls under the rule's target.
func (m *Matcher) MatchesTarget(rule *ACL, ctx *AccessContext) bool {
	if rule.Target == "*" {
		return true
	}

	switch rule.Scope {
	case ScopeBase:
		return equalFold(rule.Target, ctx.TargetType)

	case ScopeOne:
		return len(ctx.Containers) > 0 && equalFold(rule.Target, ctx.Containers[0])

	case ScopeSubtree:
		if equalFold(rule.Target, ctx.TargetType) {
			return true
		}
		for _, c := range ctx.Containers {
			if equalFold(rule.Target, c) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// MatchesSubject checks if the persona matches the rule's subject.
func (m *Matcher) MatchesSubject(rule *ACL, ctx *AccessContext) bool {
	subject := strings.ToLower(rule.Subject)

	switch {
	case subject == "anonymous":
		return ctx.Persona.IsAnonymous()

	case subject == "authenticated":
		return !ctx.Persona.IsAnonymous()

	case subject == "self":
		return ctx.IsSelf()

	case subject == "*":
		return true

	case strings.HasPrefix(subject, "group:"):
		return ctx.Persona.InGroup(strings.TrimSpace(rule.Subject[len("group:"):]))

	default:
		return !ctx.Persona.IsAnonymous() && equalFold(rule.Subject, ctx.Persona.Name)
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
