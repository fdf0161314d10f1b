package acl

import (
	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Right represents an object access right.
// Rights are bit flags that can be combined using bitwise OR.
type Right int

const (
	// Read allows reading field values
	Read Right = 1 << iota

	// Write allows editing field values
	Write

	// Create allows creating new objects
	Create

	// Delete allows removing objects
	Delete

	// All combines all rights
	All = Read | Write | Create | Delete
)

// String returns a human-readable representation of the right.
func (r Right) String() string {
	switch r {
	case Read:
		return "read"
	case Write:
		return "write"
	case Create:
		return "create"
	case Delete:
		return "delete"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

// Has checks if the right includes the specified right.
func (r Right) Has(other Right) bool {
	return r&other != 0
}

// Scope represents how far a rule reaches into embedded objects.
type Scope int

const (
	// ScopeBase applies only to objects of the target type
	ScopeBase Scope = iota

	// ScopeOne applies to objects embedded directly in the target type
	ScopeOne

	// ScopeSubtree applies to the target type and everything embedded in it
	ScopeSubtree
)

// String returns a human-readable representation of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOne:
		return "one"
	case ScopeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// ACL represents a single access control rule.
type ACL struct {
	// Target is the object type name this rule applies to, or "*".
	Target string

	// Scope defines whether embedded objects are covered.
	Scope Scope

	// Subject defines who this rule applies to: "anonymous",
	// "authenticated", "self", "*", "group:<name>", or a persona name.
	Subject string

	// Rights defines what operations are allowed or denied.
	Rights Right

	// Fields lists the field names this rule applies to.
	// Empty slice means all fields.
	Fields []string

	// Deny indicates this is a deny rule (true) or allow rule (false).
	Deny bool
}

// NewACL creates a new ACL rule with the given parameters.
func NewACL(target, subject string, rights Right) *ACL {
	return &ACL{
		Target:  target,
		Scope:   ScopeSubtree,
		Subject: subject,
		Rights:  rights,
	}
}

// WithScope sets the scope and returns the ACL for chaining.
func (a *ACL) WithScope(scope Scope) *ACL {
	a.Scope = scope
	return a
}

// WithFields sets the fields and returns the ACL for chaining.
func (a *ACL) WithFields(fields ...string) *ACL {
	a.Fields = fields
	return a
}

// WithDeny sets the deny flag and returns the ACL for chaining.
func (a *ACL) WithDeny(deny bool) *ACL {
	a.Deny = deny
	return a
}

// AppliesToField reports whether the rule covers the named field.
func (a *ACL) AppliesToField(field string) bool {
	if len(a.Fields) == 0 {
		return true
	}
	for _, f := range a.Fields {
		if f == "*" || equalFold(f, field) {
			return true
		}
	}
	return false
}

// Config holds the ACL configuration including default policy and rules.
type Config struct {
	// DefaultPolicy is applied when no rules match.
	// Can be "allow" or "deny". Default is "deny".
	DefaultPolicy string

	// Rules is the ordered list of ACL rules.
	// Rules are evaluated in order; first match wins.
	Rules []*ACL
}

// NewConfig creates a new ACL configuration with default deny policy.
func NewConfig() *Config {
	return &Config{
		DefaultPolicy: "deny",
		Rules:         make([]*ACL, 0),
	}
}

// AddRule appends a rule to the configuration.
func (c *Config) AddRule(rule *ACL) {
	c.Rules = append(c.Rules, rule)
}

// SetDefaultPolicy sets the default policy.
func (c *Config) SetDefaultPolicy(policy string) {
	c.DefaultPolicy = policy
}

// IsDefaultAllow returns true if the default policy is "allow".
func (c *Config) IsDefaultAllow() bool {
	return c.DefaultPolicy == "allow"
}

// Persona identifies who is acting.
type Persona struct {
	// Name is empty for anonymous sessions.
	Name string
	// Ref is the object the persona is bound to, if any.
	Ref ref.Ref
	// Groups lists the names of groups the persona belongs to.
	Groups []string
}

// IsAnonymous returns true if the persona has no name.
func (p Persona) IsAnonymous() bool {
	return p.Name == ""
}

// InGroup reports whether the persona is a member of the named group.
func (p Persona) InGroup(name string) bool {
	for _, g := range p.Groups {
		if equalFold(g, name) {
			return true
		}
	}
	return false
}

// AccessContext provides context for an access control check.
type AccessContext struct {
	Persona Persona

	// TargetType is the type name of the object being accessed.
	TargetType string

	// Target is the object being accessed.
	Target ref.Ref

	// Containers lists the type names of the objects containing Target,
	// innermost first. Empty for top-level objects.
	Containers []string

	// Operation is the type of operation being performed.
	Operation Right
}

// NewAccessContext creates a new access context.
func NewAccessContext(persona Persona, targetType string, target ref.Ref, operation Right) *AccessContext {
	return &AccessContext{
		Persona:    persona,
		TargetType: targetType,
		Target:     target,
		Operation:  operation,
	}
}

// WithContainers sets the container chain and returns the context for chaining.
func (c *AccessContext) WithContainers(types ...string) *AccessContext {
	c.Containers = types
	return c
}

// IsSelf returns true if the persona is bound to the target object.
func (c *AccessContext) IsSelf() bool {
	return !c.Persona.Ref.IsNil() && c.Persona.Ref == c.Target
}
