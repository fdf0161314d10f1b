package acl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

var (
	alice    = Persona{Name: "alice", Ref: ref.New(1, 1), Groups: []string{"wheel"}}
	bob      = Persona{Name: "bob", Ref: ref.New(1, 2)}
	nobody   = Persona{}
	aliceObj = ref.New(1, 1)
	bobObj   = ref.New(1, 2)
)

func TestRightString(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "all", All.String())
	assert.Equal(t, "unknown", (Read | Write).String())
	assert.True(t, All.Has(Delete))
	assert.False(t, (Read | Write).Has(Create))
}

func TestCheckAccessDefaultPolicy(t *testing.T) {
	ctx := NewAccessContext(alice, "user", bobObj, Read)

	assert.False(t, NewEvaluator(nil).CheckAccess(ctx))

	cfg := NewConfig()
	cfg.SetDefaultPolicy("allow")
	assert.True(t, NewEvaluator(cfg).CheckAccess(ctx))
	assert.True(t, NewEvaluator(cfg).CheckAccess(nil))
}

func TestCheckAccessSubjects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		persona Persona
		target  ref.Ref
		want    bool
	}{
		{"anonymous matches nobody", "anonymous", nobody, bobObj, true},
		{"anonymous skips named", "anonymous", alice, bobObj, false},
		{"authenticated", "authenticated", bob, aliceObj, true},
		{"authenticated skips anonymous", "authenticated", nobody, aliceObj, false},
		{"self on own object", "self", bob, bobObj, true},
		{"self on other object", "self", bob, aliceObj, false},
		{"self needs a bound ref", "self", nobody, ref.Nil, false},
		{"group member", "group:WHEEL", alice, bobObj, true},
		{"group non-member", "group:wheel", bob, bobObj, false},
		{"named persona", "Alice", alice, bobObj, true},
		{"other persona", "alice", bob, bobObj, false},
		{"everyone", "*", nobody, bobObj, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.AddRule(NewACL("user", tt.subject, Read))
			e := NewEvaluator(cfg)

			ctx := NewAccessContext(tt.persona, "user", tt.target, Read)
			assert.Equal(t, tt.want, e.CheckAccess(ctx))
		})
	}
}

func TestCheckAccessScopes(t *testing.T) {
	tests := []struct {
		scope      Scope
		targetType string
		containers []string
		want       bool
	}{
		{ScopeBase, "system", nil, true},
		{ScopeBase, "interface", []string{"system"}, false},
		{ScopeOne, "system", nil, false},
		{ScopeOne, "interface", []string{"system"}, true},
		{ScopeOne, "port", []string{"interface", "system"}, false},
		{ScopeSubtree, "system", nil, true},
		{ScopeSubtree, "port", []string{"interface", "system"}, true},
		{ScopeSubtree, "user", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.scope.String()+"/"+tt.targetType, func(t *testing.T) {
			cfg := NewConfig()
			cfg.AddRule(NewACL("system", "*", Write).WithScope(tt.scope))

			ctx := NewAccessContext(alice, tt.targetType, ref.New(3, 1), Write).WithContainers(tt.containers...)
			assert.Equal(t, tt.want, NewEvaluator(cfg).CheckAccess(ctx))
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	cfg := NewConfig()
	cfg.AddRule(NewACL("user", "bob", Write).WithDeny(true))
	cfg.AddRule(NewACL("user", "authenticated", Read|Write))
	e := NewEvaluator(cfg)

	assert.False(t, e.CheckAccess(NewAccessContext(bob, "user", aliceObj, Write)))
	assert.True(t, e.CheckAccess(NewAccessContext(bob, "user", aliceObj, Read)))
	assert.True(t, e.CheckAccess(NewAccessContext(alice, "user", bobObj, Write)))
	assert.False(t, e.CheckAccess(NewAccessContext(alice, "user", bobObj, Delete)))
}

func TestCheckFieldAccess(t *testing.T) {
	cfg := NewConfig()
	cfg.AddRule(NewACL("user", "*", Read).WithFields("password").WithDeny(true))
	cfg.AddRule(NewACL("user", "self", Write).WithFields("fullName", "emails"))
	cfg.AddRule(NewACL("user", "authenticated", Read))
	e := NewEvaluator(cfg)

	read := NewAccessContext(alice, "user", aliceObj, Read)
	assert.False(t, e.CheckFieldAccess(read, "Password"))
	assert.True(t, e.CheckFieldAccess(read, "username"))
	assert.True(t, e.CheckAccess(read), "field-scoped deny does not hide the object")

	write := NewAccessContext(alice, "user", aliceObj, Write)
	assert.True(t, e.CheckFieldAccess(write, "emails"))
	assert.False(t, e.CheckFieldAccess(write, "uid"))
	assert.False(t, e.CheckAccess(write), "field-scoped allow does not grant the object")

	assert.False(t, e.CheckFieldAccess(NewAccessContext(alice, "user", bobObj, Write), "emails"))

	assert.Equal(t, []string{"username", "uid"},
		e.FilterFields(write, []string{"username", "password", "uid"}))
	assert.Nil(t, e.FilterFields(nil, []string{"username"}))
}

func TestParseACLYAML(t *testing.T) {
	doc := `
version: 1
defaultPolicy: allow
rules:
  - target: "*"
    subject: ${ACL_TEST_ADMIN:-admin}
    rights: [all]
  - target: system
    subject: authenticated
    scope: base
    rights: [read, edit]
  - target: user
    subject: "*"
    fields: [password]
    rights: [read]
    deny: true
`
	t.Setenv("ACL_TEST_ADMIN", "root")

	cfg, err := ParseACLYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 3)
	assert.True(t, cfg.IsDefaultAllow())

	assert.Equal(t, "root", cfg.Rules[0].Subject)
	assert.Equal(t, All, cfg.Rules[0].Rights)
	assert.Equal(t, ScopeSubtree, cfg.Rules[0].Scope)

	assert.Equal(t, ScopeBase, cfg.Rules[1].Scope)
	assert.Equal(t, Read|Write, cfg.Rules[1].Rights)

	assert.True(t, cfg.Rules[2].Deny)
	assert.Equal(t, []string{"password"}, cfg.Rules[2].Fields)
	assert.Empty(t, ValidateConfig(cfg))
}

func TestParseACLYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad version", "version: 0", ErrInvalidVersion},
		{"bad policy", "defaultPolicy: maybe", ErrInvalidPolicy},
		{"unknown key", "colour: red", ErrInvalidYAML},
		{"missing target", "rules: [{subject: a, rights: [read]}]", ErrMissingTarget},
		{"missing subject", "rules: [{target: a, rights: [read]}]", ErrMissingSubject},
		{"missing rights", "rules: [{target: a, subject: b}]", ErrMissingRights},
		{"bad right", "rules: [{target: a, subject: b, rights: [search]}]", ErrInvalidRight},
		{"bad scope", "rules: [{target: a, subject: b, rights: [read], scope: deep}]", ErrInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseACLYAML([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	path := filepath.Join(t.TempDir(), "acl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [{target: user, subject: self, rights: [write]}]\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "deny", cfg.DefaultPolicy)
	assert.Len(t, cfg.Rules, 1)
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{
		DefaultPolicy: "sometimes",
		Rules: []*ACL{
			nil,
			{Target: "", Subject: "", Rights: 0, Scope: Scope(9)},
		},
	}
	assert.Len(t, ValidateConfig(cfg), 6)
	assert.Len(t, ValidateConfig(nil), 1)

	known := func(name string) bool { return name == "user" }
	cfg = NewConfig()
	cfg.AddRule(NewACL("*", "a", Read))
	cfg.AddRule(NewACL("user", "a", Read))
	cfg.AddRule(NewACL("printer", "a", Read))
	errs := ValidateTypes(cfg, known)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnknownTarget)
}
