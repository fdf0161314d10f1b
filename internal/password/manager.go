package password

import (
	"sort"
	"strings"
	"sync"
)

// Manager holds the global password policy and per-field overrides.
// Fields are keyed by "type.field" names.
type Manager struct {
	mu            sync.RWMutex
	globalPolicy  *Policy
	fieldPolicies map[string]*Policy
	hasher        *Hasher
}

// NewManager creates a new password policy manager with the given global
// policy and hasher. Nil arguments select the defaults.
func NewManager(global *Policy, hasher *Hasher) *Manager {
	if global == nil {
		global = DefaultPolicy()
	}
	if hasher == nil {
		hasher = NewHasher(DefaultParams())
	}
	return &Manager{
		globalPolicy:  global.Clone(),
		fieldPolicies: make(map[string]*Policy),
		hasher:        hasher,
	}
}

// Hasher returns the hasher shared by every password field.
func (m *Manager) Hasher() *Hasher {
	return m.hasher
}

// GetPolicy returns the effective policy for a field: the global policy
// merged with the field's override, if any.
func (m *Manager) GetPolicy(field string) *Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	override, exists := m.fieldPolicies[normalizeKey(field)]
	if !exists {
		return m.globalPolicy.Clone()
	}
	return m.globalPolicy.Merge(override)
}

// SetFieldPolicy sets a policy override for a field.
// Pass nil to remove the override.
func (m *Manager) SetFieldPolicy(field string, policy *Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeKey(field)
	if policy == nil {
		delete(m.fieldPolicies, key)
		return
	}
	m.fieldPolicies[key] = policy.Clone()
}

// GetGlobalPolicy returns a copy of the global password policy.
func (m *Manager) GetGlobalPolicy() *Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalPolicy.Clone()
}

// SetGlobalPolicy updates the global password policy.
func (m *Manager) SetGlobalPolicy(policy *Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if policy == nil {
		m.globalPolicy = DefaultPolicy()
		return
	}
	m.globalPolicy = policy.Clone()
}

// ListFieldPolicies returns the sorted keys of fields with overrides.
func (m *Manager) ListFieldPolicies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.fieldPolicies))
	for k := range m.fieldPolicies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validator returns a validator for the effective policy of a field.
func (m *Manager) Validator(field string, quality QualityFunc) *Validator {
	return NewValidator(m.GetPolicy(field), quality)
}

func normalizeKey(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}
