package acl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader errors.
var (
	ErrFileNotFound   = errors.New("acl: file not found")
	ErrInvalidYAML    = errors.New("acl: invalid YAML format")
	ErrInvalidVersion = errors.New("acl: invalid version")
	ErrInvalidPolicy  = errors.New("acl: invalid default policy")
	ErrInvalidRight   = errors.New("acl: invalid right")
	ErrInvalidScope   = errors.New("acl: invalid scope")
	ErrMissingTarget  = errors.New("acl: missing target")
	ErrMissingSubject = errors.New("acl: missing subject")
	ErrMissingRights  = errors.New("acl: missing rights")
	ErrUnknownTarget  = errors.New("acl: unknown target type")
)

// FileConfig represents the ACL file structure.
type FileConfig struct {
	Version       int              `yaml:"version"`
	DefaultPolicy string           `yaml:"defaultPolicy"`
	Rules         []FileRuleConfig `yaml:"rules"`
}

// FileRuleConfig represents a single rule in the ACL file.
type FileRuleConfig struct {
	Target  string   `yaml:"target"`
	Subject string   `yaml:"subject"`
	Scope   string   `yaml:"scope"`
	Rights  []string `yaml:"rights"`
	Fields  []string `yaml:"fields"`
	Deny    bool     `yaml:"deny"`
}

// LoadFromFile loads ACL configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("acl: failed to read file: %w", err)
	}

	return ParseACLYAML(data)
}

// ParseACLYAML parses ACL configuration from YAML bytes.
//
// Example:
//
//	version: 1
//	defaultPolicy: deny
//	rules:
//	  - target: "*"
//	    subject: admin
//	    rights: [all]
//	  - target: user
//	    subject: "*"
//	    fields: [password]
//	    rights: [read]
//	    deny: true
//	  - target: user
//	    subject: self
//	    rights: [read, write]
func ParseACLYAML(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	fc := &FileConfig{Version: 1, DefaultPolicy: "deny"}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return convertFileConfig(fc)
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns.
func substituteEnvVars(data []byte) []byte {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])

		if idx := strings.Index(content, ":-"); idx != -1 {
			if val := os.Getenv(content[:idx]); val != "" {
				return []byte(val)
			}
			return []byte(content[idx+2:])
		}

		return []byte(os.Getenv(content))
	})
}

func convertFileConfig(fc *FileConfig) (*Config, error) {
	if fc.Version < 1 {
		return nil, fmt.Errorf("%w: must be >= 1", ErrInvalidVersion)
	}

	policy := strings.ToLower(fc.DefaultPolicy)
	if policy != "allow" && policy != "deny" && policy != "" {
		return nil, fmt.Errorf("%w: %s (must be allow or deny)", ErrInvalidPolicy, fc.DefaultPolicy)
	}

	config := NewConfig()
	if policy != "" {
		config.SetDefaultPolicy(policy)
	}

	for i := range fc.Rules {
		rule, err := convertRule(&fc.Rules[i], i)
		if err != nil {
			return nil, err
		}
		config.AddRule(rule)
	}

	return config, nil
}

func convertRule(r *FileRuleConfig, index int) (*ACL, error) {
	if r.Target == "" {
		return nil, fmt.Errorf("rule %d: %w", index, ErrMissingTarget)
	}
	if r.Subject == "" {
		return nil, fmt.Errorf("rule %d: %w", index, ErrMissingSubject)
	}
	if len(r.Rights) == 0 {
		return nil, fmt.Errorf("rule %d: %w", index, ErrMissingRights)
	}

	rights, err := ParseRights(r.Rights)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", index, err)
	}

	rule := NewACL(r.Target, r.Subject, rights)

	if r.Scope != "" {
		scope, err := ParseScope(r.Scope)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", index, err)
		}
		rule.WithScope(scope)
	}

	if len(r.Fields) > 0 {
		rule.WithFields(r.Fields...)
	}

	return rule.WithDeny(r.Deny), nil
}

// ParseRights converts string rights to Right flags.
func ParseRights(rights []string) (Right, error) {
	var result Right

	for _, r := range rights {
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "read":
			result |= Read
		case "write", "edit":
			result |= Write
		case "create":
			result |= Create
		case "delete":
			result |= Delete
		case "all":
			result |= All
		default:
			return 0, fmt.Errorf("%w: %s", ErrInvalidRight, r)
		}
	}

	return result, nil
}

// ParseScope converts string scope to Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return ScopeBase, nil
	case "one", "onelevel":
		return ScopeOne, nil
	case "sub", "subtree", "":
		return ScopeSubtree, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidScope, s)
	}
}
