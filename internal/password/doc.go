// Package password provides password policy, reuse history and the hash
// formats stored by password fields.
//
// # Overview
//
// A password field may keep the same secret in several parallel forms so
// that different consumers (Unix login, Samba, LDAP binds, web servers)
// can each authenticate against the representation they understand. This
// package provides:
//
//   - Password policy: length, allowed and forbidden characters, complexity
//   - Reuse history: a bounded pool of previous passwords, oldest evicted first
//   - Hash formats: generation, verification and structural checks
//
// # Password Policy
//
// Create a policy with complexity requirements:
//
//	policy := &password.Policy{
//	    Enabled:          true,
//	    MinLength:        8,
//	    MaxLength:        128,
//	    BadChars:         ": ",
//	    RequireUppercase: true,
//	    RequireDigit:     true,
//	    HistoryCount:     5,
//	}
//
// A Validator runs the checks in a fixed order and can downgrade quality
// and reuse failures to warnings for privileged callers:
//
//	v := password.NewValidator(policy, nil)
//	warnings, err := v.Validate("MyP@ssw0rd", history, privileged)
//
// # Hash Formats
//
// Formats are listed strongest first in MatchOrder:
//
//	argon2id, bcrypt, sha512crypt, sha256crypt, ssha,
//	md5crypt, apachemd5, ntlm, lanman, crypt
//
// Some legacy formats only depend on a prefix of the password (crypt uses
// eight bytes, lanman fourteen and is case-insensitive). Format.Covers
// reports whether a match in a format proves the whole candidate:
//
//	h := password.NewHasher(password.DefaultParams())
//	hash, _ := h.Generate(password.FormatCrypt, "secret")
//	if h.Verify(password.FormatCrypt, hash, candidate) &&
//	    password.FormatCrypt.Covers(candidate) {
//	    // candidate is the full plaintext
//	}
//
// # Field Policies
//
// The Manager holds the global policy and per-field overrides keyed by
// "type.field":
//
//	m := password.NewManager(password.DefaultPolicy(), nil)
//	m.SetFieldPolicy("user.password", &password.Policy{MinLength: 12})
//	effective := m.GetPolicy("user.password")
package password
