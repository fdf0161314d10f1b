package password

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/apr1_crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

// Hash errors.
var (
	ErrUnknownFormat = errors.New("password: unknown hash format")
	ErrMalformedHash = errors.New("password: malformed hash text")
	ErrInvalidSalt   = errors.New("password: invalid crypt salt")
	ErrUnencodable   = errors.New("password: text cannot be encoded for this format")
)

// Format identifies one stored hash representation.
type Format int

const (
	// FormatCrypt is traditional DES crypt(3).
	FormatCrypt Format = iota + 1
	// FormatLanman is the LAN Manager hash.
	FormatLanman
	// FormatNTLM is the Windows NT hash.
	FormatNTLM
	// FormatMD5Crypt is the FreeBSD-style $1$ MD5 crypt.
	FormatMD5Crypt
	// FormatApacheMD5 is the Apache $apr1$ variant of MD5 crypt.
	FormatApacheMD5
	// FormatSSHA is the LDAP salted SHA-1 hash.
	FormatSSHA
	// FormatSHA256Crypt is the $5$ SHA-256 crypt.
	FormatSHA256Crypt
	// FormatSHA512Crypt is the $6$ SHA-512 crypt.
	FormatSHA512Crypt
	// FormatBcrypt is bcrypt.
	FormatBcrypt
	// FormatArgon2id is argon2id in PHC string form.
	FormatArgon2id
)

// String returns the configuration name of the format.
func (f Format) String() string {
	switch f {
	case FormatCrypt:
		return "crypt"
	case FormatLanman:
		return "lanman"
	case FormatNTLM:
		return "ntlm"
	case FormatMD5Crypt:
		return "md5crypt"
	case FormatApacheMD5:
		return "apachemd5"
	case FormatSSHA:
		return "ssha"
	case FormatSHA256Crypt:
		return "sha256crypt"
	case FormatSHA512Crypt:
		return "sha512crypt"
	case FormatBcrypt:
		return "bcrypt"
	case FormatArgon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name as written in schema files.
func ParseFormat(name string) (Format, error) {
	for _, f := range AllFormats() {
		if strings.EqualFold(name, f.String()) {
			return f, nil
		}
	}
	return 0, ErrUnknownFormat
}

// AllFormats returns every format in declaration order.
func AllFormats() []Format {
	return []Format{
		FormatCrypt, FormatLanman, FormatNTLM, FormatMD5Crypt, FormatApacheMD5,
		FormatSSHA, FormatSHA256Crypt, FormatSHA512Crypt, FormatBcrypt, FormatArgon2id,
	}
}

// MatchOrder lists formats strongest first. Candidates are verified in
// this order after stored plaintext.
var MatchOrder = []Format{
	FormatArgon2id,
	FormatBcrypt,
	FormatSHA512Crypt,
	FormatSHA256Crypt,
	FormatSSHA,
	FormatMD5Crypt,
	FormatApacheMD5,
	FormatNTLM,
	FormatLanman,
	FormatCrypt,
}

// Precision returns how many leading bytes of a password the format
// depends on, or 0 when every byte counts.
func (f Format) Precision() int {
	switch f {
	case FormatCrypt:
		return 8
	case FormatLanman:
		return 14
	case FormatBcrypt:
		return 72
	default:
		return 0
	}
}

// CaseSensitive reports whether the format distinguishes letter case.
func (f Format) CaseSensitive() bool {
	return f != FormatLanman
}

// Covers reports whether a successful match in this format proves the
// whole candidate, so the candidate may be trusted as the plaintext.
func (f Format) Covers(candidate string) bool {
	if !f.CaseSensitive() {
		return false
	}
	p := f.Precision()
	return p == 0 || len(candidate) <= p
}

// WellFormed reports whether hash has the structure of format f.
func WellFormed(f Format, hash string) bool {
	switch f {
	case FormatCrypt:
		if len(hash) != 13 {
			return false
		}
		for i := 0; i < len(hash); i++ {
			if !isCryptChar(hash[i]) {
				return false
			}
		}
		return true
	case FormatLanman, FormatNTLM:
		return isHex32(hash)
	case FormatMD5Crypt:
		return wellFormedModular(hash, "$1$")
	case FormatApacheMD5:
		return wellFormedModular(hash, "$apr1$")
	case FormatSHA256Crypt:
		return wellFormedModular(hash, "$5$")
	case FormatSHA512Crypt:
		return wellFormedModular(hash, "$6$")
	case FormatSSHA:
		return wellFormedSSHA(hash)
	case FormatBcrypt:
		_, err := bcrypt.Cost([]byte(hash))
		return err == nil
	case FormatArgon2id:
		_, err := parseArgon2id(hash)
		return err == nil
	default:
		return false
	}
}

// wellFormedModular checks a $id$[rounds=N$]salt$hash string.
func wellFormedModular(hash, prefix string) bool {
	if !strings.HasPrefix(hash, prefix) {
		return false
	}
	rest := strings.Split(hash[len(prefix):], "$")
	if len(rest) == 3 && strings.HasPrefix(rest[0], "rounds=") {
		rest = rest[1:]
	}
	return len(rest) == 2 && rest[1] != ""
}

// Params configures the cost of generated hashes.
type Params struct {
	BcryptCost int
	Argon2     Argon2Params
}

// DefaultParams returns production hashing costs.
func DefaultParams() Params {
	return Params{
		BcryptCost: bcrypt.DefaultCost,
		Argon2:     DefaultArgon2Params(),
	}
}

// Hasher generates and verifies every supported format.
type Hasher struct {
	params Params
	salt   func() (string, error)
}

// NewHasher creates a Hasher with the given cost parameters.
func NewHasher(params Params) *Hasher {
	if params.BcryptCost == 0 {
		params.BcryptCost = bcrypt.DefaultCost
	}
	if params.Argon2.Time == 0 {
		params.Argon2 = DefaultArgon2Params()
	}
	return &Hasher{params: params, salt: randomCryptSalt}
}

// Params returns the hasher's cost parameters.
func (h *Hasher) Params() Params {
	return h.params
}

// Generate derives the format f hash of text.
func (h *Hasher) Generate(f Format, text string) (string, error) {
	switch f {
	case FormatCrypt:
		salt, err := h.salt()
		if err != nil {
			return "", err
		}
		return DESCrypt(text, salt)
	case FormatLanman:
		return LanmanHash(text)
	case FormatNTLM:
		return NTHash(text)
	case FormatMD5Crypt:
		return crypt.MD5.New().Generate([]byte(text), nil)
	case FormatApacheMD5:
		return crypt.APR1.New().Generate([]byte(text), nil)
	case FormatSHA256Crypt:
		return crypt.SHA256.New().Generate([]byte(text), nil)
	case FormatSHA512Crypt:
		return crypt.SHA512.New().Generate([]byte(text), nil)
	case FormatSSHA:
		return SSHA(text)
	case FormatBcrypt:
		b, err := bcrypt.GenerateFromPassword(truncate(text, 72), h.params.BcryptCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case FormatArgon2id:
		return Argon2id(text, h.params.Argon2)
	default:
		return "", ErrUnknownFormat
	}
}

// Verify checks text against a stored hash in format f.
func (h *Hasher) Verify(f Format, hash, text string) bool {
	switch f {
	case FormatCrypt:
		if len(hash) < 2 {
			return false
		}
		computed, err := DESCrypt(text, hash[:2])
		return err == nil && constantEqual(computed, hash)
	case FormatLanman:
		computed, err := LanmanHash(text)
		return err == nil && constantEqual(computed, strings.ToUpper(hash))
	case FormatNTLM:
		computed, err := NTHash(text)
		return err == nil && constantEqual(computed, strings.ToUpper(hash))
	case FormatMD5Crypt:
		return crypt.MD5.New().Verify(hash, []byte(text)) == nil
	case FormatApacheMD5:
		return crypt.APR1.New().Verify(hash, []byte(text)) == nil
	case FormatSHA256Crypt:
		return crypt.SHA256.New().Verify(hash, []byte(text)) == nil
	case FormatSHA512Crypt:
		return crypt.SHA512.New().Verify(hash, []byte(text)) == nil
	case FormatSSHA:
		return VerifySSHA(hash, text)
	case FormatBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(hash), truncate(text, 72)) == nil
	case FormatArgon2id:
		return VerifyArgon2id(hash, text)
	default:
		return false
	}
}

func truncate(text string, n int) []byte {
	b := []byte(text)
	if len(b) > n {
		b = b[:n]
	}
	return b
}

func constantEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomCryptSalt() (string, error) {
	b, err := randomBytes(2)
	if err != nil {
		return "", err
	}
	return string([]byte{cryptAlphabet[b[0]&0x3f], cryptAlphabet[b[1]&0x3f]}), nil
}
