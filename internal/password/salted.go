package password

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SchemeSSHA is the salted SHA-1 scheme prefix.
const SchemeSSHA = "{SSHA}"

// sshaSaltLen is the salt length used for new SSHA hashes.
const sshaSaltLen = 8

// SSHA hashes text with a fresh random salt.
func SSHA(text string) (string, error) {
	salt, err := randomBytes(sshaSaltLen)
	if err != nil {
		return "", err
	}
	return sshaWithSalt(text, salt), nil
}

func sshaWithSalt(text string, salt []byte) string {
	h := sha1.New()
	h.Write([]byte(text))
	h.Write(salt)
	sum := h.Sum(nil)

	// Hash followed by salt
	data := make([]byte, 0, len(sum)+len(salt))
	data = append(data, sum...)
	data = append(data, salt...)

	return SchemeSSHA + base64.StdEncoding.EncodeToString(data)
}

// VerifySSHA checks text against an SSHA hash.
func VerifySSHA(hash, text string) bool {
	if !strings.HasPrefix(hash, SchemeSSHA) {
		return false
	}
	data, err := base64.StdEncoding.DecodeString(hash[len(SchemeSSHA):])
	if err != nil || len(data) <= sha1.Size {
		return false
	}

	computed := sshaWithSalt(text, data[sha1.Size:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func wellFormedSSHA(hash string) bool {
	if !strings.HasPrefix(hash, SchemeSSHA) {
		return false
	}
	data, err := base64.StdEncoding.DecodeString(hash[len(SchemeSSHA):])
	return err == nil && len(data) > sha1.Size
}

// Argon2Params are the cost parameters for new argon2id hashes.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params returns the parameters recommended for interactive logins.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Argon2id hashes text and returns a PHC-format string.
func Argon2id(text string, p Argon2Params) (string, error) {
	salt, err := randomBytes(p.SaltLen)
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(text), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// argon2Hash is a parsed PHC argon2id string.
type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2id(hash string) (*argon2Hash, error) {
	parts := strings.Split(hash, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrMalformedHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, ErrMalformedHash
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, ErrMalformedHash
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return nil, ErrMalformedHash
			}
			p.Threads = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, ErrMalformedHash
	}

	p.SaltLen = len(salt)
	p.KeyLen = uint32(len(key))
	return &argon2Hash{params: p, salt: salt, key: key}, nil
}

// VerifyArgon2id checks text against a PHC-format argon2id hash.
func VerifyArgon2id(hash, text string) bool {
	h, err := parseArgon2id(hash)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(text), h.salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("password: reading random salt: %w", err)
	}
	return b, nil
}
