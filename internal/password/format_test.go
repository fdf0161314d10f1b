package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *Hasher {
	return NewHasher(Params{
		BcryptCost: bcrypt.MinCost,
		Argon2: Argon2Params{
			Time:    1,
			Memory:  64,
			Threads: 1,
			SaltLen: 8,
			KeyLen:  16,
		},
	})
}

func TestKnownLegacyHashes(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) (string, error)
		in   string
		want string
	}{
		{"lanman empty", LanmanHash, "", "AAD3B435B51404EEAAD3B435B51404EE"},
		{"lanman password", LanmanHash, "password", "E52CAC67419A9A224A3B108F3FA6CB6D"},
		{"lanman case folded", LanmanHash, "PassWord", "E52CAC67419A9A224A3B108F3FA6CB6D"},
		{"ntlm empty", NTHash, "", "31D6CFE0D16AE931B73C59D7E0C089C0"},
		{"ntlm password", NTHash, "password", "8846F7EAEE8FB117AD06BDD830B7586C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanmanUnencodable(t *testing.T) {
	_, err := LanmanHash("密码")
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	h := testHasher()

	for _, f := range AllFormats() {
		t.Run(f.String(), func(t *testing.T) {
			hash, err := h.Generate(f, "Secret12")
			require.NoError(t, err)

			assert.True(t, WellFormed(f, hash), "generated %q", hash)
			assert.True(t, h.Verify(f, hash, "Secret12"))
			assert.False(t, h.Verify(f, hash, "Secret13"))

			if f.CaseSensitive() {
				assert.False(t, h.Verify(f, hash, "secret12"))
			} else {
				assert.True(t, h.Verify(f, hash, "secret12"))
			}
		})
	}
}

func TestBcryptPrecision(t *testing.T) {
	h := testHasher()
	long := strings.Repeat("x", 72)

	hash, err := h.Generate(FormatBcrypt, long+"tail")
	require.NoError(t, err)
	assert.True(t, h.Verify(FormatBcrypt, hash, long+"other"))
}

func TestWellFormed(t *testing.T) {
	tests := []struct {
		format Format
		hash   string
		want   bool
	}{
		{FormatCrypt, "abJnggxhB/yWI", true},
		{FormatCrypt, "abJnggxhB/yW", false},
		{FormatCrypt, "ab!nggxhB/yWI", false},
		{FormatLanman, "AAD3B435B51404EEAAD3B435B51404EE", true},
		{FormatNTLM, "31d6cfe0d16ae931b73c59d7e0c089c0", true},
		{FormatNTLM, "31D6CFE0", false},
		{FormatMD5Crypt, "$1$saltsalt$qjXMvbEw8oaL.CzflDugX/", true},
		{FormatMD5Crypt, "$1$nohash", false},
		{FormatApacheMD5, "$apr1$salt$hash", true},
		{FormatApacheMD5, "$1$salt$hash", false},
		{FormatSHA256Crypt, "$5$rounds=5000$salt$hash", true},
		{FormatSHA512Crypt, "$6$salt$hash", true},
		{FormatSHA512Crypt, "$6$salt$", false},
		{FormatSSHA, "{SSHA}", false},
		{FormatSSHA, "{SHA}W6ph5Mm5Pz8GgiULbPgzG37mj9g=", false},
		{FormatBcrypt, "$2a$04$abcdefghijklmnopqrstu", false},
		{FormatArgon2id, "$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", true},
		{FormatArgon2id, "$argon2id$v=16$m=64,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", false},
		{FormatArgon2id, "$argon2i$v=19$m=64,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", false},
		{FormatArgon2id, "$argon2id$v=19$m=64,t=0,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", false},
	}

	for _, tt := range tests {
		t.Run(tt.format.String()+" "+tt.hash, func(t *testing.T) {
			assert.Equal(t, tt.want, WellFormed(tt.format, tt.hash))
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range AllFormats() {
		got, err := ParseFormat(strings.ToUpper(f.String()))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFormat("rot13")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, "unknown", Format(99).String())
}

func TestCovers(t *testing.T) {
	tests := []struct {
		format    Format
		candidate string
		want      bool
	}{
		{FormatCrypt, "short1", true},
		{FormatCrypt, "exactly8", true},
		{FormatCrypt, "averylongpassword123", false},
		{FormatLanman, "short", false},
		{FormatBcrypt, strings.Repeat("a", 72), true},
		{FormatBcrypt, strings.Repeat("a", 73), false},
		{FormatSHA512Crypt, strings.Repeat("a", 500), true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.format.Covers(tt.candidate), "%s/%d", tt.format, len(tt.candidate))
	}
}

func TestMatchOrderComplete(t *testing.T) {
	assert.ElementsMatch(t, AllFormats(), MatchOrder)
	assert.Equal(t, FormatArgon2id, MatchOrder[0])
	assert.Equal(t, FormatCrypt, MatchOrder[len(MatchOrder)-1])
}
