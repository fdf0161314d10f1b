package password

import (
	"crypto/des"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// With salt "..", crypt(3) is 25 plain DES encryptions of a zero block.
func TestDESCryptMatchesStandardDES(t *testing.T) {
	keys := []string{"", "a", "password", "12345678", "Tr0ub4dor&3"}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			var raw [8]byte
			for i := 0; i < 8 && i < len(key); i++ {
				raw[i] = key[i] << 1
			}
			block, err := des.NewCipher(raw[:])
			require.NoError(t, err)

			buf := make([]byte, 8)
			for i := 0; i < 25; i++ {
				block.Encrypt(buf, buf)
			}
			want := binary.BigEndian.Uint64(buf)

			assert.Equal(t, want, desCryptBlock(key, 0))

			got, err := DESCrypt(key, "..")
			require.NoError(t, err)
			assert.Equal(t, ".."+encodeCryptBlock(want), got)
		})
	}
}

func TestDESSBoxRowsArePermutations(t *testing.T) {
	for s, box := range desSBox {
		for row := 0; row < 4; row++ {
			seen := make(map[byte]bool)
			for col := 0; col < 16; col++ {
				seen[box[row*16+col]] = true
			}
			assert.Len(t, seen, 16, "S%d row %d", s+1, row)
		}
	}
}

func TestDESCryptProperties(t *testing.T) {
	h1, err := DESCrypt("secret", "ab")
	require.NoError(t, err)
	assert.Len(t, h1, 13)
	assert.Equal(t, "ab", h1[:2])

	again, err := DESCrypt("secret", "ab")
	require.NoError(t, err)
	assert.Equal(t, h1, again)

	other, err := DESCrypt("secret", "ac")
	require.NoError(t, err)
	assert.NotEqual(t, h1, other, "salt must perturb the result")

	long1, err := DESCrypt("abcdefgh-one", "zz")
	require.NoError(t, err)
	long2, err := DESCrypt("abcdefgh-two", "zz")
	require.NoError(t, err)
	assert.Equal(t, long1, long2, "only eight bytes are significant")

	assert.True(t, WellFormed(FormatCrypt, h1))
}

func TestDESCryptInvalidSalt(t *testing.T) {
	for _, salt := range []string{"", "a", "a!", "é."} {
		_, err := DESCrypt("x", salt)
		assert.ErrorIs(t, err, ErrInvalidSalt, "salt %q", salt)
	}
}

func TestCryptCharValue(t *testing.T) {
	for i := 0; i < len(cryptAlphabet); i++ {
		assert.Equal(t, uint32(i), cryptCharValue(cryptAlphabet[i]))
	}
}
