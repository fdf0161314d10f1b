package password

import (
	"crypto/des"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/md4"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// lanmanMagic is the constant block encrypted by both LAN Manager key halves.
var lanmanMagic = []byte("KGS!@#$%")

// LanmanHash returns the LAN Manager hash of text as 32 uppercase hex
// characters. The password is upper-cased, encoded in the OEM code page
// and truncated to 14 bytes.
func LanmanHash(text string) (string, error) {
	oem, err := charmap.CodePage850.NewEncoder().String(strings.ToUpper(text))
	if err != nil {
		return "", ErrUnencodable
	}

	var key [14]byte
	copy(key[:], oem)

	out := make([]byte, 16)
	for half := 0; half < 2; half++ {
		block, err := des.NewCipher(expandDESKey(key[half*7 : half*7+7]))
		if err != nil {
			return "", err
		}
		block.Encrypt(out[half*8:half*8+8], lanmanMagic)
	}

	return strings.ToUpper(hex.EncodeToString(out)), nil
}

// expandDESKey spreads 56 key bits over 8 bytes, leaving the parity bit clear.
func expandDESKey(b []byte) []byte {
	k := []byte{
		b[0] >> 1,
		(b[0]&0x01)<<6 | b[1]>>2,
		(b[1]&0x03)<<5 | b[2]>>3,
		(b[2]&0x07)<<4 | b[3]>>4,
		(b[3]&0x0f)<<3 | b[4]>>5,
		(b[4]&0x1f)<<2 | b[5]>>6,
		(b[5]&0x3f)<<1 | b[6]>>7,
		b[6] & 0x7f,
	}
	for i := range k {
		k[i] <<= 1
	}
	return k
}

// NTHash returns the Windows NT hash of text (MD4 over UTF-16LE) as 32
// uppercase hex characters.
func NTHash(text string) (string, error) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(text)
	if err != nil {
		return "", ErrUnencodable
	}

	h := md4.New()
	h.Write([]byte(utf16))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// isHex32 reports whether s is 32 hexadecimal characters.
func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
