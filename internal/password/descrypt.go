package password

// Traditional DES-based crypt(3). Only the first eight bytes of the key
// are significant, and the two salt characters perturb the expansion
// permutation so precomputed DES tables cannot be reused.

const cryptAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DES permutation tables, 1-indexed from the most significant bit.
var (
	desIP = [64]byte{
		58, 50, 42, 34, 26, 18, 10, 2,
		60, 52, 44, 36, 28, 20, 12, 4,
		62, 54, 46, 38, 30, 22, 14, 6,
		64, 56, 48, 40, 32, 24, 16, 8,
		57, 49, 41, 33, 25, 17, 9, 1,
		59, 51, 43, 35, 27, 19, 11, 3,
		61, 53, 45, 37, 29, 21, 13, 5,
		63, 55, 47, 39, 31, 23, 15, 7,
	}

	desFP = [64]byte{
		40, 8, 48, 16, 56, 24, 64, 32,
		39, 7, 47, 15, 55, 23, 63, 31,
		38, 6, 46, 14, 54, 22, 62, 30,
		37, 5, 45, 13, 53, 21, 61, 29,
		36, 4, 44, 12, 52, 20, 60, 28,
		35, 3, 43, 11, 51, 19, 59, 27,
		34, 2, 42, 10, 50, 18, 58, 26,
		33, 1, 41, 9, 49, 17, 57, 25,
	}

	desE = [48]byte{
		32, 1, 2, 3, 4, 5,
		4, 5, 6, 7, 8, 9,
		8, 9, 10, 11, 12, 13,
		12, 13, 14, 15, 16, 17,
		16, 17, 18, 19, 20, 21,
		20, 21, 22, 23, 24, 25,
		24, 25, 26, 27, 28, 29,
		28, 29, 30, 31, 32, 1,
	}

	desP = [32]byte{
		16, 7, 20, 21, 29, 12, 28, 17,
		1, 15, 23, 26, 5, 18, 31, 10,
		2, 8, 24, 14, 32, 27, 3, 9,
		19, 13, 30, 6, 22, 11, 4, 25,
	}

	desPC1 = [56]byte{
		57, 49, 41, 33, 25, 17, 9,
		1, 58, 50, 42, 34, 26, 18,
		10, 2, 59, 51, 43, 35, 27,
		19, 11, 3, 60, 52, 44, 36,
		63, 55, 47, 39, 31, 23, 15,
		7, 62, 54, 46, 38, 30, 22,
		14, 6, 61, 53, 45, 37, 29,
		21, 13, 5, 28, 20, 12, 4,
	}

	desPC2 = [48]byte{
		14, 17, 11, 24, 1, 5,
		3, 28, 15, 6, 21, 10,
		23, 19, 12, 4, 26, 8,
		16, 7, 27, 20, 13, 2,
		41, 52, 31, 37, 47, 55,
		30, 40, 51, 45, 33, 48,
		44, 49, 39, 56, 34, 53,
		46, 42, 50, 36, 29, 32,
	}

	desShifts = [16]uint{1, 1, 2, 2, 2, 2, 2, 2, 1, 2, 2, 2, 2, 2, 2, 1}

	desSBox = [8][64]byte{
		{
			14, 4, 13, 1, 2, 15, 11, 8, 3, 10, 6, 12, 5, 9, 0, 7,
			0, 15, 7, 4, 14, 2, 13, 1, 10, 6, 12, 11, 9, 5, 3, 8,
			4, 1, 14, 8, 13, 6, 2, 11, 15, 12, 9, 7, 3, 10, 5, 0,
			15, 12, 8, 2, 4, 9, 1, 7, 5, 11, 3, 14, 10, 0, 6, 13,
		},
		{
			15, 1, 8, 14, 6, 11, 3, 4, 9, 7, 2, 13, 12, 0, 5, 10,
			3, 13, 4, 7, 15, 2, 8, 14, 12, 0, 1, 10, 6, 9, 11, 5,
			0, 14, 7, 11, 10, 4, 13, 1, 5, 8, 12, 6, 9, 3, 2, 15,
			13, 8, 10, 1, 3, 15, 4, 2, 11, 6, 7, 12, 0, 5, 14, 9,
		},
		{
			10, 0, 9, 14, 6, 3, 15, 5, 1, 13, 12, 7, 11, 4, 2, 8,
			13, 7, 0, 9, 3, 4, 6, 10, 2, 8, 5, 14, 12, 11, 15, 1,
			13, 6, 4, 9, 8, 15, 3, 0, 11, 1, 2, 12, 5, 10, 14, 7,
			1, 10, 13, 0, 6, 9, 8, 7, 4, 15, 14, 3, 11, 5, 2, 12,
		},
		{
			7, 13, 14, 3, 0, 6, 9, 10, 1, 2, 8, 5, 11, 12, 4, 15,
			13, 8, 11, 5, 6, 15, 0, 3, 4, 7, 2, 12, 1, 10, 14, 9,
			10, 6, 9, 0, 12, 11, 7, 13, 15, 1, 3, 14, 5, 2, 8, 4,
			3, 15, 0, 6, 10, 1, 13, 8, 9, 4, 5, 11, 12, 7, 2, 14,
		},
		{
			2, 12, 4, 1, 7, 10, 11, 6, 8, 5, 3, 15, 13, 0, 14, 9,
			14, 11, 2, 12, 4, 7, 13, 1, 5, 0, 15, 10, 3, 9, 8, 6,
			4, 2, 1, 11, 10, 13, 7, 8, 15, 9, 12, 5, 6, 3, 0, 14,
			11, 8, 12, 7, 1, 14, 2, 13, 6, 15, 0, 9, 10, 4, 5, 3,
		},
		{
			12, 1, 10, 15, 9, 2, 6, 8, 0, 13, 3, 4, 14, 7, 5, 11,
			10, 15, 4, 2, 7, 12, 9, 5, 6, 1, 13, 14, 0, 11, 3, 8,
			9, 14, 15, 5, 2, 8, 12, 3, 7, 0, 4, 10, 1, 13, 11, 6,
			4, 3, 2, 12, 9, 5, 15, 10, 11, 14, 1, 7, 6, 0, 8, 13,
		},
		{
			4, 11, 2, 14, 15, 0, 8, 13, 3, 12, 9, 7, 5, 10, 6, 1,
			13, 0, 11, 7, 4, 9, 1, 10, 14, 3, 5, 12, 2, 15, 8, 6,
			1, 4, 11, 13, 12, 3, 7, 14, 10, 15, 6, 8, 0, 5, 9, 2,
			6, 11, 13, 8, 1, 4, 10, 7, 9, 5, 0, 15, 14, 2, 3, 12,
		},
		{
			13, 2, 8, 4, 6, 15, 11, 1, 10, 9, 3, 14, 5, 0, 12, 7,
			1, 15, 13, 8, 10, 3, 7, 4, 12, 5, 6, 11, 0, 14, 9, 2,
			7, 11, 4, 1, 9, 12, 14, 2, 0, 6, 10, 13, 15, 3, 5, 8,
			2, 1, 14, 7, 4, 10, 8, 13, 15, 12, 9, 0, 3, 5, 6, 11,
		},
	}
)

// permute maps the low width bits of in through table.
func permute(in uint64, width uint, table []byte) uint64 {
	var out uint64
	for _, pos := range table {
		out = out<<1 | (in>>(width-uint(pos)))&1
	}
	return out
}

// desSubkeys derives the 16 round keys, 48 bits each.
func desSubkeys(key uint64) [16]uint64 {
	var keys [16]uint64

	cd := permute(key, 64, desPC1[:])
	c := uint32(cd>>28) & 0x0fffffff
	d := uint32(cd) & 0x0fffffff

	for i, n := range desShifts {
		c = (c<<n | c>>(28-n)) & 0x0fffffff
		d = (d<<n | d>>(28-n)) & 0x0fffffff
		keys[i] = permute(uint64(c)<<28|uint64(d), 56, desPC2[:])
	}
	return keys
}

// desFeistel is the round function with the salt perturbation applied to
// the expanded half block.
func desFeistel(r uint32, subkey uint64, salt uint32) uint32 {
	e := permute(uint64(r), 32, desE[:])

	// Salt bit k swaps expansion outputs k and k+24
	for k := uint(0); k < 12; k++ {
		if salt>>k&1 == 0 {
			continue
		}
		hi := 47 - k
		lo := 47 - k - 24
		if (e>>hi)&1 != (e>>lo)&1 {
			e ^= 1<<hi | 1<<lo
		}
	}

	x := e ^ subkey

	var out uint32
	for s := uint(0); s < 8; s++ {
		six := (x >> (42 - 6*s)) & 0x3f
		row := (six>>4)&2 | six&1
		col := (six >> 1) & 0xf
		out = out<<4 | uint32(desSBox[s][row*16+col])
	}

	return uint32(permute(uint64(out), 32, desP[:]))
}

// desEncrypt runs one full DES encryption of block.
func desEncrypt(block uint64, keys *[16]uint64, salt uint32) uint64 {
	b := permute(block, 64, desIP[:])
	l := uint32(b >> 32)
	r := uint32(b)

	for i := 0; i < 16; i++ {
		l, r = r, l^desFeistel(r, keys[i], salt)
	}

	return permute(uint64(r)<<32|uint64(l), 64, desFP[:])
}

// cryptCharValue maps a crypt alphabet character to its 6-bit value.
// Characters outside the alphabet follow the historical arithmetic.
func cryptCharValue(c byte) uint32 {
	if c > 'Z' {
		c -= 6
	}
	if c > '9' {
		c -= 7
	}
	return uint32(c-'.') & 0x3f
}

// cryptKey packs the first eight key bytes, seven bits each, into a DES key.
func cryptKey(key string) uint64 {
	var k uint64
	for i := 0; i < 8; i++ {
		k <<= 8
		if i < len(key) {
			k |= uint64(key[i]<<1) & 0xff
		}
	}
	return k
}

// desCryptBlock returns the raw 64-bit result of crypt(3).
func desCryptBlock(key string, salt uint32) uint64 {
	keys := desSubkeys(cryptKey(key))

	var block uint64
	for i := 0; i < 25; i++ {
		block = desEncrypt(block, &keys, salt)
	}
	return block
}

// encodeCryptBlock renders a 64-bit block as 11 characters, padding the
// final character with two zero bits.
func encodeCryptBlock(block uint64) string {
	out := make([]byte, 11)
	for i := 0; i < 11; i++ {
		shift := 58 - 6*i
		var v uint64
		if shift >= 0 {
			v = block >> uint(shift)
		} else {
			v = block << uint(-shift)
		}
		out[i] = cryptAlphabet[v&0x3f]
	}
	return string(out)
}

// DESCrypt computes the traditional crypt(3) hash of key with a
// two-character salt. The result is 13 characters including the salt.
func DESCrypt(key, salt string) (string, error) {
	if len(salt) < 2 || !isCryptChar(salt[0]) || !isCryptChar(salt[1]) {
		return "", ErrInvalidSalt
	}

	s := cryptCharValue(salt[0]) | cryptCharValue(salt[1])<<6
	return salt[:2] + encodeCryptBlock(desCryptBlock(key, s)), nil
}

func isCryptChar(c byte) bool {
	return c == '.' || c == '/' ||
		(c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z')
}
