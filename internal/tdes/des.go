// Package tdes implements the FIPS 46-3 DES/TDES primitives used by the
// gateway's PIN cryptography core: single-DES per the classic Feistel
// structure (IP, key schedule via PC1/PC2, S-boxes, P, IP^-1), chained into
// ECB-mode EDE-2/EDE-3 triple-DES, plus the key-check-value convenience
// function built on top of it.
package tdes

// Bit-position tables below are numbered 1..n from the most significant bit,
// exactly as FIPS 46-3 lists them.
var (
	ipTable = []int{
		58, 50, 42, 34, 26, 18, 10, 2, 60, 52, 44, 36, 28, 20, 12, 4,
		62, 54, 46, 38, 30, 22, 14, 6, 64, 56, 48, 40, 32, 24, 16, 8,
		57, 49, 41, 33, 25, 17, 9, 1, 59, 51, 43, 35, 27, 19, 11, 3,
		61, 53, 45, 37, 29, 21, 13, 5, 63, 55, 47, 39, 31, 23, 15, 7,
	}
	fpTable = []int{
		40, 8, 48, 16, 56, 24, 64, 32, 39, 7, 47, 15, 55, 23, 63, 31,
		38, 6, 46, 14, 54, 22, 62, 30, 37, 5, 45, 13, 53, 21, 61, 29,
		36, 4, 44, 12, 52, 20, 60, 28, 35, 3, 43, 11, 51, 19, 59, 27,
		34, 2, 42, 10, 50, 18, 58, 26, 33, 1, 41, 9, 49, 17, 57, 25,
	}
	eTable = []int{
		32, 1, 2, 3, 4, 5, 4, 5, 6, 7, 8, 9, 8, 9, 10, 11,
		12, 13, 12, 13, 14, 15, 16, 17, 16, 17, 18, 19, 20, 21, 20, 21,
		22, 23, 24, 25, 24, 25, 26, 27, 28, 29, 28, 29, 30, 31, 32, 1,
	}
	pTable = []int{
		16, 7, 20, 21, 29, 12, 28, 17, 1, 15, 23, 26, 5, 18, 31, 10,
		2, 8, 24, 14, 32, 27, 3, 9, 19, 13, 30, 6, 22, 11, 4, 25,
	}
	pc1Table = []int{
		57, 49, 41, 33, 25, 17, 9, 1, 58, 50, 42, 34, 26, 18, 10, 2,
		59, 51, 43, 35, 27, 19, 11, 3, 60, 52, 44, 36, 63, 55, 47, 39,
		31, 23, 15, 7, 62, 54, 46, 38, 30, 22, 14, 6, 61, 53, 45, 37,
		29, 21, 13, 5, 28, 20, 12, 4,
	}
	pc2Table = []int{
		14, 17, 11, 24, 1, 5, 3, 28, 15, 6, 21, 10, 23, 19, 12, 4,
		26, 8, 16, 7, 27, 20, 13, 2, 41, 52, 31, 37, 47, 55, 30, 40,
		51, 45, 33, 48, 44, 49, 39, 56, 34, 53, 46, 42, 50, 36, 29, 32,
	}
	roundShifts = [16]uint{1, 1, 2, 2, 2, 2, 2, 2, 1, 2, 2, 2, 2, 2, 2, 1}

	sboxes = [8][4][16]uint64{
		{
			{14, 4, 13, 1, 2, 15, 11, 8, 3, 10, 6, 12, 5, 9, 0, 7},
			{0, 15, 7, 4, 14, 2, 13, 1, 10, 6, 12, 11, 9, 5, 3, 8},
			{4, 1, 14, 8, 13, 6, 2, 11, 15, 12, 9, 7, 3, 10, 5, 0},
			{15, 12, 8, 2, 4, 9, 1, 7, 5, 11, 3, 14, 10, 0, 6, 13},
		},
		{
			{15, 1, 8, 14, 6, 11, 3, 4, 9, 7, 2, 13, 12, 0, 5, 10},
			{3, 13, 4, 7, 15, 2, 8, 14, 12, 0, 1, 10, 6, 9, 11, 5},
			{0, 14, 7, 11, 10, 4, 13, 1, 5, 8, 12, 6, 9, 3, 2, 15},
			{13, 8, 10, 1, 3, 15, 4, 2, 11, 6, 7, 12, 0, 5, 14, 9},
		},
		{
			{10, 0, 9, 14, 6, 3, 15, 5, 1, 13, 12, 7, 11, 4, 2, 8},
			{13, 7, 0, 9, 3, 4, 6, 10, 2, 8, 5, 14, 12, 11, 15, 1},
			{13, 6, 4, 9, 8, 15, 3, 0, 11, 1, 2, 12, 5, 10, 14, 7},
			{1, 10, 13, 0, 6, 9, 8, 7, 4, 15, 14, 3, 11, 5, 2, 12},
		},
		{
			{7, 13, 14, 3, 0, 6, 9, 10, 1, 2, 8, 5, 11, 12, 4, 15},
			{13, 8, 11, 5, 6, 15, 0, 3, 4, 7, 2, 12, 1, 10, 14, 9},
			{10, 6, 9, 0, 12, 11, 7, 13, 15, 1, 3, 14, 5, 2, 8, 4},
			{3, 15, 0, 6, 10, 1, 13, 8, 9, 4, 5, 11, 12, 7, 2, 14},
		},
		{
			{2, 12, 4, 1, 7, 10, 11, 6, 8, 5, 3, 15, 13, 0, 14, 9},
			{14, 11, 2, 12, 4, 7, 13, 1, 5, 0, 15, 10, 3, 9, 8, 6},
			{4, 2, 1, 11, 10, 13, 7, 8, 15, 9, 12, 5, 6, 3, 0, 14},
			{11, 8, 12, 7, 1, 14, 2, 13, 6, 15, 0, 9, 10, 4, 5, 3},
		},
		{
			{12, 1, 10, 15, 9, 2, 6, 8, 0, 13, 3, 4, 14, 7, 5, 11},
			{10, 15, 4, 2, 7, 12, 9, 5, 6, 1, 13, 14, 0, 11, 3, 8},
			{9, 14, 15, 5, 2, 8, 12, 3, 7, 0, 4, 10, 1, 13, 11, 6},
			{4, 3, 2, 12, 9, 5, 15, 10, 11, 14, 1, 7, 6, 0, 8, 13},
		},
		{
			{4, 11, 2, 14, 15, 0, 8, 13, 3, 12, 9, 7, 5, 10, 6, 1},
			{13, 0, 11, 7, 4, 9, 1, 10, 14, 3, 5, 12, 2, 15, 8, 6},
			{1, 4, 11, 13, 12, 3, 7, 14, 10, 15, 6, 8, 0, 5, 9, 2},
			{6, 11, 13, 8, 1, 4, 10, 7, 9, 5, 0, 15, 14, 2, 3, 12},
		},
		{
			{13, 2, 8, 4, 6, 15, 11, 1, 10, 9, 3, 14, 5, 0, 12, 7},
			{1, 15, 13, 8, 10, 3, 7, 4, 12, 5, 6, 11, 0, 14, 9, 2},
			{7, 11, 4, 1, 9, 12, 14, 2, 0, 6, 10, 13, 15, 3, 5, 8},
			{2, 1, 14, 7, 4, 10, 8, 13, 15, 12, 9, 0, 3, 5, 6, 11},
		},
	}
)

// getBit returns bit `pos` (1-indexed from the most significant bit) of the
// low `width` bits of v.
func getBit(v uint64, width, pos int) uint64 {
	return (v >> uint(width-pos)) & 1
}

// permute builds an len(table)-bit value out of the low `width` bits of v,
// selecting bit table[i] (1-indexed from the MSB) for output position i.
func permute(v uint64, width int, table []int) uint64 {
	var out uint64
	n := len(table)
	for i, p := range table {
		out |= getBit(v, width, p) << uint(n-1-i)
	}

	return out
}

func leftRotate28(v uint64, n uint) uint64 {
	const mask = (1 << 28) - 1
	v &= mask

	return ((v << n) | (v >> (28 - n))) & mask
}

// roundKeys computes the 16 48-bit round subkeys from a 64-bit (with parity
// bits) DES key.
func roundKeys(key uint64) [16]uint64 {
	kp := permute(key, 64, pc1Table) // 56 bits
	c := (kp >> 28) & ((1 << 28) - 1)
	d := kp & ((1 << 28) - 1)

	var keys [16]uint64
	for i := 0; i < 16; i++ {
		c = leftRotate28(c, roundShifts[i])
		d = leftRotate28(d, roundShifts[i])
		cd := (c << 28) | d
		keys[i] = permute(cd, 56, pc2Table)
	}

	return keys
}

func feistel(r uint32, subkey uint64) uint32 {
	expanded := permute(uint64(r), 32, eTable) ^ subkey // 48 bits
	var sboxOut uint64
	for i := 0; i < 8; i++ {
		shift := uint(42 - 6*i)
		chunk := (expanded >> shift) & 0x3F
		row := ((chunk >> 4) & 0x2) | (chunk & 0x1)
		col := (chunk >> 1) & 0xF
		sboxOut = (sboxOut << 4) | sboxes[i][row][col]
	}

	return uint32(permute(sboxOut, 32, pTable))
}

// encryptBlock runs the 16-round Feistel network in forward key order.
func encryptBlock(block uint64, keys [16]uint64) uint64 {
	ip := permute(block, 64, ipTable)
	l := uint32(ip >> 32)
	r := uint32(ip)
	for i := 0; i < 16; i++ {
		l, r = r, l^feistel(r, keys[i])
	}
	preOutput := (uint64(r) << 32) | uint64(l)

	return permute(preOutput, 64, fpTable)
}

// decryptBlock runs the same network with the round keys applied in reverse.
func decryptBlock(block uint64, keys [16]uint64) uint64 {
	reversed := keys
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	return encryptBlock(block, reversed)
}
