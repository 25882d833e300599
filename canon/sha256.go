package canon

import "fmt"

// ============================================================================
// SHA-256
//
// A self-contained implementation of the FIPS 180-4 SHA-256 algorithm.
// Fingerprints must be reproducible by every client of the plan service,
// including ports that run where no synchronous crypto primitive is
// available, so the hash is kept as a small, auditable function with no
// dependencies rather than an import.
// ============================================================================

// sha256Init holds the eight initial hash words: the first 32 bits of the
// fractional parts of the square roots of the first eight primes.
var sha256Init = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// sha256K holds the 64 round constants: the first 32 bits of the fractional
// parts of the cube roots of the first 64 primes.
var sha256K = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// Sum256 computes the SHA-256 digest of data.
func Sum256(data []byte) [32]byte {
	h := sha256Init

	// Process every complete 64-byte block of the message body.
	full := len(data) &^ 63
	for i := 0; i < full; i += 64 {
		sha256Block(&h, data[i:i+64])
	}

	// Pad the tail: a single 0x80 byte, zeros up to 56 mod 64, then the
	// total message length in bits as a big-endian 64-bit integer.
	var pad [128]byte
	n := copy(pad[:], data[full:])
	pad[n] = 0x80
	padLen := 64
	if n >= 56 {
		padLen = 128
	}
	bitLen := uint64(len(data)) * 8
	for i := 0; i < 8; i++ {
		pad[padLen-1-i] = byte(bitLen >> (8 * uint(i)))
	}
	for i := 0; i < padLen; i += 64 {
		sha256Block(&h, pad[i:i+64])
	}

	var out [32]byte
	for i, word := range h {
		out[i*4] = byte(word >> 24)
		out[i*4+1] = byte(word >> 16)
		out[i*4+2] = byte(word >> 8)
		out[i*4+3] = byte(word)
	}
	return out
}

// HexSum computes the SHA-256 digest of data rendered as lowercase hex,
// the form fingerprints travel in.
func HexSum(data []byte) string {
	sum := Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// sha256Block runs the message schedule and the 64-round compression for
// one 512-bit block, folding the result into h.
func sha256Block(h *[8]uint32, p []byte) {
	var w [64]uint32
	for t := 0; t < 16; t++ {
		w[t] = uint32(p[t*4])<<24 | uint32(p[t*4+1])<<16 |
			uint32(p[t*4+2])<<8 | uint32(p[t*4+3])
	}
	for t := 16; t < 64; t++ {
		s0 := rotr(w[t-15], 7) ^ rotr(w[t-15], 18) ^ (w[t-15] >> 3)
		s1 := rotr(w[t-2], 17) ^ rotr(w[t-2], 19) ^ (w[t-2] >> 10)
		w[t] = w[t-16] + s0 + w[t-7] + s1
	}

	a, b, c, d, e, f, g, hh := h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7]

	for t := 0; t < 64; t++ {
		sum1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		ch := (e & f) ^ (^e & g)
		t1 := hh + sum1 + ch + sha256K[t] + w[t]
		sum0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := sum0 + maj

		hh = g
		g = f
		f = e
		e = d + t1
		d = c
		c = b
		b = a
		a = t1 + t2
	}

	h[0] += a
	h[1] += b
	h[2] += c
	h[3] += d
	h[4] += e
	h[5] += f
	h[6] += g
	h[7] += hh
}

// rotr rotates x right by n bits.
func rotr(x uint32, n uint) uint32 {
	return x>>n | x<<(32-n)
}
