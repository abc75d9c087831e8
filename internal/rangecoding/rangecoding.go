// Package rangecoding implements the entropy coder from RFC 6716 Section 4.1.
//
// The decoder is a bit-exact rendition of the reference range decoder: symbols
// are pulled from the front of the buffer through an arithmetic decoder while
// raw bits are pulled from the back, so both readers can share one buffer
// without a length marker. The encoder is the exact inverse and exists mainly
// so tests can construct known bitstreams.
package rangecoding

import "math/bits"

const (
	symBits  = 8
	symMax   = (1 << symBits) - 1
	codeBits = 32
	codeTop  = uint32(1) << (codeBits - 1)
	codeBot  = codeTop >> symBits
	// Number of value bits carried by the first byte.
	codeExtra = (codeBits-2)%symBits + 1
	codeShift = codeBits - symBits - 1
	// Uniform values wider than this split into a ranged high part and raw
	// low bits from the back of the buffer.
	uintBits   = 8
	windowSize = 32
)

// tellFracCorrection maps the top bits of rng to the fractional bit count.
var tellFracCorrection = [8]uint32{35733, 38967, 42495, 46340, 50535, 55109, 60097, 65535}

func ilog(x uint32) int {
	return bits.Len32(x)
}
