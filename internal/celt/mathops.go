package celt

import (
	"math"
	"math/bits"
)

func celtUdiv(n, d int) int {
	if d <= 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	return n / d
}

func celtSudiv(n, d int) int {
	if d <= 0 {
		return 0
	}
	if n < 0 {
		return -celtUdiv(-n, d)
	}
	return celtUdiv(n, d)
}

func fracMul16(a, b int) int {
	return int((16384 + int32(int16(a))*int32(int16(b))) >> 15)
}

// bitexactCos computes a Q15 cosine matching libopus bitexact_cos().
// The stereo angle math must be bit-identical between encoder and decoder.
func bitexactCos(x int) int {
	tmp := (4096 + int32(x)*int32(x)) >> 13
	x2 := int(tmp)
	x2 = (32767 - x2) + fracMul16(x2, (-7651+fracMul16(x2, (8277+fracMul16(-626, x2)))))
	return 1 + x2
}

// bitexactLog2tan matches libopus bitexact_log2tan().
func bitexactLog2tan(isin, icos int) int {
	lc := ilog32(uint32(icos))
	ls := ilog32(uint32(isin))
	if lc > 15 {
		lc = 15
	}
	if ls > 15 {
		ls = 15
	}
	icos <<= 15 - lc
	isin <<= 15 - ls
	return (ls-lc)*(1<<11) + fracMul16(isin, fracMul16(isin, -2597)+7932) - fracMul16(icos, fracMul16(icos, -2597)+7932)
}

// isqrt32 computes floor(sqrt(val)) with exact arithmetic.
func isqrt32(val uint32) uint32 {
	if val == 0 {
		return 0
	}
	g := uint32(0)
	bshift := (ilog32(val) - 1) >> 1
	b := uint32(1) << bshift
	for bshift >= 0 {
		t := ((g << 1) + b) << bshift
		if t <= val {
			g += b
			val -= t
		}
		b >>= 1
		bshift--
		if bshift < 0 {
			break
		}
	}
	return g
}

func ilog32(x uint32) int {
	return bits.Len32(x)
}

// celtLog2 approximates log2(x) using the libopus FLOAT_APPROX polynomial.
// Callers guarantee x > 0; denormals, NaN and inf are not handled, matching
// the reference.
func celtLog2(x float32) float32 {
	b := math.Float32bits(x)
	integer := int32(b>>23) - 127
	bitsInt := int32(b)
	bitsInt -= int32(uint32(integer) << 23)
	b = uint32(bitsInt)

	rangeIdx := (b >> 20) & 0x7
	f := math.Float32frombits(b)
	f = f*log2XNormCoeff[rangeIdx] - 1.0625

	f = log2CoeffA0 + f*(log2CoeffA1+f*(log2CoeffA2+f*(log2CoeffA3+f*log2CoeffA4)))
	return float32(integer) + f + log2YNormCoeff[rangeIdx]
}

var log2XNormCoeff = [8]float32{
	1.0000000000000000000000000000,
	8.88888895511627197265625e-01,
	8.00000000000000000000000e-01,
	7.27272748947143554687500e-01,
	6.66666686534881591796875e-01,
	6.15384638309478759765625e-01,
	5.71428596973419189453125e-01,
	5.33333361148834228515625e-01,
}

var log2YNormCoeff = [8]float32{
	0.0000000000000000000000000000,
	1.699250042438507080078125e-01,
	3.219280838966369628906250e-01,
	4.594316184520721435546875e-01,
	5.849624872207641601562500e-01,
	7.004396915435791015625000e-01,
	8.073549270629882812500000e-01,
	9.068905711174011230468750e-01,
}

const (
	log2CoeffA0 float32 = 8.74628424644470214843750000e-02
	log2CoeffA1 float32 = 1.357829570770263671875000000000
	log2CoeffA2 float32 = -6.3897705078125000000000000e-01
	log2CoeffA3 float32 = 4.01971250772476196289062500e-01
	log2CoeffA4 float32 = -2.8415444493293762207031250e-01
)

// celtExp2 approximates exp2(x) using the libopus FLOAT_APPROX polynomial.
func celtExp2(x float32) float32 {
	integer := int32(math.Floor(float64(x)))
	if integer < -50 {
		return 0
	}
	frac := x - float32(integer)

	res := exp2CoeffA0 + frac*(exp2CoeffA1+
		frac*(exp2CoeffA2+
			frac*(exp2CoeffA3+
				frac*(exp2CoeffA4+
					frac*exp2CoeffA5))))

	b := math.Float32bits(res)
	b = uint32(int32(b)+int32(uint32(integer)<<23)) & 0x7fffffff
	return math.Float32frombits(b)
}

const (
	exp2CoeffA0 float32 = 9.999999403953552246093750000000e-01
	exp2CoeffA1 float32 = 6.931530833244323730468750000000e-01
	exp2CoeffA2 float32 = 2.401536107063293457031250000000e-01
	exp2CoeffA3 float32 = 5.582631751894950866699218750000e-02
	exp2CoeffA4 float32 = 8.989339694380760192871093750000e-03
	exp2CoeffA5 float32 = 1.877576694823801517486572265625e-03
)
