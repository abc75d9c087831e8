package celt

import "math"

// Spreading decisions for the PVQ rotation, RFC 6716 Section 4.3.4.3.
const (
	spreadNone       = 0
	spreadLight      = 1
	spreadNormal     = 2
	spreadAggressive = 3
)

// orderyTable concatenates the Hadamard reordering permutations for strides
// 2, 4, 8 and 16.
var orderyTable = []int{
	1, 0,
	3, 0, 2, 1,
	7, 0, 4, 3, 6, 1, 5, 2,
	15, 0, 8, 7, 12, 3, 11, 4, 14, 1, 9, 6, 13, 2, 10, 5,
}

func orderyForStride(stride int) []int {
	switch stride {
	case 2:
		return orderyTable[0:2]
	case 4:
		return orderyTable[2:6]
	case 8:
		return orderyTable[6:14]
	case 16:
		return orderyTable[14:30]
	default:
		return nil
	}
}

var bitInterleaveTable = []int{
	0, 1, 1, 1,
	2, 3, 3, 3,
	2, 3, 3, 3,
	2, 3, 3, 3,
}

var bitDeinterleaveTable = []int{
	0x00, 0x03, 0x0C, 0x0F,
	0x30, 0x33, 0x3C, 0x3F,
	0xC0, 0xC3, 0xCC, 0xCF,
	0xF0, 0xF3, 0xFC, 0xFF,
}

// deinterleaveHadamard regroups x from interleaved short-block order into
// contiguous blocks. With hadamard set, blocks additionally follow the
// sequency permutation so a later Haar transform sees them in order.
func deinterleaveHadamard(x []float64, n0, stride int, hadamard bool, scratch *bandScratch) {
	n := n0 * stride
	tmp := ensureFloat64(&scratch.hadamardTmp, n)
	if hadamard {
		ordery := orderyForStride(stride)
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[ordery[i]*n0+j] = x[j*stride+i]
			}
		}
	} else {
		for i := 0; i < stride; i++ {
			row := i * n0
			for j := 0; j < n0; j++ {
				tmp[row+j] = x[j*stride+i]
			}
		}
	}
	copy(x, tmp)
}

func interleaveHadamard(x []float64, n0, stride int, hadamard bool, scratch *bandScratch) {
	n := n0 * stride
	tmp := ensureFloat64(&scratch.hadamardTmp, n)
	if hadamard {
		ordery := orderyForStride(stride)
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[j*stride+i] = x[ordery[i]*n0+j]
			}
		}
	} else {
		for i := 0; i < stride; i++ {
			row := i * n0
			for j := 0; j < n0; j++ {
				tmp[j*stride+i] = x[row+j]
			}
		}
	}
	copy(x, tmp)
}

// haar1 applies one level of the orthonormal Haar transform in place.
// Intermediate products go through float32, matching the reference
// implementation's single-precision path.
func haar1(x []float64, n0, stride int) {
	n0 >>= 1
	const invSqrt2 = float32(0.7071067811865476)
	for i := 0; i < stride; i++ {
		idx0 := i
		idx1 := i + stride
		step := stride * 2
		for j := 0; j < n0; j++ {
			tmp1 := invSqrt2 * float32(x[idx0])
			tmp2 := invSqrt2 * float32(x[idx1])
			x[idx0] = float64(tmp1 + tmp2)
			x[idx1] = float64(tmp1 - tmp2)
			idx0 += step
			idx1 += step
		}
	}
}

func expRotation1(x []float64, length, stride int, c, s float64) {
	if length <= 0 || stride <= 0 {
		return
	}
	ms := -s
	for i := 0; i < length-stride; i++ {
		x1 := x[i]
		x2 := x[i+stride]
		x[i+stride] = c*x2 + s*x1
		x[i] = c*x1 + ms*x2
	}
	for i := length - 2*stride - 1; i >= 0; i-- {
		x1 := x[i]
		x2 := x[i+stride]
		x[i+stride] = c*x2 + s*x1
		x[i] = c*x1 + ms*x2
	}
}

// expRotation spreads (dir > 0) or unspreads (dir < 0) the pulses of a
// decoded band with a rotation whose angle shrinks as the pulse density
// grows. The angle is computed in float32 like the reference.
func expRotation(x []float64, length, dir, stride, k, spread int) {
	if 2*k >= length || spread == spreadNone {
		return
	}
	spreadFactor := [3]int{15, 10, 5}[spread-1]
	gain := float32(length) / float32(length+spreadFactor*k)
	theta := 0.5 * gain * gain
	c := float64(float32(math.Cos(0.5 * math.Pi * float64(theta))))
	s := float64(float32(math.Sin(0.5 * math.Pi * float64(theta))))

	// Extra stride for very wide bands so the rotation reaches across
	// the whole band, not just neighbours.
	stride2 := 0
	if length >= 8*stride {
		stride2 = 1
		for (stride2*stride2+stride2)*stride+(stride>>2) < length {
			stride2++
		}
	}
	length = celtUdiv(length, stride)
	for i := 0; i < stride; i++ {
		off := i * length
		if dir < 0 {
			if stride2 != 0 {
				expRotation1(x[off:], length, stride2, s, c)
			}
			expRotation1(x[off:], length, 1, c, s)
		} else {
			expRotation1(x[off:], length, 1, c, -s)
			if stride2 != 0 {
				expRotation1(x[off:], length, stride2, s, -c)
			}
		}
	}
}

// normalizeResidualIntoAndCollapse scales the integer pulse vector to unit
// norm times gain, writing into out, and returns the collapse mask over b
// interleaved blocks in the same pass. yy is the precomputed squared pulse
// norm; pass 0 to have it recomputed.
func normalizeResidualIntoAndCollapse(out []float64, pulses []int, gain float64, yy float64, b int) int {
	n := len(pulses)
	if len(out) < n {
		return 0
	}
	energy := yy
	if energy <= 0 {
		for _, v := range pulses {
			energy += float64(v * v)
		}
	}
	if energy <= 0 {
		clear(out[:n])
		if b <= 1 {
			return 1
		}
		return 0
	}
	scale := gain / math.Sqrt(energy)

	if b <= 1 {
		for i, v := range pulses {
			out[i] = float64(v) * scale
		}
		return 1
	}

	n0 := celtUdiv(n, b)
	if n0 <= 0 {
		clear(out[:n])
		return 0
	}
	mask := 0
	base := 0
	for blk := 0; blk < b; blk++ {
		tmp := 0
		end := base + n0
		for i := base; i < end; i++ {
			v := pulses[i]
			out[i] = float64(v) * scale
			tmp |= v
		}
		if tmp != 0 {
			mask |= 1 << blk
		}
		base = end
	}
	for i := base; i < n; i++ {
		out[i] = float64(pulses[i]) * scale
	}
	return mask
}

func renormalizeVector(x []float64, gain float64) {
	energy := 0.0
	for _, v := range x {
		energy += v * v
	}
	if energy <= 0 {
		return
	}
	scale := gain / math.Sqrt(energy)
	for i := range x {
		x[i] *= scale
	}
}

// stereoMerge reconstructs left/right from the decoded mid/side pair in
// place. When either output would carry almost no energy the mid signal is
// duplicated instead, matching the reference threshold.
func stereoMerge(x, y []float64, mid float64) {
	n := len(x)
	if n == 0 || len(y) < n {
		return
	}
	xp := 0.0
	side := 0.0
	for i := 0; i < n; i++ {
		xp += y[i] * x[i]
		side += y[i] * y[i]
	}
	xp *= mid
	mid2 := mid * mid
	el := mid2 + side - 2.0*xp
	er := mid2 + side + 2.0*xp
	if el < 6e-4 || er < 6e-4 {
		copy(y[:n], x[:n])
		return
	}
	lgain := 1.0 / math.Sqrt(el)
	rgain := 1.0 / math.Sqrt(er)
	for i := 0; i < n; i++ {
		l := mid * x[i]
		r := y[i]
		x[i] = (l - r) * lgain
		y[i] = (l + r) * rgain
	}
}

// specialHybridFolding widens the folding history when the second coded band
// is wider than the first, which happens for the band layout of hybrid
// frames. Without it the wider band would fold from uninitialized samples.
func specialHybridFolding(norm, norm2 []float64, start, m int, dualStereo bool) {
	if start+2 >= len(EBands) {
		return
	}
	n1 := m * (EBands[start+1] - EBands[start])
	n2 := m * (EBands[start+2] - EBands[start+1])
	if n2 <= n1 {
		return
	}
	src := 2*n1 - n2
	dst := n1
	count := n2 - n1
	if src < 0 || src+count > len(norm) || dst+count > len(norm) {
		return
	}
	copy(norm[dst:dst+count], norm[src:src+count])
	if dualStereo && norm2 != nil {
		if src+count > len(norm2) || dst+count > len(norm2) {
			return
		}
		copy(norm2[dst:dst+count], norm2[src:src+count])
	}
}

// denormalizeCoeffs restores the spectral magnitude of one channel by
// multiplying each band of unit-norm coefficients with its decoded energy.
// energies hold log2 values without the per-band means.
func denormalizeCoeffs(coeffs []float64, energies []float64, nbBands, frameSize int) {
	if len(coeffs) == 0 || len(energies) == 0 || nbBands <= 0 {
		return
	}
	if nbBands > MaxBands {
		nbBands = MaxBands
	}
	if len(energies) < nbBands {
		nbBands = len(energies)
	}
	offset := 0
	for band := 0; band < nbBands; band++ {
		width := ScaledBandWidth(band, frameSize)
		if width <= 0 {
			continue
		}
		e := energies[band] + eMeans[band]
		// Gain clamp keeps corrupt streams from producing infinities.
		if e > 32 {
			e = 32
		}
		gain := math.Exp2(e)
		end := offset + width
		if end > len(coeffs) {
			end = len(coeffs)
		}
		for i := offset; i < end; i++ {
			coeffs[i] *= gain
		}
		offset += width
	}
}
