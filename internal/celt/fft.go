package celt

import (
	"math"
	"sync"
)

// Mixed-radix complex FFT in float32, following the kiss_fft structure used
// by the reference CELT implementation. Only radices 2, 3, 4 and 5 are
// supported, which covers every transform size the decoder needs (the IMDCT
// FFT sizes are N/4 for N in {240, 480, 960, 1920}). Sizes with a larger
// prime factor fall back to a direct DFT.

// kissCpx is a complex float32 value. A plain struct keeps the butterflies
// free of complex64 arithmetic, which Go does not always keep in registers.
type kissCpx struct {
	r float32
	i float32
}

// fftState holds the factorization, bit-reversal table and twiddles for one
// transform size.
type fftState struct {
	nfft    int
	factors []int
	bitrev  []int
	w       []kissCpx
	strides []int
}

var (
	fftStates   = map[int]*fftState{}
	fftStatesMu sync.Mutex
)

// fftStateFor returns the cached state for an nfft-point transform, or nil
// when nfft has a prime factor above 5.
func fftStateFor(nfft int) *fftState {
	fftStatesMu.Lock()
	defer fftStatesMu.Unlock()
	if st, ok := fftStates[nfft]; ok {
		return st
	}
	st := newFFTState(nfft)
	fftStates[nfft] = st
	return st
}

func newFFTState(nfft int) *fftState {
	factors := kfFactor(nfft)
	if factors == nil {
		return nil
	}

	bitrev := make([]int, nfft)
	fillBitrev(bitrev, 0, 0, 1, factors)

	w := make([]kissCpx, nfft)
	for i := range w {
		phase := -2 * math.Pi * float64(i) / float64(nfft)
		w[i] = kissCpx{r: float32(math.Cos(phase)), i: float32(math.Sin(phase))}
	}

	nStages := len(factors) / 2
	strides := make([]int, nStages+1)
	strides[0] = 1
	for i := 0; i < nStages; i++ {
		strides[i+1] = strides[i] * factors[2*i]
	}

	return &fftState{nfft: nfft, factors: factors, bitrev: bitrev, w: w, strides: strides}
}

// kfFactor splits n into radix factors, trying 4 first, then 2, 3 and the
// remaining primes. The result is [p0, m0, p1, m1, ...] with the radixes in
// reverse extraction order and m the remaining length after each stage.
// Returns nil when a factor above 5 is required.
func kfFactor(n int) []int {
	p := 4
	stages := 0
	nbak := n
	facbuf := make([]int, 32)
	for n > 1 {
		for n%p != 0 {
			switch p {
			case 4:
				p = 2
			case 2:
				p = 3
			default:
				p += 2
			}
			if p > 32000 || p*p > n {
				p = n
			}
		}
		n /= p
		if p > 5 {
			return nil
		}
		facbuf[2*stages] = p
		if p == 2 && stages > 1 {
			// Prefer 4,...,2 over ...,2,4 so the final stage is radix 4.
			facbuf[2*stages] = 4
			facbuf[2] = 2
		}
		stages++
	}
	for i := 0; i < stages/2; i++ {
		facbuf[2*i], facbuf[2*(stages-i-1)] = facbuf[2*(stages-i-1)], facbuf[2*i]
	}
	n = nbak
	for i := 0; i < stages; i++ {
		n /= facbuf[2*i]
		facbuf[2*i+1] = n
	}
	return facbuf[:2*stages]
}

// fillBitrev builds the input permutation by recursing over the factor list.
// At a leaf stage (m == 1) it writes p consecutive values spaced stride
// apart; otherwise it recurses p times with the stride scaled by p.
func fillBitrev(bitrev []int, fout, fIdx, stride int, factors []int) {
	p := factors[0]
	m := factors[1]
	if m == 1 {
		for j := 0; j < p; j++ {
			if fIdx >= 0 && fIdx < len(bitrev) {
				bitrev[fIdx] = fout + j
			}
			fIdx += stride
		}
		return
	}
	for j := 0; j < p; j++ {
		fillBitrev(bitrev, fout, fIdx, stride*p, factors[2:])
		fIdx += stride
		fout += m
	}
}

// transform runs the butterfly stages over work, which must hold st.nfft
// values already permuted by st.bitrev.
func (st *fftState) transform(work []kissCpx) {
	if st == nil || len(st.factors) == 0 {
		return
	}

	nStages := len(st.factors) / 2
	m := st.factors[2*nStages-1]
	for i := nStages - 1; i >= 0; i-- {
		mm := 1
		if i != 0 {
			mm = st.factors[2*i-1]
		}
		n := st.strides[i]
		switch st.factors[2*i] {
		case 2:
			kfBfly2(work, m, n)
		case 4:
			kfBfly4(work, st.strides[i], st.w, m, n, mm)
		case 3:
			kfBfly3(work, st.strides[i], st.w, m, n, mm)
		case 5:
			kfBfly5(work, st.strides[i], st.w, m, n, mm)
		}
		m = mm
	}
}

// kfBfly2 only ever runs with m == 1 (final stage) or m == 4 (directly after
// a radix-4 stage), matching the factor ordering kfFactor produces.
func kfBfly2(fout []kissCpx, m, n int) {
	if m == 1 {
		total := 2 * n
		for i := 0; i+1 < total; i += 2 {
			ar, ai := fout[i].r, fout[i].i
			br, bi := fout[i+1].r, fout[i+1].i
			fout[i].r, fout[i].i = ar+br, ai+bi
			fout[i+1].r, fout[i+1].i = ar-br, ai-bi
		}
		return
	}

	const tw = float32(0.7071067812)
	for b := 0; b < n; b++ {
		f := fout[8*b:]

		t := f[4]
		f[4].r, f[4].i = f[0].r-t.r, f[0].i-t.i
		f[0].r += t.r
		f[0].i += t.i

		t.r = (f[5].r + f[5].i) * tw
		t.i = (f[5].i - f[5].r) * tw
		f[5].r, f[5].i = f[1].r-t.r, f[1].i-t.i
		f[1].r += t.r
		f[1].i += t.i

		t.r = f[6].i
		t.i = -f[6].r
		f[6].r, f[6].i = f[2].r-t.r, f[2].i-t.i
		f[2].r += t.r
		f[2].i += t.i

		t.r = (f[7].i - f[7].r) * tw
		t.i = -(f[7].i + f[7].r) * tw
		f[7].r, f[7].i = f[3].r-t.r, f[3].i-t.i
		f[3].r += t.r
		f[3].i += t.i
	}
}

func kfBfly4(fout []kissCpx, fstride int, w []kissCpx, m, n, mm int) {
	if n <= 0 || mm <= 0 {
		return
	}
	if m == 1 {
		total := 4 * n
		for i := 0; i+3 < total; i += 4 {
			a0r, a0i := fout[i].r, fout[i].i
			a1r, a1i := fout[i+1].r, fout[i+1].i
			a2r, a2i := fout[i+2].r, fout[i+2].i
			a3r, a3i := fout[i+3].r, fout[i+3].i

			s0r, s0i := a0r-a2r, a0i-a2i
			f0r, f0i := a0r+a2r, a0i+a2i

			s1r, s1i := a1r+a3r, a1i+a3i
			f2r, f2i := f0r-s1r, f0i-s1i
			f0r += s1r
			f0i += s1i

			s1r, s1i = a1r-a3r, a1i-a3i
			fout[i].r, fout[i].i = f0r, f0i
			fout[i+1].r, fout[i+1].i = s0r+s1i, s0i-s1r
			fout[i+2].r, fout[i+2].i = f2r, f2i
			fout[i+3].r, fout[i+3].i = s0r-s1i, s0i+s1r
		}
		return
	}

	m2 := 2 * m
	m3 := 3 * m
	for i := 0; i < n; i++ {
		base := i * mm
		tw1, tw2, tw3 := 0, 0, 0
		for j := 0; j < m; j++ {
			idx := base + j

			a0r, a0i := fout[idx].r, fout[idx].i
			b1 := fout[idx+m]
			b2 := fout[idx+m2]
			b3 := fout[idx+m3]
			w1 := w[tw1]
			w2 := w[tw2]
			w3 := w[tw3]

			s0r := b1.r*w1.r - b1.i*w1.i
			s0i := b1.r*w1.i + b1.i*w1.r
			s1r := b2.r*w2.r - b2.i*w2.i
			s1i := b2.r*w2.i + b2.i*w2.r
			s2r := b3.r*w3.r - b3.i*w3.i
			s2i := b3.r*w3.i + b3.i*w3.r

			s5r, s5i := a0r-s1r, a0i-s1i
			a0r += s1r
			a0i += s1i

			s3r, s3i := s0r+s2r, s0i+s2i
			s4r, s4i := s0r-s2r, s0i-s2i

			fout[idx+m2].r = a0r - s3r
			fout[idx+m2].i = a0i - s3i
			a0r += s3r
			a0i += s3i
			fout[idx].r, fout[idx].i = a0r, a0i

			fout[idx+m].r, fout[idx+m].i = s5r+s4i, s5i-s4r
			fout[idx+m3].r, fout[idx+m3].i = s5r-s4i, s5i+s4r

			tw1 += fstride
			tw2 += fstride * 2
			tw3 += fstride * 3
		}
	}
}

func kfBfly3(fout []kissCpx, fstride int, w []kissCpx, m, n, mm int) {
	if n <= 0 || mm <= 0 {
		return
	}
	m2 := 2 * m
	epi3i := w[fstride*m].i
	const half = float32(0.5)
	for i := 0; i < n; i++ {
		base := i * mm
		tw1, tw2 := 0, 0
		for j := 0; j < m; j++ {
			idx := base + j

			a0r, a0i := fout[idx].r, fout[idx].i
			b1 := fout[idx+m]
			b2 := fout[idx+m2]
			w1 := w[tw1]
			w2 := w[tw2]

			s1r := b1.r*w1.r - b1.i*w1.i
			s1i := b1.r*w1.i + b1.i*w1.r
			s2r := b2.r*w2.r - b2.i*w2.i
			s2i := b2.r*w2.i + b2.i*w2.r

			s3r, s3i := s1r+s2r, s1i+s2i
			s0r := (s1r - s2r) * epi3i
			s0i := (s1i - s2i) * epi3i

			f1r := a0r - half*s3r
			f1i := a0i - half*s3i
			fout[idx].r = a0r + s3r
			fout[idx].i = a0i + s3i
			fout[idx+m2].r, fout[idx+m2].i = f1r+s0i, f1i-s0r
			fout[idx+m].r, fout[idx+m].i = f1r-s0i, f1i+s0r

			tw1 += fstride
			tw2 += fstride * 2
		}
	}
}

func kfBfly5(fout []kissCpx, fstride int, w []kissCpx, m, n, mm int) {
	if n <= 0 || mm <= 0 {
		return
	}
	ya := w[fstride*m]
	yb := w[fstride*2*m]
	yar, yai := ya.r, ya.i
	ybr, ybi := yb.r, yb.i
	for i := 0; i < n; i++ {
		base := i * mm
		idx0, idx1, idx2, idx3, idx4 := base, base+m, base+2*m, base+3*m, base+4*m
		tw1, tw2, tw3, tw4 := 0, 0, 0, 0
		for u := 0; u < m; u++ {
			a0 := fout[idx0]
			b1 := fout[idx1]
			b2 := fout[idx2]
			b3 := fout[idx3]
			b4 := fout[idx4]
			w1 := w[tw1]
			w2 := w[tw2]
			w3 := w[tw3]
			w4 := w[tw4]

			s1r := b1.r*w1.r - b1.i*w1.i
			s1i := b1.r*w1.i + b1.i*w1.r
			s2r := b2.r*w2.r - b2.i*w2.i
			s2i := b2.r*w2.i + b2.i*w2.r
			s3r := b3.r*w3.r - b3.i*w3.i
			s3i := b3.r*w3.i + b3.i*w3.r
			s4r := b4.r*w4.r - b4.i*w4.i
			s4i := b4.r*w4.i + b4.i*w4.r

			s7r, s7i := s1r+s4r, s1i+s4i
			s10r, s10i := s1r-s4r, s1i-s4i
			s8r, s8i := s2r+s3r, s2i+s3i
			s9r, s9i := s2r-s3r, s2i-s3i

			fout[idx0].r = a0.r + (s7r + s8r)
			fout[idx0].i = a0.i + (s7i + s8i)

			s5r := a0.r + (s7r*yar + s8r*ybr)
			s5i := a0.i + (s7i*yar + s8i*ybr)
			s6r := s10i*yai + s9i*ybi
			s6i := -(s10r*yai + s9r*ybi)
			fout[idx1].r, fout[idx1].i = s5r-s6r, s5i-s6i
			fout[idx4].r, fout[idx4].i = s5r+s6r, s5i+s6i

			s11r := a0.r + (s7r*ybr + s8r*yar)
			s11i := a0.i + (s7i*ybr + s8i*yar)
			s12r := s9i*yai - s10i*ybi
			s12i := s10r*ybi - s9r*yai
			fout[idx2].r, fout[idx2].i = s11r+s12r, s11i+s12i
			fout[idx3].r, fout[idx3].i = s11r-s12r, s11i-s12i

			idx0++
			idx1++
			idx2++
			idx3++
			idx4++
			tw1 += fstride
			tw2 += fstride * 2
			tw3 += fstride * 3
			tw4 += fstride * 4
		}
	}
}

// dftDirect is the O(n^2) fallback for sizes without a supported
// factorization. dst and src must not alias.
func dftDirect(dst, src []kissCpx) {
	n := len(src)
	if n == 0 || len(dst) < n {
		return
	}
	for k := 0; k < n; k++ {
		phase := -2 * math.Pi * float64(k) / float64(n)
		wr := float32(math.Cos(phase))
		wi := float32(math.Sin(phase))
		var accR, accI float32
		cr, ci := float32(1), float32(0)
		for t := 0; t < n; t++ {
			x := src[t]
			accR += x.r*cr - x.i*ci
			accI += x.r*ci + x.i*cr
			cr, ci = cr*wr-ci*wi, cr*wi+ci*wr
		}
		dst[k] = kissCpx{r: accR, i: accI}
	}
}
