package celt

import (
	"math"
	"sync"
)

// Inverse MDCT synthesis. The transform follows the reference decomposition:
// an N-point IMDCT (N = len(spectrum), producing 2N time samples before
// folding) is computed as an N/2-point complex FFT wrapped in pre- and
// post-rotations, then folded into N+overlap output samples with the TDAC
// window. All arithmetic is float32 to match the reference float build; the
// float64 conversion happens only at the output boundary.

var (
	mdctTrigMu    sync.Mutex
	mdctTrigCache = map[int][]float32{}
)

// mdctTrig returns cos(2*pi*(i+0.125)/n) for i in [0, n/2), where n is the
// time-domain size of the transform (twice the spectrum length).
func mdctTrig(n int) []float32 {
	mdctTrigMu.Lock()
	defer mdctTrigMu.Unlock()
	if trig, ok := mdctTrigCache[n]; ok {
		return trig
	}
	trig := make([]float32, n/2)
	for i := range trig {
		trig[i] = float32(math.Cos(2 * math.Pi * (float64(i) + 0.125) / float64(n)))
	}
	mdctTrigCache[n] = trig
	return trig
}

// imdctHalf computes the length-n2 half transform of spectrum, leaving the
// result interleaved in buf as (even, odd) pairs. The pre-rotation scatters
// directly into FFT input order so the transform runs in place.
func imdctHalf(buf []float32, spectrum []float64, trig []float32, n2, n4 int, sc *imdctScratch) {
	work := ensureKissCpx(&sc.work, n4)

	st := fftStateFor(n4)
	if st != nil {
		for i := 0; i < n4; i++ {
			x1 := float32(spectrum[2*i])
			x2 := float32(spectrum[n2-1-2*i])
			t0 := trig[i]
			t1 := trig[n4+i]
			work[st.bitrev[i]] = kissCpx{r: x1*t0 - x2*t1, i: x2*t0 + x1*t1}
		}
		st.transform(work)
	} else {
		for i := 0; i < n4; i++ {
			x1 := float32(spectrum[2*i])
			x2 := float32(spectrum[n2-1-2*i])
			t0 := trig[i]
			t1 := trig[n4+i]
			work[i] = kissCpx{r: x1*t0 - x2*t1, i: x2*t0 + x1*t1}
		}
		tmp := make([]kissCpx, n4)
		dftDirect(tmp, work)
		copy(work, tmp)
	}

	for i := 0; i < n4; i++ {
		buf[2*i] = work[i].r
		buf[2*i+1] = work[i].i
	}
	imdctPostRotate(buf, trig, n2, n4)
}

// imdctPostRotate applies the output rotation in place, walking the buffer
// from both ends so each pass finalizes one low and one high pair.
func imdctPostRotate(buf []float32, trig []float32, n2, n4 int) {
	yp0 := 0
	yp1 := n2 - 2
	for i := 0; i < (n4+1)>>1; i++ {
		re := buf[yp0+1]
		im := buf[yp0]
		t0 := trig[i]
		t1 := trig[n4+i]
		yr := re*t0 + im*t1
		yi := re*t1 - im*t0

		re2 := buf[yp1+1]
		im2 := buf[yp1]
		buf[yp0] = yr
		buf[yp1+1] = yi

		t0 = trig[n4-i-1]
		t1 = trig[n2-i-1]
		yr = re2*t0 + im2*t1
		yi = re2*t1 - im2*t0
		buf[yp1] = yr
		buf[yp0+1] = yi

		yp0 += 2
		yp1 -= 2
	}
}

// imdctWithOverlap computes the inverse MDCT of spectrum and folds it
// against prevOverlap, writing len(spectrum)+overlap samples to out. The
// first overlap samples are the finished crossfade with the previous frame;
// the final overlap samples carry this frame's tail for the next call.
func imdctWithOverlap(out, spectrum, prevOverlap []float64, overlap int, sc *imdctScratch) {
	n2 := len(spectrum)
	if n2 == 0 {
		return
	}
	if overlap < 0 {
		overlap = 0
	}
	n := n2 * 2
	n4 := n2 / 2
	needed := n2 + overlap
	start := overlap / 2
	if len(out) < needed {
		return
	}

	trig := mdctTrig(n)
	buf := ensureFloat32(&sc.buf, n2)
	outF32 := ensureFloat32(&sc.out, needed)

	// Only the tail past the IMDCT output needs explicit zeroing; the head
	// is overwritten by prevOverlap and the middle by the transform.
	if start+n2 < needed {
		clear(outF32[start+n2 : needed])
	}
	if overlap > 0 {
		copyLen := min(len(prevOverlap), overlap)
		for i := 0; i < copyLen; i++ {
			outF32[i] = float32(prevOverlap[i])
		}
		if copyLen < overlap {
			clear(outF32[copyLen:overlap])
		}
	}

	imdctHalf(buf, spectrum, trig, n2, n4, sc)

	// The half transform lands at overlap/2, leaving outF32[:overlap/2]
	// holding the previous frame's tail for the TDAC fold below.
	copy(outF32[start:start+n2], buf)

	if overlap > 0 {
		window := windowForF32(overlap)
		xp1 := overlap - 1
		yp1 := 0
		wp1 := 0
		wp2 := overlap - 1
		for i := 0; i < overlap/2; i++ {
			x1 := outF32[xp1]
			x2 := outF32[yp1]
			outF32[yp1] = x2*window[wp2] - x1*window[wp1]
			outF32[xp1] = x2*window[wp1] + x1*window[wp2]
			yp1++
			xp1--
			wp1++
			wp2--
		}
	}

	for i := 0; i < needed; i++ {
		out[i] = float64(outF32[i])
	}
}

// imdctShortInto computes the inverse MDCT of one short block directly into
// a shared buffer at blockStart. The TDAC fold blends against whatever the
// previous block (or the previous frame's overlap tail) left in
// out[blockStart:blockStart+overlap].
func imdctShortInto(spectrum []float64, out []float64, blockStart, overlap int, sc *imdctScratch) {
	n2 := len(spectrum)
	if n2 == 0 {
		return
	}
	if overlap < 0 {
		overlap = 0
	}
	n := n2 * 2
	n4 := n2 / 2

	trig := mdctTrig(n)
	buf := ensureFloat32(&sc.buf, n2)
	imdctHalf(buf, spectrum, trig, n2, n4, sc)

	start := blockStart + overlap/2
	if start >= len(out) {
		return
	}

	if overlap > 0 {
		window := windowForF32(overlap)
		xp1 := blockStart + overlap - 1
		yp1 := blockStart
		wp1 := 0
		wp2 := overlap - 1
		for i := 0; i < overlap/2; i++ {
			x1 := buf[xp1-start]
			x2 := float32(out[yp1])
			out[yp1] = float64(x2*window[wp2] - x1*window[wp1])
			out[xp1] = float64(x2*window[wp1] + x1*window[wp2])
			yp1++
			xp1--
			wp1++
			wp2--
		}
	}

	copyStart := 0
	if overlap > 0 {
		copyStart = overlap / 2
	}
	limit := n2
	if start+limit > len(out) {
		limit = len(out) - start
	}
	for i := copyStart; i < limit; i++ {
		out[start+i] = float64(buf[i])
	}
}
