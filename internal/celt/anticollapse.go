package celt

import "math"

// antiCollapse refills short blocks that decoded to silence in a transient
// frame with low-level noise, so a collapsed band does not glitch to zero
// between short MDCTs. The injection level follows the band's energy drop
// against the two previous frames, and refilled bands are renormalized.
// seed is taken by value; the decoder's noise state is not advanced here.
// Reference: libopus celt/bands.c anti_collapse()
func antiCollapse(coeffsL, coeffsR []float64, collapse []byte, lm, channels, start, end int,
	logE, prev1LogE, prev2LogE []float64, pulses []int, seed uint32) {
	if channels < 1 || channels > 2 {
		return
	}
	if start < 0 {
		start = 0
	}
	if end > MaxBands {
		end = MaxBands
	}
	if end <= start || len(collapse) < channels*MaxBands {
		return
	}
	m := 1 << lm

	// The frame-local energies may be laid out with end bands per channel
	// while the persistent history always has MaxBands per channel.
	logEStride := end
	if len(logE)/channels > logEStride {
		logEStride = len(logE) / channels
	}

	for band := start; band < end; band++ {
		n0 := EBands[band+1] - EBands[band]
		if n0 <= 0 || band >= len(pulses) {
			continue
		}

		depth := celtUdiv(1+pulses[band], n0) >> lm
		thresh := 0.5 * float64(celtExp2(float32(-0.125)*float32(depth)))
		sqrtNInv := 1.0 / math.Sqrt(float64(n0<<lm))
		bandOffset := EBands[band] << lm
		bandLen := n0 << lm

		for c := 0; c < channels; c++ {
			logIdx := c*logEStride + band
			prevIdx := c*MaxBands + band
			if logIdx >= len(logE) || prevIdx >= len(prev1LogE) || prevIdx >= len(prev2LogE) {
				continue
			}
			prev1 := prev1LogE[prevIdx]
			prev2 := prev2LogE[prevIdx]
			// Mono frame in a stereo stream: measure against the louder of
			// the two stored channels.
			if channels == 1 && len(prev1LogE) >= 2*MaxBands && len(prev2LogE) >= 2*MaxBands {
				prev1 = math.Max(prev1, prev1LogE[MaxBands+band])
				prev2 = math.Max(prev2, prev2LogE[MaxBands+band])
			}
			ediff := logE[logIdx] - math.Min(prev1, prev2)
			if ediff < 0 {
				ediff = 0
			}

			// Short blocks carry less energy than long ones, hence the
			// extra factor, sqrt(2) more at LM 3.
			r := 2.0 * float64(celtExp2(float32(-ediff)))
			if lm == 3 {
				r *= 1.41421356
			}
			if r > thresh {
				r = thresh
			}
			r *= sqrtNInv
			if r <= 0 {
				continue
			}

			coeffs := coeffsL
			if c == 1 {
				coeffs = coeffsR
			}
			if bandOffset+bandLen > len(coeffs) {
				continue
			}

			mask := collapse[band*channels+c]
			refilled := false
			for k := 0; k < m; k++ {
				if mask&(1<<uint(k)) != 0 {
					continue
				}
				for j := 0; j < n0; j++ {
					seed = seed*1664525 + 1013904223
					if seed&0x8000 != 0 {
						coeffs[bandOffset+(j<<lm)+k] = r
					} else {
						coeffs[bandOffset+(j<<lm)+k] = -r
					}
				}
				refilled = true
			}
			if refilled {
				renormalizeVector(coeffs[bandOffset:bandOffset+bandLen], 1.0)
			}
		}
	}
}
