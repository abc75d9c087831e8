package celt

// synthesizeChannel converts one channel of MDCT coefficients to time
// samples in out, which must hold len(coeffs)+overlap entries. On return
// out[:len(coeffs)] is finished audio and the trailing overlap samples are
// this frame's tail, to be carried into the next overlap-add. prevOverlap
// must hold at least overlap samples.
//
// Transient frames interleave shortBlocks half-length transforms across the
// coefficient array; each short block folds into the shared buffer so the
// inter-block overlap regions blend without extra copies.
func synthesizeChannel(coeffs, prevOverlap []float64, overlap int, transient bool, shortBlocks int, out []float64, sc *imdctScratch, shortCoeffs []float64) []float64 {
	frameSize := len(coeffs)
	if frameSize == 0 || overlap < 0 {
		return nil
	}
	if len(prevOverlap) < overlap {
		return nil
	}
	prevOverlap = prevOverlap[:overlap]
	needed := frameSize + overlap
	if len(out) < needed {
		return nil
	}

	if transient && shortBlocks > 1 {
		shortSize := frameSize / shortBlocks
		if shortSize <= 0 || len(shortCoeffs) < shortSize {
			return nil
		}
		clear(out[:needed])
		copy(out[:overlap], prevOverlap)
		for b := 0; b < shortBlocks; b++ {
			for i := 0; i < shortSize; i++ {
				shortCoeffs[i] = coeffs[b+i*shortBlocks]
			}
			imdctShortInto(shortCoeffs[:shortSize], out, b*shortSize, overlap, sc)
		}
		return out[:frameSize]
	}

	imdctWithOverlap(out, coeffs, prevOverlap, overlap, sc)
	return out[:frameSize]
}

// synthesize runs synthesis for a mono frame and updates the overlap state.
// The returned slice is scratch memory owned by the decoder, valid until the
// next synthesis call.
func (d *Decoder) synthesize(coeffs []float64, transient bool, shortBlocks int) []float64 {
	if len(coeffs) == 0 {
		return nil
	}
	out := ensureFloat64(&d.scratchSynthL, len(coeffs)+Overlap)
	shortCoeffs := ensureFloat64(&d.scratchShort, len(coeffs))
	output := synthesizeChannel(coeffs, d.overlapBuffer, Overlap, transient, shortBlocks, out, &d.scratchIMDCT, shortCoeffs)
	if len(output) == 0 {
		return nil
	}
	copy(d.overlapBuffer, out[len(coeffs):len(coeffs)+Overlap])
	return output
}

// synthesizeStereo runs synthesis for both channels and interleaves the
// result as L0 R0 L1 R1. The overlap buffer keeps the left tail in its
// first half and the right tail in its second half.
func (d *Decoder) synthesizeStereo(coeffsL, coeffsR []float64, transient bool, shortBlocks int) []float64 {
	if len(coeffsL) == 0 && len(coeffsR) == 0 {
		return nil
	}
	if len(d.overlapBuffer) < 2*Overlap {
		d.overlapBuffer = make([]float64, 2*Overlap)
	}
	overlapL := d.overlapBuffer[:Overlap]
	overlapR := d.overlapBuffer[Overlap : 2*Overlap]

	outL := ensureFloat64(&d.scratchSynthL, len(coeffsL)+Overlap)
	outR := ensureFloat64(&d.scratchSynthR, len(coeffsR)+Overlap)
	shortCoeffs := ensureFloat64(&d.scratchShort, max(len(coeffsL), len(coeffsR)))
	outputL := synthesizeChannel(coeffsL, overlapL, Overlap, transient, shortBlocks, outL, &d.scratchIMDCT, shortCoeffs)
	outputR := synthesizeChannel(coeffsR, overlapR, Overlap, transient, shortBlocks, outR, &d.scratchIMDCT, shortCoeffs)

	if len(outputL) > 0 {
		copy(overlapL, outL[len(coeffsL):len(coeffsL)+Overlap])
	}
	if len(outputR) > 0 {
		copy(overlapR, outR[len(coeffsR):len(coeffsR)+Overlap])
	}

	n := min(len(outputL), len(outputR))
	stereo := ensureFloat64(&d.scratchStereo, 2*n)
	for i := 0; i < n; i++ {
		stereo[2*i] = outputL[i]
		stereo[2*i+1] = outputR[i]
	}
	return stereo
}
