package celt

const (
	combFilterMinPeriod = 15
	combFilterMaxPeriod = 1024
	combFilterHistory   = combFilterMaxPeriod + 2
)

// combFilterGains holds the 3-tap kernel per tapset, scaled from the Q15
// reference constants.
var combFilterGains = [3][3]float64{
	{0.3066406250, 0.2170410156, 0.1296386719},
	{0.4638671875, 0.2680664062, 0.0000000000},
	{0.7998046875, 0.1000976562, 0.0000000000},
}

func (d *Decoder) resetPostfilterState() {
	d.postfilterPeriod = 0
	d.postfilterGain = 0
	d.postfilterTapset = 0
	d.postfilterPeriodOld = 0
	d.postfilterGainOld = 0
	d.postfilterTapsetOld = 0
	clear(d.postfilterMem)
}

// sanitizeCombParams replaces out-of-range periods and tapsets with their
// counterpart from the other frame half, falling back to safe defaults. A
// zero gain also inherits the other period so the crossfade has a stable
// target.
func sanitizeCombParams(t0, t1 int, g0, g1 float64, tap0, tap1 int) (int, int, int, int) {
	if t0 < combFilterMinPeriod || t0 > combFilterMaxPeriod {
		t0 = t1
	}
	if t1 < combFilterMinPeriod || t1 > combFilterMaxPeriod {
		t1 = t0
	}
	if t0 < combFilterMinPeriod {
		t0 = combFilterMinPeriod
	}
	if t1 < combFilterMinPeriod {
		t1 = combFilterMinPeriod
	}

	if tap0 < 0 || tap0 >= len(combFilterGains) {
		tap0 = tap1
	}
	if tap1 < 0 || tap1 >= len(combFilterGains) {
		tap1 = tap0
	}
	if tap0 < 0 || tap0 >= len(combFilterGains) {
		tap0 = 0
	}
	if tap1 < 0 || tap1 >= len(combFilterGains) {
		tap1 = 0
	}

	if g0 == 0 {
		t0 = t1
	}
	if g1 == 0 {
		t1 = t0
	}

	return t0, t1, tap0, tap1
}

// updatePostfilterHistory shifts the last history samples of the frame into
// the per-channel comb filter memory. samples is interleaved when the
// decoder is stereo.
func (d *Decoder) updatePostfilterHistory(samples []float64, frameSize, history int) {
	if frameSize <= 0 || history <= 0 {
		return
	}
	if d.channels <= 1 {
		hist := d.postfilterMem[:history]
		if frameSize >= history {
			copy(hist, samples[frameSize-history:frameSize])
			return
		}
		copy(hist, hist[frameSize:])
		copy(hist[history-frameSize:], samples[:frameSize])
		return
	}

	for ch := 0; ch < d.channels; ch++ {
		hist := d.postfilterMem[ch*history : (ch+1)*history]
		if frameSize >= history {
			src := (frameSize-history)*d.channels + ch
			for i := 0; i < history; i++ {
				hist[i] = samples[src]
				src += d.channels
			}
			continue
		}
		copy(hist, hist[frameSize:])
		src := ch
		dst := history - frameSize
		for i := 0; i < frameSize; i++ {
			hist[dst+i] = samples[src]
			src += d.channels
		}
	}
}

// applyPostfilter runs the pitch postfilter over one decoded frame and
// rotates the filter parameters. The first short-MDCT worth of samples
// crossfades from the previous frame's parameters to the current ones; with
// lm != 0 a second pass crossfades from the current parameters to the newly
// decoded ones over the rest of the frame.
func (d *Decoder) applyPostfilter(samples []float64, frameSize, lm, newPeriod int, newGain float64, newTapset int) {
	if len(samples) == 0 || frameSize <= 0 || d.channels <= 0 {
		return
	}
	if lm < 0 {
		lm = 0
	}

	history := combFilterHistory
	if len(d.postfilterMem) != history*d.channels {
		d.postfilterMem = make([]float64, history*d.channels)
	}

	rotate := func() {
		d.postfilterPeriodOld = d.postfilterPeriod
		d.postfilterGainOld = d.postfilterGain
		d.postfilterTapsetOld = d.postfilterTapset
		d.postfilterPeriod = newPeriod
		d.postfilterGain = newGain
		d.postfilterTapset = newTapset
		if lm != 0 {
			d.postfilterPeriodOld = d.postfilterPeriod
			d.postfilterGainOld = d.postfilterGain
			d.postfilterTapsetOld = d.postfilterTapset
		}
	}

	if d.postfilterGainOld == 0 && d.postfilterGain == 0 && newGain == 0 {
		d.updatePostfilterHistory(samples, frameSize, history)
		rotate()
		return
	}

	needed := history + frameSize
	buf := ensureFloat64(&d.postfilterScratch, needed)

	t0 := d.postfilterPeriodOld
	t1 := d.postfilterPeriod
	g0 := d.postfilterGainOld
	g1 := d.postfilterGain
	tap0 := d.postfilterTapsetOld
	tap1 := d.postfilterTapset

	t0, t1, tap0, tap1 = sanitizeCombParams(t0, t1, g0, g1, tap0, tap1)
	t1b, t2, tap1b, tap2 := sanitizeCombParams(t1, newPeriod, g1, newGain, tap1, newTapset)

	shortMdctSize := frameSize >> uint(lm)
	if shortMdctSize <= 0 || shortMdctSize > frameSize {
		shortMdctSize = frameSize
	}

	windowSq := windowSqFor(Overlap)

	for ch := 0; ch < d.channels; ch++ {
		hist := d.postfilterMem[ch*history : (ch+1)*history]
		copy(buf, hist)
		for i, j := 0, ch; i < frameSize; i++ {
			buf[history+i] = samples[j]
			j += d.channels
		}

		combFilter(buf, history, t0, t1, shortMdctSize, g0, g1, tap0, tap1, windowSq, Overlap)
		if lm != 0 && shortMdctSize < frameSize {
			combFilter(buf, history+shortMdctSize, t1b, t2, frameSize-shortMdctSize, g1, newGain, tap1b, tap2, windowSq, Overlap)
		}

		for i, j := 0, ch; i < frameSize; i++ {
			samples[j] = buf[history+i]
			j += d.channels
		}
		copy(hist, buf[frameSize:])
	}

	rotate()
}

// combFilter applies the 5-tap pitch comb filter to buf[start:start+n] in
// place. Over the first overlap samples the output crossfades from the
// (t0, g0, tapset0) filter to (t1, g1, tapset1) using the squared window;
// after that only the new filter runs. buf must hold at least
// max(t0, t1)+2 samples of history before start.
func combFilter(buf []float64, start, t0, t1, n int, g0, g1 float64, tapset0, tapset1 int, windowSq []float64, overlap int) {
	if n <= 0 {
		return
	}
	if g0 == 0 && g1 == 0 {
		return
	}

	if t0 < combFilterMinPeriod {
		t0 = combFilterMinPeriod
	}
	if t1 < combFilterMinPeriod {
		t1 = combFilterMinPeriod
	}

	if overlap > n {
		overlap = n
	}
	if overlap > len(windowSq) {
		overlap = len(windowSq)
	}
	if tapset0 < 0 || tapset0 >= len(combFilterGains) {
		tapset0 = 0
	}
	if tapset1 < 0 || tapset1 >= len(combFilterGains) {
		tapset1 = 0
	}

	g00 := g0 * combFilterGains[tapset0][0]
	g01 := g0 * combFilterGains[tapset0][1]
	g02 := g0 * combFilterGains[tapset0][2]
	g10 := g1 * combFilterGains[tapset1][0]
	g11 := g1 * combFilterGains[tapset1][1]
	g12 := g1 * combFilterGains[tapset1][2]

	x1 := buf[start-t1+1]
	x2 := buf[start-t1]
	x3 := buf[start-t1-1]
	x4 := buf[start-t1-2]

	// Identical filters on both sides make the crossfade a no-op.
	if g0 == g1 && t0 == t1 && tapset0 == tapset1 {
		overlap = 0
	}

	for i := 0; i < overlap; i++ {
		f := windowSq[i]
		oneMinus := 1.0 - f
		idx := start + i
		x0 := buf[idx-t1+2]
		buf[idx] += (oneMinus*g00)*buf[idx-t0] +
			(oneMinus*g01)*(buf[idx-t0-1]+buf[idx-t0+1]) +
			(oneMinus*g02)*(buf[idx-t0-2]+buf[idx-t0+2]) +
			(f*g10)*x2 +
			(f*g11)*(x3+x1) +
			(f*g12)*(x4+x0)
		x4 = x3
		x3 = x2
		x2 = x1
		x1 = x0
	}

	if g1 == 0 {
		return
	}

	i := overlap
	x4 = buf[start+i-t1-2]
	x3 = buf[start+i-t1-1]
	x2 = buf[start+i-t1]
	x1 = buf[start+i-t1+1]
	for ; i < n; i++ {
		idx := start + i
		x0 := buf[idx-t1+2]
		buf[idx] += g10*x2 + g11*(x3+x1) + g12*(x4+x0)
		x4 = x3
		x3 = x2
		x2 = x1
		x1 = x0
	}
}
