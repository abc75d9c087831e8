package celt

import (
	"math"

	"github.com/thesyncim/opusdec/util"
)

// Pitch period estimation over the decode history, used when concealing
// lost frames without a usable postfilter period. The search runs on a 2x
// downsampled, LPC-whitened copy of the history: a coarse pass at 4x
// decimation picks two candidate lags, a refinement pass at 2x decimation
// rescores around them, then pseudo-interpolation settles the final lag.

// pitchScratch holds the decimated buffers for pitchSearch.
type pitchScratch struct {
	xLP4  []float64
	yLP4  []float64
	xcorr []float64
}

// pitchInnerProd accumulates in float32 to match the reference float build.
func pitchInnerProd(x, y []float64, length int) float64 {
	if length <= 0 {
		return 0
	}
	sum := float32(0)
	for i := 0; i < length; i++ {
		sum += float32(x[i]) * float32(y[i])
	}
	return float64(sum)
}

func pitchXcorr(x, y, xcorr []float64, length, maxPitch int) {
	if length <= 0 || maxPitch <= 0 {
		return
	}
	for i := 0; i < maxPitch; i++ {
		var sum float64
		yy := y[i:]
		for j := 0; j < length; j++ {
			sum += x[j] * yy[j]
		}
		xcorr[i] = sum
	}
}

// pitchDownsample fills xLP with a 2:1 low-passed, LPC-whitened copy of x.
// Stereo input is planar with a channel stride of len(x)/2 and is summed
// into a single search signal.
func pitchDownsample(x, xLP []float64, length, channels, factor int) {
	if length <= 0 || factor <= 0 || len(xLP) < length {
		return
	}
	offset := factor / 2
	if offset < 1 {
		offset = 1
	}
	for i := 1; i < length; i++ {
		idx := factor * i
		xLP[i] = 0.25*x[idx-offset] + 0.25*x[idx+offset] + 0.5*x[idx]
	}
	xLP[0] = 0.25*x[offset] + 0.5*x[0]
	if channels == 2 {
		x1 := x[len(x)/2:]
		for i := 1; i < length; i++ {
			idx := factor * i
			xLP[i] += 0.25*x1[idx-offset] + 0.25*x1[idx+offset] + 0.5*x1[idx]
		}
		xLP[0] += 0.25*x1[offset] + 0.5*x1[0]
	}

	lp := xLP[:length]
	var ac [5]float64
	for lag := 0; lag <= 4; lag++ {
		var sum float64
		for i := 0; i+lag < length; i++ {
			sum += lp[i] * lp[i+lag]
		}
		ac[lag] = sum
	}

	// Noise floor plus lag windowing before solving for the LPC.
	ac[0] *= 1.0001
	for i := 1; i <= 4; i++ {
		f := 0.008 * float64(i)
		ac[i] -= ac[i] * f * f
	}

	lpc := lpcFromAutocorr(ac)
	tmp := 1.0
	for i := 0; i < 4; i++ {
		tmp *= 0.9
		lpc[i] *= tmp
	}
	const c1 = 0.8
	lpc2 := [5]float64{
		lpc[0] + c1,
		lpc[1] + c1*lpc[0],
		lpc[2] + c1*lpc[1],
		lpc[3] + c1*lpc[2],
		c1 * lpc[3],
	}
	celtFIR5(lp, lpc2)
}

// lpcFromAutocorr runs order-4 Levinson-Durbin on the autocorrelation lags.
func lpcFromAutocorr(ac [5]float64) [4]float64 {
	var lpc [4]float64
	if ac[0] == 0 {
		return lpc
	}
	err := ac[0]
	for i := 0; i < 4; i++ {
		r := -ac[i+1]
		for j := 0; j < i; j++ {
			r -= lpc[j] * ac[i-j]
		}
		if err != 0 {
			r /= err
		} else {
			r = 0
		}
		lpc[i] = r
		for j := 0; j < i/2; j++ {
			tmp := lpc[j]
			lpc[j] += r * lpc[i-1-j]
			lpc[i-1-j] += r * tmp
		}
		if i%2 == 1 {
			lpc[i/2] += r * lpc[i/2]
		}
		err *= 1 - r*r
		if err <= 0 {
			break
		}
	}
	return lpc
}

func celtFIR5(x []float64, num [5]float64) {
	var mem0, mem1, mem2, mem3, mem4 float64
	for i := 0; i < len(x); i++ {
		sum := x[i] + num[0]*mem0 + num[1]*mem1 + num[2]*mem2 + num[3]*mem3 + num[4]*mem4
		mem4 = mem3
		mem3 = mem2
		mem2 = mem1
		mem1 = mem0
		mem0 = x[i]
		x[i] = sum
	}
}

// pitchSearch returns the lag in xLP samples that best predicts xLP from y.
// xLP is the search window, y the full (older) history containing it;
// both are already 2x downsampled relative to the decode rate.
func pitchSearch(xLP, y []float64, length, maxPitch int, sc *pitchScratch) int {
	if length <= 0 || maxPitch <= 0 {
		return 0
	}
	lag := length + maxPitch

	xLP4 := ensureFloat64(&sc.xLP4, length>>2)
	yLP4 := ensureFloat64(&sc.yLP4, lag>>2)
	xcorr := ensureFloat64(&sc.xcorr, maxPitch>>1)

	for j := 0; j < length>>2; j++ {
		xLP4[j] = xLP[2*j]
	}
	for j := 0; j < lag>>2; j++ {
		yLP4[j] = y[2*j]
	}

	pitchXcorr(xLP4, yLP4, xcorr, length>>2, maxPitch>>2)
	bestPitch := [2]int{0, 0}
	findBestPitch(xcorr, yLP4, length>>2, maxPitch>>2, &bestPitch)

	// Rescore at half decimation, but only within two samples of the
	// coarse candidates.
	for i := 0; i < maxPitch>>1; i++ {
		xcorr[i] = 0
		if util.Abs(i-2*bestPitch[0]) > 2 && util.Abs(i-2*bestPitch[1]) > 2 {
			continue
		}
		sum := pitchInnerProd(xLP, y[i:], length>>1)
		if sum < -1 {
			sum = -1
		}
		xcorr[i] = sum
	}
	findBestPitch(xcorr, y, length>>1, maxPitch>>1, &bestPitch)

	offset := 0
	if bestPitch[0] > 0 && bestPitch[0] < (maxPitch>>1)-1 {
		a := xcorr[bestPitch[0]-1]
		b := xcorr[bestPitch[0]]
		c := xcorr[bestPitch[0]+1]
		if (c - a) > 0.7*(b-a) {
			offset = 1
		} else if (a - c) > 0.7*(b-c) {
			offset = -1
		}
	}
	return 2*bestPitch[0] - offset
}

// findBestPitch keeps the two lags with the best normalized correlation,
// tracking the energy of the shifted window incrementally.
func findBestPitch(xcorr, y []float64, length, maxPitch int, bestPitch *[2]int) {
	Syy := 1.0
	bestNum := [2]float64{-1, -1}
	bestDen := [2]float64{0, 0}
	bestPitch[0] = 0
	bestPitch[1] = 1
	for j := 0; j < length; j++ {
		Syy += y[j] * y[j]
	}
	for i := 0; i < maxPitch; i++ {
		if xcorr[i] > 0 {
			scaled := xcorr[i] * 1e-12
			num := scaled * scaled
			if num*bestDen[1] > bestNum[1]*Syy {
				if num*bestDen[0] > bestNum[0]*Syy {
					bestNum[1] = bestNum[0]
					bestDen[1] = bestDen[0]
					bestPitch[1] = bestPitch[0]
					bestNum[0] = num
					bestDen[0] = Syy
					bestPitch[0] = i
				} else {
					bestNum[1] = num
					bestDen[1] = Syy
					bestPitch[1] = i
				}
			}
		}
		Syy += y[i+length]*y[i+length] - y[i]*y[i]
		Syy = math.Max(Syy, 1)
	}
}
