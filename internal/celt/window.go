package celt

import "math"

// The overlap window is the Vorbis power-complementary window
//
//	w[i] = sin(0.5*pi * sin(0.5*pi*(i+0.5)/overlap)^2)
//
// satisfying w[i]^2 + w[overlap-1-i]^2 = 1 over the overlap region, so
// overlap-add preserves energy.

// overlapWindowF32 is the 120-sample window from the reference tables.
// Using the exact published constants instead of recomputing at startup
// keeps the float32 synthesis path free of last-bit drift.
var overlapWindowF32 = [Overlap]float32{
	6.7286966e-05, 0.00060551348, 0.0016815970, 0.0032947962, 0.0054439943,
	0.0081276923, 0.011344001, 0.015090633, 0.019364886, 0.024163635,
	0.029483315, 0.035319905, 0.041668911, 0.048525347, 0.055883718,
	0.063737999, 0.072081616, 0.080907428, 0.090207705, 0.099974111,
	0.11019769, 0.12086883, 0.13197729, 0.14351214, 0.15546177,
	0.16781389, 0.18055550, 0.19367290, 0.20715171, 0.22097682,
	0.23513243, 0.24960208, 0.26436860, 0.27941419, 0.29472040,
	0.31026818, 0.32603788, 0.34200931, 0.35816177, 0.37447407,
	0.39092462, 0.40749142, 0.42415215, 0.44088423, 0.45766484,
	0.47447104, 0.49127978, 0.50806798, 0.52481261, 0.54149077,
	0.55807973, 0.57455701, 0.59090049, 0.60708841, 0.62309951,
	0.63891306, 0.65450896, 0.66986776, 0.68497077, 0.69980010,
	0.71433873, 0.72857055, 0.74248043, 0.75605425, 0.76927895,
	0.78214257, 0.79463430, 0.80674445, 0.81846456, 0.82978733,
	0.84070669, 0.85121779, 0.86131698, 0.87100183, 0.88027111,
	0.88912479, 0.89756398, 0.90559094, 0.91320904, 0.92042270,
	0.92723738, 0.93365955, 0.93969656, 0.94535671, 0.95064907,
	0.95558353, 0.96017067, 0.96442171, 0.96834849, 0.97196334,
	0.97527906, 0.97830883, 0.98106616, 0.98356480, 0.98581869,
	0.98784191, 0.98964856, 0.99125274, 0.99266849, 0.99390969,
	0.99499004, 0.99592297, 0.99672162, 0.99739874, 0.99796667,
	0.99843728, 0.99882195, 0.99913147, 0.99937606, 0.99956527,
	0.99970802, 0.99981248, 0.99988613, 0.99993565, 0.99996697,
	0.99998518, 0.99999457, 0.99999859, 0.99999982, 1.0000000,
}

var (
	overlapWindow   [Overlap]float64
	overlapWindowSq [Overlap]float64
)

func init() {
	for i := 0; i < Overlap; i++ {
		overlapWindow[i] = float64(overlapWindowF32[i])
		overlapWindowSq[i] = overlapWindow[i] * overlapWindow[i]
	}
}

// vorbisWindow computes the window value at position i for an arbitrary
// overlap length. Only non-standard sizes take this path; the 120-sample
// window used at 48 kHz comes from the static table.
func vorbisWindow(i, overlap int) float64 {
	if overlap <= 0 {
		return 0
	}
	s := math.Sin(0.5 * math.Pi * (float64(i) + 0.5) / float64(overlap))
	return math.Sin(0.5 * math.Pi * s * s)
}

func windowFor(overlap int) []float64 {
	if overlap == Overlap {
		return overlapWindow[:]
	}
	w := make([]float64, overlap)
	for i := range w {
		w[i] = vorbisWindow(i, overlap)
	}
	return w
}

func windowForF32(overlap int) []float32 {
	if overlap == Overlap {
		return overlapWindowF32[:]
	}
	w := make([]float32, overlap)
	for i := range w {
		w[i] = float32(vorbisWindow(i, overlap))
	}
	return w
}

// windowSqFor returns w[i]^2, precomputed for the hot comb-filter loops.
func windowSqFor(overlap int) []float64 {
	if overlap == Overlap {
		return overlapWindowSq[:]
	}
	w := make([]float64, overlap)
	for i := range w {
		v := vorbisWindow(i, overlap)
		w[i] = v * v
	}
	return w
}

// OverlapWindow returns the standard 120-sample overlap window. Callers
// must not modify the returned slice. It is used for crossfades when the
// decoder switches modes mid-stream.
func OverlapWindow() []float64 {
	return overlapWindow[:]
}
