package testvectors

import "math"

// Quality scale constants modeled on opus_compare. Q maps the SNR
// against the libopus reference onto a scale where 0 is the
// conformance threshold (48 dB) and 100 is near-perfect (96 dB).
const (
	// QualityThreshold is the minimum Q for a passing comparison.
	QualityThreshold = 0.0

	// TargetSNR is the SNR in dB that maps to Q = 0.
	TargetSNR = 48.0

	// QualityScale converts dB above the target to Q points.
	QualityScale = 100.0 / TargetSNR
)

// ComputeQuality scores decoded PCM against the reference. It is a
// plain SNR comparison, not the weighted spectral distance the real
// opus_compare tool computes, but it ranks decoder regressions the
// same way. When the lengths differ the shorter one is used.
//
// Identical inputs score 100. A silent reference scores 100 against
// silence and -Inf against anything else.
func ComputeQuality(decoded, reference []int16) float64 {
	if len(decoded) == 0 || len(reference) == 0 {
		return math.Inf(-1)
	}
	n := len(decoded)
	if len(reference) < n {
		n = len(reference)
	}

	var signalPower, noisePower float64
	for i := 0; i < n; i++ {
		ref := float64(reference[i])
		noise := float64(decoded[i]) - ref
		signalPower += ref * ref
		noisePower += noise * noise
	}

	if signalPower == 0 {
		if noisePower == 0 {
			return 100.0
		}
		return math.Inf(-1)
	}
	if noisePower == 0 {
		return 100.0
	}
	return QualityFromSNR(10.0 * math.Log10(signalPower/noisePower))
}

// QualityFromSNR converts an SNR in dB to the Q scale.
func QualityFromSNR(snrDB float64) float64 {
	return (snrDB - TargetSNR) * QualityScale
}

// QualityPasses reports whether q meets the conformance threshold.
func QualityPasses(q float64) bool {
	return q >= QualityThreshold
}
