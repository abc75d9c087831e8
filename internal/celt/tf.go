package celt

import "github.com/thesyncim/opusdec/internal/rangecoding"

// tfDecode reads the per-band time-frequency resolution flags. Each band
// codes a change relative to the previous band, cheap to keep and expensive
// to flip, and a trailing tf_select bit picks between the two candidate
// resolution tables when both reservations were affordable.
// Reference: libopus celt/celt.c tf_decode()
func tfDecode(start, end int, isTransient bool, tfRes []int, lm int, rd *rangecoding.Decoder) {
	budget := rd.StorageBits()
	tell := rd.Tell()
	logp := 4
	if isTransient {
		logp = 2
	}
	tfSelectRsv := lm > 0 && tell+logp+1 <= budget
	if tfSelectRsv {
		budget--
	}

	curr := 0
	tfChanged := 0
	for i := start; i < end; i++ {
		if tell+logp <= budget {
			curr ^= rd.DecodeBit(uint(logp))
			tell = rd.Tell()
			tfChanged |= curr
		}
		tfRes[i] = curr
		logp = 5
		if isTransient {
			logp = 4
		}
	}

	transient := boolToInt(isTransient)
	tfSelect := 0
	if tfSelectRsv &&
		tfSelectTable[lm][4*transient+tfChanged] != tfSelectTable[lm][4*transient+2+tfChanged] {
		tfSelect = rd.DecodeBit(1)
	}
	for i := start; i < end; i++ {
		tfRes[i] = int(tfSelectTable[lm][4*transient+2*tfSelect+tfRes[i]])
	}
}
