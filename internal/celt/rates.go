package celt

import (
	"github.com/thesyncim/opusdec/internal/rangecoding"
)

// allocSteps is the number of interpolation steps between allocation rows.
// Reference: libopus celt/rate.c ALLOC_STEPS
const allocSteps = 6

// fineOffset biases the fine energy allocation.
// Reference: libopus celt/rate.h FINE_OFFSET
const fineOffset = 21

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// initCapsInto fills caps with the maximum Q3 allocation per band.
// Reference: libopus celt/celt.c init_caps()
func initCapsInto(caps []int, nbBands, lm, channels int) {
	if nbBands > len(caps) {
		nbBands = len(caps)
	}
	if lm < 0 {
		lm = 0
	}
	if lm > 3 {
		lm = 3
	}
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	row := 2*lm + (channels - 1)
	for i := 0; i < nbBands; i++ {
		n := (EBands[i+1] - EBands[i]) << lm
		caps[i] = (int(cacheCaps[MaxBands*row+i]) + 64) * channels * n >> 2
	}
}

// computeAllocation splits the remaining bit budget across bands and decodes
// the band skip, intensity and dual stereo decisions. It fills pulses (PVQ
// budget per band in Q3), fineQuant (fine energy bits) and finePriority, and
// returns the number of coded bands. With a nil decoder the entropy-coupled
// decisions take their deterministic defaults, which tests rely on.
// Reference: libopus celt/rate.c clt_compute_allocation()
func computeAllocation(rd *rangecoding.Decoder, start, end int, offsets, caps []int, allocTrim, totalBitsQ3 int,
	intensity, dualStereo, balance *int, pulses, fineQuant, finePriority []int, channels, lm int, scratch []int) int {
	if end > MaxBands {
		end = MaxBands
	}
	if start < 0 {
		start = 0
	}
	if totalBitsQ3 < 0 {
		totalBitsQ3 = 0
	}

	skipStart := start
	skipRsv := 0
	if totalBitsQ3 >= 1<<bitRes {
		skipRsv = 1 << bitRes
		totalBitsQ3 -= skipRsv
	}

	intensityRsv := 0
	dualStereoRsv := 0
	if channels == 2 {
		intensityRsv = int(log2FracTable[end-start])
		if intensityRsv > totalBitsQ3 {
			intensityRsv = 0
		} else {
			totalBitsQ3 -= intensityRsv
			if totalBitsQ3 >= 1<<bitRes {
				dualStereoRsv = 1 << bitRes
				totalBitsQ3 -= dualStereoRsv
			}
		}
	}

	if len(scratch) < MaxBands*4 {
		scratch = make([]int, MaxBands*4)
	}
	bits1 := scratch[:MaxBands]
	bits2 := scratch[MaxBands : 2*MaxBands]
	thresh := scratch[2*MaxBands : 3*MaxBands]
	trimOffset := scratch[3*MaxBands : 4*MaxBands]

	for j := start; j < end; j++ {
		width := EBands[j+1] - EBands[j]
		// Below this threshold a band is not worth the skip signaling.
		thresh[j] = max(channels<<bitRes, (3*(width<<lm)<<bitRes)>>4)
		trimOffset[j] = int(int64(channels*width*(allocTrim-5-lm)*(end-j-1)*(1<<(lm+bitRes))) >> 6)
		if (width << lm) == 1 {
			trimOffset[j] -= channels << bitRes
		}
	}

	// Find the highest quality row whose allocation fits the budget.
	lo := 1
	hi := len(BandAlloc) - 1
	for lo <= hi {
		done := 0
		psum := 0
		mid := (lo + hi) >> 1
		for j := end; j > start; j-- {
			idx := j - 1
			width := EBands[idx+1] - EBands[idx]
			bitsj := (channels * width * BandAlloc[mid][idx] << lm) >> 2
			if bitsj > 0 {
				bitsj = max(0, bitsj+trimOffset[idx])
			}
			bitsj += offsets[idx]
			if bitsj >= thresh[idx] || done != 0 {
				done = 1
				psum += min(bitsj, caps[idx])
			} else if bitsj >= channels<<bitRes {
				psum += channels << bitRes
			}
		}
		if psum > totalBitsQ3 {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	hi = lo
	lo--
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}

	for j := start; j < end; j++ {
		width := EBands[j+1] - EBands[j]
		bits1j := (channels * width * BandAlloc[lo][j] << lm) >> 2
		bits2j := caps[j]
		if hi < len(BandAlloc) {
			bits2j = (channels * width * BandAlloc[hi][j] << lm) >> 2
		}
		if bits1j > 0 {
			bits1j = max(0, bits1j+trimOffset[j])
		}
		if bits2j > 0 {
			bits2j = max(0, bits2j+trimOffset[j])
		}
		if lo > 0 {
			bits1j += offsets[j]
		}
		bits2j += offsets[j]
		if offsets[j] > 0 {
			skipStart = j
		}
		bits2j = max(0, bits2j-bits1j)
		bits1[j] = bits1j
		bits2[j] = bits2j
	}

	return interpBits2Pulses(rd, start, end, skipStart, bits1, bits2, thresh, caps, totalBitsQ3, balance,
		skipRsv, intensity, intensityRsv, dualStereo, dualStereoRsv, pulses, fineQuant, finePriority, channels, lm)
}

// interpBits2Pulses interpolates between two allocation rows, decodes the
// per-band skip flags, and converts the final budget into PVQ and fine
// energy bits.
// Reference: libopus celt/rate.c interp_bits2pulses()
func interpBits2Pulses(rd *rangecoding.Decoder, start, end, skipStart int, bits1, bits2, thresh, caps []int,
	total int, balance *int, skipRsv int, intensity *int, intensityRsv int,
	dualStereo *int, dualStereoRsv int, bits, fineQuant, finePriority []int,
	channels, lm int) int {
	allocFloor := channels << bitRes
	stereo := 0
	if channels > 1 {
		stereo = 1
	}
	logM := lm << bitRes

	lo := 0
	hi := 1 << allocSteps
	for i := 0; i < allocSteps; i++ {
		mid := (lo + hi) >> 1
		psum := 0
		done := 0
		for j := end; j > start; j-- {
			idx := j - 1
			tmp := bits1[idx] + int((int64(mid)*int64(bits2[idx]))>>allocSteps)
			if tmp >= thresh[idx] || done != 0 {
				done = 1
				psum += min(tmp, caps[idx])
			} else if tmp >= allocFloor {
				psum += allocFloor
			}
		}
		if psum > total {
			hi = mid
		} else {
			lo = mid
		}
	}

	psum := 0
	done := 0
	for j := end; j > start; j-- {
		idx := j - 1
		tmp := bits1[idx] + int((int64(lo)*int64(bits2[idx]))>>allocSteps)
		if tmp < thresh[idx] && done == 0 {
			if tmp >= allocFloor {
				tmp = allocFloor
			} else {
				tmp = 0
			}
		} else {
			done = 1
		}
		tmp = min(tmp, caps[idx])
		bits[idx] = tmp
		psum += tmp
	}

	codedBands := end
	for {
		j := codedBands - 1
		if j <= skipStart {
			// All remaining bands are forced; the skip reservation is unused.
			total += skipRsv
			break
		}

		left := total - psum
		percoeff := celtUdiv(left, EBands[codedBands]-EBands[start])
		left -= (EBands[codedBands] - EBands[start]) * percoeff
		rem := max(left-(EBands[j]-EBands[start]), 0)
		bandBits := bits[j] + percoeff*(EBands[codedBands]-EBands[j]) + rem

		if bandBits >= max(thresh[j], allocFloor+(1<<bitRes)) {
			if rd != nil {
				if rd.DecodeBit(1) == 1 {
					break
				}
			} else {
				break
			}
			// One bit was spent signaling the skip.
			psum += 1 << bitRes
			bandBits -= 1 << bitRes
		}

		psum -= bits[j] + intensityRsv
		if intensityRsv > 0 {
			intensityRsv = int(log2FracTable[j-start])
		}
		psum += intensityRsv
		if bandBits >= allocFloor {
			psum += allocFloor
			bits[j] = allocFloor
		} else {
			bits[j] = 0
		}
		codedBands--
	}

	if intensityRsv > 0 {
		if rd != nil {
			*intensity = start + int(rd.DecodeUniform(uint32(codedBands+1-start)))
		} else {
			if *intensity > codedBands {
				*intensity = codedBands
			}
			if *intensity < start {
				*intensity = start
			}
		}
	} else {
		*intensity = 0
	}
	if *intensity <= start {
		total += dualStereoRsv
		dualStereoRsv = 0
	}
	if dualStereoRsv > 0 {
		if rd != nil {
			*dualStereo = rd.DecodeBit(1)
		}
	} else {
		*dualStereo = 0
	}

	left := total - psum
	percoeff := celtUdiv(left, EBands[codedBands]-EBands[start])
	left -= (EBands[codedBands] - EBands[start]) * percoeff
	for j := start; j < codedBands; j++ {
		bits[j] += percoeff * (EBands[j+1] - EBands[j])
	}
	for j := start; j < codedBands; j++ {
		tmp := min(left, EBands[j+1]-EBands[j])
		bits[j] += tmp
		left -= tmp
	}

	bal := 0
	for j := start; j < codedBands; j++ {
		n0 := EBands[j+1] - EBands[j]
		n := n0 << lm
		bit := bits[j] + bal
		excess := 0
		if n > 1 {
			excess = max(bit-caps[j], 0)
			bits[j] = bit - excess

			den := channels * n
			if channels == 2 && n > 2 && *dualStereo == 0 && j < *intensity {
				den++
			}
			nClogN := den * (LogN[j] + logM)
			offset := (nClogN >> 1) - den*fineOffset
			if n == 2 {
				offset += (den << bitRes) >> 2
			}
			if bits[j]+offset < den*2<<bitRes {
				offset += nClogN >> 2
			} else if bits[j]+offset < den*3<<bitRes {
				offset += nClogN >> 3
			}

			fineQuant[j] = max(0, bits[j]+offset+(den<<(bitRes-1)))
			fineQuant[j] = celtUdiv(fineQuant[j], den) >> bitRes
			if channels*fineQuant[j] > (bits[j] >> bitRes) {
				fineQuant[j] = bits[j] >> stereo >> bitRes
			}
			fineQuant[j] = min(fineQuant[j], maxFineBits)
			finePriority[j] = boolToInt(fineQuant[j]*(den<<bitRes) >= bits[j]+offset)
			bits[j] -= channels * fineQuant[j] << bitRes
		} else {
			excess = max(0, bit-(channels<<bitRes))
			bits[j] = bit - excess
			fineQuant[j] = 0
			finePriority[j] = 1
		}

		if excess > 0 {
			extraFine := min(excess>>(stereo+bitRes), maxFineBits-fineQuant[j])
			fineQuant[j] += extraFine
			extraBits := extraFine * channels << bitRes
			finePriority[j] = boolToInt(extraBits >= excess-bal)
			excess -= extraBits
			bal = excess
		} else {
			bal = 0
		}
	}
	*balance = bal

	for j := codedBands; j < end; j++ {
		fineQuant[j] = bits[j] >> stereo >> bitRes
		bits[j] = 0
		finePriority[j] = boolToInt(fineQuant[j] < 1)
	}

	return codedBands
}
