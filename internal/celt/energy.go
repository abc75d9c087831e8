package celt

import (
	"github.com/thesyncim/opusdec/internal/rangecoding"
)

// Laplace coder parameters for coarse energy.
// Reference: libopus celt/laplace.c
const (
	laplaceLogMinP = 0
	laplaceMinP    = 1 << laplaceLogMinP
	laplaceNMin    = 16
	laplaceFS      = 32768
	laplaceFTBits  = 15
)

// maxFineBits caps the fine energy bits per band.
// Reference: libopus celt/rate.h MAX_FINE_BITS
const maxFineBits = 8

// silenceEnergy is the log2 band energy assigned to silent frames.
const silenceEnergy = -28.0

// ecLaplaceGetFreq1 returns the frequency of the first non-zero symbol.
// Reference: libopus ec_laplace_get_freq1()
func ecLaplaceGetFreq1(fs0, decay int) int {
	ft := laplaceFS - laplaceMinP*(2*laplaceNMin) - fs0
	return (ft * (16384 - decay)) >> 15
}

// laplaceDecode decodes a Laplace-distributed value.
// fs is the frequency of the zero symbol, decay the distribution decay in Q14.
// Reference: libopus ec_laplace_decode()
func laplaceDecode(rd *rangecoding.Decoder, fs, decay int) int {
	val := 0
	fl := 0
	fm := int(rd.DecodeBin(laplaceFTBits))
	if fm >= fs {
		val++
		fl = fs
		fs = ecLaplaceGetFreq1(fs, decay) + laplaceMinP
		// Search the decaying part of the PDF.
		for fs > laplaceMinP && fm >= fl+2*fs {
			fs *= 2
			fl += fs
			fs = ((fs - 2*laplaceMinP) * decay) >> 15
			fs += laplaceMinP
			val++
		}
		// Everything beyond that has probability laplaceMinP.
		if fs <= laplaceMinP {
			di := (fm - fl) >> (laplaceLogMinP + 1)
			val += di
			fl += 2 * di * laplaceMinP
		}
		if fm < fl+fs {
			val = -val
		} else {
			fl += fs
		}
	}
	hi := fl + fs
	if hi > laplaceFS {
		hi = laplaceFS
	}
	rd.Update(uint32(fl), uint32(hi), laplaceFS)
	return val
}

// decodeCoarseEnergy decodes the coarse energy envelope for bands
// [start, end) into energies (per-channel stride end). Predictions read
// the previous frame state from d.prevEnergy (stride MaxBands); the
// persistent state is only updated at end of frame.
// Reference: libopus celt/quant_bands.c unquant_coarse_energy()
func (d *Decoder) decodeCoarseEnergy(start, end int, intra bool, lm int, energies []float64) {
	rd := d.rangeDecoder

	intraIdx := 0
	var coef, beta float64
	if intra {
		intraIdx = 1
		coef = 0
		beta = betaIntra
	} else {
		coef = predCoef[lm]
		beta = betaCoefInter[lm]
	}
	probModel := eProbModel[lm][intraIdx]

	budget := rd.StorageBits()
	var prev [2]float64

	for i := start; i < end; i++ {
		for c := 0; c < d.channels; c++ {
			var qi int
			tell := rd.Tell()
			switch {
			case budget-tell >= 15:
				pi := 2 * i
				if pi > 40 {
					pi = 40
				}
				fs := int(probModel[pi]) << 7
				decay := int(probModel[pi+1]) << 6
				qi = laplaceDecode(rd, fs, decay)
			case budget-tell >= 2:
				s := rd.DecodeICDF(smallEnergyICDF, 2)
				qi = (s >> 1) ^ -(s & 1)
			case budget-tell >= 1:
				qi = -int(rd.DecodeBit(1))
			default:
				qi = -1
			}

			oldE := d.prevEnergy[c*MaxBands+i]
			if oldE < -9.0 {
				oldE = -9.0
			}
			q := float64(qi)
			energies[c*end+i] = coef*oldE + prev[c] + q
			prev[c] = prev[c] + q - beta*q
		}
	}
}

// decodeFineEnergy refines the coarse envelope with fineQuant[i] extra bits
// per band.
// Reference: libopus celt/quant_bands.c unquant_fine_energy()
func (d *Decoder) decodeFineEnergy(energies []float64, start, end int, fineQuant []int) {
	rd := d.rangeDecoder
	for i := start; i < end; i++ {
		if fineQuant[i] <= 0 {
			continue
		}
		for c := 0; c < d.channels; c++ {
			q2 := int(rd.DecodeRawBits(uint(fineQuant[i])))
			offset := (float64(q2)+0.5)/float64(int(1)<<uint(fineQuant[i])) - 0.5
			energies[c*end+i] += offset
		}
	}
}

// decodeEnergyFinalise spends any leftover bits on one more bit of energy
// resolution, priority 0 bands first.
// Reference: libopus celt/quant_bands.c unquant_energy_finalise()
func (d *Decoder) decodeEnergyFinalise(energies []float64, start, end int, fineQuant, finePriority []int, bitsLeft int) {
	rd := d.rangeDecoder
	for prio := 0; prio < 2; prio++ {
		for i := start; i < end && bitsLeft >= d.channels; i++ {
			if fineQuant[i] >= maxFineBits || finePriority[i] != prio {
				continue
			}
			for c := 0; c < d.channels; c++ {
				q2 := int(rd.DecodeRawBits(1))
				offset := (float64(q2) - 0.5) / float64(int(1)<<uint(fineQuant[i]+1))
				energies[c*end+i] += offset
				bitsLeft--
			}
		}
	}
}
