package celt

import (
	"math"

	"github.com/thesyncim/opusdec/internal/rangecoding"
)

// Offsets subtracted from the theta precision so small bands spend fewer
// bits on the stereo/split angle.
const (
	qthetaOffset         = 4
	qthetaOffsetTwoPhase = 16
)

var qnExp2Table = [8]int{16384, 17866, 19483, 21247, 23170, 25267, 27554, 30048}

// bandCtx threads shared state through the recursive band decoder. rd must
// be non-nil; the decoder always drives this from a live range decoder.
type bandCtx struct {
	rd            *rangecoding.Decoder
	spread        int
	tfChange      int
	remainingBits int
	intensity     int
	band          int
	seed          *uint32
	disableInv    bool
	scratch       *bandScratch
}

// splitCtx receives the decoded split parameters for one recursion level.
type splitCtx struct {
	inv    int
	imid   int
	iside  int
	delta  int
	itheta int
	qalloc int
}

// computeQn returns the number of quantization levels for the split angle.
// Reference: libopus celt/bands.c compute_qn()
func computeQn(n, b, offset, pulseCap int, stereo bool) int {
	n2 := 2*n - 1
	if stereo && n == 2 {
		n2--
	}
	qb := celtSudiv(b+n2*offset, n2)
	qb = min(b-pulseCap-(4<<bitRes), qb)
	qb = min(8<<bitRes, qb)
	if qb < (1 << (bitRes - 1)) {
		return 1
	}
	qn := qnExp2Table[qb&0x7] >> (14 - (qb >> bitRes))
	qn = ((qn + 1) >> 1) << 1
	if qn > 256 {
		qn = 256
	}
	return qn
}

// decodeTheta reads the angle splitting a band (or a stereo pair) into mid
// and side, charges its cost against *b, and derives the mid/side gains and
// the bit-allocation delta.
// Reference: libopus celt/bands.c compute_theta(), decode side
func decodeTheta(ctx *bandCtx, sctx *splitCtx, n int, b *int, bCur, b0, lm int, stereo bool, fill *int) {
	pulseCap := LogN[ctx.band] + lm*(1<<bitRes)
	offset := (pulseCap >> 1) - qthetaOffset
	if stereo && n == 2 {
		offset = (pulseCap >> 1) - qthetaOffsetTwoPhase
	}
	qn := computeQn(n, *b, offset, pulseCap, stereo)
	if stereo && ctx.band >= ctx.intensity {
		qn = 1
	}

	rd := ctx.rd
	tell := rd.TellFrac()

	itheta := 0
	inv := 0
	if qn != 1 {
		if stereo && n > 2 {
			// Step PDF: zero angle is heavily favoured.
			p0 := 3
			x0 := qn / 2
			ft := p0*(x0+1) + x0
			fm := int(rd.Decode(uint32(ft)))
			if fm < (x0+1)*p0 {
				itheta = fm / p0
			} else {
				itheta = x0 + 1 + (fm - (x0+1)*p0)
			}
			if itheta <= x0 {
				fl := p0 * itheta
				rd.Update(uint32(fl), uint32(fl+p0), uint32(ft))
			} else {
				fl := (itheta - 1 - x0) + (x0+1)*p0
				rd.Update(uint32(fl), uint32(fl+1), uint32(ft))
			}
		} else if b0 > 1 || stereo {
			itheta = int(rd.DecodeUniform(uint32(qn + 1)))
		} else {
			// Triangular PDF for mono splits of a single MDCT.
			half := qn >> 1
			ft := (half + 1) * (half + 1)
			fm := int(rd.Decode(uint32(ft)))
			if fm < half*(half+1)>>1 {
				itheta = int((isqrt32(uint32(8*fm+1)) - 1) >> 1)
				fs := itheta + 1
				fl := itheta * (itheta + 1) >> 1
				rd.Update(uint32(fl), uint32(fl+fs), uint32(ft))
			} else {
				itheta = (2*(qn+1) - int(isqrt32(uint32(8*(ft-fm-1)+1)))) >> 1
				fs := qn + 1 - itheta
				fl := ft - ((qn + 1 - itheta) * (qn + 2 - itheta) >> 1)
				rd.Update(uint32(fl), uint32(fl+fs), uint32(ft))
			}
		}
		itheta = celtUdiv(itheta*16384, qn)
	} else if stereo {
		if *b > 2<<bitRes && ctx.remainingBits > 2<<bitRes {
			inv = rd.DecodeBit(2)
		}
		if ctx.disableInv {
			inv = 0
		}
	}

	qalloc := rd.TellFrac() - tell
	*b -= qalloc

	imid := 0
	iside := 0
	delta := 0
	if itheta == 0 {
		imid = 32767
		iside = 0
		*fill &= (1 << bCur) - 1
		delta = -16384
	} else if itheta == 16384 {
		imid = 0
		iside = 32767
		*fill &= ((1 << bCur) - 1) << bCur
		delta = 16384
	} else {
		imid = bitexactCos(itheta)
		iside = bitexactCos(16384 - itheta)
		delta = fracMul16((n-1)<<7, bitexactLog2tan(iside, imid))
	}

	sctx.inv = inv
	sctx.imid = imid
	sctx.iside = iside
	sctx.delta = delta
	sctx.itheta = itheta
	sctx.qalloc = qalloc
}

// pvqDecodeBand reads one PVQ codeword and reconstructs the unit-norm shape
// into x, returning the collapse mask over b short blocks.
// Reference: libopus celt/vq.c alg_unquant()
func pvqDecodeBand(x []float64, rd *rangecoding.Decoder, n, k, spread, b int, gain float64, scratch *bandScratch) int {
	if len(x) < n {
		return 0
	}
	x = x[:n]
	if k <= 0 || n <= 0 {
		clear(x)
		return 0
	}
	pulses := ensureInt(&scratch.pvqPulses, n)
	ft := pvqCodewords(n, k)
	if ft == 0 {
		clear(x)
		return 0
	}
	idx := rd.DecodeUniform(ft)
	yy := decodePulsesInto(idx, n, k, pulses, &scratch.cwrsU)
	cm := normalizeResidualIntoAndCollapse(x, pulses[:n], gain, float64(yy), b)
	expRotation(x, n, -1, b, k, spread)
	return cm
}

// decodePartition splits a band recursively while enough bits remain, then
// decodes the leaf PVQ codeword or fills with noise/folded spectrum when the
// allocation ran out.
// Reference: libopus celt/bands.c quant_partition(), decode side
func decodePartition(ctx *bandCtx, x []float64, n, b, blocks int, lowband []float64, lm int, gain float64, fill int) int {
	if n == 1 {
		return 1
	}
	x = x[:n]

	maxBits := 0
	if cache, ok := pulseCacheForBand(ctx.band, lm); ok && lm != -1 {
		maxBits = int(cache[cache[0]])
	}

	if lm != -1 && b > maxBits+12 && n > 2 {
		nHalf := n >> 1
		y := x[nHalf:]
		lm--
		b0 := blocks
		if blocks == 1 {
			fill = (fill & 1) | (fill << 1)
		}
		blocks = (blocks + 1) >> 1

		var sctx splitCtx
		decodeTheta(ctx, &sctx, nHalf, &b, blocks, b0, lm, false, &fill)
		mid := float64(sctx.imid) / 32768.0
		side := float64(sctx.iside) / 32768.0
		if b0 > 1 && (sctx.itheta&0x3fff) != 0 {
			if sctx.itheta > 8192 {
				sctx.delta -= sctx.delta >> (4 - lm)
			} else {
				sctx.delta = min(0, sctx.delta+(nHalf<<bitRes>>(5-lm)))
			}
		}
		mbits := max(0, min(b, (b-sctx.delta)/2))
		sbits := b - mbits
		ctx.remainingBits -= sctx.qalloc

		var lowband1, lowband2 []float64
		if lowband != nil && len(lowband) >= nHalf {
			lowband1 = lowband[:nHalf]
		}
		if lowband != nil && len(lowband) >= n {
			lowband2 = lowband[nHalf:]
		}

		rebalance := ctx.remainingBits
		var cm int
		if mbits >= sbits {
			cm = decodePartition(ctx, x[:nHalf], nHalf, mbits, blocks, lowband1, lm, gain*mid, fill)
			rebalance = mbits - (rebalance - ctx.remainingBits)
			if rebalance > 3<<bitRes && sctx.itheta != 0 {
				sbits += rebalance - (3 << bitRes)
			}
			cm |= decodePartition(ctx, y, nHalf, sbits, blocks, lowband2, lm, gain*side, fill>>blocks) << (b0 >> 1)
		} else {
			cm = decodePartition(ctx, y, nHalf, sbits, blocks, lowband2, lm, gain*side, fill>>blocks) << (b0 >> 1)
			rebalance = sbits - (rebalance - ctx.remainingBits)
			if rebalance > 3<<bitRes && sctx.itheta != 16384 {
				mbits += rebalance - (3 << bitRes)
			}
			cm |= decodePartition(ctx, x[:nHalf], nHalf, mbits, blocks, lowband1, lm, gain*mid, fill)
		}
		return cm
	}

	// Leaf: charge the actual PVQ cost, dropping pulses while over budget.
	q := bitsToPulses(ctx.band, lm, b)
	currBits := pulsesToBits(ctx.band, lm, q)
	ctx.remainingBits -= currBits
	for ctx.remainingBits < 0 && q > 0 {
		ctx.remainingBits += currBits
		q--
		currBits = pulsesToBits(ctx.band, lm, q)
		ctx.remainingBits -= currBits
	}
	if q != 0 {
		return pvqDecodeBand(x, ctx.rd, n, getPulses(q), ctx.spread, blocks, gain, ctx.scratch)
	}

	// No pulses: fill with noise, or with a perturbed copy of the lower
	// spectrum when folding is allowed.
	cmMask := (1 << blocks) - 1
	fill &= cmMask
	if fill == 0 {
		clear(x)
		return 0
	}
	if lowband == nil {
		for i := range x {
			*ctx.seed = *ctx.seed*1664525 + 1013904223
			x[i] = float64(int32(*ctx.seed) >> 20)
		}
		renormalizeVector(x, gain)
		return cmMask
	}
	for i := range x {
		*ctx.seed = *ctx.seed*1664525 + 1013904223
		tmp := 1.0 / 256.0
		if *ctx.seed&0x8000 == 0 {
			tmp = -tmp
		}
		if i < len(lowband) {
			x[i] = lowband[i] + tmp
		} else {
			x[i] = tmp
		}
	}
	renormalizeVector(x, gain)
	return fill
}

// decodeBandN1 handles single-coefficient bands, which carry only a sign.
func decodeBandN1(ctx *bandCtx, x, y []float64, lowbandOut []float64) int {
	sign := 0
	if ctx.remainingBits >= 1<<bitRes {
		sign = int(ctx.rd.DecodeRawBits(1))
		ctx.remainingBits -= 1 << bitRes
	}
	x[0] = 1.0
	if sign != 0 {
		x[0] = -1.0
	}
	if y != nil {
		sign = 0
		if ctx.remainingBits >= 1<<bitRes {
			sign = int(ctx.rd.DecodeRawBits(1))
			ctx.remainingBits -= 1 << bitRes
		}
		y[0] = 1.0
		if sign != 0 {
			y[0] = -1.0
		}
	}
	if len(lowbandOut) > 0 {
		lowbandOut[0] = x[0]
	}
	return 1
}

// decodeBand decodes one mono band (or one half of a dual-stereo pair):
// undo the time-frequency transforms on the folding source, decode the
// partition tree, then reapply them to the decoded shape.
// Reference: libopus celt/bands.c quant_band(), decode side
func decodeBand(ctx *bandCtx, x []float64, n, b, blocks int, lowband []float64, lm int, lowbandOut []float64, gain float64, lowbandScratch []float64, fill int) int {
	if n == 1 {
		return decodeBandN1(ctx, x, nil, lowbandOut)
	}
	x = x[:n]

	n0 := n
	nB := celtUdiv(n, blocks)
	longBlocks := blocks == 1

	recombine := 0
	tfChange := ctx.tfChange
	if tfChange > 0 {
		recombine = tfChange
	}

	if lowbandScratch != nil && lowband != nil && (recombine != 0 || (nB&1 == 0 && tfChange < 0) || blocks > 1) {
		copy(lowbandScratch, lowband)
		lowband = lowbandScratch
	}

	for k := 0; k < recombine; k++ {
		if lowband != nil {
			haar1(lowband, n>>k, 1<<k)
		}
		fill = bitInterleaveTable[fill&0xF] | bitInterleaveTable[fill>>4]<<2
	}
	blocks >>= recombine
	nB <<= recombine

	timeDivide := 0
	for nB&1 == 0 && tfChange < 0 {
		if lowband != nil {
			haar1(lowband, nB, blocks)
		}
		fill |= fill << blocks
		blocks <<= 1
		nB >>= 1
		timeDivide++
		tfChange++
	}
	b0 := blocks
	nB0 := nB

	if b0 > 1 && lowband != nil {
		deinterleaveHadamard(lowband, nB>>recombine, b0<<recombine, longBlocks, ctx.scratch)
	}

	cm := decodePartition(ctx, x, n, b, blocks, lowband, lm, gain, fill)

	// Resynthesis: redo the transforms on the decoded shape.
	if b0 > 1 {
		interleaveHadamard(x, nB>>recombine, b0<<recombine, longBlocks, ctx.scratch)
	}
	nB = nB0
	blocks = b0
	for k := 0; k < timeDivide; k++ {
		blocks >>= 1
		nB <<= 1
		cm |= cm >> blocks
		haar1(x, nB, blocks)
	}
	for k := 0; k < recombine; k++ {
		cm = bitDeinterleaveTable[cm&0xF]
		haar1(x, n0>>k, 1<<k)
	}
	blocks <<= recombine

	if lowbandOut != nil && len(lowbandOut) >= n0 {
		norm := math.Sqrt(float64(n0))
		for j := 0; j < n0; j++ {
			lowbandOut[j] = norm * x[j]
		}
	}
	return cm & ((1 << blocks) - 1)
}

// decodeBandStereo decodes a joint-stereo band: the theta angle fixes the
// mid/side energy split, both shapes are decoded, and the pair is rotated
// back to left/right.
// Reference: libopus celt/bands.c quant_band_stereo(), decode side
func decodeBandStereo(ctx *bandCtx, x, y []float64, n, b, blocks int, lowband []float64, lm int, lowbandOut []float64, lowbandScratch []float64, fill int) int {
	if n == 1 {
		return decodeBandN1(ctx, x, y, lowbandOut)
	}
	x = x[:n]
	y = y[:n]

	origFill := fill
	var sctx splitCtx
	decodeTheta(ctx, &sctx, n, &b, blocks, blocks, lm, true, &fill)
	mid := float64(sctx.imid) / 32768.0
	side := float64(sctx.iside) / 32768.0

	if n == 2 {
		// Two-coefficient stereo: the side is the mid rotated by 90
		// degrees, up to a decoded sign.
		mbits := b
		sbits := 0
		if sctx.itheta != 0 && sctx.itheta != 16384 {
			sbits = 1 << bitRes
		}
		mbits -= sbits
		ctx.remainingBits -= sctx.qalloc + sbits

		x2, y2 := x, y
		if sctx.itheta > 8192 {
			x2, y2 = y, x
		}
		sign := 1
		if sbits > 0 && ctx.rd.DecodeRawBits(1) == 1 {
			sign = -1
		}
		cm := decodeBand(ctx, x2, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, origFill)
		y2[0] = float64(sign) * -x2[1]
		y2[1] = float64(sign) * x2[0]

		x[0] *= mid
		x[1] *= mid
		y[0] *= side
		y[1] *= side
		tmp := x[0]
		x[0] = tmp - y[0]
		y[0] = tmp + y[0]
		tmp = x[1]
		x[1] = tmp - y[1]
		y[1] = tmp + y[1]
		if sctx.inv != 0 {
			y[0] = -y[0]
			y[1] = -y[1]
		}
		return cm
	}

	mbits := max(0, min(b, (b-sctx.delta)/2))
	sbits := b - mbits
	ctx.remainingBits -= sctx.qalloc

	rebalance := ctx.remainingBits
	var cm int
	if mbits >= sbits {
		cm = decodeBand(ctx, x, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, fill)
		rebalance = mbits - (rebalance - ctx.remainingBits)
		if rebalance > 3<<bitRes && sctx.itheta != 0 {
			sbits += rebalance - (3 << bitRes)
		}
		cm |= decodeBand(ctx, y, n, sbits, blocks, nil, lm, nil, side, nil, fill>>blocks)
	} else {
		cm = decodeBand(ctx, y, n, sbits, blocks, nil, lm, nil, side, nil, fill>>blocks)
		rebalance = sbits - (rebalance - ctx.remainingBits)
		if rebalance > 3<<bitRes && sctx.itheta != 16384 {
			mbits += rebalance - (3 << bitRes)
		}
		cm |= decodeBand(ctx, x, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, fill)
	}

	stereoMerge(x, y, mid)
	if sctx.inv != 0 {
		for i := 0; i < n; i++ {
			y[i] = -y[i]
		}
	}
	return cm
}

// decodeAllBands runs the band decoder over [start,end), returning the
// unit-norm spectra per channel and the per-band collapse masks used by
// anti-collapse. balance redistributes surplus bits to the next few bands.
// Reference: libopus celt/bands.c quant_all_bands(), decode side
func decodeAllBands(rd *rangecoding.Decoder, channels, frameSize, lm, start, end int,
	pulses []int, shortBlocks, spread, dualStereo, intensity int,
	tfRes []int, totalBitsQ3, balance, codedBands int, disableInv bool, seed *uint32,
	scratch *bandScratch) (left, right []float64, collapse []byte) {
	m := 1 << lm
	blocks := 1
	if shortBlocks > 1 {
		blocks = shortBlocks
	}

	left = ensureFloat64(&scratch.left, frameSize)
	clear(left)
	if channels == 2 {
		right = ensureFloat64(&scratch.right, frameSize)
		clear(right)
	}
	collapse = ensureByte(&scratch.collapse, channels*MaxBands)
	clear(collapse)

	normOffset := m * EBands[start]
	normLen := m*EBands[MaxBands-1] - normOffset
	if normLen < 0 {
		normLen = 0
	}
	norm := ensureFloat64(&scratch.norm, channels*normLen)
	clear(norm)
	var norm2 []float64
	if channels == 2 {
		norm2 = norm[normLen:]
	}

	// Bands widen monotonically, so the last one bounds the fold scratch.
	lowbandScratch := ensureFloat64(&scratch.lowband, m*(EBands[end]-EBands[end-1]))

	lowbandOffset := 0
	updateLowband := true
	ctx := bandCtx{
		rd:         rd,
		spread:     spread,
		intensity:  intensity,
		seed:       seed,
		disableInv: disableInv,
		scratch:    scratch,
	}

	for i := start; i < end; i++ {
		ctx.band = i
		last := i == end-1
		bandStart := EBands[i] * m
		bandEnd := EBands[i+1] * m
		n := bandEnd - bandStart
		if n <= 0 {
			continue
		}

		x := left[bandStart:bandEnd]
		var y []float64
		if channels == 2 {
			y = right[bandStart:bandEnd]
		}

		tell := rd.TellFrac()
		if i != start {
			balance -= tell
		}
		remaining := totalBitsQ3 - tell - 1
		ctx.remainingBits = remaining

		b := 0
		if i <= codedBands-1 {
			currBalance := celtSudiv(balance, min(3, codedBands-i))
			b = max(0, min(16383, min(remaining+1, pulses[i]+currBalance)))
		}
		if (m*EBands[i]-n >= m*EBands[start] || i == start+1) && (updateLowband || lowbandOffset == 0) {
			lowbandOffset = i
		}
		if i == start+1 {
			specialHybridFolding(norm, norm2, start, m, dualStereo != 0)
		}

		ctx.tfChange = tfRes[i]

		effectiveLowband := -1
		xCM := 0
		yCM := 0
		if lowbandOffset != 0 && (spread != spreadAggressive || blocks > 1 || ctx.tfChange < 0) {
			effectiveLowband = max(0, m*EBands[lowbandOffset]-normOffset-n)
			// Collapse masks of every band the fold source overlaps.
			foldStart := lowbandOffset
			for {
				foldStart--
				if foldStart <= start {
					foldStart = start
					break
				}
				if m*EBands[foldStart] <= effectiveLowband+normOffset {
					break
				}
			}
			foldEnd := lowbandOffset - 1
			for {
				foldEnd++
				if foldEnd >= i {
					break
				}
				if m*EBands[foldEnd] >= effectiveLowband+normOffset+n {
					break
				}
			}
			for fold := foldStart; fold < foldEnd; fold++ {
				xCM |= int(collapse[fold*channels])
				if channels == 2 {
					yCM |= int(collapse[fold*channels+channels-1])
				}
			}
		} else {
			xCM = (1 << blocks) - 1
			yCM = xCM
		}

		if dualStereo != 0 && i == intensity {
			// Dual stereo ends here; collapse the fold histories into one.
			dualStereo = 0
			mergeLimit := min(m*EBands[i]-normOffset, len(norm))
			if channels == 2 {
				mergeLimit = min(mergeLimit, len(norm2))
			}
			for j := 0; j < mergeLimit; j++ {
				norm[j] = 0.5 * (norm[j] + norm2[j])
			}
		}

		var lowbandX, lowbandY []float64
		if effectiveLowband >= 0 && effectiveLowband+n <= len(norm) {
			lowbandX = norm[effectiveLowband : effectiveLowband+n]
			if channels == 2 && effectiveLowband+n <= len(norm2) {
				lowbandY = norm2[effectiveLowband : effectiveLowband+n]
			}
		}

		var lowbandOutX, lowbandOutY []float64
		outStart := m*EBands[i] - normOffset
		if !last && outStart >= 0 && outStart+n <= len(norm) {
			lowbandOutX = norm[outStart : outStart+n]
			if channels == 2 && outStart+n <= len(norm2) {
				lowbandOutY = norm2[outStart : outStart+n]
			}
		}

		if dualStereo != 0 {
			xCM = decodeBand(&ctx, x, n, b/2, blocks, lowbandX, lm, lowbandOutX, 1.0, lowbandScratch, xCM)
			if channels == 2 {
				yCM = decodeBand(&ctx, y, n, b/2, blocks, lowbandY, lm, lowbandOutY, 1.0, lowbandScratch, yCM)
			}
		} else if channels == 2 {
			xCM = decodeBandStereo(&ctx, x, y, n, b, blocks, lowbandX, lm, lowbandOutX, lowbandScratch, xCM|yCM)
			yCM = xCM
		} else {
			xCM = decodeBand(&ctx, x, n, b, blocks, lowbandX, lm, lowbandOutX, 1.0, lowbandScratch, xCM|yCM)
			yCM = xCM
		}

		collapse[i*channels] = byte(xCM)
		if channels == 2 {
			collapse[i*channels+channels-1] = byte(yCM)
		}
		balance += pulses[i] + tell

		updateLowband = b > n<<bitRes
	}

	return left, right, collapse
}
