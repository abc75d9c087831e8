package celt

import (
	"errors"

	"github.com/thesyncim/opusdec/internal/plc"
	"github.com/thesyncim/opusdec/internal/rangecoding"
)

// Decoding errors.
var (
	// ErrInvalidFrame indicates the frame data is invalid or corrupted.
	ErrInvalidFrame = errors.New("celt: invalid frame data")

	// ErrInvalidFrameSize indicates an unsupported frame size.
	ErrInvalidFrameSize = errors.New("celt: invalid frame size")

	// ErrNilDecoder indicates a nil range decoder was passed.
	ErrNilDecoder = errors.New("celt: nil range decoder")
)

// HybridCELTStartBand is the first band coded by CELT in hybrid frames.
// Bands below it carry the SILK signal and stay zero in the CELT spectrum.
const HybridCELTStartBand = 17

// plcDecodeBufferSize is the length of decoded-signal history kept per
// channel for the concealment pitch search, matching libopus
// DECODE_BUFFER_SIZE.
const plcDecodeBufferSize = 2048

// Decoder decodes CELT frames from an Opus packet. It keeps the
// inter-frame state the bitstream relies on: the band energy history used
// for prediction, the synthesis overlap, the de-emphasis filter and the
// pitch postfilter memory. A decoder is not safe for concurrent use.
//
// A frame decodes in stages: energy envelope (coarse, fine, finalise),
// band shapes via PVQ, denormalization, IMDCT synthesis with overlap-add,
// pitch postfilter and de-emphasis.
//
// Reference: RFC 6716 Section 4.3
type Decoder struct {
	channels int

	// rangeDecoder points at the entropy decoder for the frame being
	// decoded. rangeDecoderScratch backs self-contained packets so no
	// allocation happens per frame.
	rangeDecoder        *rangecoding.Decoder
	rangeDecoderScratch rangecoding.Decoder

	// Energy history in full layout [channel*MaxBands+band], log2 units.
	// prevEnergy feeds coarse prediction, the two log arrays feed
	// anti-collapse and transient tracking.
	prevEnergy []float64
	prevLogE   []float64
	prevLogE2  []float64

	// overlapBuffer holds the previous frame's synthesis tail, one
	// Overlap run per channel. preemphState is the de-emphasis IIR state.
	overlapBuffer []float64
	preemphState  []float64

	// Pitch postfilter parameters and their previous values for the
	// crossfade, plus the per-channel comb filter history.
	postfilterPeriod    int
	postfilterGain      float64
	postfilterTapset    int
	postfilterPeriodOld int
	postfilterGainOld   float64
	postfilterTapsetOld int
	postfilterMem       []float64

	// plcDecodeMem keeps the recent pre-deemphasis output for the
	// concealment pitch search.
	plcDecodeMem []float64
	plcState     plc.State

	// rng is the deterministic noise state shared by folding,
	// anti-collapse and concealment.
	rng uint32

	bandwidth          CELTBandwidth
	prevStreamChannels int

	// downsample decimates the 48kHz output by this factor. Spectral
	// content above the reduced Nyquist is cleared before synthesis.
	downsample int

	// Per-frame scratch, reused across calls.
	scratchEnergies   []float64
	scratchMonoEnergy []float64
	scratchStateE     []float64
	scratchRemap      []float64
	scratchTFRes      []int
	scratchOffsets    []int
	scratchCaps       []int
	scratchPulses     []int
	scratchFineQuant  []int
	scratchFinePrio   []int
	scratchAlloc      []int
	scratchBands      bandScratch
	scratchIMDCT      imdctScratch
	scratchSynthL     []float64
	scratchSynthR     []float64
	scratchShort      []float64
	scratchStereo     []float64
	postfilterScratch []float64
	scratchPLC        []float64
	scratchPLCPitchLP []float64
	scratchPLCPitch   pitchScratch
}

// NewDecoder creates a CELT decoder for 1 or 2 channels. The decoder
// always operates at 48kHz internally.
func NewDecoder(channels int) *Decoder {
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}

	d := &Decoder{
		channels:      channels,
		downsample:    1,
		prevEnergy:    make([]float64, MaxBands*channels),
		prevLogE:      make([]float64, MaxBands*channels),
		prevLogE2:     make([]float64, MaxBands*channels),
		overlapBuffer: make([]float64, Overlap*channels),
		preemphState:  make([]float64, channels),
		postfilterMem: make([]float64, combFilterHistory*channels),
		plcDecodeMem:  make([]float64, plcDecodeBufferSize*channels),
	}
	d.Reset()
	return d
}

// Reset clears all inter-frame state for a new stream. Band energies go
// to zero and the log histories to the silence floor, matching the
// libopus reset defaults.
func (d *Decoder) Reset() {
	for i := range d.prevEnergy {
		d.prevEnergy[i] = 0
	}
	for i := range d.prevLogE {
		d.prevLogE[i] = silenceEnergy
	}
	for i := range d.prevLogE2 {
		d.prevLogE2[i] = silenceEnergy
	}
	clear(d.overlapBuffer)
	clear(d.preemphState)
	clear(d.plcDecodeMem)
	d.resetPostfilterState()

	d.rng = 0
	d.rangeDecoder = nil
	d.bandwidth = CELTFullband
	d.prevStreamChannels = 0
	d.plcState.Reset()
}

// Channels returns the configured output channel count.
func (d *Decoder) Channels() int {
	return d.channels
}

// SetBandwidth sets the audio bandwidth derived from the Opus TOC. It
// caps how many bands the next frames decode.
func (d *Decoder) SetBandwidth(bw CELTBandwidth) {
	d.bandwidth = bw
}

// Bandwidth returns the current bandwidth setting.
func (d *Decoder) Bandwidth() CELTBandwidth {
	return d.bandwidth
}

// SetDownsample configures output decimation. factor is 48000 divided by
// the output rate, one of 1, 2, 3, 4 or 6; other values are ignored.
// Frame lengths stay in 48kHz units, the caller picks every factor-th
// sample.
func (d *Decoder) SetDownsample(factor int) {
	switch factor {
	case 1, 2, 3, 4, 6:
		d.downsample = factor
	}
}

// FinalRange returns the range coder state captured after the last
// decoded frame, used for bitstream conformance checks.
func (d *Decoder) FinalRange() uint32 {
	return d.rng
}

// handleChannelTransition reconciles per-channel state when the packet
// channel count changes mid-stream. On mono-to-stereo the right channel
// inherits the left channel's overlap and energy history so the first
// stereo frame crossfades cleanly; on stereo-to-mono the mono prediction
// state takes the louder of the two channels.
//
// Reference: libopus celt/celt_decoder.c mono/stereo handling
func (d *Decoder) handleChannelTransition(streamChannels int) {
	prev := d.prevStreamChannels
	d.prevStreamChannels = streamChannels

	if prev == 1 && streamChannels == 2 && d.channels == 2 {
		if len(d.overlapBuffer) >= 2*Overlap {
			copy(d.overlapBuffer[Overlap:2*Overlap], d.overlapBuffer[:Overlap])
		}
		if len(d.prevEnergy) >= 2*MaxBands {
			copy(d.prevEnergy[MaxBands:2*MaxBands], d.prevEnergy[:MaxBands])
		}
		if len(d.prevLogE) >= 2*MaxBands {
			copy(d.prevLogE[MaxBands:2*MaxBands], d.prevLogE[:MaxBands])
		}
		if len(d.prevLogE2) >= 2*MaxBands {
			copy(d.prevLogE2[MaxBands:2*MaxBands], d.prevLogE2[:MaxBands])
		}
		// The de-emphasis state is intentionally not copied; each channel
		// keeps its own filter history across the transition.
		return
	}

	if prev == 2 && streamChannels == 1 && d.channels == 2 {
		foldMax := func(state []float64) {
			if len(state) < 2*MaxBands {
				return
			}
			for i := 0; i < MaxBands; i++ {
				if state[MaxBands+i] > state[i] {
					state[i] = state[MaxBands+i]
				}
			}
		}
		foldMax(d.prevEnergy)
		foldMax(d.prevLogE)
		foldMax(d.prevLogE2)
	}
}

// ensureEnergyState grows the energy history to hold the requested
// channel count. Needed when a mono decoder receives stereo packets.
func (d *Decoder) ensureEnergyState(channels int) {
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	needed := MaxBands * channels
	if len(d.prevEnergy) < needed {
		grown := make([]float64, needed)
		copy(grown, d.prevEnergy)
		d.prevEnergy = grown
	}
	growLog := func(state []float64) []float64 {
		if len(state) >= needed {
			return state
		}
		grown := make([]float64, needed)
		copy(grown, state)
		for i := len(state); i < needed; i++ {
			grown[i] = silenceEnergy
		}
		return grown
	}
	d.prevLogE = growLog(d.prevLogE)
	d.prevLogE2 = growLog(d.prevLogE2)
}

// prepareMonoEnergyFromStereo folds stereo energy history into the mono
// half when a mono stream follows stereo state, using the louder channel
// for prediction the way libopus does.
func (d *Decoder) prepareMonoEnergyFromStereo() {
	if d.channels != 1 || len(d.prevEnergy) < 2*MaxBands {
		return
	}
	for i := 0; i < MaxBands; i++ {
		if d.prevEnergy[MaxBands+i] > d.prevEnergy[i] {
			d.prevEnergy[i] = d.prevEnergy[MaxBands+i]
		}
	}
}

// storePrevEnergy copies a compact per-frame energy array (nbBands per
// channel) into the full-layout prediction history.
func (d *Decoder) storePrevEnergy(energies []float64, nbBands, channels int) {
	if nbBands > MaxBands {
		nbBands = MaxBands
	}
	for c := 0; c < channels; c++ {
		src := c * nbBands
		dst := c * MaxBands
		if src+nbBands > len(energies) || dst+nbBands > len(d.prevEnergy) {
			break
		}
		copy(d.prevEnergy[dst:dst+nbBands], energies[src:src+nbBands])
	}
}

// updateLogE rolls the log energy history used by anti-collapse. On
// non-transient frames the previous history shifts back one frame and the
// new energies replace it; on transients the history only moves down, so
// it tracks the quietest recent level per band.
func (d *Decoder) updateLogE(energies []float64, nbBands, channels int, transient bool) {
	if nbBands > MaxBands {
		nbBands = MaxBands
	}
	if nbBands <= 0 || channels < 1 || len(energies) < nbBands*channels {
		return
	}
	if !transient {
		copy(d.prevLogE2, d.prevLogE)
	}
	for c := 0; c < channels; c++ {
		base := c * MaxBands
		if base+nbBands > len(d.prevLogE) {
			break
		}
		for band := 0; band < nbBands; band++ {
			e := energies[c*nbBands+band]
			if transient {
				if e < d.prevLogE[base+band] {
					d.prevLogE[base+band] = e
				}
			} else {
				d.prevLogE[base+band] = e
			}
		}
	}
}

// clearEnergyOutside resets history outside the coded band range, mirroring
// the libopus end-of-frame cleanup.
func (d *Decoder) clearEnergyOutside(start, end, channels int) {
	for c := 0; c < channels; c++ {
		base := c * MaxBands
		if base+MaxBands > len(d.prevEnergy) {
			break
		}
		for band := 0; band < start; band++ {
			d.prevEnergy[base+band] = 0
			d.prevLogE[base+band] = silenceEnergy
			d.prevLogE2[base+band] = silenceEnergy
		}
		for band := end; band < MaxBands; band++ {
			d.prevEnergy[base+band] = 0
			d.prevLogE[base+band] = silenceEnergy
			d.prevLogE2[base+band] = silenceEnergy
		}
	}
}

// DecodeFrame decodes one CELT frame from a self-contained packet.
// frameSize is the output length per channel at 48kHz (120, 240, 480 or
// 960). Empty data triggers loss concealment for one frame. The returned
// samples are interleaved when the decoder is stereo and remain valid
// until the next call.
func (d *Decoder) DecodeFrame(data []byte, frameSize int) ([]float64, error) {
	return d.decodePacket(data, frameSize, d.channels)
}

// DecodeFrameWithPacketStereo decodes a packet whose channel count may
// differ from the decoder's. A mono packet on a stereo decoder plays the
// same signal on both channels; a stereo packet on a mono decoder is
// downmixed.
func (d *Decoder) DecodeFrameWithPacketStereo(data []byte, frameSize int, packetStereo bool) ([]float64, error) {
	pkt := 1
	if packetStereo {
		pkt = 2
	}
	return d.decodePacket(data, frameSize, pkt)
}

func (d *Decoder) decodePacket(data []byte, frameSize, pktChannels int) ([]float64, error) {
	if len(data) == 0 {
		return d.decodePLC(frameSize)
	}
	if !ValidFrameSize(frameSize) {
		return nil, ErrInvalidFrameSize
	}
	d.handleChannelTransition(pktChannels)
	rd := &d.rangeDecoderScratch
	rd.Init(data)
	return d.decodeFrame(rd, frameSize, 0, pktChannels)
}

// DecodeFrameWithDecoder decodes a CELT frame from an already positioned
// range decoder, for callers that share the entropy coder with another
// layer or with redundancy data.
func (d *Decoder) DecodeFrameWithDecoder(rd *rangecoding.Decoder, frameSize int) ([]float64, error) {
	if rd == nil {
		return nil, ErrNilDecoder
	}
	if !ValidFrameSize(frameSize) {
		return nil, ErrInvalidFrameSize
	}
	d.handleChannelTransition(d.channels)
	return d.decodeFrame(rd, frameSize, 0, d.channels)
}

// DecodeFrameHybrid decodes the CELT portion of a hybrid frame. The
// range decoder arrives positioned after the SILK layer, and only bands
// from HybridCELTStartBand up are coded. Hybrid frames are 10ms or 20ms.
func (d *Decoder) DecodeFrameHybrid(rd *rangecoding.Decoder, frameSize int) ([]float64, error) {
	return d.decodeHybrid(rd, frameSize, d.channels)
}

// DecodeFrameHybridWithPacketStereo is DecodeFrameHybrid honoring the
// packet's stereo flag when it differs from the decoder's channels.
func (d *Decoder) DecodeFrameHybridWithPacketStereo(rd *rangecoding.Decoder, frameSize int, packetStereo bool) ([]float64, error) {
	pkt := 1
	if packetStereo {
		pkt = 2
	}
	return d.decodeHybrid(rd, frameSize, pkt)
}

func (d *Decoder) decodeHybrid(rd *rangecoding.Decoder, frameSize, pktChannels int) ([]float64, error) {
	if rd == nil {
		return nil, ErrNilDecoder
	}
	if frameSize != 480 && frameSize != 960 {
		return nil, ErrInvalidFrameSize
	}
	d.handleChannelTransition(pktChannels)
	return d.decodeFrame(rd, frameSize, HybridCELTStartBand, pktChannels)
}

// decodeFrame is the shared body behind every coded-frame entry point.
// start selects CELT-only (0) or hybrid (HybridCELTStartBand) operation;
// pktChannels is the channel count signalled by the packet. The coded
// layers run at the packet's channel count and the spectrum is duplicated
// or downmixed afterwards when the output channel count differs.
func (d *Decoder) decodeFrame(rd *rangecoding.Decoder, frameSize, start, pktChannels int) ([]float64, error) {
	d.rangeDecoder = rd
	outChannels := d.channels
	coded := pktChannels
	if coded < 1 {
		coded = 1
	}
	if coded > 2 {
		coded = 2
	}
	updateChannels := outChannels
	if coded > updateChannels {
		updateChannels = coded
	}

	mode := GetModeConfig(frameSize)
	lm := mode.LM
	end := EffectiveBandsForFrameSize(d.bandwidth, frameSize)
	if end > mode.EffBands {
		end = mode.EffBands
	}
	if end < 1 {
		end = 1
	}

	switch {
	case coded == outChannels:
		d.prepareMonoEnergyFromStereo()
	case coded == 2:
		d.ensureEnergyState(2)
	}

	totalBits := rd.StorageBits()
	tell := rd.Tell()
	silence := false
	if tell >= totalBits {
		silence = true
	} else if tell == 1 {
		silence = rd.DecodeBit(15) == 1
	}
	if silence {
		samples := d.decodeSilenceFrame(frameSize, 0, 0, 0)
		silenceE := ensureFloat64(&d.scratchStateE, MaxBands*updateChannels)
		for i := range silenceE {
			silenceE[i] = silenceEnergy
		}
		d.updateLogE(silenceE, MaxBands, updateChannels, false)
		d.storePrevEnergy(silenceE, MaxBands, updateChannels)
		d.rng = rd.Range()
		d.finishFrame(start, frameSize, outChannels)
		return samples, nil
	}

	pfPeriod, pfTapset := 0, 0
	pfGain := 0.0
	if start == 0 && tell+16 <= totalBits {
		if rd.DecodeBit(1) == 1 {
			octave := int(rd.DecodeUniform(6))
			pfPeriod = (16 << octave) + int(rd.DecodeRawBits(uint(4+octave))) - 1
			qg := int(rd.DecodeRawBits(3))
			if rd.Tell()+2 <= totalBits {
				pfTapset = rd.DecodeICDF(tapsetICDF, 2)
			}
			pfGain = 0.09375 * float64(qg+1)
		}
		tell = rd.Tell()
	}

	transient := false
	if lm > 0 && tell+3 <= totalBits {
		transient = rd.DecodeBit(3) == 1
		tell = rd.Tell()
	}
	intra := false
	if tell+3 <= totalBits {
		intra = rd.DecodeBit(3) == 1
	}
	shortBlocks := 1
	if transient {
		shortBlocks = mode.ShortBlocks
	}

	// The coded layers run at the packet's channel count, predicting from
	// a mono view of the history when a mono packet plays on a stereo
	// decoder.
	savedPrev := d.prevEnergy
	d.channels = coded
	if coded == 1 && outChannels == 2 {
		mono := ensureFloat64(&d.scratchMonoEnergy, MaxBands)
		for i := 0; i < MaxBands; i++ {
			e := savedPrev[i]
			if len(savedPrev) >= 2*MaxBands && savedPrev[MaxBands+i] > e {
				e = savedPrev[MaxBands+i]
			}
			mono[i] = e
		}
		d.prevEnergy = mono
	}

	energies := ensureFloat64(&d.scratchEnergies, end*coded)
	if start > 0 {
		// Bands below the hybrid start keep their previous envelope.
		for c := 0; c < coded; c++ {
			for band := 0; band < end; band++ {
				energies[c*end+band] = d.prevEnergy[c*MaxBands+band]
			}
		}
	}
	d.decodeCoarseEnergy(start, end, intra, lm, energies)

	tfRes := ensureInt(&d.scratchTFRes, end)
	tfDecode(start, end, transient, tfRes, lm, rd)

	spread := spreadNormal
	tell = rd.Tell()
	if tell+4 <= totalBits {
		spread = rd.DecodeICDF(spreadICDF, 5)
	}

	caps := ensureInt(&d.scratchCaps, end)
	initCapsInto(caps, end, lm, coded)
	offsets := ensureInt(&d.scratchOffsets, end)
	clear(offsets)
	dynallocLogp := 6
	totalBitsQ3 := totalBits << bitRes
	tellFrac := rd.TellFrac()
	for i := start; i < end; i++ {
		width := coded * (EBands[i+1] - EBands[i]) << lm
		quanta := min(width<<bitRes, max(6<<bitRes, width))
		loopLogp := dynallocLogp
		boost := 0
		j := 0
		for ; tellFrac+(loopLogp<<bitRes) < totalBitsQ3 && boost < caps[i]; j++ {
			flag := rd.DecodeBit(uint(loopLogp))
			tellFrac = rd.TellFrac()
			if flag == 0 {
				break
			}
			boost += quanta
			totalBitsQ3 -= quanta
			loopLogp = 1
		}
		offsets[i] = boost
		if j > 0 {
			dynallocLogp = max(2, dynallocLogp-1)
		}
	}

	allocTrim := 5
	if tellFrac+(6<<bitRes) <= totalBitsQ3 {
		allocTrim = rd.DecodeICDF(trimICDF, 7)
	}

	bitsQ3 := (totalBits << bitRes) - rd.TellFrac() - 1
	antiCollapseRsv := 0
	if transient && lm >= 2 && bitsQ3 >= (lm+2)<<bitRes {
		antiCollapseRsv = 1 << bitRes
	}
	bitsQ3 -= antiCollapseRsv

	pulses := ensureInt(&d.scratchPulses, end)
	fineQuant := ensureInt(&d.scratchFineQuant, end)
	finePriority := ensureInt(&d.scratchFinePrio, end)
	intensity, dualStereo, balance := 0, 0, 0
	allocScratch := ensureInt(&d.scratchAlloc, MaxBands*4)
	codedBands := computeAllocation(rd, start, end, offsets, caps, allocTrim, bitsQ3,
		&intensity, &dualStereo, &balance, pulses, fineQuant, finePriority, coded, lm, allocScratch)

	d.decodeFineEnergy(energies, start, end, fineQuant)

	coeffsL, coeffsR, collapse := decodeAllBands(rd, coded, frameSize, lm, start, end,
		pulses, shortBlocks, spread, dualStereo, intensity, tfRes,
		(totalBits<<bitRes)-antiCollapseRsv, balance, codedBands,
		outChannels == 1, &d.rng, &d.scratchBands)

	antiCollapseOn := false
	if antiCollapseRsv > 0 {
		antiCollapseOn = rd.DecodeRawBits(1) == 1
	}

	bitsLeft := totalBits - rd.Tell()
	d.decodeEnergyFinalise(energies, start, end, fineQuant, finePriority, bitsLeft)

	if antiCollapseOn {
		antiCollapse(coeffsL, coeffsR, collapse, lm, coded, start, end, energies,
			d.prevLogE, d.prevLogE2, pulses, d.rng)
	}

	if coded == 2 {
		denormalizeCoeffs(coeffsL, energies[:end], end, frameSize)
		denormalizeCoeffs(coeffsR, energies[end:], end, frameSize)
	} else {
		denormalizeCoeffs(coeffsL, energies, end, frameSize)
	}
	if start > 0 {
		// The SILK layer owns the spectrum below the hybrid start band.
		n := ScaledBandStart(start, frameSize)
		if n > len(coeffsL) {
			n = len(coeffsL)
		}
		clear(coeffsL[:n])
		if coeffsR != nil {
			clear(coeffsR[:n])
		}
	}
	if d.downsample > 1 {
		// Content above the decimated Nyquist would alias into the output.
		bound := frameSize / d.downsample
		if bound < len(coeffsL) {
			clear(coeffsL[bound:])
		}
		if coeffsR != nil && bound < len(coeffsR) {
			clear(coeffsR[bound:])
		}
	}

	d.channels = outChannels
	d.prevEnergy = savedPrev

	var samples []float64
	switch {
	case coded == outChannels && outChannels == 2:
		samples = d.synthesizeStereo(coeffsL, coeffsR, transient, shortBlocks)
	case coded == outChannels:
		samples = d.synthesize(coeffsL, transient, shortBlocks)
	case coded == 1:
		// Mono packet on a stereo decoder: play the same spectrum on both
		// channels. The copy keeps synthesis scratch from aliasing.
		dup := ensureFloat64(&d.scratchRemap, len(coeffsL))
		copy(dup, coeffsL)
		samples = d.synthesizeStereo(coeffsL, dup, transient, shortBlocks)
	default:
		// Stereo packet on a mono decoder: downmix in the MDCT domain so
		// a single synthesis run suffices.
		mix := ensureFloat64(&d.scratchRemap, len(coeffsL))
		for i := range mix {
			mix[i] = 0.5 * (coeffsL[i] + coeffsR[i])
		}
		samples = d.synthesize(mix, transient, shortBlocks)
	}

	d.applyPostfilter(samples, frameSize, lm, pfPeriod, pfGain, pfTapset)
	d.updatePLCDecodeHistory(samples, frameSize, plcDecodeBufferSize)
	d.applyDeemphasisAndScale(samples, 1.0/32768.0)

	stateE := energies
	if coded == 1 && updateChannels == 2 {
		stateE = ensureFloat64(&d.scratchStateE, 2*end)
		copy(stateE[:end], energies[:end])
		copy(stateE[end:], energies[:end])
	}
	d.updateLogE(stateE, end, updateChannels, transient)
	d.storePrevEnergy(stateE, end, updateChannels)
	d.clearEnergyOutside(start, end, updateChannels)

	d.rng = rd.Range()
	d.finishFrame(start, frameSize, outChannels)
	return samples, nil
}

// finishFrame records the successful frame for loss concealment.
func (d *Decoder) finishFrame(start, frameSize, channels int) {
	d.plcState.Reset()
	mode := plc.ModeCELT
	if start > 0 {
		mode = plc.ModeHybrid
	}
	d.plcState.SetLastFrameParams(mode, frameSize, channels)
}

// synthesizeSilenceMono emits a silence frame, fading out whatever the
// previous frame left in the overlap buffer.
func (d *Decoder) synthesizeSilenceMono(frameSize int) []float64 {
	if frameSize <= 0 {
		return nil
	}
	out := ensureFloat64(&d.scratchSynthL, frameSize)
	clear(out)
	if len(d.overlapBuffer) < Overlap {
		grown := make([]float64, Overlap)
		copy(grown, d.overlapBuffer)
		d.overlapBuffer = grown
	}
	prev := d.overlapBuffer[:Overlap]
	window := windowForF32(Overlap)
	half := Overlap >> 1
	if half > frameSize {
		half = frameSize
	}
	for i := 0; i < half; i++ {
		x := float32(prev[i])
		out[i] = float64(x * window[Overlap-1-i])
		if j := Overlap - 1 - i; j < frameSize {
			out[j] = float64(x * window[i])
		}
	}
	clear(prev)
	return out
}

func (d *Decoder) synthesizeSilenceStereo(frameSize int) []float64 {
	if frameSize <= 0 {
		return nil
	}
	if len(d.overlapBuffer) < 2*Overlap {
		grown := make([]float64, 2*Overlap)
		copy(grown, d.overlapBuffer)
		d.overlapBuffer = grown
	}
	out := ensureFloat64(&d.scratchStereo, frameSize*2)
	clear(out)

	overlapL := d.overlapBuffer[:Overlap]
	overlapR := d.overlapBuffer[Overlap : 2*Overlap]
	window := windowForF32(Overlap)
	half := Overlap >> 1
	if half > frameSize {
		half = frameSize
	}
	for i := 0; i < half; i++ {
		j := Overlap - 1 - i
		xl := float32(overlapL[i])
		out[2*i] = float64(xl * window[j])
		if j < frameSize {
			out[2*j] = float64(xl * window[i])
		}
		xr := float32(overlapR[i])
		out[2*i+1] = float64(xr * window[j])
		if j < frameSize {
			out[2*j+1] = float64(xr * window[i])
		}
	}
	clear(overlapL)
	clear(overlapR)
	return out
}

// decodeSilenceFrame synthesizes a silence frame from overlap state and
// runs it through the regular postfilter and de-emphasis chain so the
// filter memories stay continuous.
func (d *Decoder) decodeSilenceFrame(frameSize, newPeriod int, newGain float64, newTapset int) []float64 {
	mode := GetModeConfig(frameSize)
	var samples []float64
	if d.channels == 2 {
		samples = d.synthesizeSilenceStereo(frameSize)
	} else {
		samples = d.synthesizeSilenceMono(frameSize)
	}
	if len(samples) == 0 {
		return nil
	}
	d.applyPostfilter(samples, frameSize, mode.LM, newPeriod, newGain, newTapset)
	d.updatePLCDecodeHistory(samples, frameSize, plcDecodeBufferSize)
	d.applyDeemphasisAndScale(samples, 1.0/32768.0)
	return samples
}

// applyDeemphasisAndScale reverses the encoder's pre-emphasis with the
// first order IIR y[n] = x[n] + coef*y[n-1] and scales to the output
// range. The filter state runs in float32 to match the reference
// implementation exactly; float64 state would drift from it over time.
func (d *Decoder) applyDeemphasisAndScale(samples []float64, scale float64) {
	if len(samples) == 0 {
		return
	}
	// Silent stretches keep an exact zero state; the denormal guard below
	// would otherwise leak a tiny DC term into the history.
	if d.preemphState[0] == 0 && (d.channels == 1 || d.preemphState[1] == 0) {
		allZero := true
		for _, x := range samples {
			if x != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			return
		}
	}

	// verySmall keeps the IIR state out of denormal range, same constant
	// as libopus VERY_SMALL.
	const verySmall float32 = 1e-30
	coef := float32(PreemphCoef)
	scale32 := float32(scale)

	if d.channels == 1 {
		state := float32(d.preemphState[0])
		for i, x := range samples {
			tmp := float32(x) + verySmall + state
			state = coef * tmp
			samples[i] = float64(tmp * scale32)
		}
		d.preemphState[0] = float64(state)
		return
	}

	stateL := float32(d.preemphState[0])
	stateR := float32(d.preemphState[1])
	for i := 0; i+1 < len(samples); i += 2 {
		l := float32(samples[i]) + verySmall + stateL
		stateL = coef * l
		samples[i] = float64(l * scale32)

		r := float32(samples[i+1]) + verySmall + stateR
		stateR = coef * r
		samples[i+1] = float64(r * scale32)
	}
	d.preemphState[0] = float64(stateL)
	d.preemphState[1] = float64(stateR)
}

// updatePLCDecodeHistory rolls the decoded signal into the concealment
// pitch history, one planar run per channel. samples hold the frame
// before de-emphasis, interleaved when stereo.
func (d *Decoder) updatePLCDecodeHistory(samples []float64, frameSize, history int) {
	if frameSize <= 0 || history <= 0 || d.channels <= 0 {
		return
	}
	if len(d.plcDecodeMem) < history*d.channels {
		grown := make([]float64, history*d.channels)
		copy(grown, d.plcDecodeMem)
		d.plcDecodeMem = grown
	}
	if d.channels == 1 {
		hist := d.plcDecodeMem[:history]
		if frameSize >= history {
			copy(hist, samples[frameSize-history:frameSize])
			return
		}
		copy(hist, hist[frameSize:])
		copy(hist[history-frameSize:], samples[:frameSize])
		return
	}
	for ch := 0; ch < d.channels; ch++ {
		hist := d.plcDecodeMem[ch*history : (ch+1)*history]
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
		base := history - frameSize
		for i := 0; i < frameSize; i++ {
			hist[base+i] = samples[src]
			src += d.channels
		}
	}
}

// decodePLC conceals one lost frame. The first losses repeat the pitch
// period found in the postfilter history; once no usable period exists
// the band envelope decays and the spectrum refills with shaped noise.
//
// Reference: libopus celt/celt_decoder.c celt_decode_lost()
func (d *Decoder) decodePLC(frameSize int) ([]float64, error) {
	if !ValidFrameSize(frameSize) {
		return nil, ErrInvalidFrameSize
	}
	fade := d.plcState.RecordLoss()
	out := ensureFloat64(&d.scratchPLC, frameSize*d.channels)

	if d.concealPeriodic(out, frameSize, d.plcState.LostCount()) {
		d.applyDeemphasisAndScale(out, 1.0/32768.0)
		return out, nil
	}

	d.concealNoise(out, frameSize, fade)
	mode := GetModeConfig(frameSize)
	d.applyPostfilter(out, frameSize, mode.LM, d.postfilterPeriod, d.postfilterGain, d.postfilterTapset)
	d.updatePLCDecodeHistory(out, frameSize, plcDecodeBufferSize)
	d.applyDeemphasisAndScale(out, 1.0/32768.0)
	return out, nil
}

// concealPeriodic repeats the last pitch period from the comb filter
// history, attenuating across wraps and across consecutive losses. It
// reports false when no plausible period is available.
func (d *Decoder) concealPeriodic(dst []float64, frameSize, lossCount int) bool {
	if frameSize <= 0 || d.channels <= 0 || len(dst) < frameSize*d.channels {
		return false
	}

	period := d.postfilterPeriod
	if period < combFilterMinPeriod || period > combFilterMaxPeriod {
		period = d.postfilterPeriodOld
	}
	if period < combFilterMinPeriod || period > combFilterMaxPeriod {
		period = d.searchConcealmentPitch()
	}
	if period < combFilterMinPeriod || period > combFilterHistory {
		return false
	}
	if len(d.postfilterMem) < combFilterHistory*d.channels {
		return false
	}

	gain0 := 1.0
	for i := 1; i < lossCount; i++ {
		gain0 *= 0.8
	}

	for ch := 0; ch < d.channels; ch++ {
		hist := d.postfilterMem[ch*combFilterHistory : (ch+1)*combFilterHistory]
		src := combFilterHistory - period
		gain := gain0
		j := 0
		for i := 0; i < frameSize; i++ {
			dst[i*d.channels+ch] = hist[src+j] * gain
			j++
			if j >= period {
				j = 0
				gain *= 0.98
			}
		}
	}

	d.updatePostfilterHistory(dst, frameSize, combFilterHistory)
	d.updatePLCDecodeHistory(dst, frameSize, plcDecodeBufferSize)
	return true
}

// concealNoise rebuilds a frame from decayed band energies and random
// band shapes, fading the result over consecutive losses.
func (d *Decoder) concealNoise(dst []float64, frameSize int, fade float64) {
	mode := GetModeConfig(frameSize)
	end := EffectiveBandsForFrameSize(d.bandwidth, frameSize)
	if end > mode.EffBands {
		end = mode.EffBands
	}
	if end < 1 {
		end = 1
	}
	lossCount := d.plcState.LostCount()

	coeffsL := ensureFloat64(&d.scratchBands.left, frameSize)
	clear(coeffsL)
	var coeffsR []float64
	if d.channels == 2 {
		coeffsR = ensureFloat64(&d.scratchBands.right, frameSize)
		clear(coeffsR)
	}

	rng := d.rng
	for c := 0; c < d.channels; c++ {
		coeffs := coeffsL
		if c == 1 {
			coeffs = coeffsR
		}
		base := c * MaxBands
		if base+end > len(d.prevEnergy) {
			break
		}
		energies := d.prevEnergy[base : base+end]
		plc.DecayEnergies(energies, lossCount)
		for band := 0; band < end; band++ {
			lo := ScaledBandStart(band, frameSize)
			hi := ScaledBandEnd(band, frameSize)
			if lo >= frameSize {
				break
			}
			if hi > frameSize {
				hi = frameSize
			}
			if hi <= lo {
				continue
			}
			seg := coeffs[lo:hi]
			plc.NoiseFill(seg, &rng)
			renormalizeVector(seg, 1.0)
		}
		denormalizeCoeffs(coeffs, energies, end, frameSize)
	}
	d.rng = rng

	var samples []float64
	if d.channels == 2 {
		samples = d.synthesizeStereo(coeffsL, coeffsR, false, 1)
	} else {
		samples = d.synthesize(coeffsL, false, 1)
	}
	for i := range dst {
		dst[i] = samples[i] * fade
	}
}

// searchConcealmentPitch estimates a pitch period from the decoded-signal
// history when the postfilter never provided one.
func (d *Decoder) searchConcealmentPitch() int {
	const (
		lagMax = 720
		lagMin = 100
	)
	if d.channels <= 0 || len(d.plcDecodeMem) < plcDecodeBufferSize*d.channels {
		return 0
	}
	lpLen := plcDecodeBufferSize >> 1
	lp := ensureFloat64(&d.scratchPLCPitchLP, lpLen)
	pitchDownsample(d.plcDecodeMem, lp, lpLen, d.channels, 2)

	found := pitchSearch(lp[lagMax>>1:], lp, plcDecodeBufferSize-lagMax, lagMax-lagMin, &d.scratchPLCPitch)
	pitch := lagMax - found
	if pitch < lagMin || pitch > lagMax {
		return 0
	}
	return pitch
}
