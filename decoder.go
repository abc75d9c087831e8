// decoder.go implements the public Decoder API for Opus decoding.

package opusdec

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/opusdec/internal/celt"
	"github.com/thesyncim/opusdec/internal/plc"
	"github.com/thesyncim/opusdec/internal/rangecoding"
	"github.com/thesyncim/opusdec/internal/silk"
)

// DefaultMaxPacketBytes is the packet size cap used by
// DefaultDecoderConfig. It comfortably covers the largest legal Opus
// packet (48 frames of 1275 bytes plus framing) while bounding what a
// hostile stream can make the decoder chew on.
const DefaultMaxPacketBytes = 61440

// DecoderConfig configures a Decoder. Use DefaultDecoderConfig for the
// standard caps.
type DecoderConfig struct {
	// SampleRate is the output rate in Hz. Must be one of 8000, 12000,
	// 16000, 24000 or 48000. The decoder always runs at 48kHz internally
	// and decimates to the configured rate.
	SampleRate int

	// Channels is the output channel count, 1 or 2. Packets whose coded
	// channel count differs are duplicated or downmixed.
	Channels int

	// MaxPacketSamples caps the samples per channel a single packet may
	// decode to at SampleRate. Larger packets are rejected with
	// ErrPacketTooLarge.
	MaxPacketSamples int

	// MaxPacketBytes caps the accepted packet size in bytes.
	MaxPacketBytes int

	// Gain is an output gain in Q7.8 dB applied to every decoded sample,
	// matching the gain field of an Ogg Opus identification header
	// (RFC 7845 Section 5.1). Zero means unity.
	Gain int

	// Logger receives decode diagnostics such as concealment and frame
	// recovery events. Nil disables logging.
	Logger *logrus.Logger
}

// DefaultDecoderConfig returns a DecoderConfig for the given sample rate
// and channel count with MaxPacketSamples set to 120ms of audio (the
// largest packet RFC 6716 permits) and MaxPacketBytes set to
// DefaultMaxPacketBytes.
func DefaultDecoderConfig(sampleRate, channels int) DecoderConfig {
	return DecoderConfig{
		SampleRate:       sampleRate,
		Channels:         channels,
		MaxPacketSamples: sampleRate / 1000 * 120,
		MaxPacketBytes:   DefaultMaxPacketBytes,
	}
}

// Decoder decodes Opus packets into PCM audio samples.
//
// A Decoder maintains inter-frame state and is NOT safe for concurrent
// use. Each goroutine should create its own instance.
//
// The decoder dispatches on the TOC byte of each packet: CELT frames run
// the native pipeline, SILK frames go to the pluggable SILK engine, and
// hybrid frames run both over the shared range decoder. After
// construction the Decode hot path performs no heap allocations.
type Decoder struct {
	cfg DecoderConfig
	log logrus.FieldLogger

	celtDecoder *celt.Decoder
	silkEngine  silk.Engine
	rd          rangecoding.Decoder

	// downsample is 48000 / cfg.SampleRate; the output takes every
	// downsample-th sample of the internal 48kHz synthesis.
	downsample int
	gain       float32

	// parsed and the scratch buffers are reused across calls to keep the
	// hot path allocation free.
	parsed     Packet
	silkBuf    []float32
	pcmScratch []float32

	// softclipMem carries the soft-clip filter state across DecodeInt16
	// calls, one value per channel.
	softclipMem [2]float32

	lossState     plc.State
	lastFrameSize int // samples at 48kHz
	lastMode      Mode
	finalRange    uint32
}

// NewDecoder creates an Opus decoder from cfg. It returns an error when
// the sample rate, channel count or packet caps are invalid.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	if !validSampleRate(cfg.SampleRate) {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, ErrInvalidChannels
	}
	if cfg.MaxPacketSamples <= 0 {
		return nil, ErrInvalidMaxPacketSamples
	}
	if cfg.MaxPacketBytes <= 0 {
		return nil, ErrInvalidMaxPacketBytes
	}

	log := logrus.FieldLogger(cfg.Logger)
	if cfg.Logger == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = silent
	}

	scratchSamples := cfg.MaxPacketSamples
	if scratchSamples < 2880 {
		// PLC frames can reach 60ms regardless of the packet cap.
		scratchSamples = 2880
	}

	d := &Decoder{
		cfg:         cfg,
		log:         log,
		celtDecoder: celt.NewDecoder(cfg.Channels),
		silkEngine:  silk.NewSilentEngine(),
		downsample:  48000 / cfg.SampleRate,
		gain:        1,
		parsed:      Packet{Frames: make([][]byte, 0, MaxFramesPerPacket)},
		silkBuf:     make([]float32, 2880*2),
		pcmScratch:  make([]float32, scratchSamples*cfg.Channels),
	}
	d.celtDecoder.SetDownsample(d.downsample)
	if cfg.Gain != 0 {
		d.gain = float32(math.Pow(10, float64(cfg.Gain)/(20.0*256.0)))
	}
	d.resetFrameState()
	return d, nil
}

func (d *Decoder) resetFrameState() {
	d.lastFrameSize = 960
	d.lastMode = ModeHybrid
	d.lossState.Reset()
	d.lossState.SetLastFrameParams(plc.ModeHybrid, 960, d.cfg.Channels)
	d.softclipMem[0] = 0
	d.softclipMem[1] = 0
	d.finalRange = 0
}

// Decode decodes one Opus packet into interleaved float32 PCM.
//
// data is a complete Opus packet, or nil/empty to conceal one lost
// packet. pcm receives samples scaled to [-1, 1]; it must hold
// sampleCount * channels values, where sampleCount covers every frame in
// the packet at the configured sample rate.
//
// The return value is the number of samples decoded per channel.
// Malformed packets are rejected with one of the packet validation
// errors and leave the decoder state untouched; the instance stays
// usable for subsequent packets.
func (d *Decoder) Decode(data []byte, pcm []float32) (int, error) {
	if len(data) == 0 {
		return d.conceal(pcm)
	}
	if len(data) > d.cfg.MaxPacketBytes {
		return 0, ErrPacketTooLarge
	}
	if err := parsePacketInto(data, &d.parsed); err != nil {
		return 0, err
	}

	toc := d.parsed.TOC
	samplesPerFrame := toc.FrameSize / d.downsample
	total := samplesPerFrame * len(d.parsed.Frames)
	if total > d.cfg.MaxPacketSamples {
		return 0, ErrPacketTooLarge
	}
	if len(pcm) < total*d.cfg.Channels {
		return 0, ErrBufferTooSmall
	}

	d.finalRange = 0
	frameValues := samplesPerFrame * d.cfg.Channels
	for i, frame := range d.parsed.Frames {
		dst := pcm[i*frameValues : (i+1)*frameValues]
		d.decodeFrame(frame, toc, dst)
	}

	d.lastFrameSize = toc.FrameSize
	d.lastMode = toc.Mode
	d.lossState.Reset()
	d.lossState.SetLastFrameParams(plcMode(toc.Mode), toc.FrameSize, d.cfg.Channels)
	return total, nil
}

// decodeFrame decodes a single frame into dst. Frame-level trouble never
// escapes: a frame the pipeline cannot decode is concealed in place and
// reported through the logger, so a long stream keeps producing audio.
func (d *Decoder) decodeFrame(frame []byte, toc TOC, dst []float32) {
	if len(frame) == 0 {
		// DTX frame: silence for the nominal duration, no pipeline
		// state is touched.
		clear(dst)
		return
	}

	switch toc.Mode {
	case ModeCELT:
		d.decodeCELTFrame(frame, toc, dst)
	case ModeSILK:
		d.decodeSILKFrame(frame, toc, dst)
	default:
		d.decodeHybridFrame(frame, toc, dst)
	}
}

func (d *Decoder) decodeCELTFrame(frame []byte, toc TOC, dst []float32) {
	d.celtDecoder.SetBandwidth(celt.BandwidthFromOpusConfig(int(toc.Bandwidth)))
	samples, err := d.celtDecoder.DecodeFrameWithPacketStereo(frame, toc.FrameSize, toc.Stereo)
	if err != nil {
		d.concealFrameInto(dst, toc.FrameSize)
		d.log.WithError(err).WithField("frame_bytes", len(frame)).Warn("celt frame failed, concealing")
		return
	}
	d.finalRange = d.celtDecoder.FinalRange()
	d.writeOutput(dst, samples)
}

func (d *Decoder) decodeSILKFrame(frame []byte, toc TOC, dst []float32) {
	d.rd.Init(frame)
	pktCh := 1
	if toc.Stereo {
		pktCh = 2
	}
	buf := d.silkBuf[:toc.FrameSize*pktCh]
	if _, err := d.silkEngine.DecodeFrame(&d.rd, toc.Bandwidth, toc.FrameSize, toc.Stereo, buf); err != nil {
		d.concealFrameInto(dst, toc.FrameSize)
		d.log.WithError(err).WithField("frame_bytes", len(frame)).Warn("silk frame failed, concealing")
		return
	}
	d.finalRange = d.rd.Range()
	d.writeSILKOutput(dst, buf, pktCh)
}

func (d *Decoder) decodeHybridFrame(frame []byte, toc TOC, dst []float32) {
	d.rd.Init(frame)
	pktCh := 1
	if toc.Stereo {
		pktCh = 2
	}
	silkOut := d.silkBuf[:toc.FrameSize*pktCh]
	// The SILK layer always runs wideband under hybrid; the CELT layer
	// carries the spectrum above 8kHz.
	if _, err := d.silkEngine.DecodeFrame(&d.rd, BandwidthWideband, toc.FrameSize, toc.Stereo, silkOut); err != nil {
		d.concealFrameInto(dst, toc.FrameSize)
		d.log.WithError(err).Warn("hybrid silk layer failed, concealing")
		return
	}
	d.celtDecoder.SetBandwidth(celt.BandwidthFromOpusConfig(int(toc.Bandwidth)))
	celtPCM, err := d.celtDecoder.DecodeFrameHybridWithPacketStereo(&d.rd, toc.FrameSize, toc.Stereo)
	if err != nil {
		d.concealFrameInto(dst, toc.FrameSize)
		d.log.WithError(err).Warn("hybrid celt layer failed, concealing")
		return
	}
	d.finalRange = d.celtDecoder.FinalRange()
	d.mixHybridOutput(dst, silkOut, pktCh, celtPCM)
}

// conceal replaces one lost packet with concealment audio of the last
// frame duration.
func (d *Decoder) conceal(pcm []float32) (int, error) {
	frameSize := d.lastFrameSize
	total := frameSize / d.downsample
	if len(pcm) < total*d.cfg.Channels {
		return 0, ErrBufferTooSmall
	}

	d.concealFrameInto(pcm[:total*d.cfg.Channels], frameSize)
	fade := d.lossState.RecordLoss()
	if d.lossState.IsExhausted() {
		d.log.WithFields(logrus.Fields{
			"lost": d.lossState.LostCount(),
			"fade": fade,
		}).Debug("concealment faded out")
	}
	d.finalRange = 0
	return total, nil
}

// concealFrameInto synthesizes concealment audio for one frame directly
// into dst. Frames longer than 20ms run the concealment in 960-sample
// steps so the pitch loop keeps its cadence.
func (d *Decoder) concealFrameInto(dst []float32, frameSize int) {
	ch := d.cfg.Channels
	done := 0
	for remaining := frameSize; remaining > 0; {
		step := remaining
		if step > 960 {
			step = 960
		}
		out := step / d.downsample
		samples, err := d.celtDecoder.DecodeFrame(nil, step)
		if err != nil {
			clear(dst[done*ch:])
			return
		}
		d.writeOutput(dst[done*ch:(done+out)*ch], samples)
		remaining -= step
		done += out
	}
}

// writeOutput copies decoder-channel 48kHz synthesis into dst, applying
// decimation and the configured gain. samples is interleaved when the
// decoder is stereo.
func (d *Decoder) writeOutput(dst []float32, samples []float64) {
	ch := d.cfg.Channels
	step := d.downsample * ch
	n := len(dst) / ch
	for i := 0; i < n; i++ {
		base := i * step
		for c := 0; c < ch; c++ {
			dst[i*ch+c] = float32(samples[base+c]) * d.gain
		}
	}
}

// writeSILKOutput copies the SILK engine's 48kHz output into dst,
// adapting the packet channel count to the decoder's.
func (d *Decoder) writeSILKOutput(dst []float32, src []float32, srcCh int) {
	ch := d.cfg.Channels
	n := len(dst) / ch
	for i := 0; i < n; i++ {
		base := i * d.downsample * srcCh
		l := src[base]
		r := l
		if srcCh == 2 {
			r = src[base+1]
		}
		if ch == 1 {
			dst[i] = (l + r) * 0.5 * d.gain
		} else {
			dst[i*2] = l * d.gain
			dst[i*2+1] = r * d.gain
		}
	}
}

// mixHybridOutput sums the SILK and CELT layers of a hybrid frame into
// dst. celtPCM is already at the decoder's channel count; silkPCM is at
// the packet's.
func (d *Decoder) mixHybridOutput(dst []float32, silkPCM []float32, silkCh int, celtPCM []float64) {
	ch := d.cfg.Channels
	n := len(dst) / ch
	for i := 0; i < n; i++ {
		sb := i * d.downsample * silkCh
		cb := i * d.downsample * ch
		l := silkPCM[sb]
		r := l
		if silkCh == 2 {
			r = silkPCM[sb+1]
		}
		if ch == 1 {
			dst[i] = ((l+r)*0.5 + float32(celtPCM[cb])) * d.gain
		} else {
			dst[i*2] = (l + float32(celtPCM[cb])) * d.gain
			dst[i*2+1] = (r + float32(celtPCM[cb+1])) * d.gain
		}
	}
}

// DecodeInt16 decodes an Opus packet into int16 PCM samples.
//
// data is a complete Opus packet, or nil for concealment. pcm must hold
// sampleCount * channels values. The float output is soft-clipped the
// way libopus does for its int16 API, then converted with
// round-to-even and clamping to [-32768, 32767].
//
// The return value is the number of samples decoded per channel.
func (d *Decoder) DecodeInt16(data []byte, pcm []int16) (int, error) {
	total, err := d.expectedSamples(data)
	if err != nil {
		return 0, err
	}
	needed := total * d.cfg.Channels
	if len(pcm) < needed {
		return 0, ErrBufferTooSmall
	}
	if needed > len(d.pcmScratch) {
		return 0, ErrPacketTooLarge
	}

	n, err := d.Decode(data, d.pcmScratch[:needed])
	if err != nil {
		return 0, err
	}
	values := n * d.cfg.Channels
	opusPCMSoftClip(d.pcmScratch[:values], n, d.cfg.Channels, d.softclipMem[:d.cfg.Channels])
	for i := 0; i < values; i++ {
		pcm[i] = float32ToInt16(d.pcmScratch[i])
	}
	return n, nil
}

// DecodeFloat32 decodes an Opus packet and returns a freshly allocated
// float32 slice. For performance-critical code use Decode with a
// caller-owned buffer.
func (d *Decoder) DecodeFloat32(data []byte) ([]float32, error) {
	total, err := d.expectedSamples(data)
	if err != nil {
		return nil, err
	}
	pcm := make([]float32, total*d.cfg.Channels)
	n, err := d.Decode(data, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n*d.cfg.Channels], nil
}

// DecodeInt16Slice decodes an Opus packet and returns a freshly
// allocated int16 slice. For performance-critical code use DecodeInt16
// with a caller-owned buffer.
func (d *Decoder) DecodeInt16Slice(data []byte) ([]int16, error) {
	total, err := d.expectedSamples(data)
	if err != nil {
		return nil, err
	}
	pcm := make([]int16, total*d.cfg.Channels)
	n, err := d.DecodeInt16(data, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n*d.cfg.Channels], nil
}

// expectedSamples reports the samples per channel a packet will decode
// to at the configured rate, or the concealment length for nil data.
func (d *Decoder) expectedSamples(data []byte) (int, error) {
	if len(data) == 0 {
		return d.lastFrameSize / d.downsample, nil
	}
	if err := parsePacketInto(data, &d.parsed); err != nil {
		return 0, err
	}
	return d.parsed.SampleCount(d.cfg.SampleRate), nil
}

// Reset returns the decoder to its freshly constructed state. Call it
// when seeking or switching streams.
func (d *Decoder) Reset() {
	d.celtDecoder.Reset()
	d.silkEngine.Reset()
	d.resetFrameState()
}

// Channels returns the configured output channel count.
func (d *Decoder) Channels() int {
	return d.cfg.Channels
}

// SampleRate returns the configured output sample rate in Hz.
func (d *Decoder) SampleRate() int {
	return d.cfg.SampleRate
}

// MaxPacketSamples returns the per-channel sample cap a single packet
// may decode to. A pcm buffer of MaxPacketSamples() * Channels()
// values fits any packet the decoder accepts.
func (d *Decoder) MaxPacketSamples() int {
	return d.cfg.MaxPacketSamples
}

// FinalRange returns the entropy coder state after the last decoded
// packet, used for bitstream conformance testing. It is zero after
// concealment and after packets containing only DTX frames.
func (d *Decoder) FinalRange() uint32 {
	return d.finalRange
}

// LostCount returns the number of consecutive packets concealed since
// the last successful decode.
func (d *Decoder) LostCount() int {
	return d.lossState.LostCount()
}

func plcMode(m Mode) plc.Mode {
	switch m {
	case ModeSILK:
		return plc.ModeSILK
	case ModeCELT:
		return plc.ModeCELT
	default:
		return plc.ModeHybrid
	}
}
