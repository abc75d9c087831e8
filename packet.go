// packet.go implements TOC byte parsing and packet frame extraction per RFC 6716 Section 3.

package opusdec

import (
	"time"

	"github.com/thesyncim/opusdec/types"
)

// Mode is an alias for types.Mode representing the Opus coding mode.
type Mode = types.Mode

// Bandwidth is an alias for types.Bandwidth representing the audio bandwidth.
type Bandwidth = types.Bandwidth

// Re-export mode constants for convenience.
const (
	ModeSILK   = types.ModeSILK   // SILK-only mode (configs 0-11)
	ModeHybrid = types.ModeHybrid // Hybrid SILK+CELT (configs 12-15)
	ModeCELT   = types.ModeCELT   // CELT-only mode (configs 16-31)
)

// Re-export bandwidth constants for convenience.
const (
	BandwidthNarrowband    = types.BandwidthNarrowband    // 4kHz audio, 8kHz sample rate
	BandwidthMediumband    = types.BandwidthMediumband    // 6kHz audio, 12kHz sample rate
	BandwidthWideband      = types.BandwidthWideband      // 8kHz audio, 16kHz sample rate
	BandwidthSuperwideband = types.BandwidthSuperwideband // 12kHz audio, 24kHz sample rate
	BandwidthFullband      = types.BandwidthFullband      // 20kHz audio, 48kHz sample rate
)

// Packet layout limits from RFC 6716 Section 3.
const (
	// MaxFrameBytes is the largest permitted length of a single coded
	// frame (rule R2).
	MaxFrameBytes = 1275

	// MaxFramesPerPacket is the largest frame count a code 3 packet may
	// carry (rule R5).
	MaxFramesPerPacket = 48

	// maxPacketSamples48k caps the audio carried by one packet at 120 ms
	// (rule R5), expressed in samples at 48 kHz.
	maxPacketSamples48k = 5760
)

// TOC represents the parsed Table of Contents byte from an Opus packet.
type TOC struct {
	Config    uint8     // Configuration 0-31
	Mode      Mode      // Derived from config
	Bandwidth Bandwidth // Derived from config
	FrameSize int       // Frame size in samples at 48kHz
	Stereo    bool      // True if stereo
	FrameCode uint8     // Code 0-3
}

// FrameDuration returns the nominal duration of one frame.
func (t TOC) FrameDuration() time.Duration {
	return time.Duration(t.FrameSize) * time.Second / 48000
}

// SamplesPerFrame returns the frame size in samples per channel at the
// given sample rate. The TOC frame size is defined at 48 kHz; other Opus
// rates divide it evenly.
func (t TOC) SamplesPerFrame(sampleRate int) int {
	return t.FrameSize * sampleRate / 48000
}

// configEntry holds the mode, bandwidth, and frame size for a configuration.
type configEntry struct {
	Mode      Mode
	Bandwidth Bandwidth
	FrameSize int // In samples at 48kHz
}

// configTable maps configuration indices 0-31 to their properties.
// Based on RFC 6716 Section 3.1 Table.
var configTable = [32]configEntry{
	// SILK-only NB: configs 0-3 (10/20/40/60ms)
	{ModeSILK, BandwidthNarrowband, 480},  // 0: 10ms
	{ModeSILK, BandwidthNarrowband, 960},  // 1: 20ms
	{ModeSILK, BandwidthNarrowband, 1920}, // 2: 40ms
	{ModeSILK, BandwidthNarrowband, 2880}, // 3: 60ms
	// SILK-only MB: configs 4-7
	{ModeSILK, BandwidthMediumband, 480},  // 4
	{ModeSILK, BandwidthMediumband, 960},  // 5
	{ModeSILK, BandwidthMediumband, 1920}, // 6
	{ModeSILK, BandwidthMediumband, 2880}, // 7
	// SILK-only WB: configs 8-11
	{ModeSILK, BandwidthWideband, 480},  // 8
	{ModeSILK, BandwidthWideband, 960},  // 9
	{ModeSILK, BandwidthWideband, 1920}, // 10
	{ModeSILK, BandwidthWideband, 2880}, // 11
	// Hybrid SWB: configs 12-13
	{ModeHybrid, BandwidthSuperwideband, 480}, // 12: 10ms
	{ModeHybrid, BandwidthSuperwideband, 960}, // 13: 20ms
	// Hybrid FB: configs 14-15
	{ModeHybrid, BandwidthFullband, 480}, // 14
	{ModeHybrid, BandwidthFullband, 960}, // 15
	// CELT NB: configs 16-19 (2.5/5/10/20ms)
	{ModeCELT, BandwidthNarrowband, 120}, // 16: 2.5ms
	{ModeCELT, BandwidthNarrowband, 240}, // 17: 5ms
	{ModeCELT, BandwidthNarrowband, 480}, // 18: 10ms
	{ModeCELT, BandwidthNarrowband, 960}, // 19: 20ms
	// CELT WB: configs 20-23
	{ModeCELT, BandwidthWideband, 120}, // 20
	{ModeCELT, BandwidthWideband, 240}, // 21
	{ModeCELT, BandwidthWideband, 480}, // 22
	{ModeCELT, BandwidthWideband, 960}, // 23
	// CELT SWB: configs 24-27
	{ModeCELT, BandwidthSuperwideband, 120}, // 24
	{ModeCELT, BandwidthSuperwideband, 240}, // 25
	{ModeCELT, BandwidthSuperwideband, 480}, // 26
	{ModeCELT, BandwidthSuperwideband, 960}, // 27
	// CELT FB: configs 28-31
	{ModeCELT, BandwidthFullband, 120}, // 28
	{ModeCELT, BandwidthFullband, 240}, // 29
	{ModeCELT, BandwidthFullband, 480}, // 30
	{ModeCELT, BandwidthFullband, 960}, // 31
}

// GenerateTOC creates a TOC byte from coding parameters.
// config: Configuration index 0-31 (from configTable)
// stereo: True for stereo, false for mono
// frameCode: Frame count code 0-3
//
//	0: 1 frame
//	1: 2 equal-sized frames
//	2: 2 different-sized frames
//	3: arbitrary number of frames
func GenerateTOC(config uint8, stereo bool, frameCode uint8) byte {
	toc := (config & 0x1F) << 3
	if stereo {
		toc |= 0x04
	}
	toc |= frameCode & 0x03
	return toc
}

// ConfigFromParams returns the config index for given mode, bandwidth, and frame size.
// Returns -1 if the combination is invalid.
func ConfigFromParams(mode Mode, bandwidth Bandwidth, frameSize int) int {
	for i, entry := range configTable {
		if entry.Mode == mode && entry.Bandwidth == bandwidth && entry.FrameSize == frameSize {
			return i
		}
	}
	return -1
}

// ValidConfig returns true if the configuration index is valid.
func ValidConfig(config uint8) bool {
	return config < 32
}

// ParseTOC parses a TOC byte and returns the decoded fields.
func ParseTOC(b byte) TOC {
	config := b >> 3          // Top 5 bits
	stereo := (b & 0x04) != 0 // Bit 2
	frameCode := b & 0x03     // Bottom 2 bits

	entry := configTable[config]

	return TOC{
		Config:    config,
		Mode:      entry.Mode,
		Bandwidth: entry.Bandwidth,
		FrameSize: entry.FrameSize,
		Stereo:    stereo,
		FrameCode: frameCode,
	}
}

// Packet is a parsed Opus packet. Frames holds one byte slice per coded
// frame, aliasing the buffer passed to ParsePacket; no data is copied.
// A zero-length frame signals DTX (discontinuous transmission) and decodes
// to silence.
type Packet struct {
	TOC       TOC      // Parsed TOC byte
	Frames    [][]byte // Per-frame payload views, in transmission order
	Padding   int      // Padding bytes at the end of the packet (code 3 only)
	TotalSize int      // Total packet size including the TOC byte
}

// FrameCount returns the number of frames in the packet.
func (p *Packet) FrameCount() int {
	return len(p.Frames)
}

// SampleCount returns the total decoded samples per channel at the given
// sample rate.
func (p *Packet) SampleCount(sampleRate int) int {
	return len(p.Frames) * p.TOC.SamplesPerFrame(sampleRate)
}

// Duration returns the nominal audio duration of the packet.
func (p *Packet) Duration() time.Duration {
	return time.Duration(len(p.Frames)) * p.TOC.FrameDuration()
}

// ParsePacket splits an Opus packet into frames based on the TOC byte's
// frame code (0-3) and validates it against rules R1-R7 of RFC 6716
// Section 3.4. Malformed packets are rejected with one of the packet
// validation errors and no frames are returned.
func ParsePacket(data []byte) (*Packet, error) {
	p := &Packet{Frames: make([][]byte, 0, MaxFramesPerPacket)}
	if err := parsePacketInto(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// parsePacketInto is the allocation-free core of ParsePacket. It reuses
// p.Frames' backing array, so p must either be fresh or own a slice with
// capacity MaxFramesPerPacket.
func parsePacketInto(data []byte, p *Packet) error {
	if len(data) < 1 {
		return ErrPacketTooShort // R1
	}

	toc := ParseTOC(data[0])
	p.TOC = toc
	p.TotalSize = len(data)
	p.Padding = 0
	p.Frames = p.Frames[:0]

	switch toc.FrameCode {
	case 0:
		// Code 0: one frame filling the rest of the packet.
		if len(data)-1 > MaxFrameBytes {
			return ErrFrameTooLarge // R2
		}
		p.Frames = append(p.Frames, data[1:])

	case 1:
		// Code 1: two equal-sized frames.
		payload := len(data) - 1
		if payload%2 != 0 {
			return ErrUnevenFrameSplit // R3
		}
		half := payload / 2
		if half > MaxFrameBytes {
			return ErrFrameTooLarge // R2
		}
		p.Frames = append(p.Frames, data[1:1+half], data[1+half:])

	case 2:
		// Code 2: two frames, the first with an explicit length.
		if len(data) < 2 {
			return ErrPacketTooShort // R4
		}
		n1, lenBytes, err := parseFrameLength(data, 1)
		if err != nil {
			return err
		}
		offset := 1 + lenBytes
		n2 := len(data) - offset - n1
		if n2 < 0 {
			return ErrFrameLengthMismatch // R4
		}
		if n2 > MaxFrameBytes {
			return ErrFrameTooLarge // R2
		}
		p.Frames = append(p.Frames, data[offset:offset+n1], data[offset+n1:])

	case 3:
		// Code 3: arbitrary number of frames with count byte, optional
		// padding, and CBR/VBR layout.
		if len(data) < 2 {
			return ErrPacketTooShort
		}
		countByte := data[1]
		vbr := (countByte & 0x80) != 0
		hasPadding := (countByte & 0x40) != 0
		m := int(countByte & 0x3F)

		if m < 1 || m > MaxFramesPerPacket {
			return ErrInvalidFrameCount // R5
		}
		if m*toc.FrameSize > maxPacketSamples48k {
			return ErrDurationTooLong // R5
		}

		offset := 2
		if hasPadding {
			// Each 255 byte contributes 254 bytes of padding and
			// extends the count; the final byte contributes itself.
			for {
				if offset >= len(data) {
					return ErrPacketTooShort
				}
				padByte := int(data[offset])
				offset++
				if padByte < 255 {
					p.Padding += padByte
					break
				}
				p.Padding += 254
			}
		}

		if vbr {
			// VBR: explicit lengths for the first m-1 frames, the
			// last frame takes whatever precedes the padding.
			var lens [MaxFramesPerPacket]int
			total := 0
			for i := 0; i < m-1; i++ {
				n, lenBytes, err := parseFrameLength(data, offset)
				if err != nil {
					return err // R7
				}
				lens[i] = n
				total += n
				offset += lenBytes
			}
			last := len(data) - offset - p.Padding - total
			if last < 0 {
				return ErrFrameLengthMismatch // R7
			}
			if last > MaxFrameBytes {
				return ErrFrameTooLarge // R2
			}
			start := offset
			for i := 0; i < m-1; i++ {
				p.Frames = append(p.Frames, data[start:start+lens[i]])
				start += lens[i]
			}
			p.Frames = append(p.Frames, data[start:start+last])
		} else {
			// CBR: the payload after padding removal splits evenly.
			payload := len(data) - offset - p.Padding
			if payload < 0 {
				return ErrPacketTooShort // R6
			}
			if payload%m != 0 {
				return ErrUnevenCBRPayload // R6
			}
			frameLen := payload / m
			if frameLen > MaxFrameBytes {
				return ErrFrameTooLarge // R2
			}
			for i := 0; i < m; i++ {
				start := offset + i*frameLen
				p.Frames = append(p.Frames, data[start:start+frameLen])
			}
		}
	}

	return nil
}

// parseFrameLength parses a frame length at the given offset.
// Per RFC 6716 Section 3.2.1: a first byte of 0 means a DTX frame,
// 1-251 is the length itself, and 252-255 starts a two-byte encoding
// length = 4*secondByte + firstByte, for lengths up to 1275.
// Returns the length, the number of bytes read, and any error.
func parseFrameLength(data []byte, offset int) (int, int, error) {
	if offset >= len(data) {
		return 0, 0, ErrPacketTooShort
	}

	firstByte := int(data[offset])
	if firstByte < 252 {
		return firstByte, 1, nil
	}

	if offset+1 >= len(data) {
		return 0, 0, ErrPacketTooShort
	}
	secondByte := int(data[offset+1])
	return 4*secondByte + firstByte, 2, nil
}
