// errors.go defines public error types for the opusdec package.

package opusdec

import "errors"

// Configuration and buffer errors.
var (
	// ErrInvalidSampleRate indicates an unsupported sample rate.
	// Valid sample rates are: 8000, 12000, 16000, 24000, 48000.
	ErrInvalidSampleRate = errors.New("opusdec: invalid sample rate (must be 8000, 12000, 16000, 24000, or 48000)")

	// ErrInvalidChannels indicates an unsupported channel count.
	// Valid channel counts are 1 (mono) or 2 (stereo).
	ErrInvalidChannels = errors.New("opusdec: invalid channels (must be 1 or 2)")

	// ErrInvalidMaxPacketSamples indicates an invalid max packet sample cap.
	ErrInvalidMaxPacketSamples = errors.New("opusdec: invalid max packet samples (must be > 0)")

	// ErrInvalidMaxPacketBytes indicates an invalid max packet size cap.
	ErrInvalidMaxPacketBytes = errors.New("opusdec: invalid max packet bytes (must be > 0)")

	// ErrPacketTooLarge indicates the packet exceeds the configured
	// MaxPacketBytes or MaxPacketSamples limit. The packet may still be a
	// well-formed Opus packet; raise the caps to accept it.
	ErrPacketTooLarge = errors.New("opusdec: packet exceeds configured limits")

	// ErrBufferTooSmall indicates the output buffer is too small for the
	// decoded packet. The buffer must hold sampleCount * channels values.
	ErrBufferTooSmall = errors.New("opusdec: output buffer too small")
)

// Packet validation errors. Each corresponds to one of the R1-R7 rules in
// RFC 6716 section 3.4; a packet violating any of them MUST be treated as
// malformed and is rejected before any frame is decoded.
var (
	// ErrPacketTooShort indicates the packet is empty or ends before a
	// required header byte (TOC, frame count, padding count, or frame
	// length). Rules R1, R4 and R7.
	ErrPacketTooShort = errors.New("opusdec: packet too short")

	// ErrFrameTooLarge indicates a frame length exceeds MaxFrameBytes
	// (1275 bytes). Rule R2.
	ErrFrameTooLarge = errors.New("opusdec: frame exceeds 1275 bytes")

	// ErrUnevenFrameSplit indicates a code 1 packet whose payload cannot
	// split into two equal frames. Rule R3.
	ErrUnevenFrameSplit = errors.New("opusdec: code 1 payload does not split evenly")

	// ErrFrameLengthMismatch indicates an explicitly coded frame length
	// that overruns the bytes remaining in the packet. Rules R4 and R7.
	ErrFrameLengthMismatch = errors.New("opusdec: frame length exceeds packet bounds")

	// ErrInvalidFrameCount indicates a code 3 packet with a frame count
	// outside 1..48. Rule R5.
	ErrInvalidFrameCount = errors.New("opusdec: invalid frame count (must be 1-48)")

	// ErrDurationTooLong indicates a code 3 packet carrying more than
	// 120 ms of audio. Rule R5.
	ErrDurationTooLong = errors.New("opusdec: packet exceeds 120 ms of audio")

	// ErrUnevenCBRPayload indicates a CBR code 3 packet whose payload is
	// not an integer multiple of the frame count. Rule R6.
	ErrUnevenCBRPayload = errors.New("opusdec: CBR payload does not divide evenly")
)

// validSampleRate returns true if the sample rate is valid for Opus.
func validSampleRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	default:
		return false
	}
}
