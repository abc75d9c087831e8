// Package silk defines the frame-level boundary between the Opus frame
// orchestrator and a SILK layer implementation. The orchestrator hands the
// shared range decoder, the coded bandwidth, the frame duration and the
// channel count to an Engine and receives 48kHz PCM back, so the packet
// state machine stays unchanged when an engine is swapped.
package silk

import (
	"errors"

	"github.com/thesyncim/opusdec/internal/rangecoding"
	"github.com/thesyncim/opusdec/types"
)

// Errors for the SILK frame boundary
var (
	ErrInvalidBandwidth = errors.New("silk: invalid bandwidth for SILK mode")
	ErrInvalidFrameSize = errors.New("silk: invalid frame size")
	ErrShortOutput      = errors.New("silk: output buffer too small")
)

// Engine decodes the SILK portion of Opus frames.
//
// DecodeFrame reads the SILK layer from rd, which is positioned at the start
// of the SILK bits (immediately after the TOC and framing for SILK-only
// packets, at the start of the frame for hybrid packets), and writes 48kHz
// PCM into out. For stereo frames out is interleaved [L0, R0, L1, R1, ...].
// The return value is the number of samples written per channel. The engine
// owns every SILK-layer bit, including the header VAD and LBRR flags, so
// after a successful call rd is positioned at the first CELT bit for hybrid
// frames.
type Engine interface {
	DecodeFrame(rd *rangecoding.Decoder, bandwidth types.Bandwidth, frameSizeSamples int, stereo bool, out []float32) (int, error)
	Reset()
}

// SilentEngine is the bundled placeholder engine. It consumes nothing from
// the range decoder and yields silence of the requested duration.
type SilentEngine struct{}

// NewSilentEngine returns a SilentEngine ready for use.
func NewSilentEngine() *SilentEngine {
	return &SilentEngine{}
}

// DecodeFrame writes frameSizeSamples of silence per channel into out and
// leaves rd untouched.
func (e *SilentEngine) DecodeFrame(rd *rangecoding.Decoder, bandwidth types.Bandwidth, frameSizeSamples int, stereo bool, out []float32) (int, error) {
	if bandwidth > types.BandwidthWideband {
		return 0, ErrInvalidBandwidth
	}
	switch frameSizeSamples {
	case 480, 960, 1920, 2880:
	default:
		return 0, ErrInvalidFrameSize
	}
	total := frameSizeSamples
	if stereo {
		total *= 2
	}
	if len(out) < total {
		return 0, ErrShortOutput
	}
	clear(out[:total])
	return frameSizeSamples, nil
}

// Reset is a no-op; the engine carries no state.
func (e *SilentEngine) Reset() {}
