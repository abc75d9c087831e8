// Package plc tracks packet loss across frames and provides the shared
// concealment primitives used by the codec layers. When a packet is lost
// the decoder keeps synthesizing audio from its stored state, fading
// toward silence over consecutive losses.
//
// Reference: RFC 6716 Section 4.4
package plc

// Mode indicates which codec layer produced the last good frame, and
// therefore which concealment strategy applies.
type Mode int

const (
	// ModeSILK conceals with LPC extrapolation, suited to speech.
	ModeSILK Mode = iota

	// ModeCELT conceals with pitch repetition or shaped noise, suited to
	// music and general audio.
	ModeCELT

	// ModeHybrid coordinates both layers for hybrid frames.
	ModeHybrid
)

// MaxConcealedFrames is how many consecutive frames are concealed before
// the output is considered silent. Five 20ms frames is roughly 100ms.
const MaxConcealedFrames = 5

// FadePerFrame is the gain multiplier applied per lost frame, about
// -6dB each.
const FadePerFrame = 0.5

// State tracks consecutive losses and the parameters of the last good
// frame. The zero value is usable after a call to Reset.
type State struct {
	lostCount     int
	mode          Mode
	fadeFactor    float64
	lastFrameSize int
	lastChannels  int
}

// NewState returns a fresh loss-tracking state at full gain.
func NewState() *State {
	return &State{
		fadeFactor:    1.0,
		lastFrameSize: 960,
		lastChannels:  1,
	}
}

// Reset clears the loss bookkeeping after a good packet. The last-frame
// parameters are kept so a later loss still knows what to conceal.
func (s *State) Reset() {
	s.lostCount = 0
	s.fadeFactor = 1.0
}

// RecordLoss registers one lost frame and returns the gain to apply to
// whatever concealment audio is produced for it.
func (s *State) RecordLoss() float64 {
	s.lostCount++
	s.fadeFactor *= FadePerFrame
	if s.fadeFactor < 0.001 {
		s.fadeFactor = 0
	}
	return s.fadeFactor
}

// LostCount returns the number of consecutive lost frames.
func (s *State) LostCount() int {
	return s.lostCount
}

// FadeFactor returns the current concealment gain, 1.0 when no loss has
// been recorded and 0 once the fade has run out.
func (s *State) FadeFactor() float64 {
	return s.fadeFactor
}

// Mode returns the concealment mode recorded from the last good frame.
func (s *State) Mode() Mode {
	return s.mode
}

// SetLastFrameParams records the mode, frame size and channel count of a
// successfully decoded frame so concealment can match them.
func (s *State) SetLastFrameParams(mode Mode, frameSize, channels int) {
	s.mode = mode
	s.lastFrameSize = frameSize
	s.lastChannels = channels
}

// LastFrameSize returns the frame size of the last good frame. Before any
// frame has decoded it reports 960, the 20ms default.
func (s *State) LastFrameSize() int {
	if s.lastFrameSize <= 0 {
		return 960
	}
	return s.lastFrameSize
}

// LastChannels returns the channel count of the last good frame.
func (s *State) LastChannels() int {
	if s.lastChannels <= 0 {
		return 1
	}
	return s.lastChannels
}

// IsExhausted reports whether concealment has faded out completely.
func (s *State) IsExhausted() bool {
	return s.lostCount >= MaxConcealedFrames || s.fadeFactor <= 0.001
}

// Band energy decay for noise concealment, in log2 units per lost frame.
// The first loss drops harder than the following ones, and the envelope
// never decays below the silence floor.
const (
	EnergyDecayFirst = 1.5
	EnergyDecayNext  = 0.5
	EnergyFloor      = -28.0
)

// DecayEnergies lowers a log2 band envelope for one lost frame.
func DecayEnergies(energies []float64, lossCount int) {
	decay := EnergyDecayNext
	if lossCount <= 1 {
		decay = EnergyDecayFirst
	}
	for i, e := range energies {
		e -= decay
		if e < EnergyFloor {
			e = EnergyFloor
		}
		energies[i] = e
	}
}

// NoiseFill fills dst with uniform noise in (-1, 1) drawn from the CELT
// LCG, advancing the caller's seed so successive fills stay decorrelated.
func NoiseFill(dst []float64, rng *uint32) {
	r := *rng
	for i := range dst {
		r = r*1664525 + 1013904223
		dst[i] = float64(int32(r)) * (1.0 / 2147483648.0)
	}
	*rng = r
}
