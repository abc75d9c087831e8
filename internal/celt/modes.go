package celt

// ModeConfig contains frame-size-dependent configuration for CELT decoding.
type ModeConfig struct {
	FrameSize   int // Samples at 48kHz: 120, 240, 480, 960
	ShortBlocks int // Number of short MDCTs if transient: 1, 2, 4, 8
	LM          int // Log mode index: 0, 1, 2, 3
	EffBands    int // Effective number of bands for this frame size
	MDCTSize    int // MDCT window size for long blocks
}

// GetModeConfig returns the mode configuration for the given frame size.
// Invalid sizes fall back to the 20ms configuration.
func GetModeConfig(frameSize int) ModeConfig {
	switch frameSize {
	case 120:
		return ModeConfig{FrameSize: 120, ShortBlocks: 1, LM: 0, EffBands: MaxBands, MDCTSize: 120}
	case 240:
		return ModeConfig{FrameSize: 240, ShortBlocks: 2, LM: 1, EffBands: MaxBands, MDCTSize: 240}
	case 480:
		return ModeConfig{FrameSize: 480, ShortBlocks: 4, LM: 2, EffBands: MaxBands, MDCTSize: 480}
	case 960:
		return ModeConfig{FrameSize: 960, ShortBlocks: 8, LM: 3, EffBands: MaxBands, MDCTSize: 960}
	default:
		return ModeConfig{FrameSize: 960, ShortBlocks: 8, LM: 3, EffBands: MaxBands, MDCTSize: 960}
	}
}

// ValidFrameSize reports whether the frame size is valid for CELT.
func ValidFrameSize(frameSize int) bool {
	switch frameSize {
	case 120, 240, 480, 960:
		return true
	default:
		return false
	}
}

// LMToFrameSize converts a log mode index to the frame size in samples.
func LMToFrameSize(lm int) int {
	switch lm {
	case 0:
		return 120
	case 1:
		return 240
	case 2:
		return 480
	case 3:
		return 960
	default:
		return 960
	}
}

// FrameSizeToLM converts a frame size to its log mode index.
// Returns -1 for invalid sizes.
func FrameSizeToLM(frameSize int) int {
	switch frameSize {
	case 120:
		return 0
	case 240:
		return 1
	case 480:
		return 2
	case 960:
		return 3
	default:
		return -1
	}
}

// CELTBandwidth represents the audio bandwidth for CELT coding.
type CELTBandwidth int

const (
	// CELTNarrowband represents 4kHz audio bandwidth.
	CELTNarrowband CELTBandwidth = iota
	// CELTMediumband represents 6kHz audio bandwidth.
	CELTMediumband
	// CELTWideband represents 8kHz audio bandwidth.
	CELTWideband
	// CELTSuperwideband represents 12kHz audio bandwidth.
	CELTSuperwideband
	// CELTFullband represents 20kHz audio bandwidth.
	CELTFullband
)

// String returns the string representation of the bandwidth.
func (bw CELTBandwidth) String() string {
	switch bw {
	case CELTNarrowband:
		return "narrowband"
	case CELTMediumband:
		return "mediumband"
	case CELTWideband:
		return "wideband"
	case CELTSuperwideband:
		return "super-wideband"
	case CELTFullband:
		return "fullband"
	default:
		return "unknown"
	}
}

// EffectiveBands returns the number of coded bands for the bandwidth.
func (bw CELTBandwidth) EffectiveBands() int {
	switch bw {
	case CELTNarrowband:
		return 13
	case CELTMediumband:
		return 15
	case CELTWideband:
		return 17
	case CELTSuperwideband:
		return 19
	case CELTFullband:
		return 21
	default:
		return MaxBands
	}
}

// EffectiveBandsForFrameSize returns the coded band count considering both
// the bandwidth limit and the frame size limit.
func EffectiveBandsForFrameSize(bw CELTBandwidth, frameSize int) int {
	bwBands := bw.EffectiveBands()
	modeCfg := GetModeConfig(frameSize)
	if bwBands < modeCfg.EffBands {
		return bwBands
	}
	return modeCfg.EffBands
}

// BandwidthFromOpusConfig maps an Opus TOC bandwidth field to a CELT
// bandwidth. TOC values: 0=NB, 1=MB, 2=WB, 3=SWB, 4=FB.
func BandwidthFromOpusConfig(opusBandwidth int) CELTBandwidth {
	switch opusBandwidth {
	case 0:
		return CELTNarrowband
	case 1:
		// libopus codes Opus mediumband with the wideband end band.
		return CELTWideband
	case 2:
		return CELTWideband
	case 3:
		return CELTSuperwideband
	case 4:
		return CELTFullband
	default:
		return CELTFullband
	}
}
