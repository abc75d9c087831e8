package codecs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/opusdec"
)

// G.711 companded telephony audio. Both laws run at 8 kHz mono with
// one encoded byte per sample.

var (
	pcmuDescriptor = Descriptor{ID: 0, Name: "pcmu", LongName: "G.711 mu-law"}
	pcmaDescriptor = Descriptor{ID: 8, Name: "pcma", LongName: "G.711 A-law"}
)

const g711SampleRate = 8000

// muLawBias is the offset folded into every mu-law segment.
const muLawBias = 0x84

type g711Codec struct {
	desc   Descriptor
	expand func(byte) int16
	log    logrus.FieldLogger
}

func newPCMUCodec(p Parameters) (Decoder, error) {
	return newG711Codec(pcmuDescriptor, muLawToLinear, p)
}

func newPCMACodec(p Parameters) (Decoder, error) {
	return newG711Codec(pcmaDescriptor, aLawToLinear, p)
}

func newG711Codec(desc Descriptor, expand func(byte) int16, p Parameters) (Decoder, error) {
	if p.SampleRate != g711SampleRate {
		return nil, fmt.Errorf("%w: %s requires %d Hz, got %d",
			ErrInvalidParameters, desc.Name, g711SampleRate, p.SampleRate)
	}
	if p.Channels != 1 {
		return nil, fmt.Errorf("%w: %s is mono only, got %d channels",
			ErrInvalidParameters, desc.Name, p.Channels)
	}
	return &g711Codec{desc: desc, expand: expand, log: fieldLogger(p.Logger)}, nil
}

func (c *g711Codec) Descriptor() Descriptor { return c.desc }

// Decode expands one companded byte per sample into pcm, normalized to
// [-1, 1).
func (c *g711Codec) Decode(packet []byte, pcm []float32) (int, error) {
	if len(packet) > len(pcm) {
		c.log.WithFields(logrus.Fields{
			"codec": c.desc.Name,
			"bytes": len(packet),
			"pcm":   len(pcm),
		}).Debug("decode failed: output buffer too small")
		return 0, fmt.Errorf("codecs: %s: %w", c.desc.Name, opusdec.ErrBufferTooSmall)
	}
	for i, b := range packet {
		pcm[i] = float32(c.expand(b)) / 32768
	}
	return len(packet), nil
}

// Reset is a no-op: G.711 decoding is stateless.
func (c *g711Codec) Reset() {}

// muLawToLinear expands one mu-law byte to 16-bit linear PCM.
func muLawToLinear(mu byte) int16 {
	mu = ^mu
	exponent := (mu >> 4) & 0x07
	mantissa := int16(mu & 0x0F)
	value := ((muLawBias + mantissa<<3) << exponent) - muLawBias
	if mu&0x80 != 0 {
		return -value
	}
	return value
}

// aLawToLinear expands one A-law byte to 16-bit linear PCM.
func aLawToLinear(a byte) int16 {
	a ^= 0x55
	value := int16(a&0x0F) << 4
	switch segment := (a >> 4) & 0x07; segment {
	case 0:
		value += 8
	case 1:
		value += 0x108
	default:
		value += 0x108
		value <<= segment - 1
	}
	if a&0x80 != 0 {
		return value
	}
	return -value
}
