package codecs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/opusdec"
)

var opusDescriptor = Descriptor{
	// Dynamic payload type conventionally bound to Opus in SDP
	// (a=rtpmap:111 opus/48000/2).
	ID:       111,
	Name:     "opus",
	LongName: "Opus (RFC 6716)",
}

// opusCodec adapts the native Opus decoder to the registry contract.
type opusCodec struct {
	dec *opusdec.Decoder
	log logrus.FieldLogger
}

func newOpusCodec(p Parameters) (Decoder, error) {
	cfg := opusdec.DefaultDecoderConfig(p.SampleRate, p.Channels)
	cfg.Logger = p.Logger
	dec, err := opusdec.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("codecs: opus: %w", err)
	}
	return &opusCodec{dec: dec, log: fieldLogger(p.Logger)}, nil
}

func (c *opusCodec) Descriptor() Descriptor { return opusDescriptor }

// Decode decodes one Opus packet. A nil packet signals packet loss and
// produces concealment output sized like the last decoded frame.
func (c *opusCodec) Decode(packet []byte, pcm []float32) (int, error) {
	n, err := c.dec.Decode(packet, pcm)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"codec": opusDescriptor.Name,
			"bytes": len(packet),
		}).WithError(err).Debug("decode failed")
		return 0, err
	}
	return n, nil
}

func (c *opusCodec) Reset() { c.dec.Reset() }
