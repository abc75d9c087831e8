// stream.go implements a streaming io.Reader wrapper for Opus decoding.

package opusdec

import (
	"encoding/binary"
	"io"
	"math"
)

// Streaming API
//
// The Reader type provides an io.Reader interface over a sequence of Opus
// packets. It handles frame boundaries internally, allowing integration
// with Go's standard io patterns.
//
//	source := &MyPacketSource{} // implements PacketSource
//	reader, err := opusdec.NewReader(opusdec.DefaultDecoderConfig(48000, 2), source, opusdec.FormatFloat32LE)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := make([]byte, 4096)
//	for {
//	    n, err := reader.Read(buf)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    processAudio(buf[:n])
//	}
//
// # Sample Format
//
// The Reader supports two sample formats:
//   - FormatFloat32LE: 32-bit float, little-endian (4 bytes per sample)
//   - FormatInt16LE: 16-bit signed integer, little-endian (2 bytes per sample)
//
// Samples are interleaved for stereo: [L0, R0, L1, R1, ...]

// SampleFormat specifies the PCM sample format for streaming.
type SampleFormat int

const (
	// FormatFloat32LE is 32-bit float, little-endian (4 bytes per sample).
	FormatFloat32LE SampleFormat = iota
	// FormatInt16LE is 16-bit signed integer, little-endian (2 bytes per sample).
	FormatInt16LE
)

// BytesPerSample returns the number of bytes per sample for the format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatFloat32LE:
		return 4
	case FormatInt16LE:
		return 2
	default:
		return 4
	}
}

// PacketSource provides Opus packets for streaming decode.
// Implementations should return io.EOF when no more packets are available.
type PacketSource interface {
	// NextPacket returns the next Opus packet.
	// Returns io.EOF when the stream ends.
	// Returns a nil packet to signal a lost packet; the Reader conceals it.
	NextPacket() ([]byte, error)
}

// Reader decodes an Opus packet stream, implementing io.Reader.
// Output is PCM samples in the configured format.
//
// The Reader handles frame boundaries internally, buffering decoded
// PCM samples and serving byte-oriented reads.
//
// Example:
//
//	reader, err := opusdec.NewReader(opusdec.DefaultDecoderConfig(48000, 2), source, opusdec.FormatFloat32LE)
//	io.Copy(audioOutput, reader)
type Reader struct {
	dec    *Decoder
	source PacketSource
	format SampleFormat // Output sample format

	pcmBuf  []float32 // Decoded float samples, one packet's worth
	i16Buf  []int16   // Decoded int16 samples for FormatInt16LE
	byteBuf []byte    // PCM as bytes, reused across packets
	offset  int       // Current read position in byteBuf

	eof bool // Source exhausted
}

// NewReader creates a streaming decoder from cfg.
//
// source provides the Opus packets; format selects the output sample
// format. Construction fails when cfg is invalid.
func NewReader(cfg DecoderConfig, source PacketSource, format SampleFormat) (*Reader, error) {
	dec, err := NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	maxValues := cfg.MaxPacketSamples * cfg.Channels
	return &Reader{
		dec:     dec,
		source:  source,
		format:  format,
		pcmBuf:  make([]float32, maxValues),
		i16Buf:  make([]int16, maxValues),
		byteBuf: make([]byte, 0, maxValues*format.BytesPerSample()),
	}, nil
}

// Read implements io.Reader, reading decoded PCM bytes.
//
// The Reader fetches and decodes packets as needed to fill the buffer. A
// nil packet from the source is concealed; decode errors from malformed
// packets are returned as-is.
func (r *Reader) Read(p []byte) (int, error) {
	if r.offset >= len(r.byteBuf) {
		if r.eof {
			return 0, io.EOF
		}

		packet, err := r.source.NextPacket()
		if err == io.EOF {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}

		if err := r.decodePacket(packet); err != nil {
			return 0, err
		}
		r.offset = 0
	}

	n := copy(p, r.byteBuf[r.offset:])
	r.offset += n
	return n, nil
}

// decodePacket decodes one packet (or concealment for nil) into byteBuf.
func (r *Reader) decodePacket(packet []byte) error {
	switch r.format {
	case FormatInt16LE:
		n, err := r.dec.DecodeInt16(packet, r.i16Buf)
		if err != nil {
			return err
		}
		values := n * r.dec.Channels()
		r.byteBuf = r.byteBuf[:values*2]
		for i := 0; i < values; i++ {
			binary.LittleEndian.PutUint16(r.byteBuf[i*2:], uint16(r.i16Buf[i]))
		}
	default:
		n, err := r.dec.Decode(packet, r.pcmBuf)
		if err != nil {
			return err
		}
		values := n * r.dec.Channels()
		r.byteBuf = r.byteBuf[:values*4]
		for i := 0; i < values; i++ {
			binary.LittleEndian.PutUint32(r.byteBuf[i*4:], math.Float32bits(r.pcmBuf[i]))
		}
	}
	return nil
}

// SampleRate returns the output sample rate in Hz.
func (r *Reader) SampleRate() int {
	return r.dec.SampleRate()
}

// Channels returns the number of audio channels (1 or 2).
func (r *Reader) Channels() int {
	return r.dec.Channels()
}

// FinalRange returns the entropy coder state after the last decoded
// packet, for conformance testing.
func (r *Reader) FinalRange() uint32 {
	return r.dec.FinalRange()
}

// Reset clears buffers and decoder state for a new stream.
func (r *Reader) Reset() {
	r.dec.Reset()
	r.byteBuf = r.byteBuf[:0]
	r.offset = 0
	r.eof = false
}
