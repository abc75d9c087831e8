// Package testvectors parses the official RFC 8251 Opus test vectors
// and scores decoder output against them.
//
// The vectors ship as opus_demo bitstreams (testvectorNN.bit) paired
// with reference PCM decoded by libopus (testvectorNN.dec). The
// conformance tests in this package skip when the vector files are not
// present under testdata/opus_testvectors.
package testvectors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Parse errors.
var (
	ErrTruncatedHeader = errors.New("testvectors: truncated packet header")
	ErrTruncatedPacket = errors.New("testvectors: truncated packet data")
)

// Packet is one framed packet from an opus_demo bitstream. The framing
// stores the encoder's final range coder state next to each packet so
// a decoder can check bit-exactness (RFC 6716 Section 4.1.6).
type Packet struct {
	// Data is the raw Opus packet, starting with the TOC byte. A
	// zero-length Data marks a lost packet.
	Data []byte

	// FinalRange is the range coder state the encoder reported after
	// producing this packet.
	FinalRange uint32
}

// ParseOpusDemoBitstream parses the framing opus_demo writes: per
// packet a big-endian uint32 payload length, a big-endian uint32
// enc_final_range, then the payload itself.
func ParseOpusDemoBitstream(data []byte) ([]Packet, error) {
	var packets []Packet
	off := 0
	for off < len(data) {
		if off+8 > len(data) {
			return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrTruncatedHeader, len(data)-off, off)
		}
		length := binary.BigEndian.Uint32(data[off:])
		finalRange := binary.BigEndian.Uint32(data[off+4:])
		off += 8
		if length > uint32(len(data)-off) {
			return nil, fmt.Errorf("%w: header says %d bytes, %d remain", ErrTruncatedPacket, length, len(data)-off)
		}
		packets = append(packets, Packet{
			Data:       append([]byte(nil), data[off:off+int(length)]...),
			FinalRange: finalRange,
		})
		off += int(length)
	}
	return packets, nil
}

// ReadBitstreamFile reads and parses an opus_demo .bit file.
func ReadBitstreamFile(path string) ([]Packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	packets, err := ParseOpusDemoBitstream(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return packets, nil
}

// ReadReferencePCM reads a .dec reference file: interleaved 16-bit
// little-endian PCM at 48kHz, as written by the libopus reference
// decoder.
func ReadReferencePCM(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("testvectors: %s: odd byte count %d", path, len(data))
	}
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return pcm, nil
}
