package ogg

import (
	"encoding/binary"
	"fmt"
)

// Opus header constants per RFC 7845.
const (
	// DefaultPreSkip is the conventional encoder lookahead at 48 kHz,
	// discarded from the start of decoded output.
	DefaultPreSkip = 312

	opusHeadMagic   = "OpusHead"
	opusTagsMagic   = "OpusTags"
	opusHeadMinSize = 19
	opusHeadVersion = 1
)

// Channel mapping families per RFC 7845 and RFC 8486.
const (
	// MappingFamilyRTP is mono or stereo with implicit channel order.
	MappingFamilyRTP = 0

	// MappingFamilyVorbis is 1-8 channels in Vorbis order.
	MappingFamilyVorbis = 1

	// MappingFamilyAmbisonics is ambisonics with ACN/SN3D mapping.
	MappingFamilyAmbisonics = 2

	// MappingFamilyProjection is projection-based ambisonics.
	MappingFamilyProjection = 3

	// MappingFamilyDiscrete is N channels with no defined layout.
	MappingFamilyDiscrete = 255
)

// OpusHead is the identification header carried in the first packet of
// an Ogg Opus stream (RFC 7845 section 5.1).
type OpusHead struct {
	// Version is the header format version, always 1.
	Version uint8

	// Channels is the output channel count.
	Channels uint8

	// PreSkip is the number of 48 kHz samples to discard from the
	// start of decoded output.
	PreSkip uint16

	// SampleRate is the original input rate. Informational only; Opus
	// decodes at 48 kHz regardless.
	SampleRate uint32

	// OutputGain is a gain to apply to decoded output, in Q7.8 dB.
	OutputGain int16

	// MappingFamily selects the channel layout scheme. Family 0
	// (mono/stereo) has no mapping table; other families carry stream
	// counts and a per-channel mapping.
	MappingFamily uint8

	// StreamCount is the number of Opus streams multiplexed per
	// packet. 1 for family 0.
	StreamCount uint8

	// CoupledCount is how many of those streams are stereo pairs.
	CoupledCount uint8

	// ChannelMapping maps each output channel to a decoded stream
	// channel. Empty for family 0; 255 marks a silent channel.
	ChannelMapping []byte
}

// Encode serializes the header: 19 bytes for family 0, otherwise 21
// bytes plus the mapping table.
func (h *OpusHead) Encode() []byte {
	size := opusHeadMinSize
	if h.MappingFamily != MappingFamilyRTP {
		size = 21 + len(h.ChannelMapping)
	}
	data := make([]byte, size)
	copy(data[0:8], opusHeadMagic)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.SampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	if h.MappingFamily != MappingFamilyRTP {
		data[19] = h.StreamCount
		data[20] = h.CoupledCount
		copy(data[21:], h.ChannelMapping)
	}
	return data
}

// ParseOpusHead parses an identification header packet.
func ParseOpusHead(data []byte) (*OpusHead, error) {
	if len(data) < opusHeadMinSize {
		return nil, fmt.Errorf("%w: OpusHead packet of %d bytes", ErrInvalidHeader, len(data))
	}
	if string(data[0:8]) != opusHeadMagic {
		return nil, fmt.Errorf("%w: missing OpusHead magic", ErrInvalidHeader)
	}
	if data[8] != opusHeadVersion {
		return nil, fmt.Errorf("%w: OpusHead version %d", ErrInvalidHeader, data[8])
	}

	h := &OpusHead{
		Version:       data[8],
		Channels:      data[9],
		PreSkip:       binary.LittleEndian.Uint16(data[10:12]),
		SampleRate:    binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:    int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily: data[18],
	}
	if h.Channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidHeader)
	}

	switch h.MappingFamily {
	case MappingFamilyRTP:
		if h.Channels > 2 {
			return nil, fmt.Errorf("%w: family 0 with %d channels", ErrInvalidHeader, h.Channels)
		}
		h.StreamCount = 1
		if h.Channels == 2 {
			h.CoupledCount = 1
		}
		return h, nil

	case MappingFamilyAmbisonics, MappingFamilyProjection:
		return nil, fmt.Errorf("%w: family %d", ErrUnsupportedMapping, h.MappingFamily)
	}

	// Families with an explicit mapping table (1, 255, reserved).
	if len(data) < 21+int(h.Channels) {
		return nil, fmt.Errorf("%w: truncated channel mapping", ErrInvalidHeader)
	}
	h.StreamCount = data[19]
	h.CoupledCount = data[20]
	if h.StreamCount == 0 {
		return nil, fmt.Errorf("%w: zero streams", ErrInvalidHeader)
	}
	if h.CoupledCount > h.StreamCount {
		return nil, fmt.Errorf("%w: %d coupled of %d streams", ErrInvalidHeader, h.CoupledCount, h.StreamCount)
	}
	if int(h.StreamCount)+int(h.CoupledCount) > 255 {
		return nil, fmt.Errorf("%w: stream counts overflow mapping space", ErrInvalidHeader)
	}

	h.ChannelMapping = append([]byte(nil), data[21:21+int(h.Channels)]...)
	maxIndex := h.StreamCount + h.CoupledCount
	for i, m := range h.ChannelMapping {
		if m >= maxIndex && m != 255 {
			return nil, fmt.Errorf("%w: channel %d maps to stream %d", ErrInvalidHeader, i, m)
		}
	}
	return h, nil
}

// OpusTags is the comment header carried in the second packet of an
// Ogg Opus stream (RFC 7845 section 5.2). Comments follow the Vorbis
// convention of FIELD=value strings; when a field repeats, the last
// value wins.
type OpusTags struct {
	Vendor   string
	Comments map[string]string
}

// Encode serializes the comment header.
func (t *OpusTags) Encode() []byte {
	size := 8 + 4 + len(t.Vendor) + 4
	for k, v := range t.Comments {
		size += 4 + len(k) + 1 + len(v)
	}

	data := make([]byte, size)
	copy(data[0:8], opusTagsMagic)
	offset := 8

	binary.LittleEndian.PutUint32(data[offset:], uint32(len(t.Vendor)))
	offset += 4
	offset += copy(data[offset:], t.Vendor)

	binary.LittleEndian.PutUint32(data[offset:], uint32(len(t.Comments)))
	offset += 4

	for k, v := range t.Comments {
		comment := k + "=" + v
		binary.LittleEndian.PutUint32(data[offset:], uint32(len(comment)))
		offset += 4
		offset += copy(data[offset:], comment)
	}
	return data
}

// ParseOpusTags parses a comment header packet. Comments without a
// field separator are ignored.
func ParseOpusTags(data []byte) (*OpusTags, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: OpusTags packet of %d bytes", ErrInvalidHeader, len(data))
	}
	if string(data[0:8]) != opusTagsMagic {
		return nil, fmt.Errorf("%w: missing OpusTags magic", ErrInvalidHeader)
	}
	offset := 8

	vendorLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if vendorLen < 0 || offset+vendorLen > len(data) {
		return nil, fmt.Errorf("%w: vendor string overruns packet", ErrInvalidHeader)
	}
	t := &OpusTags{
		Vendor:   string(data[offset : offset+vendorLen]),
		Comments: make(map[string]string),
	}
	offset += vendorLen

	if offset+4 > len(data) {
		return nil, fmt.Errorf("%w: missing comment count", ErrInvalidHeader)
	}
	count := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	for i := uint32(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated comment list", ErrInvalidHeader)
		}
		commentLen := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if commentLen < 0 || offset+commentLen > len(data) {
			return nil, fmt.Errorf("%w: comment overruns packet", ErrInvalidHeader)
		}
		comment := string(data[offset : offset+commentLen])
		offset += commentLen

		for j := 0; j < len(comment); j++ {
			if comment[j] == '=' {
				t.Comments[comment[:j]] = comment[j+1:]
				break
			}
		}
	}
	return t, nil
}
