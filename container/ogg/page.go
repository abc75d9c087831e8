package ogg

import (
	"encoding/binary"
	"fmt"
)

// Page header flags.
const (
	// PageFlagContinuation marks a page whose first segment continues
	// a packet from the previous page.
	PageFlagContinuation = 0x01

	// PageFlagBOS marks the first page of a logical bitstream.
	PageFlagBOS = 0x02

	// PageFlagEOS marks the last page of a logical bitstream.
	PageFlagEOS = 0x04
)

const (
	// pageHeaderSize is the fixed header portion before the segment
	// table.
	pageHeaderSize = 27

	// oggMagic is the capture pattern opening every page.
	oggMagic = "OggS"

	// maxPageSize bounds a page: header, 255 segment table entries
	// and 255*255 payload bytes.
	maxPageSize = pageHeaderSize + 255 + 255*255
)

// Page is a single Ogg page. Pages are the framing unit of the
// container; one or more Opus packets (or a fragment of one) ride in
// the payload, delimited by the segment table.
type Page struct {
	// HeaderType holds the continuation/BOS/EOS flags.
	HeaderType byte

	// GranulePos counts PCM samples at 48 kHz up to the last packet
	// completed on this page. All ones means no packet ends here.
	GranulePos uint64

	// SerialNumber identifies the logical bitstream.
	SerialNumber uint32

	// PageSequence numbers the page within the bitstream.
	PageSequence uint32

	// Segments is the lacing table: each entry is a segment size,
	// 255 meaning the packet continues into the next segment.
	Segments []byte

	// Payload is the concatenated packet data.
	Payload []byte
}

// IsBOS reports whether this page opens a logical bitstream.
func (p *Page) IsBOS() bool { return p.HeaderType&PageFlagBOS != 0 }

// IsEOS reports whether this page closes a logical bitstream.
func (p *Page) IsEOS() bool { return p.HeaderType&PageFlagEOS != 0 }

// IsContinuation reports whether the first segment continues a packet
// from the previous page.
func (p *Page) IsContinuation() bool { return p.HeaderType&PageFlagContinuation != 0 }

// Packets splits the payload along the segment table. A lacing value
// below 255 terminates a packet; a trailing run of 255s leaves the
// final packet open. complete reports whether the last returned packet
// ends on this page. The returned slices alias the payload.
func (p *Page) Packets() (packets [][]byte, complete bool) {
	if len(p.Segments) == 0 {
		return nil, true
	}
	start, end := 0, 0
	for _, seg := range p.Segments {
		end += int(seg)
		if seg < 255 {
			packets = append(packets, p.Payload[start:end])
			start = end
		}
	}
	if start < end {
		packets = append(packets, p.Payload[start:end])
		return packets, false
	}
	return packets, true
}

// BuildSegmentTable returns the lacing values for a packet of the
// given length: full 255-byte segments plus a terminating remainder,
// with an explicit zero segment when the length is an exact multiple
// of 255.
func BuildSegmentTable(packetLen int) []byte {
	full := packetLen / 255
	segments := make([]byte, full+1)
	for i := 0; i < full; i++ {
		segments[i] = 255
	}
	segments[full] = byte(packetLen % 255)
	return segments
}

// Encode serializes the page with its checksum filled in. Used to
// build test fixtures and by remuxing tools; the decode path only
// parses.
func (p *Page) Encode() ([]byte, error) {
	if len(p.Segments) > 255 {
		return nil, fmt.Errorf("%w: %d segments", ErrInvalidPage, len(p.Segments))
	}
	headerSize := pageHeaderSize + len(p.Segments)
	data := make([]byte, headerSize+len(p.Payload))

	copy(data[0:4], oggMagic)
	data[4] = 0 // stream structure version
	data[5] = p.HeaderType
	binary.LittleEndian.PutUint64(data[6:14], p.GranulePos)
	binary.LittleEndian.PutUint32(data[14:18], p.SerialNumber)
	binary.LittleEndian.PutUint32(data[18:22], p.PageSequence)
	data[26] = byte(len(p.Segments))
	copy(data[27:], p.Segments)
	copy(data[headerSize:], p.Payload)

	binary.LittleEndian.PutUint32(data[22:26], pageCRC(data))
	return data, nil
}

// ParsePage parses one page from the front of data.
//
// It returns the page and the number of bytes consumed. ErrShortPage
// means data is a valid prefix and more bytes are needed;
// ErrInvalidPage means the capture pattern or version is wrong. On
// ErrBadCRC the consumed count covers the corrupt page so callers can
// skip it.
func ParsePage(data []byte) (*Page, int, error) {
	if len(data) >= 4 && string(data[0:4]) != oggMagic {
		return nil, 0, ErrInvalidPage
	}
	if len(data) < pageHeaderSize {
		return nil, 0, ErrShortPage
	}
	if data[4] != 0 {
		return nil, 0, ErrInvalidPage
	}

	numSegments := int(data[26])
	headerSize := pageHeaderSize + numSegments
	if len(data) < headerSize {
		return nil, 0, ErrShortPage
	}

	payloadSize := 0
	for _, seg := range data[pageHeaderSize:headerSize] {
		payloadSize += int(seg)
	}
	totalSize := headerSize + payloadSize
	if len(data) < totalSize {
		return nil, 0, ErrShortPage
	}

	if pageCRC(data[:totalSize]) != binary.LittleEndian.Uint32(data[22:26]) {
		return nil, totalSize, ErrBadCRC
	}

	p := &Page{
		HeaderType:   data[5],
		GranulePos:   binary.LittleEndian.Uint64(data[6:14]),
		SerialNumber: binary.LittleEndian.Uint32(data[14:18]),
		PageSequence: binary.LittleEndian.Uint32(data[18:22]),
		Segments:     append([]byte(nil), data[pageHeaderSize:headerSize]...),
		Payload:      append([]byte(nil), data[headerSize:totalSize]...),
	}
	return p, totalSize, nil
}
