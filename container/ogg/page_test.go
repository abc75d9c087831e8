package ogg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/opusdec/container/ogg"
)

// makePage encodes a wire-format page holding complete packets.
func makePage(t *testing.T, flags byte, serial, seq uint32, granule uint64, packets ...[]byte) []byte {
	t.Helper()
	var segments, payload []byte
	for _, pkt := range packets {
		segments = append(segments, ogg.BuildSegmentTable(len(pkt))...)
		payload = append(payload, pkt...)
	}
	p := &ogg.Page{
		HeaderType:   flags,
		GranulePos:   granule,
		SerialNumber: serial,
		PageSequence: seq,
		Segments:     segments,
		Payload:      payload,
	}
	data, err := p.Encode()
	require.NoError(t, err)
	return data
}

func TestPageEncodeParseRoundTrip(t *testing.T) {
	first := []byte{0xF8, 0x01, 0x02, 0x03}
	second := []byte{0xF8, 0xAA}
	data := makePage(t, ogg.PageFlagBOS|ogg.PageFlagEOS, 0xCAFE, 7, 1920, first, second)

	// Trailing bytes of a following page must not confuse the parser.
	page, consumed, err := ogg.ParsePage(append(data, "OggS garbage"...))
	require.NoError(t, err)
	assert.Equal(t, len(data), consumed)

	assert.True(t, page.IsBOS())
	assert.True(t, page.IsEOS())
	assert.False(t, page.IsContinuation())
	assert.Equal(t, uint64(1920), page.GranulePos)
	assert.Equal(t, uint32(0xCAFE), page.SerialNumber)
	assert.Equal(t, uint32(7), page.PageSequence)

	packets, complete := page.Packets()
	require.True(t, complete)
	require.Len(t, packets, 2)
	assert.Equal(t, first, packets[0])
	assert.Equal(t, second, packets[1])
}

func TestParsePageErrors(t *testing.T) {
	valid := makePage(t, 0, 1, 0, 0, []byte{1, 2, 3})

	t.Run("short_prefix", func(t *testing.T) {
		for _, n := range []int{0, 3, 10, 26, len(valid) - 1} {
			_, _, err := ogg.ParsePage(valid[:n])
			require.ErrorIs(t, err, ogg.ErrShortPage, "prefix of %d bytes", n)
		}
	})

	t.Run("bad_magic", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[0] = 'X'
		_, _, err := ogg.ParsePage(data)
		require.ErrorIs(t, err, ogg.ErrInvalidPage)
	})

	t.Run("bad_version", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[4] = 1
		_, _, err := ogg.ParsePage(data)
		require.ErrorIs(t, err, ogg.ErrInvalidPage)
	})

	t.Run("corrupt_payload", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[len(data)-1] ^= 0x40
		_, consumed, err := ogg.ParsePage(data)
		require.ErrorIs(t, err, ogg.ErrBadCRC)
		assert.Equal(t, len(valid), consumed, "corrupt pages report their size so callers can skip them")
	})

	t.Run("corrupt_granule", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[6] ^= 0x01
		_, _, err := ogg.ParsePage(data)
		require.ErrorIs(t, err, ogg.ErrBadCRC)
	})
}

func TestPagePackets(t *testing.T) {
	payload := func(n int) []byte {
		p := make([]byte, n)
		for i := range p {
			p[i] = byte(i)
		}
		return p
	}

	tests := []struct {
		name     string
		segments []byte
		payload  []byte
		lens     []int
		complete bool
	}{
		{"no_segments", nil, nil, nil, true},
		{"single", []byte{5}, payload(5), []int{5}, true},
		{"two_packets", []byte{3, 4}, payload(7), []int{3, 4}, true},
		{"empty_packet_between", []byte{3, 0, 4}, payload(7), []int{3, 0, 4}, true},
		{"laced_600", []byte{255, 255, 90}, payload(600), []int{600}, true},
		{"exact_255_terminated", []byte{255, 0}, payload(255), []int{255}, true},
		{"open_tail", []byte{255}, payload(255), []int{255}, false},
		{"packet_then_open_tail", []byte{4, 255, 255}, payload(514), []int{4, 510}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ogg.Page{Segments: tt.segments, Payload: tt.payload}
			packets, complete := p.Packets()
			assert.Equal(t, tt.complete, complete)
			require.Len(t, packets, len(tt.lens))

			offset := 0
			for i, want := range tt.lens {
				assert.Equal(t, tt.payload[offset:offset+want], packets[i], "packet %d", i)
				offset += want
			}
		})
	}
}

func TestBuildSegmentTable(t *testing.T) {
	tests := []struct {
		packetLen int
		want      []byte
	}{
		{0, []byte{0}},
		{10, []byte{10}},
		{254, []byte{254}},
		{255, []byte{255, 0}},
		{256, []byte{255, 1}},
		{510, []byte{255, 255, 0}},
		{600, []byte{255, 255, 90}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ogg.BuildSegmentTable(tt.packetLen), "length %d", tt.packetLen)
	}
}

func TestPageEncodeTooManySegments(t *testing.T) {
	p := &ogg.Page{Segments: make([]byte, 256)}
	_, err := p.Encode()
	require.ErrorIs(t, err, ogg.ErrInvalidPage)
}
