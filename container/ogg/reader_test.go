package ogg_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/opusdec"
	"github.com/thesyncim/opusdec/container/ogg"
)

const testSerial = 0x5A17

// The Ogg reader feeds the PCM stream reader directly.
var _ opusdec.PacketSource = (*ogg.Reader)(nil)

// celtTestPacket returns a deterministic CELT fullband 20 ms packet.
func celtTestPacket(stereo bool, seed byte) []byte {
	p := make([]byte, 42)
	p[0] = 0xF8
	if stereo {
		p[0] |= 0x04
	}
	for i := 1; i < len(p); i++ {
		p[i] = seed + byte(i*7)
	}
	return p
}

// opusStream assembles a minimal Ogg Opus stream: BOS page with the
// identification header, one tags page, then one audio packet per
// page. The final audio page carries the EOS flag.
func opusStream(t *testing.T, head ogg.OpusHead, packets [][]byte) []byte {
	t.Helper()

	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, head.Encode()))

	tags := ogg.OpusTags{
		Vendor:   "opusdec test",
		Comments: map[string]string{"TITLE": "fixture"},
	}
	out.Write(makePage(t, 0, testSerial, 1, 0, tags.Encode()))

	granule := uint64(head.PreSkip)
	for i, pkt := range packets {
		granule += 960
		var flags byte
		if i == len(packets)-1 {
			flags = ogg.PageFlagEOS
		}
		out.Write(makePage(t, flags, testSerial, uint32(2+i), granule, pkt))
	}
	return out.Bytes()
}

func stereoHead() ogg.OpusHead {
	return ogg.OpusHead{
		Version:    1,
		Channels:   2,
		PreSkip:    ogg.DefaultPreSkip,
		SampleRate: 48000,
	}
}

func encodeHead(h ogg.OpusHead) []byte {
	return h.Encode()
}

func TestNewReaderParsesHeaders(t *testing.T) {
	head := stereoHead()
	head.OutputGain = 256 // +1 dB
	stream := opusStream(t, head, [][]byte{celtTestPacket(true, 0)})

	r, err := ogg.NewReader(bytes.NewReader(stream))
	require.NoError(t, err)

	require.NotNil(t, r.Header)
	assert.Equal(t, uint8(2), r.Channels())
	assert.Equal(t, uint16(ogg.DefaultPreSkip), r.PreSkip())
	assert.Equal(t, uint32(48000), r.SampleRate())
	assert.Equal(t, int16(256), r.OutputGain())
	assert.Equal(t, uint32(testSerial), r.Serial())

	require.NotNil(t, r.Tags)
	assert.Equal(t, "opusdec test", r.Tags.Vendor)
	assert.Equal(t, "fixture", r.Tags.Comments["TITLE"])

	assert.False(t, r.EOF())
	assert.Zero(t, r.CorruptPages())
}

func TestReadPacketSequence(t *testing.T) {
	packets := [][]byte{
		celtTestPacket(true, 1),
		celtTestPacket(true, 2),
		celtTestPacket(true, 3),
	}
	stream := opusStream(t, stereoHead(), packets)

	r, err := ogg.NewReader(bytes.NewReader(stream))
	require.NoError(t, err)

	for i, want := range packets {
		pkt, granule, err := r.ReadPacket()
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, want, pkt, "packet %d", i)
		assert.Equal(t, uint64(ogg.DefaultPreSkip)+uint64(960*(i+1)), granule, "packet %d", i)
	}

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, r.EOF())

	// EOF is sticky.
	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadPacketMultiPacketPage(t *testing.T) {
	packets := [][]byte{
		celtTestPacket(true, 1),
		celtTestPacket(true, 2),
		celtTestPacket(true, 3),
	}

	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead())))
	out.Write(makePage(t, 0, testSerial, 1, 0, (&ogg.OpusTags{Vendor: "v"}).Encode()))
	out.Write(makePage(t, ogg.PageFlagEOS, testSerial, 2, 3192, packets...))

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	// All three packets come back, each reporting the page granule.
	for i, want := range packets {
		pkt, granule, err := r.ReadPacket()
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, want, pkt, "packet %d", i)
		assert.Equal(t, uint64(3192), granule)
	}

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadPacketSpanningPages(t *testing.T) {
	long := make([]byte, 600)
	long[0] = 0xFC
	for i := 1; i < len(long); i++ {
		long[i] = byte(i * 3)
	}
	short := celtTestPacket(true, 9)

	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead())))
	out.Write(makePage(t, 0, testSerial, 1, 0, (&ogg.OpusTags{Vendor: "v"}).Encode()))

	// First 510 bytes laced as two open segments; no packet completes
	// on this page, so its granule position is -1.
	p1 := &ogg.Page{
		HeaderType:   0,
		GranulePos:   ^uint64(0),
		SerialNumber: testSerial,
		PageSequence: 2,
		Segments:     []byte{255, 255},
		Payload:      long[:510],
	}
	d1, err := p1.Encode()
	require.NoError(t, err)
	out.Write(d1)

	// Remainder plus a complete second packet on the continuation page.
	p2 := &ogg.Page{
		HeaderType:   ogg.PageFlagContinuation | ogg.PageFlagEOS,
		GranulePos:   1920,
		SerialNumber: testSerial,
		PageSequence: 3,
		Segments:     append([]byte{90}, ogg.BuildSegmentTable(len(short))...),
		Payload:      append(append([]byte(nil), long[510:]...), short...),
	}
	d2, err := p2.Encode()
	require.NoError(t, err)
	out.Write(d2)

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	pkt, granule, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, long, pkt, "spanning packet reassembled")
	assert.Equal(t, uint64(1920), granule)

	pkt, _, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, short, pkt)

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadPacketDropsOrphanContinuation(t *testing.T) {
	// The page starting the spanning packet is missing entirely; the
	// continuation stub must be dropped, not returned as a packet.
	keep := celtTestPacket(true, 5)

	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead())))
	out.Write(makePage(t, 0, testSerial, 1, 0, (&ogg.OpusTags{Vendor: "v"}).Encode()))

	p := &ogg.Page{
		HeaderType:   ogg.PageFlagContinuation | ogg.PageFlagEOS,
		GranulePos:   960,
		SerialNumber: testSerial,
		PageSequence: 5,
		Segments:     append([]byte{90}, ogg.BuildSegmentTable(len(keep))...),
		Payload:      append(make([]byte, 90), keep...),
	}
	data, err := p.Encode()
	require.NoError(t, err)
	out.Write(data)

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	pkt, _, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, keep, pkt)

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadPacketSkipsForeignSerial(t *testing.T) {
	mine := celtTestPacket(true, 1)
	stream := opusStream(t, stereoHead(), [][]byte{mine})

	// Splice a page from another logical bitstream between the tags
	// and the audio.
	var out bytes.Buffer
	headerEnd := len(stream) - lastPageSize(t, stream)
	out.Write(stream[:headerEnd])
	out.Write(makePage(t, 0, testSerial+1, 0, 999, []byte{0xAB, 0xCD}))
	out.Write(stream[headerEnd:])

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	pkt, _, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, mine, pkt)
}

// lastPageSize parses pages from the front and returns the size of the
// final one.
func lastPageSize(t *testing.T, stream []byte) int {
	t.Helper()
	rest := stream
	for {
		_, consumed, err := ogg.ParsePage(rest)
		require.NoError(t, err)
		rest = rest[consumed:]
		if len(rest) == 0 {
			return consumed
		}
	}
}

func TestReadPacketSkipsCorruptPage(t *testing.T) {
	packets := [][]byte{
		celtTestPacket(true, 1),
		celtTestPacket(true, 2),
		celtTestPacket(true, 3),
	}
	stream := opusStream(t, stereoHead(), packets)

	// Flip a payload byte in the middle audio page.
	middleStart := len(stream) - 2*lastPageSize(t, stream)
	corrupted := append([]byte(nil), stream...)
	corrupted[middleStart+30] ^= 0x40

	r, err := ogg.NewReader(bytes.NewReader(corrupted))
	require.NoError(t, err)

	pkt, _, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, packets[0], pkt)

	// The corrupt page is skipped; its packet is gone.
	pkt, _, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, packets[2], pkt)
	assert.Equal(t, 1, r.CorruptPages())

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadPacketTruncatedSpan(t *testing.T) {
	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead())))
	out.Write(makePage(t, 0, testSerial, 1, 0, (&ogg.OpusTags{Vendor: "v"}).Encode()))

	// A packet opens here and its continuation never arrives.
	p := &ogg.Page{
		HeaderType:   0,
		GranulePos:   ^uint64(0),
		SerialNumber: testSerial,
		PageSequence: 2,
		Segments:     []byte{255},
		Payload:      make([]byte, 255),
	}
	data, err := p.Encode()
	require.NoError(t, err)
	out.Write(data)

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, ogg.ErrUnexpectedEOS)
}

func TestReaderResyncsAfterGarbage(t *testing.T) {
	packets := [][]byte{celtTestPacket(true, 1), celtTestPacket(true, 2)}
	stream := opusStream(t, stereoHead(), packets)

	// Garbage before the stream and between pages. The junk includes a
	// false capture pattern.
	tail := lastPageSize(t, stream)
	var out bytes.Buffer
	out.WriteString("ID3 junk OggSnot-a-page")
	out.Write(stream[:len(stream)-tail])
	out.WriteString("mid-stream noise")
	out.Write(stream[len(stream)-tail:])

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	for i, want := range packets {
		pkt, _, err := r.ReadPacket()
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, want, pkt)
	}
	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderDropsEmptyPackets(t *testing.T) {
	real := celtTestPacket(true, 4)

	var out bytes.Buffer
	out.Write(makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead())))
	out.Write(makePage(t, 0, testSerial, 1, 0, (&ogg.OpusTags{Vendor: "v"}).Encode()))
	out.Write(makePage(t, ogg.PageFlagEOS, testSerial, 2, 960, []byte{}, real, []byte{}))

	r, err := ogg.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)

	pkt, _, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, real, pkt)

	_, _, err = r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestNewReaderErrors(t *testing.T) {
	t.Run("empty_input", func(t *testing.T) {
		_, err := ogg.NewReader(bytes.NewReader(nil))
		require.ErrorIs(t, err, ogg.ErrUnexpectedEOS)
	})

	t.Run("not_ogg", func(t *testing.T) {
		_, err := ogg.NewReader(bytes.NewReader([]byte("RIFF....WAVEfmt not an ogg stream at all")))
		require.ErrorIs(t, err, ogg.ErrUnexpectedEOS)
	})

	t.Run("missing_bos_flag", func(t *testing.T) {
		data := makePage(t, 0, testSerial, 0, 0, encodeHead(stereoHead()))
		_, err := ogg.NewReader(bytes.NewReader(data))
		require.ErrorIs(t, err, ogg.ErrInvalidPage)
	})

	t.Run("two_packets_on_bos_page", func(t *testing.T) {
		data := makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead()), []byte{1})
		_, err := ogg.NewReader(bytes.NewReader(data))
		require.ErrorIs(t, err, ogg.ErrInvalidHeader)
	})

	t.Run("bad_opushead", func(t *testing.T) {
		data := makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, []byte("NotOpusHead1234567890"))
		_, err := ogg.NewReader(bytes.NewReader(data))
		require.ErrorIs(t, err, ogg.ErrInvalidHeader)
	})

	t.Run("missing_tags", func(t *testing.T) {
		data := makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead()))
		data = append(data, makePage(t, 0, testSerial, 1, 0, []byte("OpusTagz not right!!"))...)
		_, err := ogg.NewReader(bytes.NewReader(data))
		require.ErrorIs(t, err, ogg.ErrInvalidHeader)
	})

	t.Run("eof_before_tags", func(t *testing.T) {
		data := makePage(t, ogg.PageFlagBOS, testSerial, 0, 0, encodeHead(stereoHead()))
		_, err := ogg.NewReader(bytes.NewReader(data))
		require.ErrorIs(t, err, ogg.ErrUnexpectedEOS)
	})
}

// TestOggStreamDecode runs the full pipeline: Ogg pages in, interleaved
// PCM out through the stream reader in the root package.
func TestOggStreamDecode(t *testing.T) {
	packets := [][]byte{
		celtTestPacket(true, 1),
		celtTestPacket(true, 2),
		celtTestPacket(true, 3),
		celtTestPacket(true, 4),
	}
	stream := opusStream(t, stereoHead(), packets)

	oggR, err := ogg.NewReader(bytes.NewReader(stream))
	require.NoError(t, err)

	cfg := opusdec.DefaultDecoderConfig(48000, int(oggR.Channels()))
	pcmR, err := opusdec.NewReader(cfg, oggR, opusdec.FormatFloat32LE)
	require.NoError(t, err)

	pcm, err := io.ReadAll(pcmR)
	require.NoError(t, err)
	assert.Equal(t, len(packets)*960*2*4, len(pcm),
		"four stereo 20 ms frames of float32 samples")
}
