// benchmark_alloc_test.go - Allocation benchmarks for the decode paths.
//
// The Decoder pre-allocates its packet table and PCM scratch at
// construction and the public Decode/DecodeInt16 methods write into
// caller-provided buffers, so the steady-state paths below run without
// heap allocations. The alloc guards in hotpath_alloc_guard_test.go
// enforce the zero; these benchmarks track the cost.
//
// Run with:
//   go test -bench=Benchmark -benchmem -run=^$ .

package opusdec

import (
	"io"
	"testing"
)

// Test packet data for benchmarks
var (
	// CELT fullband 20ms mono packet (config 31)
	benchCELTPacket = func() []byte {
		data := make([]byte, 50)
		data[0] = 0xF8 // config=31 (CELT FB 20ms), mono, code 0
		for i := 1; i < len(data); i++ {
			data[i] = byte(i * 7)
		}
		return data
	}()

	// Hybrid fullband 20ms mono packet (config 15)
	benchHybridPacket = func() []byte {
		data := make([]byte, 50)
		data[0] = 0x78 // config=15 (Hybrid FB 20ms), mono, code 0
		for i := 1; i < len(data); i++ {
			data[i] = 0xFF
		}
		return data
	}()

	// SILK wideband 20ms mono packet (config 9)
	benchSILKPacket = func() []byte {
		data := make([]byte, 50)
		data[0] = 0x48 // config=9 (SILK WB 20ms), mono, code 0
		for i := 1; i < len(data); i++ {
			data[i] = byte(i)
		}
		return data
	}()

	// Code 3 CBR packet with two CELT FB 20ms frames
	benchMultiFramePacket = func() []byte {
		data := make([]byte, 2+2*50)
		data[0] = 0xFB // config=31, mono, code 3
		data[1] = 0x02 // CBR, M=2
		for i := 2; i < len(data); i++ {
			data[i] = byte(i * 11)
		}
		return data
	}()
)

// BenchmarkDecoderDecode_CELT benchmarks CELT-only decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_CELT(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 960) // 20ms at 48kHz mono
	packet := benchCELTPacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_Hybrid benchmarks Hybrid mode decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_Hybrid(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 960) // 20ms at 48kHz mono
	packet := benchHybridPacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_SILK benchmarks SILK-only decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_SILK(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 960) // 20ms at 48kHz mono
	packet := benchSILKPacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkDecoderDecodeInt16 benchmarks int16 decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecodeInt16(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]int16, 960) // 20ms at 48kHz mono
	packet := benchCELTPacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.DecodeInt16(packet, pcm)
		if err != nil {
			b.Fatalf("DecodeInt16: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_PLC benchmarks packet loss concealment. The lost
// packet alternates with a coded one so the concealer works from fresh
// state the way it does behind a jitter buffer.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_PLC(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 960)
	// Decode one frame first to set up state
	_, _ = dec.Decode(benchCELTPacket, pcm)
	_, _ = dec.Decode(nil, pcm)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := dec.Decode(benchCELTPacket, pcm); err != nil {
			b.Fatalf("Decode: %v", err)
		}
		if _, err := dec.Decode(nil, pcm); err != nil {
			b.Fatalf("Decode PLC: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_Stereo benchmarks stereo decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_Stereo(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 2))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	// Stereo CELT packet (config 31, stereo flag set)
	packet := make([]byte, 50)
	packet[0] = 0xFC // config=31, stereo=1, code=0
	for i := 1; i < len(packet); i++ {
		packet[i] = byte(i * 7)
	}

	pcm := make([]float32, 960*2) // 20ms at 48kHz stereo

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_MultiFrame benchmarks multi-frame packet decoding.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_MultiFrame(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(48000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 1920) // Two 20ms frames
	packet := benchMultiFramePacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkDecoderDecode_Downsampled benchmarks decoding to 16kHz output.
// Target: 0 allocs/op
func BenchmarkDecoderDecode_Downsampled(b *testing.B) {
	dec, err := NewDecoder(DefaultDecoderConfig(16000, 1))
	if err != nil {
		b.Fatalf("NewDecoder: %v", err)
	}

	pcm := make([]float32, 320) // 20ms at 16kHz mono
	packet := benchCELTPacket

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := dec.Decode(packet, pcm)
		if err != nil {
			b.Fatalf("Decode: %v", err)
		}
	}
}

// BenchmarkStreamReader benchmarks streaming decode via io.Reader.
// Note: Some allocations expected from io.Reader interface overhead.
func BenchmarkStreamReader(b *testing.B) {
	packets := make([][]byte, 100)
	for i := range packets {
		p := make([]byte, 50)
		p[0] = 0xF8 // CELT FB 20ms mono
		for j := 1; j < len(p); j++ {
			p[j] = byte(j * (i + 1))
		}
		packets[i] = p
	}

	source := &benchPacketSource{packets: packets}
	reader, err := NewReader(DefaultDecoderConfig(48000, 1), source, FormatFloat32LE)
	if err != nil {
		b.Fatalf("NewReader: %v", err)
	}

	buf := make([]byte, 960*4) // 20ms float32

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		source.index = 0
		reader.Reset()

		_, err := reader.Read(buf)
		if err != nil {
			b.Fatalf("Read: %v", err)
		}
	}
}

// benchPacketSource serves a fixed packet list.
type benchPacketSource struct {
	packets [][]byte
	index   int
}

func (s *benchPacketSource) NextPacket() ([]byte, error) {
	if s.index >= len(s.packets) {
		return nil, io.EOF
	}
	p := s.packets[s.index]
	s.index++
	return p, nil
}
