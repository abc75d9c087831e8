package opusdec

import (
	"errors"
	"testing"
)

// celtStereoPacket returns a deterministic stereo CELT packet
// (config 31: fullband, 20ms).
func celtStereoPacket() []byte {
	packet := make([]byte, 50)
	packet[0] = 0xFC
	for i := 1; i < len(packet); i++ {
		packet[i] = byte(i * 7)
	}
	return packet
}

// celtCBR2Packet returns a code 3 CBR packet carrying two 20ms fullband
// CELT frames.
func celtCBR2Packet() []byte {
	packet := make([]byte, 2+2*50)
	packet[0] = 0xFB // config 31, mono, code 3
	packet[1] = 0x02 // CBR, no padding, M=2
	for i := 2; i < len(packet); i++ {
		packet[i] = byte(i * 11)
	}
	return packet
}

// silkWBPacket returns a SILK-only wideband 20ms packet (config 9).
func silkWBPacket() []byte {
	packet := make([]byte, 30)
	packet[0] = 0x48
	for i := 1; i < len(packet); i++ {
		packet[i] = byte(i * 13)
	}
	return packet
}

// hybridFBPacket returns a hybrid fullband 20ms packet (config 15).
func hybridFBPacket() []byte {
	packet := make([]byte, 40)
	packet[0] = 0x78
	for i := 1; i < len(packet); i++ {
		packet[i] = byte(i * 5)
	}
	return packet
}

func mustNewDecoder(t *testing.T, sampleRate, channels int) *Decoder {
	t.Helper()
	dec, err := NewDecoder(DefaultDecoderConfig(sampleRate, channels))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	return dec
}

func TestNewDecoderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  DecoderConfig
		err  error
	}{
		{"valid_48k_mono", DefaultDecoderConfig(48000, 1), nil},
		{"valid_48k_stereo", DefaultDecoderConfig(48000, 2), nil},
		{"valid_8k_mono", DefaultDecoderConfig(8000, 1), nil},
		{"rate_zero", DefaultDecoderConfig(0, 1), ErrInvalidSampleRate},
		{"rate_44100", DefaultDecoderConfig(44100, 1), ErrInvalidSampleRate},
		{"rate_96000", DefaultDecoderConfig(96000, 1), ErrInvalidSampleRate},
		{"rate_negative", DefaultDecoderConfig(-48000, 1), ErrInvalidSampleRate},
		{"channels_zero", DefaultDecoderConfig(48000, 0), ErrInvalidChannels},
		{"channels_three", DefaultDecoderConfig(48000, 3), ErrInvalidChannels},
		{
			"max_samples_zero",
			DecoderConfig{SampleRate: 48000, Channels: 1, MaxPacketBytes: DefaultMaxPacketBytes},
			ErrInvalidMaxPacketSamples,
		},
		{
			"max_samples_negative",
			DecoderConfig{SampleRate: 48000, Channels: 1, MaxPacketSamples: -1, MaxPacketBytes: DefaultMaxPacketBytes},
			ErrInvalidMaxPacketSamples,
		},
		{
			"max_bytes_zero",
			DecoderConfig{SampleRate: 48000, Channels: 1, MaxPacketSamples: 5760},
			ErrInvalidMaxPacketBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecoder(tt.cfg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error: got %v, want %v", err, tt.err)
			}
			if tt.err == nil && dec == nil {
				t.Fatal("nil decoder without error")
			}
		})
	}
}

func TestDefaultDecoderConfig(t *testing.T) {
	tests := []struct {
		rate       int
		maxSamples int
	}{
		{8000, 960},
		{12000, 1440},
		{16000, 1920},
		{24000, 2880},
		{48000, 5760},
	}

	for _, tt := range tests {
		cfg := DefaultDecoderConfig(tt.rate, 2)
		if cfg.MaxPacketSamples != tt.maxSamples {
			t.Errorf("rate %d: MaxPacketSamples = %d, want %d", tt.rate, cfg.MaxPacketSamples, tt.maxSamples)
		}
		if cfg.MaxPacketBytes != DefaultMaxPacketBytes {
			t.Errorf("rate %d: MaxPacketBytes = %d, want %d", tt.rate, cfg.MaxPacketBytes, DefaultMaxPacketBytes)
		}
	}
}

func TestDecodeCELTMono(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)

	n, err := dec.Decode(testCELTPacket(), pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}
	if dec.FinalRange() == 0 {
		t.Error("FinalRange is zero after a coded frame")
	}
}

func TestDecodeAllSampleRates(t *testing.T) {
	// A 20ms packet must yield 20ms of samples at every supported rate.
	for _, rate := range []int{8000, 12000, 16000, 24000, 48000} {
		dec := mustNewDecoder(t, rate, 1)
		want := 960 * rate / 48000
		pcm := make([]float32, want)

		n, err := dec.Decode(testCELTPacket(), pcm)
		if err != nil {
			t.Fatalf("rate %d: Decode: %v", rate, err)
		}
		if n != want {
			t.Errorf("rate %d: samples: got %d, want %d", rate, n, want)
		}
	}
}

func TestDecodeChannelAdaptation(t *testing.T) {
	t.Run("stereo_packet_mono_decoder", func(t *testing.T) {
		dec := mustNewDecoder(t, 48000, 1)
		pcm := make([]float32, 960)
		n, err := dec.Decode(celtStereoPacket(), pcm)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if n != 960 {
			t.Errorf("samples: got %d, want 960", n)
		}
	})

	t.Run("mono_packet_stereo_decoder", func(t *testing.T) {
		dec := mustNewDecoder(t, 48000, 2)
		pcm := make([]float32, 1920)
		n, err := dec.Decode(testCELTPacket(), pcm)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if n != 960 {
			t.Errorf("samples: got %d, want 960", n)
		}
		// A mono frame is duplicated into both output channels.
		for i := 0; i < n; i++ {
			if pcm[2*i] != pcm[2*i+1] {
				t.Fatalf("sample %d: L=%v R=%v, want identical", i, pcm[2*i], pcm[2*i+1])
			}
		}
	})
}

func TestDecodeDTXPacket(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)
	for i := range pcm {
		pcm[i] = 0.5 // Nonzero so silence writes are observable
	}

	// A bare TOC byte is a code 0 packet with one zero-length (DTX) frame.
	n, err := dec.Decode([]byte{0xF8}, pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}
	for i, v := range pcm {
		if v != 0 {
			t.Fatalf("sample %d: got %v, want silence", i, v)
		}
	}
	if dec.FinalRange() != 0 {
		t.Errorf("FinalRange after DTX-only packet: got %d, want 0", dec.FinalRange())
	}
}

func TestDecodeMixedDTXFrame(t *testing.T) {
	// VBR code 3: one 50-byte coded frame followed by one DTX frame.
	packet := make([]byte, 3+50)
	packet[0] = 0xFB // config 31, mono, code 3
	packet[1] = 0x82 // VBR, no padding, M=2
	packet[2] = 50   // First frame length; second frame gets the empty rest
	for i := 3; i < len(packet); i++ {
		packet[i] = byte(i * 7)
	}

	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 1920)
	n, err := dec.Decode(packet, pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 1920 {
		t.Errorf("samples: got %d, want 1920", n)
	}
	for i := 960; i < 1920; i++ {
		if pcm[i] != 0 {
			t.Fatalf("sample %d in DTX frame: got %v, want silence", i, pcm[i])
		}
	}
	if dec.FinalRange() == 0 {
		t.Error("FinalRange should reflect the coded frame, not the DTX frame")
	}
}

func TestDecodeMultiFrameCBR(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 1920)

	n, err := dec.Decode(celtCBR2Packet(), pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 1920 {
		t.Errorf("samples: got %d, want 1920", n)
	}
}

func TestDecodeSILKOnlySilentEngine(t *testing.T) {
	// The bundled SILK engine yields comfort silence, so a SILK-only packet
	// decodes to zeros of the right duration.
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)
	for i := range pcm {
		pcm[i] = 0.25
	}

	n, err := dec.Decode(silkWBPacket(), pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}
	for i, v := range pcm {
		if v != 0 {
			t.Fatalf("sample %d: got %v, want silence", i, v)
		}
	}
}

func TestDecodeHybrid(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)

	n, err := dec.Decode(hybridFBPacket(), pcm)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}
}

func TestDecodeBufferTooSmall(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)

	_, err := dec.Decode(testCELTPacket(), make([]float32, 959))
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("error: got %v, want ErrBufferTooSmall", err)
	}

	// The decoder survives the rejection.
	n, err := dec.Decode(testCELTPacket(), make([]float32, 960))
	if err != nil || n != 960 {
		t.Fatalf("decode after rejection: n=%d err=%v", n, err)
	}
}

func TestDecodePacketTooLarge(t *testing.T) {
	t.Run("byte_cap", func(t *testing.T) {
		cfg := DefaultDecoderConfig(48000, 1)
		cfg.MaxPacketBytes = 10
		dec, err := NewDecoder(cfg)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		_, err = dec.Decode(testCELTPacket(), make([]float32, 960))
		if !errors.Is(err, ErrPacketTooLarge) {
			t.Fatalf("error: got %v, want ErrPacketTooLarge", err)
		}
	})

	t.Run("sample_cap", func(t *testing.T) {
		cfg := DefaultDecoderConfig(48000, 1)
		cfg.MaxPacketSamples = 480 // 10ms cap, but the packet carries 20ms
		dec, err := NewDecoder(cfg)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		_, err = dec.Decode(testCELTPacket(), make([]float32, 960))
		if !errors.Is(err, ErrPacketTooLarge) {
			t.Fatalf("error: got %v, want ErrPacketTooLarge", err)
		}
	})
}

func TestDecodeMalformedThenRecover(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)

	malformed := [][]byte{
		{0x03, 0x00},             // Zero frame count
		{0x02},                   // Truncated code 2
		{0x01, 0xAA, 0xBB, 0xCC}, // Odd code 1 payload
	}
	for _, bad := range malformed {
		if _, err := dec.Decode(bad, pcm); err == nil {
			t.Fatalf("packet %x: expected error", bad)
		}
	}

	n, err := dec.Decode(testCELTPacket(), pcm)
	if err != nil {
		t.Fatalf("decode after malformed packets: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}
}

func TestDecodeInt16(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]int16, 960)

	n, err := dec.DecodeInt16(testCELTPacket(), pcm)
	if err != nil {
		t.Fatalf("DecodeInt16: %v", err)
	}
	if n != 960 {
		t.Errorf("samples: got %d, want 960", n)
	}

	// Concealment works through the int16 path too.
	n, err = dec.DecodeInt16(nil, pcm)
	if err != nil {
		t.Fatalf("DecodeInt16(nil): %v", err)
	}
	if n != 960 {
		t.Errorf("concealed samples: got %d, want 960", n)
	}
}

func TestDecodeInt16BufferTooSmall(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	_, err := dec.DecodeInt16(testCELTPacket(), make([]int16, 100))
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("error: got %v, want ErrBufferTooSmall", err)
	}
}

func TestDecodeAllocatingVariants(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 2)

	f32, err := dec.DecodeFloat32(testCELTPacket())
	if err != nil {
		t.Fatalf("DecodeFloat32: %v", err)
	}
	if len(f32) != 1920 {
		t.Errorf("DecodeFloat32 length: got %d, want 1920", len(f32))
	}

	i16, err := dec.DecodeInt16Slice(testCELTPacket())
	if err != nil {
		t.Fatalf("DecodeInt16Slice: %v", err)
	}
	if len(i16) != 1920 {
		t.Errorf("DecodeInt16Slice length: got %d, want 1920", len(i16))
	}

	if _, err := dec.DecodeFloat32([]byte{0x03, 0x00}); err == nil {
		t.Error("DecodeFloat32 accepted a malformed packet")
	}
}

func TestDecodeGain(t *testing.T) {
	packet := testCELTPacket()

	unity := mustNewDecoder(t, 48000, 1)
	ref := make([]float32, 960)
	if _, err := unity.Decode(packet, ref); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	cfg := DefaultDecoderConfig(48000, 1)
	cfg.Gain = 6 * 256 // +6 dB in Q7.8
	boosted, err := NewDecoder(cfg)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	out := make([]float32, 960)
	if _, err := boosted.Decode(packet, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	const wantRatio = 1.9952623 // 10^(6/20)
	for i := range ref {
		if ref[i] > -1e-4 && ref[i] < 1e-4 {
			continue
		}
		ratio := out[i] / ref[i]
		if ratio < wantRatio-0.01 || ratio > wantRatio+0.01 {
			t.Fatalf("sample %d: gain ratio %v, want ~%v", i, ratio, wantRatio)
		}
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	packet := testCELTPacket()

	fresh := mustNewDecoder(t, 48000, 1)
	want := make([]float32, 960)
	if _, err := fresh.Decode(packet, want); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	dec := mustNewDecoder(t, 48000, 1)
	scratch := make([]float32, 960)
	for i := 0; i < 3; i++ {
		if _, err := dec.Decode(celtCBR2Packet(), make([]float32, 1920)); err != nil {
			t.Fatalf("Decode: %v", err)
		}
	}
	dec.Reset()

	if _, err := dec.Decode(packet, scratch); err != nil {
		t.Fatalf("Decode after Reset: %v", err)
	}
	for i := range want {
		if scratch[i] != want[i] {
			t.Fatalf("sample %d after Reset: got %v, want %v", i, scratch[i], want[i])
		}
	}
}

func TestFinalRangeAfterConcealment(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)

	if _, err := dec.Decode(testCELTPacket(), pcm); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.FinalRange() == 0 {
		t.Fatal("FinalRange is zero after a coded packet")
	}

	if _, err := dec.Decode(nil, pcm); err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if dec.FinalRange() != 0 {
		t.Errorf("FinalRange after concealment: got %d, want 0", dec.FinalRange())
	}
}

func TestLostCount(t *testing.T) {
	dec := mustNewDecoder(t, 48000, 1)
	pcm := make([]float32, 960)

	if dec.LostCount() != 0 {
		t.Fatalf("initial LostCount: got %d, want 0", dec.LostCount())
	}

	if _, err := dec.Decode(testCELTPacket(), pcm); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := dec.Decode(nil, pcm); err != nil {
			t.Fatalf("Decode(nil) #%d: %v", i, err)
		}
		if dec.LostCount() != i {
			t.Errorf("LostCount after %d losses: got %d", i, dec.LostCount())
		}
	}

	if _, err := dec.Decode(testCELTPacket(), pcm); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.LostCount() != 0 {
		t.Errorf("LostCount after recovery: got %d, want 0", dec.LostCount())
	}
}

func TestConcealFreshDecoder(t *testing.T) {
	// Before any packet arrives, concealment assumes a 20ms frame.
	tests := []struct {
		rate string
		hz   int
		want int
	}{
		{"48k", 48000, 960},
		{"16k", 16000, 320},
		{"8k", 8000, 160},
	}

	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			dec := mustNewDecoder(t, tt.hz, 1)
			pcm := make([]float32, tt.want)
			n, err := dec.Decode(nil, pcm)
			if err != nil {
				t.Fatalf("Decode(nil): %v", err)
			}
			if n != tt.want {
				t.Errorf("samples: got %d, want %d", n, tt.want)
			}
		})
	}
}

func TestDecoderAccessors(t *testing.T) {
	dec := mustNewDecoder(t, 24000, 2)
	if dec.SampleRate() != 24000 {
		t.Errorf("SampleRate: got %d", dec.SampleRate())
	}
	if dec.Channels() != 2 {
		t.Errorf("Channels: got %d", dec.Channels())
	}
}
