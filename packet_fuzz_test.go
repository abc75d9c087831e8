package opusdec

import "testing"

func FuzzParsePacket_NoPanic(f *testing.F) {
	f.Add([]byte{0xF8, 0x11, 0x22, 0x33})
	f.Add([]byte{0x00, 0x10})
	f.Add([]byte{0x03, 0x02, 0x10, 0x20})
	f.Add([]byte{0x03, 0x82, 30, 0x10})
	f.Add([]byte{0x02, 252, 1})
	f.Add([]byte{0x83, 0x80 | 48})
	f.Add([]byte{0x03, 0x42, 255, 255, 10})

	f.Fuzz(func(t *testing.T, data []byte) {
		pkt, err := ParsePacket(data)
		if len(data) > 0 {
			_ = ParseTOC(data[0])
		}
		if err != nil {
			if pkt != nil {
				t.Fatal("non-nil packet alongside error")
			}
			return
		}

		count := pkt.FrameCount()
		if count < 1 || count > MaxFramesPerPacket {
			t.Fatalf("invalid frame count: %d", count)
		}
		if pkt.TOC.FrameSize*count > maxPacketSamples48k {
			t.Fatalf("packet exceeds 120ms: %d frames of %d samples", count, pkt.TOC.FrameSize)
		}

		// Every frame view must lie within the packet payload, may be
		// empty (DTX), and must never exceed the per-frame byte cap.
		payload := len(data) - 1
		total := 0
		for i, frame := range pkt.Frames {
			if len(frame) > MaxFrameBytes {
				t.Fatalf("frame %d: %d bytes exceeds cap", i, len(frame))
			}
			total += len(frame)
		}
		if total+pkt.Padding > payload {
			t.Fatalf("frames (%d) + padding (%d) exceed payload (%d)", total, pkt.Padding, payload)
		}
		if pkt.TotalSize != len(data) {
			t.Fatalf("TotalSize %d != packet length %d", pkt.TotalSize, len(data))
		}
	})
}
