// Package opusdec implements an RFC 6716 Opus audio decoder in pure Go.
//
// Opus is a lossy audio codec designed for interactive speech and music
// transmission. It supports bitrates from 6 to 510 kbit/s, sampling rates
// from 8 to 48 kHz, and frame sizes from 2.5 to 60 ms.
//
// The decoder follows RFC 6716 and is bit-compatible with the reference
// libopus implementation for CELT-coded packets. It requires no cgo.
//
// # Opus Modes
//
// Opus operates in three modes:
//   - SILK: speech-optimized, 8-16 kHz audio bandwidth
//   - CELT: audio-optimized, up to full 48 kHz sampling
//   - Hybrid: SILK for low frequencies + CELT above 8 kHz
//
// The mode is determined by the TOC byte in each packet. All three modes
// share the packet layer and the range decoder; SILK synthesis is pluggable
// and defaults to comfort silence, so CELT and hybrid streams carry the
// audio path.
//
// # Packet Structure
//
// Each Opus packet starts with a TOC (Table of Contents) byte:
//   - Bits 7-3: Configuration (0-31)
//   - Bit 2: Stereo flag
//   - Bits 1-0: Frame count code (0-3)
//
// Use ParseTOC to extract these fields, and ParsePacket to split a packet
// into frames with the validation rules from RFC 6716 section 3.4.
//
// # Decoding
//
//	cfg := opusdec.DefaultDecoderConfig(48000, 2)
//	dec, err := opusdec.NewDecoder(cfg)
//	if err != nil { ... }
//	pcm := make([]float32, cfg.MaxPacketSamples*cfg.Channels)
//	n, err := dec.Decode(packet, pcm)
//
// Decode writes interleaved float32 samples and reports the sample count
// per channel. Passing a nil packet runs packet loss concealment for one
// frame. The hot path performs no allocations after construction.
package opusdec
