// Package ogg reads Opus audio from Ogg containers.
//
// It implements the read side of RFC 3533 (the Ogg encapsulation
// format) and RFC 7845 (Ogg encapsulation for Opus): page parsing with
// checksum verification, the OpusHead and OpusTags headers, and packet
// reassembly across page boundaries. Reader is the high-level entry
// point; ParsePage, ParseOpusHead and ParseOpusTags expose the pieces.
// Page and header serialization is provided for building fixtures and
// remuxing tools, not for encoding audio.
//
// # Pages
//
// An Ogg stream is a sequence of pages, each framed as:
//
//	Bytes 0-3:   "OggS" capture pattern
//	Byte 4:      Stream structure version (0)
//	Byte 5:      Flags (continuation, BOS, EOS)
//	Bytes 6-13:  Granule position
//	Bytes 14-17: Bitstream serial number
//	Bytes 18-21: Page sequence number
//	Bytes 22-25: CRC-32 checksum
//	Byte 26:     Segment count
//	Bytes 27+:   Segment table, then payload
//
// Packets are laced into segments of up to 255 bytes. A segment of 255
// means the packet continues in the next segment (possibly on the next
// page); a shorter segment ends it. The checksum uses polynomial
// 0x04C11DB7 without reflection, which is not the IEEE CRC-32.
//
// For Opus the granule position counts 48 kHz PCM samples completed by
// the end of the page, regardless of the rate the stream is decoded
// at.
//
// # Stream layout
//
// The first page of a logical stream carries exactly one packet, the
// OpusHead identification header: channel count, pre-skip, original
// sample rate, output gain and the channel mapping family. The comment
// header OpusTags follows on its own page(s). Audio packets start on
// the next page. A decoder discards PreSkip samples from the start of
// its output and applies OutputGain; both come from OpusHead.
package ogg
