package ogg

import "errors"

// Package-level errors for Ogg stream parsing.
var (
	// ErrInvalidPage indicates a malformed page: missing "OggS"
	// capture pattern or an unknown stream structure version.
	ErrInvalidPage = errors.New("ogg: invalid page structure")

	// ErrShortPage indicates the data ends before the page does. The
	// prefix may still become a valid page once more bytes arrive.
	ErrShortPage = errors.New("ogg: truncated page")

	// ErrBadCRC indicates the page checksum does not match the
	// computed value, typically from data corruption.
	ErrBadCRC = errors.New("ogg: CRC mismatch")

	// ErrInvalidHeader indicates a malformed OpusHead or OpusTags
	// header: wrong magic, unsupported version, or truncated fields.
	ErrInvalidHeader = errors.New("ogg: invalid Opus header")

	// ErrUnsupportedMapping indicates a channel mapping family this
	// reader does not handle (ambisonics families 2 and 3).
	ErrUnsupportedMapping = errors.New("ogg: unsupported channel mapping family")

	// ErrUnexpectedEOS indicates the stream ended mid-headers or with
	// a packet still spanning onto a page that never arrived.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")
)
