package ogg

import (
	"bytes"
	"errors"
	"io"
)

// readerBufferSize is the initial page scan buffer. A page is at most
// 65307 bytes, so one buffer holds any legal page after compaction.
const readerBufferSize = 64 * 1024

// Reader extracts Opus packets from an Ogg Opus stream.
//
// NewReader consumes the identification and comment headers; each
// ReadPacket call then returns one audio packet, reassembling packets
// that span page boundaries. Pages from other logical bitstreams are
// ignored, and pages with checksum failures are skipped and counted.
type Reader struct {
	src io.Reader

	// Header is the parsed identification header.
	Header *OpusHead

	// Tags is the parsed comment header.
	Tags *OpusTags

	serial  uint32
	granule uint64
	eos     bool
	corrupt int

	// queue holds packets completed on the current page; partial is a
	// packet tail waiting for its continuation page.
	queue   [][]byte
	partial []byte

	buf []byte
	off int
	n   int
}

// NewReader reads the stream headers and positions the reader at the
// first audio packet.
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{
		src: src,
		buf: make([]byte, readerBufferSize),
	}

	page, err := r.readPage()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrUnexpectedEOS
		}
		return nil, err
	}
	if !page.IsBOS() {
		return nil, ErrInvalidPage
	}

	// The identification header must be the lone packet on the BOS
	// page and must not spill onto the next one.
	packets, complete := page.Packets()
	if len(packets) != 1 || !complete {
		return nil, ErrInvalidHeader
	}
	r.Header, err = ParseOpusHead(packets[0])
	if err != nil {
		return nil, err
	}
	r.serial = page.SerialNumber

	// The comment header follows immediately and may span pages.
	var tags []byte
	for {
		page, err = r.readPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrUnexpectedEOS
			}
			return nil, err
		}
		if page.SerialNumber != r.serial {
			continue
		}
		if page.IsContinuation() && len(tags) == 0 {
			return nil, ErrInvalidPage
		}
		tags = append(tags, page.Payload...)
		if _, complete := page.Packets(); complete {
			break
		}
	}
	r.Tags, err = ParseOpusTags(tags)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReadPacket returns the next audio packet and the granule position of
// its page. The granule counts 48 kHz samples completed by the end of
// that page, so every packet from one page reports the same value.
// io.EOF signals a clean end of stream.
func (r *Reader) ReadPacket() ([]byte, uint64, error) {
	for {
		if len(r.queue) > 0 {
			pkt := r.queue[0]
			r.queue = r.queue[1:]
			return pkt, r.granule, nil
		}
		if r.eos {
			return nil, 0, io.EOF
		}

		page, err := r.readPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eos = true
				if r.partial != nil {
					r.partial = nil
					return nil, 0, ErrUnexpectedEOS
				}
			}
			return nil, 0, err
		}
		if page.SerialNumber != r.serial {
			continue
		}
		if page.IsEOS() {
			r.eos = true
		}
		r.granule = page.GranulePos
		r.enqueue(page)
	}
}

// NextPacket returns the next audio packet, dropping the granule
// position. It satisfies the packet source contract of the PCM stream
// reader in the root package.
func (r *Reader) NextPacket() ([]byte, error) {
	pkt, _, err := r.ReadPacket()
	return pkt, err
}

// enqueue splits a page into packets, stitching the stored partial
// onto a continuation and holding back a packet that runs off the end
// of the page.
func (r *Reader) enqueue(page *Page) {
	packets, complete := page.Packets()
	if len(packets) == 0 {
		return
	}

	if page.IsContinuation() {
		if r.partial != nil {
			packets[0] = append(r.partial, packets[0]...)
			r.partial = nil
		} else {
			// Continuation of a packet whose start we never saw
			// (lost or corrupt page): drop the stub.
			packets = packets[1:]
		}
	} else if r.partial != nil {
		// The continuation page never arrived; the spanning packet is
		// unrecoverable.
		r.partial = nil
	}

	if !complete && len(packets) > 0 {
		r.partial = packets[len(packets)-1]
		packets = packets[:len(packets)-1]
	}

	for _, pkt := range packets {
		if len(pkt) == 0 {
			continue
		}
		r.queue = append(r.queue, pkt)
	}
}

// readPage scans the input for the next well-formed page. Bytes that
// do not start with the capture pattern are discarded, which resyncs
// the reader after junk or truncated writes; pages failing their
// checksum are skipped and counted.
func (r *Reader) readPage() (*Page, error) {
	for {
		for r.off < r.n {
			window := r.buf[r.off:r.n]
			if i := bytes.Index(window, []byte(oggMagic)); i < 0 {
				// No capture pattern in the window. Keep the last
				// three bytes in case the pattern straddles reads.
				if len(window) > 3 {
					r.off = r.n - 3
				}
				break
			} else if i > 0 {
				r.off += i
				window = r.buf[r.off:r.n]
			}

			page, consumed, err := ParsePage(window)
			switch {
			case err == nil:
				r.off += consumed
				return page, nil
			case errors.Is(err, ErrBadCRC):
				r.off += consumed
				r.corrupt++
			case errors.Is(err, ErrInvalidPage):
				// False capture pattern; resume the scan past it.
				r.off++
			default:
				// Short page: refill the buffer.
				goto fill
			}
		}

	fill:
		if r.off > 0 {
			r.n = copy(r.buf, r.buf[r.off:r.n])
			r.off = 0
		}
		if r.n == len(r.buf) {
			grown := make([]byte, 2*len(r.buf))
			copy(grown, r.buf[:r.n])
			r.buf = grown
		}

		m, err := r.src.Read(r.buf[r.n:])
		r.n += m
		if m == 0 && err != nil {
			return nil, err
		}
	}
}

// PreSkip returns the 48 kHz sample count to discard from the start of
// decoded output.
func (r *Reader) PreSkip() uint16 {
	if r.Header == nil {
		return 0
	}
	return r.Header.PreSkip
}

// Channels returns the output channel count from the identification
// header.
func (r *Reader) Channels() uint8 {
	if r.Header == nil {
		return 0
	}
	return r.Header.Channels
}

// SampleRate returns the original input rate recorded in the
// identification header. Informational: decoding runs at 48 kHz.
func (r *Reader) SampleRate() uint32 {
	if r.Header == nil {
		return 0
	}
	return r.Header.SampleRate
}

// OutputGain returns the Q7.8 dB gain from the identification header.
func (r *Reader) OutputGain() int16 {
	if r.Header == nil {
		return 0
	}
	return r.Header.OutputGain
}

// GranulePos returns the granule position of the most recent page.
func (r *Reader) GranulePos() uint64 { return r.granule }

// EOF reports whether the end-of-stream page has been reached. Queued
// packets from that page may still be pending.
func (r *Reader) EOF() bool { return r.eos }

// Serial returns the logical bitstream serial number.
func (r *Reader) Serial() uint32 { return r.serial }

// CorruptPages returns how many pages were dropped for checksum
// failures.
func (r *Reader) CorruptPages() int { return r.corrupt }
