package rangecoding

// Encoder writes symbols to a range-coded bitstream, mirroring Decoder
// operation for operation. The decoder is what production code uses; the
// encoder exists so tests can build bitstreams with known contents.
type Encoder struct {
	buf     []byte
	storage uint32

	offs uint32
	rng  uint32
	val  uint32
	// rem buffers one output byte for carry propagation, -1 when empty.
	rem int
	// ext counts pending 0xFF bytes that may still absorb a carry.
	ext uint32

	endOffs   uint32
	endWindow uint32
	nendBits  int

	nbitsTotal int
	err        bool
}

// Init prepares the encoder to write into buf. The buffer caps the output
// size; Done reports an error through Err if it overflows.
func (e *Encoder) Init(buf []byte) {
	e.buf = buf
	e.storage = uint32(len(buf))
	e.offs = 0
	e.endOffs = 0
	e.endWindow = 0
	e.nendBits = 0
	e.nbitsTotal = codeBits + 1
	e.rng = codeTop
	e.val = 0
	e.rem = -1
	e.ext = 0
	e.err = false
}

func (e *Encoder) writeByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = true
		return
	}
	e.buf[e.offs] = b
	e.offs++
}

func (e *Encoder) writeByteAtEnd(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = true
		return
	}
	e.endOffs++
	e.buf[e.storage-e.endOffs] = b
}

// carryOut emits one symbol of the code word. A 0xFF symbol cannot be
// written yet because a later carry could still ripple through it, so those
// are counted in ext and flushed when the next lower symbol settles them.
func (e *Encoder) carryOut(c int) {
	if c != symMax {
		carry := c >> symBits
		if e.rem >= 0 {
			e.writeByte(byte(e.rem + carry))
		}
		if e.ext > 0 {
			sym := byte((symMax + carry) & symMax)
			for e.ext > 0 {
				e.writeByte(sym)
				e.ext--
			}
		}
		e.rem = c & symMax
	} else {
		e.ext++
	}
}

func (e *Encoder) normalize() {
	for e.rng <= codeBot {
		e.carryOut(int(e.val >> codeShift))
		e.val = (e.val << symBits) & (codeTop - 1)
		e.rng <<= symBits
		e.nbitsTotal += symBits
	}
}

// Encode narrows the interval to the symbol spanning [fl, fh) out of ft.
func (e *Encoder) Encode(fl, fh, ft uint32) {
	r := e.rng / ft
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBin is Encode with ft = 1<<bits.
func (e *Encoder) EncodeBin(fl, fh uint32, bits uint) {
	r := e.rng >> bits
	ft := uint32(1) << bits
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeICDF encodes symbol s against the same inverse CDF table the decoder
// uses with DecodeICDF.
func (e *Encoder) EncodeICDF(s int, icdf []uint8, ftb uint) {
	r := e.rng >> ftb
	if s > 0 {
		e.val += e.rng - r*uint32(icdf[s-1])
		e.rng = r * uint32(icdf[s-1]-icdf[s])
	} else {
		e.rng -= r * uint32(icdf[s])
	}
	e.normalize()
}

// EncodeICDF16 is EncodeICDF over a 16-bit table.
func (e *Encoder) EncodeICDF16(s int, icdf []uint16, ftb uint) {
	r := e.rng >> ftb
	if s > 0 {
		e.val += e.rng - r*uint32(icdf[s-1])
		e.rng = r * uint32(icdf[s-1]-icdf[s])
	} else {
		e.rng -= r * uint32(icdf[s])
	}
	e.normalize()
}

// EncodeBit encodes one binary symbol whose probability of being 1 is
// 1/2^logp.
func (e *Encoder) EncodeBit(bit int, logp uint) {
	r := e.rng
	s := r >> logp
	r -= s
	if bit != 0 {
		e.val += r
		e.rng = s
	} else {
		e.rng = r
	}
	e.normalize()
}

// EncodeUniform encodes a value uniformly distributed over [0, ft).
// Requires ft > 1.
func (e *Encoder) EncodeUniform(fl, ft uint32) {
	ft--
	ftb := uint(ilog(ft))
	if ftb > uintBits {
		ftb -= uintBits
		ft1 := (ft >> ftb) + 1
		f := fl >> ftb
		e.Encode(f, f+1, ft1)
		e.EncodeRawBits(fl&(1<<ftb-1), ftb)
		return
	}
	ft++
	e.Encode(fl, fl+1, ft)
}

// EncodeRawBits appends bits at the back of the buffer, LSB first.
// Requires bits <= 25.
func (e *Encoder) EncodeRawBits(fl uint32, bits uint) {
	window := e.endWindow
	used := e.nendBits
	if used+int(bits) > windowSize {
		for used >= symBits {
			e.writeByteAtEnd(byte(window & symMax))
			window >>= symBits
			used -= symBits
		}
	}
	window |= fl << uint(used)
	used += int(bits)
	e.endWindow = window
	e.nendBits = used
	e.nbitsTotal += int(bits)
}

// Done flushes the code word and compacts front and back regions into a
// contiguous packet, returned as a prefix of the Init buffer. The encoder
// must be re-initialized before further use.
func (e *Encoder) Done() []byte {
	// Emit just enough of val to pin the interval no matter what follows.
	l := codeBits - ilog(e.rng)
	msk := (codeTop - 1) >> uint(l)
	end := (e.val + msk) &^ msk
	if end|msk >= e.val+e.rng {
		l++
		msk >>= 1
		end = (e.val + msk) &^ msk
	}
	for l > 0 {
		e.carryOut(int(end >> codeShift))
		end = (end << symBits) & (codeTop - 1)
		l -= symBits
	}
	if e.rem >= 0 || e.ext > 0 {
		e.carryOut(0)
	}

	window := e.endWindow
	used := e.nendBits
	for used >= symBits {
		e.writeByteAtEnd(byte(window & symMax))
		window >>= symBits
		used -= symBits
	}
	if e.err {
		return e.buf[:e.storage]
	}

	for i := e.offs; i < e.storage-e.endOffs; i++ {
		e.buf[i] = 0
	}
	size := e.offs + e.endOffs
	if used > 0 {
		if size < e.storage {
			e.buf[e.offs] = byte(window)
			size++
		} else if e.endOffs >= e.storage {
			e.err = true
		} else {
			// The leftover bits must share the final byte with range coder
			// data; that only works if the coder left them room.
			if -l < used {
				window &= 1<<uint(-l) - 1
				e.err = true
			}
			e.buf[e.storage-e.endOffs-1] |= byte(window)
		}
	}
	if e.endOffs > 0 {
		copy(e.buf[size-e.endOffs:size], e.buf[e.storage-e.endOffs:e.storage])
	}
	return e.buf[:size]
}

// Tell returns the number of bits written so far, rounding partial bits up.
func (e *Encoder) Tell() int {
	return e.nbitsTotal - ilog(e.rng)
}

// TellFrac is Tell with 1/8 bit resolution, returned in units of 1/8 bit.
func (e *Encoder) TellFrac() int {
	nbits := e.nbitsTotal << 3
	l := ilog(e.rng)
	r := e.rng >> uint(l-16)
	b := (r >> 12) - 8
	if r > tellFracCorrection[b] {
		b++
	}
	l = l<<3 | int(b)
	return nbits - l
}

// Range exposes the range register for final-range comparisons.
func (e *Encoder) Range() uint32 {
	return e.rng
}

// StorageBits returns the size of the output buffer in bits.
func (e *Encoder) StorageBits() int {
	return int(e.storage) * 8
}

// Err reports whether the output buffer overflowed.
func (e *Encoder) Err() bool {
	return e.err
}
