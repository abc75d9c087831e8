package rangecoding

// Decoder reads symbols from a range-coded bitstream as specified in
// RFC 6716 Section 4.1. The zero value is unusable; call Init first.
//
// Methods never panic on truncated input. Once the buffer is exhausted the
// decoder keeps producing symbols driven by zero bytes, exactly like the
// reference implementation, and the frame-level caller detects the overrun
// through Tell.
type Decoder struct {
	buf     []byte
	storage uint32

	// Front reader: range-coded symbols.
	offs uint32
	rng  uint32
	val  uint32
	rem  uint32
	// ext carries the scale factor between Decode and Update.
	ext uint32

	// Back reader: raw bits, LSB first from the final byte.
	endOffs   uint32
	endWindow uint32
	nendBits  int

	nbitsTotal int
	err        bool
}

// Init resets the decoder to read from data. The slice is retained, not
// copied; the caller must not mutate it while decoding.
func (d *Decoder) Init(data []byte) {
	d.buf = data
	d.storage = uint32(len(data))
	d.offs = 0
	d.endOffs = 0
	d.endWindow = 0
	d.nendBits = 0
	// The initial code word is charged in full even though only codeExtra of
	// its bits carry information.
	d.nbitsTotal = codeBits + 1 - ((codeBits-codeExtra)/symBits)*symBits
	d.err = false
	d.rng = 1 << codeExtra
	d.rem = uint32(d.readByte())
	d.val = d.rng - 1 - (d.rem >> (symBits - codeExtra))
	d.normalize()
}

func (d *Decoder) readByte() byte {
	if d.offs < d.storage {
		b := d.buf[d.offs]
		d.offs++
		return b
	}
	return 0
}

func (d *Decoder) readByteFromEnd() byte {
	if d.endOffs < d.storage {
		d.endOffs++
		return d.buf[d.storage-d.endOffs]
	}
	return 0
}

// normalize refills rng to more than codeBot, shifting fresh bits into val.
// The bits that straddle byte boundaries live in rem between calls.
func (d *Decoder) normalize() {
	for d.rng <= codeBot {
		d.nbitsTotal += symBits
		d.rng <<= symBits
		sym := d.rem<<symBits | uint32(d.readByte())
		d.rem = sym & symMax
		sym >>= symBits - codeExtra
		d.val = ((d.val << symBits) + (symMax &^ sym)) & (codeTop - 1)
	}
}

// Decode returns the cumulative frequency of the next symbol, scaled to a
// total of ft. The caller maps it back to a symbol and finishes with Update.
func (d *Decoder) Decode(ft uint32) uint32 {
	d.ext = d.rng / ft
	s := d.val / d.ext
	s++
	if s > ft {
		s = ft
	}
	return ft - s
}

// DecodeBin is Decode with ft = 1<<bits, trading the division for a shift.
func (d *Decoder) DecodeBin(bits uint) uint32 {
	d.ext = d.rng >> bits
	s := d.val/d.ext + 1
	ft := uint32(1) << bits
	if s > ft {
		s = ft
	}
	return ft - s
}

// Update advances the state once the caller has resolved the frequency from
// Decode or DecodeBin to the symbol spanning [fl, fh) out of ft.
func (d *Decoder) Update(fl, fh, ft uint32) {
	s := d.ext * (ft - fh)
	d.val -= s
	if fl > 0 {
		d.rng = d.ext * (fh - fl)
	} else {
		d.rng -= s
	}
	d.normalize()
}

// DecodeICDF decodes one symbol against an inverse CDF table whose total is
// 1<<ftb. Entry k holds the frequency mass above symbol k, so tables end in 0.
func (d *Decoder) DecodeICDF(icdf []uint8, ftb uint) int {
	t := d.rng
	scale := d.rng >> ftb
	ret := -1
	s := t
	for {
		ret++
		t = s
		s = scale * uint32(icdf[ret])
		if d.val < s {
			continue
		}
		break
	}
	d.val -= s
	d.rng = t - s
	d.normalize()
	return ret
}

// DecodeICDF16 is DecodeICDF over a 16-bit table.
func (d *Decoder) DecodeICDF16(icdf []uint16, ftb uint) int {
	t := d.rng
	scale := d.rng >> ftb
	ret := -1
	s := t
	for {
		ret++
		t = s
		s = scale * uint32(icdf[ret])
		if d.val < s {
			continue
		}
		break
	}
	d.val -= s
	d.rng = t - s
	d.normalize()
	return ret
}

// DecodeBit decodes one binary symbol whose probability of being 1 is
// 1/2^logp.
func (d *Decoder) DecodeBit(logp uint) int {
	r := d.rng
	s := r >> logp
	ret := 0
	if d.val < s {
		ret = 1
		d.rng = s
	} else {
		d.val -= s
		d.rng = r - s
	}
	d.normalize()
	return ret
}

// DecodeUniform decodes an integer uniformly distributed over [0, ft).
// Values needing more than uintBits bits split into a range-coded high part
// and raw low bits. Requires ft > 1.
func (d *Decoder) DecodeUniform(ft uint32) uint32 {
	ft--
	ftb := uint(ilog(ft))
	if ftb > uintBits {
		ftb -= uintBits
		ft1 := (ft >> ftb) + 1
		s := d.Decode(ft1)
		d.Update(s, s+1, ft1)
		t := s<<ftb | d.DecodeRawBits(ftb)
		if t <= ft {
			return t
		}
		d.err = true
		return ft
	}
	ft++
	s := d.Decode(ft)
	d.Update(s, s+1, ft)
	return s
}

// DecodeRawBits reads bits from the back of the buffer, LSB first.
// Requires bits <= 25.
func (d *Decoder) DecodeRawBits(bits uint) uint32 {
	window := d.endWindow
	avail := d.nendBits
	if uint(avail) < bits {
		for avail <= windowSize-symBits {
			window |= uint32(d.readByteFromEnd()) << uint(avail)
			avail += symBits
		}
	}
	ret := window & (1<<bits - 1)
	window >>= bits
	avail -= int(bits)
	d.endWindow = window
	d.nendBits = avail
	d.nbitsTotal += int(bits)
	return ret
}

// Tell returns the number of bits consumed so far, rounding partial bits up.
// The first symbol always costs at least one bit.
func (d *Decoder) Tell() int {
	return d.nbitsTotal - ilog(d.rng)
}

// TellFrac is Tell with 1/8 bit resolution, returned in units of 1/8 bit.
func (d *Decoder) TellFrac() int {
	nbits := d.nbitsTotal << 3
	l := ilog(d.rng)
	r := d.rng >> uint(l-16)
	b := (r >> 12) - 8
	if r > tellFracCorrection[b] {
		b++
	}
	l = l<<3 | int(b)
	return nbits - l
}

// Range exposes the range register. After the last symbol of a frame it is
// the value both ends compare to detect transmission errors.
func (d *Decoder) Range() uint32 {
	return d.rng
}

// StorageBits returns the size of the underlying buffer in bits.
func (d *Decoder) StorageBits() int {
	return int(d.storage) * 8
}

// Err reports whether an impossible symbol was decoded. Only corrupt input
// to DecodeUniform can set it.
func (d *Decoder) Err() bool {
	return d.err
}

// ShrinkStorage removes bytes from the back of the buffer so later raw-bit
// reads stop short of them. Opus stores the redundant CELT stream of a hybrid
// frame in the trailing bytes; the main decoder must not consume it. Must be
// called before any raw bits are read.
func (d *Decoder) ShrinkStorage(bytes int) {
	if bytes < 0 || uint32(bytes) > d.storage-d.endOffs {
		return
	}
	d.storage -= uint32(bytes)
}
