package celt

// bandScratch holds reusable buffers for band decoding. The zero value is
// ready to use; buffers grow on demand and are retained between frames.
type bandScratch struct {
	left        []float64
	right       []float64
	norm        []float64
	lowband     []float64
	hadamardTmp []float64
	collapse    []byte
	pvqPulses   []int
	cwrsU       []uint32
}

// imdctScratch holds reusable buffers for the inverse MDCT. The zero value
// is ready to use.
type imdctScratch struct {
	work []kissCpx
	buf  []float32
	out  []float32
}

// ensureSlice resizes *buf to exactly n elements, reallocating only when the
// capacity is too small. Contents are not cleared; callers that need zeroed
// memory clear the returned slice themselves.
func ensureSlice[T any](buf *[]T, n int) []T {
	if n < 0 {
		n = 0
	}
	if cap(*buf) < n {
		*buf = make([]T, n)
	} else {
		*buf = (*buf)[:n]
	}
	return *buf
}

func ensureFloat64(buf *[]float64, n int) []float64 { return ensureSlice(buf, n) }

func ensureFloat32(buf *[]float32, n int) []float32 { return ensureSlice(buf, n) }

func ensureByte(buf *[]byte, n int) []byte { return ensureSlice(buf, n) }

func ensureInt(buf *[]int, n int) []int { return ensureSlice(buf, n) }

func ensureUint32(buf *[]uint32, n int) []uint32 { return ensureSlice(buf, n) }

func ensureKissCpx(buf *[]kissCpx, n int) []kissCpx { return ensureSlice(buf, n) }
