package celt

import (
	"math"
	"testing"
)

// Reference values from libopus celt/tests/test_unit_mathops.c.
func TestBitexactCosReferenceValues(t *testing.T) {
	cases := []struct {
		x, want int
	}{
		{0, 32768},
		{64, 32767},
		{8192, 23171},
		{16320, 200},
		{16384, 16554},
	}
	for _, tc := range cases {
		if got := bitexactCos(tc.x); got != tc.want {
			t.Errorf("bitexactCos(%d) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestBitexactLog2tanReferenceValues(t *testing.T) {
	cases := []struct {
		isin, icos, want int
	}{
		{23171, 23171, 0},
		{32767, 200, 15059},
		{30274, 12540, 2611},
	}
	for _, tc := range cases {
		if got := bitexactLog2tan(tc.isin, tc.icos); got != tc.want {
			t.Errorf("bitexactLog2tan(%d, %d) = %d, want %d", tc.isin, tc.icos, got, tc.want)
		}
	}
}

func TestCeltUdiv(t *testing.T) {
	if got := celtUdiv(100, 7); got != 14 {
		t.Errorf("celtUdiv(100, 7) = %d, want 14", got)
	}
	if got := celtUdiv(0, 5); got != 0 {
		t.Errorf("celtUdiv(0, 5) = %d, want 0", got)
	}
	if got := celtUdiv(5, 0); got != 0 {
		t.Errorf("celtUdiv(5, 0) = %d, want 0", got)
	}
	if got := celtUdiv(-9, 3); got != 0 {
		t.Errorf("celtUdiv(-9, 3) = %d, want 0", got)
	}
	if got := celtSudiv(-100, 7); got != -14 {
		t.Errorf("celtSudiv(-100, 7) = %d, want -14", got)
	}
	if got := celtSudiv(100, 7); got != 14 {
		t.Errorf("celtSudiv(100, 7) = %d, want 14", got)
	}
}

func TestFracMul16(t *testing.T) {
	cases := []struct {
		a, b, want int
	}{
		{0, 12345, 0},
		{16384, 16384, 8192},
		{32767, 32767, 32766},
		{-16384, 16384, -8192},
	}
	for _, tc := range cases {
		if got := fracMul16(tc.a, tc.b); got != tc.want {
			t.Errorf("fracMul16(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsqrt32(t *testing.T) {
	cases := []struct {
		val, want uint32
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{4, 2},
		{99, 9},
		{144, 12},
		{1000000, 1000},
		{1 << 30, 1 << 15},
		{math.MaxUint32, 65535},
	}
	for _, tc := range cases {
		if got := isqrt32(tc.val); got != tc.want {
			t.Errorf("isqrt32(%d) = %d, want %d", tc.val, got, tc.want)
		}
	}
}

func TestIlog32(t *testing.T) {
	cases := []struct {
		val  uint32
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{0x8000, 16},
		{0xffffffff, 32},
	}
	for _, tc := range cases {
		if got := ilog32(tc.val); got != tc.want {
			t.Errorf("ilog32(%#x) = %d, want %d", tc.val, got, tc.want)
		}
	}
}

func TestCeltExp2MatchesMath(t *testing.T) {
	for x := float32(-10); x <= 10; x += 0.5 {
		want := math.Exp2(float64(x))
		got := float64(celtExp2(x))
		if math.Abs(got-want)/want > 1e-5 {
			t.Errorf("celtExp2(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestCeltLog2MatchesMath(t *testing.T) {
	for _, x := range []float32{0.001, 0.01, 0.5, 1, 1.5, 2, 3.7, 10, 100, 12345} {
		want := math.Log2(float64(x))
		got := float64(celtLog2(x))
		if math.Abs(got-want) > 1e-4 {
			t.Errorf("celtLog2(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestCeltExp2Log2RoundTrip(t *testing.T) {
	for x := float32(-8); x <= 8; x += 0.25 {
		back := celtLog2(celtExp2(x))
		if math.Abs(float64(back-x)) > 1e-3 {
			t.Errorf("log2(exp2(%v)) = %v", x, back)
		}
	}
}
