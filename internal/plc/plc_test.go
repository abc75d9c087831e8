package plc

import (
	"math"
	"testing"
)

func TestRecordLossFade(t *testing.T) {
	s := NewState()
	want := 1.0
	for i := 1; i <= 9; i++ {
		want *= FadePerFrame
		got := s.RecordLoss()
		if got != want {
			t.Fatalf("loss %d: fade %v, want %v", i, got, want)
		}
	}
	// The tenth halving crosses the audibility floor and snaps to zero.
	if got := s.RecordLoss(); got != 0 {
		t.Fatalf("loss 10: fade %v, want 0", got)
	}
	if s.LostCount() != 10 {
		t.Errorf("LostCount = %d, want 10", s.LostCount())
	}
	if s.FadeFactor() != 0 {
		t.Errorf("FadeFactor = %v, want 0", s.FadeFactor())
	}
}

func TestResetKeepsFrameParams(t *testing.T) {
	s := NewState()
	s.SetLastFrameParams(ModeCELT, 480, 2)
	s.RecordLoss()
	s.RecordLoss()

	s.Reset()
	if s.LostCount() != 0 || s.FadeFactor() != 1.0 {
		t.Errorf("after reset: count=%d fade=%v", s.LostCount(), s.FadeFactor())
	}
	if s.Mode() != ModeCELT || s.LastFrameSize() != 480 || s.LastChannels() != 2 {
		t.Errorf("frame parameters lost on reset: mode=%v size=%d channels=%d",
			s.Mode(), s.LastFrameSize(), s.LastChannels())
	}
}

func TestIsExhausted(t *testing.T) {
	s := NewState()
	if s.IsExhausted() {
		t.Error("fresh state reports exhausted")
	}
	for i := 0; i < MaxConcealedFrames; i++ {
		s.RecordLoss()
	}
	if !s.IsExhausted() {
		t.Errorf("still active after %d losses", MaxConcealedFrames)
	}

	var zero State
	if !zero.IsExhausted() {
		t.Error("zero value should be exhausted until reset")
	}
	zero.Reset()
	if zero.IsExhausted() {
		t.Error("reset state reports exhausted")
	}
}

func TestZeroValueDefaults(t *testing.T) {
	var s State
	if s.LastFrameSize() != 960 {
		t.Errorf("LastFrameSize = %d, want 960", s.LastFrameSize())
	}
	if s.LastChannels() != 1 {
		t.Errorf("LastChannels = %d, want 1", s.LastChannels())
	}
	if s.Mode() != ModeSILK {
		t.Errorf("Mode = %v, want ModeSILK", s.Mode())
	}
}

func TestDecayEnergies(t *testing.T) {
	energies := []float64{0, -27.8, 5}
	DecayEnergies(energies, 1)
	want := []float64{-EnergyDecayFirst, EnergyFloor, 5 - EnergyDecayFirst}
	for i := range want {
		if energies[i] != want[i] {
			t.Errorf("first loss band %d: %v, want %v", i, energies[i], want[i])
		}
	}

	DecayEnergies(energies, 2)
	want = []float64{-EnergyDecayFirst - EnergyDecayNext, EnergyFloor, 5 - EnergyDecayFirst - EnergyDecayNext}
	for i := range want {
		if energies[i] != want[i] {
			t.Errorf("second loss band %d: %v, want %v", i, energies[i], want[i])
		}
	}
}

func TestNoiseFillDeterministic(t *testing.T) {
	a := make([]float64, 64)
	b := make([]float64, 64)

	seedA := uint32(12345)
	NoiseFill(a, &seedA)
	seedB := uint32(12345)
	NoiseFill(b, &seedB)

	if seedA != seedB {
		t.Fatalf("seeds diverged: %d vs %d", seedA, seedB)
	}
	if seedA == 12345 {
		t.Fatal("seed did not advance")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
		if math.Abs(a[i]) > 1 {
			t.Fatalf("sample %d out of range: %v", i, a[i])
		}
	}

	// Splitting one fill in two with a carried seed yields the same stream.
	c := make([]float64, 64)
	seedC := uint32(12345)
	NoiseFill(c[:32], &seedC)
	NoiseFill(c[32:], &seedC)
	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("split fill diverged at %d: %v vs %v", i, a[i], c[i])
		}
	}

	// First draw follows the reference generator exactly.
	seed := uint32(12345)
	r := seed*1664525 + 1013904223
	if wantFirst := float64(int32(r)) * (1.0 / 2147483648.0); a[0] != wantFirst {
		t.Errorf("first sample %v, want %v", a[0], wantFirst)
	}
}
