package celt

import (
	"math"
	"testing"
)

func TestEBandsLayout(t *testing.T) {
	if len(EBands) != MaxBands+1 {
		t.Fatalf("EBands has %d entries, want %d", len(EBands), MaxBands+1)
	}
	if EBands[0] != 0 {
		t.Errorf("EBands[0] = %d, want 0", EBands[0])
	}
	if EBands[MaxBands] != 100 {
		t.Errorf("EBands[%d] = %d, want 100", MaxBands, EBands[MaxBands])
	}
	for i := 1; i < len(EBands); i++ {
		if EBands[i] <= EBands[i-1] {
			t.Errorf("EBands not increasing at %d: %d <= %d", i, EBands[i], EBands[i-1])
		}
	}
}

func TestScaledBandHelpers(t *testing.T) {
	for _, frameSize := range []int{120, 240, 480, 960} {
		lm := FrameSizeToLM(frameSize)
		for b := 0; b < MaxBands; b++ {
			if got, want := ScaledBandStart(b, frameSize), EBands[b]<<lm; got != want {
				t.Fatalf("frameSize=%d band=%d: start %d, want %d", frameSize, b, got, want)
			}
			if got, want := ScaledBandEnd(b, frameSize), ScaledBandStart(b+1, frameSize); got != want {
				t.Fatalf("frameSize=%d band=%d: end %d, want next start %d", frameSize, b, got, want)
			}
			if got, want := ScaledBandWidth(b, frameSize), BandWidth(b)<<lm; got != want {
				t.Fatalf("frameSize=%d band=%d: width %d, want %d", frameSize, b, got, want)
			}
		}
		// The coded bands always span 100 bins per short MDCT.
		if got, want := ScaledBandEnd(MaxBands-1, frameSize), 100<<lm; got != want {
			t.Fatalf("frameSize=%d: top band ends at %d, want %d", frameSize, got, want)
		}
	}
}

func TestModeConfigs(t *testing.T) {
	cases := []struct {
		frameSize, lm, shortBlocks int
	}{
		{120, 0, 1},
		{240, 1, 2},
		{480, 2, 4},
		{960, 3, 8},
	}
	for _, tc := range cases {
		cfg := GetModeConfig(tc.frameSize)
		if cfg.LM != tc.lm || cfg.ShortBlocks != tc.shortBlocks {
			t.Errorf("frameSize=%d: LM=%d ShortBlocks=%d, want %d/%d",
				tc.frameSize, cfg.LM, cfg.ShortBlocks, tc.lm, tc.shortBlocks)
		}
		if cfg.ShortBlocks != 1<<cfg.LM {
			t.Errorf("frameSize=%d: ShortBlocks %d != 1<<LM", tc.frameSize, cfg.ShortBlocks)
		}
		if cfg.MDCTSize != tc.frameSize {
			t.Errorf("frameSize=%d: MDCTSize %d", tc.frameSize, cfg.MDCTSize)
		}
		if !ValidFrameSize(tc.frameSize) {
			t.Errorf("frameSize=%d reported invalid", tc.frameSize)
		}
		if LMToFrameSize(tc.lm) != tc.frameSize {
			t.Errorf("LMToFrameSize(%d) = %d", tc.lm, LMToFrameSize(tc.lm))
		}
	}
	for _, bad := range []int{0, -5, 100, 961, 1920} {
		if ValidFrameSize(bad) {
			t.Errorf("frameSize=%d reported valid", bad)
		}
		if FrameSizeToLM(bad) != -1 {
			t.Errorf("FrameSizeToLM(%d) = %d, want -1", bad, FrameSizeToLM(bad))
		}
	}
}

func TestBandwidthEffectiveBands(t *testing.T) {
	cases := []struct {
		bw   CELTBandwidth
		want int
	}{
		{CELTNarrowband, 13},
		{CELTMediumband, 15},
		{CELTWideband, 17},
		{CELTSuperwideband, 19},
		{CELTFullband, 21},
	}
	for _, tc := range cases {
		if got := tc.bw.EffectiveBands(); got != tc.want {
			t.Errorf("%v: %d bands, want %d", tc.bw, got, tc.want)
		}
	}
	// Opus signals mediumband CELT frames with the wideband end band.
	if got := BandwidthFromOpusConfig(1); got != CELTWideband {
		t.Errorf("opus mediumband maps to %v, want wideband", got)
	}
	if got := EffectiveBandsForFrameSize(CELTNarrowband, 960); got != 13 {
		t.Errorf("narrowband 960: %d bands", got)
	}
	if got := EffectiveBandsForFrameSize(CELTFullband, 120); got != MaxBands {
		t.Errorf("fullband 120: %d bands", got)
	}
}

func TestLogNMatchesBandWidths(t *testing.T) {
	if len(LogN) != MaxBands {
		t.Fatalf("LogN has %d entries", len(LogN))
	}
	for b := 0; b < MaxBands; b++ {
		width := float64(EBands[b+1] - EBands[b])
		approx := math.Log2(width) * 8
		if math.Abs(float64(LogN[b])-approx) > 1.0 {
			t.Errorf("LogN[%d] = %d, log2(width)*8 = %.2f", b, LogN[b], approx)
		}
	}
}

func TestICDFTablesWellFormed(t *testing.T) {
	tables := []struct {
		name string
		icdf []uint8
		ftb  uint
	}{
		{"trim", trimICDF, 7},
		{"spread", spreadICDF, 5},
		{"tapset", tapsetICDF, 2},
		{"smallEnergy", smallEnergyICDF, 2},
	}
	for _, tc := range tables {
		if len(tc.icdf) == 0 || tc.icdf[len(tc.icdf)-1] != 0 {
			t.Errorf("%s: last entry must be 0", tc.name)
			continue
		}
		for i := 1; i < len(tc.icdf); i++ {
			if tc.icdf[i] > tc.icdf[i-1] {
				t.Errorf("%s: not non-increasing at %d", tc.name, i)
			}
		}
		if int(tc.icdf[0]) >= 1<<tc.ftb {
			t.Errorf("%s: first entry %d does not fit %d bits", tc.name, tc.icdf[0], tc.ftb)
		}
	}
	if len(trimICDF) != 11 {
		t.Errorf("trim table has %d entries, want 11", len(trimICDF))
	}
	if len(spreadICDF) != 4 {
		t.Errorf("spread table has %d entries, want 4", len(spreadICDF))
	}
}

func TestLog2FracTable(t *testing.T) {
	if log2FracTable[0] != 0 {
		t.Errorf("log2FracTable[0] = %d", log2FracTable[0])
	}
	// Entry i approximates log2(i+1) in Q3.
	for i := 1; i < len(log2FracTable); i++ {
		approx := math.Log2(float64(i+1)) * 8
		if math.Abs(float64(log2FracTable[i])-approx) > 1.0 {
			t.Errorf("log2FracTable[%d] = %d, log2(%d)*8 = %.2f", i, log2FracTable[i], i+1, approx)
		}
	}
}

func TestEMeansValues(t *testing.T) {
	// Reference: libopus celt/quant_bands.c eMeans
	want := []float64{
		6.4375, 6.25, 5.75, 5.3125, 5.0625,
		4.8125, 4.5, 4.375, 4.875, 4.6875,
		4.5625, 4.4375, 4.875, 4.625, 4.3125,
		4.5, 4.375, 4.625, 4.75, 4.4375,
		3.75, 3.75, 3.75, 3.75, 3.75,
	}
	if len(eMeans) != len(want) {
		t.Fatalf("eMeans has %d entries, want %d", len(eMeans), len(want))
	}
	for i := range want {
		if eMeans[i] != want[i] {
			t.Errorf("eMeans[%d] = %v, want %v", i, eMeans[i], want[i])
		}
	}
}

func TestWindowPowerComplementary(t *testing.T) {
	// The production window comes from float32 reference constants, so
	// complementarity only holds to single precision there.
	w := windowFor(Overlap)
	if len(w) != Overlap {
		t.Fatalf("window has %d samples", len(w))
	}
	for i := 0; i < Overlap/2; i++ {
		sum := w[i]*w[i] + w[Overlap-1-i]*w[Overlap-1-i]
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("w[%d]^2 + w[%d]^2 = %v, want 1", i, Overlap-1-i, sum)
		}
	}
	for i := 1; i < Overlap; i++ {
		if w[i] <= w[i-1] {
			t.Errorf("window not strictly increasing at %d", i)
		}
	}

	// Non-standard overlaps are computed in float64 and must be exact.
	w48 := windowFor(48)
	for i := 0; i < 24; i++ {
		sum := w48[i]*w48[i] + w48[47-i]*w48[47-i]
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("overlap 48: w[%d]^2 + w[%d]^2 = %v", i, 47-i, sum)
		}
	}
}

func TestWindowTablesAgree(t *testing.T) {
	w := windowFor(Overlap)
	wsq := windowSqFor(Overlap)
	exported := OverlapWindow()
	for i := 0; i < Overlap; i++ {
		if math.Abs(w[i]-vorbisWindow(i, Overlap)) > 1e-6 {
			t.Errorf("sample %d: static %v, formula %v", i, w[i], vorbisWindow(i, Overlap))
		}
		if math.Abs(wsq[i]-w[i]*w[i]) > 1e-12 {
			t.Errorf("sample %d: squared table %v, want %v", i, wsq[i], w[i]*w[i])
		}
		if exported[i] != w[i] {
			t.Errorf("sample %d: exported window differs", i)
		}
	}
}
