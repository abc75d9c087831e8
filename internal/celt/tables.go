// Package celt implements the CELT decoder per RFC 6716 Section 4.3.
//
// CELT is the transform-based layer of Opus. Frames carry a coarse/fine
// quantized energy envelope per band plus PVQ-coded unit-norm band shapes;
// the decoder denormalizes the shapes by the envelope, runs the inverse
// MDCT with overlap-add and applies the pitch postfilter and de-emphasis.
package celt

// MaxBands is the number of CELT bands at 48kHz (libopus nbEBands).
const MaxBands = 21

// Overlap is the MDCT overlap length in samples (2.5ms at 48kHz).
const Overlap = 120

// bitRes is the fractional bit resolution used by the allocator (Q3).
const bitRes = 3

// PreemphCoef is the de-emphasis filter coefficient.
// Reference: libopus celt/modes.c, pre-emphasis {0.85, 0, 0, 0}
const PreemphCoef = 0.85

// EBands contains the band boundaries in MDCT bins at the base (2.5ms)
// frame size. Scale by 1<<LM for larger frames.
// Reference: libopus celt/modes.c eband5ms
var EBands = [22]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 10,
	12, 14, 16, 20, 24, 28, 34, 40, 48, 60,
	78, 100,
}

// LogN contains log2 of the band widths in Q8, at the 400Hz band layout.
// Reference: libopus celt/static_modes_float.h logN400
var LogN = [21]int{
	0, 0, 0, 0, 0, 0, 0, 0, 8, 8, 8, 8, 16, 16, 16, 21, 21, 24, 29, 34, 36,
}

// BandAlloc is the static bit allocation table. Rows are quality levels,
// columns are bands; values are 1/32 bit per MDCT bin.
// Reference: libopus celt/modes.c band_allocation
var BandAlloc = [11][21]int{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{90, 80, 75, 69, 63, 56, 49, 40, 34, 29, 20, 18, 10, 0, 0, 0, 0, 0, 0, 0, 0},
	{110, 100, 90, 84, 78, 71, 65, 58, 51, 45, 39, 32, 26, 20, 12, 0, 0, 0, 0, 0, 0},
	{118, 110, 103, 93, 86, 80, 75, 70, 65, 59, 53, 47, 40, 31, 23, 15, 4, 0, 0, 0, 0},
	{126, 119, 112, 104, 95, 89, 83, 78, 72, 66, 60, 54, 47, 39, 32, 25, 17, 12, 1, 0, 0},
	{134, 127, 120, 114, 103, 97, 91, 85, 78, 72, 66, 60, 54, 47, 41, 35, 29, 23, 16, 10, 1},
	{144, 137, 130, 124, 113, 107, 101, 95, 88, 82, 76, 70, 64, 57, 51, 45, 39, 33, 26, 15, 1},
	{152, 145, 138, 132, 123, 117, 111, 105, 98, 92, 86, 80, 74, 67, 61, 55, 49, 43, 36, 20, 1},
	{162, 155, 148, 142, 133, 127, 121, 115, 108, 102, 96, 90, 84, 77, 71, 65, 59, 53, 46, 30, 1},
	{172, 165, 158, 152, 143, 137, 131, 125, 118, 112, 106, 100, 94, 87, 81, 75, 69, 63, 56, 45, 20},
	{200, 200, 200, 200, 200, 200, 200, 200, 198, 193, 188, 183, 178, 173, 168, 163, 158, 153, 148, 129, 104},
}

// cacheIndex50 indexes into cacheBits50 per (LM+1, band).
// Reference: libopus celt/static_modes_float.h cache_index50
var cacheIndex50 = [105]int16{
	-1, -1, -1, -1, -1, -1, -1, -1, 0, 0, 0, 0, 41, 41, 41,
	82, 82, 123, 164, 200, 222, 0, 0, 0, 0, 0, 0, 0, 0, 41,
	41, 41, 41, 123, 123, 123, 164, 164, 240, 266, 283, 295, 41, 41, 41,
	41, 41, 41, 41, 41, 123, 123, 123, 123, 240, 240, 240, 266, 266, 305,
	318, 328, 336, 123, 123, 123, 123, 123, 123, 123, 123, 240, 240, 240, 240,
	305, 305, 305, 318, 318, 343, 351, 358, 364, 240, 240, 240, 240, 240, 240,
	240, 240, 305, 305, 305, 305, 343, 343, 343, 351, 351, 370, 376, 382, 387,
}

// cacheBits50 holds the per-band pulse count to bit cost caches.
// Each run starts with its max pseudo-pulse count followed by costs in Q3-1.
// Reference: libopus celt/static_modes_float.h cache_bits50
var cacheBits50 = [392]uint8{
	40, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 40, 15, 23, 28,
	31, 34, 36, 38, 39, 41, 42, 43, 44, 45, 46, 47, 47, 49, 50,
	51, 52, 53, 54, 55, 55, 57, 58, 59, 60, 61, 62, 63, 63, 65,
	66, 67, 68, 69, 70, 71, 71, 40, 20, 33, 41, 48, 53, 57, 61,
	64, 66, 69, 71, 73, 75, 76, 78, 80, 82, 85, 87, 89, 91, 92,
	94, 96, 98, 101, 103, 105, 107, 108, 110, 112, 114, 117, 119, 121, 123,
	124, 126, 128, 40, 23, 39, 51, 60, 67, 73, 79, 83, 87, 91, 94,
	97, 100, 102, 105, 107, 111, 115, 118, 121, 124, 126, 129, 131, 135, 139,
	142, 145, 148, 150, 153, 155, 159, 163, 166, 169, 172, 174, 177, 179, 35,
	28, 49, 65, 78, 89, 99, 107, 114, 120, 126, 132, 136, 141, 145, 149,
	153, 159, 165, 171, 176, 180, 185, 189, 192, 199, 205, 211, 216, 220, 225,
	229, 232, 239, 245, 251, 21, 33, 58, 79, 97, 112, 125, 137, 148, 157,
	166, 174, 182, 189, 195, 201, 207, 217, 227, 235, 243, 251, 17, 35, 63,
	86, 106, 123, 139, 152, 165, 177, 187, 197, 206, 214, 222, 230, 237, 250,
	25, 31, 55, 75, 91, 105, 117, 128, 138, 146, 154, 161, 168, 174, 180,
	185, 190, 200, 208, 215, 222, 229, 235, 240, 245, 255, 16, 36, 65, 89,
	110, 128, 144, 159, 173, 185, 196, 207, 217, 226, 234, 242, 250, 11, 41,
	74, 103, 128, 151, 172, 191, 209, 225, 241, 255, 9, 43, 79, 110, 138,
	163, 186, 207, 227, 246, 12, 39, 71, 99, 123, 144, 164, 182, 198, 214,
	228, 241, 253, 9, 44, 81, 113, 142, 168, 192, 214, 235, 255, 7, 49,
	90, 127, 160, 191, 220, 247, 6, 51, 95, 134, 170, 203, 234, 7, 47,
	87, 123, 155, 184, 212, 237, 6, 52, 97, 137, 174, 208, 240, 5, 57,
	106, 151, 192, 231, 5, 59, 111, 158, 202, 243, 5, 55, 103, 147, 187,
	224, 5, 60, 113, 161, 206, 248, 4, 65, 122, 175, 224, 4, 67, 127,
	182, 234,
}

// cacheCaps holds the maximum allocation per band in 1/4 bit per bin units,
// indexed by [2*LM + (channels-1)][band].
// Reference: libopus celt/static_modes_float.h cache_caps50
var cacheCaps = [168]uint8{
	224, 224, 224, 224, 224, 224, 224, 224, 160, 160, 160, 160, 185, 185, 185,
	178, 178, 168, 134, 61, 37, 224, 224, 224, 224, 224, 224, 224, 224, 240,
	240, 240, 240, 207, 207, 207, 198, 198, 183, 144, 66, 40, 160, 160, 160,
	160, 160, 160, 160, 160, 185, 185, 185, 185, 193, 193, 193, 183, 183, 172,
	138, 64, 38, 240, 240, 240, 240, 240, 240, 240, 240, 207, 207, 207, 207,
	204, 204, 204, 193, 193, 180, 143, 66, 40, 185, 185, 185, 185, 185, 185,
	185, 185, 193, 193, 193, 193, 193, 193, 193, 183, 183, 172, 138, 65, 39,
	207, 207, 207, 207, 207, 207, 207, 207, 204, 204, 204, 204, 201, 201, 201,
	188, 188, 176, 141, 66, 40, 193, 193, 193, 193, 193, 193, 193, 193, 193,
	193, 193, 193, 194, 194, 194, 184, 184, 173, 139, 65, 39, 204, 204, 204,
	204, 204, 204, 204, 204, 201, 201, 201, 201, 198, 198, 198, 187, 187, 175,
	140, 66, 40,
}

// eMeans contains the mean log2 energy per band, subtracted before coarse
// quantization and added back during denormalization.
// Reference: libopus celt/quant_bands.c eMeans (float build)
var eMeans = [25]float64{
	6.437500, 6.250000, 5.750000, 5.312500, 5.062500,
	4.812500, 4.500000, 4.375000, 4.875000, 4.687500,
	4.562500, 4.437500, 4.875000, 4.625000, 4.312500,
	4.500000, 4.375000, 4.625000, 4.750000, 4.437500,
	3.750000, 3.750000, 3.750000, 3.750000, 3.750000,
}

// predCoef contains the inter-frame energy prediction coefficients by LM.
// Reference: libopus celt/quant_bands.c pred_coef
var predCoef = [4]float64{
	29440.0 / 32768.0,
	26112.0 / 32768.0,
	21248.0 / 32768.0,
	16384.0 / 32768.0,
}

// betaCoefInter contains the in-frame prediction decay for inter frames by LM.
// Reference: libopus celt/quant_bands.c beta_coef
var betaCoefInter = [4]float64{
	30147.0 / 32768.0,
	22282.0 / 32768.0,
	12124.0 / 32768.0,
	6554.0 / 32768.0,
}

// betaIntra is the in-frame prediction decay for intra frames.
// Reference: libopus celt/quant_bands.c beta_intra
const betaIntra = 4915.0 / 32768.0

// eProbModel contains the Laplace probability model for coarse energy,
// indexed by [LM][intra][2*band]: even entries are fs0<<7 seeds, odd
// entries are decay<<6 seeds.
// Reference: libopus celt/quant_bands.c e_prob_model
var eProbModel = [4][2][42]uint8{
	// 120 sample frames
	{
		{
			72, 127, 65, 129, 66, 128, 65, 128, 64, 128, 62, 128, 64, 128,
			64, 128, 92, 78, 92, 79, 92, 78, 90, 79, 116, 41, 115, 40,
			114, 40, 132, 26, 132, 26, 145, 17, 161, 12, 176, 10, 177, 11,
		},
		{
			24, 179, 48, 138, 54, 135, 54, 132, 53, 134, 56, 133, 55, 132,
			55, 132, 61, 114, 70, 96, 74, 88, 75, 88, 87, 74, 89, 66,
			91, 67, 100, 59, 108, 50, 120, 40, 122, 37, 97, 43, 78, 50,
		},
	},
	// 240 sample frames
	{
		{
			83, 78, 84, 81, 88, 75, 86, 74, 87, 71, 90, 73, 93, 74,
			93, 74, 109, 40, 114, 36, 117, 34, 117, 34, 143, 17, 145, 18,
			146, 19, 162, 12, 165, 10, 178, 7, 189, 6, 190, 8, 177, 9,
		},
		{
			23, 178, 54, 115, 63, 102, 66, 98, 69, 99, 74, 89, 71, 91,
			73, 91, 78, 89, 86, 80, 92, 66, 93, 64, 102, 59, 103, 60,
			104, 60, 117, 52, 123, 44, 138, 35, 133, 31, 97, 38, 77, 45,
		},
	},
	// 480 sample frames
	{
		{
			61, 90, 93, 60, 105, 42, 107, 41, 110, 45, 116, 38, 113, 38,
			112, 38, 124, 26, 132, 27, 136, 19, 140, 20, 155, 14, 159, 16,
			158, 18, 170, 13, 177, 10, 187, 8, 192, 6, 175, 9, 159, 10,
		},
		{
			21, 178, 59, 110, 71, 86, 75, 85, 84, 83, 91, 66, 88, 73,
			87, 72, 92, 75, 98, 72, 105, 58, 107, 54, 115, 52, 114, 55,
			112, 56, 129, 51, 132, 40, 150, 33, 140, 29, 98, 35, 77, 42,
		},
	},
	// 960 sample frames
	{
		{
			42, 121, 96, 66, 108, 43, 111, 40, 117, 44, 123, 32, 120, 36,
			119, 33, 127, 33, 134, 34, 139, 21, 147, 23, 152, 20, 158, 25,
			154, 26, 166, 21, 173, 16, 184, 13, 184, 10, 150, 13, 139, 15,
		},
		{
			22, 178, 63, 114, 74, 82, 84, 83, 92, 82, 103, 62, 96, 72,
			96, 67, 101, 73, 107, 72, 113, 55, 118, 52, 125, 52, 118, 52,
			117, 55, 135, 49, 137, 39, 157, 32, 145, 29, 97, 33, 77, 40,
		},
	},
}

// smallEnergyICDF codes coarse energy when fewer than 15 bits remain.
// Reference: libopus celt/quant_bands.c small_energy_icdf
var smallEnergyICDF = []uint8{2, 1, 0}

// log2FracTable contains log2(x) in Q3 for small x, used to reserve bits
// for the intensity stereo flag.
// Reference: libopus celt/rate.c LOG2_FRAC_TABLE
var log2FracTable = [24]uint8{
	0, 8, 13, 16, 19, 21, 23, 24, 26, 27, 28, 29,
	30, 31, 32, 32, 33, 34, 34, 35, 36, 36, 37, 37,
}

// trimICDF codes the allocation trim parameter.
// Reference: libopus celt/celt.h trim_icdf
var trimICDF = []uint8{126, 124, 119, 109, 87, 41, 19, 9, 4, 2, 0}

// spreadICDF codes the PVQ rotation spread decision.
// Reference: libopus celt/celt.h spread_icdf
var spreadICDF = []uint8{25, 23, 2, 0}

// tapsetICDF codes the postfilter tapset.
// Reference: libopus celt/celt.h tapset_icdf
var tapsetICDF = []uint8{2, 1, 0}

// tfSelectTable maps [LM][4*isTransient + 2*tfSelect + tfRes] to the final
// per-band time-frequency resolution adjustment.
// Reference: libopus celt/celt.c tf_select_table
var tfSelectTable = [4][8]int8{
	{0, -1, 0, -1, 0, -1, 0, -1},
	{0, -1, 0, -2, 1, 0, 1, -1},
	{0, -2, 0, -3, 2, 0, 1, -1},
	{0, -2, 0, -3, 3, 0, 1, -1},
}

// BandWidth returns the width of a band in bins at the base frame size.
func BandWidth(band int) int {
	if band < 0 || band >= MaxBands {
		return 0
	}
	return EBands[band+1] - EBands[band]
}

// ScaledBandStart returns the first MDCT bin of a band at the given frame
// size. Bin indices scale by frameSize/120 relative to the base layout.
func ScaledBandStart(band, frameSize int) int {
	if band < 0 || band > MaxBands {
		return 0
	}
	return EBands[band] * (frameSize / Overlap)
}

// ScaledBandEnd returns one past the last MDCT bin of a band.
func ScaledBandEnd(band, frameSize int) int {
	if band < 0 || band >= MaxBands {
		return 0
	}
	return EBands[band+1] * (frameSize / Overlap)
}

// ScaledBandWidth returns the width of a band in bins at the given frame size.
func ScaledBandWidth(band, frameSize int) int {
	if band < 0 || band >= MaxBands {
		return 0
	}
	return (EBands[band+1] - EBands[band]) * (frameSize / Overlap)
}
