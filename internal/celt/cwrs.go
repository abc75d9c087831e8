package celt

// Combinatorial indexing of pyramid vector quantization codewords, after
// RFC 6716 Section 4.3.4.1. A codeword index in [0, V(N,K)) maps to a vector
// of N integers whose absolute values sum to K. V obeys
//
//	V(N,K) = V(N-1,K) + V(N,K-1) + V(N-1,K-1)
//
// and the decoder walks one dimension at a time, subtracting off the count of
// codewords preceding the current prefix. The U(N,K) values that drive the
// walk come from a static table copied from libopus celt/cwrs.c; band shapes
// outside the table fall back to computing the recurrence row on the fly.

// pvqUData packs the rows of U(N,K) for N = 0..14. Row N stores
// U(N,K) for K = N .. N+pvqURowLen[N]-1; symmetry U(N,K) = U(K,N) covers the
// rest. Values are exactly the CELT_PVQ_U_DATA table from libopus.
var pvqUData = [1272]uint32{
	// N=0, K=0...176:
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	// N=1, K=1...176:
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	// N=2, K=2...176:
	3, 5, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27, 29, 31, 33, 35, 37, 39, 41,
	43, 45, 47, 49, 51, 53, 55, 57, 59, 61, 63, 65, 67, 69, 71, 73, 75, 77, 79,
	81, 83, 85, 87, 89, 91, 93, 95, 97, 99, 101, 103, 105, 107, 109, 111, 113,
	115, 117, 119, 121, 123, 125, 127, 129, 131, 133, 135, 137, 139, 141, 143,
	145, 147, 149, 151, 153, 155, 157, 159, 161, 163, 165, 167, 169, 171, 173,
	175, 177, 179, 181, 183, 185, 187, 189, 191, 193, 195, 197, 199, 201, 203,
	205, 207, 209, 211, 213, 215, 217, 219, 221, 223, 225, 227, 229, 231, 233,
	235, 237, 239, 241, 243, 245, 247, 249, 251, 253, 255, 257, 259, 261, 263,
	265, 267, 269, 271, 273, 275, 277, 279, 281, 283, 285, 287, 289, 291, 293,
	295, 297, 299, 301, 303, 305, 307, 309, 311, 313, 315, 317, 319, 321, 323,
	325, 327, 329, 331, 333, 335, 337, 339, 341, 343, 345, 347, 349, 351,
	// N=3, K=3...176:
	13, 25, 41, 61, 85, 113, 145, 181, 221, 265, 313, 365, 421, 481, 545, 613,
	685, 761, 841, 925, 1013, 1105, 1201, 1301, 1405, 1513, 1625, 1741, 1861,
	1985, 2113, 2245, 2381, 2521, 2665, 2813, 2965, 3121, 3281, 3445, 3613, 3785,
	3961, 4141, 4325, 4513, 4705, 4901, 5101, 5305, 5513, 5725, 5941, 6161, 6385,
	6613, 6845, 7081, 7321, 7565, 7813, 8065, 8321, 8581, 8845, 9113, 9385, 9661,
	9941, 10225, 10513, 10805, 11101, 11401, 11705, 12013, 12325, 12641, 12961,
	13285, 13613, 13945, 14281, 14621, 14965, 15313, 15665, 16021, 16381, 16745,
	17113, 17485, 17861, 18241, 18625, 19013, 19405, 19801, 20201, 20605, 21013,
	21425, 21841, 22261, 22685, 23113, 23545, 23981, 24421, 24865, 25313, 25765,
	26221, 26681, 27145, 27613, 28085, 28561, 29041, 29525, 30013, 30505, 31001,
	31501, 32005, 32513, 33025, 33541, 34061, 34585, 35113, 35645, 36181, 36721,
	37265, 37813, 38365, 38921, 39481, 40045, 40613, 41185, 41761, 42341, 42925,
	43513, 44105, 44701, 45301, 45905, 46513, 47125, 47741, 48361, 48985, 49613,
	50245, 50881, 51521, 52165, 52813, 53465, 54121, 54781, 55445, 56113, 56785,
	57461, 58141, 58825, 59513, 60205, 60901, 61601,
	// N=4, K=4...176:
	63, 129, 231, 377, 575, 833, 1159, 1561, 2047, 2625, 3303, 4089, 4991, 6017,
	7175, 8473, 9919, 11521, 13287, 15225, 17343, 19649, 22151, 24857, 27775,
	30913, 34279, 37881, 41727, 45825, 50183, 54809, 59711, 64897, 70375, 76153,
	82239, 88641, 95367, 102425, 109823, 117569, 125671, 134137, 142975, 152193,
	161799, 171801, 182207, 193025, 204263, 215929, 228031, 240577, 253575,
	267033, 280959, 295361, 310247, 325625, 341503, 357889, 374791, 392217,
	410175, 428673, 447719, 467321, 487487, 508225, 529543, 551449, 573951,
	597057, 620775, 645113, 670079, 695681, 721927, 748825, 776383, 804609,
	833511, 863097, 893375, 924353, 956039, 988441, 1021567, 1055425, 1090023,
	1125369, 1161471, 1198337, 1235975, 1274393, 1313599, 1353601, 1394407,
	1436025, 1478463, 1521729, 1565831, 1610777, 1656575, 1703233, 1750759,
	1799161, 1848447, 1898625, 1949703, 2001689, 2054591, 2108417, 2163175,
	2218873, 2275519, 2333121, 2391687, 2451225, 2511743, 2573249, 2635751,
	2699257, 2763775, 2829313, 2895879, 2963481, 3032127, 3101825, 3172583,
	3244409, 3317311, 3391297, 3466375, 3542553, 3619839, 3698241, 3777767,
	3858425, 3940223, 4023169, 4107271, 4192537, 4278975, 4366593, 4455399,
	4545401, 4636607, 4729025, 4822663, 4917529, 5013631, 5110977, 5209575,
	5309433, 5410559, 5512961, 5616647, 5721625, 5827903, 5935489, 6044391,
	6154617, 6266175, 6379073, 6493319, 6608921, 6725887, 6844225, 6963943,
	7085049, 7207551,
	// N=5, K=5...176:
	321, 681, 1289, 2241, 3649, 5641, 8361, 11969, 16641, 22569, 29961, 39041,
	50049, 63241, 78889, 97281, 118721, 143529, 172041, 204609, 241601, 283401,
	330409, 383041, 441729, 506921, 579081, 658689, 746241, 842249, 947241,
	1061761, 1186369, 1321641, 1468169, 1626561, 1797441, 1981449, 2179241,
	2391489, 2618881, 2862121, 3121929, 3399041, 3694209, 4008201, 4341801,
	4695809, 5071041, 5468329, 5888521, 6332481, 6801089, 7295241, 7815849,
	8363841, 8940161, 9545769, 10181641, 10848769, 11548161, 12280841, 13047849,
	13850241, 14689089, 15565481, 16480521, 17435329, 18431041, 19468809,
	20549801, 21675201, 22846209, 24064041, 25329929, 26645121, 28010881,
	29428489, 30899241, 32424449, 34005441, 35643561, 37340169, 39096641,
	40914369, 42794761, 44739241, 46749249, 48826241, 50971689, 53187081,
	55473921, 57833729, 60268041, 62778409, 65366401, 68033601, 70781609,
	73612041, 76526529, 79526721, 82614281, 85790889, 89058241, 92418049,
	95872041, 99421961, 103069569, 106816641, 110664969, 114616361, 118672641,
	122835649, 127107241, 131489289, 135983681, 140592321, 145317129, 150160041,
	155123009, 160208001, 165417001, 170752009, 176215041, 181808129, 187533321,
	193392681, 199388289, 205522241, 211796649, 218213641, 224775361, 231483969,
	238341641, 245350569, 252512961, 259831041, 267307049, 274943241, 282741889,
	290705281, 298835721, 307135529, 315607041, 324252609, 333074601, 342075401,
	351257409, 360623041, 370174729, 379914921, 389846081, 399970689, 410291241,
	420810249, 431530241, 442453761, 453583369, 464921641, 476471169, 488234561,
	500214441, 512413449, 524834241, 537479489, 550351881, 563454121, 576788929,
	590359041, 604167209, 618216201, 632508801,
	// N=6, K=6...96:
	1683, 3653, 7183, 13073, 22363, 36365, 56695, 85305, 124515, 177045, 246047,
	335137, 448427, 590557, 766727, 982729, 1244979, 1560549, 1937199, 2383409,
	2908411, 3522221, 4235671, 5060441, 6009091, 7095093, 8332863, 9737793,
	11326283, 13115773, 15124775, 17372905, 19880915, 22670725, 25765455,
	29189457, 32968347, 37129037, 41699767, 46710137, 52191139, 58175189,
	64696159, 71789409, 79491819, 87841821, 96879431, 106646281, 117185651,
	128542501, 140763503, 153897073, 167993403, 183104493, 199284183, 216588185,
	235074115, 254801525, 275831935, 298228865, 322057867, 347386557, 374284647,
	402823977, 433078547, 465124549, 499040399, 534906769, 572806619, 612825229,
	655050231, 699571641, 746481891, 795875861, 847850911, 902506913, 959946283,
	1020274013, 1083597703, 1150027593, 1219676595, 1292660325, 1369097135,
	1449108145, 1532817275, 1620351277, 1711839767, 1807415257, 1907213187,
	2011371957, 2120032959,
	// N=7, K=7...54:
	8989, 19825, 40081, 75517, 134245, 227305, 369305, 579125, 880685, 1303777,
	1884961, 2668525, 3707509, 5064793, 6814249, 9041957, 11847485, 15345233,
	19665841, 24957661, 31388293, 39146185, 48442297, 59511829, 72616013,
	88043969, 106114625, 127178701, 151620757, 179861305, 212358985, 249612805,
	292164445, 340600625, 395555537, 457713341, 527810725, 606639529, 695049433,
	793950709, 904317037, 1027188385, 1163673953, 1314955181, 1482288821,
	1667010073, 1870535785, 2094367717,
	// N=8, K=8...37:
	48639, 108545, 224143, 433905, 795455, 1392065, 2340495, 3800305, 5984767,
	9173505, 13726991, 20103025, 28875327, 40754369, 56610575, 77500017,
	104692735, 139703809, 184327311, 240673265, 311207743, 398796225, 506750351,
	638878193, 799538175, 993696769, 1226990095, 1505789553, 1837271615,
	2229491905,
	// N=9, K=9...28:
	265729, 598417, 1256465, 2485825, 4673345, 8405905, 14546705, 24331777,
	39490049, 62390545, 96220561, 145198913, 214828609, 312193553, 446304145,
	628496897, 872893441, 1196924561, 1621925137, 2173806145,
	// N=10, K=10...24:
	1462563, 3317445, 7059735, 14218905, 27298155, 50250765, 89129247, 152951073,
	254831667, 413442773, 654862247, 1014889769, 1541911931, 2300409629,
	3375210671,
	// N=11, K=11...19:
	8097453, 18474633, 39753273, 81270333, 158819253, 298199265, 540279585,
	948062325, 1616336765,
	// N=12, K=12...18:
	45046719, 103274625, 224298231, 464387817, 921406335, 1759885185,
	3248227095,
	// N=13, K=13...16:
	251595969, 579168825, 1267854873, 2653649025,
	// N=14, K=14:
	1409933619,
}

// pvqURow[n] is the offset of row n in pvqUData.
var pvqURow = [15]int{
	0, 177, 353, 528, 702, 875, 1047, 1138, 1186, 1216, 1236, 1251, 1260, 1267, 1271,
}

// pvqURowLen[n] is the number of stored entries in row n, so row n covers
// K = n .. n+pvqURowLen[n]-1.
var pvqURowLen = [15]int{
	177, 176, 175, 174, 173, 172, 91, 48, 30, 20, 15, 9, 7, 4, 1,
}

func pvqULookup(n, k int) (uint32, bool) {
	if n > k {
		n, k = k, n
	}
	if n < 0 || n >= len(pvqURow) {
		return 0, false
	}
	off := k - n
	if off < 0 || off >= pvqURowLen[n] {
		return 0, false
	}
	return pvqUData[pvqURow[n]+off], true
}

// canUseFastCWRS reports whether every U value the fast decoder touches for
// this (n,k) is present in the static table.
func canUseFastCWRS(n, k int) bool {
	if n <= 2 || k <= 0 {
		return false
	}
	rows := len(pvqURowLen)
	if k >= n {
		if n >= rows {
			return false
		}
		return (k + 1 - n) < pvqURowLen[n]
	}
	if k+1 >= rows {
		return false
	}
	off := n - k
	return off < pvqURowLen[k] && off-1 < pvqURowLen[k+1]
}

// pvqCodewords returns V(n,k), the number of PVQ codewords for n dimensions
// and k pulses.
func pvqCodewords(n, k int) uint32 {
	if k < 0 || n <= 0 {
		return 0
	}
	if k == 0 {
		return 1
	}
	if n == 1 {
		return 2
	}
	u1, ok1 := pvqULookup(n, k)
	u2, ok2 := pvqULookup(n, k+1)
	if ok1 && ok2 {
		return u1 + u2
	}
	u := make([]uint32, k+2)
	return ncwrsURow(n, k, u)
}

// unext advances u one row of the recurrence
// u[i][j] = u[i-1][j] + u[i][j-1] + u[i-1][j-1], with u0 the new base value.
func unext(u []uint32, length int, u0 uint32) {
	if length < 2 {
		return
	}
	_ = u[length-1]
	for j := 1; j < length; j++ {
		u1 := u[j] + u[j-1] + u0
		u[j-1] = u0
		u0 = u1
	}
	u[length-1] = u0
}

// uprev is the inverse of unext.
func uprev(u []uint32, length int, u0 uint32) {
	if length < 2 {
		return
	}
	for j := 1; j < length; j++ {
		u1 := u[j] - u[j-1] - u0
		u[j-1] = u0
		u0 = u1
	}
	u[length-1] = u0
}

// ncwrsURow fills u[0..k+1] with U(n, 0..k+1) and returns V(n,k).
// u must hold at least k+2 entries.
func ncwrsURow(n, k int, u []uint32) uint32 {
	if n < 2 || k <= 0 || len(u) < k+2 {
		return 0
	}
	u[0] = 0
	u[1] = 1
	for j := 2; j < k+2; j++ {
		u[j] = uint32((j << 1) - 1)
	}
	for j := 2; j < n; j++ {
		unext(u[1:], k+1, 1)
	}
	return u[k] + u[k+1]
}

// cwrsiFast decodes index i into y using only static-table lookups, and
// returns the squared pulse norm. Caller must have checked canUseFastCWRS.
func cwrsiFast(n, k int, i uint32, y []int) uint32 {
	if n <= 0 || k <= 0 || len(y) < n {
		return 0
	}
	var yy uint32
	j := 0
	for n > 2 {
		var p, q uint32
		var s, k0, yj int
		if k >= n {
			rowN := pvqURow[n]
			p = pvqUData[rowN+(k+1-n)]
			if i >= p {
				s = -1
				i -= p
			}
			k0 = k
			q = pvqUData[rowN]
			if q > i {
				// Fewer pulses than dimensions remain past this point, so
				// walk rows downward until U(k,n-k') reaches i.
				k = n
				nk := 0
				for {
					k--
					nk++
					p = pvqUData[pvqURow[k]+nk]
					if p <= i {
						break
					}
				}
			} else {
				// Row n is monotonic in K, locate the pulse count by
				// binary search.
				lo := 0
				hi := k - n
				for lo < hi {
					mid := (lo + hi + 1) >> 1
					if pvqUData[rowN+mid] <= i {
						lo = mid
					} else {
						hi = mid - 1
					}
				}
				k = n + lo
				p = pvqUData[rowN+lo]
			}
			i -= p
			yj = k0 - k
			if s != 0 {
				yj = -yj
			}
			y[j] = yj
			yy += uint32(yj * yj)
		} else {
			nk := n - k
			p = pvqUData[pvqURow[k]+nk]
			q = pvqUData[pvqURow[k+1]+nk-1]
			if p <= i && i < q {
				i -= p
				y[j] = 0
			} else {
				if i >= q {
					s = -1
					i -= q
				}
				k0 = k
				for {
					k--
					nk++
					p = pvqUData[pvqURow[k]+nk]
					if p <= i {
						break
					}
				}
				i -= p
				yj = k0 - k
				if s != 0 {
					yj = -yj
				}
				y[j] = yj
				yy += uint32(yj * yj)
			}
		}
		n--
		j++
	}

	// n == 2: U(2,K) = 2K-1, closed form.
	p := uint32(2*k + 1)
	s := 0
	if i >= p {
		s = -1
		i -= p
	}
	k0 := k
	k = int((i + 1) >> 1)
	if k != 0 {
		i -= uint32(2*k - 1)
	}
	yj := k0 - k
	if s != 0 {
		yj = -yj
	}
	y[j] = yj
	yy += uint32(yj * yj)
	j++

	// n == 1: the remaining pulses and the final sign bit.
	yj = k
	if i != 0 {
		yj = -k
	}
	y[j] = yj
	yy += uint32(yj * yj)
	return yy
}

// cwrsiSlow decodes index i into y using a computed U row. u must contain
// U(n, 0..k+1) as produced by ncwrsURow.
func cwrsiSlow(n, k int, i uint32, y []int, u []uint32) uint32 {
	if n <= 0 || k <= 0 || len(y) < n || len(u) < k+2 {
		return 0
	}
	j := 0
	var yy uint32
	for {
		p := u[k+1]
		sign := 0
		if i >= p {
			sign = -1
			i -= p
		}
		yj := k
		k = largestIndexLE(u, k, i)
		p = u[k]
		i -= p
		yj -= k
		if sign != 0 {
			yj = -yj
		}
		y[j] = yj
		yy += uint32(yj * yj)
		uprev(u, k+2, 0)
		j++
		if j >= n {
			break
		}
	}
	return yy
}

// largestIndexLE returns the largest idx <= hi with u[idx] <= target.
// u must be non-decreasing over the searched range.
func largestIndexLE(u []uint32, hi int, target uint32) int {
	if hi <= 0 {
		return 0
	}
	if hi >= len(u) {
		hi = len(u) - 1
	}
	if target >= u[hi] {
		return hi
	}
	lo := 0
	for lo < hi {
		mid := (lo + hi + 1) >> 1
		if u[mid] <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// decodePulsesInto decodes CWRS index into y[0:n] and returns the squared
// norm of the pulse vector. uBuf is grown as needed when the static table
// does not cover (n,k).
func decodePulsesInto(index uint32, n, k int, y []int, uBuf *[]uint32) uint32 {
	if n <= 0 || k < 0 || len(y) < n {
		return 0
	}
	if k == 0 {
		// Both decode paths below write all n outputs when k > 0, so only
		// this case needs an explicit clear.
		clear(y[:n])
		return 0
	}
	if n == 1 {
		if index&1 == 1 {
			y[0] = -k
		} else {
			y[0] = k
		}
		return uint32(k * k)
	}
	if canUseFastCWRS(n, k) {
		return cwrsiFast(n, k, index, y)
	}
	u := ensureUint32(uBuf, k+2)
	ncwrsURow(n, k, u)
	return cwrsiSlow(n, k, index, y, u)
}

func icwrs1(y int) (uint32, int) {
	k := y
	if k < 0 {
		k = -k
	}
	if y < 0 {
		return 1, k
	}
	return 0, k
}

// icwrs computes the codeword index of y and V(n,k). Inverse of the decode
// walk, used to build test bitstreams.
func icwrs(n, k int, y []int, u []uint32) (uint32, uint32) {
	if n < 2 || k <= 0 || len(y) < n || len(u) < k+2 {
		return 0, 0
	}
	_ = u[k+1]
	u[0] = 0
	for kk := 1; kk <= k+1; kk++ {
		u[kk] = uint32((kk << 1) - 1)
	}
	i, k1 := icwrs1(y[n-1])
	j := n - 2
	i += u[k1]
	if y[j] < 0 {
		k1 -= y[j]
		i += u[k1+1]
	} else {
		k1 += y[j]
	}
	for j--; j >= 0; j-- {
		unext(u, k+2, 0)
		i += u[k1]
		if y[j] < 0 {
			k1 -= y[j]
			i += u[k1+1]
		} else {
			k1 += y[j]
		}
	}
	return i, u[k1] + u[k1+1]
}

// encodePulses maps a pulse vector back to its codeword index. The sum of
// absolute values of y must equal k.
func encodePulses(y []int, n, k int, uBuf *[]uint32) uint32 {
	if n <= 0 || k < 0 || len(y) < n {
		return 0
	}
	if n == 1 {
		if y[0] < 0 {
			return 1
		}
		return 0
	}
	u := ensureUint32(uBuf, k+2)
	index, _ := icwrs(n, k, y, u)
	return index
}
