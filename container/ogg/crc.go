package ogg

// Ogg pages carry a CRC-32 with polynomial 0x04C11DB7, zero initial
// value and no bit reflection or final XOR. This is not the IEEE
// variant, so hash/crc32 cannot be used.

var crcTable [256]uint32

func init() {
	const poly = uint32(0x04C11DB7)
	for i := range crcTable {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

func crcUpdate(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// pageCRC computes the checksum of an encoded page with its CRC field
// (bytes 22-25) treated as zero, without copying the page.
func pageCRC(page []byte) uint32 {
	var zero [4]byte
	crc := crcUpdate(0, page[:22])
	crc = crcUpdate(crc, zero[:])
	return crcUpdate(crc, page[26:])
}
