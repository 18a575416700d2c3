// Package hash computes the per-block checksums clients compare against
// their local map files to find blocks that differ from the server's.
package hash

import "hash/crc32"

const (
	// LandBlockSize is 8x8 cells of (tile id uint16, z int8).
	LandBlockSize = 64 * 3
	// StaticsRecordSize is one static item: tile id uint16, x, y, z, hue uint16.
	StaticsRecordSize = 7
)

// Fletcher16 checksums a land block followed by its statics.
func Fletcher16(land, statics []byte) uint16 {
	var sum1, sum2 uint16
	for _, b := range land {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	for _, b := range statics {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return sum2<<8 | sum1
}

// CRC32 checksums a land block followed by its statics with the IEEE
// polynomial, seeded with 0xFFFFFFFF and without the final inversion.
func CRC32(land, statics []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write(land)
	_, _ = h.Write(statics)
	return ^h.Sum32()
}

// Block returns the checksum a client of the given width expects. Clients
// that asked for 32-bit hashes get CRC32, everyone else Fletcher16.
func Block(land, statics []byte, bits int) uint32 {
	if land == nil {
		return 0
	}
	if bits == 32 {
		return CRC32(land, statics)
	}
	return uint32(Fletcher16(land, statics))
}
