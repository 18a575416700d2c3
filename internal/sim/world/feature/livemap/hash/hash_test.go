package hash

import "testing"

func TestFletcher16KnownVectors(t *testing.T) {
	if got := Fletcher16([]byte("abcde"), nil); got != 0xC8F0 {
		t.Fatalf("abcde: got %#04x", got)
	}
	if got := Fletcher16([]byte("abcdef"), nil); got != 0x2057 {
		t.Fatalf("abcdef: got %#04x", got)
	}
	if Fletcher16([]byte("abc"), []byte("de")) != Fletcher16([]byte("abcde"), nil) {
		t.Fatalf("statics must continue the land checksum")
	}
}

func TestCRC32MatchesUnfinalizedIEEE(t *testing.T) {
	// IEEE check value for "123456789" is 0xCBF43926; without the final
	// inversion it is its complement.
	if got := CRC32([]byte("12345"), []byte("6789")); got != 0x340BC6D9 {
		t.Fatalf("got %#08x", got)
	}
	if got := CRC32(nil, nil); got != 0xFFFFFFFF {
		t.Fatalf("empty input: got %#08x", got)
	}
}

func TestBlockSelectsWidth(t *testing.T) {
	land := make([]byte, LandBlockSize)
	land[0] = 7
	if Block(land, nil, 32) != CRC32(land, nil) {
		t.Fatalf("32-bit width should use CRC32")
	}
	if Block(land, nil, 16) != uint32(Fletcher16(land, nil)) {
		t.Fatalf("16-bit width should use Fletcher16")
	}
	if Block(nil, []byte{1}, 32) != 0 {
		t.Fatalf("missing land block must hash to 0")
	}
}
