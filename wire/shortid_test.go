package wire

import (
	"testing"
	"time"
)

func sampleHeader() BlockHeader {
	return BlockHeader{
		Version:    1,
		PrevBlock:  Hash{0x01},
		MerkleRoot: Hash{0x02},
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Bits:       0x1d00ffff,
		Nonce:      42,
	}
}

func TestDeriveShortIDSaltDeterministic(t *testing.T) {
	h := sampleHeader()
	s1 := DeriveShortIDSalt(&h, 7)
	s2 := DeriveShortIDSalt(&h, 7)
	if s1 != s2 {
		t.Fatalf("salt derivation is not deterministic: %v != %v", s1, s2)
	}
}

func TestDeriveShortIDSaltVariesWithNonce(t *testing.T) {
	h := sampleHeader()
	s1 := DeriveShortIDSalt(&h, 1)
	s2 := DeriveShortIDSalt(&h, 2)
	if s1 == s2 {
		t.Fatalf("different nonces produced identical salts")
	}
}

func TestShortIDMasksTo48Bits(t *testing.T) {
	salt := ShortIDSalt{K0: 1, K1: 2}
	id := ShortID(salt, Hash{0xff, 0xfe, 0xfd})
	if id > ShortIDMask {
		t.Fatalf("short-id %#x exceeds 48-bit mask", id)
	}
}

func TestShortIDDependsOnSalt(t *testing.T) {
	txHash := Hash{0x10, 0x20, 0x30}
	id1 := ShortID(ShortIDSalt{K0: 1, K1: 2}, txHash)
	id2 := ShortID(ShortIDSalt{K0: 3, K1: 4}, txHash)
	if id1 == id2 {
		t.Fatalf("short-id did not vary with salt")
	}
}

func TestShortIDWireRoundTrip(t *testing.T) {
	salt := ShortIDSalt{K0: 0xdeadbeef, K1: 0xcafef00d}
	id := ShortID(salt, Hash{0x55, 0x66, 0x77})

	var buf [ShortTxIDLength]byte
	WriteShortID(buf[:], id)
	got := ReadShortID(buf[:])
	if got != id {
		t.Fatalf("round trip mismatch: got %#x, want %#x", got, id)
	}
}

func TestShortIDWireLayoutIsLSBFirst(t *testing.T) {
	// id = 0x0102_AABBCCDD: low 32 bits = 0xAABBCCDD, high 16 bits = 0x0102.
	id := uint64(0x0102AABBCCDD)
	var buf [ShortTxIDLength]byte
	WriteShortID(buf[:], id)

	if buf[0] != 0xDD || buf[1] != 0xCC || buf[2] != 0xBB || buf[3] != 0xAA {
		t.Fatalf("unexpected LSB bytes: %x", buf[:4])
	}
	if buf[4] != 0x02 || buf[5] != 0x01 {
		t.Fatalf("unexpected MSB bytes: %x", buf[4:6])
	}
}
