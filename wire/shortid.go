package wire

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// ShortIDMask keeps the low 48 bits of a siphash output; short transaction
// IDs are 6 bytes on the wire, same as BIP 152 compact blocks.
const ShortIDMask = 0x0000FFFFFFFFFFFF

// ShortIDSalt is the per-block salt pair a short-ID is computed under. Two
// short-IDs are only comparable when they share a salt: the same transaction
// hashes to different 48-bit values under different (K0, K1).
type ShortIDSalt struct {
	K0, K1 uint64
}

// DeriveShortIDSalt computes the (K0, K1) siphash key for a block from its
// header and the sender-chosen nonce, per the wire derivation in §6.2:
// K0/K1 are the first two little-endian u64 words of
// SHA256(serialized_header || LE_u64(nonce)).
func DeriveShortIDSalt(header *BlockHeader, nonce uint64) ShortIDSalt {
	data := header.Bytes()
	data = binary.LittleEndian.AppendUint64(data, nonce)
	digest := singleSHA256(data)
	return ShortIDSalt{
		K0: binary.LittleEndian.Uint64(digest[0:8]),
		K1: binary.LittleEndian.Uint64(digest[8:16]),
	}
}

// ShortID computes the 48-bit salted fingerprint of a transaction hash.
// It MUST be portable and byte-identical across implementations, so it is a
// pure function of its three inputs with no package-level state.
func ShortID(salt ShortIDSalt, txHash Hash) uint64 {
	return siphash.Hash(salt.K0, salt.K1, txHash[:]) & ShortIDMask
}

// WriteShortID writes the 6-byte wire layout of a short-ID: a 4-byte LSB
// uint32 followed by a 2-byte MSB uint16 (BIP 152's layout, reused here).
func WriteShortID(buf []byte, id uint64) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(id&0xffffffff))
	binary.LittleEndian.PutUint16(buf[4:6], uint16((id>>32)&0xffff))
}

// ReadShortID reconstructs a short-ID from its 6-byte wire layout.
func ReadShortID(buf []byte) uint64 {
	lsb := binary.LittleEndian.Uint32(buf[0:4])
	msb := binary.LittleEndian.Uint16(buf[4:6])
	return (uint64(msb) << 32) | uint64(lsb)
}
