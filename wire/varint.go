package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxCompactSize is the largest value WriteCompactSize will ever need to
// represent for the block-propagation messages defined in this package.
// It mirrors the ceiling used by the reference wire protocol to keep a
// corrupt length prefix from driving an allocation into the gigabytes.
const MaxCompactSize = 0x02000000 // 32 MiB worth of elements

// WriteCompactSize writes val to w using bitcoin's variable length integer
// encoding: values under 0xfd are a single byte, 0xfd/0xfe/0xff introduce a
// 2/4/8 byte little-endian payload.
func WriteCompactSize(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf)
		return err
	case val <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], val)
		_, err := w.Write(buf)
		return err
	}
}

// ReadCompactSize reads a COMPACTSIZE-encoded integer from r.
func ReadCompactSize(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint16(buf[:]))
		if v < 0xfd {
			return 0, fmt.Errorf("non-canonical compactsize encoding")
		}
		return v, nil
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint32(buf[:]))
		if v <= 0xffff {
			return 0, fmt.Errorf("non-canonical compactsize encoding")
		}
		return v, nil
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v <= 0xffffffff {
			return 0, fmt.Errorf("non-canonical compactsize encoding")
		}
		return v, nil
	default:
		return uint64(prefix[0]), nil
	}
}

// ReadCompactSizeBounded is ReadCompactSize with an upper bound check, used
// whenever the count feeds directly into a slice preallocation.
func ReadCompactSizeBounded(r io.Reader, max uint64) (uint64, error) {
	v, err := ReadCompactSize(r)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, fmt.Errorf("compactsize %d exceeds bound %d", v, max)
	}
	return v, nil
}

// writeU64 writes a raw little-endian 8-byte integer (not COMPACTSIZE
// encoded), used for fields like a compact block's nonce that are always
// fixed-width on the wire.
func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// writeHash writes a 32-byte hash verbatim (hashes are not length-prefixed).
func writeHash(w io.Writer, h Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (Hash, error) {
	var h Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

// writeVarBytes writes a COMPACTSIZE-prefixed byte slice.
func writeVarBytes(w io.Writer, b []byte) error {
	if err := WriteCompactSize(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader, max uint64) ([]byte, error) {
	n, err := ReadCompactSizeBounded(r, max)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
