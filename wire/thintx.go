package wire

import "fmt"

// ThinTx identifies a transaction by whichever of three facets the sender
// chose to send: a full 32-byte hash, an 8-byte "cheap" hash (xthin), or a
// 48-bit salted short-ID (compact blocks). isNull holds iff no facet is
// populated. cheap is derived eagerly whenever full is set, rather than
// lazily on first read, so the type carries no interior mutability.
type ThinTx struct {
	full     Hash
	hasFull  bool
	cheap    uint64
	hasCheap bool
	shortid  uint64
	salt     ShortIDSalt
	hasShort bool
}

// NullThinTx returns the empty identity, carrying no facet.
func NullThinTx() ThinTx {
	return ThinTx{}
}

// ThinTxFromFull builds an identity around a full transaction hash. The
// cheap hash is derived immediately, since it costs only an 8-byte copy.
func ThinTxFromFull(full Hash) ThinTx {
	return ThinTx{
		full:     full,
		hasFull:  true,
		cheap:    cheapHashOf(full),
		hasCheap: true,
	}
}

// ThinTxFromCheap builds an identity around only an 8-byte cheap hash.
func ThinTxFromCheap(cheap uint64) ThinTx {
	return ThinTx{cheap: cheap, hasCheap: true}
}

// ThinTxFromShortID builds an identity around a short-ID computed under the
// given salt.
func ThinTxFromShortID(shortid uint64, salt ShortIDSalt) ThinTx {
	return ThinTx{shortid: shortid, salt: salt, hasShort: true}
}

// cheapHashOf returns the first 8 bytes of a 32-byte hash as a little-endian
// uint64, the "cheap hash" used by xthin blocks.
func cheapHashOf(full Hash) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(full[i]) << (8 * i)
	}
	return v
}

func (t ThinTx) HasFull() bool  { return t.hasFull }
func (t ThinTx) Full() Hash     { return t.full }
func (t ThinTx) HasCheap() bool { return t.hasCheap }
func (t ThinTx) Cheap() uint64  { return t.cheap }

func (t ThinTx) HasShortID() bool           { return t.hasShort }
func (t ThinTx) ShortID() uint64            { return t.shortid }
func (t ThinTx) ShortIDSaltUsed() ShortIDSalt { return t.salt }

// IsNull reports whether no facet has been populated.
func (t ThinTx) IsNull() bool {
	return !t.hasFull && !t.hasCheap && !t.hasShort
}

// shortIDUnder returns this identity's short-ID computed under salt,
// deriving it from the full hash when necessary.
func (t ThinTx) shortIDUnder(salt ShortIDSalt) (uint64, bool) {
	if t.hasShort && t.salt == salt {
		return t.shortid, true
	}
	if t.hasFull {
		return ShortID(salt, t.full), true
	}
	return 0, false
}

// ShortIDUnderSalt is the exported form of shortIDUnder, used by callers
// (e.g. ThinBlockBuilder) that need to test an identity against a
// particular salt without going through Equals.
func (t ThinTx) ShortIDUnderSalt(salt ShortIDSalt) (uint64, bool) {
	return t.shortIDUnder(salt)
}

// Equals implements the fuzzy, best-effort comparison described in §3: when
// both sides carry a short-ID under the same salt, compare short-IDs;
// otherwise, if either side has a full hash, recompute the other's short-ID
// under the counterpart's salt; otherwise fall back to full==full or
// cheap==cheap.
func (t ThinTx) Equals(o ThinTx) bool {
	if t.hasShort && o.hasShort && t.salt == o.salt {
		return t.shortid == o.shortid
	}
	if t.hasFull && o.hasShort {
		id, _ := t.shortIDUnder(o.salt)
		return id == o.shortid
	}
	if o.hasFull && t.hasShort {
		id, _ := o.shortIDUnder(t.salt)
		return id == t.shortid
	}
	if t.hasFull && o.hasFull {
		return t.full == o.full
	}
	if t.hasCheap && o.hasCheap {
		return t.cheap == o.cheap
	}
	return false
}

// Merge combines facets from tx into t without contradiction. If both carry
// a cheap hash, they must agree; mismatches are a caller bug, not a wire
// error, so Merge reports it via error rather than silently preferring one
// side.
func (t ThinTx) Merge(o ThinTx) (ThinTx, error) {
	out := t
	if o.hasCheap {
		if out.hasCheap && out.cheap != o.cheap {
			return ThinTx{}, fmt.Errorf("thintx merge: cheap hash mismatch")
		}
		out.cheap = o.cheap
		out.hasCheap = true
	}
	if o.hasFull {
		if out.hasFull && out.full != o.full {
			return ThinTx{}, fmt.Errorf("thintx merge: full hash mismatch")
		}
		out.full = o.full
		out.hasFull = true
		out.cheap = cheapHashOf(out.full)
		out.hasCheap = true
	}
	if o.hasShort {
		if out.hasShort && out.salt == o.salt && out.shortid != o.shortid {
			return ThinTx{}, fmt.Errorf("thintx merge: short-id mismatch under shared salt")
		}
		out.shortid = o.shortid
		out.salt = o.salt
		out.hasShort = true
	}
	return out, nil
}
