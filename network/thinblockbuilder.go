package network

import (
	"obsidian-core/wire"
)

// AddResult reports what add_transaction did with an incoming transaction.
type AddResult int

const (
	// Added means tx filled a previously-empty wanted slot.
	Added AddResult = iota
	// Duplicate means tx resolves to a slot that was already filled.
	Duplicate
	// Unwanted means tx does not match any slot this builder is tracking.
	Unwanted
)

// TxFinder looks up a candidate body for a wanted identity, typically
// backed by a blockchain.MempoolIndex. It returns (nil, false) on a miss.
type TxFinder func(want wire.ThinTx) (*wire.MsgTx, bool)

// MissingSlot names one still-empty slot by its absolute block index and
// the identity the builder is waiting to receive for it.
type MissingSlot struct {
	Index int
	Want  wire.ThinTx
}

// ThinBlockBuilder accumulates one block's transactions from whatever
// sources deliver them — an initial mempool finder, `add_transaction` calls
// fed by a re-request response, or a second peer's stub — and finalizes
// once every slot is filled and the Merkle root checks out.
type ThinBlockBuilder struct {
	header BlockHeaderRef
	wanted []wire.ThinTx
	slots  []*wire.MsgTx

	// byShortID indexes empty slots by short-ID, built per the salt each
	// wanted entry was expressed under. Slot 0 (coinbase) is never entered
	// here: coinbase is always prefilled and must never be resolved from a
	// short-id guess alone.
	byShortID map[shortIDKey]int
}

// BlockHeaderRef is a thin alias kept distinct from wire.BlockHeader so the
// builder's header field reads clearly at call sites; it is the same type.
type BlockHeaderRef = wire.BlockHeader

type shortIDKey struct {
	salt wire.ShortIDSalt
	id   uint64
}

// NewThinBlockBuilder constructs a builder for a target (header, wanted)
// pair, immediately filling whatever slots finder can resolve.
func NewThinBlockBuilder(header wire.BlockHeader, wanted []wire.ThinTx, finder TxFinder) *ThinBlockBuilder {
	b := &ThinBlockBuilder{
		header:    header,
		wanted:    wanted,
		slots:     make([]*wire.MsgTx, len(wanted)),
		byShortID: make(map[shortIDKey]int),
	}
	for i, w := range wanted {
		if i > 0 && w.HasShortID() {
			b.byShortID[shortIDKey{salt: w.ShortIDSaltUsed(), id: w.ShortID()}] = i
		}
		if finder == nil {
			continue
		}
		if tx, ok := finder(w); ok {
			b.slots[i] = tx
		}
	}
	return b
}

// AddTransaction tries to match tx against an empty wanted slot: first by
// short-ID (under any salt any wanted entry carries), then by full hash,
// then by cheap hash. Ties among empty slots are broken by lowest index.
func (b *ThinBlockBuilder) AddTransaction(tx *wire.MsgTx) AddResult {
	full := tx.TxHash()
	identity := wire.ThinTxFromFull(full)

	for key, idx := range b.byShortID {
		if b.slots[idx] != nil {
			continue
		}
		if id, ok := identity.ShortIDUnderSalt(key.salt); ok && id == key.id {
			return b.fill(idx, tx)
		}
	}

	for idx, w := range b.wanted {
		if b.slots[idx] != nil {
			continue
		}
		if w.Equals(identity) {
			return b.fill(idx, tx)
		}
	}

	// Already resolved somewhere? Treat as duplicate rather than unwanted.
	for idx, slot := range b.slots {
		if slot != nil && slot.TxHash() == full {
			_ = idx
			return Duplicate
		}
	}

	return Unwanted
}

func (b *ThinBlockBuilder) fill(idx int, tx *wire.MsgTx) AddResult {
	b.slots[idx] = tx
	delete(b.byShortID, b.keyFor(idx))
	return Added
}

func (b *ThinBlockBuilder) keyFor(idx int) shortIDKey {
	w := b.wanted[idx]
	return shortIDKey{salt: w.ShortIDSaltUsed(), id: w.ShortID()}
}

// ReplaceWantedTx merges a second peer's stub into this builder: lengths
// must agree and every cheap facet present on both sides must agree; each
// slot's identity is merged (best-known facet kept) rather than overwritten.
func (b *ThinBlockBuilder) ReplaceWantedTx(newWanted []wire.ThinTx) error {
	if len(newWanted) != len(b.wanted) {
		return wire.NewProtocolError(wire.ErrReconstructionMismatch, 0,
			"stub length mismatch between peers")
	}
	merged := make([]wire.ThinTx, len(b.wanted))
	for i := range b.wanted {
		m, err := b.wanted[i].Merge(newWanted[i])
		if err != nil {
			return wire.NewProtocolError(wire.ErrReconstructionMismatch, 0, err.Error())
		}
		merged[i] = m
	}
	b.wanted = merged

	b.byShortID = make(map[shortIDKey]int)
	for i, w := range b.wanted {
		if i > 0 && b.slots[i] == nil && w.HasShortID() {
			b.byShortID[shortIDKey{salt: w.ShortIDSaltUsed(), id: w.ShortID()}] = i
		}
	}
	return nil
}

// Missing returns the still-empty slots, in ascending index order.
func (b *ThinBlockBuilder) Missing() []MissingSlot {
	out := make([]MissingSlot, 0)
	for i, slot := range b.slots {
		if slot == nil {
			out = append(out, MissingSlot{Index: i, Want: b.wanted[i]})
		}
	}
	return out
}

// IsComplete reports whether every slot is filled.
func (b *ThinBlockBuilder) IsComplete() bool {
	for _, slot := range b.slots {
		if slot == nil {
			return false
		}
	}
	return true
}

// Finish assembles the final block once every slot is filled, rejecting the
// result if the recomputed Merkle root disagrees with the header.
func (b *ThinBlockBuilder) Finish() (*wire.MsgBlock, error) {
	for _, slot := range b.slots {
		if slot == nil {
			return nil, wire.NewProtocolError(wire.ErrReconstructionMismatch, 0,
				"finish called with empty slots")
		}
	}

	block := &wire.MsgBlock{Header: b.header, Transactions: append([]*wire.MsgTx(nil), b.slots...)}
	if block.ComputeMerkleRoot() != b.header.MerkleRoot {
		return nil, wire.NewProtocolError(wire.ErrMerkleMismatch, 0, "reconstructed merkle root mismatch")
	}
	return block, nil
}
