package wire

// Prefiller decides, for a transaction at a given index in a block, whether
// the sender should bundle its full body inline rather than relying on the
// receiver's mempool. The compact-block encoder takes one so that callers
// can tune how aggressively they prefill without duplicating the encoding
// logic; the xthin encoder does not take one and picks its bodies from the
// peer's "don't want" filter instead.
type Prefiller interface {
	ShouldPrefill(index int, tx *MsgTx) bool
}

// CoinbaseOnlyPrefiller prefills only the coinbase transaction, which must
// always be sent in full since no peer's mempool will ever contain it.
type CoinbaseOnlyPrefiller struct{}

func (CoinbaseOnlyPrefiller) ShouldPrefill(index int, tx *MsgTx) bool {
	return index == 0
}

// InventoryKnownPrefiller additionally prefills any transaction the sender
// believes the receiving peer does not have, based on a supplied lookup
// (typically "is this hash in the peer's announced inventory filter").
type InventoryKnownPrefiller struct {
	PeerLikelyHas func(txHash Hash) bool
}

func (p InventoryKnownPrefiller) ShouldPrefill(index int, tx *MsgTx) bool {
	if index == 0 {
		return true
	}
	if p.PeerLikelyHas == nil {
		return false
	}
	return !p.PeerLikelyHas(tx.TxHash())
}
