package network

import (
	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// compactFinder resolves a compact block's wanted identities against the
// mempool by short-ID, under the salt that particular block's header+nonce
// derive.
func compactFinder(mi *blockchain.MempoolIndex, salt wire.ShortIDSalt) TxFinder {
	return func(want wire.ThinTx) (*wire.MsgTx, bool) {
		id, ok := want.ShortIDUnderSalt(salt)
		if !ok {
			return nil, false
		}
		return mi.FindByShortID(salt, id)
	}
}

// xthinFinder resolves an xthin block's wanted identities against the
// mempool by cheap hash.
func xthinFinder(mi *blockchain.MempoolIndex) TxFinder {
	return func(want wire.ThinTx) (*wire.MsgTx, bool) {
		if !want.HasCheap() {
			return nil, false
		}
		return mi.FindByCheapHash(want.Cheap())
	}
}
