package blockchain

import (
	"sync"

	"obsidian-core/wire"
)

// collision is a sentinel stored in a short-ID table in place of a real
// transaction hash, marking a short-ID that two distinct mempool
// transactions happen to share under the table's salt. A collision entry is
// never resolved to either transaction: the caller must fall back to a
// getblocktxn/getxblocktx re-request for that slot.
var collision = wire.Hash{0xff}

// shortIDTable is a lazily-built short-id -> tx-hash lookup for one salt.
type shortIDTable struct {
	salt       wire.ShortIDSalt
	byShort    map[uint64]wire.Hash
	generation int
}

// MempoolIndex is the short-ID lookup table block reconstruction uses to
// resolve a compact/xthin block's short-IDs and cheap hashes against the
// local mempool without re-hashing every mempool transaction per lookup.
// Tables are built lazily, one per distinct salt a caller asks to resolve
// against, and are invalidated whenever the backing mempool's membership
// changes.
type MempoolIndex struct {
	mu    sync.Mutex
	pool  *Mempool
	short map[wire.ShortIDSalt]*shortIDTable

	generation int // bumped on every mempool mutation observed
}

// NewMempoolIndex wraps an existing mempool with short-ID lookup support.
func NewMempoolIndex(pool *Mempool) *MempoolIndex {
	return &MempoolIndex{
		pool:  pool,
		short: make(map[wire.ShortIDSalt]*shortIDTable),
	}
}

// Invalidate must be called whenever the underlying mempool gains or loses
// transactions, so the next lookup rebuilds rather than serving a stale
// table. The pool exposes no change-notification hook, so callers that
// bypass AddTransaction/RemoveTransaction below must invoke this themselves.
func (mi *MempoolIndex) Invalidate() {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.generation++
}

// AddTransaction adds tx to the backing mempool and invalidates any cached
// short-id tables.
func (mi *MempoolIndex) AddTransaction(tx *wire.MsgTx, height int32, fee int64) error {
	if err := mi.pool.AddTransaction(tx, height, fee); err != nil {
		return err
	}
	mi.Invalidate()
	return nil
}

// RemoveTransaction removes txHash from the backing mempool and invalidates
// any cached short-id tables.
func (mi *MempoolIndex) RemoveTransaction(txHash wire.Hash) {
	mi.pool.RemoveTransaction(txHash)
	mi.Invalidate()
}

// tableFor returns the short-ID table for salt, building (or rebuilding, if
// stale) it on demand.
func (mi *MempoolIndex) tableFor(salt wire.ShortIDSalt) *shortIDTable {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	if t, ok := mi.short[salt]; ok && t.generation == mi.generation {
		return t
	}

	t := &shortIDTable{salt: salt, byShort: make(map[uint64]wire.Hash), generation: mi.generation}
	for _, tx := range mi.pool.GetTransactions() {
		full := tx.TxHash()
		id := wire.ShortID(salt, full)
		if existing, ok := t.byShort[id]; ok {
			if existing != full {
				t.byShort[id] = collision
			}
			continue
		}
		t.byShort[id] = full
	}
	mi.short[salt] = t
	return t
}

// FindByShortID resolves a compact-block short-ID against the mempool under
// the given salt. A collision between two mempool transactions is reported
// as not-found, never as a guess.
func (mi *MempoolIndex) FindByShortID(salt wire.ShortIDSalt, shortid uint64) (*wire.MsgTx, bool) {
	t := mi.tableFor(salt)
	full, ok := t.byShort[shortid]
	if !ok || full == collision {
		return nil, false
	}
	tx := mi.pool.GetTransactionOrNil(full)
	if tx == nil {
		return nil, false
	}
	return tx, true
}

// FindByCheapHash resolves an xthin cheap hash by scanning the mempool.
// Xthin's 8-byte cheap hash is not salted, so no per-block table helps here;
// a collision (two mempool transactions sharing a cheap hash) is reported as
// not-found.
func (mi *MempoolIndex) FindByCheapHash(cheap uint64) (*wire.MsgTx, bool) {
	var found *wire.MsgTx
	for _, tx := range mi.pool.GetTransactions() {
		full := tx.TxHash()
		if cheapHash(full) != cheap {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = tx
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// cheapHash mirrors wire's unexported cheapHashOf: the low 8 bytes of a
// 32-byte hash, little-endian.
func cheapHash(full wire.Hash) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(full[i]) << (8 * i)
	}
	return v
}
