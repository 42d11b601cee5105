package network

import (
	"sync"
	"time"

	"obsidian-core/wire"
)

// BlockStallingTimeout is how far behind the fastest peer's delivery a
// block request is allowed to lag before its peer is judged stalling.
const BlockStallingTimeout = 2 * time.Second

// QueuedBlock is one outstanding block request: a peer is expected to
// deliver `Hash` before `TimeoutAt`, and HeadersValidated records whether
// the header chain leading to it has already been accepted (so a `block`
// reply can skip re-validating ancestry).
type QueuedBlock struct {
	PeerID           string
	Hash             wire.Hash
	RequestedAt      time.Time
	TimeoutAt        time.Time
	HeadersValidated bool
}

// InFlightIndex is the process-wide record of outstanding block requests,
// shared across every peer so AnnounceReceiver can refuse to double-fetch a
// block two peers both announced and so stalling peers can be identified
// and disconnected.
type InFlightIndex struct {
	mu sync.Mutex

	// byHash indexes outstanding requests by block hash, since at most one
	// peer should ever be fetching a given (full, non-thin) block.
	byHash map[wire.Hash]*QueuedBlock

	// byPeer tracks how many blocks each peer currently has in flight, for
	// the per-peer MAX_BLOCKS_IN_TRANSIT_PER_PEER cap.
	byPeer map[string]int
}

// NewInFlightIndex constructs an empty index.
func NewInFlightIndex() *InFlightIndex {
	return &InFlightIndex{
		byHash: make(map[wire.Hash]*QueuedBlock),
		byPeer: make(map[string]int),
	}
}

// Insert records a new outstanding request. It does not check for an
// existing entry under the same hash; callers should consult IsInFlight
// first when the strategy requires at-most-one-fetcher semantics (full
// blocks), since thin-block requests are deliberately allowed to fan out to
// several peers at once.
func (idx *InFlightIndex) Insert(peerID string, hash wire.Hash, timeout time.Duration) *QueuedBlock {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := time.Now()
	qb := &QueuedBlock{
		PeerID:      peerID,
		Hash:        hash,
		RequestedAt: now,
		TimeoutAt:   now.Add(timeout),
	}
	idx.byHash[hash] = qb
	idx.byPeer[peerID]++
	return qb
}

// Erase removes the outstanding request for hash, if any, and decrements
// that peer's in-flight count.
func (idx *InFlightIndex) Erase(hash wire.Hash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.eraseLocked(hash)
}

func (idx *InFlightIndex) eraseLocked(hash wire.Hash) {
	qb, ok := idx.byHash[hash]
	if !ok {
		return
	}
	delete(idx.byHash, hash)
	idx.byPeer[qb.PeerID]--
	if idx.byPeer[qb.PeerID] <= 0 {
		delete(idx.byPeer, qb.PeerID)
	}
}

// EraseAllForPeer drops every outstanding request belonging to peerID,
// called when a peer disconnects or is dropped for stalling.
func (idx *InFlightIndex) EraseAllForPeer(peerID string) []wire.Hash {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var dropped []wire.Hash
	for hash, qb := range idx.byHash {
		if qb.PeerID == peerID {
			dropped = append(dropped, hash)
		}
	}
	for _, hash := range dropped {
		idx.eraseLocked(hash)
	}
	return dropped
}

// IsInFlight reports whether any peer currently has an outstanding request
// for hash.
func (idx *InFlightIndex) IsInFlight(hash wire.Hash) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.byHash[hash]
	return ok
}

// QueuedFor returns the outstanding request for hash, if any.
func (idx *InFlightIndex) QueuedFor(hash wire.Hash) (*QueuedBlock, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	qb, ok := idx.byHash[hash]
	return qb, ok
}

// PeerBlocksInFlight returns how many blocks peerID currently has
// outstanding, for the MAX_BLOCKS_IN_TRANSIT_PER_PEER check.
func (idx *InFlightIndex) PeerBlocksInFlight(peerID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.byPeer[peerID]
}

// FindStalling returns the peer ID of the slowest outstanding request that
// has exceeded BlockStallingTimeout, if any, along with the stalled hash.
// The caller is expected to disconnect that peer and erase its entries.
func (idx *InFlightIndex) FindStalling(now time.Time) (peerID string, hash wire.Hash, stalling bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var slowest *QueuedBlock
	for _, qb := range idx.byHash {
		if now.Before(qb.TimeoutAt) {
			continue
		}
		if slowest == nil || qb.RequestedAt.Before(slowest.RequestedAt) {
			slowest = qb
		}
	}
	if slowest == nil {
		return "", wire.Hash{}, false
	}
	return slowest.PeerID, slowest.Hash, true
}
