package network

import (
	"sync"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// MisbehaviorBanThreshold is the cumulative misbehavior score at which a
// peer is disconnected and banned.
const MisbehaviorBanThreshold = 100

// PeerState is a peer's propagation-layer bookkeeping: everything
// HeaderProcessor, AnnounceReceiver, and AnnounceSender need to remember
// about one peer between messages. It is owned by NodeState, not by the
// peer itself, so completion callbacks from the reconstruction registry can
// reach it without extending the peer connection's lifetime.
type PeerState struct {
	mu sync.Mutex

	PeerID string

	Misbehavior int32

	BestKnownBlock        *blockchain.HeaderNode
	HashLastUnknownBlock  wire.Hash
	CommonBlock           *blockchain.HeaderNode
	BestHeaderSent        *blockchain.HeaderNode
	UnconnectingHeaders   uint32

	PrefersHeaders        bool
	PrefersBlocks         bool
	SupportsCompactBlocks bool
	CompactBlockVersion   uint64
	SupportsXThin         bool
	SupportsBloomFilters  bool

	Worker Worker
	Filter *wire.BloomFilter

	BlocksInFlight  uint32
	StallingSinceUs int64
}

// NewPeerState creates the zero-value propagation state for a freshly
// connected peer.
func NewPeerState(peerID string) *PeerState {
	return &PeerState{PeerID: peerID}
}

// Misbehave adds weight to the peer's misbehavior score and reports whether
// the peer has now crossed the ban threshold.
func (ps *PeerState) Misbehave(weight int) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.Misbehavior += int32(weight)
	return ps.Misbehavior >= MisbehaviorBanThreshold
}

// SupportsThin reports whether the peer negotiated any PeerWorker variant
// (compact blocks, xthin, or BIP 37 bloom-filtered merkle blocks), per
// §4.5/§4.7's supports_thin(P) predicate.
func (ps *PeerState) SupportsThin() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.SupportsCompactBlocks || ps.SupportsXThin || ps.SupportsBloomFilters
}

// Score returns the peer's current misbehavior score.
func (ps *PeerState) Score() int32 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.Misbehavior
}

// UpdateBestFromLast resolves HashLastUnknownBlock against the header
// index; if it is now known and carries chain work at least equal to the
// current BestKnownBlock, it is promoted, per §4.10.
func (ps *PeerState) UpdateBestFromLast(headers *blockchain.HeaderIndex) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.HashLastUnknownBlock.IsZero() {
		return
	}
	node, ok := headers.GetHeader(ps.HashLastUnknownBlock)
	if !ok {
		return
	}
	if ps.BestKnownBlock == nil || node.ChainWork.Cmp(ps.BestKnownBlock.ChainWork) >= 0 {
		ps.BestKnownBlock = node
		ps.HashLastUnknownBlock = wire.Hash{}
	}
}

// NodeState is the single process-wide owner of the propagation layer's
// shared, lockable state: per-peer bookkeeping, the reconstruction
// registry, the in-flight index, and the header chain. Replacing the
// source's scattered global maps, every handler receives this explicitly
// rather than reaching for package-level state.
type NodeState struct {
	mu sync.RWMutex

	peers map[string]*PeerState

	Headers         *blockchain.HeaderIndex
	Reconstruction  *ReconstructionManager
	InFlight        *InFlightIndex
	MempoolIndex    *blockchain.MempoolIndex

	banned map[string]struct{}
}

// NewNodeState wires together a fresh propagation-layer state for one node.
func NewNodeState(headers *blockchain.HeaderIndex, mempoolIdx *blockchain.MempoolIndex) *NodeState {
	return &NodeState{
		peers:          make(map[string]*PeerState),
		Headers:        headers,
		Reconstruction: NewReconstructionManager(),
		InFlight:       NewInFlightIndex(),
		MempoolIndex:   mempoolIdx,
		banned:         make(map[string]struct{}),
	}
}

// PeerState returns (creating if necessary) the propagation state for
// peerID.
func (ns *NodeState) PeerState(peerID string) *PeerState {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ps, ok := ns.peers[peerID]
	if !ok {
		ps = NewPeerState(peerID)
		ns.peers[peerID] = ps
	}
	return ps
}

// RemovePeer drops a peer's state and unwinds anything the registry and
// in-flight index still hold on its behalf.
func (ns *NodeState) RemovePeer(peerID string) {
	ns.mu.Lock()
	delete(ns.peers, peerID)
	ns.mu.Unlock()

	ns.Reconstruction.DetachPeer(peerID)
	ns.InFlight.EraseAllForPeer(peerID)
}

// IsBanned reports whether peerID (keyed by address) is currently banned.
func (ns *NodeState) IsBanned(addr string) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	_, ok := ns.banned[addr]
	return ok
}

// Ban marks addr as banned.
func (ns *NodeState) Ban(addr string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.banned[addr] = struct{}{}
}
