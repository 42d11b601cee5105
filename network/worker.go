package network

import (
	"math/rand"
	"sync"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// MessageSender is the minimal peer-connection contract a Worker needs to
// issue requests. *Peer satisfies it directly.
type MessageSender interface {
	SendMessage(msgType string, payload interface{}) error
}

// Worker is the per-peer driver of block reconstruction. The source
// expresses XThin/Compact/BloomMerkle as subclasses of a common worker
// base; here they are three concrete types behind one interface, selected
// at construction time by peer capability rather than by virtual dispatch.
type Worker interface {
	PeerID() string
	AddWork(hash wire.Hash)
	StopWork(hash wire.Hash)
	StopAllWork()
	IsWorkingOn(hash wire.Hash) bool
	IsRerequesting(hash wire.Hash) bool
	MarkRerequesting(hash wire.Hash)
	IsOnlyWorker(hash wire.Hash) bool
	RequestBlock(hash wire.Hash, sender MessageSender) error
}

// workBase holds the bookkeeping shared by every worker variant: which
// block hashes it is currently contributing to, and which of those it has
// already sent a re-request for.
type workBase struct {
	mu           sync.Mutex
	peerID       string
	registry     *ReconstructionManager
	working      map[wire.Hash]struct{}
	rerequesting map[wire.Hash]struct{}
}

func newWorkBase(peerID string, registry *ReconstructionManager) workBase {
	return workBase{
		peerID:       peerID,
		registry:     registry,
		working:      make(map[wire.Hash]struct{}),
		rerequesting: make(map[wire.Hash]struct{}),
	}
}

func (w *workBase) PeerID() string { return w.peerID }

func (w *workBase) AddWork(hash wire.Hash) {
	w.mu.Lock()
	w.working[hash] = struct{}{}
	w.mu.Unlock()
}

func (w *workBase) StopWork(hash wire.Hash) {
	w.mu.Lock()
	delete(w.working, hash)
	delete(w.rerequesting, hash)
	w.mu.Unlock()
}

func (w *workBase) IsWorkingOn(hash wire.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.working[hash]
	return ok
}

func (w *workBase) IsRerequesting(hash wire.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.rerequesting[hash]
	return ok
}

func (w *workBase) MarkRerequesting(hash wire.Hash) {
	w.mu.Lock()
	w.rerequesting[hash] = struct{}{}
	w.mu.Unlock()
}

func (w *workBase) IsOnlyWorker(hash wire.Hash) bool {
	return w.registry.WorkersFor(hash) <= 1
}

// stopAllWork releases every hash this worker is tracking, detaching it
// from the registry for each. Must be called when the owning peer
// disconnects, mirroring the source's destructor contract.
func (w *workBase) stopAllWork(self Worker) {
	w.mu.Lock()
	hashes := make([]wire.Hash, 0, len(w.working))
	for h := range w.working {
		hashes = append(hashes, h)
	}
	w.working = make(map[wire.Hash]struct{})
	w.rerequesting = make(map[wire.Hash]struct{})
	w.mu.Unlock()

	for _, h := range hashes {
		w.registry.DelWorker(h, self.PeerID())
	}
}

// BloomMerkleWorker requests MSG_FILTERED_BLOCK and reconstructs from the
// merkleblock match list; it never short-circuits via the local mempool
// since the peer's own bloom filter already selects what it wants.
type BloomMerkleWorker struct {
	workBase
}

// NewBloomMerkleWorker constructs a worker for a peer that advertised bloom
// filter support but not xthin.
func NewBloomMerkleWorker(peerID string, registry *ReconstructionManager) *BloomMerkleWorker {
	return &BloomMerkleWorker{workBase: newWorkBase(peerID, registry)}
}

func (w *BloomMerkleWorker) StopAllWork() { w.stopAllWork(w) }

func (w *BloomMerkleWorker) RequestBlock(hash wire.Hash, sender MessageSender) error {
	w.AddWork(hash)
	return sender.SendMessage(MsgTypeGetData, &GetDataMessage{Type: "filtered_block", Hashes: []wire.Hash{hash}})
}

// XThinWorker requests an xthin-encoded block, attaching a "don't want"
// bloom filter built from the local mempool so the sender omits whatever
// this node already holds.
type XThinWorker struct {
	workBase
	mempoolHashes func() []wire.Hash
}

// NewXThinWorker constructs an xthin-capable worker. mempoolHashes supplies
// the current mempool's transaction hashes on demand, used to build the
// per-request "don't want" filter.
func NewXThinWorker(peerID string, registry *ReconstructionManager, mempoolHashes func() []wire.Hash) *XThinWorker {
	return &XThinWorker{workBase: newWorkBase(peerID, registry), mempoolHashes: mempoolHashes}
}

func (w *XThinWorker) StopAllWork() { w.stopAllWork(w) }

func (w *XThinWorker) RequestBlock(hash wire.Hash, sender MessageSender) error {
	w.AddWork(hash)

	hashes := w.mempoolHashes()
	if len(hashes) > wire.MaxDontWantElements {
		hashes = hashes[:wire.MaxDontWantElements]
	}
	filter := wire.NewDontWantFilter(hashes, rand.Uint32())

	req := &wire.GetXThin{
		BlockHash: hash,
		Filter: wire.FilterLoadMsg{
			Filter:    filter.Bytes(),
			HashFuncs: filter.HashFuncCount(),
			Tweak:     filter.Tweak(),
			Flags:     wire.BloomUpdateNone,
		},
	}
	return sendRawWireMessage(sender, MsgTypeGetXThin, req.Encode)
}

// RequestMissing sends a get_xblocktx re-request for the cheap hashes still
// unresolved after an xthinblock.
func (w *XThinWorker) RequestMissing(hash wire.Hash, cheapHashes []uint64, sender MessageSender) error {
	w.MarkRerequesting(hash)
	req := wire.NewXThinReRequest(hash, cheapHashes)
	return sendRawWireMessage(sender, MsgTypeGetXBlockTx, req.Encode)
}

// CompactWorker requests MSG_CMPCT_BLOCK and resolves short-IDs against the
// mempool index keyed to the block's salt.
type CompactWorker struct {
	workBase
	mempoolIndex *blockchain.MempoolIndex
}

// NewCompactWorker constructs a compact-block-capable worker.
func NewCompactWorker(peerID string, registry *ReconstructionManager, mempoolIndex *blockchain.MempoolIndex) *CompactWorker {
	return &CompactWorker{workBase: newWorkBase(peerID, registry), mempoolIndex: mempoolIndex}
}

func (w *CompactWorker) StopAllWork() { w.stopAllWork(w) }

func (w *CompactWorker) RequestBlock(hash wire.Hash, sender MessageSender) error {
	w.AddWork(hash)
	return sender.SendMessage(MsgTypeGetData, &GetDataMessage{Type: "cmpct_block", Hashes: []wire.Hash{hash}})
}

// RequestMissing sends a getblocktxn re-request for the absolute indices
// still unresolved after a compact block.
func (w *CompactWorker) RequestMissing(hash wire.Hash, indexes []uint16, sender MessageSender) error {
	w.MarkRerequesting(hash)
	req := &wire.GetBlockTxn{BlockHash: hash, Indexes: indexes}
	return sendRawWireMessage(sender, MsgTypeGetBlockTxn, req.Encode)
}
