package network

import (
	"sync"

	"obsidian-core/wire"
)

// MaxAnnounceHandles bounds how many peers the manager will simultaneously
// hold a compact-block sendcmpct "please announce new blocks to me as
// cmpctblock" handle with; the least-recently-registered is evicted on
// overflow.
const MaxAnnounceHandles = 3

// ActiveBuilder is the registry entry for one block hash currently being
// reconstructed: the single shared Builder plus every peer worker
// contributing to or waiting on it.
type ActiveBuilder struct {
	Builder *ThinBlockBuilder
	Workers map[string]Worker
}

// CompletionFunc is invoked once a block finishes reconstruction. workers is
// every peer worker that had registered interest in the hash, so the
// registry's caller can fan completion out to all of them (and to
// AnnounceSender for downstream re-announcement).
type CompletionFunc func(hash wire.Hash, block *wire.MsgBlock, workers []Worker)

// ReconstructionManager is the cross-peer registry described in §3/§4.4: it
// guarantees at most one Builder exists per block hash no matter how many
// peers race to announce it, routes incoming transactions to the right
// builder, and fans out completion to every worker that joined.
type ReconstructionManager struct {
	mu     sync.Mutex
	active map[wire.Hash]*ActiveBuilder

	announceHandles []string

	onComplete CompletionFunc
}

// NewReconstructionManager constructs an empty registry.
func NewReconstructionManager() *ReconstructionManager {
	return &ReconstructionManager{
		active: make(map[wire.Hash]*ActiveBuilder),
	}
}

// SetOnComplete installs the callback fired when a block finishes
// reconstruction.
func (rm *ReconstructionManager) SetOnComplete(fn CompletionFunc) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.onComplete = fn
}

// AddWorker registers worker as interested in hash, creating the registry
// entry if this is the first peer to ask about it.
func (rm *ReconstructionManager) AddWorker(hash wire.Hash, peerID string, worker Worker) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	ab, ok := rm.active[hash]
	if !ok {
		ab = &ActiveBuilder{Workers: make(map[string]Worker)}
		rm.active[hash] = ab
	}
	ab.Workers[peerID] = worker
}

// DelWorker removes peerID's interest in hash. If it was the last worker
// and no builder has completed, the entry is dropped entirely.
func (rm *ReconstructionManager) DelWorker(hash wire.Hash, peerID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.delWorkerLocked(hash, peerID)
}

func (rm *ReconstructionManager) delWorkerLocked(hash wire.Hash, peerID string) {
	ab, ok := rm.active[hash]
	if !ok {
		return
	}
	delete(ab.Workers, peerID)
	if len(ab.Workers) == 0 {
		delete(rm.active, hash)
	}
}

// DetachPeer removes peerID from every active builder it had joined,
// called when a peer disconnects.
func (rm *ReconstructionManager) DetachPeer(peerID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for hash := range rm.active {
		rm.delWorkerLocked(hash, peerID)
	}
}

// BuildStub implements §4.4's build_stub contract: the first peer to
// deliver a stub for hash creates the Builder; subsequent peers merge their
// stub into the existing one via ReplaceWantedTx. Provided missing bodies
// (stub.missing_provided(), the inline-sent transactions of a compact or
// xthin block) are applied before reporting completion.
func (rm *ReconstructionManager) BuildStub(
	hash wire.Hash,
	header wire.BlockHeader,
	allTx []wire.ThinTx,
	missingProvided []*wire.MsgTx,
	finder TxFinder,
	peerID string,
	worker Worker,
) (complete bool, block *wire.MsgBlock, err error) {
	rm.mu.Lock()

	ab, exists := rm.active[hash]
	if !exists {
		ab = &ActiveBuilder{
			Builder: NewThinBlockBuilder(header, allTx, finder),
			Workers: make(map[string]Worker),
		}
		rm.active[hash] = ab
	} else if ab.Builder == nil {
		ab.Builder = NewThinBlockBuilder(header, allTx, finder)
	} else if err := ab.Builder.ReplaceWantedTx(allTx); err != nil {
		rm.mu.Unlock()
		rm.RemoveIfExists(hash)
		return false, nil, err
	}
	ab.Workers[peerID] = worker

	for _, tx := range missingProvided {
		ab.Builder.AddTransaction(tx)
	}

	if !ab.Builder.IsComplete() {
		rm.mu.Unlock()
		return false, nil, nil
	}

	blk, finishErr := ab.Builder.Finish()
	if finishErr != nil {
		rm.mu.Unlock()
		rm.RemoveIfExists(hash)
		return false, nil, finishErr
	}

	workers := make([]Worker, 0, len(ab.Workers))
	for _, w := range ab.Workers {
		workers = append(workers, w)
	}
	onComplete := rm.onComplete
	delete(rm.active, hash)
	rm.mu.Unlock()

	if onComplete != nil {
		onComplete(hash, blk, workers)
	}
	return true, blk, nil
}

// AddTx feeds a single transaction (received from a getblocktxn/blocktxn or
// get_xblocktx/xblocktx reply) into hash's builder, reporting whether it
// belonged to the wanted set and firing completion if it finished the
// block.
func (rm *ReconstructionManager) AddTx(hash wire.Hash, tx *wire.MsgTx) bool {
	rm.mu.Lock()

	ab, ok := rm.active[hash]
	if !ok || ab.Builder == nil {
		rm.mu.Unlock()
		return false
	}

	result := ab.Builder.AddTransaction(tx)
	if result == Unwanted {
		rm.mu.Unlock()
		return false
	}

	if !ab.Builder.IsComplete() {
		rm.mu.Unlock()
		return true
	}

	blk, err := ab.Builder.Finish()
	if err != nil {
		rm.mu.Unlock()
		rm.RemoveIfExists(hash)
		return true
	}

	workers := make([]Worker, 0, len(ab.Workers))
	for _, w := range ab.Workers {
		workers = append(workers, w)
	}
	onComplete := rm.onComplete
	delete(rm.active, hash)
	rm.mu.Unlock()

	if onComplete != nil {
		onComplete(hash, blk, workers)
	}
	return true
}

// RemoveIfExists drops every worker registered on hash (each is told to
// stop working) and the builder itself, used to abort reconstruction after
// an unrecoverable error.
func (rm *ReconstructionManager) RemoveIfExists(hash wire.Hash) {
	rm.mu.Lock()
	ab, ok := rm.active[hash]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.active, hash)
	rm.mu.Unlock()

	for _, w := range ab.Workers {
		w.StopWork(hash)
	}
}

// WorkersFor returns how many distinct peers are currently registered on
// hash, used by AnnounceReceiver's thin-parallel cap.
func (rm *ReconstructionManager) WorkersFor(hash wire.Hash) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	ab, ok := rm.active[hash]
	if !ok {
		return 0
	}
	return len(ab.Workers)
}

// RegisterAnnounceHandle records that peerID has been asked (via sendcmpct)
// to announce new blocks directly. If this pushes the handle count past
// MaxAnnounceHandles, the least-recently-registered handle is evicted and
// returned so the caller can send it a disabling sendcmpct.
func (rm *ReconstructionManager) RegisterAnnounceHandle(peerID string) (evicted string, didEvict bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, p := range rm.announceHandles {
		if p == peerID {
			return "", false
		}
	}
	rm.announceHandles = append(rm.announceHandles, peerID)
	if len(rm.announceHandles) > MaxAnnounceHandles {
		evicted = rm.announceHandles[0]
		rm.announceHandles = rm.announceHandles[1:]
		return evicted, true
	}
	return "", false
}

// UnregisterAnnounceHandle removes peerID's announce handle, if any.
func (rm *ReconstructionManager) UnregisterAnnounceHandle(peerID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for i, p := range rm.announceHandles {
		if p == peerID {
			rm.announceHandles = append(rm.announceHandles[:i], rm.announceHandles[i+1:]...)
			return
		}
	}
}
