package network

import (
	"sync"
	"testing"

	"obsidian-core/wire"
)

// fakeWorker is a minimal Worker double that just records StopWork calls.
type fakeWorker struct {
	mu      sync.Mutex
	peerID  string
	stopped []wire.Hash
}

func newFakeWorker(peerID string) *fakeWorker { return &fakeWorker{peerID: peerID} }

func (w *fakeWorker) PeerID() string                { return w.peerID }
func (w *fakeWorker) AddWork(hash wire.Hash)         {}
func (w *fakeWorker) StopAllWork()                   {}
func (w *fakeWorker) IsWorkingOn(wire.Hash) bool     { return true }
func (w *fakeWorker) IsRerequesting(wire.Hash) bool  { return false }
func (w *fakeWorker) MarkRerequesting(wire.Hash)     {}
func (w *fakeWorker) IsOnlyWorker(wire.Hash) bool    { return true }
func (w *fakeWorker) RequestBlock(wire.Hash, MessageSender) error {
	return nil
}
func (w *fakeWorker) StopWork(hash wire.Hash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = append(w.stopped, hash)
}

func TestReconstructionManagerBuildStubFirstPeerCreatesBuilder(t *testing.T) {
	rm := NewReconstructionManager()
	block, wanted, _ := buildWantedBlock(2)
	hash := block.BlockHash()

	complete, got, err := rm.BuildStub(hash, block.Header, wanted, []*wire.MsgTx{block.Transactions[0]}, nil, "peerA", newFakeWorker("peerA"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if complete {
		t.Fatalf("should not be complete after only the coinbase is provided")
	}
	if got != nil {
		t.Fatalf("expected nil block while incomplete")
	}
	if rm.WorkersFor(hash) != 1 {
		t.Fatalf("expected 1 registered worker, got %d", rm.WorkersFor(hash))
	}
}

func TestReconstructionManagerBuildStubCompletesAndFiresCallback(t *testing.T) {
	rm := NewReconstructionManager()
	block, wanted, _ := buildWantedBlock(1)
	hash := block.BlockHash()

	var gotHash wire.Hash
	var gotBlock *wire.MsgBlock
	var gotWorkers []Worker
	rm.SetOnComplete(func(h wire.Hash, b *wire.MsgBlock, ws []Worker) {
		gotHash, gotBlock, gotWorkers = h, b, ws
	})

	complete, _, err := rm.BuildStub(hash, block.Header, wanted, block.Transactions, nil, "peerA", newFakeWorker("peerA"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !complete {
		t.Fatalf("expected completion once every transaction is provided")
	}
	if gotHash != hash {
		t.Fatalf("callback got wrong hash")
	}
	if gotBlock == nil || gotBlock.BlockHash() != hash {
		t.Fatalf("callback did not receive the reconstructed block")
	}
	if len(gotWorkers) != 1 {
		t.Fatalf("expected 1 worker in callback, got %d", len(gotWorkers))
	}
	if rm.WorkersFor(hash) != 0 {
		t.Fatalf("registry entry should be cleared after completion")
	}
}

func TestReconstructionManagerSecondPeerJoinsExistingBuilder(t *testing.T) {
	rm := NewReconstructionManager()
	block, wanted, _ := buildWantedBlock(1)
	hash := block.BlockHash()

	rm.BuildStub(hash, block.Header, wanted, nil, nil, "peerA", newFakeWorker("peerA"))
	complete, _, err := rm.BuildStub(hash, block.Header, wanted, block.Transactions, nil, "peerB", newFakeWorker("peerB"))
	if err != nil {
		t.Fatalf("unexpected error joining existing builder: %v", err)
	}
	if !complete {
		t.Fatalf("second peer's missingProvided should have completed the block")
	}
}

func TestReconstructionManagerAddTxRoutesAndCompletes(t *testing.T) {
	rm := NewReconstructionManager()
	block, wanted, _ := buildWantedBlock(1)
	hash := block.BlockHash()

	rm.BuildStub(hash, block.Header, wanted, []*wire.MsgTx{block.Transactions[0]}, nil, "peerA", newFakeWorker("peerA"))

	if ok := rm.AddTx(hash, block.Transactions[1]); !ok {
		t.Fatalf("expected AddTx to report the transaction as wanted")
	}

	foreign := tbTx(999)
	unknownHash := wire.Hash{0xEE}
	if ok := rm.AddTx(unknownHash, foreign); ok {
		t.Fatalf("AddTx on an unregistered hash must report false")
	}
}

func TestReconstructionManagerRemoveIfExistsStopsWorkers(t *testing.T) {
	rm := NewReconstructionManager()
	block, wanted, _ := buildWantedBlock(1)
	hash := block.BlockHash()

	worker := newFakeWorker("peerA")
	rm.BuildStub(hash, block.Header, wanted, nil, nil, "peerA", worker)

	rm.RemoveIfExists(hash)
	if rm.WorkersFor(hash) != 0 {
		t.Fatalf("expected the registry entry to be gone")
	}
	if len(worker.stopped) != 1 || worker.stopped[0] != hash {
		t.Fatalf("expected the worker's StopWork to be called with %v, got %v", hash, worker.stopped)
	}
}

func TestReconstructionManagerAnnounceHandleEvictionFIFO(t *testing.T) {
	rm := NewReconstructionManager()

	for i := 0; i < MaxAnnounceHandles; i++ {
		_, evicted := rm.RegisterAnnounceHandle(peerName(i))
		if evicted {
			t.Fatalf("should not evict before exceeding MaxAnnounceHandles")
		}
	}

	evictedPeer, didEvict := rm.RegisterAnnounceHandle("overflow")
	if !didEvict {
		t.Fatalf("expected eviction once past MaxAnnounceHandles")
	}
	if evictedPeer != peerName(0) {
		t.Fatalf("expected FIFO eviction of the first-registered peer, got %q", evictedPeer)
	}
}

func TestReconstructionManagerRegisterAnnounceHandleIsIdempotent(t *testing.T) {
	rm := NewReconstructionManager()
	rm.RegisterAnnounceHandle("peerA")
	_, evicted := rm.RegisterAnnounceHandle("peerA")
	if evicted {
		t.Fatalf("re-registering an existing handle must not evict anything")
	}
}

func peerName(i int) string {
	return string(rune('A' + i))
}
