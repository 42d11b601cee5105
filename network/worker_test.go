package network

import (
	"fmt"
	"testing"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// capturingSender records the (msgType, payload) pairs it was asked to send,
// so tests can inspect what a worker actually requested.
type capturingSender struct {
	msgTypes []string
	payloads []interface{}
}

func (s *capturingSender) SendMessage(msgType string, payload interface{}) error {
	s.msgTypes = append(s.msgTypes, msgType)
	s.payloads = append(s.payloads, payload)
	return nil
}

func TestCompactWorkerRequestBlockSendsGetDataCmpctBlock(t *testing.T) {
	rm := NewReconstructionManager()
	mempoolIdx := blockchain.NewMempoolIndex(blockchain.NewMempool())
	w := NewCompactWorker("peerA", rm, mempoolIdx)
	sender := &capturingSender{}

	hash := wire.Hash{0x01}
	if err := w.RequestBlock(hash, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.msgTypes) != 1 || sender.msgTypes[0] != MsgTypeGetData {
		t.Fatalf("expected a single getdata message, got %v", sender.msgTypes)
	}
	req, ok := sender.payloads[0].(*GetDataMessage)
	if !ok || req.Type != "cmpct_block" {
		t.Fatalf("expected a cmpct_block getdata request, got %+v", sender.payloads[0])
	}
	if !w.IsWorkingOn(hash) {
		t.Fatalf("expected the worker to track hash as in-progress after requesting it")
	}
}

func TestBloomMerkleWorkerRequestBlockSendsFilteredBlock(t *testing.T) {
	rm := NewReconstructionManager()
	w := NewBloomMerkleWorker("peerA", rm)
	sender := &capturingSender{}

	hash := wire.Hash{0x02}
	if err := w.RequestBlock(hash, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, ok := sender.payloads[0].(*GetDataMessage)
	if !ok || req.Type != "filtered_block" {
		t.Fatalf("expected a filtered_block getdata request, got %+v", sender.payloads[0])
	}
}

func TestXThinWorkerRequestBlockSendsGetXThin(t *testing.T) {
	rm := NewReconstructionManager()
	w := NewXThinWorker("peerA", rm, func() []wire.Hash { return nil })
	sender := &capturingSender{}

	hash := wire.Hash{0x03}
	if err := w.RequestBlock(hash, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.msgTypes) != 1 || sender.msgTypes[0] != MsgTypeGetXThin {
		t.Fatalf("expected a get_xthin message, got %v", sender.msgTypes)
	}
}

func TestWorkBaseTracksWorkAndRerequestState(t *testing.T) {
	rm := NewReconstructionManager()
	w := NewCompactWorker("peerA", rm, blockchain.NewMempoolIndex(blockchain.NewMempool()))
	hash := wire.Hash{0x04}

	if w.IsWorkingOn(hash) {
		t.Fatalf("should not be working on a hash before AddWork")
	}
	w.AddWork(hash)
	if !w.IsWorkingOn(hash) {
		t.Fatalf("expected IsWorkingOn to be true after AddWork")
	}
	if w.IsRerequesting(hash) {
		t.Fatalf("should not be rerequesting before MarkRerequesting")
	}
	w.MarkRerequesting(hash)
	if !w.IsRerequesting(hash) {
		t.Fatalf("expected IsRerequesting to be true after MarkRerequesting")
	}
	w.StopWork(hash)
	if w.IsWorkingOn(hash) || w.IsRerequesting(hash) {
		t.Fatalf("StopWork should clear both working and rerequesting state")
	}
}

func TestWorkBaseIsOnlyWorkerReflectsRegistry(t *testing.T) {
	rm := NewReconstructionManager()
	w1 := NewCompactWorker("peerA", rm, blockchain.NewMempoolIndex(blockchain.NewMempool()))
	hash := wire.Hash{0x05}

	rm.AddWorker(hash, "peerA", w1)
	if !w1.IsOnlyWorker(hash) {
		t.Fatalf("expected to be the only worker with one registrant")
	}

	w2 := NewBloomMerkleWorker("peerB", rm)
	rm.AddWorker(hash, "peerB", w2)
	if w1.IsOnlyWorker(hash) {
		t.Fatalf("expected not to be the only worker once a second peer joins")
	}
}

func TestNewWorkerForPeerSelectsByCapability(t *testing.T) {
	genesis := genesisHeader()
	sm := &SyncManager{node: NewNodeState(
		blockchain.NewHeaderIndex(&genesis),
		blockchain.NewMempoolIndex(blockchain.NewMempool()),
	)}

	cases := []struct {
		name    string
		version *VersionMessage
		want    string
	}{
		{"xthin preferred over bloom", &VersionMessage{SupportsXThin: true, SupportsBloomFilters: true}, "*network.XThinWorker"},
		{"bloom when xthin unsupported", &VersionMessage{SupportsBloomFilters: true}, "*network.BloomMerkleWorker"},
		{"compact fallback", &VersionMessage{}, "*network.CompactWorker"},
		{"compact fallback on nil version", nil, "*network.CompactWorker"},
	}

	for _, c := range cases {
		w := sm.newWorkerForPeer("peerA", c.version)
		got := fmt.Sprintf("%T", w)
		if got != c.want {
			t.Fatalf("%s: got worker type %s, want %s", c.name, got, c.want)
		}
	}
}

func TestWorkBaseStopAllWorkDetachesFromRegistry(t *testing.T) {
	rm := NewReconstructionManager()
	w := NewCompactWorker("peerA", rm, blockchain.NewMempoolIndex(blockchain.NewMempool()))
	hash := wire.Hash{0x06}

	w.AddWork(hash)
	rm.AddWorker(hash, "peerA", w)
	if rm.WorkersFor(hash) != 1 {
		t.Fatalf("expected the worker to be registered")
	}

	w.StopAllWork()
	if rm.WorkersFor(hash) != 0 {
		t.Fatalf("expected StopAllWork to detach the peer from the registry")
	}
	if w.IsWorkingOn(hash) {
		t.Fatalf("expected StopAllWork to clear local working state")
	}
}
