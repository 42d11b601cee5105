package network

import (
	"testing"
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

func TestAnnounceReceiverAlmostSyncedRespectsTargetSpacing(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)

	// Genesis header was stamped ~1 minute in the past (see genesisHeader),
	// well within 20 * 1-minute spacing of "now".
	if !ar.AlmostSynced(time.Now()) {
		t.Fatalf("expected AlmostSynced to be true with a recent tip")
	}

	stale := time.Now().Add(2 * time.Hour)
	if ar.AlmostSynced(stale) {
		t.Fatalf("expected AlmostSynced to be false once the cutoff has passed")
	}
}

func TestAnnounceReceiverPickStrategyDontDownloadWhenNotSynced(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)

	farFuture := time.Now().Add(2 * time.Hour)
	strategy := ar.PickStrategy(farFuture, wire.Hash{0x01}, "peerA", true, false)
	if strategy != DontDownload {
		t.Fatalf("expected DontDownload when not almost synced, got %v", strategy)
	}
}

func TestAnnounceReceiverPickStrategyAlreadyHaveData(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)

	strategy := ar.PickStrategy(time.Now(), wire.Hash{0x01}, "peerA", true, true)
	if strategy != DontDownload {
		t.Fatalf("expected DontDownload when block data is already held, got %v", strategy)
	}
}

func TestAnnounceReceiverPickStrategyThinWhenSupported(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)

	strategy := ar.PickStrategy(time.Now(), wire.Hash{0x01}, "peerA", true, false)
	if strategy != DownloadThinNow {
		t.Fatalf("expected DownloadThinNow for a thin-capable peer, got %v", strategy)
	}
}

func TestAnnounceReceiverPickStrategyThinCapsParallelism(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)
	hash := wire.Hash{0x01}

	for i := 0; i < ThinMaxParallelDefault; i++ {
		node.Reconstruction.AddWorker(hash, peerName(i), newFakeWorker(peerName(i)))
	}

	strategy := ar.PickStrategy(time.Now(), hash, "overflow-peer", true, false)
	if strategy != DontDownload {
		t.Fatalf("expected DontDownload once thin parallelism cap is reached, got %v", strategy)
	}
}

func TestAnnounceReceiverPickStrategyFullBlockPath(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)
	hash := wire.Hash{0x02}

	strategy := ar.PickStrategy(time.Now(), hash, "peerA", false, false)
	if strategy != DownloadFullNow {
		t.Fatalf("expected DownloadFullNow for a peer with no thin support, got %v", strategy)
	}

	node.InFlight.Insert("peerB", hash, BlockStallingTimeout)
	strategy = ar.PickStrategy(time.Now(), hash, "peerA", false, false)
	if strategy != DontDownload {
		t.Fatalf("expected DontDownload once the block is already in flight, got %v", strategy)
	}
}

func TestAnnounceReceiverPickStrategyAvoidFullBlocks(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)
	ar.SetAvoidFullBlocks(true)

	strategy := ar.PickStrategy(time.Now(), wire.Hash{0x03}, "peerA", false, false)
	if strategy != DontDownload {
		t.Fatalf("expected DontDownload when full blocks are avoided, got %v", strategy)
	}
}

func TestAnnounceReceiverDispatchThinRegistersWorker(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)
	hash := wire.Hash{0x04}
	worker := newFakeWorker("peerA")
	sender := &recordingSender{}

	if err := ar.Dispatch(DownloadThinNow, hash, "peerA", worker, sender, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Reconstruction.WorkersFor(hash) != 1 {
		t.Fatalf("expected the worker to be registered with the reconstruction manager")
	}
}

func TestAnnounceReceiverDispatchFullSendsGetHeadersWhenUnknown(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, time.Minute)
	hash := wire.Hash{0x05}
	sender := &recordingSender{}

	if err := ar.Dispatch(DownloadFullNow, hash, "peerA", nil, sender, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 2 || sender.sent[0] != MsgTypeGetHeaders || sender.sent[1] != MsgTypeGetData {
		t.Fatalf("expected a getheaders-then-getdata sequence, got %v", sender.sent)
	}
	if !node.InFlight.IsInFlight(hash) {
		t.Fatalf("expected the request to be recorded as in flight")
	}
}

func TestAnnounceSenderFindHeadersToAnnounceRejectsOverflow(t *testing.T) {
	node, genesis := newTestNodeState()
	as := NewAnnounceSender(node)

	prev := genesis
	var last *wire.BlockHeader
	for i := 0; i < MaxBlocksToAnnounce+2; i++ {
		h := childHeader(prev, uint32(i+1))
		node.Headers.AddHeader(&h)
		prev = h
		last = &h
	}

	oldTip, _ := node.Headers.GetHeader(genesis.BlockHash())
	newTip, _ := node.Headers.GetHeader(last.BlockHash())

	if got := as.FindHeadersToAnnounce(oldTip, newTip); got != nil {
		t.Fatalf("expected nil (overflow signal) when the path exceeds MaxBlocksToAnnounce, got %d entries", len(got))
	}
}

func TestAnnounceSenderFindHeadersToAnnounceReturnsPath(t *testing.T) {
	node, genesis := newTestNodeState()
	as := NewAnnounceSender(node)

	h1 := childHeader(genesis, 1)
	node.Headers.AddHeader(&h1)
	h2 := childHeader(h1, 2)
	node.Headers.AddHeader(&h2)

	oldTip, _ := node.Headers.GetHeader(genesis.BlockHash())
	newTip, _ := node.Headers.GetHeader(h2.BlockHash())

	got := as.FindHeadersToAnnounce(oldTip, newTip)
	if len(got) != 2 {
		t.Fatalf("expected 2 headers on the path, got %d", len(got))
	}
	if got[0].Hash != h1.BlockHash() || got[1].Hash != h2.BlockHash() {
		t.Fatalf("expected the path in ancestor-to-tip order")
	}
}

func TestAnnounceSenderPlanForPeerCompactBlockWhenPreferred(t *testing.T) {
	node, genesis := newTestNodeState()
	as := NewAnnounceSender(node)

	h1 := childHeader(genesis, 1)
	node.Headers.AddHeader(&h1)
	newTip, _ := node.Headers.GetHeader(h1.BlockHash())

	ps := node.PeerState("peerA")
	ps.PrefersBlocks = true

	plan := as.PlanForPeer(ps, []*blockchain.HeaderNode{newTip}, func(wire.Hash) bool { return true })
	if plan.SendCompactBlock == nil {
		t.Fatalf("expected a compact-block plan for a single-header, block-preferring peer")
	}
}

func TestAnnounceSenderPlanForPeerHeadersWhenPreferred(t *testing.T) {
	node, genesis := newTestNodeState()
	as := NewAnnounceSender(node)

	h1 := childHeader(genesis, 1)
	node.Headers.AddHeader(&h1)
	h2 := childHeader(h1, 2)
	node.Headers.AddHeader(&h2)
	n1, _ := node.Headers.GetHeader(h1.BlockHash())
	n2, _ := node.Headers.GetHeader(h2.BlockHash())

	ps := node.PeerState("peerA")
	ps.PrefersHeaders = true

	plan := as.PlanForPeer(ps, []*blockchain.HeaderNode{n1, n2}, func(wire.Hash) bool { return false })
	if len(plan.SendHeaders) != 2 {
		t.Fatalf("expected a 2-header announcement plan, got %+v", plan)
	}
}

func TestAnnounceSenderPlanForPeerFallsBackToInv(t *testing.T) {
	node, genesis := newTestNodeState()
	as := NewAnnounceSender(node)

	h1 := childHeader(genesis, 1)
	node.Headers.AddHeader(&h1)
	n1, _ := node.Headers.GetHeader(h1.BlockHash())

	ps := node.PeerState("peerA") // neither PrefersBlocks nor PrefersHeaders set

	plan := as.PlanForPeer(ps, []*blockchain.HeaderNode{n1}, func(wire.Hash) bool { return false })
	if plan.SendCompactBlock != nil || len(plan.SendHeaders) != 0 {
		t.Fatalf("expected an inv-only fallback plan, got %+v", plan)
	}
}
