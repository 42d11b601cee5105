package network

import (
	"testing"
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// recordingSender is a MessageSender double that records every message it
// was asked to send, for assertions on getheaders follow-up requests.
type recordingSender struct {
	sent []string
}

func (s *recordingSender) SendMessage(msgType string, payload interface{}) error {
	s.sent = append(s.sent, msgType)
	return nil
}

func genesisHeader() wire.BlockHeader {
	return wire.BlockHeader{
		Version:    1,
		Timestamp:  time.Now().Add(-time.Minute),
		Bits:       0x1d00ffff,
		MerkleRoot: wire.Hash{0xAA},
	}
}

func childHeader(parent wire.BlockHeader, nonce uint32) wire.BlockHeader {
	return wire.BlockHeader{
		Version:    1,
		PrevBlock:  parent.BlockHash(),
		MerkleRoot: wire.Hash{byte(nonce)},
		Timestamp:  time.Now(),
		Bits:       0x1d00ffff,
		Nonce:      nonce,
	}
}

func newTestNodeState() (*NodeState, wire.BlockHeader) {
	genesis := genesisHeader()
	headers := blockchain.NewHeaderIndex(&genesis)
	mempoolIdx := blockchain.NewMempoolIndex(blockchain.NewMempool())
	return NewNodeState(headers, mempoolIdx), genesis
}

func TestHeaderProcessorRejectsNonContinuousSequence(t *testing.T) {
	node, genesis := newTestNodeState()
	ar := NewAnnounceReceiver(node, 10*time.Minute)
	hp := NewHeaderProcessor(node, ar)

	h1 := childHeader(genesis, 1)
	h2 := wire.BlockHeader{ // doesn't connect to h1
		Version:    1,
		PrevBlock:  wire.Hash{0xFF},
		MerkleRoot: wire.Hash{0x02},
		Timestamp:  time.Now(),
		Bits:       0x1d00ffff,
	}

	sender := &recordingSender{}
	ok, err := hp.Process([]*wire.BlockHeader{&h1, &h2}, "peerA", false, false, sender)
	if ok {
		t.Fatalf("expected Process to report false for a non-continuous batch")
	}
	if err == nil {
		t.Fatalf("expected an error for a non-continuous header sequence")
	}
	pe, ok := err.(*wire.ProtocolError)
	if !ok || pe.Kind != wire.ErrBadHeader {
		t.Fatalf("expected a bad-header ProtocolError, got %v", err)
	}
	if node.PeerState("peerA").Score() != 20 {
		t.Fatalf("expected misbehavior score 20, got %d", node.PeerState("peerA").Score())
	}
}

func TestHeaderProcessorRequestsLocatorOnUnconnectingHeader(t *testing.T) {
	node, _ := newTestNodeState()
	ar := NewAnnounceReceiver(node, 10*time.Minute)
	hp := NewHeaderProcessor(node, ar)

	orphan := wire.BlockHeader{
		Version:    1,
		PrevBlock:  wire.Hash{0x99}, // unknown parent
		MerkleRoot: wire.Hash{0x01},
		Timestamp:  time.Now(),
		Bits:       0x1d00ffff,
	}

	sender := &recordingSender{}
	ok, err := hp.Process([]*wire.BlockHeader{&orphan}, "peerA", false, false, sender)
	if ok || err != nil {
		t.Fatalf("expected (false, nil) for an unconnecting header batch, got (%v, %v)", ok, err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != MsgTypeGetHeaders {
		t.Fatalf("expected a getheaders follow-up, got %v", sender.sent)
	}
	if node.PeerState("peerA").UnconnectingHeaders != 1 {
		t.Fatalf("expected UnconnectingHeaders to increment")
	}
}

func TestHeaderProcessorAcceptsConnectingHeaders(t *testing.T) {
	node, genesis := newTestNodeState()
	ar := NewAnnounceReceiver(node, 10*time.Minute)
	hp := NewHeaderProcessor(node, ar)

	h1 := childHeader(genesis, 1)
	h2 := childHeader(h1, 2)

	sender := &recordingSender{}
	ok, err := hp.Process([]*wire.BlockHeader{&h1, &h2}, "peerA", false, false, sender)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected Process to report true for an accepted batch")
	}
	if !node.Headers.HasHeader(h2.BlockHash()) {
		t.Fatalf("expected the new tip to be indexed")
	}
}

func TestHeaderProcessorPeerSentMaxRequestsMore(t *testing.T) {
	node, genesis := newTestNodeState()
	ar := NewAnnounceReceiver(node, 10*time.Minute)
	hp := NewHeaderProcessor(node, ar)

	h1 := childHeader(genesis, 1)
	sender := &recordingSender{}
	if _, err := hp.Process([]*wire.BlockHeader{&h1}, "peerA", true, false, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != MsgTypeGetHeaders {
		t.Fatalf("expected a getheaders follow-up when the peer sent a full batch, got %v", sender.sent)
	}
}
