package network

import (
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// Strategy is the outcome of AnnounceReceiver.PickStrategy for one
// (block, peer) pair.
type Strategy int

const (
	DontDownload Strategy = iota
	DownloadFullNow
	DownloadThinNow
	DownloadThinLater
)

// AnnounceReceiver decides, for each block hash a peer announces, whether
// and how to fetch it — §4.7.
type AnnounceReceiver struct {
	node             *NodeState
	thinEnabled      bool
	thinMaxParallel  int
	avoidFullBlocks  bool
	powTargetSpacing time.Duration
}

// NewAnnounceReceiver constructs a receiver bound to the shared node state.
func NewAnnounceReceiver(node *NodeState, powTargetSpacing time.Duration) *AnnounceReceiver {
	return &AnnounceReceiver{
		node:             node,
		thinEnabled:      true,
		thinMaxParallel:  ThinMaxParallelDefault,
		powTargetSpacing: powTargetSpacing,
	}
}

// SetAvoidFullBlocks toggles the -blocksonly-style refusal to fetch full
// blocks outright.
func (ar *AnnounceReceiver) SetAvoidFullBlocks(avoid bool) { ar.avoidFullBlocks = avoid }

// AlmostSynced reports whether the local tip is recent enough (within 20
// target-spacing intervals of now) to justify eagerly fetching announced
// blocks at all.
func (ar *AnnounceReceiver) AlmostSynced(now time.Time) bool {
	tip := ar.node.Headers.Tip()
	cutoff := now.Add(-20 * ar.powTargetSpacing)
	return tip.Header.Timestamp.After(cutoff)
}

// PickStrategy implements §4.7's pick_strategy decision table.
func (ar *AnnounceReceiver) PickStrategy(now time.Time, hash wire.Hash, peerID string, supportsThin bool, haveBlockData bool) Strategy {
	if !ar.AlmostSynced(now) {
		return DontDownload
	}
	if haveBlockData {
		return DontDownload
	}
	if supportsThin && ar.thinEnabled {
		if ar.node.Reconstruction.WorkersFor(hash) >= ar.thinMaxParallel {
			return DontDownload
		}
		return DownloadThinNow
	}
	if ar.node.InFlight.IsInFlight(hash) {
		return DontDownload
	}
	if ar.node.InFlight.PeerBlocksInFlight(peerID) >= MaxBlocksInTransitPerPeer {
		return DontDownload
	}
	if ar.avoidFullBlocks {
		return DontDownload
	}
	return DownloadFullNow
}

// Dispatch carries out the chosen strategy: for DownloadThinNow it invokes
// the worker and registers it with the reconstruction registry; for
// DownloadFullNow it sends a getheaders locator first when the header is
// still unknown, then a getdata(MSG_BLOCK), and records the request in the
// in-flight index.
func (ar *AnnounceReceiver) Dispatch(strategy Strategy, hash wire.Hash, peerID string, worker Worker, sender MessageSender, headerKnown bool) error {
	switch strategy {
	case DownloadThinNow:
		ar.node.Reconstruction.AddWorker(hash, peerID, worker)
		return worker.RequestBlock(hash, sender)

	case DownloadFullNow:
		if !headerKnown {
			tip := ar.node.Headers.Tip()
			locator := ar.node.Headers.Locator(tip)
			req := &GetHeadersMessage{Locator: locator}
			if len(locator) > 0 {
				req.StartHash = locator[0]
			}
			if err := sender.SendMessage(MsgTypeGetHeaders, req); err != nil {
				return err
			}
		}
		ar.node.InFlight.Insert(peerID, hash, BlockStallingTimeout)
		return sender.SendMessage(MsgTypeGetData, &GetDataMessage{Type: "block", Hashes: []wire.Hash{hash}})

	default:
		return nil
	}
}

// AnnounceSender decides, on each local tip advance, what to tell each
// connected peer — §4.8.
type AnnounceSender struct {
	node *NodeState
}

// NewAnnounceSender constructs a sender bound to the shared node state.
func NewAnnounceSender(node *NodeState) *AnnounceSender {
	return &AnnounceSender{node: node}
}

// FindHeadersToAnnounce walks back from newTip to oldTip, reverses the
// result into announce order. It returns nil when the path holds more than
// MaxBlocksToAnnounce headers.
func (as *AnnounceSender) FindHeadersToAnnounce(oldTip, newTip *blockchain.HeaderNode) []*blockchain.HeaderNode {
	path := as.node.Headers.HeadersBetween(oldTip, newTip)
	if len(path) > MaxBlocksToAnnounce {
		return nil // too long: caller falls back to inv
	}
	return path
}

// AnnouncementPlan is what AnnounceSender decided to send one peer.
type AnnouncementPlan struct {
	SendCompactBlock *blockchain.HeaderNode
	SendHeaders      []*blockchain.HeaderNode
	SendInv          wire.Hash
}

// PlanForPeer decides, for one peer's pending announce list, whether to
// send a single cmpctblock, a headers batch, or fall back to inv.
func (as *AnnounceSender) PlanForPeer(ps *PeerState, pending []*blockchain.HeaderNode, haveBlockData func(wire.Hash) bool) AnnouncementPlan {
	tip := as.node.Headers.Tip()

	if len(pending) == 0 {
		return AnnouncementPlan{}
	}

	onActiveChain := as.onActiveChain(pending, tip)

	if ps.PrefersBlocks && len(pending) == 1 && onActiveChain && haveBlockData(pending[0].Hash) {
		return AnnouncementPlan{SendCompactBlock: pending[0]}
	}

	if ps.PrefersHeaders && onActiveChain && as.connects(ps, pending) {
		return AnnouncementPlan{SendHeaders: pending}
	}

	return AnnouncementPlan{SendInv: tip.Hash}
}

func (as *AnnounceSender) onActiveChain(pending []*blockchain.HeaderNode, tip *blockchain.HeaderNode) bool {
	last := pending[len(pending)-1]
	return last.Hash == tip.Hash || as.node.Headers.FindCommonAncestor(last, tip) == last
}

func (as *AnnounceSender) connects(ps *PeerState, pending []*blockchain.HeaderNode) bool {
	if ps.BestHeaderSent == nil {
		return true
	}
	return pending[0].Parent != nil && as.node.Headers.FindCommonAncestor(pending[0], ps.BestHeaderSent) != nil
}
