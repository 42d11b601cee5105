package network

import (
	"time"

	"obsidian-core/wire"
)

// HeaderProcessor validates header batches arriving out-of-band or ahead of
// a block, per §4.6.
type HeaderProcessor struct {
	node     *NodeState
	announce *AnnounceReceiver
}

// NewHeaderProcessor constructs a processor bound to the shared node state
// and the announce-receiver it hands direct-fetch decisions to.
func NewHeaderProcessor(node *NodeState, announce *AnnounceReceiver) *HeaderProcessor {
	return &HeaderProcessor{node: node, announce: announce}
}

// Process implements §4.6's process contract. It returns false (with no
// error) for the "handled, nothing further to do" cases — non-connecting
// headers and empty batches — and an error carrying a misbehavior weight
// when the batch itself is malformed.
func (hp *HeaderProcessor) Process(headers []*wire.BlockHeader, peerID string, peerSentMax bool, maybeAnnouncement bool, sender MessageSender) (bool, error) {
	if len(headers) == 0 {
		return false, nil
	}
	ps := hp.node.PeerState(peerID)

	for i := 1; i < len(headers); i++ {
		if headers[i].PrevBlock != headers[i-1].BlockHash() {
			ps.Misbehave(20)
			return false, wire.NewProtocolError(wire.ErrBadHeader, 20, "non-continuous header sequence")
		}
	}

	if !hp.node.Headers.HasHeader(headers[0].PrevBlock) {
		ps.UnconnectingHeaders++
		tip := hp.node.Headers.Tip()
		locator := hp.node.Headers.Locator(tip)
		_ = sender.SendMessage(MsgTypeGetHeaders, &GetHeadersMessage{Locator: locator, StartHash: firstOrZero(locator)})
		return false, nil
	}

	oldTip := hp.node.Headers.Tip()

	for _, h := range headers {
		if _, err := hp.node.Headers.AddHeader(h); err != nil {
			ps.Misbehave(20)
			return false, wire.NewProtocolError(wire.ErrBadHeader, 20, err.Error())
		}
	}

	if peerSentMax {
		tip := hp.node.Headers.Tip()
		locator := hp.node.Headers.Locator(tip)
		_ = sender.SendMessage(MsgTypeGetHeaders, &GetHeadersMessage{Locator: locator, StartHash: firstOrZero(locator)})
	}

	if maybeAnnouncement {
		newTip := hp.node.Headers.Tip()
		if newTip.ChainWork.Cmp(oldTip.ChainWork) >= 0 && newTip != oldTip {
			common := hp.node.Headers.FindCommonAncestor(oldTip, newTip)
			toFetch := hp.node.Headers.HeadersBetween(common, newTip)

			count := 0
			for _, n := range toFetch {
				if count >= MaxBlocksInTransitPerPeer {
					break
				}
				if hp.node.InFlight.IsInFlight(n.Hash) {
					continue
				}
				strategy := hp.announce.PickStrategy(time.Now(), n.Hash, peerID, ps.SupportsThin(), false)
				if strategy == DontDownload {
					continue
				}
				worker := ps.Worker
				if worker != nil {
					_ = hp.announce.Dispatch(strategy, n.Hash, peerID, worker, sender, true)
				}
				count++
			}
		}
	}

	return true, nil
}

func firstOrZero(locator []wire.Hash) wire.Hash {
	if len(locator) == 0 {
		return wire.Hash{}
	}
	return locator[0]
}
