package blockchain

import (
	"fmt"
	"math/big"
	"sync"

	"obsidian-core/wire"
)

// HeaderNode is one link in the header-only chain the propagation layer
// tracks independently of full block storage, so header processing and
// announcement logic can run ahead of (or without ever needing) the
// consensus collaborator's block validation.
type HeaderNode struct {
	Header    wire.BlockHeader
	Hash      wire.Hash
	Height    int32
	Parent    *HeaderNode
	ChainWork *big.Int
}

var maxWorkTarget = new(big.Int).Lsh(big.NewInt(1), 256)

// calcHeaderWork approximates the work a single header contributes as
// 2^256 / (target+1), the same formula the consensus collaborator uses to
// compare candidate tips.
func calcHeaderWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(1)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	work := new(big.Int).Div(maxWorkTarget, denom)
	if work.Sign() == 0 {
		return big.NewInt(1)
	}
	return work
}

// HeaderIndex is the in-memory header chain: every header-processing and
// announcement decision in the propagation layer is made against this
// structure rather than the full block database.
type HeaderIndex struct {
	mu      sync.RWMutex
	nodes   map[wire.Hash]*HeaderNode
	genesis *HeaderNode
	tip     *HeaderNode
}

// NewHeaderIndex seeds the index with a chain's genesis header.
func NewHeaderIndex(genesis *wire.BlockHeader) *HeaderIndex {
	node := &HeaderNode{
		Header:    *genesis,
		Hash:      genesis.BlockHash(),
		Height:    0,
		ChainWork: calcHeaderWork(genesis.Bits),
	}
	return &HeaderIndex{
		nodes:   map[wire.Hash]*HeaderNode{node.Hash: node},
		genesis: node,
		tip:     node,
	}
}

// HasHeader reports whether hash is already indexed.
func (hi *HeaderIndex) HasHeader(hash wire.Hash) bool {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	_, ok := hi.nodes[hash]
	return ok
}

// GetHeader looks up an indexed header node by hash.
func (hi *HeaderIndex) GetHeader(hash wire.Hash) (*HeaderNode, bool) {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	n, ok := hi.nodes[hash]
	return n, ok
}

// Tip returns the header node with the most accumulated work.
func (hi *HeaderIndex) Tip() *HeaderNode {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	return hi.tip
}

// AddHeader connects a new header to an already-indexed parent, returning
// the resulting node. It returns an error (not a ProtocolError — that
// judgment belongs to HeaderProcessor, which knows the peer context) when
// the header's prev hash is not yet indexed.
func (hi *HeaderIndex) AddHeader(h *wire.BlockHeader) (*HeaderNode, error) {
	hi.mu.Lock()
	defer hi.mu.Unlock()

	hash := h.BlockHash()
	if existing, ok := hi.nodes[hash]; ok {
		return existing, nil
	}

	parent, ok := hi.nodes[h.PrevBlock]
	if !ok {
		return nil, fmt.Errorf("header %s does not connect: parent %s unknown", hash, h.PrevBlock)
	}

	node := &HeaderNode{
		Header:    *h,
		Hash:      hash,
		Height:    parent.Height + 1,
		Parent:    parent,
		ChainWork: new(big.Int).Add(parent.ChainWork, calcHeaderWork(h.Bits)),
	}
	hi.nodes[hash] = node
	if node.ChainWork.Cmp(hi.tip.ChainWork) > 0 {
		hi.tip = node
	}
	return node, nil
}

// Locator builds a block locator for `from`: recent hashes walked back
// densely, then exponentially, terminating at genesis — the standard
// getheaders locator construction.
func (hi *HeaderIndex) Locator(from *HeaderNode) []wire.Hash {
	hi.mu.RLock()
	defer hi.mu.RUnlock()

	var locator []wire.Hash
	step := 1
	node := from
	for node != nil {
		locator = append(locator, node.Hash)
		if node == hi.genesis {
			break
		}
		for i := 0; i < step && node.Parent != nil; i++ {
			node = node.Parent
		}
		if len(locator) >= 10 {
			step *= 2
		}
	}
	return locator
}

// FindCommonAncestor walks the shorter of two chains up to the taller's
// height, then walks both up together until they meet.
func (hi *HeaderIndex) FindCommonAncestor(a, b *HeaderNode) *HeaderNode {
	hi.mu.RLock()
	defer hi.mu.RUnlock()

	for a.Height > b.Height {
		a = a.Parent
	}
	for b.Height > a.Height {
		b = b.Parent
	}
	for a != b {
		a = a.Parent
		b = b.Parent
	}
	return a
}

// HeadersBetween returns the ordered, ancestor-exclusive path from `from`
// (exclusive) to `to` (inclusive) — the list of headers a peer would need
// announced or fetched to catch up from `from` to `to`.
func (hi *HeaderIndex) HeadersBetween(from, to *HeaderNode) []*HeaderNode {
	hi.mu.RLock()
	defer hi.mu.RUnlock()

	if to.Height <= from.Height {
		return nil
	}
	path := make([]*HeaderNode, 0, to.Height-from.Height)
	node := to
	for node != from && node != nil {
		path = append(path, node)
		node = node.Parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// LocateAfter returns the best chain's header nodes that follow the highest
// locator hash it knows, in ascending height order, mirroring getheaders'
// "headers after the most recent match" semantics. The run ends at the stop
// hash (inclusive) when it lies on that path, and holds at most 2000 nodes.
// It starts at the genesis node's child (height 1) when none of the locator
// hashes match.
func (hi *HeaderIndex) LocateAfter(locator []wire.Hash, stop wire.Hash) []*HeaderNode {
	hi.mu.RLock()
	defer hi.mu.RUnlock()

	var start *HeaderNode
	for _, h := range locator {
		if n, ok := hi.nodes[h]; ok {
			if start == nil || n.Height > start.Height {
				start = n
			}
		}
	}
	if start == nil {
		start = hi.genesis
	}

	result := make([]*HeaderNode, 0)
	node := hi.tip
	// walk from tip back to start, then reverse, honoring a stop hash.
	chain := make([]*HeaderNode, 0)
	for node != nil && node.Height > start.Height {
		chain = append(chain, node)
		if node.Hash == stop {
			chain = chain[len(chain)-1:]
		}
		node = node.Parent
	}
	for i := len(chain) - 1; i >= 0; i-- {
		result = append(result, chain[i])
		if len(result) >= 2000 {
			break
		}
	}
	return result
}
