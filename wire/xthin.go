package wire

import (
	"io"
	"sort"
)

// XThinBlock is the Bitcoin-Unlimited-style thin block encoding: every
// transaction in the block is represented by its 8-byte cheap hash, and the
// sender additionally attaches full bodies for whatever it believes (from
// the peer's bloom filter) the peer is missing. The coinbase is always
// included in Missing since no peer's mempool will ever already hold it.
type XThinBlock struct {
	Header   BlockHeader
	TxHashes []uint64 // cheap hash per transaction, in block order
	Missing  []*MsgTx // full bodies the sender believes the peer needs
}

// NewXThinBlock builds an xthin block from a full block and the requesting
// peer's "don't want" filter. When checkCollision is true (the normal case;
// unit tests may disable it) it rejects blocks where two transactions share
// a cheap hash, since the cheap hash alone can no longer disambiguate them.
func NewXThinBlock(block *MsgBlock, filter *BloomFilter, checkCollision bool) (*XThinBlock, error) {
	xb := &XThinBlock{
		Header:   block.Header,
		TxHashes: make([]uint64, len(block.Transactions)),
		Missing:  make([]*MsgTx, 0),
	}

	seen := make(map[uint64]Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		full := tx.TxHash()
		cheap := cheapHashOf(full)
		if checkCollision {
			if prior, ok := seen[cheap]; ok && prior != full {
				return nil, NewProtocolError(ErrCheapHashCollision, 0,
					"two transactions in block share a cheap hash")
			}
			seen[cheap] = full
		}
		xb.TxHashes[i] = cheap

		if i == 0 || filter == nil || !filter.ContainsHash(full) {
			xb.Missing = append(xb.Missing, tx)
		}
	}

	return xb, nil
}

// SelfValidate enforces §3's XThinBlock invariants on a block just decoded
// off the wire, before any reconstruction work begins: a non-null header, at
// least one cheap hash, a non-empty Missing set that covers the coinbase
// slot, no more missing bodies than cheap hashes, no duplicate cheap hash in
// the hash list, and every missing body's cheap hash actually present in
// that list. A peer that violates any of these is misbehaving, not merely
// slow, so every failure here carries WeightBadEncoding.
func (xb *XThinBlock) SelfValidate() error {
	if xb.Header.PrevBlock.IsZero() && xb.Header.MerkleRoot.IsZero() {
		return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block header is null")
	}
	if len(xb.TxHashes) == 0 {
		return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block carries no transactions")
	}
	if len(xb.Missing) == 0 {
		return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block carries no missing transactions")
	}
	if len(xb.Missing) > len(xb.TxHashes) {
		return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block has more missing bodies than cheap hashes")
	}

	seen := make(map[uint64]bool, len(xb.TxHashes))
	for _, h := range xb.TxHashes {
		if seen[h] {
			return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block cheap-hash list has a duplicate")
		}
		seen[h] = true
	}

	coinbaseCheap := xb.TxHashes[0]
	haveCoinbase := false
	for _, tx := range xb.Missing {
		cheap := cheapHashOf(tx.TxHash())
		if !seen[cheap] {
			return NewProtocolError(ErrBadEncoding, WeightBadEncoding,
				"missing transaction's cheap hash is not in the block's hash list")
		}
		if cheap == coinbaseCheap {
			haveCoinbase = true
		}
	}
	if !haveCoinbase {
		return NewProtocolError(ErrBadEncoding, WeightBadEncoding, "xthin block's missing set omits the coinbase")
	}

	return nil
}

// Encode writes the xthin block: header, COMPACTSIZE-prefixed cheap-hash
// vector (raw 8-byte little-endian each), then COMPACTSIZE-prefixed full
// transaction bodies.
func (xb *XThinBlock) Encode(w io.Writer) error {
	if err := xb.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(xb.TxHashes))); err != nil {
		return err
	}
	for _, h := range xb.TxHashes {
		if err := writeU64(w, h); err != nil {
			return err
		}
	}
	if err := WriteCompactSize(w, uint64(len(xb.Missing))); err != nil {
		return err
	}
	for _, tx := range xb.Missing {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeXThinBlock reads an xthin block written by Encode.
func DecodeXThinBlock(r io.Reader) (*XThinBlock, error) {
	header, err := DeserializeBlockHeader(r)
	if err != nil {
		return nil, err
	}
	numHashes, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	hashes := make([]uint64, numHashes)
	for i := range hashes {
		if hashes[i], err = readU64(r); err != nil {
			return nil, err
		}
	}
	numMissing, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	missing := make([]*MsgTx, numMissing)
	for i := range missing {
		if missing[i], err = DeserializeMsgTx(r); err != nil {
			return nil, err
		}
	}
	return &XThinBlock{Header: *header, TxHashes: hashes, Missing: missing}, nil
}

// AllThinTx returns the block's full transaction identity list, resolving
// each cheap hash to a ThinTx and overlaying the full hash wherever the
// position corresponds to a provided Missing body.
func (xb *XThinBlock) AllThinTx() []ThinTx {
	provided := make(map[uint64]Hash, len(xb.Missing))
	for _, tx := range xb.Missing {
		full := tx.TxHash()
		provided[cheapHashOf(full)] = full
	}
	out := make([]ThinTx, len(xb.TxHashes))
	for i, h := range xb.TxHashes {
		if full, ok := provided[h]; ok {
			out[i] = ThinTxFromFull(full)
		} else {
			out[i] = ThinTxFromCheap(h)
		}
	}
	return out
}

// GetXThin requests an xthin-encoded block, attaching the requester's
// "don't want" bloom filter so the sender knows what to omit from Missing.
type GetXThin struct {
	BlockHash Hash
	Filter    FilterLoadMsg
}

func (m *GetXThin) Encode(w io.Writer) error {
	if err := writeHash(w, m.BlockHash); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.Filter.Filter); err != nil {
		return err
	}
	if err := writeU64(w, uint64(m.Filter.HashFuncs)); err != nil {
		return err
	}
	if err := writeU64(w, uint64(m.Filter.Tweak)); err != nil {
		return err
	}
	var b [1]byte
	b[0] = m.Filter.Flags
	_, err := w.Write(b[:])
	return err
}

func DecodeGetXThin(r io.Reader) (*GetXThin, error) {
	hash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	filterBytes, err := readVarBytes(r, MaxBloomFilterSize)
	if err != nil {
		return nil, err
	}
	hashFuncs, err := readU64(r)
	if err != nil {
		return nil, err
	}
	tweak, err := readU64(r)
	if err != nil {
		return nil, err
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	return &GetXThin{
		BlockHash: hash,
		Filter: FilterLoadMsg{
			Filter:    filterBytes,
			HashFuncs: uint32(hashFuncs),
			Tweak:     uint32(tweak),
			Flags:     b[0],
		},
	}, nil
}

// XThinReRequest asks the sending peer for the full bodies of cheap hashes
// that went unresolved after an xthin block, e.g. because they were absent
// from the receiver's mempool or because two mempool transactions collided
// on the same cheap hash.
type XThinReRequest struct {
	BlockHash    Hash
	TxRequesting []uint64 // deduplicated, ascending
}

// NewXThinReRequest builds a request from an unordered, possibly duplicated
// set of cheap hashes, normalizing it the way the wire format expects.
func NewXThinReRequest(blockHash Hash, wanted []uint64) *XThinReRequest {
	seen := make(map[uint64]struct{}, len(wanted))
	dedup := make([]uint64, 0, len(wanted))
	for _, h := range wanted {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		dedup = append(dedup, h)
	}
	sort.Slice(dedup, func(i, j int) bool { return dedup[i] < dedup[j] })
	return &XThinReRequest{BlockHash: blockHash, TxRequesting: dedup}
}

func (m *XThinReRequest) Encode(w io.Writer) error {
	if err := writeHash(w, m.BlockHash); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(m.TxRequesting))); err != nil {
		return err
	}
	for _, h := range m.TxRequesting {
		if err := writeU64(w, h); err != nil {
			return err
		}
	}
	return nil
}

func DecodeXThinReRequest(r io.Reader) (*XThinReRequest, error) {
	hash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	n, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	requesting := make([]uint64, n)
	for i := range requesting {
		if requesting[i], err = readU64(r); err != nil {
			return nil, err
		}
	}
	return &XThinReRequest{BlockHash: hash, TxRequesting: requesting}, nil
}

// XThinReReqResponse answers an XThinReRequest with the requested
// transaction bodies, in arbitrary order; the receiver matches them back to
// slots by recomputing each body's cheap hash.
type XThinReReqResponse struct {
	BlockHash   Hash
	TxRequested []*MsgTx
}

func (m *XThinReReqResponse) Encode(w io.Writer) error {
	if err := writeHash(w, m.BlockHash); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(m.TxRequested))); err != nil {
		return err
	}
	for _, tx := range m.TxRequested {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

func DecodeXThinReReqResponse(r io.Reader) (*XThinReReqResponse, error) {
	hash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	n, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	txs := make([]*MsgTx, n)
	for i := range txs {
		tx, err := DeserializeMsgTx(r)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	return &XThinReReqResponse{BlockHash: hash, TxRequested: txs}, nil
}
