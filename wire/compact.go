package wire

import (
	"bytes"
	"fmt"
	"io"
)

// MinTransactionSize is the minimum serialized size a transaction is allowed
// to be, in bytes. Miners must pad the coinbase to at least this size so
// that BlockTxCount/min-tx-size remains a meaningful bound when validating a
// compact block: see Validate.
const MinTransactionSize = 60

// MaxProtocolMessageLength bounds any single wire message's decoded payload.
const MaxProtocolMessageLength = 2 * 1024 * 1024

// ShortTxIDLength is the length, in bytes, of one short transaction ID on
// the wire (48 bits).
const ShortTxIDLength = 6

// PrefilledTransaction is a full transaction body sent inline in a compact
// block. Index is the absolute index in the block; on the wire it travels
// as a delta from the previous prefilled index (see CompactBlock.Encode).
type PrefilledTransaction struct {
	Index int
	Tx    *MsgTx
}

// CompactBlock is the short-ID block encoding (BIP 152 style): a header, a
// per-block salt (Nonce), short-IDs for transactions the sender expects the
// receiver already has, and full bodies for the rest (always including the
// coinbase).
type CompactBlock struct {
	Header       BlockHeader
	Nonce        uint64
	ShortIDs     []uint64 // 48-bit values, one per non-prefilled tx, in block order
	PrefilledTxs []PrefilledTransaction
}

// NewCompactBlock builds a compact block from a full block, prefilling
// whichever transactions prefiller selects (the coinbase, at minimum) and
// short-ID-ing the rest under a salt derived from header+nonce.
func NewCompactBlock(block *MsgBlock, nonce uint64, prefiller Prefiller) *CompactBlock {
	if prefiller == nil {
		prefiller = CoinbaseOnlyPrefiller{}
	}
	salt := DeriveShortIDSalt(&block.Header, nonce)

	cb := &CompactBlock{
		Header:       block.Header,
		Nonce:        nonce,
		ShortIDs:     make([]uint64, 0, len(block.Transactions)),
		PrefilledTxs: make([]PrefilledTransaction, 0),
	}

	for i, tx := range block.Transactions {
		if prefiller.ShouldPrefill(i, tx) {
			cb.PrefilledTxs = append(cb.PrefilledTxs, PrefilledTransaction{Index: i, Tx: tx})
			continue
		}
		cb.ShortIDs = append(cb.ShortIDs, ShortID(salt, tx.TxHash()))
	}

	return cb
}

// Salt returns the short-ID salt this compact block's short-IDs were
// computed under.
func (cb *CompactBlock) Salt() ShortIDSalt {
	return DeriveShortIDSalt(&cb.Header, cb.Nonce)
}

// BlockTxCount is the total number of transactions the compact block
// describes, prefilled and short-ID'd together.
func (cb *CompactBlock) BlockTxCount() int {
	return len(cb.ShortIDs) + len(cb.PrefilledTxs)
}

// Validate enforces the invariants from §3: header present; at least one of
// shorttxids/prefilledtxn populated; total count bounded by the current
// max-block-size / min-tx-size ratio; every prefilled tx non-null; prefilled
// indices strictly increasing and never leaving a gap no short-id can fill.
func (cb *CompactBlock) Validate(currentMaxBlockSize uint32) error {
	if cb.Header.PrevBlock.IsZero() && cb.Header.MerkleRoot.IsZero() {
		return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding, Detail: "compact block header is null"}
	}
	if len(cb.ShortIDs) == 0 && len(cb.PrefilledTxs) == 0 {
		return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding, Detail: "compact block carries no transactions"}
	}

	maxTxs := uint64(currentMaxBlockSize) / MinTransactionSize
	if uint64(cb.BlockTxCount()) > maxTxs {
		return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding,
			Detail: fmt.Sprintf("compact block tx count %d exceeds max %d", cb.BlockTxCount(), maxTxs)}
	}

	lastIndex := -1
	for i, pf := range cb.PrefilledTxs {
		if pf.Tx == nil {
			return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding, Detail: "prefilled transaction is null"}
		}
		if pf.Index <= lastIndex {
			return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding, Detail: "prefilled indices not strictly increasing"}
		}
		lastIndex = pf.Index
		if pf.Index > len(cb.ShortIDs)+i {
			return &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding,
				Detail: "prefilled index leaves a gap no short-id can fill"}
		}
	}
	return nil
}

// Encode writes the compact block using COMPACTSIZE-prefixed vectors and the
// 4-byte-LSB/2-byte-MSB short-ID layout from §6.2. Prefilled indices are
// stored as a running-sum delta (index_delta = idx[i] - idx[i-1] - 1).
func (cb *CompactBlock) Encode(w io.Writer) error {
	if err := cb.Header.Serialize(w); err != nil {
		return err
	}
	if err := writeU64(w, cb.Nonce); err != nil {
		return err
	}

	if err := WriteCompactSize(w, uint64(len(cb.ShortIDs))); err != nil {
		return err
	}
	var idBuf [ShortTxIDLength]byte
	for _, id := range cb.ShortIDs {
		WriteShortID(idBuf[:], id)
		if _, err := w.Write(idBuf[:]); err != nil {
			return err
		}
	}

	if err := WriteCompactSize(w, uint64(len(cb.PrefilledTxs))); err != nil {
		return err
	}
	prevIndex := -1
	for _, pf := range cb.PrefilledTxs {
		delta := pf.Index - prevIndex - 1
		if delta < 0 {
			return fmt.Errorf("prefilled indices must be strictly increasing")
		}
		if err := WriteCompactSize(w, uint64(delta)); err != nil {
			return err
		}
		if err := pf.Tx.Serialize(w); err != nil {
			return err
		}
		prevIndex = pf.Index
	}
	return nil
}

// DecodeCompactBlock reads a compact block written by Encode, rejecting a
// running-sum index that overflows uint16 (§3/§6.1).
func DecodeCompactBlock(r io.Reader) (*CompactBlock, error) {
	header, err := DeserializeBlockHeader(r)
	if err != nil {
		return nil, err
	}
	nonce, err := readU64(r)
	if err != nil {
		return nil, err
	}

	numShort, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	shortIDs := make([]uint64, numShort)
	var idBuf [ShortTxIDLength]byte
	for i := range shortIDs {
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return nil, err
		}
		shortIDs[i] = ReadShortID(idBuf[:])
	}

	numPrefilled, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	prefilled := make([]PrefilledTransaction, numPrefilled)
	runningIndex := -1
	for i := range prefilled {
		delta, err := ReadCompactSize(r)
		if err != nil {
			return nil, err
		}
		absolute := int64(runningIndex) + 1 + int64(delta)
		if absolute > 0xffff {
			return nil, &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding,
				Detail: "prefilled running index overflowed uint16"}
		}
		tx, err := DeserializeMsgTx(r)
		if err != nil {
			return nil, err
		}
		prefilled[i] = PrefilledTransaction{Index: int(absolute), Tx: tx}
		runningIndex = int(absolute)
	}

	return &CompactBlock{
		Header:       *header,
		Nonce:        nonce,
		ShortIDs:     shortIDs,
		PrefilledTxs: prefilled,
	}, nil
}

// ReconstructStub resolves every non-prefilled slot it can from finder,
// returning the ordered wanted list for a ThinBlockBuilder and the set of
// missing absolute indices. finder is expected to be backed by a
// MempoolIndex keyed to this block's salt.
func (cb *CompactBlock) ReconstructStub(finder func(shortid uint64) (*MsgTx, bool)) (wanted []ThinTx, missing []int) {
	salt := cb.Salt()
	total := cb.BlockTxCount()
	wanted = make([]ThinTx, total)

	prefilledAt := make(map[int]*MsgTx, len(cb.PrefilledTxs))
	for _, pf := range cb.PrefilledTxs {
		prefilledAt[pf.Index] = pf.Tx
	}

	shortIdx := 0
	for i := 0; i < total; i++ {
		if tx, ok := prefilledAt[i]; ok {
			wanted[i] = ThinTxFromFull(tx.TxHash())
			continue
		}
		id := cb.ShortIDs[shortIdx]
		shortIdx++
		wanted[i] = ThinTxFromShortID(id, salt)
		if finder != nil {
			if _, ok := finder(id); !ok {
				missing = append(missing, i)
			}
		} else {
			missing = append(missing, i)
		}
	}
	return wanted, missing
}

// GetBlockTxn is the re-request for missing transactions after a compact
// block: a block hash plus the absolute indices still needed.
type GetBlockTxn struct {
	BlockHash Hash
	Indexes   []uint16
}

// Encode differentially encodes Indexes as idx[i]-idx[i-1]-1, per §6.1.
func (m *GetBlockTxn) Encode(w io.Writer) error {
	if err := writeHash(w, m.BlockHash); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(m.Indexes))); err != nil {
		return err
	}
	prev := -1
	for _, idx := range m.Indexes {
		delta := int(idx) - prev - 1
		if delta < 0 {
			return fmt.Errorf("getblocktxn indices must be strictly increasing")
		}
		if err := WriteCompactSize(w, uint64(delta)); err != nil {
			return err
		}
		prev = int(idx)
	}
	return nil
}

// DecodeGetBlockTxn reads a GetBlockTxn, rejecting indices that overflow
// uint16 once the running sum is applied.
func DecodeGetBlockTxn(r io.Reader) (*GetBlockTxn, error) {
	hash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	n, err := ReadCompactSizeBounded(r, MaxCompactSize)
	if err != nil {
		return nil, err
	}
	indexes := make([]uint16, n)
	running := -1
	for i := range indexes {
		delta, err := ReadCompactSize(r)
		if err != nil {
			return nil, err
		}
		absolute := int64(running) + 1 + int64(delta)
		if absolute > 0xffff {
			return nil, &ProtocolError{Kind: ErrBadEncoding, Weight: WeightBadEncoding,
				Detail: "getblocktxn index overflowed uint16"}
		}
		indexes[i] = uint16(absolute)
		running = int(absolute)
	}
	return &GetBlockTxn{BlockHash: hash, Indexes: indexes}, nil
}

// BlockTxn answers a GetBlockTxn with the requested transactions, in the
// order they were requested.
type BlockTxn struct {
	BlockHash    Hash
	Transactions []*MsgTx
}

func (m *BlockTxn) Encode(w io.Writer) error {
	if err := writeHash(w, m.BlockHash); err != nil {
		return err
	}
	if err := WriteCompactSize(w, uint64(len(m.Transactions))); err != nil {
		return err
	}
	for _, tx := range m.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

func DecodeBlockTxn(r io.Reader) (*BlockTxn, error) {
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
	return &BlockTxn{BlockHash: hash, Transactions: txs}, nil
}

// SendCmpct announces (or withdraws) a peer's preference for compact-block
// style announcements, and the compact-block protocol version it supports.
type SendCmpct struct {
	Announce bool
	Version  uint64
}

func (m *SendCmpct) Encode(w io.Writer) error {
	var b [1]byte
	if m.Announce {
		b[0] = 1
	}
	if _, err := w.Write(b[:]); err != nil {
		return err
	}
	return writeU64(w, m.Version)
}

func DecodeSendCmpct(r io.Reader) (*SendCmpct, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	version, err := readU64(r)
	if err != nil {
		return nil, err
	}
	return &SendCmpct{Announce: b[0] != 0, Version: version}, nil
}

// EncodeCompactBlock is a convenience wrapper returning the encoded bytes.
func EncodeCompactBlock(cb *CompactBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := cb.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
