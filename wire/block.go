package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

// BlockVersion is the current block version.
const BlockVersion = 1

// BlockHeader defines information about a block and is used in the bitcoin
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version int32

	// Hash of the previous block header in the block chain.
	PrevBlock Hash

	// MerkleRoot is the double sha256 hash of all of the transaction
	// hashes in the block.
	MerkleRoot Hash

	// Timestamp the block was created.  This is, unfortunately, encoded as a
	// uint32 in the wire protocol which limits its range.
	Timestamp time.Time

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32

	// DarkMatter solution bytes (Obsidian specific)
	// Contains the nonce and other proof data for the AES-SHA256 hybrid PoW.
	DarkMatterSolution []byte
}

// MsgBlock implements the Message interface and represents a bitcoin
// block message.  It is used to deliver block and transaction information in
// response to a getdata message (MsgGetData) for a given block hash.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) error {
	msg.Transactions = append(msg.Transactions, tx)
	return nil
}

// NewMsgBlock returns a new bitcoin block message that conforms to the
// Message interface.  The return instance carries a copy of blockHeader
// unchanged and there are no transactions.
func NewMsgBlock(blockHeader *BlockHeader) *MsgBlock {
	return &MsgBlock{
		Header:       *blockHeader,
		Transactions: make([]*MsgTx, 0, 64),
	}
}

// Serialize writes the fixed 80-byte-equivalent header fields to w in the
// wire's little-endian layout. DarkMatterSolution is appended length-prefixed
// since, unlike upstream bitcoin, Obsidian's PoW carries variable-length
// solution data alongside the nonce.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h.Version); err != nil {
		return err
	}
	if err := writeHash(w, h.PrevBlock); err != nil {
		return err
	}
	if err := writeHash(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(h.Timestamp.Unix())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.Bits); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.Nonce); err != nil {
		return err
	}
	return writeVarBytes(w, h.DarkMatterSolution)
}

// Bytes returns the serialized header.
func (h *BlockHeader) Bytes() []byte {
	var buf bytes.Buffer
	// Serialize cannot fail writing into a bytes.Buffer.
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeBlockHeader reads a header written by Serialize.
func DeserializeBlockHeader(r io.Reader) (*BlockHeader, error) {
	h := &BlockHeader{}
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return nil, err
	}
	var err error
	if h.PrevBlock, err = readHash(r); err != nil {
		return nil, err
	}
	if h.MerkleRoot, err = readHash(r); err != nil {
		return nil, err
	}
	var ts uint32
	if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
		return nil, err
	}
	h.Timestamp = time.Unix(int64(ts), 0).UTC()
	if err := binary.Read(r, binary.LittleEndian, &h.Bits); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Nonce); err != nil {
		return nil, err
	}
	if h.DarkMatterSolution, err = readVarBytes(r, MaxProtocolMessageLength); err != nil {
		return nil, err
	}
	return h, nil
}

// BlockHash calculates the hash of the block header.
func (h *BlockHeader) BlockHash() Hash {
	return DoubleHashH(h.Bytes())
}

// BlockHash returns the hash of the block header.
func (msg *MsgBlock) BlockHash() Hash {
	return msg.Header.BlockHash()
}

// ComputeMerkleRoot recomputes the block's merkle root from its current
// transaction list, independent of whatever is currently stored in Header.
func (msg *MsgBlock) ComputeMerkleRoot() Hash {
	return TxMerkleRoot(msg.Transactions)
}
